package users

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryRepo is an in-memory Repository used by tests and local runs without Postgres.
type MemoryRepo struct {
	mu    sync.Mutex
	users map[string]User
	creds map[string]map[CredentialKind]PushCredential

	// DeleteCalls counts DeleteCredential invocations per phone.
	DeleteCalls map[string]int
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		users:       make(map[string]User),
		creds:       make(map[string]map[CredentialKind]PushCredential),
		DeleteCalls: make(map[string]int),
	}
}

func (r *MemoryRepo) GetOrCreate(ctx context.Context, phone string, now time.Time) (User, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.users[phone]; ok {
		return u, false, nil
	}
	u := User{Phone: phone, IsAvailable: true, CreatedAt: now, UpdatedAt: now}
	r.users[phone] = u
	return u, true, nil
}

func (r *MemoryRepo) Get(ctx context.Context, phone string) (User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[phone]
	if !ok {
		return User{}, ErrNotFound
	}
	return u, nil
}

func (r *MemoryRepo) FindByPhones(ctx context.Context, phones []string) ([]User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []User
	for _, p := range phones {
		if u, ok := r.users[p]; ok {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Phone < out[j].Phone })
	return out, nil
}

func (r *MemoryRepo) UpdateProfile(ctx context.Context, phone, name, avatarURL string, now time.Time) (User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[phone]
	if !ok {
		return User{}, ErrNotFound
	}
	u.Name = name
	u.AvatarURL = avatarURL
	u.UpdatedAt = now
	r.users[phone] = u
	return u, nil
}

func (r *MemoryRepo) SetAvailability(ctx context.Context, phone string, a Availability, now time.Time) (User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[phone]
	if !ok {
		return User{}, ErrNotFound
	}
	u.IsAvailable = a.IsAvailable
	u.Mood = a.Mood
	if a.LastOnline != nil {
		t := *a.LastOnline
		u.LastOnline = &t
	}
	u.UpdatedAt = now
	r.users[phone] = u
	return u, nil
}

func (r *MemoryRepo) ListInviteCandidates(ctx context.Context) ([]User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []User
	for phone, u := range r.users {
		if u.IsAvailable {
			continue
		}
		if _, ok := r.creds[phone][CredentialStandard]; !ok {
			continue
		}
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Phone < out[j].Phone })
	return out, nil
}

func (r *MemoryRepo) MarkInvited(ctx context.Context, phones []string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range phones {
		if u, ok := r.users[p]; ok {
			t := at
			u.LastMomentInvite = &t
			r.users[p] = u
		}
	}
	return nil
}

func (r *MemoryRepo) PutCredential(ctx context.Context, phone string, c PushCredential) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[phone]; !ok {
		return ErrNotFound
	}
	if r.creds[phone] == nil {
		r.creds[phone] = make(map[CredentialKind]PushCredential)
	}
	r.creds[phone][c.Kind] = c
	return nil
}

func (r *MemoryRepo) Credentials(ctx context.Context, phone string) ([]PushCredential, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []PushCredential
	for _, c := range r.creds[phone] {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Kind < out[j].Kind })
	return out, nil
}

func (r *MemoryRepo) DeleteCredential(ctx context.Context, phone string, kind CredentialKind) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.DeleteCalls[phone]++
	delete(r.creds[phone], kind)
	return nil
}
