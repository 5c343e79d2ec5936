package users

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Service owns user records and the push credentials stored against them.
type Service struct {
	repo Repository
	// clock is injectable for deterministic tests.
	clock func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, clock: time.Now}
}

// WithClock returns a copy of s using clock for timestamps.
func (s *Service) WithClock(clock func() time.Time) *Service {
	out := *s
	out.clock = clock
	return &out
}

func (s *Service) now() time.Time { return s.clock().UTC() }

// Register normalizes phone and returns the user, creating it on first sight.
func (s *Service) Register(ctx context.Context, phone string) (User, bool, error) {
	p, err := NormalizePhone(phone)
	if err != nil {
		return User{}, false, err
	}
	u, created, err := s.repo.GetOrCreate(ctx, p, s.now())
	if err != nil {
		return User{}, false, fmt.Errorf("users: register: %w", err)
	}
	return u, created, nil
}

func (s *Service) Get(ctx context.Context, phone string) (User, error) {
	if phone == "" {
		return User{}, ErrInvalidArgument
	}
	return s.repo.Get(ctx, phone)
}

func (s *Service) UpdateProfile(ctx context.Context, phone, name, avatarURL string) (User, error) {
	if phone == "" {
		return User{}, ErrInvalidArgument
	}
	return s.repo.UpdateProfile(ctx, phone, strings.TrimSpace(name), strings.TrimSpace(avatarURL), s.now())
}

// MatchContacts returns the registered subset of phones. Inputs are normalized and
// deduplicated; unparseable entries are skipped.
func (s *Service) MatchContacts(ctx context.Context, phones []string) ([]ContactMatch, error) {
	normalized := normalizeAll(phones)
	if len(normalized) == 0 {
		return []ContactMatch{}, nil
	}
	found, err := s.repo.FindByPhones(ctx, normalized)
	if err != nil {
		return nil, fmt.Errorf("users: match contacts: %w", err)
	}
	out := make([]ContactMatch, 0, len(found))
	for _, u := range found {
		out = append(out, ContactMatch{
			Phone:       u.Phone,
			IsAvailable: u.IsAvailable,
			LastOnline:  u.LastOnline,
			Name:        u.Name,
			AvatarURL:   u.AvatarURL,
		})
	}
	return out, nil
}

func (s *Service) SetAvailability(ctx context.Context, phone string, a Availability) (User, error) {
	if phone == "" {
		return User{}, ErrInvalidArgument
	}
	return s.repo.SetAvailability(ctx, phone, a, s.now())
}

// SetPushCredential stores token for kind, replacing any earlier token of that kind.
func (s *Service) SetPushCredential(ctx context.Context, phone string, kind CredentialKind, token string) error {
	token = strings.TrimSpace(token)
	if phone == "" || token == "" || !kind.Valid() {
		return ErrInvalidArgument
	}
	return s.repo.PutCredential(ctx, phone, PushCredential{Kind: kind, Token: token, RegisteredAt: s.now()})
}

func (s *Service) PushCredentials(ctx context.Context, phone string) ([]PushCredential, error) {
	return s.repo.Credentials(ctx, phone)
}

// RemovePushCredential is idempotent.
func (s *Service) RemovePushCredential(ctx context.Context, phone string, kind CredentialKind) error {
	if !kind.Valid() {
		return ErrInvalidArgument
	}
	return s.repo.DeleteCredential(ctx, phone, kind)
}

// DisplayName returns the user's profile name, or "" when unknown or unset.
func (s *Service) DisplayName(ctx context.Context, phone string) (string, error) {
	u, err := s.repo.Get(ctx, phone)
	if errors.Is(err, ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return u.Name, nil
}

// InviteCandidates lists unavailable users with a standard credential who have not
// been invited since dayStart.
func (s *Service) InviteCandidates(ctx context.Context, dayStart time.Time) ([]User, error) {
	all, err := s.repo.ListInviteCandidates(ctx)
	if err != nil {
		return nil, fmt.Errorf("users: invite candidates: %w", err)
	}
	out := all[:0]
	for _, u := range all {
		if u.LastMomentInvite != nil && !u.LastMomentInvite.Before(dayStart) {
			continue
		}
		out = append(out, u)
	}
	return out, nil
}

func (s *Service) MarkInvited(ctx context.Context, phones []string) error {
	return s.repo.MarkInvited(ctx, phones, s.now())
}
