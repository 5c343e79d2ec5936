package moments

import (
	"context"
	"sort"
	"sync"
	"time"
)

type MemoryRepo struct {
	mu        sync.Mutex
	moments   map[string]Moment
	reactions []Reaction
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{moments: make(map[string]Moment)}
}

func (r *MemoryRepo) Create(ctx context.Context, m Moment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.moments[m.ID] = m
	return nil
}

func (r *MemoryRepo) Get(ctx context.Context, id string) (Moment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.moments[id]
	if !ok {
		return Moment{}, ErrNotFound
	}
	return m, nil
}

func (r *MemoryRepo) List(ctx context.Context, limit int, before time.Time) ([]Moment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Moment
	for _, m := range r.moments {
		if m.Timestamp.Before(before) {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *MemoryRepo) Reactions(ctx context.Context, momentIDs []string) ([]Reaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	want := make(map[string]bool, len(momentIDs))
	for _, id := range momentIDs {
		want[id] = true
	}
	var out []Reaction
	for _, rc := range r.reactions {
		if want[rc.MomentID] {
			out = append(out, rc)
		}
	}
	return out, nil
}

func (r *MemoryRepo) ToggleReaction(ctx context.Context, rc Reaction) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.moments[rc.MomentID]; !ok {
		return false, ErrNotFound
	}
	for i, cur := range r.reactions {
		if cur.MomentID == rc.MomentID && cur.Emoji == rc.Emoji && cur.Phone == rc.Phone {
			r.reactions = append(r.reactions[:i], r.reactions[i+1:]...)
			return false, nil
		}
	}
	r.reactions = append(r.reactions, rc)
	return true, nil
}
