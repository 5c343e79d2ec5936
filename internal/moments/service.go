package moments

import (
	"context"
	"fmt"
	"strings"
	"time"

	"callme/internal/users"

	"github.com/google/uuid"
)

const (
	DefaultListLimit = 20
	MaxListLimit     = 100
)

type Service struct {
	repo  Repository
	clock func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, clock: time.Now}
}

// CreateRequest carries the author's fields; the author phone comes from auth.
type CreateRequest struct {
	UserName     string `json:"userName"`
	TargetPhone  string `json:"targetPhone"`
	TargetName   string `json:"targetName"`
	Screenshot   string `json:"screenshot"`
	Note         string `json:"note"`
	Mood         string `json:"mood"`
	CallDuration string `json:"callDuration"`
}

func (s *Service) Create(ctx context.Context, userPhone string, req CreateRequest) (Moment, error) {
	m := Moment{
		ID:           uuid.NewString(),
		UserPhone:    userPhone,
		UserName:     strings.TrimSpace(req.UserName),
		TargetPhone:  strings.TrimSpace(req.TargetPhone),
		TargetName:   strings.TrimSpace(req.TargetName),
		Screenshot:   strings.TrimSpace(req.Screenshot),
		Note:         strings.TrimSpace(req.Note),
		Mood:         strings.TrimSpace(req.Mood),
		CallDuration: strings.TrimSpace(req.CallDuration),
		Timestamp:    s.clock().UTC(),
		Reactions:    []ReactionSummary{},
	}
	required := []struct{ name, value string }{
		{"userPhone", m.UserPhone},
		{"userName", m.UserName},
		{"targetPhone", m.TargetPhone},
		{"targetName", m.TargetName},
		{"screenshot", m.Screenshot},
		{"mood", m.Mood},
		{"callDuration", m.CallDuration},
	}
	for _, f := range required {
		if f.value == "" {
			return Moment{}, fmt.Errorf("%w: %s is required", ErrInvalidArgument, f.name)
		}
	}
	target, err := users.NormalizePhone(m.TargetPhone)
	if err != nil {
		return Moment{}, fmt.Errorf("%w: targetPhone: %v", ErrInvalidArgument, err)
	}
	m.TargetPhone = target

	if err := s.repo.Create(ctx, m); err != nil {
		return Moment{}, fmt.Errorf("moments: create: %w", err)
	}
	return m, nil
}

// List returns up to limit moments older than before (zero means now), newest
// first, with reactions summarized for viewer.
func (s *Service) List(ctx context.Context, viewer string, limit int, before time.Time) ([]Moment, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}
	if before.IsZero() {
		before = s.clock().UTC().Add(time.Second)
	}

	list, err := s.repo.List(ctx, limit, before)
	if err != nil {
		return nil, fmt.Errorf("moments: list: %w", err)
	}
	ids := make([]string, 0, len(list))
	for _, m := range list {
		ids = append(ids, m.ID)
	}
	reactions, err := s.repo.Reactions(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("moments: reactions: %w", err)
	}

	byMoment := make(map[string][]Reaction, len(list))
	for _, rc := range reactions {
		byMoment[rc.MomentID] = append(byMoment[rc.MomentID], rc)
	}
	for i := range list {
		list[i].Reactions, list[i].TotalReactions = summarize(byMoment[list[i].ID], viewer)
	}
	if list == nil {
		list = []Moment{}
	}
	return list, nil
}

// ToggleResult is the reaction state of a moment after a toggle.
type ToggleResult struct {
	Reactions      []ReactionSummary `json:"reactions"`
	TotalReactions int               `json:"totalReactions"`
}

// ToggleReaction adds phone's emoji to the moment, or takes it back if present.
func (s *Service) ToggleReaction(ctx context.Context, momentID, phone, emoji string) (ToggleResult, error) {
	if momentID == "" || phone == "" || emoji == "" {
		return ToggleResult{}, ErrInvalidArgument
	}
	if !ValidEmoji(emoji) {
		return ToggleResult{}, ErrInvalidEmoji
	}
	if _, err := uuid.Parse(momentID); err != nil {
		return ToggleResult{}, ErrNotFound
	}

	if _, err := s.repo.ToggleReaction(ctx, Reaction{
		MomentID:  momentID,
		Emoji:     emoji,
		Phone:     phone,
		CreatedAt: s.clock().UTC(),
	}); err != nil {
		return ToggleResult{}, err
	}

	reactions, err := s.repo.Reactions(ctx, []string{momentID})
	if err != nil {
		return ToggleResult{}, fmt.Errorf("moments: reactions: %w", err)
	}
	sum, total := summarize(reactions, phone)
	return ToggleResult{Reactions: sum, TotalReactions: total}, nil
}

// summarize groups reactions by emoji in first-reacted order. Emojis nobody
// holds any more do not appear.
func summarize(reactions []Reaction, viewer string) ([]ReactionSummary, int) {
	out := []ReactionSummary{}
	index := make(map[string]int)
	for _, rc := range reactions {
		i, ok := index[rc.Emoji]
		if !ok {
			i = len(out)
			index[rc.Emoji] = i
			out = append(out, ReactionSummary{Emoji: rc.Emoji})
		}
		out[i].Count++
		if rc.Phone == viewer {
			out[i].UserReacted = true
		}
	}
	return out, len(reactions)
}
