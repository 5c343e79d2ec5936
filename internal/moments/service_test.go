package moments

import (
	"context"
	"errors"
	"testing"
	"time"
)

func validRequest() CreateRequest {
	return CreateRequest{
		UserName:     "Ann",
		TargetPhone:  "+2",
		TargetName:   "Bob",
		Screenshot:   "https://cdn.example/s.png",
		Mood:         "happy",
		CallDuration: "12:03",
	}
}

func newTestService(now *time.Time) *Service {
	s := NewService(NewMemoryRepo())
	s.clock = func() time.Time { return *now }
	return s
}

func TestCreate_RequiresFields(t *testing.T) {
	now := time.Now()
	s := newTestService(&now)

	req := validRequest()
	req.Mood = " "
	if _, err := s.Create(context.Background(), "+1", req); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}

	req = validRequest()
	req.Note = ""
	m, err := s.Create(context.Background(), "+1", req)
	if err != nil {
		t.Fatalf("note is optional: %v", err)
	}
	if m.ID == "" || m.UserPhone != "+1" {
		t.Fatalf("unexpected moment %+v", m)
	}
}

func TestList_NewestFirstWithCursor(t *testing.T) {
	base := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	now := base
	s := newTestService(&now)
	ctx := context.Background()

	var ids []string
	for i := 0; i < 3; i++ {
		now = base.Add(time.Duration(i) * time.Minute)
		m, err := s.Create(ctx, "+1", validRequest())
		if err != nil {
			t.Fatal(err)
		}
		ids = append(ids, m.ID)
	}

	list, err := s.List(ctx, "+1", 2, time.Time{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 || list[0].ID != ids[2] || list[1].ID != ids[1] {
		t.Fatalf("unexpected page %+v", list)
	}

	list, _ = s.List(ctx, "+1", 2, list[1].Timestamp)
	if len(list) != 1 || list[0].ID != ids[0] {
		t.Fatalf("unexpected second page %+v", list)
	}
}

func TestToggleReaction(t *testing.T) {
	now := time.Now()
	s := newTestService(&now)
	ctx := context.Background()
	m, _ := s.Create(ctx, "+1", validRequest())

	res, err := s.ToggleReaction(ctx, m.ID, "+2", "😂")
	if err != nil {
		t.Fatalf("toggle: %v", err)
	}
	if res.TotalReactions != 1 || len(res.Reactions) != 1 || !res.Reactions[0].UserReacted {
		t.Fatalf("unexpected result %+v", res)
	}

	res, _ = s.ToggleReaction(ctx, m.ID, "+3", "😂")
	if res.TotalReactions != 2 || res.Reactions[0].Count != 2 {
		t.Fatalf("unexpected result %+v", res)
	}

	// +2 takes theirs back; the group stays because +3 still holds it
	res, _ = s.ToggleReaction(ctx, m.ID, "+2", "😂")
	if res.TotalReactions != 1 || res.Reactions[0].UserReacted {
		t.Fatalf("unexpected result %+v", res)
	}

	res, _ = s.ToggleReaction(ctx, m.ID, "+3", "😂")
	if res.TotalReactions != 0 || len(res.Reactions) != 0 {
		t.Fatalf("expected empty group dropped, got %+v", res)
	}

	list, _ := s.List(ctx, "+3", 10, time.Time{})
	if len(list) != 1 || list[0].TotalReactions != 0 || len(list[0].Reactions) != 0 {
		t.Fatalf("unexpected listing %+v", list)
	}
}

func TestToggleReaction_Validation(t *testing.T) {
	now := time.Now()
	s := newTestService(&now)
	ctx := context.Background()
	m, _ := s.Create(ctx, "+1", validRequest())

	if _, err := s.ToggleReaction(ctx, m.ID, "+2", "🍕"); !errors.Is(err, ErrInvalidEmoji) {
		t.Fatalf("expected ErrInvalidEmoji, got %v", err)
	}
	if _, err := s.ToggleReaction(ctx, "not-a-uuid", "+2", "👏"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := s.ToggleReaction(ctx, "9b2f6d8e-0000-4000-8000-000000000000", "+2", "👏"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := s.ToggleReaction(ctx, m.ID, "", "👏"); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
}

func TestCreate_NormalizesTargetPhone(t *testing.T) {
	now := time.Now()
	s := newTestService(&now)

	req := validRequest()
	req.TargetPhone = "0049 170 555"
	m, err := s.Create(context.Background(), "+1", req)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if m.TargetPhone != "+49170555" {
		t.Fatalf("expected normalized target phone, got %q", m.TargetPhone)
	}
	got, err := s.repo.Get(context.Background(), m.ID)
	if err != nil || got.TargetPhone != "+49170555" {
		t.Fatalf("stored target phone %q err=%v", got.TargetPhone, err)
	}
}
