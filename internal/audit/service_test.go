package audit

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestService_AppendRequiresTypeAndTarget(t *testing.T) {
	svc := NewService(NewMemoryRepo())

	if err := svc.Append(context.Background(), Event{Type: EventCallDelivered}); !errors.Is(err, ErrInvalidEvent) {
		t.Fatalf("expected ErrInvalidEvent, got %v", err)
	}
	if err := svc.Append(context.Background(), Event{TargetPhone: "+1"}); !errors.Is(err, ErrInvalidEvent) {
		t.Fatalf("expected ErrInvalidEvent, got %v", err)
	}
}

func TestService_FillsIDAndTimestamp(t *testing.T) {
	repo := NewMemoryRepo()
	svc := NewService(repo)
	now := time.Date(2025, 5, 1, 9, 0, 0, 0, time.UTC)
	svc.clock = func() time.Time { return now }

	if err := svc.CallDelivered(context.Background(), "+1", "+2", "voip", "room-1"); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if err := svc.CredentialInvalidated(context.Background(), "+2", "standard", "DeviceNotRegistered"); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}

	evs := repo.Events()
	if len(evs) != 2 {
		t.Fatalf("expected 2 events, got %d", len(evs))
	}
	if evs[0].ID == "" || !evs[0].CreatedAt.Equal(now) {
		t.Fatalf("expected id and timestamp filled: %+v", evs[0])
	}
	if evs[0].Channel != "voip" || evs[0].CallChannelID != "room-1" {
		t.Fatalf("unexpected delivered event %+v", evs[0])
	}
	inv := repo.ByType(EventCredentialInvalidated)
	if len(inv) != 1 || inv[0].TargetPhone != "+2" {
		t.Fatalf("unexpected invalidation events %+v", inv)
	}
}

func TestService_NoRepo(t *testing.T) {
	svc := NewService(nil)
	if err := svc.CallUnreachable(context.Background(), "+1", "+2", "room", "no channel"); err == nil {
		t.Fatalf("expected error without repository")
	}
}
