package audit

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Repository is the persistence contract for audit events.
// It is append-only; there are no Update/Delete methods.
type Repository interface {
	Append(ctx context.Context, e Event) error
}

type Service struct {
	repo  Repository
	clock func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, clock: time.Now}
}

var ErrInvalidEvent = errors.New("audit: invalid event")

func (s *Service) Append(ctx context.Context, e Event) error {
	if s.repo == nil {
		return errors.New("audit: repository not configured")
	}
	if e.Type == "" || e.TargetPhone == "" {
		return ErrInvalidEvent
	}

	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = s.clock().UTC()
	}
	return s.repo.Append(ctx, e)
}

func (s *Service) CallDelivered(ctx context.Context, caller, callee, channel, callChannelID string) error {
	return s.Append(ctx, Event{
		Type:          EventCallDelivered,
		ActorPhone:    caller,
		TargetPhone:   callee,
		Channel:       channel,
		CallChannelID: callChannelID,
	})
}

func (s *Service) CallUnreachable(ctx context.Context, caller, callee, callChannelID, reason string) error {
	return s.Append(ctx, Event{
		Type:          EventCallUnreachable,
		ActorPhone:    caller,
		TargetPhone:   callee,
		CallChannelID: callChannelID,
		Reason:        reason,
	})
}

// CredentialInvalidated records the removal of phone's credential of the given kind.
func (s *Service) CredentialInvalidated(ctx context.Context, phone, kind, reason string) error {
	return s.Append(ctx, Event{
		Type:        EventCredentialInvalidated,
		TargetPhone: phone,
		Channel:     kind,
		Reason:      reason,
	})
}
