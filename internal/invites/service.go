// Package invites sends the daily "call me moment" push to a random set of
// unavailable users.
package invites

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"callme/internal/push"
	"callme/internal/users"

	"github.com/google/uuid"
)

var (
	ErrQuietHours = errors.New("invites: quiet hours active")
	ErrBusy       = errors.New("invites: broadcast already running")
)

const lockName = "moment-broadcast"

// Locker serializes broadcasts across instances.
type Locker interface {
	Acquire(ctx context.Context, name, owner string, ttl time.Duration) (release func(context.Context) error, ok bool, err error)
}

type Directory interface {
	InviteCandidates(ctx context.Context, dayStart time.Time) ([]users.User, error)
	MarkInvited(ctx context.Context, phones []string) error
	PushCredentials(ctx context.Context, phone string) ([]users.PushCredential, error)
	RemovePushCredential(ctx context.Context, phone string, kind users.CredentialKind) error
}

type BatchSender interface {
	SendBatch(ctx context.Context, msgs []push.Message) ([]push.Ticket, error)
}

type Config struct {
	QuietHoursStart int
	QuietHoursEnd   int
	BatchSize       int
	Location        *time.Location
	// Window is the moment length quoted in the push body.
	Window time.Duration
}

type Result struct {
	Sent     int      `json:"sent"`
	Selected []string `json:"-"`
}

type Service struct {
	dir    Directory
	sender BatchSender
	locker Locker
	cfg    Config
	log    *slog.Logger

	clock   func() time.Time
	shuffle func(n int, swap func(i, j int))
}

func NewService(dir Directory, sender BatchSender, locker Locker, cfg Config, log *slog.Logger) *Service {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		dir:     dir,
		sender:  sender,
		locker:  locker,
		cfg:     cfg,
		log:     log,
		clock:   time.Now,
		shuffle: rand.Shuffle,
	}
}

// QuietHours reports whether t falls inside the configured quiet window.
func (s *Service) QuietHours(t time.Time) bool {
	h := t.In(s.cfg.Location).Hour()
	start, end := s.cfg.QuietHoursStart, s.cfg.QuietHoursEnd
	switch {
	case start == end:
		return false
	case start > end:
		return h >= start || h < end
	default:
		return h >= start && h < end
	}
}

// Broadcast invites up to BatchSize users who are unavailable, can receive a
// standard push and were not invited today.
func (s *Service) Broadcast(ctx context.Context) (Result, error) {
	now := s.clock()
	if s.QuietHours(now) {
		return Result{}, ErrQuietHours
	}

	if s.locker != nil {
		release, ok, err := s.locker.Acquire(ctx, lockName, uuid.NewString(), time.Minute)
		if err != nil {
			return Result{}, fmt.Errorf("invites: acquire lock: %w", err)
		}
		if !ok {
			return Result{}, ErrBusy
		}
		defer func() {
			if err := release(context.WithoutCancel(ctx)); err != nil {
				s.log.Warn("broadcast lock release failed", "err", err)
			}
		}()
	}

	local := now.In(s.cfg.Location)
	dayStart := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, s.cfg.Location)

	candidates, err := s.dir.InviteCandidates(ctx, dayStart)
	if err != nil {
		return Result{}, err
	}
	s.shuffle(len(candidates), func(i, j int) { candidates[i], candidates[j] = candidates[j], candidates[i] })

	var (
		msgs   []push.Message
		phones []string
	)
	for _, u := range candidates {
		if len(msgs) == s.cfg.BatchSize {
			break
		}
		token, ok := standardToken(ctx, s.dir, u.Phone)
		if !ok {
			continue
		}
		msgs = append(msgs, s.message(token))
		phones = append(phones, u.Phone)
	}
	if len(msgs) == 0 {
		s.log.Info("moment broadcast: nobody to invite")
		return Result{}, nil
	}

	if err := s.dir.MarkInvited(ctx, phones); err != nil {
		return Result{}, fmt.Errorf("invites: mark invited: %w", err)
	}

	tickets, err := s.sender.SendBatch(ctx, msgs)
	if err != nil {
		return Result{}, fmt.Errorf("invites: send: %w", err)
	}
	for i, t := range tickets {
		if i >= len(phones) || !t.DestinationInvalid {
			continue
		}
		if err := s.dir.RemovePushCredential(ctx, phones[i], users.CredentialStandard); err != nil {
			s.log.Warn("credential removal failed", "phone", phones[i], "err", err)
		}
	}

	s.log.Info("moment broadcast sent", "count", len(msgs))
	return Result{Sent: len(msgs), Selected: phones}, nil
}

func (s *Service) message(token string) push.Message {
	minutes := int(s.cfg.Window / time.Minute)
	if minutes <= 0 {
		minutes = 15
	}
	return push.Message{
		To:    token,
		Title: "Call Me Moment",
		Body:  fmt.Sprintf("Ready for an honest conversation? Confirm now for %d minutes!", minutes),
		Data:  map[string]any{"type": "callMeMoment"},
	}
}

func standardToken(ctx context.Context, dir Directory, phone string) (string, bool) {
	creds, err := dir.PushCredentials(ctx, phone)
	if err != nil {
		return "", false
	}
	for _, c := range creds {
		if c.Kind == users.CredentialStandard && push.ValidExpoToken(c.Token) {
			return c.Token, true
		}
	}
	return "", false
}
