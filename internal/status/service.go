// Package status manages user availability and the timed "call me moment".
package status

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"callme/internal/users"
)

const EventStatusUpdate = "statusUpdate"

// Broadcaster fans an event out to every open realtime connection.
type Broadcaster interface {
	Broadcast(event string, payload any) int
}

type Store interface {
	Get(ctx context.Context, phone string) (users.User, error)
	SetAvailability(ctx context.Context, phone string, a users.Availability) (users.User, error)
}

// Update is the statusUpdate payload.
type Update struct {
	Phone       string `json:"phone"`
	IsAvailable bool   `json:"isAvailable"`
	Mood        string `json:"mood,omitempty"`
}

// Service keeps at most one pending auto-offline timer per user.
type Service struct {
	store  Store
	bc     Broadcaster
	window time.Duration
	log    *slog.Logger
	clock  func() time.Time

	// afterFunc is time.AfterFunc; tests replace it to fire timers by hand.
	afterFunc func(d time.Duration, f func()) stopper

	mu      sync.Mutex
	pending map[string]pendingExpiry
	gen     uint64
	stopped bool

	// writes serializes store writes per phone so an expiry cannot land after
	// a newer Set or confirm.
	writes map[string]*phoneLock
}

type phoneLock struct {
	mu   sync.Mutex
	refs int
}

type pendingExpiry struct {
	timer stopper
	gen   uint64
}

type stopper interface {
	Stop() bool
}

func NewService(store Store, bc Broadcaster, window time.Duration, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		store:   store,
		bc:      bc,
		window:  window,
		log:     log,
		clock:   time.Now,
		pending: make(map[string]pendingExpiry),
		writes:  make(map[string]*phoneLock),
		afterFunc: func(d time.Duration, f func()) stopper {
			return time.AfterFunc(d, f)
		},
	}
}

// Set stores availability and tells every connected client. A manual change
// cancels a pending moment expiry.
func (s *Service) Set(ctx context.Context, phone string, available bool) (users.User, error) {
	unlock := s.lockPhone(phone)
	defer unlock()

	cur, err := s.store.Get(ctx, phone)
	if err != nil {
		return users.User{}, err
	}
	s.cancel(phone)

	u, err := s.store.SetAvailability(ctx, phone, users.Availability{
		IsAvailable: available,
		Mood:        cur.Mood,
	})
	if err != nil {
		return users.User{}, err
	}
	s.bc.Broadcast(EventStatusUpdate, Update{Phone: u.Phone, IsAvailable: u.IsAvailable})
	return u, nil
}

func (s *Service) Get(ctx context.Context, phone string) (users.Availability, error) {
	u, err := s.store.Get(ctx, phone)
	if err != nil {
		return users.Availability{}, err
	}
	return users.Availability{IsAvailable: u.IsAvailable, Mood: u.Mood, LastOnline: u.LastOnline}, nil
}

// ConfirmMoment makes phone available with mood for the moment window, then flips
// it back. Confirming again inside the window restarts it.
func (s *Service) ConfirmMoment(ctx context.Context, phone, mood string) (users.User, time.Time, error) {
	unlock := s.lockPhone(phone)
	defer unlock()

	now := s.clock().UTC()
	u, err := s.store.SetAvailability(ctx, phone, users.Availability{
		IsAvailable: true,
		Mood:        mood,
		LastOnline:  &now,
	})
	if err != nil {
		return users.User{}, time.Time{}, err
	}
	s.bc.Broadcast(EventStatusUpdate, Update{Phone: u.Phone, IsAvailable: true, Mood: u.Mood})

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return u, now, nil
	}
	if p, ok := s.pending[phone]; ok {
		p.timer.Stop()
	}
	s.gen++
	gen := s.gen
	s.pending[phone] = pendingExpiry{
		timer: s.afterFunc(s.window, func() { s.expire(phone, gen) }),
		gen:   gen,
	}
	return u, now.Add(s.window), nil
}

func (s *Service) expire(phone string, gen uint64) {
	unlock := s.lockPhone(phone)
	defer unlock()

	s.mu.Lock()
	if cur, ok := s.pending[phone]; !ok || cur.gen != gen {
		// superseded by a newer confirm or a manual Set
		s.mu.Unlock()
		return
	}
	delete(s.pending, phone)
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	now := s.clock().UTC()
	u, err := s.store.SetAvailability(ctx, phone, users.Availability{IsAvailable: false, LastOnline: &now})
	if err != nil {
		s.log.Error("moment expiry failed", "phone", phone, "err", err)
		return
	}
	s.bc.Broadcast(EventStatusUpdate, Update{Phone: u.Phone, IsAvailable: false})
	s.log.Info("moment expired", "phone", phone)
}

// lockPhone holds the write lock for phone until the returned func is called.
func (s *Service) lockPhone(phone string) func() {
	s.mu.Lock()
	l, ok := s.writes[phone]
	if !ok {
		l = &phoneLock{}
		s.writes[phone] = l
	}
	l.refs++
	s.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		s.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(s.writes, phone)
		}
		s.mu.Unlock()
	}
}

func (s *Service) cancel(phone string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.pending[phone]; ok {
		p.timer.Stop()
		delete(s.pending, phone)
	}
}

// Pending reports how many moment expiries are scheduled.
func (s *Service) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// Stop cancels every pending expiry. Later confirms no longer schedule one.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
	for phone, p := range s.pending {
		p.timer.Stop()
		delete(s.pending, phone)
	}
}
