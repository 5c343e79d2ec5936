package signaling

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"callme/internal/presence"
	"callme/internal/users"
	"callme/pkg/logger"
)

// Presence is the registry the core owns writes to.
type Presence interface {
	Lookuper
	Register(userID string, conn presence.Conn)
	Remove(conn presence.Conn) []string
	Len() int
}

// Directory is the user store seen by the core.
type Directory interface {
	PushCredentials(ctx context.Context, userID string) ([]users.PushCredential, error)
	RemovePushCredential(ctx context.Context, userID string, kind users.CredentialKind) error
	DisplayName(ctx context.Context, userID string) (string, error)
}

// Auditor records signaling outcomes. Failures are logged and ignored.
type Auditor interface {
	CallDelivered(ctx context.Context, caller, callee, channel, callChannelID string) error
	CallUnreachable(ctx context.Context, caller, callee, callChannelID, reason string) error
	CredentialInvalidated(ctx context.Context, phone, kind, reason string) error
}

// Core handles signaling events from realtime connections.
//
// Channel attempts for one request run strictly in order and stop at the first
// Delivered. Credential removal happens here, never inside a channel.
type Core struct {
	presence Presence
	dir      Directory
	channels []Channel
	audit    Auditor
	log      *slog.Logger
	clock    func() time.Time
}

type Option func(*Core)

func WithAuditor(a Auditor) Option { return func(c *Core) { c.audit = a } }

func WithLogger(l *slog.Logger) Option { return func(c *Core) { c.log = l } }

func WithClock(clock func() time.Time) Option { return func(c *Core) { c.clock = clock } }

// NewCore builds a core that tries channels in the given order.
func NewCore(p Presence, dir Directory, channels []Channel, opts ...Option) *Core {
	c := &Core{
		presence: p,
		dir:      dir,
		channels: channels,
		log:      slog.Default(),
		clock:    time.Now,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// HandleRegister binds userID to conn. A later registration for the same user wins.
func (c *Core) HandleRegister(userID string, conn presence.Conn) {
	c.presence.Register(userID, conn)
	presenceEntries.Set(float64(c.presence.Len()))
}

// HandleDisconnect drops whatever registration conn still holds. Unknown conns are a no-op.
func (c *Core) HandleDisconnect(conn presence.Conn) {
	removed := c.presence.Remove(conn)
	presenceEntries.Set(float64(c.presence.Len()))
	if len(removed) > 0 {
		c.log.Debug("presence removed", "conn_id", conn.ID(), "users", removed)
	}
}

// HandleCallRequest notifies the callee through the first channel that can reach
// them. When none can, a connected caller receives callFailed.
func (c *Core) HandleCallRequest(ctx context.Context, ev CallEvent) (Outcome, error) {
	if ev.CallerID == "" || ev.CalleeID == "" {
		return Outcome{}, ErrInvalidCall
	}
	if ev.TimestampMs == 0 {
		ev.TimestampMs = c.clock().UnixMilli()
	}
	if ev.CallerDisplayName == "" {
		name, err := c.dir.DisplayName(ctx, ev.CallerID)
		if err != nil {
			c.log.Warn("caller name lookup failed", "caller", ev.CallerID, "err", err)
		}
		ev.CallerDisplayName = name
	}

	ctx = logger.With(ctx, c.log.With("caller", ev.CallerID, "callee", ev.CalleeID, "call_channel", ev.ChannelID))
	log := logger.From(ctx)

	target := c.target(ctx, ev.CalleeID)
	out := c.run(ctx, &target, Notification{Kind: KindIncomingCall, Event: ev}, false)

	if out.Delivered {
		callOutcomes.WithLabelValues("delivered", string(out.Via)).Inc()
		log.Info("call delivered", "via", out.Via)
		if c.audit != nil {
			if err := c.audit.CallDelivered(ctx, ev.CallerID, ev.CalleeID, string(out.Via), ev.ChannelID); err != nil {
				log.Warn("audit append failed", "err", err)
			}
		}
		return out, nil
	}

	callOutcomes.WithLabelValues("unreachable", "").Inc()
	log.Info("callee unreachable", "attempts", len(out.Attempts))
	if c.audit != nil {
		if err := c.audit.CallUnreachable(ctx, ev.CallerID, ev.CalleeID, ev.ChannelID, summarize(out.Attempts)); err != nil {
			log.Warn("audit append failed", "err", err)
		}
	}

	if conn, ok := c.presence.Lookup(ev.CallerID); ok {
		if err := conn.Emit(EventCallFailed, CallFailed{Reason: out.Reason, Target: ev.CalleeID}); err != nil {
			log.Warn("callFailed emit failed", "conn_id", conn.ID(), "err", err)
		}
	}
	return out, nil
}

// HandleCallAccept tells the caller the callee picked up. It is dropped when the
// caller is not connected; accepts are never pushed.
func (c *Core) HandleCallAccept(ctx context.Context, callerID, calleeID, channelID string) bool {
	conn, ok := c.presence.Lookup(callerID)
	if !ok {
		c.log.Debug("accept dropped, caller offline", "caller", callerID, "callee", calleeID)
		return false
	}
	if err := conn.Emit(EventStartCall, StartCall{Channel: channelID, From: calleeID}); err != nil {
		c.log.Warn("startCall emit failed", "caller", callerID, "conn_id", conn.ID(), "err", err)
	}
	return true
}

// HandleCallEnd notifies the other party over its live connection, if any, and
// always follows up with a best-effort push so a backgrounded device can close its
// call UI.
func (c *Core) HandleCallEnd(ctx context.Context, from, to, channelID string) (Outcome, error) {
	if from == "" || to == "" {
		return Outcome{}, ErrInvalidCall
	}
	ev := CallEvent{
		CallerID:    from,
		CalleeID:    to,
		ChannelID:   channelID,
		TimestampMs: c.clock().UnixMilli(),
	}
	ctx = logger.With(ctx, c.log.With("from", from, "to", to, "call_channel", channelID))

	// Runs inline on the sender's read loop: a later event from the same
	// connection must not overtake the end signal. Provider latency is bounded
	// by the push client timeouts.
	target := c.target(ctx, to)
	out := c.run(ctx, &target, Notification{Kind: KindCallEnded, Event: ev}, true)
	return out, nil
}

func (c *Core) target(ctx context.Context, userID string) Target {
	creds, err := c.dir.PushCredentials(ctx, userID)
	if err != nil {
		logger.From(ctx).Warn("credential lookup failed", "user", userID, "err", err)
	}
	return Target{UserID: userID, Credentials: creds}
}

// run walks the channel list. With pushAfterRealtime set, a realtime delivery does
// not end the walk; push channels still stop at their first delivery.
func (c *Core) run(ctx context.Context, target *Target, n Notification, pushAfterRealtime bool) Outcome {
	log := logger.From(ctx)
	var out Outcome

	for _, ch := range c.channels {
		via := ch.Via()
		res := c.attempt(ctx, ch, *target, n)
		out.Attempts = append(out.Attempts, Attempt{Via: via, Result: res})
		channelAttempts.WithLabelValues(string(via), res.Kind.String()).Inc()

		switch res.Kind {
		case Delivered:
			log.Debug("channel delivered", "channel", via, "event", n.Kind.String())
		case NotApplicable:
			log.Debug("channel not applicable", "channel", via, "reason", res.Reason)
		case Failed:
			log.Warn("channel failed", "channel", via, "reason", res.Reason, "invalidate", res.InvalidateCredential)
			if res.InvalidateCredential {
				c.invalidate(ctx, target, res)
				out.Invalidated = append(out.Invalidated, res.Credential)
			}
		}

		if res.Kind != Delivered {
			continue
		}
		if !out.Delivered {
			out.Delivered, out.Via = true, via
		}
		if pushAfterRealtime && via == ViaRealtime {
			continue
		}
		return out
	}

	if !out.Delivered {
		out.Reason = ReasonUnreachable
	}
	return out
}

// attempt isolates the core from a misbehaving channel.
func (c *Core) attempt(ctx context.Context, ch Channel, target Target, n Notification) (res ChannelResult) {
	defer func() {
		if r := recover(); r != nil {
			res = failed(fmt.Sprintf("channel panic: %v", r), false, "")
		}
	}()
	return ch.Attempt(ctx, target, n)
}

func (c *Core) invalidate(ctx context.Context, target *Target, res ChannelResult) {
	log := logger.From(ctx)
	kind := res.Credential
	target.drop(kind)
	credentialInvalidations.WithLabelValues(string(kind)).Inc()

	if err := c.dir.RemovePushCredential(ctx, target.UserID, kind); err != nil {
		log.Error("credential removal failed", "user", target.UserID, "kind", kind, "err", err)
		return
	}
	log.Info("credential invalidated", "user", target.UserID, "kind", kind, "reason", res.Reason)
	if c.audit != nil {
		if err := c.audit.CredentialInvalidated(ctx, target.UserID, string(kind), res.Reason); err != nil {
			log.Warn("audit append failed", "err", err)
		}
	}
}

func summarize(attempts []Attempt) string {
	s := ""
	for i, a := range attempts {
		if i > 0 {
			s += "; "
		}
		s += fmt.Sprintf("%s: %s", a.Via, a.Result.Kind)
		if a.Result.Reason != "" {
			s += " (" + a.Result.Reason + ")"
		}
	}
	return s
}
