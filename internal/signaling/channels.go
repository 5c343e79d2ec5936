package signaling

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"callme/internal/presence"
	"callme/internal/push"
	"callme/internal/users"
	"callme/pkg/logger"
)

// Channel is one way of notifying a user. Attempt never panics into the caller and
// never returns an error; every outcome is a ChannelResult.
type Channel interface {
	Via() Via
	Attempt(ctx context.Context, target Target, n Notification) ChannelResult
}

// Lookuper resolves a user's live connection.
type Lookuper interface {
	Lookup(userID string) (presence.Conn, bool)
}

// RealtimeChannel emits over the callee's open connection. Delivery is optimistic:
// presence is taken as reachability and emit errors are logged, not reported.
type RealtimeChannel struct {
	presence Lookuper
}

func NewRealtimeChannel(p Lookuper) *RealtimeChannel {
	return &RealtimeChannel{presence: p}
}

func (c *RealtimeChannel) Via() Via { return ViaRealtime }

func (c *RealtimeChannel) Attempt(ctx context.Context, target Target, n Notification) ChannelResult {
	conn, ok := c.presence.Lookup(target.UserID)
	if !ok {
		return notApplicable("no live connection")
	}
	event, payload := realtimeFrame(n)
	if err := conn.Emit(event, payload); err != nil {
		logger.From(ctx).Warn("realtime emit failed",
			"target", target.UserID,
			"conn_id", conn.ID(),
			"event", event,
			"err", err,
		)
	}
	return delivered()
}

func realtimeFrame(n Notification) (string, any) {
	ev := n.Event
	if n.Kind == KindCallEnded {
		return EventCallEnded, CallEnded{From: ev.CallerID, Channel: ev.ChannelID}
	}
	return EventIncomingCall, IncomingCall{From: ev.CallerID, Channel: ev.ChannelID, CallerName: ev.CallerDisplayName}
}

// VoipChannel wakes the callee's device through a VoIP push provider. A nil provider
// means VoIP is not configured for this deployment.
type VoipChannel struct {
	provider push.Provider
	ttl      time.Duration
}

func NewVoipChannel(p push.Provider, ttl time.Duration) *VoipChannel {
	return &VoipChannel{provider: p, ttl: ttl}
}

func (c *VoipChannel) Via() Via { return ViaVoip }

func (c *VoipChannel) Attempt(ctx context.Context, target Target, n Notification) ChannelResult {
	if c.provider == nil {
		return notApplicable("voip provider not configured")
	}
	token, ok := target.credential(users.CredentialVoip)
	if !ok {
		return notApplicable("no voip credential")
	}

	ticket, err := c.provider.Send(ctx, push.Message{
		To:   token,
		Data: pushData(n),
		TTL:  c.ttl,
	})
	return mapTicket(ticket, err, users.CredentialVoip)
}

// StandardChannel sends an alert push. Tokens that are not well-formed fail without
// reaching the provider.
type StandardChannel struct {
	provider push.Provider
	ttl      time.Duration
}

func NewStandardChannel(p push.Provider, ttl time.Duration) *StandardChannel {
	return &StandardChannel{provider: p, ttl: ttl}
}

func (c *StandardChannel) Via() Via { return ViaStandard }

func (c *StandardChannel) Attempt(ctx context.Context, target Target, n Notification) ChannelResult {
	if c.provider == nil {
		return notApplicable("standard push provider not configured")
	}
	token, ok := target.credential(users.CredentialStandard)
	if !ok {
		return notApplicable("no standard push credential")
	}
	if !push.ValidExpoToken(token) {
		return failed("malformed standard push token", false, users.CredentialStandard)
	}

	title, body := alertText(n)
	ticket, err := c.provider.Send(ctx, push.Message{
		To:    token,
		Title: title,
		Body:  body,
		Data:  pushData(n),
		TTL:   c.ttl,
	})
	return mapTicket(ticket, err, users.CredentialStandard)
}

func mapTicket(t push.Ticket, err error, kind users.CredentialKind) ChannelResult {
	if err != nil {
		return failed(err.Error(), false, kind)
	}
	if t.OK {
		return delivered()
	}
	reason := t.Message
	if reason == "" {
		reason = "rejected by provider"
	}
	return failed(reason, t.DestinationInvalid, kind)
}

func pushData(n Notification) map[string]any {
	ev := n.Event
	data := map[string]any{
		"type":    n.Kind.String(),
		"from":    ev.CallerID,
		"channel": ev.ChannelID,
	}
	if ev.CallerDisplayName != "" {
		data["callerName"] = ev.CallerDisplayName
	}
	if ev.TimestampMs > 0 {
		data["timestamp"] = strconv.FormatInt(ev.TimestampMs, 10)
	}
	return data
}

func alertText(n Notification) (string, string) {
	who := n.Event.CallerDisplayName
	if who == "" {
		who = n.Event.CallerID
	}
	if n.Kind == KindCallEnded {
		return "Call ended", fmt.Sprintf("%s ended the call", who)
	}
	return "Incoming call", fmt.Sprintf("%s is calling you", who)
}

// DefaultChannels returns the canonical priority order: realtime, then VoIP, then
// standard push. Either provider may be nil.
func DefaultChannels(p Lookuper, voip, standard push.Provider, ttl time.Duration) []Channel {
	return []Channel{
		NewRealtimeChannel(p),
		NewVoipChannel(voip, ttl),
		NewStandardChannel(standard, ttl),
	}
}
