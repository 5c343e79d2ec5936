package audit

import "time"

// Event is an append-only record of a signaling decision.
//
// Events are never updated or deleted. Writing them is best-effort; a failed
// append must not change the outcome of the call it describes.
type Event struct {
	ID   string    `json:"id" db:"id"`
	Type EventType `json:"type" db:"type"`

	// ActorPhone is the user whose action produced the event (the caller for call events).
	ActorPhone  string `json:"actorPhone,omitempty" db:"actor_phone"`
	TargetPhone string `json:"targetPhone,omitempty" db:"target_phone"`

	// Channel is the notification channel involved, when there is one.
	Channel string `json:"channel,omitempty" db:"channel"`
	// CallChannelID is the opaque media channel id the call was set up on.
	CallChannelID string `json:"callChannelId,omitempty" db:"call_channel_id"`

	Reason string `json:"reason,omitempty" db:"reason"`

	CreatedAt time.Time `json:"createdAt" db:"created_at"`
}

type EventType string

const (
	EventCallDelivered         EventType = "call_delivered"
	EventCallUnreachable       EventType = "call_unreachable"
	EventCredentialInvalidated EventType = "credential_invalidated"
)
