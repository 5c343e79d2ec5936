// Package signaling routes call intents to callees over realtime connections and
// push providers, in a fixed priority order.
package signaling

import (
	"errors"

	"callme/internal/users"
)

// Via names a notification channel.
type Via string

const (
	ViaRealtime Via = "realtime"
	ViaVoip     Via = "voip"
	ViaStandard Via = "standard"
)

// Outbound event names.
const (
	EventIncomingCall = "incomingCall"
	EventStartCall    = "startCall"
	EventCallEnded    = "callEnded"
	EventCallFailed   = "callFailed"
)

// ReasonUnreachable is sent in callFailed when no channel reached the callee.
const ReasonUnreachable = "User not reachable"

var ErrInvalidCall = errors.New("signaling: invalid call event")

// CallEvent describes one signaling attempt. It is built per request and never stored.
type CallEvent struct {
	CallerID          string
	CalleeID          string
	ChannelID         string
	CallerDisplayName string
	TimestampMs       int64
}

// NotificationKind selects what a channel tells the target.
type NotificationKind int

const (
	KindIncomingCall NotificationKind = iota
	KindCallEnded
)

func (k NotificationKind) String() string {
	if k == KindCallEnded {
		return EventCallEnded
	}
	return EventIncomingCall
}

type Notification struct {
	Kind  NotificationKind
	Event CallEvent
}

// Target is the user a notification is addressed to, with the push credentials
// known for them at the start of the attempt.
type Target struct {
	UserID      string
	Credentials []users.PushCredential
}

func (t Target) credential(kind users.CredentialKind) (string, bool) {
	for _, c := range t.Credentials {
		if c.Kind == kind && c.Token != "" {
			return c.Token, true
		}
	}
	return "", false
}

func (t *Target) drop(kind users.CredentialKind) {
	out := t.Credentials[:0]
	for _, c := range t.Credentials {
		if c.Kind != kind {
			out = append(out, c)
		}
	}
	t.Credentials = out
}

// ResultKind classifies a ChannelResult.
type ResultKind int

const (
	Delivered ResultKind = iota
	NotApplicable
	Failed
)

func (k ResultKind) String() string {
	switch k {
	case Delivered:
		return "delivered"
	case NotApplicable:
		return "not_applicable"
	default:
		return "failed"
	}
}

// ChannelResult is the value every channel attempt resolves to.
type ChannelResult struct {
	Kind   ResultKind
	Reason string

	// InvalidateCredential is only meaningful for Failed results; Credential names
	// the kind that must be removed from the target.
	InvalidateCredential bool
	Credential           users.CredentialKind
}

func delivered() ChannelResult { return ChannelResult{Kind: Delivered} }

func notApplicable(reason string) ChannelResult {
	return ChannelResult{Kind: NotApplicable, Reason: reason}
}

func failed(reason string, invalidate bool, kind users.CredentialKind) ChannelResult {
	return ChannelResult{Kind: Failed, Reason: reason, InvalidateCredential: invalidate, Credential: kind}
}

// Attempt records one channel invocation inside an Outcome.
type Attempt struct {
	Via    Via
	Result ChannelResult
}

// Outcome is the resolution of a call attempt. Delivered is terminal; otherwise the
// attempt resolved Unreachable with Reason.
type Outcome struct {
	Delivered bool
	Via       Via
	Reason    string

	Attempts    []Attempt
	Invalidated []users.CredentialKind
}

// Outbound payloads.

type IncomingCall struct {
	From       string `json:"from"`
	Channel    string `json:"channel"`
	CallerName string `json:"callerName,omitempty"`
}

type StartCall struct {
	Channel string `json:"channel"`
	From    string `json:"from"`
}

type CallEnded struct {
	From    string `json:"from"`
	Channel string `json:"channel"`
}

type CallFailed struct {
	Reason string `json:"reason"`
	Target string `json:"target"`
}
