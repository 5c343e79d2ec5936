// Package push sends notifications through third-party push providers.
package push

import (
	"context"
	"errors"
	"strings"
	"time"
)

// Message is one push addressed to a single device token.
type Message struct {
	To    string
	Title string
	Body  string
	Data  map[string]any
	// TTL bounds how long the provider may hold an undeliverable message.
	TTL time.Duration
}

// Ticket is the provider's verdict for one message.
type Ticket struct {
	OK      bool
	Message string
	// DestinationInvalid marks a token the provider will never accept again.
	DestinationInvalid bool
}

// Provider delivers a single message. A non-nil error means the provider could not be
// reached or answered unexpectedly; a rejected message is reported in the Ticket.
type Provider interface {
	Send(ctx context.Context, m Message) (Ticket, error)
}

var (
	ErrInvalidMessage = errors.New("push: invalid message")
	ErrProvider       = errors.New("push: provider error")
)

// ValidExpoToken reports whether token has the shape of an Expo push token.
func ValidExpoToken(token string) bool {
	for _, prefix := range []string{"ExponentPushToken[", "ExpoPushToken["} {
		if strings.HasPrefix(token, prefix) && strings.HasSuffix(token, "]") && len(token) > len(prefix)+1 {
			return true
		}
	}
	return false
}
