package push

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/sideshow/apns2"
	"github.com/sideshow/apns2/token"
)

// APNsConfig holds the token-based auth material for VoIP pushes.
type APNsConfig struct {
	KeyPath    string
	KeyID      string
	TeamID     string
	Topic      string
	Production bool
}

type pusher interface {
	PushWithContext(ctx apns2.Context, n *apns2.Notification) (*apns2.Response, error)
}

// VoipClient delivers PushKit VoIP notifications through APNs.
type VoipClient struct {
	client pusher
	topic  string
	clock  func() time.Time
}

func NewVoipClient(cfg APNsConfig) (*VoipClient, error) {
	key, err := token.AuthKeyFromFile(cfg.KeyPath)
	if err != nil {
		return nil, fmt.Errorf("push: load apns key: %w", err)
	}
	tok := &token.Token{AuthKey: key, KeyID: cfg.KeyID, TeamID: cfg.TeamID}

	client := apns2.NewTokenClient(tok)
	if cfg.Production {
		client = client.Production()
	} else {
		client = client.Development()
	}
	return newVoipClient(client, cfg.Topic), nil
}

func newVoipClient(p pusher, topic string) *VoipClient {
	return &VoipClient{client: p, topic: topic, clock: time.Now}
}

// Reasons APNs returns for tokens that will never become valid again.
var invalidTokenReasons = map[string]bool{
	apns2.ReasonBadDeviceToken:         true,
	apns2.ReasonUnregistered:           true,
	apns2.ReasonDeviceTokenNotForTopic: true,
}

func (c *VoipClient) Send(ctx context.Context, m Message) (Ticket, error) {
	if m.To == "" {
		return Ticket{}, ErrInvalidMessage
	}
	payload, err := json.Marshal(m.Data)
	if err != nil {
		return Ticket{}, err
	}

	n := &apns2.Notification{
		DeviceToken: m.To,
		Topic:       c.topic,
		PushType:    apns2.PushTypeVOIP,
		Priority:    apns2.PriorityHigh,
		Payload:     payload,
	}
	if m.TTL > 0 {
		n.Expiration = c.clock().Add(m.TTL)
	}

	resp, err := c.client.PushWithContext(ctx, n)
	if err != nil {
		return Ticket{}, fmt.Errorf("%w: apns: %v", ErrProvider, err)
	}
	if resp.Sent() {
		return Ticket{OK: true}, nil
	}
	return Ticket{
		Message:            resp.Reason,
		DestinationInvalid: invalidTokenReasons[resp.Reason] || resp.StatusCode == http.StatusGone,
	}, nil
}
