package push

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// ExpoConfig configures the Expo push API client.
type ExpoConfig struct {
	URL         string
	AccessToken string
	Timeout     time.Duration
}

// ExpoClient posts messages to the Expo push service.
type ExpoClient struct {
	url         string
	accessToken string
	hc          *http.Client
}

func NewExpoClient(cfg ExpoConfig, hc *http.Client) *ExpoClient {
	if hc == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		hc = &http.Client{Timeout: timeout}
	}
	return &ExpoClient{url: cfg.URL, accessToken: cfg.AccessToken, hc: hc}
}

type expoMessage struct {
	To       string         `json:"to"`
	Title    string         `json:"title,omitempty"`
	Body     string         `json:"body,omitempty"`
	Data     map[string]any `json:"data,omitempty"`
	Sound    string         `json:"sound,omitempty"`
	Priority string         `json:"priority,omitempty"`
	TTL      int            `json:"ttl,omitempty"`
}

type expoTicket struct {
	Status  string `json:"status"`
	ID      string `json:"id,omitempty"`
	Message string `json:"message,omitempty"`
	Details struct {
		Error string `json:"error,omitempty"`
	} `json:"details"`
}

type expoResponse struct {
	Data   []expoTicket `json:"data"`
	Errors []struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"errors,omitempty"`
}

func (c *ExpoClient) Send(ctx context.Context, m Message) (Ticket, error) {
	tickets, err := c.SendBatch(ctx, []Message{m})
	if err != nil {
		return Ticket{}, err
	}
	return tickets[0], nil
}

// SendBatch posts all messages in one request. Tickets are returned in message order.
func (c *ExpoClient) SendBatch(ctx context.Context, msgs []Message) ([]Ticket, error) {
	if len(msgs) == 0 {
		return nil, nil
	}
	body := make([]expoMessage, 0, len(msgs))
	for _, m := range msgs {
		if m.To == "" {
			return nil, ErrInvalidMessage
		}
		em := expoMessage{
			To:       m.To,
			Title:    m.Title,
			Body:     m.Body,
			Data:     m.Data,
			Sound:    "default",
			Priority: "high",
		}
		if m.TTL > 0 {
			em.TTL = int(m.TTL / time.Second)
		}
		body = append(body, em)
	}

	raw, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.accessToken)
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: expo: %v", ErrProvider, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: expo: read body: %v", ErrProvider, err)
	}
	if resp.StatusCode/100 != 2 {
		return nil, fmt.Errorf("%w: expo: status %d", ErrProvider, resp.StatusCode)
	}

	var out expoResponse
	if err := json.Unmarshal(payload, &out); err != nil {
		return nil, fmt.Errorf("%w: expo: decode: %v", ErrProvider, err)
	}
	if len(out.Errors) > 0 {
		return nil, fmt.Errorf("%w: expo: %s", ErrProvider, out.Errors[0].Message)
	}
	if len(out.Data) != len(msgs) {
		return nil, fmt.Errorf("%w: expo: got %d tickets for %d messages", ErrProvider, len(out.Data), len(msgs))
	}

	tickets := make([]Ticket, 0, len(out.Data))
	for _, t := range out.Data {
		tickets = append(tickets, Ticket{
			OK:                 t.Status == "ok",
			Message:            t.Message,
			DestinationInvalid: t.Status == "error" && t.Details.Error == "DeviceNotRegistered",
		})
	}
	return tickets, nil
}
