package push

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sideshow/apns2"
)

func TestValidExpoToken(t *testing.T) {
	cases := map[string]bool{
		"ExponentPushToken[abc]": true,
		"ExpoPushToken[abc]":     true,
		"ExponentPushToken[]":    false,
		"abc":                    false,
		"":                       false,
	}
	for in, want := range cases {
		if got := ValidExpoToken(in); got != want {
			t.Fatalf("ValidExpoToken(%q)=%v want %v", in, got, want)
		}
	}
}

func TestExpoClient_SendBatchMapsTickets(t *testing.T) {
	var gotAuth string
	var gotBody []expoMessage
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_, _ = w.Write([]byte(`{"data":[
			{"status":"ok","id":"1"},
			{"status":"error","message":"gone","details":{"error":"DeviceNotRegistered"}},
			{"status":"error","message":"slow down","details":{"error":"MessageRateExceeded"}}
		]}`))
	}))
	defer srv.Close()

	c := NewExpoClient(ExpoConfig{URL: srv.URL, AccessToken: "tok"}, srv.Client())
	tickets, err := c.SendBatch(context.Background(), []Message{
		{To: "ExponentPushToken[a]", Title: "t", TTL: 30 * time.Second},
		{To: "ExponentPushToken[b]"},
		{To: "ExponentPushToken[c]"},
	})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if gotAuth != "Bearer tok" {
		t.Fatalf("expected bearer header, got %q", gotAuth)
	}
	if len(gotBody) != 3 || gotBody[0].TTL != 30 {
		t.Fatalf("unexpected request body %+v", gotBody)
	}
	if !tickets[0].OK || tickets[0].DestinationInvalid {
		t.Fatalf("ticket 0: %+v", tickets[0])
	}
	if tickets[1].OK || !tickets[1].DestinationInvalid {
		t.Fatalf("ticket 1: %+v", tickets[1])
	}
	if tickets[2].OK || tickets[2].DestinationInvalid {
		t.Fatalf("ticket 2: %+v", tickets[2])
	}
}

func TestExpoClient_HTTPErrorIsProviderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewExpoClient(ExpoConfig{URL: srv.URL}, srv.Client())
	if _, err := c.Send(context.Background(), Message{To: "ExponentPushToken[a]"}); !errors.Is(err, ErrProvider) {
		t.Fatalf("expected ErrProvider, got %v", err)
	}
}

type stubPusher struct {
	got  *apns2.Notification
	resp *apns2.Response
	err  error
}

func (s *stubPusher) PushWithContext(_ apns2.Context, n *apns2.Notification) (*apns2.Response, error) {
	s.got = n
	return s.resp, s.err
}

func TestVoipClient_Delivered(t *testing.T) {
	p := &stubPusher{resp: &apns2.Response{StatusCode: http.StatusOK}}
	c := newVoipClient(p, "app.callme.voip")
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	c.clock = func() time.Time { return now }

	tk, err := c.Send(context.Background(), Message{To: "abcd", Data: map[string]any{"from": "+1"}, TTL: 30 * time.Second})
	if err != nil || !tk.OK {
		t.Fatalf("expected ok ticket, got %+v err=%v", tk, err)
	}
	if p.got.PushType != apns2.PushTypeVOIP || p.got.Topic != "app.callme.voip" || p.got.Priority != apns2.PriorityHigh {
		t.Fatalf("unexpected notification %+v", p.got)
	}
	if !p.got.Expiration.Equal(now.Add(30 * time.Second)) {
		t.Fatalf("unexpected expiration %v", p.got.Expiration)
	}
}

func TestVoipClient_InvalidToken(t *testing.T) {
	for _, resp := range []*apns2.Response{
		{StatusCode: http.StatusBadRequest, Reason: apns2.ReasonBadDeviceToken},
		{StatusCode: http.StatusGone, Reason: apns2.ReasonUnregistered},
	} {
		c := newVoipClient(&stubPusher{resp: resp}, "t")
		tk, err := c.Send(context.Background(), Message{To: "abcd"})
		if err != nil {
			t.Fatalf("unexpected err %v", err)
		}
		if tk.OK || !tk.DestinationInvalid {
			t.Fatalf("expected invalid destination for %s, got %+v", resp.Reason, tk)
		}
	}
}

func TestVoipClient_TransientFailure(t *testing.T) {
	c := newVoipClient(&stubPusher{resp: &apns2.Response{StatusCode: http.StatusServiceUnavailable, Reason: apns2.ReasonServiceUnavailable}}, "t")
	tk, err := c.Send(context.Background(), Message{To: "abcd"})
	if err != nil || tk.OK || tk.DestinationInvalid {
		t.Fatalf("expected transient rejection, got %+v err=%v", tk, err)
	}

	c = newVoipClient(&stubPusher{err: errors.New("dial")}, "t")
	if _, err := c.Send(context.Background(), Message{To: "abcd"}); !errors.Is(err, ErrProvider) {
		t.Fatalf("expected ErrProvider, got %v", err)
	}
}
