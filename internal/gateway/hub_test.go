package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"callme/internal/auth"
	"callme/internal/presence"
	"callme/internal/signaling"
	"callme/internal/users"
	"callme/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

type recordingSignaler struct {
	mu          sync.Mutex
	registered  []string
	requests    []signaling.CallEvent
	accepts     [][3]string
	ends        [][3]string
	disconnects chan string
}

func newRecordingSignaler() *recordingSignaler {
	return &recordingSignaler{disconnects: make(chan string, 4)}
}

func (s *recordingSignaler) HandleRegister(userID string, _ presence.Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.registered = append(s.registered, userID)
}

func (s *recordingSignaler) HandleDisconnect(conn presence.Conn) {
	s.disconnects <- conn.ID()
}

func (s *recordingSignaler) HandleCallRequest(_ context.Context, ev signaling.CallEvent) (signaling.Outcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, ev)
	return signaling.Outcome{Delivered: true, Via: signaling.ViaRealtime}, nil
}

func (s *recordingSignaler) HandleCallAccept(_ context.Context, callerID, calleeID, channelID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accepts = append(s.accepts, [3]string{callerID, calleeID, channelID})
	return true
}

func (s *recordingSignaler) HandleCallEnd(_ context.Context, from, to, channelID string) (signaling.Outcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ends = append(s.ends, [3]string{from, to, channelID})
	return signaling.Outcome{}, nil
}

// newTestServer authenticates via the "as" query param instead of a JWT.
func newTestServer(t *testing.T, core Signaler, cfg Config) (*Hub, *httptest.Server) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	hub := NewHub(core, cfg, logger.Discard())

	r := gin.New()
	r.GET("/ws", func(c *gin.Context) {
		if as := c.Query("as"); as != "" {
			c.Request = c.Request.WithContext(auth.WithIdentity(c.Request.Context(), as, "user"))
		}
		c.Next()
	}, hub.Handler())

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return hub, srv
}

func dial(t *testing.T, srv *httptest.Server, as string) *websocket.Conn {
	t.Helper()
	u := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?as=" + url.QueryEscape(as)
	ws, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = ws.Close() })
	return ws
}

func send(t *testing.T, ws *websocket.Conn, event string, payload any) {
	t.Helper()
	raw, _ := json.Marshal(payload)
	if err := ws.WriteJSON(Envelope{Type: event, Payload: raw}); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func read(t *testing.T, ws *websocket.Conn) Envelope {
	t.Helper()
	_ = ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	var env Envelope
	if err := ws.ReadJSON(&env); err != nil {
		t.Fatalf("read: %v", err)
	}
	return env
}

func readError(t *testing.T, ws *websocket.Conn) string {
	t.Helper()
	env := read(t, ws)
	if env.Type != EventError {
		t.Fatalf("expected error frame, got %s", env.Type)
	}
	var p errorPayload
	_ = json.Unmarshal(env.Payload, &p)
	return p.Error
}

func TestHandler_RequiresIdentity(t *testing.T) {
	_, srv := newTestServer(t, newRecordingSignaler(), Config{})
	u := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	_, resp, err := websocket.DefaultDialer.Dial(u, nil)
	if err == nil {
		t.Fatalf("expected dial to fail")
	}
	if resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %+v", resp)
	}
}

func TestRegister_MustMatchToken(t *testing.T) {
	core := newRecordingSignaler()
	_, srv := newTestServer(t, core, Config{})
	ws := dial(t, srv, "+111")

	send(t, ws, EventRegister, registerPayload{UserID: "+222"})
	if msg := readError(t, ws); msg != errIdentity.Error() {
		t.Fatalf("unexpected error %q", msg)
	}

	// normalized form of the same number is accepted
	send(t, ws, EventRegister, registerPayload{UserID: "00111"})
	send(t, ws, EventCallRequest, callPayload{From: "+111", To: "+222", ChannelID: "room"})

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		core.mu.Lock()
		n := len(core.requests)
		core.mu.Unlock()
		if n == 1 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	core.mu.Lock()
	defer core.mu.Unlock()
	if len(core.registered) != 1 || core.registered[0] != "+111" {
		t.Fatalf("unexpected registrations %v", core.registered)
	}
	if len(core.requests) != 1 || core.requests[0].CalleeID != "+222" || core.requests[0].ChannelID != "room" {
		t.Fatalf("unexpected requests %+v", core.requests)
	}
}

func TestCallEvents_RequireRegistrationAndOwnIdentity(t *testing.T) {
	core := newRecordingSignaler()
	_, srv := newTestServer(t, core, Config{})
	ws := dial(t, srv, "+111")

	send(t, ws, EventCallRequest, callPayload{From: "+111", To: "+222"})
	if msg := readError(t, ws); msg != errNotRegistered.Error() {
		t.Fatalf("unexpected error %q", msg)
	}

	send(t, ws, EventRegister, registerPayload{UserID: "+111"})
	send(t, ws, EventAcceptCall, callPayload{From: "+333", To: "+222"})
	if msg := readError(t, ws); msg != errIdentity.Error() {
		t.Fatalf("unexpected error %q", msg)
	}

	send(t, ws, "dance", nil)
	if msg := readError(t, ws); !strings.Contains(msg, "unknown event") {
		t.Fatalf("unexpected error %q", msg)
	}
}

func TestAcceptAndEnd_MapParties(t *testing.T) {
	core := newRecordingSignaler()
	_, srv := newTestServer(t, core, Config{})
	ws := dial(t, srv, "+222")

	send(t, ws, EventRegister, registerPayload{UserID: "+222"})
	send(t, ws, EventAcceptCall, callPayload{From: "+222", To: "+111", ChannelID: "room"})
	send(t, ws, EventCallEnded, callPayload{From: "+222", To: "+111", ChannelID: "room"})
	_ = ws.Close()

	select {
	case <-core.disconnects:
	case <-time.After(2 * time.Second):
		t.Fatalf("expected disconnect")
	}

	core.mu.Lock()
	defer core.mu.Unlock()
	if len(core.accepts) != 1 || core.accepts[0] != [3]string{"+111", "+222", "room"} {
		t.Fatalf("unexpected accepts %v", core.accepts)
	}
	if len(core.ends) != 1 || core.ends[0] != [3]string{"+222", "+111", "room"} {
		t.Fatalf("unexpected ends %v", core.ends)
	}
}

func TestRateLimit(t *testing.T) {
	core := newRecordingSignaler()
	_, srv := newTestServer(t, core, Config{RateLimit: 0.001, RateBurst: 1})
	ws := dial(t, srv, "+111")

	send(t, ws, EventRegister, registerPayload{UserID: "+111"})
	send(t, ws, EventRegister, registerPayload{UserID: "+111"})
	if msg := readError(t, ws); msg != "rate limited" {
		t.Fatalf("unexpected error %q", msg)
	}
}

func TestBroadcast(t *testing.T) {
	hub, srv := newTestServer(t, newRecordingSignaler(), Config{})
	a := dial(t, srv, "+1")
	b := dial(t, srv, "+2")

	deadline := time.Now().Add(2 * time.Second)
	for hub.Len() < 2 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if n := hub.Broadcast(EventStatusUpdate, map[string]any{"phone": "+1", "isAvailable": true}); n != 2 {
		t.Fatalf("expected 2 recipients, got %d", n)
	}
	for _, ws := range []*websocket.Conn{a, b} {
		if env := read(t, ws); env.Type != EventStatusUpdate {
			t.Fatalf("unexpected frame %s", env.Type)
		}
	}
}

func TestEndToEnd_IncomingCall(t *testing.T) {
	reg := presence.NewRegistry()
	dir := users.NewService(users.NewMemoryRepo())
	core := signaling.NewCore(reg, dir, signaling.DefaultChannels(reg, nil, nil, time.Second), signaling.WithLogger(logger.Discard()))
	_, srv := newTestServer(t, core, Config{})

	caller := dial(t, srv, "+1")
	callee := dial(t, srv, "+2")
	send(t, callee, EventRegister, registerPayload{UserID: "+2"})
	send(t, caller, EventRegister, registerPayload{UserID: "+1"})

	deadline := time.Now().Add(2 * time.Second)
	for reg.Len() < 2 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	send(t, caller, EventCallRequest, callPayload{From: "+1", To: "+2", ChannelID: "room-9"})

	env := read(t, callee)
	if env.Type != signaling.EventIncomingCall {
		t.Fatalf("expected incomingCall, got %s", env.Type)
	}
	var ic signaling.IncomingCall
	_ = json.Unmarshal(env.Payload, &ic)
	if ic.From != "+1" || ic.Channel != "room-9" {
		t.Fatalf("unexpected payload %+v", ic)
	}

	send(t, caller, EventCallRequest, callPayload{From: "+1", To: "+3", ChannelID: "room-9"})
	env = read(t, caller)
	if env.Type != signaling.EventCallFailed {
		t.Fatalf("expected callFailed, got %s", env.Type)
	}
}

func TestConn_EmitAfterClose(t *testing.T) {
	c := &Conn{id: "x", ws: nopWS{}, send: make(chan []byte, 1), done: make(chan struct{})}
	if err := c.Emit("a", nil); err != nil {
		t.Fatalf("unexpected err %v", err)
	}
	if err := c.Emit("b", nil); err != ErrBackpressure {
		t.Fatalf("expected backpressure, got %v", err)
	}
	c.Close()
	c.Close()
	if err := c.Emit("c", nil); err != ErrClosed {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}

type nopWS struct{}

func (nopWS) ReadMessage() (int, []byte, error)         { return 0, nil, nil }
func (nopWS) WriteMessage(int, []byte) error            { return nil }
func (nopWS) SetWriteDeadline(time.Time) error          { return nil }
func (nopWS) SetReadDeadline(time.Time) error           { return nil }
func (nopWS) SetReadLimit(int64)                        {}
func (nopWS) SetPongHandler(func(appData string) error) {}
func (nopWS) Close() error                              { return nil }
