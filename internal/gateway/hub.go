// Package gateway is the websocket transport for call signaling and status updates.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"callme/internal/auth"
	"callme/internal/presence"
	"callme/internal/signaling"
	"callme/internal/users"
	"callme/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"
)

// Inbound event names.
const (
	EventRegister    = "register"
	EventCallRequest = "callRequest"
	EventAcceptCall  = "acceptCall"
	EventCallEnded   = "callEnded"

	EventStatusUpdate = "statusUpdate"
	EventError        = "error"
)

// Signaler is the call signaling core as seen by the transport.
type Signaler interface {
	HandleRegister(userID string, conn presence.Conn)
	HandleDisconnect(conn presence.Conn)
	HandleCallRequest(ctx context.Context, ev signaling.CallEvent) (signaling.Outcome, error)
	HandleCallAccept(ctx context.Context, callerID, calleeID, channelID string) bool
	HandleCallEnd(ctx context.Context, from, to, channelID string) (signaling.Outcome, error)
}

type Config struct {
	SendBuffer     int
	WriteWait      time.Duration
	PongWait       time.Duration
	PingPeriod     time.Duration
	MaxMessageSize int64

	// RateLimit is inbound events per second per connection.
	RateLimit float64
	RateBurst int
}

func (c Config) withDefaults() Config {
	out := c
	if out.SendBuffer <= 0 {
		out.SendBuffer = 64
	}
	if out.WriteWait <= 0 {
		out.WriteWait = 5 * time.Second
	}
	if out.PongWait <= 0 {
		out.PongWait = 60 * time.Second
	}
	if out.PingPeriod <= 0 || out.PingPeriod >= out.PongWait {
		out.PingPeriod = out.PongWait * 9 / 10
	}
	if out.MaxMessageSize <= 0 {
		out.MaxMessageSize = 8 << 10
	}
	if out.RateLimit <= 0 {
		out.RateLimit = 10
	}
	if out.RateBurst <= 0 {
		out.RateBurst = 20
	}
	return out
}

// Hub owns every open connection. Presence (who is registered as whom) lives in the
// signaling core; the hub only knows which sockets are open.
type Hub struct {
	core     Signaler
	cfg      Config
	log      *slog.Logger
	upgrader websocket.Upgrader

	mu    sync.RWMutex
	conns map[string]*Conn
}

func NewHub(core Signaler, cfg Config, log *slog.Logger) *Hub {
	if log == nil {
		log = slog.Default()
	}
	return &Hub{
		core: core,
		cfg:  cfg.withDefaults(),
		log:  log,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		conns: make(map[string]*Conn),
	}
}

// Handler upgrades an authenticated request. It must run after auth.RequireAccessToken.
func (h *Hub) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		phone, err := auth.Phone(c.Request.Context())
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "error": "unauthorized"})
			return
		}
		ws, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			logger.FromGin(c).Warn("websocket upgrade failed", "err", err)
			return
		}
		h.Serve(context.WithoutCancel(c.Request.Context()), ws, phone)
	}
}

// Serve runs the connection until the client goes away. Events from one connection
// are handled one at a time, in arrival order.
func (h *Hub) Serve(ctx context.Context, ws wsConn, phone string) {
	conn := &Conn{
		id:      uuid.NewString(),
		phone:   phone,
		ws:      ws,
		send:    make(chan []byte, h.cfg.SendBuffer),
		done:    make(chan struct{}),
		limiter: rate.NewLimiter(rate.Limit(h.cfg.RateLimit), h.cfg.RateBurst),
	}
	conn.log = h.log.With("conn_id", conn.id, "phone", phone)
	ctx = logger.With(ctx, conn.log)

	h.add(conn)
	conn.log.Debug("websocket connected")
	defer func() {
		h.core.HandleDisconnect(conn)
		h.drop(conn)
		conn.Close()
		conn.log.Debug("websocket disconnected")
	}()

	go conn.writePump(h.cfg)

	ws.SetReadLimit(h.cfg.MaxMessageSize)
	_ = ws.SetReadDeadline(time.Now().Add(h.cfg.PongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(h.cfg.PongWait))
	})

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				conn.log.Debug("read failed", "err", err)
			}
			return
		}
		h.dispatch(ctx, conn, data)
	}
}

// Broadcast sends event to every open connection and reports how many accepted it.
func (h *Hub) Broadcast(event string, payload any) int {
	h.mu.RLock()
	targets := make([]*Conn, 0, len(h.conns))
	for _, c := range h.conns {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	n := 0
	for _, c := range targets {
		if err := c.Emit(event, payload); err != nil {
			c.log.Debug("broadcast skipped", "event", event, "err", err)
			continue
		}
		n++
	}
	return n
}

// Len returns the number of open connections.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

// Shutdown closes every connection.
func (h *Hub) Shutdown() {
	h.mu.RLock()
	targets := make([]*Conn, 0, len(h.conns))
	for _, c := range h.conns {
		targets = append(targets, c)
	}
	h.mu.RUnlock()
	for _, c := range targets {
		c.Close()
	}
}

func (h *Hub) add(c *Conn) {
	h.mu.Lock()
	h.conns[c.id] = c
	n := len(h.conns)
	h.mu.Unlock()
	wsConnections.Set(float64(n))
}

func (h *Hub) drop(c *Conn) {
	h.mu.Lock()
	delete(h.conns, c.id)
	n := len(h.conns)
	h.mu.Unlock()
	wsConnections.Set(float64(n))
}

type registerPayload struct {
	UserID string `json:"userId"`
}

type callPayload struct {
	From      string `json:"from"`
	To        string `json:"to"`
	ChannelID string `json:"channelId"`
}

type errorPayload struct {
	Error string `json:"error"`
}

var (
	errNotRegistered = errors.New("register first")
	errIdentity      = errors.New("identity does not match token")
	errMissingFields = errors.New("from and to are required")
)

func (h *Hub) dispatch(ctx context.Context, c *Conn, data []byte) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		h.reply(c, "invalid frame")
		return
	}
	label := eventLabel(env.Type)
	if !c.limiter.Allow() {
		inboundEvents.WithLabelValues(label, "rate_limited").Inc()
		h.reply(c, "rate limited")
		return
	}

	var err error
	switch env.Type {
	case EventRegister:
		err = h.handleRegister(c, env.Payload)
	case EventCallRequest, EventAcceptCall, EventCallEnded:
		err = h.handleCall(ctx, c, env.Type, env.Payload)
	default:
		err = errors.New("unknown event " + env.Type)
	}

	if err != nil {
		inboundEvents.WithLabelValues(label, "rejected").Inc()
		c.log.Debug("event rejected", "type", env.Type, "err", err)
		h.reply(c, err.Error())
		return
	}
	inboundEvents.WithLabelValues(label, "ok").Inc()
}

func eventLabel(t string) string {
	switch t {
	case EventRegister, EventCallRequest, EventAcceptCall, EventCallEnded:
		return t
	}
	return "unknown"
}

func (h *Hub) handleRegister(c *Conn, raw json.RawMessage) error {
	var p registerPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return errors.New("invalid register payload")
	}
	userID, err := users.NormalizePhone(p.UserID)
	if err != nil {
		return errors.New("invalid userId")
	}
	if userID != c.phone {
		return errIdentity
	}
	c.setRegistered(userID)
	h.core.HandleRegister(userID, c)
	c.log.Debug("registered", "user", userID)
	return nil
}

func (h *Hub) handleCall(ctx context.Context, c *Conn, event string, raw json.RawMessage) error {
	me := c.registeredAs()
	if me == "" {
		return errNotRegistered
	}
	var p callPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return errors.New("invalid call payload")
	}
	if p.From == "" || p.To == "" {
		return errMissingFields
	}
	from, err := users.NormalizePhone(p.From)
	if err != nil || from != me {
		return errIdentity
	}
	to, err := users.NormalizePhone(p.To)
	if err != nil {
		return errors.New("invalid to")
	}

	switch event {
	case EventCallRequest:
		_, err = h.core.HandleCallRequest(ctx, signaling.CallEvent{CallerID: from, CalleeID: to, ChannelID: p.ChannelID})
	case EventAcceptCall:
		// the accepting party is "from"; the original caller is "to".
		h.core.HandleCallAccept(ctx, to, from, p.ChannelID)
	case EventCallEnded:
		_, err = h.core.HandleCallEnd(ctx, from, to, p.ChannelID)
	}
	return err
}

func (h *Hub) reply(c *Conn, msg string) {
	if err := c.Emit(EventError, errorPayload{Error: msg}); err != nil {
		c.log.Debug("error reply dropped", "err", err)
	}
}
