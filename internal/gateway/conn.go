package gateway

import (
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"
)

var (
	ErrBackpressure = errors.New("gateway: send queue full")
	ErrClosed       = errors.New("gateway: connection closed")
)

// wsConn is the subset of *websocket.Conn the gateway uses.
type wsConn interface {
	ReadMessage() (int, []byte, error)
	WriteMessage(mt int, data []byte) error
	SetWriteDeadline(t time.Time) error
	SetReadDeadline(t time.Time) error
	SetReadLimit(limit int64)
	SetPongHandler(h func(appData string) error)
	Close() error
}

// Envelope is the wire frame in both directions.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Conn is one websocket client. It satisfies presence.Conn.
type Conn struct {
	id    string
	phone string // authenticated identity from the access token
	ws    wsConn
	send  chan []byte
	done  chan struct{}
	once  sync.Once

	limiter *rate.Limiter
	log     *slog.Logger

	mu         sync.Mutex
	registered string
}

func (c *Conn) ID() string { return c.id }

// Emit queues event for the write pump. It never blocks.
func (c *Conn) Emit(event string, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	frame, err := json.Marshal(Envelope{Type: event, Payload: raw})
	if err != nil {
		return err
	}
	return c.trySend(frame)
}

func (c *Conn) trySend(frame []byte) error {
	select {
	case <-c.done:
		return ErrClosed
	default:
	}
	select {
	case c.send <- frame:
		return nil
	case <-c.done:
		return ErrClosed
	default:
		return ErrBackpressure
	}
}

func (c *Conn) Close() {
	c.once.Do(func() {
		close(c.done)
		_ = c.ws.Close()
	})
}

func (c *Conn) registeredAs() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.registered
}

func (c *Conn) setRegistered(userID string) {
	c.mu.Lock()
	c.registered = userID
	c.mu.Unlock()
}

func (c *Conn) writePump(cfg Config) {
	ticker := time.NewTicker(cfg.PingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case <-c.done:
			return
		case frame := <-c.send:
			if err := c.ws.SetWriteDeadline(time.Now().Add(cfg.WriteWait)); err != nil {
				c.log.Debug("set write deadline", "err", err)
				return
			}
			if err := c.ws.WriteMessage(websocket.TextMessage, frame); err != nil {
				c.log.Debug("write failed", "err", err)
				return
			}
		case <-ticker.C:
			if err := c.ws.SetWriteDeadline(time.Now().Add(cfg.WriteWait)); err != nil {
				return
			}
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.log.Debug("ping failed", "err", err)
				return
			}
		}
	}
}
