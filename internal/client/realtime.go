package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"storefront/internal/realtime"
)

// EventHandler receives the payload of one pushed event.
type EventHandler func(data json.RawMessage)

var ErrNotConnected = errors.New("realtime: not connected")

// Realtime subscribes to server push channels over a websocket.
// Handlers run on the read goroutine in delivery order.
type Realtime struct {
	url string
	log logrus.FieldLogger

	PingInterval time.Duration

	mu       sync.RWMutex
	conn     *websocket.Conn
	handlers map[string][]EventHandler
	done     chan struct{}

	writeMu sync.Mutex
}

// NewRealtime targets the /ws endpoint of baseURL, authenticating with token.
func NewRealtime(baseURL, token string, log logrus.FieldLogger) *Realtime {
	wsURL := strings.TrimRight(baseURL, "/")
	switch {
	case strings.HasPrefix(wsURL, "https"):
		wsURL = "wss" + wsURL[len("https"):]
	case strings.HasPrefix(wsURL, "http"):
		wsURL = "ws" + wsURL[len("http"):]
	}
	wsURL += "/ws?" + url.Values{"token": {token}}.Encode()

	return &Realtime{
		url:          wsURL,
		log:          log,
		PingInterval: 30 * time.Second,
		handlers:     make(map[string][]EventHandler),
	}
}

// Connect dials the server. Calling it on a connected client is a no-op.
func (r *Realtime) Connect(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.conn != nil {
		return nil
	}

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, r.url, nil)
	if err != nil {
		return fmt.Errorf("websocket dial: %w", err)
	}

	r.conn = conn
	r.done = make(chan struct{})

	go r.handleMessages(conn, r.done)
	go r.heartbeat(conn, r.done)
	return nil
}

// Close sends a close frame and drops the connection. Handlers are kept so a
// later Connect resumes delivery once channels are subscribed again.
func (r *Realtime) Close() error {
	r.mu.Lock()
	conn := r.conn
	if conn == nil {
		r.mu.Unlock()
		return nil
	}
	r.conn = nil
	close(r.done)
	r.mu.Unlock()

	r.writeMu.Lock()
	err := conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second),
	)
	r.writeMu.Unlock()

	conn.Close()
	if err != nil && !errors.Is(err, websocket.ErrCloseSent) {
		return fmt.Errorf("close message: %w", err)
	}
	return nil
}

func (r *Realtime) Subscribe(channel string) error {
	return r.send(realtime.Command{Action: realtime.ActionSubscribe, Channel: channel})
}

func (r *Realtime) Unsubscribe(channel string) error {
	return r.send(realtime.Command{Action: realtime.ActionUnsubscribe, Channel: channel})
}

// On registers handler for event on channel.
func (r *Realtime) On(channel, event string, handler EventHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := channel + ":" + event
	r.handlers[key] = append(r.handlers[key], handler)
}

// Off removes every handler registered for channel.
func (r *Realtime) Off(channel string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	prefix := channel + ":"
	for key := range r.handlers {
		if strings.HasPrefix(key, prefix) {
			delete(r.handlers, key)
		}
	}
}

func (r *Realtime) send(cmd realtime.Command) error {
	r.mu.RLock()
	conn := r.conn
	r.mu.RUnlock()
	if conn == nil {
		return ErrNotConnected
	}

	r.writeMu.Lock()
	defer r.writeMu.Unlock()
	if err := conn.WriteJSON(cmd); err != nil {
		return fmt.Errorf("send %s: %w", cmd.Action, err)
	}
	return nil
}

func (r *Realtime) handleMessages(conn *websocket.Conn, done chan struct{}) {
	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-done:
			default:
				r.log.WithError(err).Warn("realtime connection lost")
			}
			return
		}

		var frame realtime.Frame
		if err := json.Unmarshal(message, &frame); err != nil {
			r.log.WithError(err).Debug("skipping malformed frame")
			continue
		}
		if frame.Event == realtime.EventError {
			r.log.WithField("channel", frame.Channel).WithField("data", string(frame.Data)).Warn("realtime error frame")
			continue
		}
		r.dispatch(frame)
	}
}

func (r *Realtime) dispatch(frame realtime.Frame) {
	r.mu.RLock()
	handlers := append([]EventHandler(nil), r.handlers[frame.Channel+":"+frame.Event]...)
	r.mu.RUnlock()

	for _, h := range handlers {
		h(frame.Data)
	}
}

func (r *Realtime) heartbeat(conn *websocket.Conn, done chan struct{}) {
	ticker := time.NewTicker(r.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			r.writeMu.Lock()
			err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second))
			r.writeMu.Unlock()
			if err != nil {
				r.log.WithError(err).Debug("realtime ping failed")
				return
			}
		}
	}
}
