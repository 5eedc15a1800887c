package realtime

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

// Authorizer decides whether userID may subscribe to channel.
type Authorizer func(ctx context.Context, userID, channel string) bool

type client struct {
	userID string
	conn   *websocket.Conn
	send   chan Frame
	subs   map[string]struct{} // guarded by Hub.mu
}

// Hub tracks websocket clients per channel on this instance.
type Hub struct {
	mu        sync.RWMutex
	channels  map[string]map[*client]struct{}
	authorize Authorizer
	log       logrus.FieldLogger

	SendBuffer   int
	PingInterval time.Duration
	WriteTimeout time.Duration
}

func NewHub(authorize Authorizer, log logrus.FieldLogger) *Hub {
	return &Hub{
		channels:     make(map[string]map[*client]struct{}),
		authorize:    authorize,
		log:          log,
		SendBuffer:   64,
		PingInterval: 25 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
}

// Serve runs the connection for userID until the peer disconnects or ctx ends.
func (h *Hub) Serve(ctx context.Context, conn *websocket.Conn, userID string) {
	ctx, cancel := context.WithCancel(ctx)
	c := &client{
		userID: userID,
		conn:   conn,
		send:   make(chan Frame, h.SendBuffer),
		subs:   make(map[string]struct{}),
	}

	go h.writeLoop(ctx, c)
	defer func() {
		h.remove(c)
		cancel()
		_ = conn.Close(websocket.StatusNormalClosure, "bye")
	}()

	log := h.log.WithField("user_id", userID)
	log.Debug("realtime client connected")

	for {
		var cmd Command
		if err := wsjson.Read(ctx, conn, &cmd); err != nil {
			log.WithError(err).Debug("realtime client disconnected")
			return
		}

		switch cmd.Action {
		case ActionSubscribe:
			if cmd.Channel == "" || (h.authorize != nil && !h.authorize(ctx, userID, cmd.Channel)) {
				h.enqueue(c, errorFrame(cmd.Channel, "subscription denied"))
				continue
			}
			h.subscribe(c, cmd.Channel)
			h.enqueue(c, Frame{Channel: cmd.Channel, Event: EventSubscribed})
		case ActionUnsubscribe:
			h.unsubscribe(c, cmd.Channel)
			h.enqueue(c, Frame{Channel: cmd.Channel, Event: EventUnsubscribed})
		default:
			h.enqueue(c, errorFrame(cmd.Channel, fmt.Sprintf("unknown action %q", cmd.Action)))
		}
	}
}

// Publish implements Publisher for a single instance.
func (h *Hub) Publish(ctx context.Context, channel, event string, data any) error {
	f, err := newFrame(channel, event, data)
	if err != nil {
		return fmt.Errorf("failed to encode %s event: %w", event, err)
	}
	h.deliver(f)
	return nil
}

// Subscribers returns how many clients are subscribed to channel.
func (h *Hub) Subscribers(channel string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.channels[channel])
}

func (h *Hub) deliver(f Frame) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.channels[f.Channel] {
		select {
		case c.send <- f:
		default:
			h.log.WithFields(logrus.Fields{"user_id": c.userID, "channel": f.Channel}).
				Warn("realtime buffer full, dropping frame")
		}
	}
}

func (h *Hub) enqueue(c *client, f Frame) {
	select {
	case c.send <- f:
	default:
	}
}

func (h *Hub) subscribe(c *client, channel string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	set, ok := h.channels[channel]
	if !ok {
		set = make(map[*client]struct{})
		h.channels[channel] = set
	}
	set[c] = struct{}{}
	c.subs[channel] = struct{}{}
}

func (h *Hub) unsubscribe(c *client, channel string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.detach(c, channel)
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for channel := range c.subs {
		h.detach(c, channel)
	}
}

// detach requires h.mu held.
func (h *Hub) detach(c *client, channel string) {
	delete(c.subs, channel)
	if set, ok := h.channels[channel]; ok {
		delete(set, c)
		if len(set) == 0 {
			delete(h.channels, channel)
		}
	}
}

func (h *Hub) writeLoop(ctx context.Context, c *client) {
	ticker := time.NewTicker(h.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case f := <-c.send:
			writeCtx, cancel := context.WithTimeout(ctx, h.WriteTimeout)
			err := wsjson.Write(writeCtx, c.conn, f)
			cancel()
			if err != nil {
				return
			}
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			_ = c.conn.Ping(pingCtx)
			cancel()
		}
	}
}

func errorFrame(channel, msg string) Frame {
	f, _ := newFrame(channel, EventError, map[string]string{"message": msg})
	return f
}
