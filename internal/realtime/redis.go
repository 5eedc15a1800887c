package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
)

// RedisBroadcaster fans events out through redis pub/sub so every API
// instance delivers them to its own hub.
type RedisBroadcaster struct {
	rdb    *redis.Client
	hub    *Hub
	prefix string
	log    logrus.FieldLogger
}

func NewRedisBroadcaster(rdb *redis.Client, hub *Hub, log logrus.FieldLogger) *RedisBroadcaster {
	return &RedisBroadcaster{rdb: rdb, hub: hub, prefix: "storefront:rt:", log: log}
}

func (b *RedisBroadcaster) Publish(ctx context.Context, channel, event string, data any) error {
	f, err := newFrame(channel, event, data)
	if err != nil {
		return fmt.Errorf("failed to encode %s event: %w", event, err)
	}
	payload, err := json.Marshal(f)
	if err != nil {
		return err
	}
	if err := b.rdb.Publish(ctx, b.prefix+channel, payload).Err(); err != nil {
		return fmt.Errorf("redis publish: %w", err)
	}
	return nil
}

// Run relays frames from redis into the local hub until ctx is cancelled.
func (b *RedisBroadcaster) Run(ctx context.Context) error {
	sub := b.rdb.PSubscribe(ctx, b.prefix+"*")
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("redis subscribe: %w", err)
	}

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var f Frame
			if err := json.Unmarshal([]byte(msg.Payload), &f); err != nil {
				b.log.WithError(err).Warn("dropping malformed realtime frame")
				continue
			}
			if f.Channel == "" {
				f.Channel = strings.TrimPrefix(msg.Channel, b.prefix)
			}
			b.hub.deliver(f)
		}
	}
}
