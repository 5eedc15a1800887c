// Package realtime delivers chat events to connected websocket clients.
//
// Clients subscribe to named channels; the API publishes JSON frames to a
// channel and every subscriber on it receives a copy. Delivery is
// fire-and-forget: a slow client whose buffer is full misses frames.
package realtime

import (
	"context"
	"encoding/json"
)

const (
	EventNewMessage      = "new-message"
	EventNewConversation = "new-conversation"

	EventSubscribed   = "subscribed"
	EventUnsubscribed = "unsubscribed"
	EventError        = "error"
)

const (
	ActionSubscribe   = "subscribe"
	ActionUnsubscribe = "unsubscribe"
)

func UserChannel(userID string) string { return "user-" + userID }

func ConversationChannel(conversationID string) string { return "conversation-" + conversationID }

// Frame is what the server writes to a client.
type Frame struct {
	Channel string          `json:"channel"`
	Event   string          `json:"event"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Command is what a client writes to the server.
type Command struct {
	Action  string `json:"action"`
	Channel string `json:"channel"`
}

// Publisher sends an event to every subscriber of a channel.
type Publisher interface {
	Publish(ctx context.Context, channel, event string, data any) error
}

func newFrame(channel, event string, data any) (Frame, error) {
	f := Frame{Channel: channel, Event: event}
	if data == nil {
		return f, nil
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return f, err
	}
	f.Data = raw
	return f, nil
}
