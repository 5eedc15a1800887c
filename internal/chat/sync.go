package chat

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"storefront/internal/client"
	"storefront/internal/models"
	"storefront/internal/realtime"
)

// Subscriber is a push channel client such as *client.Realtime.
type Subscriber interface {
	Subscribe(channel string) error
	Unsubscribe(channel string) error
	On(channel, event string, handler client.EventHandler)
	Off(channel string)
}

// Sync feeds push events into a Controller. It listens on the user's own
// channel for new conversations and on the open conversation's channel for
// new messages, switching channels as the open conversation changes.
type Sync struct {
	ctl *Controller
	sub Subscriber
	log logrus.FieldLogger

	mu          sync.Mutex
	userChannel string
	convChannel string
	closed      bool
}

// Bind subscribes ctl to pushes for userID.
func Bind(ctl *Controller, sub Subscriber, userID string, log logrus.FieldLogger) (*Sync, error) {
	s := &Sync{
		ctl:         ctl,
		sub:         sub,
		log:         log.WithField("component", "chat-sync"),
		userChannel: realtime.UserChannel(userID),
	}

	sub.On(s.userChannel, realtime.EventNewConversation, func(data json.RawMessage) {
		var conv models.Conversation
		if err := json.Unmarshal(data, &conv); err != nil {
			s.log.WithError(err).Warn("decode pushed conversation")
			return
		}
		ctl.AddConversation(conv)
	})
	if err := sub.Subscribe(s.userChannel); err != nil {
		sub.Off(s.userChannel)
		return nil, fmt.Errorf("subscribe %s: %w", s.userChannel, err)
	}

	ctl.OnCurrentChange(s.follow)
	if cur := ctl.Current(); cur != nil {
		s.follow(cur.ID)
	}
	return s, nil
}

func (s *Sync) follow(conversationID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	next := ""
	if conversationID != "" {
		next = realtime.ConversationChannel(conversationID)
	}
	if next == s.convChannel {
		return
	}
	s.leave()
	if next == "" {
		return
	}

	s.sub.On(next, realtime.EventNewMessage, func(data json.RawMessage) {
		var msg models.Message
		if err := json.Unmarshal(data, &msg); err != nil {
			s.log.WithError(err).Warn("decode pushed message")
			return
		}
		s.ctl.AddMessageToConversation(msg)
	})
	if err := s.sub.Subscribe(next); err != nil {
		s.log.WithError(err).WithField("channel", next).Warn("subscribe to conversation")
		s.sub.Off(next)
		return
	}
	s.convChannel = next
}

// leave drops the conversation channel. Callers hold mu.
func (s *Sync) leave() {
	if s.convChannel == "" {
		return
	}
	s.sub.Off(s.convChannel)
	if err := s.sub.Unsubscribe(s.convChannel); err != nil {
		s.log.WithError(err).WithField("channel", s.convChannel).Debug("unsubscribe from conversation")
	}
	s.convChannel = ""
}

// Channels lists the channels currently subscribed.
func (s *Sync) Channels() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	out := []string{s.userChannel}
	if s.convChannel != "" {
		out = append(out, s.convChannel)
	}
	return out
}

// Close unsubscribes from every channel. The Sync ignores later changes.
func (s *Sync) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.leave()
	s.sub.Off(s.userChannel)
	return s.sub.Unsubscribe(s.userChannel)
}
