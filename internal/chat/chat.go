// Package chat keeps the signed-in user's conversation list and the open
// conversation in step with REST fetches, user sends and push delivery.
package chat

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"storefront/internal/client"
	"storefront/internal/models"
	"storefront/internal/notify"
)

const (
	minSearchLen = 2
	// seenLimit bounds the pushed message ids remembered per conversation.
	seenLimit = 512
)

type API interface {
	ListConversations(ctx context.Context) ([]models.Conversation, error)
	GetConversation(ctx context.Context, id string) (*models.Conversation, error)
	SendMessage(ctx context.Context, conversationID, content, receiverID string) (*models.Message, error)
	CreateConversation(ctx context.Context, req models.CreateConversationRequest) (*models.Conversation, error)
	MarkRead(ctx context.Context, req models.MarkReadRequest) error
	SearchUsers(ctx context.Context, query string) ([]models.User, error)
}

type Session interface {
	UserID() string
}

type Options struct {
	API      API
	Session  Session
	Notifier notify.Notifier
	Logger   logrus.FieldLogger
	Clock    func() time.Time
}

type Controller struct {
	api     API
	session Session
	notify  notify.Notifier
	log     logrus.FieldLogger
	now     func() time.Time

	mu            sync.Mutex
	conversations []models.Conversation
	current       *models.Conversation
	searchResults []models.User
	loading       int
	focused       bool

	// Each fetch kind captures its generation; a result whose generation
	// has moved on is dropped.
	listGen, convGen, searchGen uint64

	// seen holds, per conversation, the ids of messages already applied
	// to the list.
	seen map[string]map[string]struct{}

	watchers []func(conversationID string)
}

func New(opts Options) *Controller {
	log := opts.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}
	n := opts.Notifier
	if n == nil {
		n = notify.Log{Logger: log}
	}
	now := opts.Clock
	if now == nil {
		now = time.Now
	}
	return &Controller{
		api:     opts.API,
		session: opts.Session,
		notify:  n,
		log:     log.WithField("component", "chat"),
		now:     now,
	}
}

// OnCurrentChange registers fn to run whenever the open conversation
// changes. fn receives "" when the conversation is closed.
func (c *Controller) OnCurrentChange(fn func(conversationID string)) {
	c.mu.Lock()
	c.watchers = append(c.watchers, fn)
	c.mu.Unlock()
}

func (c *Controller) Conversations() []models.Conversation {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]models.Conversation(nil), c.conversations...)
}

// Current returns a copy of the open conversation, or nil.
func (c *Controller) Current() *models.Conversation {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil {
		return nil
	}
	conv := *c.current
	conv.Messages = append([]models.Message(nil), c.current.Messages...)
	return &conv
}

func (c *Controller) SearchResults() []models.User {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]models.User(nil), c.searchResults...)
}

func (c *Controller) Loading() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loading > 0
}

func (c *Controller) Focused() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.focused
}

// TotalUnread sums unread counts over the cached list.
func (c *Controller) TotalUnread() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, conv := range c.conversations {
		n += conv.UnreadCount
	}
	return n
}

func (c *Controller) FetchConversations(ctx context.Context) {
	c.mu.Lock()
	c.listGen++
	gen := c.listGen
	c.mu.Unlock()
	defer c.begin()()

	list, err := c.api.ListConversations(ctx)
	if err != nil {
		c.log.WithError(err).Error("fetch conversations")
		c.notify.Error("Failed to load conversations")
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.listGen {
		c.log.Debug("discarding stale conversation list")
		return
	}
	sortByActivity(list)
	c.conversations = list
}

// FetchConversation opens id with its full history and zeroes its unread
// count, mirroring the server which marks the messages read.
func (c *Controller) FetchConversation(ctx context.Context, id string) {
	c.mu.Lock()
	c.convGen++
	gen := c.convGen
	c.mu.Unlock()
	defer c.begin()()

	conv, err := c.api.GetConversation(ctx, id)
	if err != nil {
		c.log.WithError(err).WithField("conversation_id", id).Error("fetch conversation")
		if client.IsNotFound(err) {
			c.notify.Error("Conversation not found")
		} else {
			c.notify.Error("Failed to load conversation")
		}
		return
	}

	c.mu.Lock()
	if gen != c.convGen {
		c.mu.Unlock()
		return
	}
	conv.UnreadCount = 0
	changed := c.current == nil || c.current.ID != conv.ID
	c.current = conv
	c.focused = true
	if i := c.indexOf(conv.ID); i >= 0 {
		c.conversations[i].UnreadCount = 0
	}
	watchers := c.watchers
	c.mu.Unlock()

	if changed {
		notifyWatchers(watchers, conv.ID)
	}
}

// SetCurrentConversation switches the open conversation without fetching.
// nil closes it.
func (c *Controller) SetCurrentConversation(conv *models.Conversation) {
	c.mu.Lock()
	c.convGen++
	prev := ""
	if c.current != nil {
		prev = c.current.ID
	}
	next := ""
	if conv != nil {
		cp := *conv
		c.current = &cp
		next = cp.ID
	} else {
		c.current = nil
		c.focused = false
	}
	watchers := c.watchers
	c.mu.Unlock()

	if prev != next {
		notifyWatchers(watchers, next)
	}
}

// SetFocused records whether the open conversation is on screen.
func (c *Controller) SetFocused(focused bool) {
	c.mu.Lock()
	c.focused = focused
	c.mu.Unlock()
}

// SendMessage posts content and reports whether it was accepted.
func (c *Controller) SendMessage(ctx context.Context, conversationID, content, receiverID string) bool {
	content = strings.TrimSpace(content)
	if content == "" {
		return false
	}
	defer c.begin()()

	msg, err := c.api.SendMessage(ctx, conversationID, content, receiverID)
	if err != nil {
		c.log.WithError(err).WithField("conversation_id", conversationID).Error("send message")
		c.notify.Error("Failed to send message")
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current != nil && c.current.ID == conversationID {
		appendUnique(c.current, *msg)
	}
	if i := c.indexOf(conversationID); i >= 0 && c.markSeen(conversationID, msg.ID) {
		c.touch(i, *msg)
		sortByActivity(c.conversations)
	}
	return true
}

// CreateConversation returns the new conversation's id, or false on failure.
func (c *Controller) CreateConversation(ctx context.Context, topic string, userIDs []string, initialMessage string) (string, bool) {
	return c.create(ctx, models.CreateConversationRequest{
		Topic:          topic,
		UserIDs:        userIDs,
		InitialMessage: initialMessage,
	})
}

// ContactSupport opens a conversation with every admin.
func (c *Controller) ContactSupport(ctx context.Context, topic, initialMessage string) (string, bool) {
	return c.create(ctx, models.CreateConversationRequest{
		Topic:          topic,
		InitialMessage: initialMessage,
		Support:        true,
	})
}

func (c *Controller) create(ctx context.Context, req models.CreateConversationRequest) (string, bool) {
	defer c.begin()()

	conv, err := c.api.CreateConversation(ctx, req)
	if err != nil {
		c.log.WithError(err).WithField("topic", req.Topic).Error("create conversation")
		c.notify.Error("Failed to create conversation")
		return "", false
	}
	c.FetchConversations(ctx)
	return conv.ID, true
}

// MarkAsRead is best effort. Failures are logged only.
func (c *Controller) MarkAsRead(ctx context.Context, messageIDs []string, conversationID string) {
	if len(messageIDs) == 0 && conversationID == "" {
		return
	}
	err := c.api.MarkRead(ctx, models.MarkReadRequest{MessageIDs: messageIDs, ConversationID: conversationID})
	if err != nil {
		c.log.WithError(err).WithField("conversation_id", conversationID).Warn("mark messages read")
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if conversationID != "" {
		if i := c.indexOf(conversationID); i >= 0 {
			c.conversations[i].UnreadCount = 0
		}
	}
	if c.current != nil {
		ids := make(map[string]bool, len(messageIDs))
		for _, id := range messageIDs {
			ids[id] = true
		}
		for i := range c.current.Messages {
			if ids[c.current.Messages[i].ID] || c.current.ID == conversationID {
				c.current.Messages[i].Read = true
			}
		}
	}
}

// SearchUsers replaces the search results. Queries shorter than two
// characters clear them without a request.
func (c *Controller) SearchUsers(ctx context.Context, query string) {
	query = strings.TrimSpace(query)
	c.mu.Lock()
	c.searchGen++
	gen := c.searchGen
	if len([]rune(query)) < minSearchLen {
		c.searchResults = nil
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()

	users, err := c.api.SearchUsers(ctx, query)
	if err != nil {
		c.log.WithError(err).WithField("query", query).Warn("search users")
		users = nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if gen == c.searchGen {
		c.searchResults = users
	}
}

// AddMessageToConversation applies a pushed message. Messages already seen
// are ignored. The unread count grows only for messages addressed to the
// current user in a conversation that is not open and focused.
func (c *Controller) AddMessageToConversation(msg models.Message) {
	me := c.session.UserID()

	c.mu.Lock()
	defer c.mu.Unlock()

	viewing := c.current != nil && c.current.ID == msg.ConversationID
	if viewing && !appendUnique(c.current, msg) {
		return
	}

	i := c.indexOf(msg.ConversationID)
	if i < 0 {
		c.log.WithField("conversation_id", msg.ConversationID).Debug("message for unknown conversation")
		return
	}
	conv := &c.conversations[i]
	if conv.LastMessage != nil && conv.LastMessage.ID == msg.ID {
		return
	}
	if !c.markSeen(msg.ConversationID, msg.ID) {
		return
	}
	c.touch(i, msg)
	if msg.AddressedTo(me) && msg.SenderID != me && !(viewing && c.focused) {
		conv.UnreadCount++
	}
	sortByActivity(c.conversations)
}

// AddConversation prepends a pushed conversation unless it is already listed.
func (c *Controller) AddConversation(conv models.Conversation) {
	c.mu.Lock()
	if c.indexOf(conv.ID) >= 0 {
		c.mu.Unlock()
		return
	}
	c.conversations = append([]models.Conversation{conv}, c.conversations...)
	c.mu.Unlock()

	c.notify.Success(fmt.Sprintf("New conversation: %s", conv.Topic))
}

// Reset drops all state and invalidates in-flight fetches.
func (c *Controller) Reset() {
	c.mu.Lock()
	c.listGen++
	c.convGen++
	c.searchGen++
	hadCurrent := c.current != nil
	c.conversations = nil
	c.current = nil
	c.searchResults = nil
	c.focused = false
	c.seen = nil
	watchers := c.watchers
	c.mu.Unlock()

	if hadCurrent {
		notifyWatchers(watchers, "")
	}
}

// touch records msg as the latest activity of conversations[i] unless it
// predates the current last message. Callers hold mu.
func (c *Controller) touch(i int, msg models.Message) {
	last := c.conversations[i].LastMessage
	if last != nil && !msg.CreatedAt.IsZero() && msg.CreatedAt.Before(last.CreatedAt) {
		return
	}
	m := msg
	c.conversations[i].LastMessage = &m
	at := msg.CreatedAt
	if at.IsZero() {
		at = c.now()
	}
	c.conversations[i].UpdatedAt = at
}

// markSeen records msgID for the conversation and reports whether it was
// new. Callers hold mu.
func (c *Controller) markSeen(conversationID, msgID string) bool {
	if c.seen == nil {
		c.seen = make(map[string]map[string]struct{})
	}
	ids := c.seen[conversationID]
	if _, ok := ids[msgID]; ok {
		return false
	}
	if ids == nil || len(ids) >= seenLimit {
		ids = make(map[string]struct{})
		c.seen[conversationID] = ids
	}
	ids[msgID] = struct{}{}
	return true
}

func (c *Controller) indexOf(id string) int {
	for i := range c.conversations {
		if c.conversations[i].ID == id {
			return i
		}
	}
	return -1
}

func (c *Controller) begin() func() {
	c.mu.Lock()
	c.loading++
	c.mu.Unlock()
	return func() {
		c.mu.Lock()
		c.loading--
		c.mu.Unlock()
	}
}

// appendUnique appends msg unless a message with its id is present.
func appendUnique(conv *models.Conversation, msg models.Message) bool {
	for _, m := range conv.Messages {
		if m.ID == msg.ID {
			return false
		}
	}
	conv.Messages = append(conv.Messages, msg)
	return true
}

func sortByActivity(list []models.Conversation) {
	sort.SliceStable(list, func(i, j int) bool {
		return list[i].UpdatedAt.After(list[j].UpdatedAt)
	})
}

func notifyWatchers(watchers []func(string), id string) {
	for _, fn := range watchers {
		fn(id)
	}
}
