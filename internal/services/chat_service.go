package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"storefront/internal/models"
	"storefront/internal/realtime"
)

type ChatService struct {
	db    *gorm.DB
	users *AuthService
	pub   realtime.Publisher
	log   logrus.FieldLogger
	now   func() time.Time
}

func NewChatService(db *gorm.DB, users *AuthService, pub realtime.Publisher, log logrus.FieldLogger) *ChatService {
	return &ChatService{db: db, users: users, pub: pub, log: log, now: time.Now}
}

// ListConversations returns the user's conversations, most recently active
// first, each with its last message and the user's unread count.
func (s *ChatService) ListConversations(ctx context.Context, userID string) ([]models.Conversation, error) {
	db := s.db.WithContext(ctx)

	convs := []models.Conversation{}
	err := db.Preload("Participants.User").
		Where("id IN (?)", db.Model(&models.Participant{}).Select("conversation_id").Where("user_id = ?", userID)).
		Order("updated_at desc").
		Find(&convs).Error
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}

	for i := range convs {
		if err := s.decorate(db, &convs[i], userID); err != nil {
			return nil, err
		}
	}
	return convs, nil
}

// GetConversation returns the conversation with its messages oldest first and
// marks every message addressed to userID as read.
func (s *ChatService) GetConversation(ctx context.Context, id, userID string) (*models.Conversation, error) {
	db := s.db.WithContext(ctx)
	conv, err := s.participantOf(db, id, userID)
	if err != nil {
		return nil, err
	}

	err = db.Model(&models.Message{}).
		Where("conversation_id = ? AND receiver_id = ? AND read = ?", id, userID, false).
		Update("read", true).Error
	if err != nil {
		return nil, fmt.Errorf("mark conversation read: %w", err)
	}

	conv.Messages = []models.Message{}
	if err := db.Preload("Sender").Where("conversation_id = ?", id).Order("created_at asc").Find(&conv.Messages).Error; err != nil {
		return nil, fmt.Errorf("load messages: %w", err)
	}
	if n := len(conv.Messages); n > 0 {
		conv.LastMessage = &conv.Messages[n-1]
	}
	return conv, nil
}

// SendMessage stores a message and broadcasts it on the conversation channel.
// An invalid or missing receiver falls back to another participant.
func (s *ChatService) SendMessage(ctx context.Context, convID, senderID string, req models.SendMessageRequest) (*models.Message, error) {
	content := strings.TrimSpace(req.Content)
	if content == "" {
		return nil, fmt.Errorf("empty message: %w", ErrInvalidInput)
	}

	db := s.db.WithContext(ctx)
	conv, err := s.participantOf(db, convID, senderID)
	if err != nil {
		return nil, err
	}

	msg := models.Message{
		Content:        content,
		SenderID:       senderID,
		ConversationID: convID,
		ReceiverID:     pickReceiver(conv, senderID, req.ReceiverID),
	}
	err = db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&msg).Error; err != nil {
			return err
		}
		return tx.Model(&models.Conversation{ID: convID}).Update("updated_at", s.now()).Error
	})
	if err != nil {
		return nil, fmt.Errorf("send message: %w", err)
	}
	if err := db.Preload("Sender").First(&msg, "id = ?", msg.ID).Error; err != nil {
		return nil, err
	}

	s.publish(ctx, realtime.ConversationChannel(convID), realtime.EventNewMessage, msg)
	return &msg, nil
}

// CreateConversation opens a conversation between the creator and userIDs.
// Support conversations also include every admin. Each other participant is
// notified on their user channel.
func (s *ChatService) CreateConversation(ctx context.Context, creatorID string, req models.CreateConversationRequest) (*models.Conversation, error) {
	topic := strings.TrimSpace(req.Topic)
	if topic == "" {
		return nil, fmt.Errorf("empty topic: %w", ErrInvalidInput)
	}

	ids := append([]string{creatorID}, req.UserIDs...)
	if req.Support {
		admins, err := s.users.AdminIDs(ctx)
		if err != nil {
			return nil, err
		}
		ids = append(ids, admins...)
		if !strings.HasPrefix(topic, "Support: ") {
			topic = "Support: " + topic
		}
	}
	ids = uniqueIDs(ids)
	if len(ids) < 2 {
		return nil, fmt.Errorf("conversation needs another participant: %w", ErrInvalidInput)
	}

	db := s.db.WithContext(ctx)
	var found int64
	if err := db.Model(&models.User{}).Where("id IN ?", ids).Count(&found).Error; err != nil {
		return nil, err
	}
	if int(found) != len(ids) {
		return nil, fmt.Errorf("unknown participant: %w", ErrInvalidInput)
	}

	conv := models.Conversation{Topic: topic}
	for _, id := range ids {
		conv.Participants = append(conv.Participants, models.Participant{UserID: id})
	}
	err := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&conv).Error; err != nil {
			return err
		}
		initial := strings.TrimSpace(req.InitialMessage)
		if initial == "" {
			return nil
		}
		receiver := ids[1]
		return tx.Create(&models.Message{
			Content:        initial,
			SenderID:       creatorID,
			ReceiverID:     &receiver,
			ConversationID: conv.ID,
		}).Error
	})
	if err != nil {
		return nil, fmt.Errorf("create conversation: %w", err)
	}

	for _, id := range ids[1:] {
		view, err := s.view(db, conv.ID, id)
		if err != nil {
			s.log.WithError(err).WithField("conversation_id", conv.ID).Warn("load conversation for broadcast")
			continue
		}
		s.publish(ctx, realtime.UserChannel(id), realtime.EventNewConversation, view)
	}
	return s.view(db, conv.ID, creatorID)
}

// MarkRead marks messages addressed to userID as read, either by id or for a
// whole conversation. It returns how many messages changed.
func (s *ChatService) MarkRead(ctx context.Context, userID string, req models.MarkReadRequest) (int64, error) {
	q := s.db.WithContext(ctx).Model(&models.Message{}).Where("receiver_id = ? AND read = ?", userID, false)
	switch {
	case len(req.MessageIDs) > 0:
		q = q.Where("id IN ?", req.MessageIDs)
	case req.ConversationID != "":
		q = q.Where("conversation_id = ?", req.ConversationID)
	default:
		return 0, fmt.Errorf("messageIds or conversationId required: %w", ErrInvalidInput)
	}
	res := q.Update("read", true)
	return res.RowsAffected, res.Error
}

func (s *ChatService) UnreadCount(ctx context.Context, userID string) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&models.Message{}).
		Where("receiver_id = ? AND read = ?", userID, false).Count(&n).Error
	return n, err
}

// CheckNew counts unread messages addressed to userID created after since.
// A nil since means one minute ago.
func (s *ChatService) CheckNew(ctx context.Context, userID string, since *time.Time) (*models.CheckNewResponse, error) {
	after := s.now().Add(-time.Minute)
	if since != nil {
		after = *since
	}
	var n int64
	err := s.db.WithContext(ctx).Model(&models.Message{}).
		Where("receiver_id = ? AND read = ? AND created_at > ?", userID, false, after).
		Count(&n).Error
	if err != nil {
		return nil, err
	}
	return &models.CheckNewResponse{HasNewMessages: n > 0, Count: n}, nil
}

// Authorize decides websocket channel subscriptions: a user may listen on
// their own user channel and on conversations they take part in.
func (s *ChatService) Authorize(ctx context.Context, userID, channel string) bool {
	if channel == realtime.UserChannel(userID) {
		return true
	}
	convID, ok := strings.CutPrefix(channel, realtime.ConversationChannel(""))
	if !ok || convID == "" {
		return false
	}
	var n int64
	err := s.db.WithContext(ctx).Model(&models.Participant{}).
		Where("conversation_id = ? AND user_id = ?", convID, userID).Count(&n).Error
	return err == nil && n > 0
}

func (s *ChatService) participantOf(db *gorm.DB, id, userID string) (*models.Conversation, error) {
	var conv models.Conversation
	if err := db.Preload("Participants.User").First(&conv, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("conversation %s: %w", id, ErrNotFound)
		}
		return nil, err
	}
	fillUsers(&conv)
	if !conv.HasParticipant(userID) {
		return nil, fmt.Errorf("conversation %s: %w", id, ErrForbidden)
	}
	return &conv, nil
}

func (s *ChatService) view(db *gorm.DB, id, userID string) (*models.Conversation, error) {
	var conv models.Conversation
	if err := db.Preload("Participants.User").First(&conv, "id = ?", id).Error; err != nil {
		return nil, err
	}
	if err := s.decorate(db, &conv, userID); err != nil {
		return nil, err
	}
	return &conv, nil
}

func (s *ChatService) decorate(db *gorm.DB, conv *models.Conversation, userID string) error {
	fillUsers(conv)

	var last models.Message
	err := db.Preload("Sender").Where("conversation_id = ?", conv.ID).Order("created_at desc").Limit(1).Find(&last).Error
	if err != nil {
		return fmt.Errorf("last message: %w", err)
	}
	if last.ID != "" {
		conv.LastMessage = &last
	}

	var unread int64
	err = db.Model(&models.Message{}).
		Where("conversation_id = ? AND receiver_id = ? AND read = ?", conv.ID, userID, false).
		Count(&unread).Error
	if err != nil {
		return fmt.Errorf("unread count: %w", err)
	}
	conv.UnreadCount = int(unread)
	return nil
}

func (s *ChatService) publish(ctx context.Context, channel, event string, data any) {
	if s.pub == nil {
		return
	}
	if err := s.pub.Publish(ctx, channel, event, data); err != nil {
		s.log.WithError(err).WithFields(logrus.Fields{
			"channel": channel,
			"event":   event,
		}).Warn("realtime publish failed")
	}
}

func fillUsers(conv *models.Conversation) {
	conv.Users = make([]models.User, 0, len(conv.Participants))
	conv.UserIDs = make([]string, 0, len(conv.Participants))
	for _, p := range conv.Participants {
		conv.Users = append(conv.Users, p.User)
		conv.UserIDs = append(conv.UserIDs, p.UserID)
	}
}

func pickReceiver(conv *models.Conversation, senderID, requested string) *string {
	if requested != "" && requested != senderID && conv.HasParticipant(requested) {
		return &requested
	}
	for _, id := range conv.UserIDs {
		if id != senderID {
			id := id
			return &id
		}
	}
	return nil
}

func uniqueIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := ids[:0:0]
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
