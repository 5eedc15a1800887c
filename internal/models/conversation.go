package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Conversation is a named thread between two or more users.
// LastMessage and UnreadCount are derived per viewer and never stored.
type Conversation struct {
	ID           string        `gorm:"primaryKey;size:36" json:"id"`
	Topic        string        `gorm:"size:255;not null" json:"topic"`
	Participants []Participant `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	Messages     []Message     `gorm:"constraint:OnDelete:CASCADE" json:"messages,omitempty"`
	Users        []User        `gorm:"-" json:"users"`
	UserIDs      []string      `gorm:"-" json:"userIds"`
	LastMessage  *Message      `gorm:"-" json:"lastMessage,omitempty"`
	UnreadCount  int           `gorm:"-" json:"unreadCount"`
	CreatedAt    time.Time     `json:"createdAt"`
	UpdatedAt    time.Time     `json:"updatedAt"`
}

func (c *Conversation) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	return nil
}

// HasParticipant reports whether userID is listed in UserIDs.
func (c Conversation) HasParticipant(userID string) bool {
	for _, id := range c.UserIDs {
		if id == userID {
			return true
		}
	}
	return false
}

type Participant struct {
	ID             uint      `gorm:"primaryKey"`
	ConversationID string    `gorm:"size:36;not null;uniqueIndex:idx_conversation_user"`
	UserID         string    `gorm:"size:36;not null;uniqueIndex:idx_conversation_user;index"`
	User           User      `gorm:"constraint:OnDelete:CASCADE"`
	CreatedAt      time.Time
}

// Message is immutable after creation except Read, which only goes false -> true.
type Message struct {
	ID             string    `gorm:"primaryKey;size:36" json:"id"`
	Content        string    `gorm:"type:text;not null" json:"content"`
	SenderID       string    `gorm:"size:36;not null;index" json:"senderId"`
	Sender         *User     `json:"sender,omitempty"`
	ReceiverID     *string   `gorm:"size:36;index" json:"receiverId"`
	ConversationID string    `gorm:"size:36;not null;index" json:"conversationId"`
	Read           bool      `gorm:"not null;default:false" json:"read"`
	CreatedAt      time.Time `gorm:"index" json:"createdAt"`
}

func (m *Message) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	return nil
}

// AddressedTo reports whether the message counts toward userID's unread total.
func (m Message) AddressedTo(userID string) bool {
	return m.ReceiverID != nil && *m.ReceiverID == userID
}

type CreateConversationRequest struct {
	Topic          string   `json:"topic" binding:"required"`
	UserIDs        []string `json:"userIds"`
	InitialMessage string   `json:"initialMessage,omitempty"`
	Support        bool     `json:"support,omitempty"`
}

type SendMessageRequest struct {
	Content    string `json:"content" binding:"required"`
	ReceiverID string `json:"receiverId,omitempty"`
}

type MarkReadRequest struct {
	MessageIDs     []string `json:"messageIds,omitempty"`
	ConversationID string   `json:"conversationId,omitempty"`
}

type CheckNewRequest struct {
	LastChecked *time.Time `json:"lastChecked,omitempty"`
}

type CheckNewResponse struct {
	HasNewMessages bool  `json:"hasNewMessages"`
	Count          int64 `json:"count"`
}
