package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Discussion is a product discussion thread.
type Discussion struct {
	ID           string    `gorm:"primaryKey;size:36" json:"id"`
	Title        string    `gorm:"size:255;not null" json:"title"`
	Content      string    `gorm:"type:text;not null" json:"content"`
	UserID       string    `gorm:"size:36;not null;index" json:"userId"`
	User         User      `json:"user"`
	ProductID    int       `gorm:"not null;index" json:"productId"`
	Comments     []Comment `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	CommentCount int64     `gorm:"-" json:"commentCount"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

func (d *Discussion) BeforeCreate(tx *gorm.DB) error {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	return nil
}

type Comment struct {
	ID           string    `gorm:"primaryKey;size:36" json:"id"`
	Content      string    `gorm:"type:text;not null" json:"content"`
	UserID       string    `gorm:"size:36;not null" json:"userId"`
	User         User      `json:"user"`
	DiscussionID string    `gorm:"size:36;not null;index" json:"discussionId"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

func (c *Comment) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	return nil
}

type CreateDiscussionRequest struct {
	Title   string `json:"title" binding:"required"`
	Content string `json:"content" binding:"required"`
}

type CreateCommentRequest struct {
	Content string `json:"content" binding:"required"`
}
