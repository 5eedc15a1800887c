package services

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"storefront/internal/models"
)

type DiscussionService struct {
	db *gorm.DB
}

func NewDiscussionService(db *gorm.DB) *DiscussionService {
	return &DiscussionService{db: db}
}

func (s *DiscussionService) ListForProduct(ctx context.Context, productID int) ([]models.Discussion, error) {
	db := s.db.WithContext(ctx)
	discussions := []models.Discussion{}
	err := db.Preload("User").Where("product_id = ?", productID).Order("created_at desc").Find(&discussions).Error
	if err != nil {
		return nil, fmt.Errorf("list discussions: %w", err)
	}
	if len(discussions) == 0 {
		return discussions, nil
	}

	ids := make([]string, len(discussions))
	for i, d := range discussions {
		ids[i] = d.ID
	}
	var counts []struct {
		DiscussionID string
		N            int64
	}
	err = db.Model(&models.Comment{}).Select("discussion_id, COUNT(*) AS n").
		Where("discussion_id IN ?", ids).Group("discussion_id").Scan(&counts).Error
	if err != nil {
		return nil, fmt.Errorf("count comments: %w", err)
	}
	byID := make(map[string]int64, len(counts))
	for _, c := range counts {
		byID[c.DiscussionID] = c.N
	}
	for i := range discussions {
		discussions[i].CommentCount = byID[discussions[i].ID]
	}
	return discussions, nil
}

func (s *DiscussionService) Create(ctx context.Context, productID int, userID string, req models.CreateDiscussionRequest) (*models.Discussion, error) {
	db := s.db.WithContext(ctx)
	if err := db.Select("id").First(&models.Product{}, productID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("product %d: %w", productID, ErrNotFound)
		}
		return nil, err
	}
	d := models.Discussion{Title: req.Title, Content: req.Content, UserID: userID, ProductID: productID}
	if err := db.Create(&d).Error; err != nil {
		return nil, fmt.Errorf("create discussion: %w", err)
	}
	return s.Get(ctx, d.ID)
}

func (s *DiscussionService) Get(ctx context.Context, id string) (*models.Discussion, error) {
	var d models.Discussion
	db := s.db.WithContext(ctx)
	if err := db.Preload("User").First(&d, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("discussion %s: %w", id, ErrNotFound)
		}
		return nil, err
	}
	if err := db.Model(&models.Comment{}).Where("discussion_id = ?", id).Count(&d.CommentCount).Error; err != nil {
		return nil, err
	}
	return &d, nil
}

// Comments returns a discussion's comments oldest first.
func (s *DiscussionService) Comments(ctx context.Context, discussionID string) ([]models.Comment, error) {
	if _, err := s.Get(ctx, discussionID); err != nil {
		return nil, err
	}
	comments := []models.Comment{}
	err := s.db.WithContext(ctx).Preload("User").
		Where("discussion_id = ?", discussionID).Order("created_at asc").Find(&comments).Error
	return comments, err
}

func (s *DiscussionService) AddComment(ctx context.Context, discussionID, userID string, req models.CreateCommentRequest) (*models.Comment, error) {
	if _, err := s.Get(ctx, discussionID); err != nil {
		return nil, err
	}
	c := models.Comment{Content: req.Content, UserID: userID, DiscussionID: discussionID}
	db := s.db.WithContext(ctx)
	if err := db.Create(&c).Error; err != nil {
		return nil, fmt.Errorf("create comment: %w", err)
	}
	if err := db.Preload("User").First(&c, "id = ?", c.ID).Error; err != nil {
		return nil, err
	}
	return &c, nil
}
