package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"storefront/internal/models"
)

type DiscountService struct {
	db  *gorm.DB
	now func() time.Time
}

func NewDiscountService(db *gorm.DB) *DiscountService {
	return &DiscountService{db: db, now: time.Now}
}

// ListActive returns discounts that are active and not yet expired.
func (s *DiscountService) ListActive(ctx context.Context) ([]models.Discount, error) {
	discounts := []models.Discount{}
	err := s.db.WithContext(ctx).
		Where("active = ? AND (expiry_date IS NULL OR expiry_date > ?)", true, s.now()).
		Order("code").Find(&discounts).Error
	if err != nil {
		return nil, fmt.Errorf("list discounts: %w", err)
	}
	return discounts, nil
}

func (s *DiscountService) Create(ctx context.Context, req models.CreateDiscountRequest) (*models.Discount, error) {
	d := models.Discount{
		Code:        strings.ToUpper(strings.TrimSpace(req.Code)),
		Rate:        req.Rate,
		MinPurchase: req.MinPurchase,
		Description: req.Description,
		ExpiryDate:  req.ExpiryDate,
		Category:    req.Category,
		Active:      true,
	}
	var n int64
	if err := s.db.WithContext(ctx).Model(&models.Discount{}).Where("code = ?", d.Code).Count(&n).Error; err != nil {
		return nil, err
	}
	if n > 0 {
		return nil, fmt.Errorf("discount %s: %w", d.Code, ErrConflict)
	}
	if err := s.db.WithContext(ctx).Create(&d).Error; err != nil {
		return nil, fmt.Errorf("create discount: %w", err)
	}
	return &d, nil
}

// Verify checks a code against a cart subtotal. Codes are case-insensitive.
func (s *DiscountService) Verify(ctx context.Context, code string, subtotal float64) (*models.Discount, error) {
	return s.verify(s.db.WithContext(ctx), code, decimal.NewFromFloat(subtotal))
}

func (s *DiscountService) verify(db *gorm.DB, code string, subtotal decimal.Decimal) (*models.Discount, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	var d models.Discount
	if err := db.Where("code = ?", code).First(&d).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("discount %s: %w", code, ErrNotFound)
		}
		return nil, err
	}
	if !d.Usable(s.now()) {
		return nil, fmt.Errorf("discount %s expired or inactive: %w", code, ErrInvalidInput)
	}
	if d.MinPurchase != nil && subtotal.LessThan(decimal.NewFromFloat(*d.MinPurchase)) {
		return nil, fmt.Errorf("discount %s requires a minimum purchase of %.2f: %w", code, *d.MinPurchase, ErrInvalidInput)
	}
	return &d, nil
}
