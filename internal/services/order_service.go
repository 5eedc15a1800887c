package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"storefront/internal/models"
)

type OrderService struct {
	db        *gorm.DB
	discounts *DiscountService
	now       func() time.Time
}

func NewOrderService(db *gorm.DB, discounts *DiscountService) *OrderService {
	return &OrderService{db: db, discounts: discounts, now: time.Now}
}

// OrderStats summarizes orders per status.
type OrderStats struct {
	Total    int64                        `json:"total"`
	Revenue  float64                      `json:"revenue"`
	ByStatus map[models.OrderStatus]int64 `json:"byStatus"`
}

// Create checks out the user's server cart. Stock for every line is reserved
// inside the same transaction that writes the order and empties the cart, so
// either all of it happens or none of it does.
func (s *OrderService) Create(ctx context.Context, userID string, req models.CreateOrderRequest) (*models.Order, error) {
	var order models.Order
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var lines []models.CartLine
		err := tx.Preload("Product").
			Joins("JOIN carts ON carts.id = cart_lines.cart_id").
			Where("carts.user_id = ?", userID).
			Order("cart_lines.id asc").
			Find(&lines).Error
		if err != nil {
			return err
		}
		if len(lines) == 0 {
			return ErrCartEmpty
		}

		subtotal := decimal.Zero
		items := make([]models.OrderItem, 0, len(lines))
		for _, l := range lines {
			if err := ReserveStock(tx, l.ProductID, l.Quantity); err != nil {
				return err
			}
			price := decimal.NewFromFloat(l.Product.Price)
			subtotal = subtotal.Add(price.Mul(decimal.NewFromInt(int64(l.Quantity))))
			items = append(items, models.OrderItem{
				ProductID: l.ProductID,
				Quantity:  l.Quantity,
				Price:     l.Product.Price,
			})
		}

		order = models.Order{
			UserID:    userID,
			Items:     items,
			Status:    models.OrderStatusPending,
			Address:   req.Address,
			Email:     req.Email,
			InvoiceID: s.invoiceID(),
		}

		total := subtotal
		if code := strings.TrimSpace(req.DiscountCode); code != "" {
			d, err := s.discounts.verify(tx, code, subtotal)
			if err != nil {
				return err
			}
			rate := decimal.NewFromFloat(d.Rate)
			total = subtotal.Sub(subtotal.Mul(rate))
			order.DiscountCode = d.Code
			order.DiscountRate = d.Rate
		}
		order.Subtotal = subtotal.Round(2).InexactFloat64()
		order.Total = total.Round(2).InexactFloat64()

		if err := tx.Create(&order).Error; err != nil {
			return fmt.Errorf("create order: %w", err)
		}
		return clearCart(tx, userID)
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, order.ID, userID, false)
}

// List returns the user's orders, newest first. Admins with all=true see every order.
func (s *OrderService) List(ctx context.Context, userID string, all bool) ([]models.Order, error) {
	q := s.db.WithContext(ctx).Preload("Items.Product").Order("created_at desc")
	if !all {
		q = q.Where("user_id = ?", userID)
	}
	orders := []models.Order{}
	if err := q.Find(&orders).Error; err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	return orders, nil
}

// Get returns an order visible to userID. Only the owner or an admin may view it.
func (s *OrderService) Get(ctx context.Context, id, userID string, admin bool) (*models.Order, error) {
	var order models.Order
	if err := s.db.WithContext(ctx).Preload("Items.Product").First(&order, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("order %s: %w", id, ErrNotFound)
		}
		return nil, err
	}
	if !admin && order.UserID != userID {
		return nil, fmt.Errorf("order %s: %w", id, ErrForbidden)
	}
	return &order, nil
}

func (s *OrderService) UpdateStatus(ctx context.Context, id string, status models.OrderStatus) (*models.Order, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("status %q: %w", status, ErrInvalidInput)
	}
	res := s.db.WithContext(ctx).Model(&models.Order{}).Where("id = ?", id).Update("status", status)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, fmt.Errorf("order %s: %w", id, ErrNotFound)
	}
	return s.Get(ctx, id, "", true)
}

func (s *OrderService) Stats(ctx context.Context) (*OrderStats, error) {
	var rows []struct {
		Status  models.OrderStatus
		Count   int64
		Revenue float64
	}
	err := s.db.WithContext(ctx).Model(&models.Order{}).
		Select("status, COUNT(*) AS count, COALESCE(SUM(total), 0) AS revenue").
		Group("status").Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("order stats: %w", err)
	}

	stats := &OrderStats{ByStatus: make(map[models.OrderStatus]int64, len(models.OrderStatuses))}
	for _, st := range models.OrderStatuses {
		stats.ByStatus[st] = 0
	}
	revenue := decimal.Zero
	for _, r := range rows {
		stats.ByStatus[r.Status] = r.Count
		stats.Total += r.Count
		if r.Status != models.OrderStatusCancelled {
			revenue = revenue.Add(decimal.NewFromFloat(r.Revenue))
		}
	}
	stats.Revenue = revenue.Round(2).InexactFloat64()
	return stats, nil
}

func (s *OrderService) invoiceID() string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
	return fmt.Sprintf("INV-%s-%s", s.now().Format("20060102"), suffix)
}
