package services

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"storefront/internal/models"
)

type CartService struct {
	db *gorm.DB
}

func NewCartService(db *gorm.DB) *CartService {
	return &CartService{db: db}
}

// GetOrCreate returns the user's cart with its items, creating an empty cart
// on first use.
func (s *CartService) GetOrCreate(ctx context.Context, userID string) (*models.Cart, error) {
	db := s.db.WithContext(ctx)
	if err := ensureCart(db, userID); err != nil {
		return nil, err
	}
	return s.load(db, userID)
}

// AddItem adds quantity units of a product, incrementing an existing line.
func (s *CartService) AddItem(ctx context.Context, userID string, productID, quantity int) (*models.CartItem, error) {
	if quantity <= 0 {
		quantity = 1
	}

	var line models.CartLine
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Select("id").First(&models.Product{}, productID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("product %d: %w", productID, ErrNotFound)
			}
			return err
		}
		if err := ensureCart(tx, userID); err != nil {
			return err
		}
		cartID, err := cartIDFor(tx, userID)
		if err != nil {
			return err
		}

		// Upsert keeps concurrent adds of the same product from losing updates.
		line = models.CartLine{CartID: cartID, ProductID: productID, Quantity: quantity}
		err = tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "cart_id"}, {Name: "product_id"}},
			DoUpdates: clause.Assignments(map[string]any{
				"quantity":   gorm.Expr("cart_lines.quantity + ?", quantity),
				"updated_at": gorm.Expr("CURRENT_TIMESTAMP"),
			}),
		}).Create(&line).Error
		if err != nil {
			return fmt.Errorf("add cart line: %w", err)
		}
		return tx.Preload("Product").
			Where("cart_id = ? AND product_id = ?", cartID, productID).
			First(&line).Error
	})
	if err != nil {
		return nil, err
	}
	item := line.Item()
	return &item, nil
}

// UpdateItem applies an increment, decrement or set to an existing line.
// The stored quantity never drops below 1; removal goes through RemoveItem.
func (s *CartService) UpdateItem(ctx context.Context, userID string, productID int, req models.UpdateCartItemRequest) (*models.CartItem, error) {
	var line models.CartLine
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		cartID, err := cartIDFor(tx, userID)
		if err != nil {
			return err
		}
		if err := tx.Where("cart_id = ? AND product_id = ?", cartID, productID).First(&line).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("cart item %d: %w", productID, ErrNotFound)
			}
			return err
		}

		q := tx.Model(&models.CartLine{}).Where("id = ?", line.ID)
		switch req.Action {
		case models.CartIncrement:
			err = q.Update("quantity", gorm.Expr("quantity + 1")).Error
		case models.CartDecrement:
			err = q.Where("quantity > 1").Update("quantity", gorm.Expr("quantity - 1")).Error
		case models.CartSet:
			if req.Quantity < 1 {
				return fmt.Errorf("quantity %d: %w", req.Quantity, ErrInvalidInput)
			}
			err = q.Update("quantity", req.Quantity).Error
		default:
			return fmt.Errorf("action %q: %w", req.Action, ErrInvalidInput)
		}
		if err != nil {
			return err
		}
		return tx.Preload("Product").First(&line, line.ID).Error
	})
	if err != nil {
		return nil, err
	}
	item := line.Item()
	return &item, nil
}

func (s *CartService) RemoveItem(ctx context.Context, userID string, productID int) error {
	db := s.db.WithContext(ctx)
	cartID, err := cartIDFor(db, userID)
	if err != nil {
		return err
	}
	res := db.Where("cart_id = ? AND product_id = ?", cartID, productID).Delete(&models.CartLine{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("cart item %d: %w", productID, ErrNotFound)
	}
	return nil
}

// Clear empties the user's cart. Clearing a cart that does not exist is a no-op.
func (s *CartService) Clear(ctx context.Context, userID string) error {
	return clearCart(s.db.WithContext(ctx), userID)
}

func (s *CartService) load(db *gorm.DB, userID string) (*models.Cart, error) {
	var cart models.Cart
	err := db.Preload("Lines", func(db *gorm.DB) *gorm.DB {
		return db.Order("cart_lines.id asc")
	}).Preload("Lines.Product").Where("user_id = ?", userID).First(&cart).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("cart for user %s: %w", userID, ErrNotFound)
		}
		return nil, err
	}

	cart.Items = make([]models.CartItem, 0, len(cart.Lines))
	for _, l := range cart.Lines {
		cart.Items = append(cart.Items, l.Item())
	}
	return &cart, nil
}

func ensureCart(db *gorm.DB, userID string) error {
	cart := models.Cart{UserID: userID}
	return db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoNothing: true,
	}).Create(&cart).Error
}

func cartIDFor(db *gorm.DB, userID string) (string, error) {
	var cart models.Cart
	if err := db.Select("id").Where("user_id = ?", userID).First(&cart).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", fmt.Errorf("cart for user %s: %w", userID, ErrNotFound)
		}
		return "", err
	}
	return cart.ID, nil
}

func clearCart(db *gorm.DB, userID string) error {
	return db.Where("cart_id IN (?)",
		db.Model(&models.Cart{}).Select("id").Where("user_id = ?", userID),
	).Delete(&models.CartLine{}).Error
}
