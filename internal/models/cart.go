package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Cart is the server-side cart. Each user owns at most one, created on first use.
type Cart struct {
	ID        string     `gorm:"primaryKey;size:36" json:"id"`
	UserID    string     `gorm:"size:36;uniqueIndex;not null" json:"userId"`
	Lines     []CartLine `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	Items     []CartItem `gorm:"-" json:"items"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

func (c *Cart) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	return nil
}

// CartLine is one product row of a server cart.
type CartLine struct {
	ID        uint    `gorm:"primaryKey"`
	CartID    string  `gorm:"size:36;not null;uniqueIndex:idx_cart_product"`
	ProductID int     `gorm:"not null;uniqueIndex:idx_cart_product"`
	Product   Product `gorm:"constraint:OnDelete:CASCADE"`
	Quantity  int     `gorm:"not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Item renders the line in the denormalized shape shared with anonymous carts.
func (l CartLine) Item() CartItem {
	return CartItem{
		ID:       l.ProductID,
		Title:    l.Product.Title,
		Price:    l.Product.Price,
		Image:    l.Product.Image,
		Quantity: l.Quantity,
	}
}

// CartItem is a product/quantity pair with display fields copied from the product.
// Quantity is always >= 1; an item that would reach zero is removed instead.
type CartItem struct {
	ID       int     `json:"id"`
	Title    string  `json:"title"`
	Price    float64 `json:"price"`
	Image    string  `json:"image"`
	Quantity int     `json:"quantity"`
}

// NewCartItem builds a single-unit cart entry for product.
func NewCartItem(p Product) CartItem {
	return CartItem{
		ID:       p.ID,
		Title:    p.Title,
		Price:    p.Price,
		Image:    p.Image,
		Quantity: 1,
	}
}

type CartAction string

const (
	CartIncrement CartAction = "increment"
	CartDecrement CartAction = "decrement"
	CartSet       CartAction = "set"
)

type AddToCartRequest struct {
	ProductID int `json:"productId" binding:"required"`
	Quantity  int `json:"quantity" binding:"omitempty,gt=0"`
}

type UpdateCartItemRequest struct {
	Action   CartAction `json:"action" binding:"required,oneof=increment decrement set"`
	Quantity int        `json:"quantity,omitempty"`
}
