package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "PENDING"
	OrderStatusProcessing OrderStatus = "PROCESSING"
	OrderStatusShipped    OrderStatus = "SHIPPED"
	OrderStatusDelivered  OrderStatus = "DELIVERED"
	OrderStatusCancelled  OrderStatus = "CANCELLED"
)

var OrderStatuses = []OrderStatus{
	OrderStatusPending,
	OrderStatusProcessing,
	OrderStatusShipped,
	OrderStatusDelivered,
	OrderStatusCancelled,
}

func (s OrderStatus) Valid() bool {
	for _, v := range OrderStatuses {
		if v == s {
			return true
		}
	}
	return false
}

type Address struct {
	Street  string `json:"street" binding:"required"`
	City    string `json:"city" binding:"required"`
	State   string `json:"state" binding:"required"`
	Zip     string `json:"zip" binding:"required"`
	Country string `json:"country" binding:"required"`
}

type Order struct {
	ID           string      `gorm:"primaryKey;size:36" json:"id"`
	UserID       string      `gorm:"size:36;index;not null" json:"userId"`
	Items        []OrderItem `gorm:"constraint:OnDelete:CASCADE" json:"items"`
	Status       OrderStatus `gorm:"size:16;not null" json:"status"`
	Subtotal     float64     `json:"subtotal"`
	DiscountCode string      `gorm:"size:32" json:"discountCode,omitempty"`
	DiscountRate float64     `json:"discountRate,omitempty"`
	Total        float64     `json:"total"`
	Address      Address     `gorm:"embedded;embeddedPrefix:address_" json:"address"`
	Email        string      `json:"email"`
	InvoiceID    string      `gorm:"size:32;uniqueIndex" json:"invoiceId"`
	CreatedAt    time.Time   `json:"createdAt"`
	UpdatedAt    time.Time   `json:"updatedAt"`
}

func (o *Order) BeforeCreate(tx *gorm.DB) error {
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	return nil
}

type OrderItem struct {
	ID        uint    `gorm:"primaryKey" json:"id"`
	OrderID   string  `gorm:"size:36;index;not null" json:"orderId"`
	ProductID int     `gorm:"not null" json:"productId"`
	Product   Product `json:"product"`
	Quantity  int     `gorm:"not null" json:"quantity"`
	Price     float64 `json:"price"`
}

// CreateOrderRequest places an order for the caller's server cart.
type CreateOrderRequest struct {
	Address      Address `json:"address" binding:"required"`
	Email        string  `json:"email" binding:"required,email"`
	DiscountCode string  `json:"discountCode,omitempty"`
}

type UpdateOrderStatusRequest struct {
	Status OrderStatus `json:"status" binding:"required"`
}
