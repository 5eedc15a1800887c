package models

import "time"

type Discount struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	Code        string     `gorm:"size:32;uniqueIndex;not null" json:"code"`
	Rate        float64    `gorm:"not null" json:"rate"`
	MinPurchase *float64   `json:"minPurchase"`
	Description string     `json:"description"`
	ExpiryDate  *time.Time `json:"expiryDate"`
	Category    string     `gorm:"size:32" json:"category"`
	Active      bool       `gorm:"not null;default:true" json:"active"`
	CreatedAt   time.Time  `json:"createdAt"`
}

// Usable reports whether the discount is active and unexpired at now.
func (d Discount) Usable(now time.Time) bool {
	return d.Active && (d.ExpiryDate == nil || d.ExpiryDate.After(now))
}

type CreateDiscountRequest struct {
	Code        string     `json:"code" binding:"required"`
	Rate        float64    `json:"rate" binding:"required,gt=0,lte=1"`
	MinPurchase *float64   `json:"minPurchase"`
	Description string     `json:"description" binding:"required"`
	ExpiryDate  *time.Time `json:"expiryDate"`
	Category    string     `json:"category" binding:"required"`
}

type VerifyDiscountRequest struct {
	Code     string  `json:"code" binding:"required"`
	Subtotal float64 `json:"subtotal"`
}

type VerifyDiscountResponse struct {
	Code        string   `json:"code"`
	Rate        float64  `json:"rate"`
	MinPurchase *float64 `json:"minPurchase"`
	Description string   `json:"description"`
	Valid       bool     `json:"valid"`
}
