package models

import "time"

type Rating struct {
	Rate  float64 `json:"rate"`
	Count int     `json:"count"`
}

type Product struct {
	ID          int       `gorm:"primaryKey" json:"id"`
	Title       string    `gorm:"size:255;not null" json:"title"`
	Price       float64   `gorm:"not null" json:"price"`
	Description string    `gorm:"type:text" json:"description"`
	Category    string    `gorm:"size:64;index" json:"category"`
	Image       string    `json:"image"`
	Rating      Rating    `gorm:"embedded;embeddedPrefix:rating_" json:"rating"`
	Stock       int       `gorm:"not null;default:0" json:"stock"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

type CreateProductRequest struct {
	Title       string  `json:"title" binding:"required"`
	Price       float64 `json:"price" binding:"required,gt=0"`
	Description string  `json:"description" binding:"required"`
	Category    string  `json:"category" binding:"required"`
	Image       string  `json:"image" binding:"required"`
	Rating      Rating  `json:"rating"`
	Stock       int     `json:"stock" binding:"gte=0"`
}

type UpdateStockRequest struct {
	Stock int `json:"stock" binding:"gte=0"`
}
