package database

import (
	"fmt"
	"time"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"storefront/internal/models"
)

var sampleCategories = []string{"electronics", "jewelery", "men's clothing", "women's clothing"}

// Seed fills an empty database with demo users, products and discount codes.
// It does nothing when products already exist.
func Seed(db *gorm.DB, productCount int) error {
	var count int64
	if err := db.Model(&models.Product{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	return db.Transaction(func(tx *gorm.DB) error {
		users := []struct {
			name, email, password string
			role                  models.Role
		}{
			{"Admin User", "admin@example.com", "admin123", models.RoleAdmin},
			{"Regular User", "user@example.com", "user123", models.RoleUser},
		}
		for _, u := range users {
			hash, err := bcrypt.GenerateFromPassword([]byte(u.password), bcrypt.DefaultCost)
			if err != nil {
				return err
			}
			user := models.User{Name: u.name, Email: u.email, PasswordHash: string(hash), Role: u.role}
			if err := tx.Create(&user).Error; err != nil {
				return fmt.Errorf("seed user %s: %w", u.email, err)
			}
		}

		products := make([]models.Product, 0, productCount)
		for i := 1; i <= productCount; i++ {
			products = append(products, models.Product{
				Title:       fmt.Sprintf("Product %c%d", 'A'+(i%26), i),
				Description: fmt.Sprintf("Description for product %d", i),
				Price:       float64((i%100)+1) + 0.99,
				Category:    sampleCategories[i%len(sampleCategories)],
				Image:       fmt.Sprintf("https://picsum.photos/seed/%d/600/400", i),
				Rating:      models.Rating{Rate: float64(i%5) + 0.5, Count: i * 7 % 500},
				Stock:       (i % 100) + 1,
			})
		}
		if len(products) > 0 {
			if err := tx.CreateInBatches(products, 100).Error; err != nil {
				return fmt.Errorf("seed products: %w", err)
			}
		}

		now := time.Now()
		in := func(months int) *time.Time {
			t := now.AddDate(0, months, 0)
			return &t
		}
		min := func(v float64) *float64 { return &v }
		discounts := []models.Discount{
			{Code: "MARET10", Rate: 0.1, Description: "Get 10% off your entire order with no minimum purchase", ExpiryDate: in(3), Category: "general", Active: true},
			{Code: "MARET20", Rate: 0.2, MinPurchase: min(100), Description: "20% off orders of $100 or more", ExpiryDate: in(3), Category: "general", Active: true},
			{Code: "GRATIS", Rate: 0.05, Description: "5% discount on all orders, no minimum required", ExpiryDate: in(1), Category: "shipping", Active: true},
			{Code: "CPS", Rate: 0.25, MinPurchase: min(150), Description: "25% off when you spend $150 or more", ExpiryDate: in(2), Category: "seasonal", Active: true},
		}
		if err := tx.Create(&discounts).Error; err != nil {
			return fmt.Errorf("seed discounts: %w", err)
		}
		return nil
	})
}
