package services

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"storefront/internal/models"
)

type ProductService struct {
	db *gorm.DB
}

func NewProductService(db *gorm.DB) *ProductService {
	return &ProductService{db: db}
}

// ProductFilter narrows product listings. Zero values mean "no filter".
type ProductFilter struct {
	Query    string
	Category string
	MinPrice float64
	MaxPrice float64
	Page     int
	Limit    int
}

func (f *ProductFilter) normalize() {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Limit < 1 || f.Limit > 100 {
		f.Limit = 20
	}
}

// List returns one page of products and the total number of matches.
func (s *ProductService) List(ctx context.Context, f ProductFilter) ([]models.Product, int64, error) {
	f.normalize()

	q := s.db.WithContext(ctx).Model(&models.Product{})
	if f.Query != "" {
		like := "%" + f.Query + "%"
		q = q.Where("LOWER(title) LIKE LOWER(?) OR LOWER(description) LIKE LOWER(?)", like, like)
	}
	if f.Category != "" {
		q = q.Where("category = ?", f.Category)
	}
	if f.MinPrice > 0 {
		q = q.Where("price >= ?", f.MinPrice)
	}
	if f.MaxPrice > 0 {
		q = q.Where("price <= ?", f.MaxPrice)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count products: %w", err)
	}

	products := []models.Product{}
	err := q.Order("id asc").Offset((f.Page - 1) * f.Limit).Limit(f.Limit).Find(&products).Error
	if err != nil {
		return nil, 0, fmt.Errorf("list products: %w", err)
	}
	return products, total, nil
}

func (s *ProductService) Get(ctx context.Context, id int) (*models.Product, error) {
	var p models.Product
	if err := s.db.WithContext(ctx).First(&p, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("product %d: %w", id, ErrNotFound)
		}
		return nil, err
	}
	return &p, nil
}

func (s *ProductService) Create(ctx context.Context, req models.CreateProductRequest) (*models.Product, error) {
	p := models.Product{
		Title:       req.Title,
		Price:       req.Price,
		Description: req.Description,
		Category:    req.Category,
		Image:       req.Image,
		Rating:      req.Rating,
		Stock:       req.Stock,
	}
	if err := s.db.WithContext(ctx).Create(&p).Error; err != nil {
		return nil, fmt.Errorf("create product: %w", err)
	}
	return &p, nil
}

// SetStock overwrites the stock level and returns the previous one.
func (s *ProductService) SetStock(ctx context.Context, id, stock int) (int, error) {
	if stock < 0 {
		return 0, fmt.Errorf("stock %d: %w", stock, ErrInvalidInput)
	}

	var old int
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var p models.Product
		if err := tx.Select("id", "stock").First(&p, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("product %d: %w", id, ErrNotFound)
			}
			return err
		}
		old = p.Stock
		return tx.Model(&p).Update("stock", stock).Error
	})
	return old, err
}

// ReserveStock atomically takes quantity units out of stock. The conditional
// update makes concurrent reservations safe without row locks.
func ReserveStock(tx *gorm.DB, productID, quantity int) error {
	res := tx.Model(&models.Product{}).
		Where("id = ? AND stock >= ?", productID, quantity).
		Update("stock", gorm.Expr("stock - ?", quantity))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("product %d: %w", productID, ErrInsufficientStock)
	}
	return nil
}

func (s *ProductService) Categories(ctx context.Context) ([]string, error) {
	var categories []string
	err := s.db.WithContext(ctx).Model(&models.Product{}).
		Distinct().Order("category").Pluck("category", &categories).Error
	return categories, err
}
