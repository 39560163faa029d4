// internal/domain/catalog/reader.go
package catalog

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
)

var ErrProductNotFound = errors.New("product not found")

// Reader is the read-only catalog contract consumed by the cart and checkout
type Reader interface {
	GetProduct(ctx context.Context, id string) (*Product, error)
}

// Repository reads products from postgres
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a new catalog repository
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// GetProduct loads a product with its weight options
func (r *Repository) GetProduct(ctx context.Context, id string) (*Product, error) {
	var p Product
	err := r.db.WithContext(ctx).
		Preload("WeightOptions", func(db *gorm.DB) *gorm.DB {
			return db.Order("grams ASC")
		}).
		Where("id = ?", id).
		First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrProductNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load product %s: %w", id, err)
	}
	return &p, nil
}

// Save creates or replaces a product and its weight options
func (r *Repository) Save(ctx context.Context, p *Product) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("WeightOptions").Save(p).Error; err != nil {
			return fmt.Errorf("failed to save product: %w", err)
		}
		if err := tx.Where("product_id = ?", p.ID).Delete(&WeightOption{}).Error; err != nil {
			return fmt.Errorf("failed to reset weight options: %w", err)
		}
		if len(p.WeightOptions) == 0 {
			return nil
		}
		for i := range p.WeightOptions {
			p.WeightOptions[i].ID = 0
			p.WeightOptions[i].ProductID = p.ID
		}
		if err := tx.Create(&p.WeightOptions).Error; err != nil {
			return fmt.Errorf("failed to save weight options: %w", err)
		}
		return nil
	})
}
