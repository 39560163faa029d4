// internal/infrastructure/database/postgres/cart_store.go
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/your-org/storefront-cart/internal/domain/cart"
)

// AccountCartItem is one line of an account cart. Grams is zero for the
// no-variant line, so (user_id, product_id, grams) is the line identity.
type AccountCartItem struct {
	ID           uint             `gorm:"primaryKey"`
	UserID       string           `gorm:"not null;size:64;uniqueIndex:idx_account_cart_line"`
	ProductID    string           `gorm:"not null;size:64;uniqueIndex:idx_account_cart_line"`
	Grams        int              `gorm:"not null;default:0;uniqueIndex:idx_account_cart_line"`
	ProductName  string           `gorm:"not null;size:255"`
	BasePrice    decimal.Decimal  `gorm:"type:numeric(12,2);not null"`
	Price        *decimal.Decimal `gorm:"type:numeric(12,2)"`
	VariantLabel string           `gorm:"size:64"`
	VariantPrice decimal.Decimal  `gorm:"type:numeric(12,2);not null;default:0"`
	Quantity     int              `gorm:"not null"`
	AddedAt      time.Time        `gorm:"not null"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// TableName overrides the table name
func (AccountCartItem) TableName() string {
	return "account_cart_items"
}

func rowFromLine(userID string, li cart.LineItem) AccountCartItem {
	row := AccountCartItem{
		UserID:      userID,
		ProductID:   li.Product.ID,
		ProductName: li.Product.Name,
		BasePrice:   li.Product.Price,
		Price:       li.Price,
		Quantity:    li.Quantity,
		AddedAt:     li.AddedAt,
	}
	if li.Variant != nil {
		row.Grams = li.Variant.Grams
		row.VariantLabel = li.Variant.Label
		row.VariantPrice = li.Variant.Price
	}
	if row.AddedAt.IsZero() {
		row.AddedAt = time.Now().UTC()
	}
	return row
}

func (r AccountCartItem) line() cart.LineItem {
	li := cart.LineItem{
		Product:  cart.ProductRef{ID: r.ProductID, Name: r.ProductName, Price: r.BasePrice},
		Quantity: r.Quantity,
		Price:    r.Price,
		AddedAt:  r.AddedAt.UTC(),
	}
	if r.Grams != 0 {
		li.Variant = &cart.WeightVariant{Label: r.VariantLabel, Grams: r.Grams, Price: r.VariantPrice}
	}
	return li
}

// AccountCartStore is the postgres cart of one account
type AccountCartStore struct {
	db     *gorm.DB
	userID string
}

// NewAccountCartStore binds the account cart table to userID
func NewAccountCartStore(db *gorm.DB, userID string) *AccountCartStore {
	return &AccountCartStore{db: db, userID: userID}
}

func (s *AccountCartStore) Load(ctx context.Context) ([]cart.LineItem, error) {
	return s.load(s.db.WithContext(ctx))
}

// Add upserts the line, incrementing the quantity of an existing line
func (s *AccountCartStore) Add(ctx context.Context, line cart.LineItem) ([]cart.LineItem, error) {
	var items []cart.LineItem
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		row := rowFromLine(s.userID, line)
		err := tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "user_id"}, {Name: "product_id"}, {Name: "grams"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"quantity":   gorm.Expr("account_cart_items.quantity + EXCLUDED.quantity"),
				"updated_at": gorm.Expr("EXCLUDED.updated_at"),
			}),
		}).Create(&row).Error
		if err != nil {
			return fmt.Errorf("failed to add cart line: %w", err)
		}
		items, err = s.load(tx)
		return err
	})
	return items, err
}

func (s *AccountCartStore) SetQuantity(ctx context.Context, key cart.IdentityKey, quantity int) ([]cart.LineItem, error) {
	if quantity < 1 {
		return s.Remove(ctx, key)
	}
	var items []cart.LineItem
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Model(&AccountCartItem{}).
			Where("user_id = ? AND product_id = ? AND grams = ?", s.userID, key.ProductID, key.Grams).
			Update("quantity", quantity).Error
		if err != nil {
			return fmt.Errorf("failed to update cart line: %w", err)
		}
		items, err = s.load(tx)
		return err
	})
	return items, err
}

func (s *AccountCartStore) Remove(ctx context.Context, key cart.IdentityKey) ([]cart.LineItem, error) {
	var items []cart.LineItem
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Where("user_id = ? AND product_id = ? AND grams = ?", s.userID, key.ProductID, key.Grams).
			Delete(&AccountCartItem{}).Error
		if err != nil {
			return fmt.Errorf("failed to remove cart line: %w", err)
		}
		items, err = s.load(tx)
		return err
	})
	return items, err
}

func (s *AccountCartStore) Clear(ctx context.Context) error {
	if err := s.db.WithContext(ctx).Where("user_id = ?", s.userID).Delete(&AccountCartItem{}).Error; err != nil {
		return fmt.Errorf("failed to clear cart: %w", err)
	}
	return nil
}

func (s *AccountCartStore) load(db *gorm.DB) ([]cart.LineItem, error) {
	var rows []AccountCartItem
	if err := db.Where("user_id = ?", s.userID).Order("added_at ASC, id ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to load cart: %w", err)
	}
	items := make([]cart.LineItem, len(rows))
	for i, r := range rows {
		items[i] = r.line()
	}
	return items, nil
}
