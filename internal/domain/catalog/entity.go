// internal/domain/catalog/entity.go
package catalog

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product is the catalog read model the cart prices against
type Product struct {
	ID            string          `gorm:"primaryKey;size:64" json:"id"`
	Name          string          `gorm:"not null;size:255" json:"name"`
	Price         decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"price"`
	IsActive      bool            `gorm:"not null" json:"is_active"`
	Inventory     Inventory       `gorm:"embedded;embeddedPrefix:inventory_" json:"inventory"`
	WeightOptions []WeightOption  `gorm:"foreignKey:ProductID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"weight_options,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// Inventory is the stock record of a product. Untracked products never run out.
type Inventory struct {
	Tracked  bool `gorm:"not null;default:false" json:"tracked"`
	Quantity int  `gorm:"not null;default:0" json:"quantity"`
}

// WeightOption is an alternately priced unit of a product, e.g. a 500g pack
type WeightOption struct {
	ID        uint            `gorm:"primaryKey" json:"id"`
	ProductID string          `gorm:"not null;size:64;uniqueIndex:idx_weight_option_grams" json:"product_id"`
	Label     string          `gorm:"not null;size:64" json:"label"`
	Grams     int             `gorm:"not null;uniqueIndex:idx_weight_option_grams" json:"grams"`
	Price     decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"price"`
}

// TableName overrides
func (Product) TableName() string      { return "products" }
func (WeightOption) TableName() string { return "product_weight_options" }

// WeightOption returns the option sold at the given weight
func (p *Product) WeightOption(grams int) (WeightOption, bool) {
	for _, o := range p.WeightOptions {
		if o.Grams == grams {
			return o, true
		}
	}
	return WeightOption{}, false
}

// IsInStock reports whether at least one unit can be sold
func (p *Product) IsInStock() bool {
	return !p.Inventory.Tracked || p.Inventory.Quantity > 0
}
