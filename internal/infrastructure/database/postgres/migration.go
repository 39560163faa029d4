// internal/infrastructure/database/postgres/migration.go
package postgres

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/your-org/storefront-cart/internal/domain/catalog"
	"github.com/your-org/storefront-cart/internal/domain/order"
)

// Migration handles database migrations
type Migration struct {
	db     *gorm.DB
	logger logrus.FieldLogger
}

// NewMigration creates a new migration instance
func NewMigration(db *gorm.DB, logger logrus.FieldLogger) *Migration {
	return &Migration{
		db:     db,
		logger: logger.WithField("component", "migration"),
	}
}

// RunAutoMigrations runs GORM auto-migrations for all models
func (m *Migration) RunAutoMigrations() error {
	m.logger.Info("🔄 Running database auto-migrations...")

	// dependency order
	models := []interface{}{
		&catalog.Product{},
		&catalog.WeightOption{},

		&AccountCartItem{},

		&order.Order{},
		&order.OrderItem{},
		&order.OrderStatusHistory{},
	}

	for _, model := range models {
		m.logger.Debugf("Migrating model: %T", model)
		if err := m.db.AutoMigrate(model); err != nil {
			return fmt.Errorf("failed to migrate model %T: %w", model, err)
		}
	}

	m.logger.Info("✅ Database auto-migrations completed successfully")
	return nil
}

// CreateIndexes creates additional indexes for better performance
func (m *Migration) CreateIndexes() error {
	indexes := []string{
		"CREATE INDEX IF NOT EXISTS idx_products_active ON products(is_active)",
		"CREATE INDEX IF NOT EXISTS idx_account_cart_items_user_added ON account_cart_items(user_id, added_at)",
		"CREATE INDEX IF NOT EXISTS idx_orders_user_status ON orders(user_id, status)",
		"CREATE INDEX IF NOT EXISTS idx_orders_created_at ON orders(created_at DESC)",
		"CREATE INDEX IF NOT EXISTS idx_order_status_history_order ON order_status_history(order_id, created_at DESC)",
	}

	failed := 0
	for _, indexSQL := range indexes {
		if err := m.db.Exec(indexSQL).Error; err != nil {
			m.logger.WithError(err).Warn("⚠️ Failed to create index")
			failed++
		}
	}

	m.logger.Infof("✅ Created %d indexes successfully (%d failed)", len(indexes)-failed, failed)
	return nil
}

// SeedInitialData inserts a small development catalog
func (m *Migration) SeedInitialData(ctx context.Context) error {
	m.logger.Info("🌱 Seeding development catalog...")

	var count int64
	if err := m.db.WithContext(ctx).Model(&catalog.Product{}).Count(&count).Error; err != nil {
		return fmt.Errorf("failed to count products: %w", err)
	}
	if count > 0 {
		m.logger.Info("⏭️ Catalog already seeded")
		return nil
	}

	repo := catalog.NewRepository(m.db)
	for _, seed := range seedProducts {
		p := seed
		p.WeightOptions = append([]catalog.WeightOption(nil), seed.WeightOptions...)
		if err := repo.Save(ctx, &p); err != nil {
			return fmt.Errorf("failed to seed product %s: %w", p.ID, err)
		}
		m.logger.WithField("product_id", p.ID).Debug("seeded product")
	}

	m.logger.Info("✅ Initial data seeded successfully")
	return nil
}

// DropAllTables drops all tables (use with extreme caution)
func (m *Migration) DropAllTables() error {
	m.logger.Warn("⚠️ Dropping all database tables...")

	// reverse dependency order
	tables := []string{
		"order_status_history",
		"order_items",
		"orders",
		"account_cart_items",
		"product_weight_options",
		"products",
	}

	for _, table := range tables {
		if err := m.db.Exec(fmt.Sprintf("DROP TABLE IF EXISTS %s CASCADE", table)).Error; err != nil {
			return fmt.Errorf("failed to drop table %s: %w", table, err)
		}
	}
	return nil
}

var seedProducts = []catalog.Product{
	{
		ID:        "coffee-arabica",
		Name:      "Arabica Coffee Beans",
		Price:     decimal.RequireFromString("45.00"),
		IsActive:  true,
		Inventory: catalog.Inventory{Tracked: true, Quantity: 40},
		WeightOptions: []catalog.WeightOption{
			{Label: "250g", Grams: 250, Price: decimal.RequireFromString("45.00")},
			{Label: "500g", Grams: 500, Price: decimal.RequireFromString("85.00")},
			{Label: "1kg", Grams: 1000, Price: decimal.RequireFromString("160.00")},
		},
	},
	{
		ID:        "dates-medjool",
		Name:      "Medjool Dates",
		Price:     decimal.RequireFromString("30.00"),
		IsActive:  true,
		Inventory: catalog.Inventory{Tracked: true, Quantity: 15},
		WeightOptions: []catalog.WeightOption{
			{Label: "500g", Grams: 500, Price: decimal.RequireFromString("55.00")},
		},
	},
	{
		ID:       "honey-clover",
		Name:     "Clover Honey Jar",
		Price:    decimal.RequireFromString("99.99"),
		IsActive: true,
	},
	{
		ID:       "tea-hibiscus",
		Name:     "Hibiscus Tea",
		Price:    decimal.RequireFromString("12.50"),
		IsActive: false,
	},
}
