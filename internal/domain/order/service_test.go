package order

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	gormpostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/your-org/storefront-cart/internal/domain/cart"
	"github.com/your-org/storefront-cart/internal/domain/catalog"
	"github.com/your-org/storefront-cart/internal/domain/checkout"
)

type recordingPublisher struct {
	mu     sync.Mutex
	err    error
	events []OrderPlaced
}

func (p *recordingPublisher) PublishOrderPlaced(_ context.Context, event OrderPlaced) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return p.err
}

func setupTestDB(t *testing.T) *gorm.DB {
	if testing.Short() {
		t.Skip("skipping postgres container test in short mode")
	}
	ctx := context.Background()

	container, err := postgres.Run(ctx, "postgres:16-alpine",
		postgres.WithDatabase("orders_test"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %s", err)
		}
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := gorm.Open(gormpostgres.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&catalog.Product{}, &catalog.WeightOption{}, &Order{}, &OrderItem{}, &OrderStatusHistory{}))
	seedProducts(t, db)
	return db
}

// seedProducts stores the products orderRequest orders: untracked coffee and
// honey with five tracked units
func seedProducts(t *testing.T, db *gorm.DB) {
	products := []catalog.Product{
		{ID: "coffee", Name: "Arabica", Price: decimal.RequireFromString("12.50"), IsActive: true},
		{ID: "honey", Name: "Clover Honey", Price: decimal.RequireFromString("9"), IsActive: true,
			Inventory: catalog.Inventory{Tracked: true, Quantity: 5}},
	}
	require.NoError(t, db.Create(&products).Error)
}

func stockOf(t *testing.T, db *gorm.DB, id string) int {
	var p catalog.Product
	require.NoError(t, db.First(&p, "id = ?", id).Error)
	return p.Inventory.Quantity
}

type recordingCache struct {
	mu          sync.Mutex
	invalidated []string
}

func (c *recordingCache) Invalidate(_ context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.invalidated = append(c.invalidated, id)
	return nil
}

func quietLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func orderRequest() checkout.OrderRequest {
	coffee := catalog.Product{ID: "coffee", Name: "Arabica", Price: decimal.RequireFromString("12.50"), IsActive: true}
	honey := catalog.Product{ID: "honey", Name: "Clover Honey", Price: decimal.RequireFromString("9"), IsActive: true}
	items := []cart.LineItem{
		cart.NewLineItem(coffee, 2, nil, time.Now()),
		cart.NewLineItem(honey, 1, &cart.WeightVariant{Label: "500 g", Grams: 500, Price: decimal.RequireFromString("16")}, time.Now()),
	}
	return checkout.OrderRequest{
		UserID:          "user-1",
		ShippingAddress: checkout.Address{FullName: "Mona Adel", Phone: "+20100", Street: "12 Nile St", City: "Cairo"},
		PaymentMethod:   checkout.PaymentMethodCOD,
		ShippingCost:    decimal.NewFromInt(50),
		Summary:         checkout.Summary{Items: items, Totals: cart.ComputeTotals(items)},
	}
}

func TestService_Submit(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	publisher := &recordingPublisher{}
	svc := NewService(db, publisher, quietLogger())
	svc.now = func() time.Time { return time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC) }

	number, err := svc.Submit(ctx, orderRequest())
	require.NoError(t, err)
	assert.Regexp(t, `^ORD-20260301-\d{5}$`, number)

	o, err := svc.GetByNumber(ctx, number)
	require.NoError(t, err)
	assert.Equal(t, OrderStatusPending, o.Status)
	assert.Equal(t, PaymentStatusPending, o.PaymentStatus)
	assert.Equal(t, "41", o.SubtotalAmount.String())
	assert.Equal(t, "91", o.TotalAmount.String())
	assert.Equal(t, "Cairo", o.ShippingAddress.City)
	require.NotNil(t, o.UserID)
	assert.Equal(t, "user-1", *o.UserID)
	require.Len(t, o.Items, 2)
	assert.Len(t, o.StatusHistory, 1)

	require.Len(t, publisher.events, 1)
	assert.Equal(t, number, publisher.events[0].OrderNumber)
	assert.Equal(t, 3, publisher.events[0].ItemCount)
}

func TestService_PublishFailureDoesNotFailSubmit(t *testing.T) {
	db := setupTestDB(t)
	svc := NewService(db, &recordingPublisher{err: errors.New("broker down")}, quietLogger())

	number, err := svc.Submit(context.Background(), orderRequest())

	require.NoError(t, err)
	assert.NotEmpty(t, number)
}

func TestService_Cancel(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	svc := NewService(db, nil, quietLogger())

	number, err := svc.Submit(ctx, orderRequest())
	require.NoError(t, err)

	require.NoError(t, svc.Cancel(ctx, number, "changed my mind", "user-1"))
	assert.ErrorIs(t, svc.Cancel(ctx, number, "again", "user-1"), ErrCannotBeCancelled)
	assert.ErrorIs(t, svc.Cancel(ctx, "ORD-00000000-00000", "", ""), ErrOrderNotFound)

	o, err := svc.GetByNumber(ctx, number)
	require.NoError(t, err)
	assert.Equal(t, OrderStatusCancelled, o.Status)
	assert.Len(t, o.StatusHistory, 2)
}

func TestService_SubmitRejectsEmptyOrder(t *testing.T) {
	svc := NewService(nil, nil, quietLogger())

	_, err := svc.Submit(context.Background(), checkout.OrderRequest{})

	assert.ErrorIs(t, err, ErrEmptyOrder)
}

func TestService_SubmitReservesTrackedStock(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	cache := &recordingCache{}
	svc := NewService(db, nil, quietLogger(), WithProductCache(cache))

	_, err := svc.Submit(ctx, orderRequest())
	require.NoError(t, err)

	assert.Equal(t, 4, stockOf(t, db, "honey"))
	assert.Equal(t, 0, stockOf(t, db, "coffee"))
	assert.ElementsMatch(t, []string{"coffee", "honey"}, cache.invalidated)
}

func TestService_SubmitFailsWithoutStock(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	svc := NewService(db, nil, quietLogger())

	req := orderRequest()
	req.Summary.Items[1].Quantity = 6

	_, err := svc.Submit(ctx, req)

	require.ErrorIs(t, err, ErrInsufficientStock)
	assert.Contains(t, err.Error(), "Clover Honey")
	assert.Equal(t, 5, stockOf(t, db, "honey"))

	var count int64
	require.NoError(t, db.Model(&Order{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestService_CancelRestoresStock(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	cache := &recordingCache{}
	svc := NewService(db, nil, quietLogger(), WithProductCache(cache))

	number, err := svc.Submit(ctx, orderRequest())
	require.NoError(t, err)
	require.Equal(t, 4, stockOf(t, db, "honey"))

	require.NoError(t, svc.Cancel(ctx, number, "changed my mind", "user-1"))

	assert.Equal(t, 5, stockOf(t, db, "honey"))
	assert.Len(t, cache.invalidated, 4)
}
