// internal/domain/order/service.go
package order

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/your-org/storefront-cart/internal/domain/catalog"
	"github.com/your-org/storefront-cart/internal/domain/checkout"
)

var (
	ErrOrderNotFound     = errors.New("order not found")
	ErrEmptyOrder        = errors.New("order has no items")
	ErrCannotBeCancelled = errors.New("order can no longer be cancelled")
	ErrInsufficientStock = errors.New("insufficient stock")
)

// ProductCache drops cached products whose stock changed
type ProductCache interface {
	Invalidate(ctx context.Context, productID string) error
}

// Option configures a Service
type Option func(*Service)

// WithProductCache invalidates cached products after stock moves
func WithProductCache(cache ProductCache) Option {
	return func(s *Service) { s.products = cache }
}

// OrderPlaced is emitted after an order commits. Notification senders consume it.
type OrderPlaced struct {
	OrderNumber   string          `json:"order_number"`
	UserID        string          `json:"user_id,omitempty"`
	CustomerName  string          `json:"customer_name"`
	Phone         string          `json:"phone"`
	City          string          `json:"city"`
	PaymentMethod string          `json:"payment_method"`
	ItemCount     int             `json:"item_count"`
	Total         decimal.Decimal `json:"total"`
	PlacedAt      time.Time       `json:"placed_at"`
}

// EventPublisher delivers order events to downstream consumers
type EventPublisher interface {
	PublishOrderPlaced(ctx context.Context, event OrderPlaced) error
}

// Service handles order business logic
type Service struct {
	db        *gorm.DB
	publisher EventPublisher
	products  ProductCache
	logger    logrus.FieldLogger
	now       func() time.Time
}

// NewService creates a new order service. publisher may be nil.
func NewService(db *gorm.DB, publisher EventPublisher, logger logrus.FieldLogger, opts ...Option) *Service {
	s := &Service{
		db:        db,
		publisher: publisher,
		logger:    logger.WithField("component", "order"),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Submit persists a cash on delivery order and returns its order number
func (s *Service) Submit(ctx context.Context, req checkout.OrderRequest) (string, error) {
	if len(req.Summary.Items) == 0 {
		return "", ErrEmptyOrder
	}

	o := Order{
		Status:         OrderStatusPending,
		PaymentStatus:  PaymentStatusPending,
		PaymentMethod:  req.PaymentMethod,
		SubtotalAmount: req.Summary.Totals.Subtotal,
		TaxAmount:      decimal.Zero,
		ShippingAmount: req.ShippingCost,
		TotalAmount:    req.Summary.Totals.Subtotal.Add(req.ShippingCost).Round(2),
		ShippingAddress: Address{
			FullName: req.ShippingAddress.FullName,
			Phone:    req.ShippingAddress.Phone,
			Street:   req.ShippingAddress.Street,
			City:     req.ShippingAddress.City,
			Notes:    req.ShippingAddress.Notes,
		},
		// replaced with the formatted number once the id is known
		OrderNumber: "pending-" + uuid.NewString(),
	}
	if req.UserID != "" {
		userID := req.UserID
		o.UserID = &userID
	}

	for _, li := range req.Summary.Items {
		unit := li.UnitPrice()
		item := OrderItem{
			ProductID:  li.Product.ID,
			Name:       li.Product.Name,
			Quantity:   li.Quantity,
			UnitPrice:  unit,
			TotalPrice: unit.Mul(decimal.NewFromInt(int64(li.Quantity))),
		}
		if li.Variant != nil {
			item.Grams = li.Variant.Grams
			item.VariantLabel = li.Variant.Label
		}
		o.Items = append(o.Items, item)
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := reserveInventory(tx, o.Items); err != nil {
			return err
		}
		if err := tx.Create(&o).Error; err != nil {
			return fmt.Errorf("failed to create order: %w", err)
		}

		o.OrderNumber = FormatOrderNumber(s.now(), o.ID)
		if err := tx.Model(&o).Update("order_number", o.OrderNumber).Error; err != nil {
			return fmt.Errorf("failed to update order number: %w", err)
		}

		o.AddStatusHistory(OrderStatusPending, "Order created", req.UserID)
		history := o.StatusHistory[len(o.StatusHistory)-1]
		if err := tx.Create(&history).Error; err != nil {
			return fmt.Errorf("failed to create status history: %w", err)
		}
		return nil
	})
	if err != nil {
		return "", err
	}

	s.invalidateProducts(ctx, o.Items)
	s.publishPlaced(ctx, &o)
	return o.OrderNumber, nil
}

// GetByNumber loads an order with its items
func (s *Service) GetByNumber(ctx context.Context, orderNumber string) (*Order, error) {
	var o Order
	err := s.db.WithContext(ctx).
		Preload("Items").
		Preload("StatusHistory").
		Where("order_number = ?", orderNumber).
		First(&o).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load order: %w", err)
	}
	return &o, nil
}

// Cancel cancels a pending or confirmed order and puts its stock back
func (s *Service) Cancel(ctx context.Context, orderNumber, reason, cancelledBy string) error {
	var o Order
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Preload("Items").Where("order_number = ?", orderNumber).First(&o).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrOrderNotFound
			}
			return fmt.Errorf("failed to load order: %w", err)
		}
		if !o.CanBeCancelled() {
			return ErrCannotBeCancelled
		}
		if err := tx.Model(&o).Update("status", OrderStatusCancelled).Error; err != nil {
			return fmt.Errorf("failed to cancel order: %w", err)
		}
		if err := restoreInventory(tx, o.Items); err != nil {
			return err
		}
		o.AddStatusHistory(OrderStatusCancelled, reason, cancelledBy)
		history := o.StatusHistory[len(o.StatusHistory)-1]
		if err := tx.Create(&history).Error; err != nil {
			return fmt.Errorf("failed to create status history: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.invalidateProducts(ctx, o.Items)
	return nil
}

// reserveInventory takes the ordered units out of tracked stock. A tracked
// product without enough units fails the whole order; untracked products are
// left alone.
func reserveInventory(tx *gorm.DB, items []OrderItem) error {
	for _, it := range items {
		res := tx.Model(&catalog.Product{}).
			Where("id = ? AND (NOT inventory_tracked OR inventory_quantity >= ?)", it.ProductID, it.Quantity).
			Update("inventory_quantity", gorm.Expr(
				"CASE WHEN inventory_tracked THEN inventory_quantity - ? ELSE inventory_quantity END", it.Quantity))
		if res.Error != nil {
			return fmt.Errorf("failed to reserve stock for %s: %w", it.ProductID, res.Error)
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("%w for %s", ErrInsufficientStock, it.Name)
		}
	}
	return nil
}

func restoreInventory(tx *gorm.DB, items []OrderItem) error {
	for _, it := range items {
		err := tx.Model(&catalog.Product{}).
			Where("id = ? AND inventory_tracked", it.ProductID).
			Update("inventory_quantity", gorm.Expr("inventory_quantity + ?", it.Quantity)).Error
		if err != nil {
			return fmt.Errorf("failed to restore stock for %s: %w", it.ProductID, err)
		}
	}
	return nil
}

func (s *Service) invalidateProducts(ctx context.Context, items []OrderItem) {
	if s.products == nil {
		return
	}
	seen := make(map[string]struct{}, len(items))
	for _, it := range items {
		if _, ok := seen[it.ProductID]; ok {
			continue
		}
		seen[it.ProductID] = struct{}{}
		if err := s.products.Invalidate(context.WithoutCancel(ctx), it.ProductID); err != nil {
			s.logger.WithError(err).WithField("product_id", it.ProductID).Warn("failed to invalidate cached product")
		}
	}
}

func (s *Service) publishPlaced(ctx context.Context, o *Order) {
	if s.publisher == nil {
		return
	}
	count := 0
	for _, it := range o.Items {
		count += it.Quantity
	}
	event := OrderPlaced{
		OrderNumber:   o.OrderNumber,
		CustomerName:  o.ShippingAddress.FullName,
		Phone:         o.ShippingAddress.Phone,
		City:          o.ShippingAddress.City,
		PaymentMethod: o.PaymentMethod,
		ItemCount:     count,
		Total:         o.TotalAmount,
		PlacedAt:      o.CreatedAt,
	}
	if o.UserID != nil {
		event.UserID = *o.UserID
	}
	// the order is committed; a lost event must not fail checkout
	if err := s.publisher.PublishOrderPlaced(context.WithoutCancel(ctx), event); err != nil {
		s.logger.WithError(err).WithField("order_number", o.OrderNumber).Error("failed to publish order placed event")
	}
}
