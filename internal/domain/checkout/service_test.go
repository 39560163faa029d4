package checkout

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/your-org/storefront-cart/internal/domain/cart"
	"github.com/your-org/storefront-cart/internal/domain/catalog"
)

type stubReader map[string]*catalog.Product

func (s stubReader) GetProduct(_ context.Context, id string) (*catalog.Product, error) {
	p, ok := s[id]
	if !ok {
		return nil, catalog.ErrProductNotFound
	}
	cp := *p
	return &cp, nil
}

type fakeSubmitter struct {
	err      error
	requests []OrderRequest
}

func (f *fakeSubmitter) Submit(_ context.Context, req OrderRequest) (string, error) {
	f.requests = append(f.requests, req)
	if f.err != nil {
		return "", f.err
	}
	return "ORD-20260301-00001", nil
}

func quietLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

var testAddress = Address{FullName: "Mona Adel", Phone: "+201000000000", Street: "12 Nile St", City: "cairo"}

func setup(t *testing.T, products stubReader, lines ...cart.LineItem) (*cart.Controller, *cart.MemoryStore, *fakeSubmitter, *Service) {
	t.Helper()
	store := cart.NewMemoryStore(lines...)
	ctrl := cart.NewController(cart.Session{ID: "s1"}, cart.NewListRepository(store), nil, cart.WithLogger(quietLogger()))
	orders := &fakeSubmitter{}
	svc := NewService(cart.NewValidator(products), DefaultShippingPolicy(), orders, quietLogger())
	return ctrl, store, orders, svc
}

func activeProduct(id, price string) *catalog.Product {
	return &catalog.Product{ID: id, Name: id, Price: decimal.RequireFromString(price), IsActive: true}
}

func TestPlaceOrder_Success(t *testing.T) {
	ctx := context.Background()
	coffee := activeProduct("coffee", "12.50")
	ctrl, store, orders, svc := setup(t, stubReader{"coffee": coffee},
		cart.NewLineItem(*coffee, 2, nil, time.Now()))

	receipt, err := svc.PlaceOrder(ctx, ctrl, PlaceOrderRequest{UserID: "u1", ShippingAddress: testAddress})
	require.NoError(t, err)

	assert.Equal(t, "ORD-20260301-00001", receipt.OrderNumber)
	assert.True(t, decimal.RequireFromString("25").Equal(receipt.Subtotal))
	assert.True(t, decimal.RequireFromString("50").Equal(receipt.ShippingCost))
	assert.True(t, decimal.RequireFromString("75").Equal(receipt.Total))

	require.Len(t, orders.requests, 1)
	req := orders.requests[0]
	assert.Equal(t, PaymentMethodCOD, req.PaymentMethod)
	assert.Equal(t, "u1", req.UserID)
	assert.Equal(t, "cairo", req.ShippingAddress.City)
	assert.Len(t, req.Summary.Items, 1)

	stored, _ := store.Load(ctx)
	assert.Empty(t, stored)
	assert.Empty(t, ctrl.Items())
}

func TestPlaceOrder_FailuresLeaveCartIntact(t *testing.T) {
	coffee := activeProduct("coffee", "12.50")
	inactive := activeProduct("tea", "3")
	inactive.IsActive = false

	tests := []struct {
		name      string
		products  stubReader
		address   Address
		payment   string
		submitErr error
		wantErr   error
	}{
		{
			name:     "unsupported payment",
			products: stubReader{"coffee": coffee},
			address:  testAddress,
			payment:  "card",
			wantErr:  ErrUnsupportedPayment,
		},
		{
			name:     "blank city",
			products: stubReader{"coffee": coffee},
			address:  Address{FullName: "x", Phone: "y", Street: "z", City: "  "},
			wantErr:  ErrShippingQuoteUnavailable,
		},
		{
			name:      "submission failure",
			products:  stubReader{"coffee": coffee},
			address:   testAddress,
			submitErr: errors.New("timeout"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			ctrl, store, orders, svc := setup(t, tt.products, cart.NewLineItem(*coffee, 1, nil, time.Now()))
			orders.err = tt.submitErr

			_, err := svc.PlaceOrder(ctx, ctrl, PlaceOrderRequest{ShippingAddress: tt.address, PaymentMethod: tt.payment})

			require.Error(t, err)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}
			stored, _ := store.Load(ctx)
			assert.Len(t, stored, 1)
		})
	}

	t.Run("invalid cart", func(t *testing.T) {
		ctx := context.Background()
		ctrl, store, orders, svc := setup(t, stubReader{"tea": inactive}, cart.NewLineItem(*inactive, 1, nil, time.Now()))

		_, err := svc.PlaceOrder(ctx, ctrl, PlaceOrderRequest{ShippingAddress: testAddress})

		var invalid *cart.ValidationError
		require.ErrorAs(t, err, &invalid)
		require.Len(t, invalid.Problems, 1)
		assert.Equal(t, cart.ReasonProductUnavailable, invalid.Problems[0].Reason)
		assert.Empty(t, orders.requests)
		stored, _ := store.Load(ctx)
		assert.Len(t, stored, 1)
	})
}

func TestPlaceOrder_EmptyCart(t *testing.T) {
	ctrl, _, orders, svc := setup(t, stubReader{})

	_, err := svc.PlaceOrder(context.Background(), ctrl, PlaceOrderRequest{ShippingAddress: testAddress})

	assert.ErrorIs(t, err, ErrEmptyCart)
	assert.Empty(t, orders.requests)
}

func TestPlaceOrder_StandardZoneFee(t *testing.T) {
	coffee := activeProduct("coffee", "0.10")
	ctrl, _, _, svc := setup(t, stubReader{"coffee": coffee}, cart.NewLineItem(*coffee, 3, nil, time.Now()))

	receipt, err := svc.PlaceOrder(context.Background(), ctrl, PlaceOrderRequest{
		ShippingAddress: Address{FullName: "a", Phone: "b", Street: "c", City: "Aswan"},
	})
	require.NoError(t, err)

	assert.Equal(t, "70.30", receipt.Total.StringFixed(2))
}

func TestPlaceOrder_SubmissionErrorKeepsMessage(t *testing.T) {
	ctx := context.Background()
	coffee := activeProduct("coffee", "12.50")
	ctrl, store, orders, svc := setup(t, stubReader{"coffee": coffee}, cart.NewLineItem(*coffee, 1, nil, time.Now()))
	orders.err = errors.New("insufficient stock for coffee")

	_, err := svc.PlaceOrder(ctx, ctrl, PlaceOrderRequest{ShippingAddress: testAddress})

	var rejected *SubmissionError
	require.ErrorAs(t, err, &rejected)
	assert.Equal(t, "insufficient stock for coffee", err.Error())
	assert.ErrorIs(t, err, orders.err)
	stored, _ := store.Load(ctx)
	assert.Len(t, stored, 1)
}

type unavailableRepository struct{}

var errStoreDown = errors.New("account cart store down")

func (unavailableRepository) Load(context.Context) ([]cart.LineItem, error) {
	return nil, errStoreDown
}

func (unavailableRepository) Add(context.Context, cart.LineItem) ([]cart.LineItem, error) {
	return nil, errStoreDown
}

func (unavailableRepository) SetQuantity(context.Context, cart.IdentityKey, int) ([]cart.LineItem, error) {
	return nil, errStoreDown
}

func (unavailableRepository) Remove(context.Context, cart.IdentityKey) ([]cart.LineItem, error) {
	return nil, errStoreDown
}

func (unavailableRepository) Clear(context.Context) error {
	return errStoreDown
}

func TestPlaceOrder_RejectsCartLoadedFromFallback(t *testing.T) {
	ctx := context.Background()
	coffee := activeProduct("coffee", "12.50")
	local := cart.NewMemoryStore(cart.NewLineItem(*coffee, 3, nil, time.Now()))
	ctrl := cart.NewController(cart.Session{ID: "s1", Authenticated: true},
		cart.NewListRepository(local), unavailableRepository{}, cart.WithLogger(quietLogger()))
	orders := &fakeSubmitter{}
	svc := NewService(cart.NewValidator(stubReader{"coffee": coffee}), DefaultShippingPolicy(), orders, quietLogger())

	_, err := svc.PlaceOrder(ctx, ctrl, PlaceOrderRequest{UserID: "u1", ShippingAddress: testAddress})

	assert.ErrorIs(t, err, ErrCartUnavailable)
	assert.Empty(t, orders.requests)
	stored, _ := local.Load(ctx)
	assert.Len(t, stored, 1)
}
