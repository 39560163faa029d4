package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/your-org/storefront-cart/internal/config"
	"github.com/your-org/storefront-cart/internal/domain/cart"
	"github.com/your-org/storefront-cart/internal/domain/catalog"
	"github.com/your-org/storefront-cart/internal/domain/checkout"
	"github.com/your-org/storefront-cart/internal/domain/order"
	"github.com/your-org/storefront-cart/internal/interfaces/http/handlers"
	"github.com/your-org/storefront-cart/internal/interfaces/http/routes"
	"github.com/your-org/storefront-cart/internal/pkg/auth"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

type stubCatalog struct {
	mu       sync.Mutex
	products map[string]catalog.Product
}

func (s *stubCatalog) GetProduct(_ context.Context, id string) (*catalog.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[id]
	if !ok {
		return nil, catalog.ErrProductNotFound
	}
	return &p, nil
}

func (s *stubCatalog) setActive(id string, active bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.products[id]
	p.IsActive = active
	s.products[id] = p
}

type fakeOrders struct {
	mu     sync.Mutex
	err    error
	orders map[string]*order.Order
}

func (f *fakeOrders) Submit(_ context.Context, req checkout.OrderRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	number := "ORD-20260301-00001"
	o := &order.Order{
		OrderNumber: number,
		Status:      order.OrderStatusPending,
		ShippingAddress: order.Address{
			FullName: req.ShippingAddress.FullName,
			Phone:    req.ShippingAddress.Phone,
			Street:   req.ShippingAddress.Street,
			City:     req.ShippingAddress.City,
		},
	}
	if req.UserID != "" {
		userID := req.UserID
		o.UserID = &userID
	}
	f.orders[number] = o
	return number, nil
}

func (f *fakeOrders) GetByNumber(_ context.Context, number string) (*order.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[number]
	if !ok {
		return nil, order.ErrOrderNotFound
	}
	return o, nil
}

func (f *fakeOrders) Cancel(_ context.Context, number, _, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[number]
	if !ok {
		return order.ErrOrderNotFound
	}
	if !o.CanBeCancelled() {
		return order.ErrCannotBeCancelled
	}
	o.Status = order.OrderStatusCancelled
	return nil
}

// memoryStores hands out one MemoryStore per owner
type memoryStores struct {
	mu     sync.Mutex
	stores map[string]*cart.MemoryStore
}

func (m *memoryStores) repo(owner string) cart.Repository {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.stores[owner]; !ok {
		m.stores[owner] = cart.NewMemoryStore()
	}
	return cart.NewListRepository(m.stores[owner])
}

func (m *memoryStores) items(t *testing.T, owner string) []cart.LineItem {
	items, err := m.repo(owner).Load(context.Background())
	require.NoError(t, err)
	return items
}

type harness struct {
	t       *testing.T
	server  *Server
	catalog *stubCatalog
	local   *memoryStores
	remote  *memoryStores
	orders  *fakeOrders
	jwt     *auth.JWTManager
	checks  map[string]HealthCheck
	cookie  *http.Cookie
}

func testConfig() *config.Config {
	return &config.Config{
		App:    config.AppConfig{Name: "storefront-test", Version: "test", Environment: "test"},
		Server: config.ServerConfig{Port: "0", RequestTimeout: 5 * time.Second},
		JWT:    config.JWTConfig{Secret: "test-secret-that-is-at-least-32-characters", AccessTokenExpiry: time.Hour},
		Security: config.SecurityConfig{
			CORSAllowedOrigins: []string{"http://localhost:3000"},
			CORSAllowedMethods: []string{"GET", "POST", "PATCH", "DELETE"},
			CORSAllowedHeaders: []string{"Content-Type", "Authorization"},
		},
		Cart: config.CartConfig{RemoteTimeout: time.Second},
	}
}

func newHarness(t *testing.T) *harness {
	cfg := testConfig()
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	h := &harness{
		t: t,
		catalog: &stubCatalog{products: map[string]catalog.Product{
			"coffee": {
				ID: "coffee", Name: "Arabica Coffee", Price: decimal.RequireFromString("12.50"), IsActive: true,
				WeightOptions: []catalog.WeightOption{
					{ProductID: "coffee", Label: "250 g", Grams: 250, Price: decimal.RequireFromString("7.25")},
				},
			},
			"tea": {ID: "tea", Name: "Hibiscus Tea", Price: decimal.RequireFromString("4"), IsActive: false},
			"honey": {
				ID: "honey", Name: "Clover Honey", Price: decimal.RequireFromString("9"), IsActive: true,
				Inventory: catalog.Inventory{Tracked: true, Quantity: 0},
			},
		}},
		local:  &memoryStores{stores: map[string]*cart.MemoryStore{}},
		remote: &memoryStores{stores: map[string]*cart.MemoryStore{}},
		orders: &fakeOrders{orders: map[string]*order.Order{}},
		jwt:    auth.NewJWTManager(cfg),
		checks: map[string]HealthCheck{},
	}

	checkoutService := checkout.NewService(cart.NewValidator(h.catalog), checkout.DefaultShippingPolicy(), h.orders, logger)
	h.server = NewServer(cfg, routes.Dependencies{
		Config:  cfg,
		Logger:  logger,
		JWT:     h.jwt,
		Catalog: h.catalog,
		CartStores: handlers.CartStores{
			Local:  h.local.repo,
			Remote: func(userID, _ string) cart.Repository { return h.remote.repo(userID) },
		},
		AccountCarts: h.remote.repo,
		Checkout:     checkoutService,
		Orders:       h.orders,
	}, nil, h.checks)
	return h
}

func (h *harness) token(userID string) string {
	token, err := h.jwt.GenerateAccessToken(userID, userID+"@example.com")
	require.NoError(h.t, err)
	return token
}

type envelope struct {
	Message string          `json:"message"`
	Error   string          `json:"error"`
	Data    json.RawMessage `json:"data"`
}

func (h *harness) do(method, path string, body interface{}, token string) (*httptest.ResponseRecorder, envelope) {
	var reader io.Reader
	if raw, ok := body.(string); ok {
		reader = strings.NewReader(raw)
	} else if body != nil {
		data, err := json.Marshal(body)
		require.NoError(h.t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if h.cookie != nil {
		req.AddCookie(h.cookie)
	}

	rec := httptest.NewRecorder()
	h.server.Handler().ServeHTTP(rec, req)

	for _, c := range rec.Result().Cookies() {
		if c.Name == "session_id" {
			h.cookie = c
		}
	}

	var env envelope
	if rec.Body.Len() > 0 {
		require.NoError(h.t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	}
	return rec, env
}

func decodeSnapshot(t *testing.T, env envelope) cart.Snapshot {
	var snap cart.Snapshot
	require.NoError(t, json.Unmarshal(env.Data, &snap))
	return snap
}

func TestGuestCartFlow(t *testing.T) {
	h := newHarness(t)

	rec, env := h.do(http.MethodPost, "/api/v1/cart/items", handlers.AddToCartRequest{ProductID: "coffee", Quantity: 2, Grams: 250}, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "Arabica Coffee added to cart", env.Message)
	require.NotNil(t, h.cookie)

	_, env = h.do(http.MethodPost, "/api/v1/cart/items", handlers.AddToCartRequest{ProductID: "coffee", Quantity: 1}, "")
	snap := decodeSnapshot(t, env)
	require.Len(t, snap.Items, 2)
	assert.Equal(t, cart.ModeLocal, snap.Mode)
	assert.Equal(t, "27", snap.Totals.Subtotal.String())
	assert.Equal(t, "37", snap.Totals.Total.String())

	_, env = h.do(http.MethodPatch, "/api/v1/cart/items/coffee?grams=250", handlers.UpdateQuantityRequest{Quantity: 5}, "")
	snap = decodeSnapshot(t, env)
	line, ok := cart.FindLine(snap.Items, cart.IdentityKey{ProductID: "coffee", Grams: 250})
	require.True(t, ok)
	assert.Equal(t, 5, line.Quantity)

	_, env = h.do(http.MethodDelete, "/api/v1/cart/items/coffee", nil, "")
	snap = decodeSnapshot(t, env)
	require.Len(t, snap.Items, 1)
	assert.Equal(t, 250, snap.Items[0].Variant.Grams)

	rec, env = h.do(http.MethodGet, "/api/v1/cart/count", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"count":5}`, string(env.Data))

	assert.Len(t, h.local.items(t, h.cookie.Value), 1)

	_, env = h.do(http.MethodDelete, "/api/v1/cart", nil, "")
	assert.Empty(t, decodeSnapshot(t, env).Items)
	assert.Empty(t, h.local.items(t, h.cookie.Value))
}

func TestAddToCartRejections(t *testing.T) {
	h := newHarness(t)

	tests := []struct {
		name string
		body handlers.AddToCartRequest
		code int
	}{
		{"unknown product", handlers.AddToCartRequest{ProductID: "nope", Quantity: 1}, http.StatusNotFound},
		{"inactive product", handlers.AddToCartRequest{ProductID: "tea", Quantity: 1}, http.StatusBadRequest},
		{"out of stock", handlers.AddToCartRequest{ProductID: "honey", Quantity: 1}, http.StatusBadRequest},
		{"unknown weight", handlers.AddToCartRequest{ProductID: "coffee", Quantity: 1, Grams: 333}, http.StatusBadRequest},
		{"zero quantity", handlers.AddToCartRequest{ProductID: "coffee", Quantity: 0}, http.StatusBadRequest},
		{"missing product id", handlers.AddToCartRequest{Quantity: 1}, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, env := h.do(http.MethodPost, "/api/v1/cart/items", tt.body, "")
			assert.Equal(t, tt.code, rec.Code)
			assert.NotEmpty(t, env.Error)
		})
	}

	rec, _ := h.do(http.MethodDelete, "/api/v1/cart/items/coffee?grams=heavy", nil, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMemberCartUsesAccountStore(t *testing.T) {
	h := newHarness(t)
	token := h.token("user-1")

	_, env := h.do(http.MethodPost, "/api/v1/cart/items", handlers.AddToCartRequest{ProductID: "coffee", Quantity: 1}, token)
	snap := decodeSnapshot(t, env)

	assert.Equal(t, cart.ModeRemote, snap.Mode)
	assert.Len(t, h.remote.items(t, "user-1"), 1)
	assert.Empty(t, h.local.items(t, h.cookie.Value))
}

func TestMergeGuestCart(t *testing.T) {
	h := newHarness(t)

	h.do(http.MethodPost, "/api/v1/cart/items", handlers.AddToCartRequest{ProductID: "coffee", Quantity: 2}, "")
	rec, _ := h.do(http.MethodPost, "/api/v1/cart/merge", nil, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	token := h.token("user-1")
	h.do(http.MethodPost, "/api/v1/account/cart", handlers.AddToCartRequest{ProductID: "coffee", Quantity: 1}, token)

	rec, env := h.do(http.MethodPost, "/api/v1/cart/merge", nil, token)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	snap := decodeSnapshot(t, env)
	require.Len(t, snap.Items, 1)
	assert.Equal(t, 3, snap.Items[0].Quantity)
	assert.Empty(t, h.local.items(t, h.cookie.Value))
}

func TestValidateCart(t *testing.T) {
	h := newHarness(t)
	h.do(http.MethodPost, "/api/v1/cart/items", handlers.AddToCartRequest{ProductID: "coffee", Quantity: 1}, "")

	rec, _ := h.do(http.MethodPost, "/api/v1/cart/validate", nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)

	h.catalog.setActive("coffee", false)
	rec, env := h.do(http.MethodPost, "/api/v1/cart/validate", nil, "")
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	var result cart.ValidationResult
	require.NoError(t, json.Unmarshal(env.Data, &result))
	require.Len(t, result.Problems, 1)
	assert.Equal(t, cart.ReasonProductUnavailable, result.Problems[0].Reason)
}

func placeOrderBody(city string) handlers.PlaceOrderRequest {
	return handlers.PlaceOrderRequest{ShippingAddress: checkout.Address{
		FullName: "Mona Adel", Phone: "+20100", Street: "12 Nile St", City: city,
	}}
}

func TestCheckout(t *testing.T) {
	t.Run("places order and clears cart", func(t *testing.T) {
		h := newHarness(t)
		h.do(http.MethodPost, "/api/v1/cart/items", handlers.AddToCartRequest{ProductID: "coffee", Quantity: 2}, "")

		rec, env := h.do(http.MethodPost, "/api/v1/checkout", placeOrderBody("Giza"), "")
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		var receipt checkout.Receipt
		require.NoError(t, json.Unmarshal(env.Data, &receipt))
		assert.Equal(t, "ORD-20260301-00001", receipt.OrderNumber)
		assert.Equal(t, "75", receipt.Total.String())
		assert.Empty(t, h.local.items(t, h.cookie.Value))
	})

	t.Run("blank city keeps cart", func(t *testing.T) {
		h := newHarness(t)
		h.do(http.MethodPost, "/api/v1/cart/items", handlers.AddToCartRequest{ProductID: "coffee", Quantity: 1}, "")

		rec, _ := h.do(http.MethodPost, "/api/v1/checkout", placeOrderBody(""), "")

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Len(t, h.local.items(t, h.cookie.Value), 1)
	})

	t.Run("empty cart", func(t *testing.T) {
		h := newHarness(t)

		rec, _ := h.do(http.MethodPost, "/api/v1/checkout", placeOrderBody("Cairo"), "")

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("invalid cart", func(t *testing.T) {
		h := newHarness(t)
		h.do(http.MethodPost, "/api/v1/cart/items", handlers.AddToCartRequest{ProductID: "coffee", Quantity: 1}, "")
		h.catalog.setActive("coffee", false)

		rec, _ := h.do(http.MethodPost, "/api/v1/checkout", placeOrderBody("Cairo"), "")

		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		assert.Len(t, h.local.items(t, h.cookie.Value), 1)
	})

	t.Run("order service failure keeps cart", func(t *testing.T) {
		h := newHarness(t)
		h.orders.err = errors.New("database unavailable")
		h.do(http.MethodPost, "/api/v1/cart/items", handlers.AddToCartRequest{ProductID: "coffee", Quantity: 1}, "")

		rec, env := h.do(http.MethodPost, "/api/v1/checkout", placeOrderBody("Cairo"), "")

		assert.Equal(t, http.StatusBadGateway, rec.Code)
		assert.Equal(t, "database unavailable", env.Error)
		assert.Len(t, h.local.items(t, h.cookie.Value), 1)
	})
}

func TestShippingQuote(t *testing.T) {
	h := newHarness(t)

	_, env := h.do(http.MethodGet, "/api/v1/checkout/shipping-quote?city=cairo", nil, "")
	var quote checkout.Quote
	require.NoError(t, json.Unmarshal(env.Data, &quote))
	assert.True(t, quote.Available)
	assert.Equal(t, "50", quote.Fee.String())

	_, env = h.do(http.MethodGet, "/api/v1/checkout/shipping-quote", nil, "")
	require.NoError(t, json.Unmarshal(env.Data, &quote))
	assert.False(t, quote.Available)
}

func TestAccountCartAPI(t *testing.T) {
	h := newHarness(t)

	rec, _ := h.do(http.MethodGet, "/api/v1/account/cart", nil, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	token := h.token("user-9")
	rec, env := h.do(http.MethodPost, "/api/v1/account/cart", handlers.AddToCartRequest{ProductID: "coffee", Quantity: 2, Grams: 250}, token)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var data struct {
		Items []cart.LineItem `json:"items"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))
	require.Len(t, data.Items, 1)
	assert.Equal(t, "7.25", data.Items[0].UnitPrice().String())

	_, env = h.do(http.MethodPatch, "/api/v1/account/cart/coffee?grams=250", handlers.UpdateQuantityRequest{Quantity: 0}, token)
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.Empty(t, data.Items)
}

func TestGetProduct(t *testing.T) {
	h := newHarness(t)

	rec, env := h.do(http.MethodGet, "/api/v1/products/coffee", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var p catalog.Product
	require.NoError(t, json.Unmarshal(env.Data, &p))
	assert.Len(t, p.WeightOptions, 1)

	rec, _ = h.do(http.MethodGet, "/api/v1/products/nope", nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestOrders(t *testing.T) {
	h := newHarness(t)
	owner := h.token("user-1")
	h.do(http.MethodPost, "/api/v1/cart/items", handlers.AddToCartRequest{ProductID: "coffee", Quantity: 1}, owner)
	rec, _ := h.do(http.MethodPost, "/api/v1/checkout", placeOrderBody("Cairo"), owner)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec, _ = h.do(http.MethodGet, "/api/v1/orders/ORD-20260301-00001", nil, owner)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, _ = h.do(http.MethodGet, "/api/v1/orders/ORD-20260301-00001", nil, h.token("user-2"))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, _ = h.do(http.MethodPost, "/api/v1/orders/ORD-20260301-00001/cancel", `{"reason":`, owner)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec, _ = h.do(http.MethodPost, "/api/v1/orders/ORD-20260301-00001/cancel", nil, h.token("user-2"))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, _ = h.do(http.MethodPost, "/api/v1/orders/ORD-20260301-00001/cancel", nil, owner)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec, _ = h.do(http.MethodPost, "/api/v1/orders/ORD-20260301-00001/cancel", nil, owner)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestGuestOrders(t *testing.T) {
	h := newHarness(t)
	h.do(http.MethodPost, "/api/v1/cart/items", handlers.AddToCartRequest{ProductID: "coffee", Quantity: 1}, "")
	rec, _ := h.do(http.MethodPost, "/api/v1/checkout", placeOrderBody("Cairo"), "")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	require.Nil(t, h.orders.orders["ORD-20260301-00001"].UserID)

	path := "/api/v1/orders/ORD-20260301-00001"
	stranger := h.token("user-2")

	rec, _ = h.do(http.MethodGet, path, nil, stranger)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec, _ = h.do(http.MethodGet, path, nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec, _ = h.do(http.MethodGet, path+"?phone=%2B20999", nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, env := h.do(http.MethodGet, path+"?phone=%2B20100", nil, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var o order.Order
	require.NoError(t, json.Unmarshal(env.Data, &o))
	assert.Equal(t, "Mona Adel", o.ShippingAddress.FullName)

	rec, _ = h.do(http.MethodPost, path+"/cancel", nil, stranger)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, order.OrderStatusPending, h.orders.orders["ORD-20260301-00001"].Status)
}

func TestHealthCheck(t *testing.T) {
	h := newHarness(t)

	rec, _ := h.do(http.MethodGet, "/health", nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)

	h.checks["redis"] = func(context.Context) error { return errors.New("connection refused") }
	rec, _ = h.do(http.MethodGet, "/health", nil, "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec, _ = h.do(http.MethodGet, "/ready", nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestMiddlewareHeaders(t *testing.T) {
	h := newHarness(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/cart", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("X-Request-ID", "req-123")
	rec := httptest.NewRecorder()
	h.server.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "req-123", rec.Header().Get("X-Request-ID"))

	rec, _ = h.do(http.MethodGet, "/api/v1/cart", nil, "")
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}
