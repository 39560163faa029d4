// internal/infrastructure/cartapi/client.go
package cartapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/your-org/storefront-cart/internal/domain/cart"
)

// APIError is a non-2xx answer from the remote cart API
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("cart api: %d %s", e.StatusCode, e.Message)
}

// AddRequest is the body of POST /cart
type AddRequest struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
	Grams     int    `json:"grams,omitempty"`
}

// QuantityRequest is the body of PATCH /cart/:product_id
type QuantityRequest struct {
	Quantity int `json:"quantity"`
}

type envelope struct {
	Message string `json:"message"`
	Error   string `json:"error"`
	Data    struct {
		Items []cart.LineItem `json:"items"`
	} `json:"data"`
}

// Client talks to the remote cart API
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a client for the cart API rooted at baseURL, e.g.
// https://shop.example.com/api/v1/account
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

// ForToken returns the cart of the account the bearer token belongs to
func (c *Client) ForToken(token string) *AccountCart {
	return &AccountCart{client: c, token: token}
}

// AccountCart is the remote cart of one account
type AccountCart struct {
	client *Client
	token  string
}

func (a *AccountCart) Load(ctx context.Context) ([]cart.LineItem, error) {
	return a.do(ctx, http.MethodGet, "/cart", nil, nil)
}

func (a *AccountCart) Add(ctx context.Context, line cart.LineItem) ([]cart.LineItem, error) {
	body := AddRequest{ProductID: line.Product.ID, Quantity: line.Quantity}
	if line.Variant != nil {
		body.Grams = line.Variant.Grams
	}
	return a.do(ctx, http.MethodPost, "/cart", nil, body)
}

func (a *AccountCart) SetQuantity(ctx context.Context, key cart.IdentityKey, quantity int) ([]cart.LineItem, error) {
	return a.do(ctx, http.MethodPatch, itemPath(key), gramsQuery(key), QuantityRequest{Quantity: quantity})
}

func (a *AccountCart) Remove(ctx context.Context, key cart.IdentityKey) ([]cart.LineItem, error) {
	return a.do(ctx, http.MethodDelete, itemPath(key), gramsQuery(key), nil)
}

func (a *AccountCart) Clear(ctx context.Context) error {
	_, err := a.do(ctx, http.MethodDelete, "/cart", nil, nil)
	return err
}

func (a *AccountCart) do(ctx context.Context, method, path string, query url.Values, body interface{}) ([]cart.LineItem, error) {
	u := a.client.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request failed: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return nil, fmt.Errorf("build request failed: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if a.token != "" {
		req.Header.Set("Authorization", "Bearer "+a.token)
	}

	resp, err := a.client.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("cart api %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil && err != io.EOF {
		if resp.StatusCode >= 300 {
			return nil, &APIError{StatusCode: resp.StatusCode, Message: resp.Status}
		}
		return nil, fmt.Errorf("decode response failed: %w", err)
	}

	if resp.StatusCode >= 300 {
		msg := env.Error
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return nil, &APIError{StatusCode: resp.StatusCode, Message: msg}
	}

	if env.Data.Items == nil {
		return []cart.LineItem{}, nil
	}
	return env.Data.Items, nil
}

func itemPath(key cart.IdentityKey) string {
	return "/cart/" + url.PathEscape(key.ProductID)
}

func gramsQuery(key cart.IdentityKey) url.Values {
	if !key.HasVariant() {
		return nil
	}
	return url.Values{"grams": []string{strconv.Itoa(key.Grams)}}
}
