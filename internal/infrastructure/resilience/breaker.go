// internal/infrastructure/resilience/breaker.go
package resilience

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker/v2"

	"github.com/your-org/storefront-cart/internal/domain/cart"
	"github.com/your-org/storefront-cart/internal/infrastructure/cartapi"
)

// BreakerSettings tunes the remote cart breaker
type BreakerSettings struct {
	Name        string
	MaxFailures uint32        // consecutive failures that open the breaker
	OpenTimeout time.Duration // time spent open before a trial request
}

// Breaker is one circuit breaker shared by every remote cart store it wraps.
// While open, calls fail fast with gobreaker.ErrOpenState.
type Breaker struct {
	cb *gobreaker.CircuitBreaker[[]cart.LineItem]
}

// NewBreaker creates a breaker
func NewBreaker(settings BreakerSettings, logger logrus.FieldLogger) *Breaker {
	if settings.MaxFailures == 0 {
		settings.MaxFailures = 5
	}
	if settings.OpenTimeout <= 0 {
		settings.OpenTimeout = 30 * time.Second
	}
	log := logger.WithField("breaker", settings.Name)

	cb := gobreaker.NewCircuitBreaker[[]cart.LineItem](gobreaker.Settings{
		Name:        settings.Name,
		MaxRequests: 1,
		Timeout:     settings.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= settings.MaxFailures
		},
		IsSuccessful: countsAsHealthy,
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.WithFields(logrus.Fields{"from": from.String(), "to": to.String()}).Warn("circuit breaker state changed")
		},
	})
	return &Breaker{cb: cb}
}

// countsAsHealthy reports whether err leaves the remote store's health intact.
// A 4xx answer means the API is up and rejected the request.
func countsAsHealthy(err error) bool {
	if err == nil {
		return true
	}
	var apiErr *cartapi.APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode < 500
}

// State returns the current breaker state
func (b *Breaker) State() gobreaker.State {
	return b.cb.State()
}

// Wrap guards repo with the breaker
func (b *Breaker) Wrap(repo cart.Repository) cart.Repository {
	return &guardedRepository{next: repo, cb: b.cb}
}

type guardedRepository struct {
	next cart.Repository
	cb   *gobreaker.CircuitBreaker[[]cart.LineItem]
}

func (g *guardedRepository) Load(ctx context.Context) ([]cart.LineItem, error) {
	return g.cb.Execute(func() ([]cart.LineItem, error) {
		return g.next.Load(ctx)
	})
}

func (g *guardedRepository) Add(ctx context.Context, line cart.LineItem) ([]cart.LineItem, error) {
	return g.cb.Execute(func() ([]cart.LineItem, error) {
		return g.next.Add(ctx, line)
	})
}

func (g *guardedRepository) SetQuantity(ctx context.Context, key cart.IdentityKey, quantity int) ([]cart.LineItem, error) {
	return g.cb.Execute(func() ([]cart.LineItem, error) {
		return g.next.SetQuantity(ctx, key, quantity)
	})
}

func (g *guardedRepository) Remove(ctx context.Context, key cart.IdentityKey) ([]cart.LineItem, error) {
	return g.cb.Execute(func() ([]cart.LineItem, error) {
		return g.next.Remove(ctx, key)
	})
}

func (g *guardedRepository) Clear(ctx context.Context) error {
	_, err := g.cb.Execute(func() ([]cart.LineItem, error) {
		return nil, g.next.Clear(ctx)
	})
	return err
}
