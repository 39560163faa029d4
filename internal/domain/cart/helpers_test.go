package cart

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/your-org/storefront-cart/internal/domain/catalog"
)

var errStoreDown = errors.New("store down")

func quietLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func newProduct(id, price string) catalog.Product {
	return catalog.Product{
		ID:       id,
		Name:     "Product " + id,
		Price:    decimal.RequireFromString(price),
		IsActive: true,
	}
}

func variant(grams int, price string) *WeightVariant {
	return &WeightVariant{Grams: grams, Price: decimal.RequireFromString(price)}
}

// fakeRepository is a ListRepository over a MemoryStore that can be told to fail
// or to block writes until released
type fakeRepository struct {
	*ListRepository
	store *MemoryStore

	failing atomic.Bool
	gate    chan struct{}

	mu    sync.Mutex
	calls []string
}

func newFakeRepository(items ...LineItem) *fakeRepository {
	store := NewMemoryStore(items...)
	return &fakeRepository{ListRepository: NewListRepository(store), store: store}
}

func (f *fakeRepository) record(ctx context.Context, op string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	f.calls = append(f.calls, op)
	f.mu.Unlock()
	if f.gate != nil && op != "load" {
		<-f.gate
	}
	if f.failing.Load() {
		return errStoreDown
	}
	return nil
}

func (f *fakeRepository) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeRepository) Load(ctx context.Context) ([]LineItem, error) {
	if err := f.record(ctx, "load"); err != nil {
		return nil, err
	}
	return f.ListRepository.Load(ctx)
}

func (f *fakeRepository) Add(ctx context.Context, line LineItem) ([]LineItem, error) {
	if err := f.record(ctx, "add"); err != nil {
		return nil, err
	}
	return f.ListRepository.Add(ctx, line)
}

func (f *fakeRepository) SetQuantity(ctx context.Context, key IdentityKey, quantity int) ([]LineItem, error) {
	if err := f.record(ctx, "set_quantity"); err != nil {
		return nil, err
	}
	return f.ListRepository.SetQuantity(ctx, key, quantity)
}

func (f *fakeRepository) Remove(ctx context.Context, key IdentityKey) ([]LineItem, error) {
	if err := f.record(ctx, "remove"); err != nil {
		return nil, err
	}
	return f.ListRepository.Remove(ctx, key)
}

func (f *fakeRepository) Clear(ctx context.Context) error {
	if err := f.record(ctx, "clear"); err != nil {
		return err
	}
	return f.ListRepository.Clear(ctx)
}

func (f *fakeRepository) stored() []LineItem {
	items, _ := f.store.Load(context.Background())
	return items
}
