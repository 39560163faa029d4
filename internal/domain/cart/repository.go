// internal/domain/cart/repository.go
package cart

import (
	"context"
	"sync"
)

// Repository is the contract every cart store implements, local or remote.
// Each mutation returns the full resulting line list.
type Repository interface {
	Load(ctx context.Context) ([]LineItem, error)
	Add(ctx context.Context, line LineItem) ([]LineItem, error)
	SetQuantity(ctx context.Context, key IdentityKey, quantity int) ([]LineItem, error)
	Remove(ctx context.Context, key IdentityKey) ([]LineItem, error)
	Clear(ctx context.Context) error
}

// ListStore persists a whole line list under one key
type ListStore interface {
	Load(ctx context.Context) ([]LineItem, error)
	Save(ctx context.Context, items []LineItem) error
	Delete(ctx context.Context) error
}

// AtomicListStore applies a read-modify-write as one unit, so concurrent
// mutations of the same list are never lost
type AtomicListStore interface {
	ListStore
	Update(ctx context.Context, fn func([]LineItem) []LineItem) ([]LineItem, error)
}

// ListRepository turns a ListStore into a Repository by loading the list,
// applying the mutation and saving it back. Stores implementing AtomicListStore
// do that in one step.
type ListRepository struct {
	store ListStore
}

// NewListRepository creates a repository over store
func NewListRepository(store ListStore) *ListRepository {
	return &ListRepository{store: store}
}

func (r *ListRepository) Load(ctx context.Context) ([]LineItem, error) {
	return r.store.Load(ctx)
}

func (r *ListRepository) Add(ctx context.Context, line LineItem) ([]LineItem, error) {
	return r.mutate(ctx, func(items []LineItem) []LineItem {
		return AddLine(items, line)
	})
}

func (r *ListRepository) SetQuantity(ctx context.Context, key IdentityKey, quantity int) ([]LineItem, error) {
	return r.mutate(ctx, func(items []LineItem) []LineItem {
		return SetLineQuantity(items, key, quantity)
	})
}

func (r *ListRepository) Remove(ctx context.Context, key IdentityKey) ([]LineItem, error) {
	return r.mutate(ctx, func(items []LineItem) []LineItem {
		return RemoveLine(items, key)
	})
}

func (r *ListRepository) Clear(ctx context.Context) error {
	return r.store.Delete(ctx)
}

func (r *ListRepository) mutate(ctx context.Context, fn func([]LineItem) []LineItem) ([]LineItem, error) {
	if atomic, ok := r.store.(AtomicListStore); ok {
		return atomic.Update(ctx, fn)
	}
	items, err := r.store.Load(ctx)
	if err != nil {
		return nil, err
	}
	next := fn(items)
	if err := r.store.Save(ctx, next); err != nil {
		return nil, err
	}
	return next, nil
}

// MemoryStore keeps a line list in process memory
type MemoryStore struct {
	mu    sync.RWMutex
	items []LineItem
}

// NewMemoryStore creates a store seeded with items
func NewMemoryStore(items ...LineItem) *MemoryStore {
	return &MemoryStore{items: Clone(items)}
}

func (s *MemoryStore) Load(_ context.Context) ([]LineItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Clone(s.items), nil
}

func (s *MemoryStore) Save(_ context.Context, items []LineItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = Clone(items)
	return nil
}

func (s *MemoryStore) Update(_ context.Context, fn func([]LineItem) []LineItem) ([]LineItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = Clone(fn(Clone(s.items)))
	return Clone(s.items), nil
}

func (s *MemoryStore) Delete(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = nil
	return nil
}
