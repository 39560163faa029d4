// internal/infrastructure/database/redis/session_store.go
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/your-org/storefront-cart/internal/domain/cart"
)

// DefaultSessionTTL is how long an idle guest cart is kept
const DefaultSessionTTL = 24 * time.Hour

// maxUpdateAttempts bounds the WATCH retries of one Update
const maxUpdateAttempts = 100

// ErrUpdateConflict is returned when an Update kept losing to concurrent writers
var ErrUpdateConflict = errors.New("session cart update conflicted too many times")

// SessionCart is the JSON document stored per guest session
type SessionCart struct {
	SessionID string          `json:"session_id"`
	Items     []cart.LineItem `json:"items"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
	ExpiresAt time.Time       `json:"expires_at"`
}

// SessionStore keeps one session's cart in redis. Every save refreshes the TTL.
type SessionStore struct {
	client    *redis.Client
	sessionID string
	ttl       time.Duration
}

// NewSessionStore creates the store for sessionID. A non-positive ttl uses the default.
func NewSessionStore(client *redis.Client, sessionID string, ttl time.Duration) *SessionStore {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &SessionStore{client: client, sessionID: sessionID, ttl: ttl}
}

// NewSessionRepository returns the cart repository for a guest session
func NewSessionRepository(client *redis.Client, sessionID string, ttl time.Duration) *cart.ListRepository {
	return cart.NewListRepository(NewSessionStore(client, sessionID, ttl))
}

func (s *SessionStore) Load(ctx context.Context) ([]cart.LineItem, error) {
	sc, err := s.get(ctx, s.client)
	if err != nil {
		return nil, err
	}
	if sc == nil {
		return []cart.LineItem{}, nil
	}
	return sc.Items, nil
}

func (s *SessionStore) Save(ctx context.Context, items []cart.LineItem) error {
	if s.sessionID == "" {
		return fmt.Errorf("session ID required for guest cart")
	}

	sc, err := s.get(ctx, s.client)
	if err != nil {
		sc = nil
	}
	data, err := s.encode(sc, items)
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, sessionCartKey(s.sessionID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

// Update applies fn to the stored list inside a WATCH transaction. A write by
// another request between the read and the write makes the attempt start over.
func (s *SessionStore) Update(ctx context.Context, fn func([]cart.LineItem) []cart.LineItem) ([]cart.LineItem, error) {
	if s.sessionID == "" {
		return nil, fmt.Errorf("session ID required for guest cart")
	}
	key := sessionCartKey(s.sessionID)

	var next []cart.LineItem
	txf := func(tx *redis.Tx) error {
		sc, err := s.get(ctx, tx)
		if err != nil {
			return err
		}
		var items []cart.LineItem
		if sc != nil {
			items = sc.Items
		}
		next = fn(items)

		data, err := s.encode(sc, next)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, s.ttl)
			return nil
		})
		return err
	}

	for attempt := 0; attempt < maxUpdateAttempts; attempt++ {
		err := s.client.Watch(ctx, txf, key)
		if err == nil {
			return next, nil
		}
		if !errors.Is(err, redis.TxFailedErr) {
			return nil, fmt.Errorf("redis update failed: %w", err)
		}
	}
	return nil, ErrUpdateConflict
}

func (s *SessionStore) Delete(ctx context.Context) error {
	if err := s.client.Del(ctx, sessionCartKey(s.sessionID)).Err(); err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	return nil
}

type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func (s *SessionStore) get(ctx context.Context, r getter) (*SessionCart, error) {
	if s.sessionID == "" {
		return nil, fmt.Errorf("session ID required for guest cart")
	}

	data, err := r.Get(ctx, sessionCartKey(s.sessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}

	var sc SessionCart
	if err := json.Unmarshal(data, &sc); err != nil {
		return nil, fmt.Errorf("unmarshal session cart failed: %w", err)
	}
	return &sc, nil
}

// encode renders the document to store, keeping CreatedAt of prev when there is one
func (s *SessionStore) encode(prev *SessionCart, items []cart.LineItem) ([]byte, error) {
	now := time.Now().UTC()
	sc := SessionCart{SessionID: s.sessionID, CreatedAt: now}
	if prev != nil {
		sc.CreatedAt = prev.CreatedAt
	}
	sc.Items = items
	sc.UpdatedAt = now
	sc.ExpiresAt = now.Add(s.ttl)

	data, err := json.Marshal(sc)
	if err != nil {
		return nil, fmt.Errorf("marshal session cart failed: %w", err)
	}
	return data, nil
}

func sessionCartKey(sessionID string) string {
	return fmt.Sprintf("cart:session:%s", sessionID)
}
