// internal/domain/cart/controller.go
package cart

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/your-org/storefront-cart/internal/domain/catalog"
)

const defaultRemoteTimeout = 5 * time.Second

// AddedNotifier receives the line of every successful add
type AddedNotifier func(line LineItem)

// Option configures a Controller
type Option func(*Controller)

// WithAddedNotifier sets the add confirmation signal
func WithAddedNotifier(fn AddedNotifier) Option {
	return func(c *Controller) { c.notify = fn }
}

// WithRemoteTimeout bounds every backend write and load
func WithRemoteTimeout(d time.Duration) Option {
	return func(c *Controller) {
		if d > 0 {
			c.remoteTimeout = d
		}
	}
}

// WithLogger sets the logger used for absorbed backend errors
func WithLogger(l logrus.FieldLogger) Option {
	return func(c *Controller) { c.logger = l }
}

// WithClock overrides the time source for added-at stamps
func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

// Controller owns one session's cart. The in-memory list is updated before the
// backend write so readers see the optimistic state while the write is in flight.
// Backend failures in remote mode fall back to the local store and are never
// returned from mutations.
type Controller struct {
	local         Repository
	remote        Repository
	session       Session
	notify        AddedNotifier
	remoteTimeout time.Duration
	logger        logrus.FieldLogger
	now           func() time.Time

	// writeMu serializes backend writes in issue order; stateMu guards the fields below
	writeMu sync.Mutex

	stateMu  sync.RWMutex
	items    []LineItem
	state    State
	mode     Mode
	degraded bool
}

// NewController creates a controller for session. remote may be nil; it is only
// used when the session is authenticated.
func NewController(session Session, local, remote Repository, opts ...Option) *Controller {
	c := &Controller{
		local:         local,
		remote:        remote,
		session:       session,
		remoteTimeout: defaultRemoteTimeout,
		logger:        logrus.StandardLogger(),
		now:           time.Now,
		state:         StateUninitialized,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.mode = selectMode(session, remote)
	c.logger = c.logger.WithFields(logrus.Fields{
		"component":  "cart_controller",
		"session_id": session.ID,
	})
	return c
}

func selectMode(session Session, remote Repository) Mode {
	if session.Authenticated && remote != nil {
		return ModeRemote
	}
	return ModeLocal
}

// Load reads the cart from the authoritative store. A failing remote store falls
// back to the local store and a failing local store to an empty cart.
func (c *Controller) Load(ctx context.Context) Snapshot {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.load(ctx)
	return c.Snapshot()
}

func (c *Controller) load(ctx context.Context) {
	c.stateMu.Lock()
	c.state = StateLoading
	mode := c.mode
	c.stateMu.Unlock()

	bctx, cancel := c.backendContext(ctx)
	defer cancel()

	var (
		items    []LineItem
		err      error
		degraded bool
	)
	if mode == ModeRemote {
		items, err = c.remote.Load(bctx)
		if err != nil {
			c.logger.WithError(err).Warn("remote cart load failed, using local cart")
			degraded = true
		}
	}
	if mode == ModeLocal || err != nil {
		items, err = c.local.Load(bctx)
		if err != nil {
			c.logger.WithError(err).Warn("local cart load failed, starting empty")
			items = nil
		}
	}

	c.stateMu.Lock()
	c.items = Clone(items)
	c.degraded = degraded
	c.state = StateReady
	c.stateMu.Unlock()
}

// AddItem adds quantity units of product at an optional weight. A line with the
// same identity is incremented, otherwise a new line is appended.
func (c *Controller) AddItem(ctx context.Context, product catalog.Product, quantity int, variant *WeightVariant) (Snapshot, error) {
	if quantity < 1 {
		return c.Snapshot(), ErrInvalidQuantity
	}
	line := NewLineItem(product, quantity, variant, c.now())

	snap := c.mutate(ctx, "add",
		func(items []LineItem) []LineItem { return AddLine(items, line) },
		func(ctx context.Context, repo Repository) ([]LineItem, error) { return repo.Add(ctx, line) },
	)

	if c.notify != nil {
		c.notify(line)
	}
	return snap, nil
}

// RemoveItem removes the line for productID at variant. A nil variant only
// targets the no-variant line. Removing a missing line is a no-op.
func (c *Controller) RemoveItem(ctx context.Context, productID string, variant *WeightVariant) Snapshot {
	key := IdentityOf(productID, variant)
	return c.mutate(ctx, "remove",
		func(items []LineItem) []LineItem { return RemoveLine(items, key) },
		func(ctx context.Context, repo Repository) ([]LineItem, error) { return repo.Remove(ctx, key) },
	)
}

// UpdateQuantity sets a line's quantity. Zero or less removes the line.
func (c *Controller) UpdateQuantity(ctx context.Context, productID string, quantity int, variant *WeightVariant) Snapshot {
	if quantity <= 0 {
		return c.RemoveItem(ctx, productID, variant)
	}
	key := IdentityOf(productID, variant)
	return c.mutate(ctx, "update_quantity",
		func(items []LineItem) []LineItem { return SetLineQuantity(items, key, quantity) },
		func(ctx context.Context, repo Repository) ([]LineItem, error) { return repo.SetQuantity(ctx, key, quantity) },
	)
}

// ClearCart empties memory and the authoritative store. When the remote clear
// fails the local store is cleared too; memory is empty either way.
func (c *Controller) ClearCart(ctx context.Context) Snapshot {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.ensureLoaded(ctx)

	c.stateMu.Lock()
	c.items = nil
	mode := c.mode
	c.stateMu.Unlock()

	bctx, cancel := c.backendContext(ctx)
	defer cancel()

	if mode == ModeRemote {
		err := c.remote.Clear(bctx)
		if err == nil {
			return c.Snapshot()
		}
		c.logger.WithError(err).Warn("remote cart clear failed, clearing local cart")
		c.markDegraded()
	}
	if err := c.local.Clear(bctx); err != nil {
		c.logger.WithError(err).Warn("local cart clear failed")
	}
	return c.Snapshot()
}

// MergeLocal moves the local cart into the remote store, merging lines by
// identity, then clears the local store. Only valid in remote mode.
func (c *Controller) MergeLocal(ctx context.Context) (Snapshot, error) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.ensureLoaded(ctx)

	if c.Mode() != ModeRemote {
		return c.Snapshot(), ErrNoRemoteStore
	}

	bctx, cancel := c.backendContext(ctx)
	defer cancel()

	guest, err := c.local.Load(bctx)
	if err != nil {
		return c.Snapshot(), fmt.Errorf("failed to load local cart: %w", err)
	}
	if len(guest) == 0 {
		return c.Snapshot(), nil
	}

	var items []LineItem
	for _, line := range guest {
		items, err = c.remote.Add(bctx, line)
		if err != nil {
			return c.Snapshot(), fmt.Errorf("failed to merge %s into remote cart: %w", line.Key(), err)
		}
	}

	if err := c.local.Clear(bctx); err != nil {
		c.logger.WithError(err).Warn("local cart clear after merge failed")
	}

	c.stateMu.Lock()
	c.items = Clone(items)
	c.degraded = false
	c.stateMu.Unlock()

	c.logger.WithField("lines", len(guest)).Info("local cart merged into remote cart")
	return c.Snapshot(), nil
}

// SwitchSession applies a credential change: mode is selected again and the cart
// reloaded from the newly authoritative store
func (c *Controller) SwitchSession(ctx context.Context, session Session, remote Repository) Snapshot {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	c.stateMu.Lock()
	c.session = session
	c.remote = remote
	c.mode = selectMode(session, remote)
	c.state = StateUninitialized
	c.stateMu.Unlock()

	c.logger = c.logger.WithField("session_id", session.ID)
	c.load(ctx)
	return c.Snapshot()
}

// Items returns a copy of the current lines
func (c *Controller) Items() []LineItem {
	c.stateMu.RLock()
	defer c.stateMu.RUnlock()
	return Clone(c.items)
}

// Totals recomputes totals from the current lines
func (c *Controller) Totals() Totals {
	return ComputeTotals(c.Items())
}

// Mode returns the authoritative store kind
func (c *Controller) Mode() Mode {
	c.stateMu.RLock()
	defer c.stateMu.RUnlock()
	return c.mode
}

// Snapshot returns lines, totals and status in one consistent read
func (c *Controller) Snapshot() Snapshot {
	c.stateMu.RLock()
	defer c.stateMu.RUnlock()
	items := Clone(c.items)
	return Snapshot{
		Items:    items,
		Totals:   ComputeTotals(items),
		Mode:     c.mode,
		State:    c.state,
		Degraded: c.degraded,
	}
}

type storeWrite func(ctx context.Context, repo Repository) ([]LineItem, error)

func (c *Controller) mutate(ctx context.Context, op string, optimistic func([]LineItem) []LineItem, write storeWrite) Snapshot {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.ensureLoaded(ctx)

	c.stateMu.Lock()
	c.items = optimistic(c.items)
	mode := c.mode
	c.stateMu.Unlock()

	bctx, cancel := c.backendContext(ctx)
	defer cancel()

	log := c.logger.WithField("op", op)

	if mode == ModeRemote {
		items, err := write(bctx, c.remote)
		if err == nil {
			c.setItems(items)
			return c.Snapshot()
		}
		log.WithError(err).Warn("remote cart write failed, applying to local cart")
		c.markDegraded()
	}

	items, err := write(bctx, c.local)
	if err != nil {
		log.WithError(err).Warn("local cart write failed, keeping in-memory cart")
		return c.Snapshot()
	}
	c.setItems(items)
	return c.Snapshot()
}

// ensureLoaded must be called with writeMu held
func (c *Controller) ensureLoaded(ctx context.Context) {
	c.stateMu.RLock()
	state := c.state
	c.stateMu.RUnlock()
	if state == StateUninitialized {
		c.load(ctx)
	}
}

// backendContext detaches from caller cancellation; a started write always runs
// to completion or to the remote timeout
func (c *Controller) backendContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), c.remoteTimeout)
}

func (c *Controller) setItems(items []LineItem) {
	c.stateMu.Lock()
	c.items = Clone(items)
	c.stateMu.Unlock()
}

func (c *Controller) markDegraded() {
	c.stateMu.Lock()
	c.degraded = true
	c.stateMu.Unlock()
}
