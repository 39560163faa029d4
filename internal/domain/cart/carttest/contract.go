// Package carttest holds the behaviour every cart.Repository must share
package carttest

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/your-org/storefront-cart/internal/domain/cart"
	"github.com/your-org/storefront-cart/internal/domain/catalog"
)

// Factory returns an empty repository for owner. Different owners must not share lines.
type Factory func(t *testing.T, owner string) cart.Repository

// Coffee is the fixture product used by the contract
var Coffee = catalog.Product{
	ID:       "coffee",
	Name:     "Arabica Coffee",
	Price:    decimal.RequireFromString("12.50"),
	IsActive: true,
	WeightOptions: []catalog.WeightOption{
		{ProductID: "coffee", Label: "250 g", Grams: 250, Price: decimal.RequireFromString("7.25")},
		{ProductID: "coffee", Label: "1 kg", Grams: 1000, Price: decimal.RequireFromString("25.00")},
	},
}

// Line builds a Coffee line, at grams when grams is not zero
func Line(t *testing.T, quantity, grams int) cart.LineItem {
	t.Helper()
	var variant *cart.WeightVariant
	if grams != 0 {
		opt, ok := Coffee.WeightOption(grams)
		require.True(t, ok, "no %dg option", grams)
		variant = cart.VariantFromOption(opt)
	}
	return cart.NewLineItem(Coffee, quantity, variant, time.Now())
}

// RunRepositoryContract checks identity merging, quantity updates, removal,
// clearing and owner isolation against repositories built by newRepo
func RunRepositoryContract(t *testing.T, newRepo Factory) {
	t.Run("empty cart loads empty", func(t *testing.T) {
		items, err := newRepo(t, "empty").Load(context.Background())
		require.NoError(t, err)
		assert.Empty(t, items)
	})

	t.Run("add merges by identity", func(t *testing.T) {
		ctx := context.Background()
		repo := newRepo(t, "merge")

		_, err := repo.Add(ctx, Line(t, 1, 0))
		require.NoError(t, err)
		_, err = repo.Add(ctx, Line(t, 2, 250))
		require.NoError(t, err)
		items, err := repo.Add(ctx, Line(t, 3, 0))
		require.NoError(t, err)

		require.Len(t, items, 2)
		plain, ok := cart.FindLine(items, cart.IdentityOf("coffee", nil))
		require.True(t, ok)
		assert.Equal(t, 4, plain.Quantity)
		weighted, ok := cart.FindLine(items, cart.IdentityKey{ProductID: "coffee", Grams: 250})
		require.True(t, ok)
		assert.Equal(t, 2, weighted.Quantity)
		assert.True(t, decimal.RequireFromString("7.25").Equal(weighted.UnitPrice()))
		assert.Equal(t, "250 g", weighted.Variant.Label)

		totals := cart.ComputeTotals(items)
		assert.True(t, decimal.RequireFromString("64.5").Equal(totals.Subtotal), "subtotal %s", totals.Subtotal)
	})

	t.Run("set quantity and remove target one line", func(t *testing.T) {
		ctx := context.Background()
		repo := newRepo(t, "update")
		_, err := repo.Add(ctx, Line(t, 1, 0))
		require.NoError(t, err)
		_, err = repo.Add(ctx, Line(t, 1, 1000))
		require.NoError(t, err)

		items, err := repo.SetQuantity(ctx, cart.IdentityKey{ProductID: "coffee", Grams: 1000}, 5)
		require.NoError(t, err)
		weighted, _ := cart.FindLine(items, cart.IdentityKey{ProductID: "coffee", Grams: 1000})
		assert.Equal(t, 5, weighted.Quantity)

		items, err = repo.SetQuantity(ctx, cart.IdentityKey{ProductID: "missing"}, 5)
		require.NoError(t, err)
		assert.Len(t, items, 2)

		items, err = repo.Remove(ctx, cart.IdentityOf("coffee", nil))
		require.NoError(t, err)
		require.Len(t, items, 1)
		assert.Equal(t, 1000, items[0].Variant.Grams)

		items, err = repo.SetQuantity(ctx, cart.IdentityKey{ProductID: "coffee", Grams: 1000}, 0)
		require.NoError(t, err)
		assert.Empty(t, items)
	})

	t.Run("clear empties only the owner", func(t *testing.T) {
		ctx := context.Background()
		mine := newRepo(t, "owner-a")
		theirs := newRepo(t, "owner-b")
		_, err := mine.Add(ctx, Line(t, 1, 0))
		require.NoError(t, err)
		_, err = theirs.Add(ctx, Line(t, 2, 0))
		require.NoError(t, err)

		require.NoError(t, mine.Clear(ctx))

		items, err := mine.Load(ctx)
		require.NoError(t, err)
		assert.Empty(t, items)
		items, err = theirs.Load(ctx)
		require.NoError(t, err)
		require.Len(t, items, 1)
		assert.Equal(t, 2, items[0].Quantity)
	})
}

// RunConcurrentAddContract checks that concurrent adds of one line lose no
// increments. Only stores with atomic adds satisfy it.
func RunConcurrentAddContract(t *testing.T, newRepo Factory) {
	ctx := context.Background()
	repo := newRepo(t, "concurrent")
	line := Line(t, 1, 250)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := repo.Add(ctx, line)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	items, err := repo.Load(ctx)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, 10, items[0].Quantity)
}
