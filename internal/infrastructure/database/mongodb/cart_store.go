// internal/infrastructure/database/mongodb/cart_store.go
package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/your-org/storefront-cart/internal/domain/cart"
)

const cartsCollection = "carts"

// cartDocument is one account cart. Money is stored as decimal strings.
type cartDocument struct {
	UserID    string         `bson:"user_id"`
	Items     []lineDocument `bson:"items"`
	CreatedAt time.Time      `bson:"created_at"`
	UpdatedAt time.Time      `bson:"updated_at"`
}

type lineDocument struct {
	ProductID    string    `bson:"product_id"`
	Grams        int       `bson:"grams"`
	ProductName  string    `bson:"product_name"`
	BasePrice    string    `bson:"base_price"`
	Price        string    `bson:"price,omitempty"`
	VariantLabel string    `bson:"variant_label,omitempty"`
	VariantPrice string    `bson:"variant_price,omitempty"`
	Quantity     int       `bson:"quantity"`
	AddedAt      time.Time `bson:"added_at"`
}

func documentFromLine(li cart.LineItem) lineDocument {
	doc := lineDocument{
		ProductID:   li.Product.ID,
		ProductName: li.Product.Name,
		BasePrice:   li.Product.Price.String(),
		Quantity:    li.Quantity,
		AddedAt:     li.AddedAt.UTC(),
	}
	if li.Price != nil {
		doc.Price = li.Price.String()
	}
	if li.Variant != nil {
		doc.Grams = li.Variant.Grams
		doc.VariantLabel = li.Variant.Label
		doc.VariantPrice = li.Variant.Price.String()
	}
	if doc.AddedAt.IsZero() {
		doc.AddedAt = time.Now().UTC()
	}
	return doc
}

func (d lineDocument) line() (cart.LineItem, error) {
	base, err := decimal.NewFromString(d.BasePrice)
	if err != nil {
		return cart.LineItem{}, fmt.Errorf("bad base price for %s: %w", d.ProductID, err)
	}
	li := cart.LineItem{
		Product:  cart.ProductRef{ID: d.ProductID, Name: d.ProductName, Price: base},
		Quantity: d.Quantity,
		AddedAt:  d.AddedAt.UTC(),
	}
	if d.Price != "" {
		p, err := decimal.NewFromString(d.Price)
		if err != nil {
			return cart.LineItem{}, fmt.Errorf("bad line price for %s: %w", d.ProductID, err)
		}
		li.Price = &p
	}
	if d.Grams != 0 {
		vp := decimal.Zero
		if d.VariantPrice != "" {
			if vp, err = decimal.NewFromString(d.VariantPrice); err != nil {
				return cart.LineItem{}, fmt.Errorf("bad variant price for %s: %w", d.ProductID, err)
			}
		}
		li.Variant = &cart.WeightVariant{Label: d.VariantLabel, Grams: d.Grams, Price: vp}
	}
	return li, nil
}

// AccountCartStore is the document cart of one account
type AccountCartStore struct {
	collection *mongo.Collection
	userID     string
}

// NewAccountCartStore binds the carts collection to userID
func NewAccountCartStore(db *mongo.Database, userID string) *AccountCartStore {
	return &AccountCartStore{collection: db.Collection(cartsCollection), userID: userID}
}

// CreateIndexes makes user_id unique and expires carts untouched for 90 days
func CreateIndexes(ctx context.Context, db *mongo.Database) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "user_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "updated_at", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(90 * 24 * 60 * 60),
		},
	}
	if _, err := db.Collection(cartsCollection).Indexes().CreateMany(ctx, indexes); err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}
	return nil
}

func (s *AccountCartStore) Load(ctx context.Context) ([]cart.LineItem, error) {
	var doc cartDocument
	err := s.collection.FindOne(ctx, bson.M{"user_id": s.userID}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return []cart.LineItem{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get cart: %w", err)
	}

	items := make([]cart.LineItem, 0, len(doc.Items))
	for _, d := range doc.Items {
		li, err := d.line()
		if err != nil {
			return nil, err
		}
		items = append(items, li)
	}
	return items, nil
}

// Add increments a matching line or pushes a new one, creating the cart if needed
func (s *AccountCartStore) Add(ctx context.Context, line cart.LineItem) ([]cart.LineItem, error) {
	doc := documentFromLine(line)
	match := bson.M{"product_id": doc.ProductID, "grams": doc.Grams}

	// a concurrent first add can lose the upsert race on the unique user_id index; retry once
	for attempt := 0; attempt < 2; attempt++ {
		now := time.Now().UTC()
		res, err := s.collection.UpdateOne(ctx,
			bson.M{"user_id": s.userID, "items": bson.M{"$elemMatch": match}},
			bson.M{
				"$inc": bson.M{"items.$[elem].quantity": doc.Quantity},
				"$set": bson.M{"updated_at": now},
			},
			options.Update().SetArrayFilters(options.ArrayFilters{
				Filters: []interface{}{bson.M{"elem.product_id": doc.ProductID, "elem.grams": doc.Grams}},
			}),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to update existing item: %w", err)
		}
		if res.MatchedCount > 0 {
			return s.Load(ctx)
		}

		_, err = s.collection.UpdateOne(ctx,
			bson.M{"user_id": s.userID, "items": bson.M{"$not": bson.M{"$elemMatch": match}}},
			bson.M{
				"$push":        bson.M{"items": doc},
				"$set":         bson.M{"updated_at": now},
				"$setOnInsert": bson.M{"created_at": now},
			},
			options.Update().SetUpsert(true),
		)
		if mongo.IsDuplicateKeyError(err) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to add new item: %w", err)
		}
		return s.Load(ctx)
	}
	return nil, fmt.Errorf("failed to add item: concurrent cart update")
}

func (s *AccountCartStore) SetQuantity(ctx context.Context, key cart.IdentityKey, quantity int) ([]cart.LineItem, error) {
	if quantity < 1 {
		return s.Remove(ctx, key)
	}
	_, err := s.collection.UpdateOne(ctx,
		bson.M{"user_id": s.userID},
		bson.M{"$set": bson.M{
			"items.$[elem].quantity": quantity,
			"updated_at":             time.Now().UTC(),
		}},
		options.Update().SetArrayFilters(options.ArrayFilters{
			Filters: []interface{}{bson.M{"elem.product_id": key.ProductID, "elem.grams": key.Grams}},
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to update item quantity: %w", err)
	}
	return s.Load(ctx)
}

func (s *AccountCartStore) Remove(ctx context.Context, key cart.IdentityKey) ([]cart.LineItem, error) {
	_, err := s.collection.UpdateOne(ctx,
		bson.M{"user_id": s.userID},
		bson.M{
			"$pull": bson.M{"items": bson.M{"product_id": key.ProductID, "grams": key.Grams}},
			"$set":  bson.M{"updated_at": time.Now().UTC()},
		},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to remove item: %w", err)
	}
	return s.Load(ctx)
}

func (s *AccountCartStore) Clear(ctx context.Context) error {
	if _, err := s.collection.DeleteOne(ctx, bson.M{"user_id": s.userID}); err != nil {
		return fmt.Errorf("failed to delete cart: %w", err)
	}
	return nil
}
