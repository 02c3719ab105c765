// internal/store/wishlist.go
package store

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
	"github.com/xeipuuv/gojsonschema"

	"casai-client/internal/common/errors"
	"casai-client/internal/common/logger"
	"casai-client/internal/models"
)

// Wishlist holds saved products, unique by product URL, insertion order
// preserved for display.
type Wishlist struct {
	rdb    *redis.Client
	schema *gojsonschema.Schema
	logger logger.Logger
}

// Toggle is the only mutation primitive, matching the UI's heart-toggle:
// a product already present is removed, an absent one is appended. Returns
// whether the product is saved after the call. Calling twice with the same
// key restores the prior state.
func (w *Wishlist) Toggle(ctx context.Context, product models.SavedProduct) (bool, error) {
	if product.Key() == "" {
		return false, errors.NewValidationError("product has no productUrl key")
	}

	var added bool
	err := w.rdb.Watch(ctx, func(tx *redis.Tx) error {
		items, err := w.load(ctx, tx)
		if err != nil {
			return err
		}

		next := make([]models.SavedProduct, 0, len(items)+1)
		added = true
		for _, item := range items {
			if item.Key() == product.Key() {
				added = false
				continue
			}
			next = append(next, item)
		}
		if added {
			next = append(next, product)
		}

		return w.write(ctx, tx, next)
	}, wishlistKey)
	if err != nil {
		return false, errors.NewPersistenceFailedError("wishlist", err)
	}

	w.logger.Info("wishlist toggled", map[string]interface{}{
		"productUrl": product.Key(),
		"saved":      added,
	})
	return added, nil
}

// Remove deletes a saved product by key. Removing an absent key is a no-op.
func (w *Wishlist) Remove(ctx context.Context, key string) error {
	err := w.rdb.Watch(ctx, func(tx *redis.Tx) error {
		items, err := w.load(ctx, tx)
		if err != nil {
			return err
		}
		next := make([]models.SavedProduct, 0, len(items))
		for _, item := range items {
			if item.Key() != key {
				next = append(next, item)
			}
		}
		return w.write(ctx, tx, next)
	}, wishlistKey)
	if err != nil {
		return errors.NewPersistenceFailedError("wishlist", err)
	}
	return nil
}

// List returns the full current wishlist in insertion order.
func (w *Wishlist) List(ctx context.Context) ([]models.SavedProduct, error) {
	raw, found, err := loadRaw(ctx, w.rdb, wishlistKey, "wishlist")
	if err != nil {
		return nil, err
	}
	items := []models.SavedProduct{}
	if found {
		hydrate(raw, w.schema, "wishlist", w.logger, &items)
	}
	return items, nil
}

func (w *Wishlist) load(ctx context.Context, tx *redis.Tx) ([]models.SavedProduct, error) {
	raw, err := tx.Get(ctx, wishlistKey).Result()
	items := []models.SavedProduct{}
	if err == redis.Nil {
		return items, nil
	}
	if err != nil {
		return nil, err
	}
	hydrate(raw, w.schema, "wishlist", w.logger, &items)
	return items, nil
}

func (w *Wishlist) write(ctx context.Context, tx *redis.Tx, items []models.SavedProduct) error {
	data, err := json.Marshal(items)
	if err != nil {
		return err
	}
	_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, wishlistKey, data, 0)
		return nil
	})
	return err
}
