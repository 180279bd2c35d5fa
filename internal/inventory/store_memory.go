package inventory

import (
	"context"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/wichananm65/storefront/internal/apperr"
	"github.com/wichananm65/storefront/internal/product"
	"github.com/wichananm65/storefront/internal/storage"
)

// MemoryStore adjusts counters held by the in-memory catalog. Changes made
// inside a storage.MemoryTransactor scope are undone when the scope fails.
type MemoryStore struct {
	products *product.InMemoryRepository
}

func NewMemoryStore(products *product.InMemoryRepository) *MemoryStore {
	return &MemoryStore{products: products}
}

var errShort = errors.New("short")

func (s *MemoryStore) Level(ctx context.Context, productID int, variantID *uuid.UUID) (Level, error) {
	p, err := s.products.GetByID(ctx, productID)
	if err != nil {
		if errors.Is(err, product.ErrNotFound) {
			return Level{}, apperr.NotFoundf("product %d not found", productID)
		}
		return Level{}, err
	}
	lvl := Level{ProductID: productID, Label: p.Name, HasVariants: p.HasVariants(), OnHand: p.Inventory}
	if variantID == nil {
		return lvl, nil
	}
	v, ok := p.Variant(*variantID)
	if !ok {
		return Level{}, apperr.NotFoundf("variant not found for product %d", productID)
	}
	lvl.VariantID = variantID
	lvl.Label = VariantLabel(p.Name, v.SKU, v.Size, v.Color)
	lvl.OnHand = v.Inventory
	return lvl, nil
}

func (s *MemoryStore) Decrement(ctx context.Context, productID int, variantID *uuid.UUID, n int) (bool, error) {
	ok, err := s.adjust(productID, variantID, -n)
	if err != nil || !ok {
		return ok, err
	}
	storage.OnRollback(ctx, func() { _, _ = s.adjust(productID, variantID, n) })
	return true, nil
}

func (s *MemoryStore) Increment(ctx context.Context, productID int, variantID *uuid.UUID, n int) (bool, error) {
	ok, err := s.adjust(productID, variantID, n)
	if err != nil || !ok {
		return ok, err
	}
	storage.OnRollback(ctx, func() { _, _ = s.adjust(productID, variantID, -n) })
	return true, nil
}

// adjust applies delta to one counter; it refuses to go below zero and
// reports false for a missing product or variant.
func (s *MemoryStore) adjust(productID int, variantID *uuid.UUID, delta int) (bool, error) {
	err := s.products.Mutate(productID, func(p *product.Product) error {
		counter := &p.Inventory
		if variantID != nil {
			c, ok := p.VariantInventory(*variantID)
			if !ok {
				return product.ErrNotFound
			}
			counter = c
		} else if p.HasVariants() {
			return product.ErrNotFound
		}
		if *counter+delta < 0 {
			return errShort
		}
		*counter += delta
		return nil
	})
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, errShort), errors.Is(err, product.ErrNotFound):
		return false, nil
	default:
		return false, err
	}
}
