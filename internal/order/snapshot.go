package order

import (
	"context"

	"github.com/google/uuid"

	"github.com/wichananm65/storefront/internal/apperr"
	"github.com/wichananm65/storefront/internal/product"
)

// Catalog is the batched product lookup the resolver reads from.
type Catalog interface {
	ListByIDs(ctx context.Context, ids []int) ([]product.Product, error)
}

// Line references a product, an optional variant and a quantity. Size and
// color are whatever the cart had snapshotted; the variant overrides them.
type Line struct {
	ProductID int        `json:"productId"`
	VariantID *uuid.UUID `json:"variantId,omitempty"`
	Quantity  int        `json:"quantity"`
	Size      string     `json:"size,omitempty"`
	Color     string     `json:"color,omitempty"`
}

// Resolver turns lines into order items priced from the current catalog.
type Resolver struct {
	catalog Catalog
}

func NewResolver(catalog Catalog) *Resolver {
	return &Resolver{catalog: catalog}
}

// Resolve loads every referenced product in one lookup and snapshots each
// line. Prices on the lines are never consulted.
func (r *Resolver) Resolve(ctx context.Context, lines []Line) ([]Item, error) {
	if len(lines) == 0 {
		return nil, apperr.Invalidf("no items to order")
	}
	ids := make([]int, 0, len(lines))
	seen := make(map[int]bool, len(lines))
	for _, l := range lines {
		if l.Quantity <= 0 {
			return nil, apperr.Invalidf("quantity must be positive")
		}
		if !seen[l.ProductID] {
			seen[l.ProductID] = true
			ids = append(ids, l.ProductID)
		}
	}

	products, err := r.catalog.ListByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[int]product.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}

	items := make([]Item, 0, len(lines))
	for _, l := range lines {
		p, ok := byID[l.ProductID]
		if !ok {
			return nil, apperr.NotFoundf("product %d not found", l.ProductID)
		}
		it, err := snapshot(p, l)
		if err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, nil
}

func snapshot(p product.Product, l Line) (Item, error) {
	it := Item{
		ProductID: p.ID,
		Name:      p.Name,
		Image:     p.FirstImage(),
		Size:      product.NormalizeSize(l.Size),
		Color:     product.NormalizeColor(l.Color),
		Quantity:  l.Quantity,
		UnitPrice: p.Price,
	}
	if l.VariantID == nil {
		if p.HasVariants() {
			return Item{}, apperr.Invalidf("%s: a variant must be selected", p.Name)
		}
	} else {
		v, ok := p.Variant(*l.VariantID)
		if !ok {
			return Item{}, apperr.NotFoundf("variant not found for product %d", p.ID)
		}
		id := v.ID
		it.VariantID = &id
		it.UnitPrice = v.UnitPrice(p.Price)
		if v.Size != "" {
			it.Size = product.NormalizeSize(v.Size)
		}
		if v.Color != "" {
			it.Color = product.NormalizeColor(v.Color)
		}
	}
	it.LineTotal = lineTotal(it.UnitPrice, it.Quantity)
	return it, nil
}
