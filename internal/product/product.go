package product

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/wichananm65/storefront/internal/apperr"
)

// Product is a catalog entry. When it has variants, Inventory is the sum of
// the variant inventories; otherwise it is the product's own stock.
type Product struct {
	ID          int             `json:"productId"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Images      []string        `json:"images"`
	CategoryID  *int            `json:"categoryId,omitempty"`
	Brand       string          `json:"brand,omitempty"`
	Variants    []Variant       `json:"variants"`
	Inventory   int             `json:"inventory"`
	Rating      float64         `json:"rating"`
	ReviewCount int             `json:"reviewCount"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

// Variant is owned by its product and addressed by ID within it.
type Variant struct {
	ID        uuid.UUID           `json:"variantId"`
	SKU       string              `json:"sku"`
	Size      string              `json:"size,omitempty"`
	Color     string              `json:"color,omitempty"`
	Price     decimal.NullDecimal `json:"price"`
	Inventory int                 `json:"inventory"`
}

func (p Product) HasVariants() bool {
	return len(p.Variants) > 0
}

// Variant looks up a variant by id.
func (p Product) Variant(id uuid.UUID) (Variant, bool) {
	if i := p.variantIndex(id); i >= 0 {
		return p.Variants[i], true
	}
	return Variant{}, false
}

func (p Product) variantIndex(id uuid.UUID) int {
	for i := range p.Variants {
		if p.Variants[i].ID == id {
			return i
		}
	}
	return -1
}

// VariantInventory points at the stock counter of variant id, for callers
// that mutate a product in place.
func (p *Product) VariantInventory(id uuid.UUID) (*int, bool) {
	i := p.variantIndex(id)
	if i < 0 {
		return nil, false
	}
	return &p.Variants[i].Inventory, true
}

func (p Product) FirstImage() string {
	if len(p.Images) == 0 {
		return ""
	}
	return p.Images[0]
}

// UnitPrice is the variant override when set, else base.
func (v Variant) UnitPrice(base decimal.Decimal) decimal.Decimal {
	if v.Price.Valid {
		return v.Price.Decimal
	}
	return base
}

// RecomputeInventory keeps the aggregate equal to the variant sum.
func (p *Product) RecomputeInventory() {
	if !p.HasVariants() {
		return
	}
	total := 0
	for _, v := range p.Variants {
		total += v.Inventory
	}
	p.Inventory = total
}

// Normalize trims text fields, normalizes variant size and color, and gives
// new variants an id.
func (p *Product) Normalize() {
	p.Name = strings.TrimSpace(p.Name)
	p.Brand = strings.TrimSpace(p.Brand)
	for i := range p.Variants {
		v := &p.Variants[i]
		v.SKU = strings.TrimSpace(v.SKU)
		v.Size = NormalizeSize(v.Size)
		v.Color = NormalizeColor(v.Color)
		if v.ID == uuid.Nil {
			v.ID = uuid.New()
		}
	}
	p.RecomputeInventory()
}

func (p Product) Validate() error {
	if p.Name == "" {
		return apperr.Invalidf("product name is required")
	}
	if p.Price.IsNegative() {
		return apperr.Invalidf("product price must not be negative")
	}
	if p.Inventory < 0 {
		return apperr.Invalidf("product inventory must not be negative")
	}
	skus := make(map[string]struct{}, len(p.Variants))
	for _, v := range p.Variants {
		if v.SKU == "" {
			return apperr.Invalidf("variant sku is required")
		}
		if _, dup := skus[v.SKU]; dup {
			return apperr.Invalidf("duplicate sku %q", v.SKU)
		}
		skus[v.SKU] = struct{}{}
		if v.Inventory < 0 {
			return apperr.Invalidf("variant %s inventory must not be negative", v.SKU)
		}
		if v.Price.Valid && v.Price.Decimal.IsNegative() {
			return apperr.Invalidf("variant %s price must not be negative", v.SKU)
		}
	}
	return nil
}

// carryStock returns next with the stock counters of stored. Catalog edits
// never set inventory; variants new to the product start empty.
func carryStock(stored, next Product) Product {
	bySKU := make(map[string]Variant, len(stored.Variants))
	for _, v := range stored.Variants {
		bySKU[v.SKU] = v
	}
	for i := range next.Variants {
		v := &next.Variants[i]
		old, ok := stored.Variant(v.ID)
		if !ok {
			old, ok = bySKU[v.SKU]
		}
		if ok {
			v.ID = old.ID
			v.Inventory = old.Inventory
		} else {
			if v.ID == uuid.Nil {
				v.ID = uuid.New()
			}
			v.Inventory = 0
		}
	}
	next.Inventory = stored.Inventory
	next.RecomputeInventory()
	return next
}
