package cart

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MaxQuantity is the largest quantity a single cart line may hold.
const MaxQuantity = 99

// Owner is either a signed-in user or an anonymous session; a cart always
// has exactly one.
type Owner interface {
	isOwner()
}

type UserOwner struct {
	UserID int
}

type GuestOwner struct {
	SessionID string
}

func (UserOwner) isOwner()  {}
func (GuestOwner) isOwner() {}

// Item is a cart line. Price, name, image, size and color are snapshots taken
// when the line was last written.
type Item struct {
	ProductID int             `json:"productId"`
	VariantID *uuid.UUID      `json:"variantId,omitempty"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
	Name      string          `json:"name"`
	Image     string          `json:"image"`
	Size      string          `json:"size,omitempty"`
	Color     string          `json:"color,omitempty"`
}

func (i Item) sameLine(productID int, variantID *uuid.UUID) bool {
	if i.ProductID != productID {
		return false
	}
	if i.VariantID == nil || variantID == nil {
		return i.VariantID == nil && variantID == nil
	}
	return *i.VariantID == *variantID
}

type Cart struct {
	ID        uuid.UUID
	Owner     Owner
	Items     []Item
	Subtotal  decimal.Decimal
	ItemCount int
	ExpiresAt time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Recompute derives subtotal and item count from the lines.
func (c *Cart) Recompute() {
	sub := decimal.Zero
	count := 0
	for _, it := range c.Items {
		sub = sub.Add(it.Price.Mul(decimal.NewFromInt(int64(it.Quantity))))
		count += it.Quantity
	}
	c.Subtotal = sub
	c.ItemCount = count
}

func (c Cart) Expired(now time.Time) bool {
	return !c.ExpiresAt.IsZero() && !now.Before(c.ExpiresAt)
}

// OwnedBy reports whether the cart belongs to o.
func (c Cart) OwnedBy(o Owner) bool {
	switch want := o.(type) {
	case UserOwner:
		got, ok := c.Owner.(UserOwner)
		return ok && got.UserID == want.UserID
	case GuestOwner:
		got, ok := c.Owner.(GuestOwner)
		return ok && want.SessionID != "" && got.SessionID == want.SessionID
	default:
		return false
	}
}

func (c Cart) find(productID int, variantID *uuid.UUID) int {
	for i, it := range c.Items {
		if it.sameLine(productID, variantID) {
			return i
		}
	}
	return -1
}

func (c Cart) MarshalJSON() ([]byte, error) {
	type view struct {
		ID        *uuid.UUID      `json:"cartId,omitempty"`
		UserID    *int            `json:"userId,omitempty"`
		SessionID string          `json:"sessionId,omitempty"`
		Items     []Item          `json:"items"`
		Subtotal  decimal.Decimal `json:"subtotal"`
		ItemCount int             `json:"itemCount"`
		ExpiresAt *time.Time      `json:"expiresAt,omitempty"`
	}
	v := view{Items: c.Items, Subtotal: c.Subtotal, ItemCount: c.ItemCount}
	if v.Items == nil {
		v.Items = []Item{}
	}
	if c.ID != uuid.Nil {
		v.ID = &c.ID
		v.ExpiresAt = &c.ExpiresAt
	}
	switch o := c.Owner.(type) {
	case UserOwner:
		v.UserID = &o.UserID
	case GuestOwner:
		v.SessionID = o.SessionID
	}
	return json.Marshal(v)
}
