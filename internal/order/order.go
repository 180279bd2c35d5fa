package order

import (
	"database/sql/driver"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/wichananm65/storefront/internal/apperr"
	"github.com/wichananm65/storefront/internal/inventory"
)

// LineTotalTolerance is how far a line total may drift from quantity times
// unit price before the order is rejected.
var LineTotalTolerance = decimal.RequireFromString("0.01")

type Status string

const (
	StatusPending    Status = "pending"
	StatusConfirmed  Status = "confirmed"
	StatusProcessing Status = "processing"
	StatusShipped    Status = "shipped"
	StatusDelivered  Status = "delivered"
	StatusCancelled  Status = "cancelled"
	StatusReturned   Status = "returned"
)

type PaymentStatus string

const (
	PaymentPending           PaymentStatus = "pending"
	PaymentPaid              PaymentStatus = "paid"
	PaymentFailed            PaymentStatus = "failed"
	PaymentRefunded          PaymentStatus = "refunded"
	PaymentPartiallyRefunded PaymentStatus = "partially_refunded"
)

var paymentMethods = map[string]bool{
	"card":             true,
	"bank_transfer":    true,
	"promptpay":        true,
	"cash_on_delivery": true,
}

// Item is an order line. Everything but the references is a snapshot taken
// at checkout and never changes afterwards.
type Item struct {
	ProductID int             `json:"productId"`
	VariantID *uuid.UUID      `json:"variantId,omitempty"`
	Name      string          `json:"name"`
	Image     string          `json:"image"`
	Size      string          `json:"size,omitempty"`
	Color     string          `json:"color,omitempty"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
	LineTotal decimal.Decimal `json:"lineTotal"`
}

// Address is the shipping address copied onto the order. It is stored as
// jsonb.
type Address struct {
	AddressID int    `json:"addressId,omitempty"`
	Name      string `json:"name"`
	Phone     string `json:"phone"`
	Line      string `json:"line"`
}

func (a Address) Value() (driver.Value, error) {
	return json.Marshal(a)
}

func (a *Address) Scan(src any) error {
	return scanJSON(src, a)
}

// PaymentDetails is the free-form block reported by the payment gateway.
type PaymentDetails map[string]any

func (d PaymentDetails) Value() (driver.Value, error) {
	if d == nil {
		return nil, nil
	}
	return json.Marshal(d)
}

func (d *PaymentDetails) Scan(src any) error {
	if src == nil {
		*d = nil
		return nil
	}
	return scanJSON(src, d)
}

func scanJSON(src, dst any) error {
	switch v := src.(type) {
	case []byte:
		return json.Unmarshal(v, dst)
	case string:
		return json.Unmarshal([]byte(v), dst)
	default:
		return errors.Errorf("cannot scan %T into %T", src, dst)
	}
}

type Order struct {
	ID                  int             `json:"orderId"`
	Number              string          `json:"orderNumber"`
	UserID              int             `json:"userId"`
	Items               []Item          `json:"items"`
	Subtotal            decimal.Decimal `json:"subtotal"`
	Tax                 decimal.Decimal `json:"tax"`
	Shipping            decimal.Decimal `json:"shipping"`
	Discount            decimal.Decimal `json:"discount"`
	Total               decimal.Decimal `json:"total"`
	Status              Status          `json:"status"`
	PaymentStatus       PaymentStatus   `json:"paymentStatus"`
	PaymentMethod       string          `json:"paymentMethod"`
	PaymentRef          string          `json:"paymentRef,omitempty"`
	PaymentDetails      PaymentDetails  `json:"paymentDetails,omitempty"`
	ShippingAddress     Address         `json:"shippingAddress"`
	Notes               string          `json:"notes,omitempty"`
	TrackingNumber      string          `json:"trackingNumber,omitempty"`
	EstimatedDelivery   *time.Time      `json:"estimatedDelivery,omitempty"`
	DeliveredAt         *time.Time      `json:"deliveredAt,omitempty"`
	CancelledAt         *time.Time      `json:"cancelledAt,omitempty"`
	CancelReason        string          `json:"cancelReason,omitempty"`
	PaidAt              *time.Time      `json:"paidAt,omitempty"`
	InventoryRestoredAt *time.Time      `json:"inventoryRestoredAt,omitempty"`
	CreatedAt           time.Time       `json:"createdAt"`
	UpdatedAt           time.Time       `json:"updatedAt"`
}

// Validate checks the invariants every stored order satisfies.
func (o Order) Validate() error {
	if o.UserID <= 0 {
		return apperr.Invalidf("order must belong to a user")
	}
	if len(o.Items) == 0 {
		return apperr.Invalidf("order must contain at least one item")
	}
	sum := decimal.Zero
	for i, it := range o.Items {
		if it.Quantity <= 0 {
			return apperr.Invalidf("item %d: quantity must be positive", i+1)
		}
		if it.UnitPrice.IsNegative() {
			return apperr.Invalidf("item %d: unit price cannot be negative", i+1)
		}
		want := lineTotal(it.UnitPrice, it.Quantity)
		if it.LineTotal.Sub(want).Abs().GreaterThanOrEqual(LineTotalTolerance) {
			return apperr.Invalidf("item %d: line total %s does not match %d x %s", i+1, it.LineTotal, it.Quantity, it.UnitPrice)
		}
		sum = sum.Add(it.LineTotal)
	}
	if !o.Subtotal.Equal(sum) {
		return apperr.Invalidf("subtotal %s does not match items %s", o.Subtotal, sum)
	}
	if err := checkCharges(o.Tax, o.Shipping, o.Discount); err != nil {
		return err
	}
	if !o.Total.Equal(total(o.Subtotal, o.Tax, o.Shipping, o.Discount)) {
		return apperr.Invalidf("total %s does not match charges", o.Total)
	}
	if strings.TrimSpace(o.ShippingAddress.Line) == "" {
		return apperr.Invalidf("shipping address is required")
	}
	if !paymentMethods[o.PaymentMethod] {
		return apperr.Invalidf("unsupported payment method %q", o.PaymentMethod)
	}
	return nil
}

// OwnedBy reports whether userID placed the order.
func (o Order) OwnedBy(userID int) bool {
	return o.UserID == userID
}

// stockItems lists the stock each line took.
func (o Order) stockItems() []inventory.Item {
	out := make([]inventory.Item, 0, len(o.Items))
	for _, it := range o.Items {
		out = append(out, inventory.Item{ProductID: it.ProductID, VariantID: it.VariantID, Quantity: it.Quantity})
	}
	return out
}
