package order

import (
	"github.com/shopspring/decimal"

	"github.com/wichananm65/storefront/internal/apperr"
)

// Charges are the caller supplied amounts on top of the item subtotal.
type Charges struct {
	Tax      decimal.Decimal `json:"tax"`
	Shipping decimal.Decimal `json:"shipping"`
	Discount decimal.Decimal `json:"discount"`
}

type Totals struct {
	Subtotal decimal.Decimal
	Tax      decimal.Decimal
	Shipping decimal.Decimal
	Discount decimal.Decimal
	Total    decimal.Decimal
}

// ComputeTotals sums the line totals and applies the charges. Caller
// supplied subtotals are never used.
func ComputeTotals(items []Item, c Charges) (Totals, error) {
	if err := checkCharges(c.Tax, c.Shipping, c.Discount); err != nil {
		return Totals{}, err
	}
	sub := decimal.Zero
	for _, it := range items {
		sub = sub.Add(it.LineTotal)
	}
	return Totals{
		Subtotal: sub,
		Tax:      c.Tax,
		Shipping: c.Shipping,
		Discount: c.Discount,
		Total:    total(sub, c.Tax, c.Shipping, c.Discount),
	}, nil
}

// total is subtotal + tax + shipping - discount, never below zero.
func total(sub, tax, shipping, discount decimal.Decimal) decimal.Decimal {
	t := sub.Add(tax).Add(shipping).Sub(discount)
	if t.IsNegative() {
		return decimal.Zero
	}
	return t
}

func checkCharges(tax, shipping, discount decimal.Decimal) error {
	switch {
	case tax.IsNegative():
		return apperr.Invalidf("tax cannot be negative")
	case shipping.IsNegative():
		return apperr.Invalidf("shipping cannot be negative")
	case discount.IsNegative():
		return apperr.Invalidf("discount cannot be negative")
	case !wholeCents(tax), !wholeCents(shipping), !wholeCents(discount):
		return apperr.Invalidf("charges must be in whole cents")
	}
	return nil
}

// wholeCents reports whether d fits the NUMERIC(12,2) money columns exactly.
func wholeCents(d decimal.Decimal) bool {
	return d.Equal(d.Round(2))
}

func lineTotal(unit decimal.Decimal, qty int) decimal.Decimal {
	return unit.Mul(decimal.NewFromInt(int64(qty)))
}
