// Package inventory owns every write to product and variant stock counters.
package inventory

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/wichananm65/storefront/internal/apperr"
	"github.com/wichananm65/storefront/internal/storage"
)

// Level is the stock counter addressed by a product and optional variant.
type Level struct {
	ProductID   int        `json:"productId"`
	VariantID   *uuid.UUID `json:"variantId,omitempty"`
	Label       string     `json:"label"`
	HasVariants bool       `json:"hasVariants"`
	OnHand      int        `json:"onHand"`
}

// Store reads and moves stock counters. Decrement and Increment are single
// atomic statements; Decrement reports false instead of going below zero and
// Increment reports false when the product or variant no longer exists.
type Store interface {
	Level(ctx context.Context, productID int, variantID *uuid.UUID) (Level, error)
	Decrement(ctx context.Context, productID int, variantID *uuid.UUID, n int) (bool, error)
	Increment(ctx context.Context, productID int, variantID *uuid.UUID, n int) (bool, error)
}

// Item is one stock movement request.
type Item struct {
	ProductID int
	VariantID *uuid.UUID
	Quantity  int
}

type Availability struct {
	Available bool   `json:"available"`
	Remaining int    `json:"remaining"`
	Reason    string `json:"reason,omitempty"`
}

type Ledger struct {
	store Store
	tx    storage.Transactor
	log   logrus.FieldLogger
}

func NewLedger(store Store, tx storage.Transactor, log logrus.FieldLogger) *Ledger {
	return &Ledger{store: store, tx: tx, log: log}
}

// CheckAvailability answers whether qty units can be taken right now. It
// reads only; a later Reserve re-checks.
func (l *Ledger) CheckAvailability(ctx context.Context, productID, qty int, variantID *uuid.UUID) (Availability, error) {
	if qty <= 0 {
		return Availability{}, apperr.Invalidf("quantity must be positive")
	}
	lvl, err := l.store.Level(ctx, productID, variantID)
	if err != nil {
		return Availability{}, err
	}
	if qty > lvl.OnHand {
		return Availability{Remaining: lvl.OnHand, Reason: shortage(lvl, qty)}, nil
	}
	return Availability{Available: true, Remaining: lvl.OnHand}, nil
}

// CheckAll checks every item concurrently and returns one
// InsufficientInventory error listing each short item. Lookup failures win
// over shortages.
func (l *Ledger) CheckAll(ctx context.Context, items []Item) error {
	merged := Merge(items)
	results := make([]Availability, len(merged))

	g, gctx := errgroup.WithContext(ctx)
	if storage.InTx(ctx) {
		// a *sqlx.Tx is not safe for concurrent use
		g.SetLimit(1)
	}
	for i, it := range merged {
		i, it := i, it
		g.Go(func() error {
			a, err := l.CheckAvailability(gctx, it.ProductID, it.Quantity, it.VariantID)
			if err != nil {
				return err
			}
			results[i] = a
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	var reasons []string
	for _, a := range results {
		if !a.Available {
			reasons = append(reasons, a.Reason)
		}
	}
	if len(reasons) > 0 {
		return apperr.Insufficient(reasons)
	}
	return nil
}

// Reserve takes stock for every item or for none of them. Each counter is
// re-read and decremented conditionally; a lost race is retried once before
// it counts as a shortage. Items are applied in product/variant order so
// concurrent reservations lock rows in the same order.
func (l *Ledger) Reserve(ctx context.Context, items []Item) error {
	merged := Merge(items)
	sortItems(merged)

	return l.tx.WithinTx(ctx, func(ctx context.Context) error {
		var reasons []string
		for _, it := range merged {
			if it.Quantity <= 0 {
				return apperr.Invalidf("quantity must be positive")
			}
			lvl, err := l.store.Level(ctx, it.ProductID, it.VariantID)
			if err != nil {
				return err
			}
			if it.VariantID == nil && lvl.HasVariants {
				return apperr.Invalidf("%s: a variant must be selected", lvl.Label)
			}
			if len(reasons) > 0 {
				// The batch already failed; keep collecting shortages only.
				if it.Quantity > lvl.OnHand {
					reasons = append(reasons, shortage(lvl, it.Quantity))
				}
				continue
			}

			lvl, ok, err := l.take(ctx, it, lvl)
			if err != nil {
				return err
			}
			if !ok {
				reasons = append(reasons, shortage(lvl, it.Quantity))
			}
		}
		if len(reasons) > 0 {
			return apperr.Insufficient(reasons)
		}
		return nil
	})
}

// take attempts the conditional decrement, re-reading and retrying once when
// the counter moved underneath it.
func (l *Ledger) take(ctx context.Context, it Item, lvl Level) (Level, bool, error) {
	for attempt := 0; attempt < 2; attempt++ {
		if attempt > 0 {
			var err error
			if lvl, err = l.store.Level(ctx, it.ProductID, it.VariantID); err != nil {
				return lvl, false, err
			}
		}
		if it.Quantity > lvl.OnHand {
			return lvl, false, nil
		}
		ok, err := l.store.Decrement(ctx, it.ProductID, it.VariantID, it.Quantity)
		if err != nil {
			return lvl, false, err
		}
		if ok {
			return lvl, true, nil
		}
		l.log.WithFields(fields(it)).Debug("conditional decrement lost a race")
	}
	return lvl, false, nil
}

// Restore puts stock back. Items whose product or variant has since been
// removed are logged and skipped.
func (l *Ledger) Restore(ctx context.Context, items []Item) error {
	merged := Merge(items)
	sortItems(merged)

	return l.tx.WithinTx(ctx, func(ctx context.Context) error {
		for _, it := range merged {
			if it.Quantity <= 0 {
				continue
			}
			ok, err := l.store.Increment(ctx, it.ProductID, it.VariantID, it.Quantity)
			if err != nil {
				return err
			}
			if !ok {
				l.log.WithFields(fields(it)).Warn("product gone, skipping inventory restore")
			}
		}
		return nil
	})
}

// Receive adds delivered stock and returns the new level.
func (l *Ledger) Receive(ctx context.Context, it Item) (Level, error) {
	if it.Quantity <= 0 {
		return Level{}, apperr.Invalidf("quantity must be positive")
	}
	var lvl Level
	err := l.tx.WithinTx(ctx, func(ctx context.Context) error {
		cur, err := l.store.Level(ctx, it.ProductID, it.VariantID)
		if err != nil {
			return err
		}
		if it.VariantID == nil && cur.HasVariants {
			return apperr.Invalidf("%s: stock is tracked per variant", cur.Label)
		}
		ok, err := l.store.Increment(ctx, it.ProductID, it.VariantID, it.Quantity)
		if err != nil {
			return err
		}
		if !ok {
			return apperr.NotFoundf("product %d not found", it.ProductID)
		}
		lvl, err = l.store.Level(ctx, it.ProductID, it.VariantID)
		return err
	})
	if err != nil {
		return Level{}, err
	}
	l.log.WithFields(fields(it)).WithField("on_hand", lvl.OnHand).Info("stock received")
	return lvl, nil
}

// Merge sums quantities of items that address the same counter, keeping
// first-seen order.
func Merge(items []Item) []Item {
	out := make([]Item, 0, len(items))
	index := make(map[string]int, len(items))
	for _, it := range items {
		k := key(it.ProductID, it.VariantID)
		if i, ok := index[k]; ok {
			out[i].Quantity += it.Quantity
			continue
		}
		index[k] = len(out)
		out = append(out, it)
	}
	return out
}

func sortItems(items []Item) {
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].ProductID != items[j].ProductID {
			return items[i].ProductID < items[j].ProductID
		}
		return variantKey(items[i].VariantID) < variantKey(items[j].VariantID)
	})
}

func key(productID int, variantID *uuid.UUID) string {
	return fmt.Sprintf("%d/%s", productID, variantKey(variantID))
}

func variantKey(id *uuid.UUID) string {
	if id == nil {
		return ""
	}
	return id.String()
}

func shortage(lvl Level, requested int) string {
	return fmt.Sprintf("%s: requested %d, only %d remaining", lvl.Label, requested, lvl.OnHand)
}

func fields(it Item) logrus.Fields {
	f := logrus.Fields{"product_id": it.ProductID, "quantity": it.Quantity}
	if it.VariantID != nil {
		f["variant_id"] = it.VariantID.String()
	}
	return f
}
