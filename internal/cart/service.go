package cart

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/wichananm65/storefront/internal/apperr"
	"github.com/wichananm65/storefront/internal/product"
	"github.com/wichananm65/storefront/internal/storage"
)

// Catalog is the product lookup the cart snapshots from.
type Catalog interface {
	GetByID(ctx context.Context, id int) (product.Product, error)
}

// Service orchestrates cart operations.
type Service struct {
	repo    Repository
	catalog Catalog
	tx      storage.Transactor
	ttl     time.Duration
	log     logrus.FieldLogger
	now     func() time.Time
}

func NewService(repo Repository, catalog Catalog, tx storage.Transactor, ttl time.Duration, log logrus.FieldLogger) *Service {
	return &Service{repo: repo, catalog: catalog, tx: tx, ttl: ttl, log: log, now: time.Now}
}

// Line names a cart line and the quantity wanted for it.
type Line struct {
	ProductID int        `json:"productId"`
	VariantID *uuid.UUID `json:"variantId,omitempty"`
	Quantity  int        `json:"quantity"`
}

// Get returns the owner's live cart, or an empty unsaved cart.
func (s *Service) Get(ctx context.Context, owner Owner) (Cart, error) {
	c, err := s.repo.GetByOwner(ctx, owner)
	if errors.Is(err, ErrNotFound) {
		return Cart{Owner: owner, Items: []Item{}}, nil
	}
	if err != nil {
		return Cart{}, err
	}
	if c.Expired(s.now()) {
		return Cart{Owner: owner, Items: []Item{}}, nil
	}
	return c, nil
}

// AddItem adds quantity to the matching line or appends a new one. The
// line's snapshot is refreshed from the catalog either way.
func (s *Service) AddItem(ctx context.Context, owner Owner, line Line) (Cart, error) {
	if err := checkQuantity(line.Quantity); err != nil {
		return Cart{}, err
	}
	item, err := s.snapshot(ctx, line)
	if err != nil {
		return Cart{}, err
	}

	return s.mutate(ctx, owner, true, func(c *Cart) error {
		if i := c.find(line.ProductID, line.VariantID); i >= 0 {
			item.Quantity = c.Items[i].Quantity + line.Quantity
			if err := checkQuantity(item.Quantity); err != nil {
				return err
			}
			c.Items[i] = item
			return nil
		}
		c.Items = append(c.Items, item)
		return nil
	})
}

// SetQuantity overwrites a line's quantity; zero removes the line.
func (s *Service) SetQuantity(ctx context.Context, owner Owner, line Line) (Cart, error) {
	if line.Quantity == 0 {
		return s.RemoveItem(ctx, owner, line.ProductID, line.VariantID)
	}
	if err := checkQuantity(line.Quantity); err != nil {
		return Cart{}, err
	}
	return s.mutate(ctx, owner, false, func(c *Cart) error {
		i := c.find(line.ProductID, line.VariantID)
		if i < 0 {
			return apperr.NotFoundf("product %d is not in the cart", line.ProductID)
		}
		c.Items[i].Quantity = line.Quantity
		return nil
	})
}

func (s *Service) RemoveItem(ctx context.Context, owner Owner, productID int, variantID *uuid.UUID) (Cart, error) {
	return s.mutate(ctx, owner, false, func(c *Cart) error {
		i := c.find(productID, variantID)
		if i < 0 {
			return apperr.NotFoundf("product %d is not in the cart", productID)
		}
		c.Items = append(c.Items[:i], c.Items[i+1:]...)
		return nil
	})
}

// Clear deletes the owner's cart outright.
func (s *Service) Clear(ctx context.Context, owner Owner) error {
	c, err := s.repo.GetByOwner(ctx, owner)
	if err != nil {
		return err
	}
	return s.repo.Delete(ctx, c.ID)
}

// PurgeExpired deletes abandoned carts and returns how many went.
func (s *Service) PurgeExpired(ctx context.Context) (int, error) {
	n, err := s.repo.DeleteExpired(ctx, s.now())
	if err != nil {
		return 0, err
	}
	s.log.WithField("deleted", n).Info("expired carts purged")
	return n, nil
}

// mutate loads (or, when create is set, starts) the owner's cart, applies fn,
// recomputes totals, refreshes the expiry and saves.
func (s *Service) mutate(ctx context.Context, owner Owner, create bool, fn func(c *Cart) error) (Cart, error) {
	var out Cart
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		now := s.now()
		c, err := s.repo.GetByOwner(ctx, owner)
		switch {
		case err == nil && c.Expired(now):
			if err := s.repo.Delete(ctx, c.ID); err != nil {
				return err
			}
			fallthrough
		case errors.Is(err, ErrNotFound):
			if !create {
				return ErrNotFound
			}
			c = Cart{ID: uuid.New(), Owner: owner, CreatedAt: now}
		case err != nil:
			return err
		}

		if err := fn(&c); err != nil {
			return err
		}
		c.Recompute()
		c.UpdatedAt = now
		c.ExpiresAt = now.Add(s.ttl)
		out, err = s.repo.Save(ctx, c)
		return err
	})
	return out, err
}

func (s *Service) snapshot(ctx context.Context, line Line) (Item, error) {
	p, err := s.catalog.GetByID(ctx, line.ProductID)
	if err != nil {
		return Item{}, err
	}
	item := Item{
		ProductID: p.ID,
		Quantity:  line.Quantity,
		Price:     p.Price,
		Name:      p.Name,
		Image:     p.FirstImage(),
	}
	if line.VariantID == nil {
		if p.HasVariants() {
			return Item{}, apperr.Invalidf("%s: a variant must be selected", p.Name)
		}
		return item, nil
	}
	v, ok := p.Variant(*line.VariantID)
	if !ok {
		return Item{}, apperr.NotFoundf("variant not found for product %d", p.ID)
	}
	id := v.ID
	item.VariantID = &id
	item.Price = v.UnitPrice(p.Price)
	item.Size = product.NormalizeSize(v.Size)
	item.Color = product.NormalizeColor(v.Color)
	return item, nil
}

func checkQuantity(q int) error {
	if q < 1 || q > MaxQuantity {
		return apperr.Invalidf("quantity must be between 1 and %d", MaxQuantity)
	}
	return nil
}
