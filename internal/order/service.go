package order

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/wichananm65/storefront/internal/address"
	"github.com/wichananm65/storefront/internal/apperr"
	"github.com/wichananm65/storefront/internal/cart"
	"github.com/wichananm65/storefront/internal/inventory"
	"github.com/wichananm65/storefront/internal/notify"
	"github.com/wichananm65/storefront/internal/storage"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
	numberAttempts  = 3
)

var errEmptyCart = apperr.Invalidf("cart not found or empty")

// Carts is the part of the cart store checkout needs.
type Carts interface {
	GetByID(ctx context.Context, id uuid.UUID) (cart.Cart, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// AddressBook resolves a saved address of the ordering user.
type AddressBook interface {
	GetAddress(ctx context.Context, userID, addressID int) (address.Address, error)
}

// Stock is the inventory ledger as seen by checkout and cancellation.
type Stock interface {
	CheckAll(ctx context.Context, items []inventory.Item) error
	Reserve(ctx context.Context, items []inventory.Item) error
	Restore(ctx context.Context, items []inventory.Item) error
}

// Service runs checkout and every later change to an order.
type Service struct {
	repo      Repository
	carts     Carts
	addresses AddressBook
	resolver  *Resolver
	stock     Stock
	tx        storage.Transactor
	events    notify.Dispatcher
	log       logrus.FieldLogger
	now       func() time.Time
}

func NewService(repo Repository, carts Carts, addresses AddressBook, catalog Catalog, stock Stock, tx storage.Transactor, events notify.Dispatcher, log logrus.FieldLogger) *Service {
	return &Service{
		repo:      repo,
		carts:     carts,
		addresses: addresses,
		resolver:  NewResolver(catalog),
		stock:     stock,
		tx:        tx,
		events:    events,
		log:       log,
		now:       time.Now,
	}
}

// CreateRequest describes a checkout. Items come from CartID when it is set,
// otherwise from Items. Prices are always taken from the catalog.
type CreateRequest struct {
	UserID          int        `json:"-"`
	SessionID       string     `json:"-"` // guest cart built before signing in
	CartID          *uuid.UUID `json:"cartId,omitempty"`
	Items           []Line     `json:"items,omitempty"`
	ShippingAddress *Address   `json:"shippingAddress,omitempty"`
	AddressID       int        `json:"addressId,omitempty"`
	PaymentMethod   string     `json:"paymentMethod"`
	Notes           string     `json:"notes,omitempty"`
	OrderNumber     string     `json:"orderNumber,omitempty"`

	Charges
}

// Create validates stock, reserves it, stores the order and deletes the
// source cart in one transaction.
func (s *Service) Create(ctx context.Context, req CreateRequest) (Order, error) {
	if req.UserID <= 0 {
		return Order{}, apperr.Invalidf("an order needs a user")
	}
	if req.CartID == nil && len(req.Items) == 0 {
		return Order{}, apperr.Invalidf("either a cart or items are required")
	}
	if err := checkCharges(req.Tax, req.Shipping, req.Discount); err != nil {
		return Order{}, err
	}
	if !paymentMethods[req.PaymentMethod] {
		return Order{}, apperr.Invalidf("unsupported payment method %q", req.PaymentMethod)
	}
	addr, err := s.shippingAddress(ctx, req)
	if err != nil {
		return Order{}, err
	}

	var created Order
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		lines := req.Items
		var src cart.Cart
		if req.CartID != nil {
			var err error
			if src, err = s.checkoutCart(ctx, req); err != nil {
				return err
			}
			lines = cartLines(src)
		}

		items, err := s.resolver.Resolve(ctx, lines)
		if err != nil {
			return err
		}
		stock := stockItems(items)
		if err := s.stock.CheckAll(ctx, stock); err != nil {
			return err
		}
		if err := s.stock.Reserve(ctx, stock); err != nil {
			return err
		}

		totals, err := ComputeTotals(items, req.Charges)
		if err != nil {
			return err
		}
		now := s.now().UTC()
		o := Order{
			UserID:          req.UserID,
			Items:           items,
			Subtotal:        totals.Subtotal,
			Tax:             totals.Tax,
			Shipping:        totals.Shipping,
			Discount:        totals.Discount,
			Total:           totals.Total,
			Status:          StatusPending,
			PaymentStatus:   PaymentPending,
			PaymentMethod:   req.PaymentMethod,
			ShippingAddress: addr,
			Notes:           strings.TrimSpace(req.Notes),
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		if err := o.Validate(); err != nil {
			return err
		}
		if created, err = s.insert(ctx, o, req.OrderNumber); err != nil {
			return err
		}

		if req.CartID != nil {
			if err := s.carts.Delete(ctx, src.ID); err != nil {
				if errors.Is(err, cart.ErrNotFound) {
					// another checkout consumed the cart first
					return errEmptyCart
				}
				return err
			}
		}
		return nil
	})
	if err != nil {
		return Order{}, apperr.Wrap(err, "create order")
	}

	s.log.WithFields(logrus.Fields{
		"order_number": created.Number,
		"user_id":      created.UserID,
		"total":        created.Total.StringFixed(2),
		"items":        len(created.Items),
	}).Info("order created")
	s.emit(ctx, notify.OrderCreated{
		OrderID:     created.ID,
		OrderNumber: created.Number,
		UserID:      created.UserID,
		Total:       created.Total,
		ItemCount:   len(created.Items),
	})
	return created, nil
}

func (s *Service) shippingAddress(ctx context.Context, req CreateRequest) (Address, error) {
	if req.ShippingAddress != nil {
		a := Address{
			Name:  strings.TrimSpace(req.ShippingAddress.Name),
			Phone: strings.TrimSpace(req.ShippingAddress.Phone),
			Line:  strings.TrimSpace(req.ShippingAddress.Line),
		}
		if a.Line == "" {
			return Address{}, apperr.Invalidf("shipping address is required")
		}
		return a, nil
	}
	if req.AddressID <= 0 || s.addresses == nil {
		return Address{}, apperr.Invalidf("shipping address is required")
	}
	saved, err := s.addresses.GetAddress(ctx, req.UserID, req.AddressID)
	if err != nil {
		return Address{}, err
	}
	line := saved.AddressDesc
	if line == "" {
		line = saved.AddressName
	}
	return Address{AddressID: saved.AddressID, Name: saved.AddressName, Phone: saved.Phone, Line: line}, nil
}

// checkoutCart loads the cart being checked out. Carts the caller does not
// own are reported exactly like missing ones.
func (s *Service) checkoutCart(ctx context.Context, req CreateRequest) (cart.Cart, error) {
	c, err := s.carts.GetByID(ctx, *req.CartID)
	if errors.Is(err, cart.ErrNotFound) {
		return cart.Cart{}, errEmptyCart
	}
	if err != nil {
		return cart.Cart{}, err
	}
	owned := c.OwnedBy(cart.UserOwner{UserID: req.UserID}) ||
		(req.SessionID != "" && c.OwnedBy(cart.GuestOwner{SessionID: req.SessionID}))
	if !owned || c.Expired(s.now()) || len(c.Items) == 0 {
		return cart.Cart{}, errEmptyCart
	}
	return c, nil
}

// insert stores o under the requested number, or under a fresh generated
// number retried a few times on collision.
func (s *Service) insert(ctx context.Context, o Order, number string) (Order, error) {
	if number = strings.TrimSpace(number); number != "" {
		o.Number = number
		created, err := s.repo.Create(ctx, o)
		if errors.Is(err, ErrDuplicateNumber) {
			return Order{}, apperr.Invalidf("order number %s is already in use", number)
		}
		return created, err
	}
	for attempt := 0; attempt < numberAttempts; attempt++ {
		o.Number = NewNumber(o.CreatedAt)
		created, err := s.repo.Create(ctx, o)
		if errors.Is(err, ErrDuplicateNumber) {
			s.log.WithField("order_number", o.Number).Warn("order number collision, regenerating")
			continue
		}
		return created, err
	}
	return Order{}, errors.New("could not allocate an order number")
}

// UpdateStatus applies a status change for ch.Actor. Customers only see
// their own orders. Cancelling a live order puts its stock back in the same
// transaction.
func (s *Service) UpdateStatus(ctx context.Context, id int, ch StatusChange) (Order, error) {
	var before, after Order
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		o, err := s.repo.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if !ch.Actor.IsStaff() && !o.OwnedBy(ch.Actor.UserID) {
			return ErrNotFound
		}
		before = o

		restock, err := applyStatus(&o, ch, ch.Actor.Role, s.now().UTC())
		if err != nil {
			return err
		}
		if restock {
			if err := s.restore(ctx, o); err != nil {
				return err
			}
		}
		after, err = s.repo.Update(ctx, o)
		return err
	})
	if err != nil {
		return Order{}, apperr.Wrap(err, "update order status")
	}

	if before.Status != after.Status {
		s.log.WithFields(logrus.Fields{
			"order_number": after.Number,
			"from":         before.Status,
			"to":           after.Status,
			"actor_role":   ch.Actor.Role,
		}).Info("order status changed")
		s.emit(ctx, notify.OrderStatusChanged{
			OrderID:     after.ID,
			OrderNumber: after.Number,
			UserID:      after.UserID,
			From:        string(before.Status),
			To:          string(after.Status),
		})
		if after.Status == StatusCancelled {
			s.emit(ctx, notify.OrderCancelled{
				OrderID:     after.ID,
				OrderNumber: after.Number,
				UserID:      after.UserID,
				Reason:      after.CancelReason,
			})
		}
	}
	return after, nil
}

// RestoreInventory puts an order's stock back. It does nothing when the
// order's stock was already restored.
func (s *Service) RestoreInventory(ctx context.Context, id int) error {
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		o, err := s.repo.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		return s.restore(ctx, o)
	})
	return apperr.Wrap(err, "restore inventory")
}

// restore must run inside a transaction holding the order row.
func (s *Service) restore(ctx context.Context, o Order) error {
	marked, err := s.repo.MarkInventoryRestored(ctx, o.ID, s.now().UTC())
	if err != nil {
		return err
	}
	entry := s.log.WithField("order_number", o.Number)
	if !marked {
		entry.Info("inventory already restored")
		return nil
	}
	if err := s.stock.Restore(ctx, o.stockItems()); err != nil {
		return err
	}
	entry.WithField("items", len(o.Items)).Info("inventory restored")
	return nil
}

// GetByID returns the order. With ownerID set, orders of other users are
// reported as not found.
func (s *Service) GetByID(ctx context.Context, id int, ownerID *int) (Order, error) {
	o, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return Order{}, err
	}
	if ownerID != nil && !o.OwnedBy(*ownerID) {
		return Order{}, ErrNotFound
	}
	return o, nil
}

type Page struct {
	Orders    []Order `json:"orders"`
	Total     int     `json:"total"`
	Page      int     `json:"page"`
	PageSize  int     `json:"pageSize"`
	PageCount int     `json:"pageCount"`
}

// ListForOwner pages through a user's orders, newest first. Page numbers
// start at 1.
func (s *Service) ListForOwner(ctx context.Context, ownerID, page, pageSize int) (Page, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	orders, total, err := s.repo.ListByUser(ctx, ownerID, pageSize, (page-1)*pageSize)
	if err != nil {
		return Page{}, apperr.Wrap(err, "list orders")
	}
	return Page{
		Orders:    orders,
		Total:     total,
		Page:      page,
		PageSize:  pageSize,
		PageCount: (total + pageSize - 1) / pageSize,
	}, nil
}

// ApplyPayment records a gateway payment event. A successful payment also
// confirms a pending order.
func (s *Service) ApplyPayment(ctx context.Context, ev PaymentEvent) (Order, error) {
	var before, after Order
	var confirmed bool
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		o, err := s.repo.GetForUpdate(ctx, ev.OrderID)
		if err != nil {
			return err
		}
		before = o
		if confirmed, err = applyPayment(&o, ev, s.now().UTC()); err != nil {
			return err
		}
		after, err = s.repo.Update(ctx, o)
		return err
	})
	if err != nil {
		return Order{}, apperr.Wrap(err, "apply payment")
	}

	if before.PaymentStatus != after.PaymentStatus {
		s.log.WithFields(logrus.Fields{
			"order_number": after.Number,
			"from":         before.PaymentStatus,
			"to":           after.PaymentStatus,
		}).Info("payment status changed")
		s.emit(ctx, notify.PaymentStatusChanged{
			OrderID:     after.ID,
			OrderNumber: after.Number,
			UserID:      after.UserID,
			From:        string(before.PaymentStatus),
			To:          string(after.PaymentStatus),
		})
	}
	if confirmed {
		s.emit(ctx, notify.OrderStatusChanged{
			OrderID:     after.ID,
			OrderNumber: after.Number,
			UserID:      after.UserID,
			From:        string(before.Status),
			To:          string(after.Status),
		})
	}
	return after, nil
}

// emit is fire and forget: a failed dispatch is logged, never returned.
func (s *Service) emit(ctx context.Context, ev notify.Event) {
	if s.events == nil {
		return
	}
	if err := s.events.Dispatch(ctx, ev); err != nil {
		s.log.WithError(err).WithField("event", ev.Type()).Warn("order event not delivered")
	}
}

func cartLines(c cart.Cart) []Line {
	lines := make([]Line, 0, len(c.Items))
	for _, it := range c.Items {
		lines = append(lines, Line{
			ProductID: it.ProductID,
			VariantID: it.VariantID,
			Quantity:  it.Quantity,
			Size:      it.Size,
			Color:     it.Color,
		})
	}
	return lines
}

func stockItems(items []Item) []inventory.Item {
	return Order{Items: items}.stockItems()
}
