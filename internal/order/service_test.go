package order

import (
	"context"
	"sync"
	"testing"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wichananm65/storefront/internal/apperr"
	"github.com/wichananm65/storefront/internal/auth"
	"github.com/wichananm65/storefront/internal/cart"
)

var (
	customer = auth.Identity{UserID: customerID, Role: auth.RoleCustomer}
	admin    = auth.Identity{UserID: 1, Role: auth.RoleAdmin}
)

func cartRequest() CreateRequest {
	id := userCart
	return CreateRequest{
		UserID:          customerID,
		CartID:          &id,
		ShippingAddress: address1(),
		PaymentMethod:   "card",
	}
}

func TestCreate_FromCart(t *testing.T) {
	f := newFixture(t, sweaterCart())
	ctx := context.Background()

	o, err := f.svc.Create(ctx, cartRequest())
	require.NoError(t, err)

	require.Len(t, o.Items, 1)
	it := o.Items[0]
	assert.True(t, it.UnitPrice.Equal(dec("100.00")))
	assert.True(t, it.LineTotal.Equal(dec("200.00")))
	assert.Equal(t, "Cat Sweater", it.Name)
	assert.True(t, o.Subtotal.Equal(dec("200.00")))
	assert.True(t, o.Total.Equal(dec("200.00")))
	assert.Equal(t, StatusPending, o.Status)
	assert.Equal(t, PaymentPending, o.PaymentStatus)
	assert.Regexp(t, `^ORD-\d{8}-[0-9A-F]{8}$`, o.Number)

	assert.Equal(t, 3, f.onHand(t, 1, vid(sweaterS)))
	assert.Equal(t, 4, f.onHand(t, 1, nil))

	_, err = f.carts.GetByID(ctx, userCart)
	assert.ErrorIs(t, err, cart.ErrNotFound)

	assert.Equal(t, []string{"order.created"}, f.events.Types())
}

func TestCreate_Totals(t *testing.T) {
	f := newFixture(t)
	req := CreateRequest{
		UserID:          customerID,
		Items:           []Line{{ProductID: 2, Quantity: 2}},
		ShippingAddress: address1(),
		PaymentMethod:   "promptpay",
		Charges:         Charges{Tax: dec("0.63"), Shipping: dec("10.00"), Discount: dec("2.00")},
	}
	o, err := f.svc.Create(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, o.Subtotal.Equal(dec("9.00")))
	assert.True(t, o.Total.Equal(dec("17.63")), o.Total.String())

	req.Items[0].Quantity = 1
	req.Charges.Discount = dec("100.00")
	o, err = f.svc.Create(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, o.Subtotal.Equal(dec("4.50")))
	assert.True(t, o.Total.IsZero())
	assert.Equal(t, 0, f.onHand(t, 2, nil))
}

func TestCreate_RejectsSubCentCharges(t *testing.T) {
	f := newFixture(t)
	req := CreateRequest{
		UserID:          customerID,
		Items:           []Line{{ProductID: 2, Quantity: 1}},
		ShippingAddress: address1(),
		PaymentMethod:   "promptpay",
		Charges:         Charges{Tax: dec("0.004"), Shipping: dec("0.004")},
	}
	_, err := f.svc.Create(context.Background(), req)
	assert.True(t, apperr.Is(err, apperr.InvalidState), "%v", err)
	assert.Equal(t, 3, f.onHand(t, 2, nil))

	req.Charges = Charges{Tax: dec("0.630"), Shipping: dec("10")}
	o, err := f.svc.Create(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, o.Total.Equal(o.Subtotal.Add(o.Tax).Add(o.Shipping).Sub(o.Discount)))
	assert.Equal(t, "15.13", o.Total.StringFixed(2))
}

func TestCreate_InsufficientListsEveryItem(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Create(context.Background(), CreateRequest{
		UserID: customerID,
		Items: []Line{
			{ProductID: 1, VariantID: vid(sweaterM), Quantity: 2},
			{ProductID: 1, VariantID: vid(sweaterS), Quantity: 1},
			{ProductID: 2, Quantity: 5},
		},
		ShippingAddress: address1(),
		PaymentMethod:   "card",
	})
	require.Equal(t, apperr.InsufficientInventory, apperr.KindOf(err))
	assert.Equal(t, []string{
		"Cat Sweater (M/red): requested 2, only 1 remaining",
		"Catnip Ball: requested 5, only 3 remaining",
	}, apperr.ReasonsOf(err))

	assert.Equal(t, 1, f.onHand(t, 1, vid(sweaterM)))
	assert.Equal(t, 5, f.onHand(t, 1, vid(sweaterS)))
	assert.Equal(t, 3, f.onHand(t, 2, nil))
	assert.Empty(t, f.events.Events())
}

func TestCreate_FailureLeavesCart(t *testing.T) {
	c := sweaterCart()
	c.Items[0].Quantity = 6
	f := newFixture(t, c)
	ctx := context.Background()

	_, err := f.svc.Create(ctx, cartRequest())
	require.Equal(t, apperr.InsufficientInventory, apperr.KindOf(err))

	got, err := f.carts.GetByID(ctx, userCart)
	require.NoError(t, err)
	assert.Equal(t, 6, got.Items[0].Quantity)
	assert.Equal(t, 5, f.onHand(t, 1, vid(sweaterS)))
}

type failingOrders struct {
	*InMemoryRepository
}

func (failingOrders) Create(context.Context, Order) (Order, error) {
	return Order{}, errors.New("connection reset")
}

func TestCreate_PersistFailureRollsBackStock(t *testing.T) {
	f := newFixture(t, sweaterCart())
	f.svc.repo = failingOrders{f.orders}
	ctx := context.Background()

	_, err := f.svc.Create(ctx, cartRequest())
	require.Error(t, err)
	assert.Equal(t, apperr.Unknown, apperr.KindOf(err))

	assert.Equal(t, 5, f.onHand(t, 1, vid(sweaterS)))
	_, err = f.carts.GetByID(ctx, userCart)
	assert.NoError(t, err)
}

func TestCreate_BadInput(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tests := map[string]CreateRequest{
		"no source":       {UserID: customerID, ShippingAddress: address1(), PaymentMethod: "card"},
		"no address":      {UserID: customerID, Items: []Line{{ProductID: 2, Quantity: 1}}, PaymentMethod: "card"},
		"no user":         {Items: []Line{{ProductID: 2, Quantity: 1}}, ShippingAddress: address1(), PaymentMethod: "card"},
		"bad method":      {UserID: customerID, Items: []Line{{ProductID: 2, Quantity: 1}}, ShippingAddress: address1(), PaymentMethod: "iou"},
		"negative tax":    {UserID: customerID, Items: []Line{{ProductID: 2, Quantity: 1}}, ShippingAddress: address1(), PaymentMethod: "card", Charges: Charges{Tax: dec("-1")}},
		"missing variant": {UserID: customerID, Items: []Line{{ProductID: 1, Quantity: 1}}, ShippingAddress: address1(), PaymentMethod: "card"},
	}
	for name, req := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := f.svc.Create(ctx, req)
			assert.Equal(t, apperr.InvalidState, apperr.KindOf(err))
		})
	}

	_, err := f.svc.Create(ctx, CreateRequest{UserID: customerID, Items: []Line{{ProductID: 77, Quantity: 1}}, ShippingAddress: address1(), PaymentMethod: "card"})
	assert.Equal(t, apperr.NotFound, apperr.KindOf(err))
}

func TestCreate_CartNotFoundOrEmpty(t *testing.T) {
	empty := sweaterCart()
	empty.Items = nil
	f := newFixture(t, empty)

	_, err := f.svc.Create(context.Background(), cartRequest())
	assert.Equal(t, apperr.InvalidState, apperr.KindOf(err))
	assert.EqualError(t, err, "cart not found or empty")

	// someone else's cart looks missing
	f = newFixture(t, sweaterCart())
	req := cartRequest()
	req.UserID = 7
	_, err = f.svc.Create(context.Background(), req)
	assert.EqualError(t, err, "cart not found or empty")
	assert.Equal(t, 5, f.onHand(t, 1, vid(sweaterS)))
}

func TestCreate_GuestCartAfterSignIn(t *testing.T) {
	c := sweaterCart()
	c.Owner = cart.GuestOwner{SessionID: "sess-1"}
	f := newFixture(t, c)

	req := cartRequest()
	req.SessionID = "sess-1"
	o, err := f.svc.Create(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, customerID, o.UserID)
}

func TestCreate_SavedAddress(t *testing.T) {
	f := newFixture(t)
	o, err := f.svc.Create(context.Background(), CreateRequest{
		UserID:        customerID,
		Items:         []Line{{ProductID: 2, Quantity: 1}},
		AddressID:     5,
		PaymentMethod: "cash_on_delivery",
	})
	require.NoError(t, err)
	assert.Equal(t, Address{AddressID: 5, Name: "Home", Phone: "555-0100", Line: "1 Cat Lane, Bangkok"}, o.ShippingAddress)

	_, err = f.svc.Create(context.Background(), CreateRequest{
		UserID:        7,
		Items:         []Line{{ProductID: 2, Quantity: 1}},
		AddressID:     5,
		PaymentMethod: "card",
	})
	assert.Equal(t, apperr.NotFound, apperr.KindOf(err))
}

func TestCreate_ConcurrentLastUnit(t *testing.T) {
	f := newFixture(t)
	req := CreateRequest{
		UserID:          customerID,
		Items:           []Line{{ProductID: 1, VariantID: vid(sweaterM), Quantity: 1}},
		ShippingAddress: address1(),
		PaymentMethod:   "card",
	}

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = f.svc.Create(context.Background(), req)
		}()
	}
	wg.Wait()

	succeeded, short := 0, 0
	for _, err := range errs {
		switch {
		case err == nil:
			succeeded++
		case apperr.Is(err, apperr.InsufficientInventory):
			short++
		}
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 1, short)
	assert.Equal(t, 0, f.onHand(t, 1, vid(sweaterM)))
}

func TestCreate_RequestedNumber(t *testing.T) {
	f := newFixture(t)
	req := CreateRequest{
		UserID:          customerID,
		Items:           []Line{{ProductID: 2, Quantity: 1}},
		ShippingAddress: address1(),
		PaymentMethod:   "card",
		OrderNumber:     "ORD-20260101-CAFEBABE",
	}
	o, err := f.svc.Create(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "ORD-20260101-CAFEBABE", o.Number)

	_, err = f.svc.Create(context.Background(), req)
	assert.Equal(t, apperr.InvalidState, apperr.KindOf(err))
	assert.Equal(t, 2, f.onHand(t, 2, nil))
}

func TestUpdateStatus_CancelRestores(t *testing.T) {
	f := newFixture(t, sweaterCart())
	ctx := context.Background()
	o, err := f.svc.Create(ctx, cartRequest())
	require.NoError(t, err)
	require.Equal(t, 3, f.onHand(t, 1, vid(sweaterS)))

	_, err = f.svc.UpdateStatus(ctx, o.ID, StatusChange{Actor: customer, Status: StatusCancelled})
	assert.Equal(t, apperr.InvalidState, apperr.KindOf(err))
	assert.Equal(t, 3, f.onHand(t, 1, vid(sweaterS)))

	cancelled, err := f.svc.UpdateStatus(ctx, o.ID, StatusChange{Actor: customer, Status: StatusCancelled, Reason: "changed mind"})
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, cancelled.Status)
	assert.NotNil(t, cancelled.CancelledAt)
	assert.NotNil(t, cancelled.InventoryRestoredAt)
	assert.Equal(t, 5, f.onHand(t, 1, vid(sweaterS)))

	// cancelling again never restores twice
	_, err = f.svc.UpdateStatus(ctx, o.ID, StatusChange{Actor: admin, Status: StatusCancelled, Reason: "dup"})
	require.NoError(t, err)
	require.NoError(t, f.svc.RestoreInventory(ctx, o.ID))
	assert.Equal(t, 5, f.onHand(t, 1, vid(sweaterS)))

	assert.Equal(t, []string{"order.created", "order.status_changed", "order.cancelled"}, f.events.Types())
}

func TestUpdateStatus_Rules(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	o, err := f.svc.Create(ctx, CreateRequest{UserID: customerID, Items: []Line{{ProductID: 2, Quantity: 1}}, ShippingAddress: address1(), PaymentMethod: "card"})
	require.NoError(t, err)

	_, err = f.svc.UpdateStatus(ctx, o.ID, StatusChange{Actor: admin, Status: StatusDelivered})
	assert.Equal(t, apperr.InvalidStatusTransition, apperr.KindOf(err))

	_, err = f.svc.UpdateStatus(ctx, o.ID, StatusChange{Actor: auth.Identity{UserID: 7, Role: auth.RoleCustomer}, Status: StatusCancelled, Reason: "not mine"})
	assert.ErrorIs(t, err, ErrNotFound)

	for _, s := range []Status{StatusConfirmed, StatusProcessing, StatusShipped} {
		_, err = f.svc.UpdateStatus(ctx, o.ID, StatusChange{Actor: admin, Status: s, TrackingNumber: "TH123"})
		require.NoError(t, err, s)
	}
	_, err = f.svc.UpdateStatus(ctx, o.ID, StatusChange{Actor: customer, Status: StatusCancelled, Reason: "too slow"})
	assert.Equal(t, apperr.InvalidStatusTransition, apperr.KindOf(err))

	delivered, err := f.svc.UpdateStatus(ctx, o.ID, StatusChange{Actor: admin, Status: StatusDelivered})
	require.NoError(t, err)
	require.NotNil(t, delivered.DeliveredAt)
	assert.Equal(t, "TH123", delivered.TrackingNumber)

	again, err := f.svc.UpdateStatus(ctx, o.ID, StatusChange{Actor: admin, Status: StatusDelivered})
	require.NoError(t, err)
	assert.Equal(t, *delivered.DeliveredAt, *again.DeliveredAt)
	assert.Equal(t, 2, f.onHand(t, 2, nil))
}

func TestRestoreInventory_DeletedProduct(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	o, err := f.svc.Create(ctx, CreateRequest{
		UserID:          customerID,
		Items:           []Line{{ProductID: 2, Quantity: 1}, {ProductID: 1, VariantID: vid(sweaterS), Quantity: 1}},
		ShippingAddress: address1(),
		PaymentMethod:   "card",
	})
	require.NoError(t, err)
	require.NoError(t, f.products.Delete(ctx, 2))

	cancelled, err := f.svc.UpdateStatus(ctx, o.ID, StatusChange{Actor: admin, Status: StatusCancelled, Reason: "discontinued"})
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, cancelled.Status)
	assert.Equal(t, 5, f.onHand(t, 1, vid(sweaterS)))

	var warned bool
	for _, e := range f.hook.AllEntries() {
		if e.Level == logrus.WarnLevel && e.Message == "product gone, skipping inventory restore" {
			warned = true
		}
	}
	assert.True(t, warned)

	assert.Equal(t, apperr.NotFound, apperr.KindOf(f.svc.RestoreInventory(ctx, 999)))
}

func TestGetByID_Ownership(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	o, err := f.svc.Create(ctx, CreateRequest{UserID: customerID, Items: []Line{{ProductID: 2, Quantity: 1}}, ShippingAddress: address1(), PaymentMethod: "card"})
	require.NoError(t, err)

	owner := customerID
	got, err := f.svc.GetByID(ctx, o.ID, &owner)
	require.NoError(t, err)
	assert.Equal(t, o.Number, got.Number)

	other := 7
	_, err = f.svc.GetByID(ctx, o.ID, &other)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = f.svc.GetByID(ctx, o.ID, nil)
	assert.NoError(t, err)
}

func TestListForOwner(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		_, err := f.svc.Create(ctx, CreateRequest{UserID: customerID, Items: []Line{{ProductID: 2, Quantity: 1}}, ShippingAddress: address1(), PaymentMethod: "card"})
		require.NoError(t, err)
	}

	page, err := f.svc.ListForOwner(ctx, customerID, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, 3, page.Total)
	assert.Equal(t, 2, page.PageCount)
	assert.Len(t, page.Orders, 2)

	page, err = f.svc.ListForOwner(ctx, customerID, 2, 2)
	require.NoError(t, err)
	assert.Len(t, page.Orders, 1)

	page, err = f.svc.ListForOwner(ctx, 7, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 0, page.Total)
	assert.Equal(t, 0, page.PageCount)
	assert.Equal(t, defaultPageSize, page.PageSize)
	assert.NotNil(t, page.Orders)
}

func TestApplyPayment_ConfirmsPending(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	o, err := f.svc.Create(ctx, CreateRequest{UserID: customerID, Items: []Line{{ProductID: 2, Quantity: 1}}, ShippingAddress: address1(), PaymentMethod: "card"})
	require.NoError(t, err)

	paid, err := f.svc.ApplyPayment(ctx, PaymentEvent{OrderID: o.ID, Status: PaymentPaid, Reference: "ch_123"})
	require.NoError(t, err)
	assert.Equal(t, PaymentPaid, paid.PaymentStatus)
	assert.Equal(t, StatusConfirmed, paid.Status)
	assert.NotNil(t, paid.PaidAt)
	assert.Equal(t, []string{"order.created", "order.payment_changed", "order.status_changed"}, f.events.Types())

	_, err = f.svc.ApplyPayment(ctx, PaymentEvent{OrderID: o.ID, Status: PaymentFailed})
	assert.Equal(t, apperr.InvalidStatusTransition, apperr.KindOf(err))
}
