package order

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"

	"github.com/wichananm65/storefront/internal/address"
	"github.com/wichananm65/storefront/internal/cart"
	"github.com/wichananm65/storefront/internal/inventory"
	"github.com/wichananm65/storefront/internal/notify"
	"github.com/wichananm65/storefront/internal/product"
	"github.com/wichananm65/storefront/internal/storage"
)

var (
	sweaterS = uuid.MustParse("6f1c1d2e-0000-4000-8000-000000000001")
	sweaterM = uuid.MustParse("6f1c1d2e-0000-4000-8000-000000000002")
	userCart = uuid.MustParse("0b7e4a10-0000-4000-8000-0000000000aa")
)

const customerID = 42

type fixture struct {
	svc      *Service
	orders   *InMemoryRepository
	products *product.InMemoryRepository
	carts    *cart.InMemoryRepository
	events   *notify.Recorder
	hook     *logtest.Hook
}

func catalog() *product.InMemoryRepository {
	return product.NewInMemoryRepository([]product.Product{
		{
			ID:     1,
			Name:   "Cat Sweater",
			Price:  decimal.RequireFromString("90.00"),
			Images: []string{"/img/sweater.png", "/img/sweater-back.png"},
			Variants: []product.Variant{
				{ID: sweaterS, SKU: "SW-S", Size: "s", Color: "Red", Price: decimal.NewNullDecimal(decimal.RequireFromString("100.00")), Inventory: 5},
				{ID: sweaterM, SKU: "SW-M", Size: "m", Color: "Red", Inventory: 1},
			},
		},
		{ID: 2, Name: "Catnip Ball", Price: decimal.RequireFromString("4.50"), Inventory: 3},
	})
}

func newFixture(t *testing.T, carts ...cart.Cart) fixture {
	t.Helper()
	products := catalog()
	tx := storage.NewMemoryTransactor()
	log, hook := logtest.NewNullLogger()
	cartRepo := cart.NewInMemoryRepository(carts...)
	addresses := address.NewService(address.NewInMemoryRepository(
		address.Address{AddressID: 5, UserID: customerID, AddressDesc: "1 Cat Lane, Bangkok", Phone: "555-0100", AddressName: "Home"},
	))
	orders := NewInMemoryRepository()
	events := &notify.Recorder{}
	ledger := inventory.NewLedger(inventory.NewMemoryStore(products), tx, log)

	return fixture{
		svc:      NewService(orders, cartRepo, addresses, products, ledger, tx, events, log),
		orders:   orders,
		products: products,
		carts:    cartRepo,
		events:   events,
		hook:     hook,
	}
}

// sweaterCart holds two small red sweaters for the customer.
func sweaterCart() cart.Cart {
	id := sweaterS
	return cart.Cart{
		ID:    userCart,
		Owner: cart.UserOwner{UserID: customerID},
		Items: []cart.Item{
			{ProductID: 1, VariantID: &id, Quantity: 2, Price: decimal.RequireFromString("80.00"), Name: "Old Name", Size: "S", Color: "red"},
		},
		ExpiresAt: time.Now().Add(time.Hour),
	}
}

func (f fixture) onHand(t *testing.T, productID int, variantID *uuid.UUID) int {
	t.Helper()
	p, err := f.products.GetByID(context.Background(), productID)
	require.NoError(t, err)
	if variantID == nil {
		return p.Inventory
	}
	v, ok := p.Variant(*variantID)
	require.True(t, ok)
	return v.Inventory
}

func vid(id uuid.UUID) *uuid.UUID { return &id }

func address1() *Address {
	return &Address{Name: "Mali", Phone: "555-0100", Line: "1 Cat Lane, Bangkok"}
}
