package server

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wichananm65/storefront/internal/address"
	"github.com/wichananm65/storefront/internal/auth"
	"github.com/wichananm65/storefront/internal/cart"
	"github.com/wichananm65/storefront/internal/inventory"
	"github.com/wichananm65/storefront/internal/notify"
	"github.com/wichananm65/storefront/internal/order"
	"github.com/wichananm65/storefront/internal/product"
	"github.com/wichananm65/storefront/internal/storage"
	"github.com/wichananm65/storefront/internal/user"
)

const secret = "server-test-secret"

type testApp struct {
	app    *fiber.App
	hook   *logtest.Hook
	events *notify.Recorder
}

func newTestApp(t *testing.T) testApp {
	t.Helper()
	log, hook := logtest.NewNullLogger()

	products := product.NewInMemoryRepository([]product.Product{{
		ID:        1,
		Name:      "Catnip Ball",
		Price:     decimal.RequireFromString("4.50"),
		Images:    []string{"/img/ball.png"},
		Inventory: 3,
	}})
	tx := storage.NewMemoryTransactor()
	ledger := inventory.NewLedger(inventory.NewMemoryStore(products), tx, log)
	carts := cart.NewInMemoryRepository()
	addresses := address.NewService(address.NewInMemoryRepository())
	events := &notify.Recorder{}
	orders := order.NewService(order.NewInMemoryRepository(), carts, addresses, products, ledger, tx, events, log)

	app := New(secret, Handlers{
		Users:     user.NewHandler(user.NewService(user.NewInMemoryRepository(), addresses, secret, time.Hour, log)),
		Products:  product.NewHandler(product.NewService(products, log)),
		Inventory: inventory.NewHandler(ledger),
		Carts:     cart.NewHandler(cart.NewService(carts, products, tx, time.Hour, log)),
		Addresses: address.NewHandler(addresses),
		Orders:    order.NewHandler(orders),
	}, log)
	return testApp{app: app, hook: hook, events: events}
}

func bearer(t *testing.T, id auth.Identity) string {
	t.Helper()
	tok, err := auth.NewToken(secret, id, time.Hour)
	require.NoError(t, err)
	return "Bearer " + tok
}

func (a testApp) do(t *testing.T, method, path, token, body string) (int, map[string]any) {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", token)
	}
	res, err := a.app.Test(req, -1)
	require.NoError(t, err)
	defer res.Body.Close()

	out := map[string]any{}
	raw, _ := io.ReadAll(res.Body)
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, &out)
	}
	return res.StatusCode, out
}

func TestPublicRoutesNeedNoToken(t *testing.T) {
	a := newTestApp(t)

	code, _ := a.do(t, http.MethodGet, "/healthz", "", "")
	assert.Equal(t, fiber.StatusOK, code)

	code, body := a.do(t, http.MethodGet, "/api/v1/product/1/availability?quantity=2", "", "")
	assert.Equal(t, fiber.StatusOK, code)
	assert.Equal(t, true, body["available"])
	assert.EqualValues(t, 3, body["remaining"])
}

func TestBadTokenIsRejected(t *testing.T) {
	a := newTestApp(t)
	code, body := a.do(t, http.MethodGet, "/api/v1/orders", "Bearer nope", "")
	assert.Equal(t, fiber.StatusUnauthorized, code)
	assert.Equal(t, "unauthorized", body["message"])
}

func TestUnknownRouteIsJSON404(t *testing.T) {
	a := newTestApp(t)
	code, body := a.do(t, http.MethodGet, "/api/v1/nothing-here", "", "")
	assert.Equal(t, fiber.StatusNotFound, code)
	assert.NotEmpty(t, body["message"])
}

func TestCheckoutThroughTheAPI(t *testing.T) {
	a := newTestApp(t)

	code, _ := a.do(t, http.MethodPost, "/api/v1/sign-up", "", `{"email":"nok@example.com","password":"correct-horse"}`)
	require.Equal(t, fiber.StatusCreated, code)
	code, session := a.do(t, http.MethodPost, "/api/v1/sign-in", "", `{"email":"nok@example.com","password":"correct-horse"}`)
	require.Equal(t, fiber.StatusOK, code)
	token, _ := session["token"].(string)
	require.NotEmpty(t, token)
	customer := "Bearer " + token

	code, c := a.do(t, http.MethodPost, "/api/v1/cart/items", customer, `{"productId":1,"quantity":2}`)
	require.Equal(t, fiber.StatusOK, code)
	cartID, _ := c["cartId"].(string)
	require.NotEmpty(t, cartID)
	assert.Equal(t, "9", c["subtotal"])

	code, o := a.do(t, http.MethodPost, "/api/v1/orders", customer, `{
		"cartId":"`+cartID+`",
		"paymentMethod":"promptpay",
		"shippingAddress":{"name":"Nok","phone":"0800000000","line":"1 Sukhumvit Rd"}
	}`)
	require.Equal(t, fiber.StatusCreated, code, o)
	assert.Equal(t, "pending", o["status"])
	assert.Equal(t, "9", o["total"])

	code, avail := a.do(t, http.MethodGet, "/api/v1/product/1/availability?quantity=2", "", "")
	require.Equal(t, fiber.StatusOK, code)
	assert.Equal(t, false, avail["available"])
	assert.EqualValues(t, 1, avail["remaining"])

	code, list := a.do(t, http.MethodGet, "/api/v1/orders", customer, "")
	require.Equal(t, fiber.StatusOK, code)
	assert.EqualValues(t, 1, list["total"])

	assert.Equal(t, []string{"order.created"}, a.events.Types())
}

func TestRequestsAreLogged(t *testing.T) {
	a := newTestApp(t)
	a.hook.Reset()

	a.do(t, http.MethodGet, "/healthz", "", "")

	var found *logrus.Entry
	for _, e := range a.hook.AllEntries() {
		if e.Message == "request" {
			found = e
		}
	}
	require.NotNil(t, found)
	assert.Equal(t, "GET", found.Data["method"])
	assert.Equal(t, "/healthz", found.Data["url"])
	assert.Equal(t, fiber.StatusOK, found.Data["status"])
}

func TestRestockNeedsAdmin(t *testing.T) {
	a := newTestApp(t)

	customer := bearer(t, auth.Identity{UserID: 7, Role: auth.RoleCustomer})
	code, _ := a.do(t, http.MethodPost, "/api/v1/product/1/stock", customer, `{"quantity":5}`)
	assert.Equal(t, fiber.StatusForbidden, code)

	admin := bearer(t, auth.Identity{UserID: 1, Role: auth.RoleAdmin})
	code, _ = a.do(t, http.MethodPost, "/api/v1/product/1/stock", admin, `{"quantity":5}`)
	require.Equal(t, fiber.StatusOK, code)

	_, avail := a.do(t, http.MethodGet, "/api/v1/product/1/availability?quantity=8", "", "")
	assert.Equal(t, true, avail["available"])
	assert.EqualValues(t, 8, avail["remaining"])
}
