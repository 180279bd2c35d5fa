package address

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wichananm65/storefront/internal/auth"
)

const handlerSecret = "address-test-secret"

func token(t *testing.T, userID int) string {
	t.Helper()
	tok, err := auth.NewToken(handlerSecret, auth.Identity{UserID: userID, Role: auth.RoleCustomer}, time.Hour)
	require.NoError(t, err)
	return "Bearer " + tok
}

func TestAddressRoutes(t *testing.T) {
	svc := NewService(NewInMemoryRepository(
		Address{AddressID: 1, UserID: 42, AddressDesc: "123 Main", Phone: "555-1234", AddressName: "Home"},
	))
	app := fiber.New()
	app.Use(auth.Optional(handlerSecret))
	NewHandler(svc).RegisterProtectedRoutes(app)

	owner, stranger := token(t, 42), token(t, 7)

	// steps share the repository and run in order
	steps := []struct {
		name     string
		method   string
		token    string
		body     string
		status   int
		contains string
		absent   string
	}{
		{name: "anonymous list", method: "GET", status: fiber.StatusUnauthorized},
		{name: "list seeded", method: "GET", token: owner, status: fiber.StatusOK, contains: "123 Main"},
		{name: "add", method: "POST", token: owner, body: `{"addressDesc":"foo","phone":"123"}`, status: fiber.StatusCreated, contains: `"addressId":2`},
		{name: "add without description", method: "POST", token: owner, body: `{"phone":"123"}`, status: fiber.StatusBadRequest},
		{name: "update", method: "PATCH", token: owner, body: `{"addressId":2,"addressDesc":"bar"}`, status: fiber.StatusOK, contains: "bar"},
		{name: "update without id", method: "PATCH", token: owner, body: `{"addressDesc":"bar"}`, status: fiber.StatusBadRequest},
		{name: "foreign update", method: "PATCH", token: stranger, body: `{"addressId":2,"addressDesc":"evil"}`, status: fiber.StatusNotFound},
		{name: "stranger sees nothing", method: "GET", token: stranger, status: fiber.StatusOK, absent: "bar"},
		{name: "delete", method: "DELETE", token: owner, body: `{"addressId":2}`, status: fiber.StatusNoContent},
		{name: "list after delete", method: "GET", token: owner, status: fiber.StatusOK, contains: "123 Main", absent: "bar"},
	}
	for _, s := range steps {
		var body io.Reader
		if s.body != "" {
			body = strings.NewReader(s.body)
		}
		req := httptest.NewRequest(s.method, "/api/v1/address", body)
		req.Header.Set("Content-Type", "application/json")
		if s.token != "" {
			req.Header.Set("Authorization", s.token)
		}
		res, err := app.Test(req)
		require.NoError(t, err, s.name)
		raw, _ := io.ReadAll(res.Body)

		require.Equal(t, s.status, res.StatusCode, "%s: %s", s.name, raw)
		if s.contains != "" {
			assert.Contains(t, string(raw), s.contains, s.name)
		}
		if s.absent != "" {
			assert.NotContains(t, string(raw), s.absent, s.name)
		}
	}
}
