package auth

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	jwtware "github.com/gofiber/jwt/v2"
	"github.com/golang-jwt/jwt/v4"
)

type Role string

const (
	RoleCustomer Role = "customer"
	RoleAdmin    Role = "admin"
	// RoleSystem is used by internal callers such as the payment gateway bridge.
	RoleSystem Role = "system"
)

// SessionHeader carries the anonymous session id for guest carts.
const SessionHeader = "X-Session-ID"

// Identity is the caller as asserted by the JWT. It is never resolved
// against a user store here.
type Identity struct {
	UserID int
	Role   Role
}

func (i Identity) IsStaff() bool {
	return i.Role == RoleAdmin || i.Role == RoleSystem
}

// Required rejects requests without a valid bearer token.
func Required(secret string) fiber.Handler {
	return jwtware.New(jwtware.Config{
		SigningKey:   []byte(secret),
		ErrorHandler: unauthorized,
	})
}

// Optional validates a bearer token when one is sent and lets anonymous
// requests through untouched (guest carts).
func Optional(secret string) fiber.Handler {
	return jwtware.New(jwtware.Config{
		SigningKey:   []byte(secret),
		ErrorHandler: unauthorized,
		Filter: func(c *fiber.Ctx) bool {
			return c.Get(fiber.HeaderAuthorization) == ""
		},
	})
}

func unauthorized(c *fiber.Ctx, _ error) error {
	return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"message": "unauthorized"})
}

// RequireRole must run after Required or Optional.
func RequireRole(roles ...Role) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if _, err := Authorize(c, roles...); err != nil {
			return Deny(c, err)
		}
		return c.Next()
	}
}

// Authorize resolves the caller and checks it holds one of roles. With no
// roles any authenticated caller passes.
func Authorize(c *fiber.Ctx, roles ...Role) (Identity, error) {
	id, err := FromCtx(c)
	if err != nil {
		return Identity{}, fiber.ErrUnauthorized
	}
	if len(roles) == 0 {
		return id, nil
	}
	for _, r := range roles {
		if id.Role == r {
			return id, nil
		}
	}
	return Identity{}, fiber.ErrForbidden
}

// Deny writes the 401/403 body for an Authorize failure.
func Deny(c *fiber.Ctx, err error) error {
	if errors.Is(err, fiber.ErrForbidden) {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"message": "forbidden"})
	}
	return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"message": "unauthorized"})
}

// FromCtx extracts the user_id and role claims from the JWT token stored in
// fiber locals by the jwt middleware.
func FromCtx(c *fiber.Ctx) (Identity, error) {
	u := c.Locals("user")
	if u == nil {
		return Identity{}, fiber.ErrUnauthorized
	}
	tok, ok := u.(*jwt.Token)
	if !ok {
		return Identity{}, fiber.ErrUnauthorized
	}
	claims, ok := tok.Claims.(jwt.MapClaims)
	if !ok {
		return Identity{}, fiber.ErrUnauthorized
	}
	id, err := userIDClaim(claims["user_id"])
	if err != nil {
		return Identity{}, err
	}
	role := RoleCustomer
	if r, ok := claims["role"].(string); ok && r != "" {
		role = Role(strings.ToLower(r))
	}
	return Identity{UserID: id, Role: role}, nil
}

func userIDClaim(raw any) (int, error) {
	switch v := raw.(type) {
	case float64:
		return int(v), nil
	case int:
		return v, nil
	case int64:
		return int(v), nil
	case string:
		id, err := strconv.Atoi(v)
		if err != nil {
			return 0, fiber.ErrUnauthorized
		}
		return id, nil
	default:
		return 0, fiber.ErrUnauthorized
	}
}

func SessionID(c *fiber.Ctx) string {
	return strings.TrimSpace(c.Get(SessionHeader))
}

// NewToken signs an HS256 token carrying the claims FromCtx reads.
func NewToken(secret string, id Identity, ttl time.Duration) (string, error) {
	claims := jwt.MapClaims{
		"user_id": id.UserID,
		"role":    string(id.Role),
		"exp":     time.Now().Add(ttl).Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}
