package inventory

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/wichananm65/storefront/internal/apperr"
	"github.com/wichananm65/storefront/internal/auth"
)

type Handler struct {
	ledger *Ledger
}

func NewHandler(ledger *Ledger) *Handler {
	return &Handler{ledger: ledger}
}

func (h *Handler) RegisterPublicRoutes(r fiber.Router) {
	r.Get("/api/v1/product/:id<int>/availability", h.getAvailability)
}

func (h *Handler) RegisterProtectedRoutes(r fiber.Router) {
	r.Post("/api/v1/product/:id<int>/stock", h.receiveStock)
}

// GET /api/v1/product/:id/availability?quantity=2&variantId=...
func (h *Handler) getAvailability(c *fiber.Ctx) error {
	id, err := strconv.Atoi(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": "invalid product id"})
	}
	qty := c.QueryInt("quantity", 1)
	variantID, err := parseVariant(c.Query("variantId"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": "invalid variant id"})
	}

	a, err := h.ledger.CheckAvailability(c.UserContext(), id, qty, variantID)
	if err != nil {
		return apperr.Respond(c, err)
	}
	return c.JSON(a)
}

type stockRequest struct {
	VariantID string `json:"variantId"`
	Quantity  int    `json:"quantity"`
}

func (h *Handler) receiveStock(c *fiber.Ctx) error {
	if _, err := auth.Authorize(c, auth.RoleAdmin); err != nil {
		return auth.Deny(c, err)
	}
	id, err := strconv.Atoi(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": "invalid product id"})
	}
	var req stockRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": "invalid body"})
	}
	variantID, err := parseVariant(req.VariantID)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": "invalid variant id"})
	}

	lvl, err := h.ledger.Receive(c.UserContext(), Item{ProductID: id, VariantID: variantID, Quantity: req.Quantity})
	if err != nil {
		return apperr.Respond(c, err)
	}
	return c.JSON(lvl)
}

func parseVariant(s string) (*uuid.UUID, error) {
	if s == "" {
		return nil, nil
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return nil, err
	}
	return &id, nil
}
