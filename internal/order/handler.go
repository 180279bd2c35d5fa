package order

import (
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/wichananm65/storefront/internal/apperr"
	"github.com/wichananm65/storefront/internal/auth"
)

// Handler delegates order operations to the order service.
type Handler struct {
	service *Service
}

func NewHandler(s *Service) *Handler {
	return &Handler{service: s}
}

func (h *Handler) RegisterProtectedRoutes(r fiber.Router) {
	r.Post("/api/v1/orders", h.createOrder)
	r.Get("/api/v1/orders", h.getOrders)
	r.Get("/api/v1/orders/:id<int>", h.getOrder)
	r.Patch("/api/v1/orders/:id<int>/status", h.updateStatus)
	r.Post("/api/v1/orders/:id<int>/restore-inventory", h.restoreInventory)
	r.Post("/api/v1/payments/events", h.paymentEvent)
}

func (h *Handler) createOrder(c *fiber.Ctx) error {
	id, err := auth.Authorize(c)
	if err != nil {
		return auth.Deny(c, err)
	}
	payload := new(CreateRequest)
	if err := c.BodyParser(payload); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": err.Error()})
	}
	payload.UserID = id.UserID
	payload.SessionID = auth.SessionID(c)

	created, err := h.service.Create(c.UserContext(), *payload)
	if err != nil {
		return apperr.Respond(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(created)
}

// getOrders returns the caller's orders, newest first.
// GET /api/v1/orders?page=1&pageSize=20
func (h *Handler) getOrders(c *fiber.Ctx) error {
	id, err := auth.Authorize(c)
	if err != nil {
		return auth.Deny(c, err)
	}
	page, err := h.service.ListForOwner(c.UserContext(), id.UserID, c.QueryInt("page", 1), c.QueryInt("pageSize", defaultPageSize))
	if err != nil {
		return apperr.Respond(c, err)
	}
	return c.JSON(page)
}

func (h *Handler) getOrder(c *fiber.Ctx) error {
	id, err := auth.Authorize(c)
	if err != nil {
		return auth.Deny(c, err)
	}
	orderID, err := strconv.Atoi(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": "invalid order id"})
	}
	var owner *int
	if !id.IsStaff() {
		owner = &id.UserID
	}
	o, err := h.service.GetByID(c.UserContext(), orderID, owner)
	if err != nil {
		return apperr.Respond(c, err)
	}
	return c.JSON(o)
}

func (h *Handler) updateStatus(c *fiber.Ctx) error {
	id, err := auth.Authorize(c)
	if err != nil {
		return auth.Deny(c, err)
	}
	orderID, err := strconv.Atoi(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": "invalid order id"})
	}
	payload := new(StatusChange)
	if err := c.BodyParser(payload); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": err.Error()})
	}
	payload.Actor = id

	o, err := h.service.UpdateStatus(c.UserContext(), orderID, *payload)
	if err != nil {
		return apperr.Respond(c, err)
	}
	return c.JSON(o)
}

func (h *Handler) restoreInventory(c *fiber.Ctx) error {
	if _, err := auth.Authorize(c, auth.RoleAdmin); err != nil {
		return auth.Deny(c, err)
	}
	orderID, err := strconv.Atoi(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": "invalid order id"})
	}
	if err := h.service.RestoreInventory(c.UserContext(), orderID); err != nil {
		return apperr.Respond(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// paymentEvent is called by the payment gateway bridge.
func (h *Handler) paymentEvent(c *fiber.Ctx) error {
	if _, err := auth.Authorize(c, auth.RoleSystem, auth.RoleAdmin); err != nil {
		return auth.Deny(c, err)
	}
	payload := new(PaymentEvent)
	if err := c.BodyParser(payload); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": err.Error()})
	}
	if payload.OrderID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": "invalid orderId"})
	}
	o, err := h.service.ApplyPayment(c.UserContext(), *payload)
	if err != nil {
		return apperr.Respond(c, err)
	}
	return c.JSON(o)
}
