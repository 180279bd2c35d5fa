package cart

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/wichananm65/storefront/internal/apperr"
	"github.com/wichananm65/storefront/internal/auth"
)

// Handler delegates cart operations to the cart service. Signed-in callers
// use their user cart; anonymous callers are keyed by the session header.
type Handler struct {
	service *Service
}

func NewHandler(s *Service) *Handler {
	return &Handler{service: s}
}

func (h *Handler) RegisterProtectedRoutes(r fiber.Router) {
	r.Get("/api/v1/cart", h.getCart)
	r.Delete("/api/v1/cart", h.clearCart)
	r.Post("/api/v1/cart/items", h.addItem)
	r.Patch("/api/v1/cart/items", h.setQuantity)
	r.Delete("/api/v1/cart/items", h.removeItem)
}

type lineRequest struct {
	ProductID int    `json:"productId"`
	VariantID string `json:"variantId"`
	Quantity  int    `json:"quantity"`
}

func (p lineRequest) line() (Line, error) {
	l := Line{ProductID: p.ProductID, Quantity: p.Quantity}
	if p.VariantID != "" {
		id, err := uuid.Parse(p.VariantID)
		if err != nil {
			return Line{}, err
		}
		l.VariantID = &id
	}
	return l, nil
}

// ownerFromCtx resolves the cart owner. The boolean is false when the caller
// is neither signed in nor carrying a session id.
func ownerFromCtx(c *fiber.Ctx) (Owner, bool) {
	if id, err := auth.FromCtx(c); err == nil {
		return UserOwner{UserID: id.UserID}, true
	}
	if sid := auth.SessionID(c); sid != "" {
		return GuestOwner{SessionID: sid}, true
	}
	return nil, false
}

func (h *Handler) getCart(c *fiber.Ctx) error {
	owner, ok := ownerFromCtx(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"message": "unauthorized"})
	}
	cart, err := h.service.Get(c.UserContext(), owner)
	if err != nil {
		return apperr.Respond(c, err)
	}
	return c.JSON(cart)
}

func (h *Handler) addItem(c *fiber.Ctx) error {
	owner, ok := ownerFromCtx(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"message": "unauthorized"})
	}
	line, err := h.parseLine(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": err.Error()})
	}
	if line.Quantity == 0 {
		line.Quantity = 1
	}
	cart, err := h.service.AddItem(c.UserContext(), owner, line)
	if err != nil {
		return apperr.Respond(c, err)
	}
	return c.JSON(cart)
}

func (h *Handler) setQuantity(c *fiber.Ctx) error {
	owner, ok := ownerFromCtx(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"message": "unauthorized"})
	}
	line, err := h.parseLine(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": err.Error()})
	}
	cart, err := h.service.SetQuantity(c.UserContext(), owner, line)
	if err != nil {
		return apperr.Respond(c, err)
	}
	return c.JSON(cart)
}

// DELETE /api/v1/cart/items?productId=1&variantId=...
func (h *Handler) removeItem(c *fiber.Ctx) error {
	owner, ok := ownerFromCtx(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"message": "unauthorized"})
	}
	line, err := lineRequest{ProductID: c.QueryInt("productId"), VariantID: c.Query("variantId")}.line()
	if err != nil || line.ProductID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": "invalid productId or variantId"})
	}
	cart, err := h.service.RemoveItem(c.UserContext(), owner, line.ProductID, line.VariantID)
	if err != nil {
		return apperr.Respond(c, err)
	}
	return c.JSON(cart)
}

func (h *Handler) clearCart(c *fiber.Ctx) error {
	owner, ok := ownerFromCtx(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"message": "unauthorized"})
	}
	if err := h.service.Clear(c.UserContext(), owner); err != nil {
		return apperr.Respond(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *Handler) parseLine(c *fiber.Ctx) (Line, error) {
	payload := new(lineRequest)
	if err := c.BodyParser(payload); err != nil {
		return Line{}, err
	}
	if payload.ProductID <= 0 {
		return Line{}, fiber.NewError(fiber.StatusBadRequest, "invalid productId")
	}
	return payload.line()
}
