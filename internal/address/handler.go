package address

import (
	"github.com/gofiber/fiber/v2"

	"github.com/wichananm65/storefront/internal/apperr"
	"github.com/wichananm65/storefront/internal/auth"
)

// Handler delegates address operations to the address service.
type Handler struct {
	service *Service
}

func NewHandler(s *Service) *Handler {
	return &Handler{service: s}
}

func (h *Handler) RegisterProtectedRoutes(r fiber.Router) {
	r.Get("/api/v1/address", h.getAddresses)
	r.Post("/api/v1/address", h.addAddress)
	r.Patch("/api/v1/address", h.updateAddress)
	r.Delete("/api/v1/address", h.deleteAddress)
}

// request payloads

type addressUpdateRequest struct {
	AddressID int `json:"addressId"`
	Input
}

type addressDeleteRequest struct {
	AddressID int `json:"addressId"`
}

func (h *Handler) getAddresses(c *fiber.Ctx) error {
	id, err := auth.Authorize(c)
	if err != nil {
		return auth.Deny(c, err)
	}
	addrs, err := h.service.GetAddresses(c.UserContext(), id.UserID)
	if err != nil {
		return apperr.Respond(c, err)
	}
	return c.JSON(addrs)
}

func (h *Handler) addAddress(c *fiber.Ctx) error {
	id, err := auth.Authorize(c)
	if err != nil {
		return auth.Deny(c, err)
	}
	payload := new(Input)
	if err := c.BodyParser(payload); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": err.Error()})
	}
	addr, err := h.service.AddAddress(c.UserContext(), id.UserID, *payload)
	if err != nil {
		return apperr.Respond(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(addr)
}

func (h *Handler) updateAddress(c *fiber.Ctx) error {
	id, err := auth.Authorize(c)
	if err != nil {
		return auth.Deny(c, err)
	}
	payload := new(addressUpdateRequest)
	if err := c.BodyParser(payload); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": err.Error()})
	}
	if payload.AddressID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": "invalid addressId"})
	}
	addr, err := h.service.UpdateAddress(c.UserContext(), id.UserID, payload.AddressID, payload.Input)
	if err != nil {
		return apperr.Respond(c, err)
	}
	return c.JSON(addr)
}

func (h *Handler) deleteAddress(c *fiber.Ctx) error {
	id, err := auth.Authorize(c)
	if err != nil {
		return auth.Deny(c, err)
	}
	payload := new(addressDeleteRequest)
	if err := c.BodyParser(payload); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": err.Error()})
	}
	if payload.AddressID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": "invalid addressId"})
	}
	if err := h.service.DeleteAddress(c.UserContext(), id.UserID, payload.AddressID); err != nil {
		return apperr.Respond(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}
