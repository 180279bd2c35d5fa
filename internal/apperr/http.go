package apperr

import (
	"github.com/gofiber/fiber/v2"
	"github.com/pkg/errors"
)

func HTTPStatus(err error) int {
	switch KindOf(err) {
	case InvalidState:
		return fiber.StatusBadRequest
	case NotFound:
		return fiber.StatusNotFound
	case InsufficientInventory:
		return fiber.StatusConflict
	case InvalidStatusTransition:
		return fiber.StatusUnprocessableEntity
	default:
		return fiber.StatusInternalServerError
	}
}

// Respond writes err using the API's {"message": ...} convention.
func Respond(c *fiber.Ctx, err error) error {
	body := fiber.Map{"message": err.Error(), "kind": KindOf(err).String()}
	var ae *Error
	if errors.As(err, &ae) {
		if ae.Message != "" {
			body["message"] = ae.Message
		}
		if len(ae.Reasons) > 0 {
			body["reasons"] = ae.Reasons
		}
	}
	if KindOf(err) == Unknown {
		body["message"] = "internal error"
	}
	return c.Status(HTTPStatus(err)).JSON(body)
}
