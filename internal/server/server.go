// Package server assembles the fiber app: middleware, then public routes,
// then everything behind the bearer token check.
package server

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/wichananm65/storefront/internal/address"
	"github.com/wichananm65/storefront/internal/auth"
	"github.com/wichananm65/storefront/internal/cart"
	"github.com/wichananm65/storefront/internal/inventory"
	"github.com/wichananm65/storefront/internal/order"
	"github.com/wichananm65/storefront/internal/product"
	"github.com/wichananm65/storefront/internal/user"
)

// Handlers groups the feature handlers mounted on the app.
type Handlers struct {
	Users     *user.Handler
	Products  *product.Handler
	Inventory *inventory.Handler
	Carts     *cart.Handler
	Addresses *address.Handler
	Orders    *order.Handler
}

// New builds the app. Routes registered before auth.Optional are reachable
// without a token; the rest read the caller from the JWT when one is sent
// and check roles per handler.
func New(secret string, h Handlers, log logrus.FieldLogger) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:      "storefront",
		ErrorHandler: errorHandler(log),
	})
	setupCORS(app)
	app.Use(requestLogger(log))

	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	h.Users.RegisterPublicRoutes(app)
	h.Products.RegisterPublicRoutes(app)
	h.Inventory.RegisterPublicRoutes(app)

	app.Use(auth.Optional(secret))

	h.Users.RegisterProtectedRoutes(app)
	h.Products.RegisterProtectedRoutes(app)
	h.Inventory.RegisterProtectedRoutes(app)
	h.Carts.RegisterProtectedRoutes(app)
	h.Addresses.RegisterProtectedRoutes(app)
	h.Orders.RegisterProtectedRoutes(app)

	return app
}

func setupCORS(app *fiber.App) {
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,HEAD,PUT,DELETE,PATCH",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, " + auth.SessionHeader,
	}))
}

func requestLogger(log logrus.FieldLogger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()
		log.WithFields(logrus.Fields{
			"method":   c.Method(),
			"url":      c.OriginalURL(),
			"remote":   c.IP(),
			"status":   c.Response().StatusCode(),
			"duration": time.Since(start).String(),
		}).Info("request")
		return err
	}
}

// errorHandler answers errors that escape a handler, mostly fiber's own
// 404/405 and body parser failures.
func errorHandler(log logrus.FieldLogger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		var fe *fiber.Error
		if errors.As(err, &fe) {
			return c.Status(fe.Code).JSON(fiber.Map{"message": fe.Message})
		}
		log.WithError(err).WithField("url", c.OriginalURL()).Error("unhandled error")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"message": "internal error"})
	}
}
