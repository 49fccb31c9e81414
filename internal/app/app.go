// Package app assembles the Fiber application from already constructed services.
package app

import (
	"time"

	"gigauth/internal/handlers"
	"gigauth/internal/services"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// Options configures NewApp.
type Options struct {
	AuthService *services.AuthService
	Logger      zerolog.Logger
	// RequestLog enables Fiber's per-request access log.
	RequestLog bool
	// Checks are reported by /health; a non-nil error marks the dependency as down.
	Checks map[string]func() error
}

// NewApp builds the HTTP application with all routes registered.
func NewApp(opts Options) *fiber.App {
	errs := handlers.NewErrorResponder(opts.Logger)

	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			if fe, ok := err.(*fiber.Error); ok {
				return c.Status(fe.Code).JSON(fiber.Map{"msg": fe.Message})
			}
			return errs.Respond(c, err)
		},
	})

	if opts.RequestLog {
		app.Use(fiberlogger.New())
	}

	apiV1 := app.Group("/api/v1")
	handlers.NewAuthHandler(opts.AuthService, errs).RegisterRoutes(apiV1)

	app.Get("/health", healthHandler(opts.Checks))
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	return app
}

func healthHandler(checks map[string]func() error) fiber.Handler {
	return func(c *fiber.Ctx) error {
		status := "healthy"
		code := fiber.StatusOK
		deps := fiber.Map{}
		for name, check := range checks {
			if err := check(); err != nil {
				deps[name] = err.Error()
				status = "degraded"
				code = fiber.StatusServiceUnavailable
				continue
			}
			deps[name] = "ok"
		}
		return c.Status(code).JSON(fiber.Map{
			"status":       status,
			"time":         time.Now().Format(time.RFC3339),
			"dependencies": deps,
		})
	}
}
