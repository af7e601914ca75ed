// Package main provides the Mobiq API server implementation.
package main

import (
	"log/slog"
	"strconv"

	"github.com/bryan-essi/mobiq/pkg/coordinator"
	"github.com/bryan-essi/mobiq/pkg/devices"
	"github.com/bryan-essi/mobiq/pkg/persistence"
	"github.com/bryan-essi/mobiq/pkg/registry"
	"github.com/bryan-essi/mobiq/pkg/web"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/gofiber/fiber/v3/middleware/logger"
)

type API struct {
	logger      *slog.Logger
	coordinator *coordinator.Coordinator
	persistence persistence.Persistence
	catalog     *registry.Registry
	devices     *devices.Registry
	validate    *validator.Validate
}

func NewAPI(
	log *slog.Logger,
	executionCoordinator *coordinator.Coordinator,
	store persistence.Persistence,
	catalog *registry.Registry,
	deviceRegistry *devices.Registry,
) *API {
	return &API{
		logger:      log,
		coordinator: executionCoordinator,
		persistence: store,
		catalog:     catalog,
		devices:     deviceRegistry,
		validate:    validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (a *API) App() *fiber.App {
	handlers := web.NewAPIHandlers(a.coordinator, a.persistence, a.catalog, a.devices, a.validate)

	app := fiber.New()
	app.Use(cors.New())
	app.Use(logger.New(logger.Config{
		DisableColors: true,
	}))

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker())

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("Mobiq API")
	})

	web.SetupRoutes(app, handlers)

	return app
}

func (a *API) Start(port int) error {
	app := a.App()

	return app.Listen(":" + strconv.Itoa(port))
}
