package web

import "github.com/gofiber/fiber/v3"

// SetupRoutes mounts every API endpoint on the app.
func SetupRoutes(app *fiber.App, handlers *APIHandlers) {
	app.Get("/health", handlers.HealthCheck)
	app.Get("/devices", handlers.GetDevices)
	app.Get("/modules", handlers.GetModules)

	flows := app.Group("/flows")
	flows.Get("/", handlers.GetFlows)
	flows.Post("/", handlers.CreateFlow)
	flows.Get("/:id", handlers.GetFlow)
	flows.Patch("/:id", handlers.UpdateFlow)
	flows.Delete("/:id", handlers.DeleteFlow)

	executions := app.Group("/executions")
	executions.Get("/", handlers.GetExecutions)
	executions.Post("/", handlers.StartExecution)
	executions.Get("/:id", handlers.GetExecution)
	executions.Post("/:id/cancel", handlers.CancelExecution)
}
