package web

import (
	"errors"

	"github.com/bryan-essi/mobiq/pkg/coordinator"
	"github.com/bryan-essi/mobiq/pkg/persistence"
	"github.com/gofiber/fiber/v3"
	"github.com/moogar0880/problems"
)

var errStepOrder = errors.New("step sequence numbers must be strictly increasing")

func badRequest(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(400).
		WithInstance(c.Path()).
		WithType("validation_error").
		WithDetail(detail)

	return c.Status(fiber.StatusBadRequest).JSON(problem)
}

func notFound(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(404).
		WithInstance(c.Path()).
		WithType("not_found").
		WithDetail(detail)

	return c.Status(fiber.StatusNotFound).JSON(problem)
}

func internalError(c fiber.Ctx, err error) error {
	problem := problems.NewStatusProblem(500).
		WithInstance(c.Path()).
		WithType("internal_error").
		WithError(err)

	return c.Status(fiber.StatusInternalServerError).JSON(problem)
}

// handleAdmissionError maps coordinator admission rejections to their HTTP
// shapes: a busy device set is a conflict, a bad flow is a validation
// problem, an unresolvable flow id is a 404.
func handleAdmissionError(c fiber.Ctx, err error) error {
	var busy *coordinator.DeviceBusyError

	var invalidFlow *coordinator.InvalidFlowError

	var noDevices *coordinator.NoDevicesError

	switch {
	case errors.As(err, &busy):
		problem := problems.NewStatusProblem(409).
			WithInstance(c.Path()).
			WithType("device_busy").
			WithDetail(busy.Error())

		return c.Status(fiber.StatusConflict).JSON(problem)

	case errors.As(err, &invalidFlow):
		if persistence.IsFlowNotFound(err) {
			return notFound(c, "Flow not found")
		}

		return badRequest(c, invalidFlow.Error())

	case errors.As(err, &noDevices):
		return badRequest(c, noDevices.Error())

	default:
		return internalError(c, err)
	}
}
