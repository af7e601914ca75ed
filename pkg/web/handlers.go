// Package web provides the REST endpoints for devices, flows, the module
// catalog, and execution control.
package web

import (
	"net/http"
	"time"

	"github.com/bryan-essi/mobiq/pkg/coordinator"
	"github.com/bryan-essi/mobiq/pkg/devices"
	"github.com/bryan-essi/mobiq/pkg/models"
	"github.com/bryan-essi/mobiq/pkg/persistence"
	"github.com/bryan-essi/mobiq/pkg/registry"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"
)

type APIHandlers struct {
	coordinator *coordinator.Coordinator
	persistence persistence.Persistence
	catalog     *registry.Registry
	devices     *devices.Registry
	validator   *validator.Validate
}

func NewAPIHandlers(
	executionCoordinator *coordinator.Coordinator,
	store persistence.Persistence,
	catalog *registry.Registry,
	deviceRegistry *devices.Registry,
	validate *validator.Validate,
) *APIHandlers {
	return &APIHandlers{
		coordinator: executionCoordinator,
		persistence: store,
		catalog:     catalog,
		devices:     deviceRegistry,
		validator:   validate,
	}
}

// GetDevices lists every device in the live set with its claim state.
func (h *APIHandlers) GetDevices(c fiber.Ctx) error {
	return c.JSON(fiber.Map{"devices": h.devices.ListDevices()})
}

// GetModules lists the module catalog.
func (h *APIHandlers) GetModules(c fiber.Ctx) error {
	return c.JSON(fiber.Map{"modules": h.catalog.ModuleDefinitions()})
}

func (h *APIHandlers) GetFlows(c fiber.Ctx) error {
	flows, err := h.persistence.Flows(c.Context())
	if err != nil {
		return internalError(c, err)
	}

	return c.JSON(fiber.Map{"flows": flows})
}

func (h *APIHandlers) GetFlow(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Flow ID is required")
	}

	flow, err := h.persistence.FlowByID(c.Context(), id)
	if err != nil {
		if persistence.IsFlowNotFound(err) {
			return notFound(c, "Flow not found")
		}

		return internalError(c, err)
	}

	return c.JSON(flow)
}

func (h *APIHandlers) CreateFlow(c fiber.Ctx) error {
	var req CreateFlowRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	flow := &models.Flow{
		ID:          "flow-" + uuid.New().String()[:8],
		Name:        req.Name,
		Description: req.Description,
		Steps:       flowSteps(req.Steps),
		Metadata:    req.Metadata,
		Owner:       req.Owner,
	}

	if err := h.validateFlow(flow); err != nil {
		return badRequest(c, err.Error())
	}

	if err := h.persistence.SaveFlow(c.Context(), flow); err != nil {
		return internalError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(flow)
}

func (h *APIHandlers) UpdateFlow(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Flow ID is required")
	}

	var req UpdateFlowRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	existing, err := h.persistence.FlowByID(c.Context(), id)
	if err != nil {
		if persistence.IsFlowNotFound(err) {
			return notFound(c, "Flow not found")
		}

		return internalError(c, err)
	}

	if req.Name != nil {
		existing.Name = *req.Name
	}

	if req.Description != nil {
		existing.Description = *req.Description
	}

	if req.Steps != nil {
		existing.Steps = flowSteps(req.Steps)
	}

	if req.Metadata != nil {
		existing.Metadata = req.Metadata
	}

	if err := h.validateFlow(existing); err != nil {
		return badRequest(c, err.Error())
	}

	if err := h.persistence.SaveFlow(c.Context(), existing); err != nil {
		return internalError(c, err)
	}

	return c.JSON(existing)
}

func (h *APIHandlers) DeleteFlow(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Flow ID is required")
	}

	if err := h.persistence.DeleteFlow(c.Context(), id); err != nil {
		if persistence.IsFlowNotFound(err) {
			return notFound(c, "Flow not found")
		}

		return internalError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

// validateFlow checks step ordering and every step against the module
// catalog, so a flow that can never be admitted is rejected at write time.
func (h *APIHandlers) validateFlow(flow *models.Flow) error {
	if !flow.ValidateStepOrder() {
		return errStepOrder
	}

	for _, step := range flow.Steps {
		if _, err := h.catalog.ResolveModule(step.ModuleID); err != nil {
			return err
		}

		if err := h.catalog.ValidateParameters(step.ModuleID, step.InputParameters); err != nil {
			return err
		}
	}

	return nil
}

// StartExecution admits one run of a flow on a device set.
func (h *APIHandlers) StartExecution(c fiber.Ctx) error {
	var req StartExecutionRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	execution, err := h.coordinator.Start(c.Context(), req.FlowID, req.DeviceIDs)
	if err != nil {
		return handleAdmissionError(c, err)
	}

	return c.Status(fiber.StatusAccepted).JSON(execution)
}

func (h *APIHandlers) GetExecutions(c fiber.Ctx) error {
	return c.JSON(fiber.Map{"executions": h.coordinator.Executions()})
}

func (h *APIHandlers) GetExecution(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Execution ID is required")
	}

	execution, err := h.coordinator.Get(c.Context(), id)
	if err != nil {
		if persistence.IsExecutionNotFound(err) {
			return notFound(c, "Execution not found")
		}

		return internalError(c, err)
	}

	return c.JSON(execution)
}

// CancelExecution requests cooperative cancellation. Devices finish their
// in-flight step before stopping, so the response is 202, not 200.
func (h *APIHandlers) CancelExecution(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Execution ID is required")
	}

	if !h.coordinator.Cancel(c.Context(), id) {
		return notFound(c, "Execution not found or already terminal")
	}

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"cancelled": true})
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	err := h.persistence.HealthCheck(c.Context())

	status := "healthy"
	httpStatus := http.StatusOK

	if err != nil {
		status = "unhealthy"
		httpStatus = http.StatusInternalServerError
	}

	return c.Status(httpStatus).JSON(fiber.Map{
		"status":    status,
		"timestamp": time.Now().UTC(),
	})
}
