package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/maintenance-service/internal/persistence"
	"github.com/spec-kit/maintenance-service/internal/scheduler"
	"github.com/spec-kit/maintenance-service/pkg/util"
)

// JobsHandler exposes the background job orchestrator and runtime flags to
// operators.
type JobsHandler struct {
	orchestrator *scheduler.Orchestrator
	flags        *persistence.RuntimeFlags
}

// NewJobsHandler constructs handler.
func NewJobsHandler(orchestrator *scheduler.Orchestrator, flags *persistence.RuntimeFlags) *JobsHandler {
	return &JobsHandler{orchestrator: orchestrator, flags: flags}
}

// ListJobs GET /admin/jobs.
func (h *JobsHandler) ListJobs(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"data": h.orchestrator.Status()})
}

// TriggerJob POST /admin/jobs/:name/trigger.
func (h *JobsHandler) TriggerJob(c *fiber.Ctx) error {
	name := c.Params("name")
	result, err := h.orchestrator.Trigger(c.Context(), name)
	if err != nil {
		if errors.Is(err, scheduler.ErrJobNotFound) {
			return util.NewNotFound("job", map[string]any{"name": name})
		}
		return util.MapError(err)
	}
	if result.Err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"data": fiber.Map{
			"name":   result.Name,
			"status": "failed",
			"error":  result.Err.Error(),
		}})
	}
	status := "completed"
	if result.Skipped {
		status = "skipped"
	}
	return c.JSON(fiber.Map{"data": fiber.Map{
		"name":        result.Name,
		"status":      status,
		"duration_ms": result.Duration.Milliseconds(),
	}})
}

// GetMaintenanceMode GET /admin/maintenance-mode.
func (h *JobsHandler) GetMaintenanceMode(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"data": fiber.Map{
		"enabled": h.flags.MaintenanceMode(c.Context()),
	}})
}

// SetMaintenanceMode PUT /admin/maintenance-mode.
func (h *JobsHandler) SetMaintenanceMode(c *fiber.Ctx) error {
	var req struct {
		Enabled bool `json:"enabled"`
	}
	if err := c.BodyParser(&req); err != nil {
		return util.NewValidationError("invalid payload", nil)
	}
	if err := h.flags.SetMaintenanceMode(c.Context(), req.Enabled); err != nil {
		return util.NewTransientError("maintenance mode update failed", err)
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"enabled": req.Enabled}})
}
