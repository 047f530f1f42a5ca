package web

import (
	"context"

	"github.com/gofiber/fiber/v3"

	"github.com/agentmatrix/matrix/pkg/models"
	"github.com/agentmatrix/matrix/pkg/persistence"
	"github.com/agentmatrix/matrix/pkg/services"
)

func (h *APIHandlers) GetExecutions(c fiber.Ctx) error {
	limit, offset, err := parsePagination(c)
	if err != nil {
		return badRequest(c, "Invalid pagination parameters: "+err.Error())
	}

	opts := persistence.ListExecutionsOptions{
		WorkflowID: c.Query("workflow_id"),
		Limit:      limit,
		Offset:     offset,
	}

	if statusStr := c.Query("status"); statusStr != "" {
		status := models.ExecutionStatus(statusStr)
		opts.Status = &status
	}

	executions, err := h.executionService.List(c.Context(), projectID(c), opts)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{
		"executions": executions,
		"pagination": fiber.Map{
			"limit":  limit,
			"offset": offset,
		},
	})
}

func (h *APIHandlers) GetExecution(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Execution ID is required")
	}

	execution, err := h.executionService.FetchByID(c.Context(), projectID(c), id)
	if err != nil {
		if services.IsNotFound(err) {
			return notFound(c, "Execution not found")
		}

		return internalError(c, err)
	}

	return c.JSON(execution)
}

func (h *APIHandlers) PauseExecution(c fiber.Ctx) error {
	return h.transitionExecution(c, h.executionService.Pause)
}

func (h *APIHandlers) ResumeExecution(c fiber.Ctx) error {
	return h.transitionExecution(c, h.executionService.Resume)
}

func (h *APIHandlers) CancelExecution(c fiber.Ctx) error {
	return h.transitionExecution(c, h.executionService.Cancel)
}

func (h *APIHandlers) transitionExecution(c fiber.Ctx, transition func(ctx context.Context, projectID, executionID string) (*models.WorkflowExecution, error)) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Execution ID is required")
	}

	execution, err := transition(c.Context(), projectID(c), id)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(execution)
}
