package web

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v3"

	"github.com/agentmatrix/matrix/pkg/models"
	"github.com/agentmatrix/matrix/pkg/persistence"
	"github.com/agentmatrix/matrix/pkg/services"
)

func (h *APIHandlers) CreateRun(c fiber.Ctx) error {
	var req CreateRunRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	run, err := h.runService.Create(c.Context(), projectID(c), services.CreateRunRequest{
		Name:         req.Name,
		Description:  req.Description,
		WorkflowIDs:  req.WorkflowIDs,
		ScheduledFor: req.ScheduledFor,
		Config:       req.Config,
		Tags:         req.Tags,
		Metadata:     req.Metadata,
		CreatedBy:    userID(c),
	})
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(run)
}

func (h *APIHandlers) GetRuns(c fiber.Ctx) error {
	limit, offset, err := parsePagination(c)
	if err != nil {
		return badRequest(c, "Invalid pagination parameters: "+err.Error())
	}

	opts := persistence.ListRunsOptions{Limit: limit, Offset: offset}

	if statusStr := c.Query("status"); statusStr != "" {
		status := models.RunStatus(statusStr)
		opts.Status = &status
	}

	if afterStr := c.Query("scheduled_after"); afterStr != "" {
		after, err := time.Parse(time.RFC3339, afterStr)
		if err != nil {
			return badRequest(c, "Invalid scheduled_after: "+err.Error())
		}

		opts.ScheduledAfter = &after
	}

	if beforeStr := c.Query("scheduled_before"); beforeStr != "" {
		before, err := time.Parse(time.RFC3339, beforeStr)
		if err != nil {
			return badRequest(c, "Invalid scheduled_before: "+err.Error())
		}

		opts.ScheduledBefore = &before
	}

	runs, err := h.runService.List(c.Context(), projectID(c), opts)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{
		"runs": runs,
		"pagination": fiber.Map{
			"limit":  limit,
			"offset": offset,
		},
	})
}

func (h *APIHandlers) GetRun(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Run ID is required")
	}

	run, err := h.runService.FetchByID(c.Context(), projectID(c), id)
	if err != nil {
		if services.IsNotFound(err) {
			return notFound(c, "Run not found")
		}

		return internalError(c, err)
	}

	return c.JSON(run)
}

func (h *APIHandlers) DeleteRun(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Run ID is required")
	}

	err := h.runService.Delete(c.Context(), projectID(c), id)
	if err != nil {
		if services.IsNotFound(err) {
			return notFound(c, "Run not found")
		}

		return internalError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *APIHandlers) StartRun(c fiber.Ctx) error {
	return h.transitionRun(c, h.runService.Start)
}

func (h *APIHandlers) PauseRun(c fiber.Ctx) error {
	return h.transitionRun(c, h.runService.Pause)
}

func (h *APIHandlers) ResumeRun(c fiber.Ctx) error {
	return h.transitionRun(c, h.runService.Resume)
}

func (h *APIHandlers) CancelRun(c fiber.Ctx) error {
	return h.transitionRun(c, h.runService.Cancel)
}

type runTransition func(ctx context.Context, projectID, runID string) (*models.OvernightRun, error)

func (h *APIHandlers) transitionRun(c fiber.Ctx, transition runTransition) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Run ID is required")
	}

	run, err := transition(c.Context(), projectID(c), id)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(run)
}

func (h *APIHandlers) GetRunProgress(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Run ID is required")
	}

	progress, err := h.runService.GetProgress(c.Context(), projectID(c), id)
	if err != nil {
		if services.IsNotFound(err) {
			return notFound(c, "Run not found")
		}

		return internalError(c, err)
	}

	return c.JSON(progress)
}
