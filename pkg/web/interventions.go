package web

import (
	"github.com/gofiber/fiber/v3"

	"github.com/agentmatrix/matrix/pkg/models"
	"github.com/agentmatrix/matrix/pkg/persistence"
	"github.com/agentmatrix/matrix/pkg/services"
)

func (h *APIHandlers) CreateIntervention(c fiber.Ctx) error {
	var req CreateInterventionRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	intervention, err := h.interventionService.Create(c.Context(), projectID(c), services.CreateInterventionRequest{
		WorkflowID:       req.WorkflowID,
		ExecutionID:      req.ExecutionID,
		StepID:           req.StepID,
		InterventionType: req.InterventionType,
		Message:          req.Message,
		Data:             req.Data,
		CreatedBy:        userID(c),
	})
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(intervention)
}

func (h *APIHandlers) GetInterventions(c fiber.Ctx) error {
	limit, offset, err := parsePagination(c)
	if err != nil {
		return badRequest(c, "Invalid pagination parameters: "+err.Error())
	}

	opts := persistence.ListInterventionsOptions{
		WorkflowID:  c.Query("workflow_id"),
		ExecutionID: c.Query("execution_id"),
		Limit:       limit,
		Offset:      offset,
	}

	if typeStr := c.Query("intervention_type"); typeStr != "" {
		interventionType := models.InterventionType(typeStr)
		opts.Type = &interventionType
	}

	if statusStr := c.Query("status"); statusStr != "" {
		status := models.InterventionStatus(statusStr)
		opts.Status = &status
	}

	interventions, err := h.interventionService.List(c.Context(), projectID(c), opts)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{
		"interventions": interventions,
		"pagination": fiber.Map{
			"limit":  limit,
			"offset": offset,
		},
	})
}

func (h *APIHandlers) GetIntervention(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Intervention ID is required")
	}

	intervention, err := h.interventionService.FetchByID(c.Context(), projectID(c), id)
	if err != nil {
		if services.IsNotFound(err) {
			return notFound(c, "Intervention not found")
		}

		return internalError(c, err)
	}

	return c.JSON(intervention)
}
