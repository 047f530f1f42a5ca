package web

import (
	"github.com/gofiber/fiber/v3"

	"github.com/agentmatrix/matrix/pkg/models"
	"github.com/agentmatrix/matrix/pkg/persistence"
	"github.com/agentmatrix/matrix/pkg/services"
)

func (h *APIHandlers) CreateGate(c fiber.Ctx) error {
	var req CreateGateRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	gate, err := h.gateService.Create(c.Context(), projectID(c), services.CreateGateRequest{
		WorkflowID:  req.WorkflowID,
		ExecutionID: req.ExecutionID,
		StepID:      req.StepID,
		GateType:    req.GateType,
		Config:      req.Config,
		Context:     req.Context,
		CreatedBy:   userID(c),
	})
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(gate)
}

func (h *APIHandlers) GetGates(c fiber.Ctx) error {
	limit, offset, err := parsePagination(c)
	if err != nil {
		return badRequest(c, "Invalid pagination parameters: "+err.Error())
	}

	opts := persistence.ListGatesOptions{
		WorkflowID:  c.Query("workflow_id"),
		ExecutionID: c.Query("execution_id"),
		Limit:       limit,
		Offset:      offset,
	}

	if typeStr := c.Query("gate_type"); typeStr != "" {
		gateType := models.GateType(typeStr)
		opts.GateType = &gateType
	}

	if statusStr := c.Query("status"); statusStr != "" {
		status := models.GateStatus(statusStr)
		opts.Status = &status
	}

	gates, err := h.gateService.List(c.Context(), projectID(c), opts)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{
		"gates": gates,
		"pagination": fiber.Map{
			"limit":  limit,
			"offset": offset,
		},
	})
}

func (h *APIHandlers) GetGate(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Gate ID is required")
	}

	gate, err := h.gateService.FetchByID(c.Context(), projectID(c), id)
	if err != nil {
		if services.IsNotFound(err) {
			return notFound(c, "Gate not found")
		}

		return internalError(c, err)
	}

	return c.JSON(gate)
}

func (h *APIHandlers) ApproveGate(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Gate ID is required")
	}

	var req ResolveGateRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	gate, err := h.gateService.Approve(c.Context(), projectID(c), id, req.ReviewedBy)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(gate)
}

func (h *APIHandlers) RejectGate(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Gate ID is required")
	}

	var req ResolveGateRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	gate, err := h.gateService.Reject(c.Context(), projectID(c), id, req.ReviewedBy, req.Reason)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(gate)
}
