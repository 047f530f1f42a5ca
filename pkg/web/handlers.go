// Package web provides HTTP handlers and REST API endpoints for run and
// workflow management.
package web

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"

	"github.com/agentmatrix/matrix/pkg/services"
)

// ProjectIDHeader scopes every request to a tenant project.
const ProjectIDHeader = "X-Project-ID"

// UserIDHeader identifies the caller for created_by attribution.
const UserIDHeader = "X-User-ID"

type APIHandlers struct {
	runService          *services.OvernightRuns
	workflowService     *services.Workflows
	executionService    *services.Executions
	gateService         *services.Gates
	interventionService *services.Interventions
	validator           *validator.Validate
}

func NewAPIHandlers(
	runService *services.OvernightRuns,
	workflowService *services.Workflows,
	executionService *services.Executions,
	gateService *services.Gates,
	interventionService *services.Interventions,
	validator *validator.Validate,
) *APIHandlers {
	return &APIHandlers{
		runService:          runService,
		workflowService:     workflowService,
		executionService:    executionService,
		gateService:         gateService,
		interventionService: interventionService,
		validator:           validator,
	}
}

// projectID extracts the tenant scope from the request headers.
func projectID(c fiber.Ctx) string {
	return c.Get(ProjectIDHeader)
}

func userID(c fiber.Ctx) string {
	return c.Get(UserIDHeader)
}

// RequireProject rejects requests without a project scope header.
func RequireProject(c fiber.Ctx) error {
	if projectID(c) == "" {
		return badRequest(c, ProjectIDHeader+" header is required")
	}

	return c.Next()
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	repositoryCheck, repOk := h.runService.HealthCheck(c.Context())

	status := "unhealthy"
	message := "Matrix API is unhealthy"
	httpStatus := http.StatusInternalServerError

	if repOk {
		status = "healthy"
		message = "Matrix API is healthy"
		httpStatus = http.StatusOK
	}

	return c.Status(httpStatus).JSON(fiber.Map{
		"status":  status,
		"message": message,
		"checkers": fiber.Map{
			"repository": repositoryCheck,
		},
		"timestamp": time.Now().UTC(),
	})
}

// parsePagination reads the shared limit/offset query parameters.
func parsePagination(c fiber.Ctx) (int, int, error) {
	var limit, offset int

	if limitStr := c.Query("limit"); limitStr != "" {
		parsed, err := strconv.Atoi(limitStr)
		if err != nil {
			return 0, 0, err
		}

		limit = parsed
	}

	if offsetStr := c.Query("offset"); offsetStr != "" {
		parsed, err := strconv.Atoi(offsetStr)
		if err != nil {
			return 0, 0, err
		}

		offset = parsed
	}

	return limit, offset, nil
}
