// Package main provides the Matrix API server implementation.
package main

import (
	"log/slog"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/gofiber/fiber/v3/middleware/logger"

	"github.com/agentmatrix/matrix/pkg/eventbus"
	"github.com/agentmatrix/matrix/pkg/lease"
	"github.com/agentmatrix/matrix/pkg/persistence"
	"github.com/agentmatrix/matrix/pkg/services"
	"github.com/agentmatrix/matrix/pkg/web"
)

type API struct {
	logger      *slog.Logger
	persistence persistence.Persistence
	eventBus    eventbus.EventBus
	leases      lease.Manager
	validate    *validator.Validate
	handlers    *web.APIHandlers
}

func NewAPI(
	logger *slog.Logger,
	persistence persistence.Persistence,
	eventBus eventbus.EventBus,
	leases lease.Manager,
) (*API, error) {
	validate := validator.New(validator.WithRequiredStructEnabled())

	// The API never executes batches itself; Execute lives in the runner.
	runService := services.NewOvernightRuns(persistence, nil, eventBus, leases, logger)
	executionService := services.NewExecutions(persistence, logger)
	gateService := services.NewGates(persistence, eventBus, logger)
	interventionService := services.NewInterventions(persistence, eventBus, logger)

	workflowService, err := services.NewWorkflows(persistence, executionService, logger)
	if err != nil {
		return nil, err
	}

	handlers := web.NewAPIHandlers(
		runService,
		workflowService,
		executionService,
		gateService,
		interventionService,
		validate,
	)

	return &API{
		logger:      logger,
		persistence: persistence,
		eventBus:    eventBus,
		leases:      leases,
		validate:    validate,
		handlers:    handlers,
	}, nil
}

func (a *API) App() *fiber.App {
	app := fiber.New()
	app.Use(cors.New())
	app.Use(logger.New(logger.Config{
		DisableColors: true,
	}))

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker())

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("Matrix API")
	})

	app.Get("/health", a.handlers.HealthCheck)

	w := app.Group("/workflows", web.RequireProject)
	w.Get("/", a.handlers.GetWorkflows)
	w.Post("/", a.handlers.CreateWorkflow)
	w.Get("/:id", a.handlers.GetWorkflow)
	w.Patch("/:id", a.handlers.UpdateWorkflow)
	w.Delete("/:id", a.handlers.DeleteWorkflow)
	w.Post("/:id/run", a.handlers.RunWorkflow)

	e := app.Group("/executions", web.RequireProject)
	e.Get("/", a.handlers.GetExecutions)
	e.Get("/:id", a.handlers.GetExecution)
	e.Post("/:id/pause", a.handlers.PauseExecution)
	e.Post("/:id/resume", a.handlers.ResumeExecution)
	e.Post("/:id/cancel", a.handlers.CancelExecution)

	g := app.Group("/gates", web.RequireProject)
	g.Get("/", a.handlers.GetGates)
	g.Post("/", a.handlers.CreateGate)
	g.Get("/:id", a.handlers.GetGate)
	g.Post("/:id/approve", a.handlers.ApproveGate)
	g.Post("/:id/reject", a.handlers.RejectGate)

	i := app.Group("/interventions", web.RequireProject)
	i.Get("/", a.handlers.GetInterventions)
	i.Post("/", a.handlers.CreateIntervention)
	i.Get("/:id", a.handlers.GetIntervention)

	r := app.Group("/runs", web.RequireProject)
	r.Get("/", a.handlers.GetRuns)
	r.Post("/", a.handlers.CreateRun)
	r.Get("/:id", a.handlers.GetRun)
	r.Delete("/:id", a.handlers.DeleteRun)
	r.Get("/:id/progress", a.handlers.GetRunProgress)
	r.Post("/:id/start", a.handlers.StartRun)
	r.Post("/:id/pause", a.handlers.PauseRun)
	r.Post("/:id/resume", a.handlers.ResumeRun)
	r.Post("/:id/cancel", a.handlers.CancelRun)

	return app
}

func (a *API) Start(port int) error {
	app := a.App()

	return app.Listen(":" + strconv.Itoa(port))
}
