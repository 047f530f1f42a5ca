// Package main provides the Matrix runner daemon, which executes
// overnight batch runs in the background.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/agentmatrix/matrix/pkg/eventbus"
	"github.com/agentmatrix/matrix/pkg/events"
	"github.com/agentmatrix/matrix/pkg/lease"
	"github.com/agentmatrix/matrix/pkg/otelhelper"
	"github.com/agentmatrix/matrix/pkg/persistence"
	"github.com/agentmatrix/matrix/pkg/protocol"
	"github.com/agentmatrix/matrix/pkg/services"
)

// dueRunBatchSize bounds how many due runs one poll tick picks up.
const dueRunBatchSize = 10

// Runner executes overnight runs. It reacts to RunStartRequested events
// and polls for due scheduled runs on a cron schedule; either path feeds
// the same batch loop in the run service.
type Runner struct {
	id           string
	logger       *slog.Logger
	persistence  persistence.Persistence
	eventBus     eventbus.EventBus
	runService   *services.OvernightRuns
	pollSchedule string
	tracer       trace.Tracer
}

func NewRunner(
	id string,
	persistence persistence.Persistence,
	eventBus eventbus.EventBus,
	executor protocol.WorkflowExecutor,
	leases lease.Manager,
	pollSchedule string,
	logger *slog.Logger,
) *Runner {
	return &Runner{
		id:           id,
		logger:       logger,
		persistence:  persistence,
		eventBus:     eventBus,
		runService:   services.NewOvernightRuns(persistence, executor, eventBus, leases, logger),
		pollSchedule: pollSchedule,
	}
}

func (r *Runner) Start(ctx context.Context) error {
	r.logger.InfoContext(ctx, "Starting runner", "poll_schedule", r.pollSchedule)

	tracer, err := otelhelper.NewTracer(ctx, "matrix-runner")
	if err != nil {
		return err
	}

	r.tracer = tracer

	err = r.eventBus.Subscribe(ctx, r.handleEvent)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to subscribe to event bus", "error", err)

		return err
	}

	scheduler := cron.New()

	_, err = scheduler.AddFunc(r.pollSchedule, func() {
		r.pollDueRuns(ctx)
	})
	if err != nil {
		return err
	}

	scheduler.Start()
	defer scheduler.Stop()

	r.logger.InfoContext(ctx, "Runner started successfully")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	<-sigChan
	r.logger.InfoContext(ctx, "Shutting down runner...")

	return nil
}

// handleEvent reacts to start requests from the API; all other event
// types on the topic are ignored.
func (r *Runner) handleEvent(ctx context.Context, event any) error {
	startRequested, ok := event.(*events.RunStartRequested)
	if !ok {
		return nil
	}

	logger := r.logger.With(
		"run_id", startRequested.RunID,
		"project_id", startRequested.ProjectID,
		"event_id", startRequested.ID,
	)
	logger.InfoContext(ctx, "Processing run start request")

	go r.executeRun(ctx, startRequested.ProjectID, startRequested.RunID)

	return nil
}

// pollDueRuns picks up scheduled runs whose scheduled_for has passed.
// The lease inside Execute keeps multiple runners from doubling up.
func (r *Runner) pollDueRuns(ctx context.Context) {
	due, err := r.persistence.OvernightRunRepository().ListDue(ctx, time.Now().UTC(), dueRunBatchSize)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to list due runs", "error", err)

		return
	}

	for _, run := range due {
		r.logger.InfoContext(ctx, "Picking up due run",
			"run_id", run.ID, "project_id", run.ProjectID, "scheduled_for", run.ScheduledFor)

		go r.executeRun(ctx, run.ProjectID, run.ID)
	}
}

func (r *Runner) executeRun(ctx context.Context, projectID, runID string) {
	ctx, span := otelhelper.StartSpan(ctx, r.tracer, "run.execute",
		attribute.String(otelhelper.ProjectIDKey, projectID),
		attribute.String(otelhelper.RunIDKey, runID),
		attribute.String(otelhelper.ServiceIDKey, r.id),
	)
	defer span.End()

	run, err := r.runService.Execute(ctx, projectID, runID)
	if err != nil {
		otelhelper.SetError(span, err)
		r.logger.ErrorContext(ctx, "Batch execution failed", "run_id", runID, "error", err)

		return
	}

	span.SetAttributes(attribute.String(otelhelper.RunStatusKey, string(run.Status)))
	r.logger.InfoContext(ctx, "Batch execution returned", "run_id", runID, "status", run.Status)
}
