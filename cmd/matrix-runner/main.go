package main

import (
	"context"
	"os"

	"github.com/google/uuid"
	cli "github.com/urfave/cli/v3"

	"github.com/agentmatrix/matrix/pkg/bridge"
	"github.com/agentmatrix/matrix/pkg/cmd"
	"github.com/agentmatrix/matrix/pkg/log"
)

func main() {
	command := &cli.Command{
		Name:                  "matrix-runner",
		EnableShellCompletion: true,
		Usage:                 "Execute overnight batch runs",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "runner-id",
				Aliases: []string{"id"},
				Usage:   "Custom runner ID (auto-generated if not provided)",
				Value:   "",
				Sources: cli.EnvVars("RUNNER_ID"),
			},
			&cli.StringFlag{
				Name:     "database-url",
				Usage:    "Database connection URL for persistence",
				Required: true,
				Sources:  cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:    "event-bus",
				Usage:   "Event bus provider (kafka, gochannel)",
				Value:   "gochannel",
				Sources: cli.EnvVars("EVENT_BUS_TYPE"),
			},
			&cli.StringFlag{
				Name:     "bridge-url",
				Usage:    "Base URL of the workflow execution bridge",
				Required: true,
				Sources:  cli.EnvVars("BRIDGE_URL"),
			},
			&cli.StringFlag{
				Name:    "redis-url",
				Usage:   "Redis URL for cross-process run leases (optional)",
				Sources: cli.EnvVars("REDIS_URL"),
			},
			&cli.StringFlag{
				Name:    "poll-schedule",
				Usage:   "Cron schedule for polling due scheduled runs",
				Value:   "@every 30s",
				Sources: cli.EnvVars("POLL_SCHEDULE"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"))

			runnerID := command.String("runner-id")
			if runnerID == "" {
				runnerID = "runner-" + uuid.New().String()[:8]
			}

			logger := log.WithModule("matrix-runner").With("runner_id", runnerID)

			logger.InfoContext(ctx, "Initializing Matrix Runner")

			persistence, err := cmd.NewPersistence(ctx, logger, command.String("database-url"))
			if err != nil {
				return err
			}

			defer func() {
				if err := persistence.Close(ctx); err != nil {
					logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
				}
			}()

			eventBus, err := cmd.NewEventBus(command.String("event-bus"), "matrix-runner", logger)
			if err != nil {
				return err
			}

			defer func() {
				if err := eventBus.Close(); err != nil {
					logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
				}
			}()

			leases, err := cmd.NewLeaseManager(command.String("redis-url"))
			if err != nil {
				return err
			}

			executor := bridge.NewExecutor(command.String("bridge-url"))

			runner := NewRunner(
				runnerID,
				persistence,
				eventBus,
				executor,
				leases,
				command.String("poll-schedule"),
				logger,
			)

			if err := runner.Start(ctx); err != nil {
				logger.ErrorContext(ctx, "Failed to start runner", "error", err)

				return err
			}

			return nil
		},
	}

	err := command.Run(context.Background(), os.Args)
	if err != nil {
		panic(err)
	}
}
