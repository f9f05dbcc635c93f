package main

import (
	"context"
	"log"

	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"

	"github.com/SatelliteQE/airgun-sub001/pkg/config"
	"github.com/SatelliteQE/airgun-sub001/pkg/database"
	"github.com/SatelliteQE/airgun-sub001/pkg/logging"
	"github.com/SatelliteQE/airgun-sub001/pkg/temporal/activities"
	"github.com/SatelliteQE/airgun-sub001/pkg/temporal/workflows"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	// Create Temporal client
	c, err := client.Dial(client.Options{
		HostPort: cfg.Temporal.HostPort,
	})
	if err != nil {
		logger.Fatalw("Failed to create Temporal client", "host", cfg.Temporal.HostPort, "error", err)
	}
	defer c.Close()

	// Step results are persisted when the database is reachable
	var store activities.RunStore
	db, err := database.New(cfg.Database.DSN)
	if err != nil {
		logger.Warnw("Failed to connect to database, step results will not be stored", "error", err)
	} else {
		defer db.Close()
		if err := db.Migrate(context.Background()); err != nil {
			logger.Fatalw("Failed to migrate database", "error", err)
		}
		store = db
	}

	acts := activities.NewActivities(cfg, store, logger)

	// Each session owns a browser, so activity concurrency bounds open browsers
	w := worker.New(c, cfg.Temporal.TaskQueue, worker.Options{
		MaxConcurrentActivityExecutionSize:     5,
		MaxConcurrentWorkflowTaskExecutionSize: 10,
	})

	w.RegisterWorkflow(workflows.NavigationWorkflow)

	w.RegisterActivity(acts.InitializeSessionActivity)
	w.RegisterActivity(acts.NavigateActivity)
	w.RegisterActivity(acts.TakeScreenshotActivity)
	w.RegisterActivity(acts.FinishRunActivity)
	w.RegisterActivity(acts.CloseSessionActivity)

	logger.Infow("Starting Temporal worker",
		"task_queue", cfg.Temporal.TaskQueue,
		"temporal_host", cfg.Temporal.HostPort,
		"satellite", cfg.Satellite.URL,
	)

	if err := w.Run(worker.InterruptCh()); err != nil {
		logger.Fatalw("Worker failed", "error", err)
	}
}
