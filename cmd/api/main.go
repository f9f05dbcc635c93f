package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/cors"
	"go.temporal.io/sdk/client"

	"github.com/SatelliteQE/airgun-sub001/pkg/api"
	"github.com/SatelliteQE/airgun-sub001/pkg/config"
	"github.com/SatelliteQE/airgun-sub001/pkg/database"
	"github.com/SatelliteQE/airgun-sub001/pkg/entities"
	"github.com/SatelliteQE/airgun-sub001/pkg/logging"
	"github.com/SatelliteQE/airgun-sub001/pkg/navigation"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	logger.Info("Starting AirGun API Server")

	// Initialize database
	var store api.RunStore
	db, err := database.New(cfg.Database.DSN)
	if err != nil {
		logger.Warnw("Failed to connect to database, running without persistence", "error", err)
	} else {
		defer db.Close()
		if err := db.Migrate(context.Background()); err != nil {
			logger.Fatalw("Failed to migrate database", "error", err)
		}
		store = db
	}

	// Initialize Temporal client
	temporalClient, err := client.Dial(client.Options{
		HostPort: cfg.Temporal.HostPort,
	})
	if err != nil {
		logger.Fatalw("Failed to create Temporal client", "host", cfg.Temporal.HostPort, "error", err)
	}
	defer temporalClient.Close()

	// The registry only validates and lists steps here; the worker owns browsers.
	registry := navigation.NewRegistry()
	if err := entities.Register(registry); err != nil {
		logger.Fatalw("Failed to register navigation steps", "error", err)
	}

	handlers := api.NewHandlers(registry, store, temporalClient, cfg, logger)

	// Setup CORS
	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	})

	server := &http.Server{
		Addr:         ":" + cfg.API.Port,
		Handler:      c.Handler(handlers.Router()),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Infow("API server listening", "port", cfg.API.Port, "steps", registry.Len())
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalw("Server failed", "error", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Fatalw("Server forced to shutdown", "error", err)
	}

	logger.Info("Server stopped")
}
