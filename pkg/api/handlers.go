package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"go.temporal.io/sdk/client"
	"go.uber.org/zap"

	"github.com/SatelliteQE/airgun-sub001/pkg/config"
	"github.com/SatelliteQE/airgun-sub001/pkg/models"
	"github.com/SatelliteQE/airgun-sub001/pkg/navigation"
	"github.com/SatelliteQE/airgun-sub001/pkg/temporal/workflows"
)

// RunStore is the persistence the handlers need. *database.DB implements it.
type RunStore interface {
	CreateRun(ctx context.Context, run *models.NavigationRun) error
	SetTemporalIDs(ctx context.Context, id, workflowID, runID string) error
	GetRun(ctx context.Context, id string) (*models.NavigationRun, error)
	ListRuns(ctx context.Context, limit int) ([]models.NavigationRun, error)
	UpdateRunStatus(ctx context.Context, id string, status models.RunStatus, errorMsg string) error
	GetStepResults(ctx context.Context, runID string) ([]models.StepResult, error)
}

// Handlers contains API handlers
type Handlers struct {
	registry       *navigation.Registry
	db             RunStore
	temporalClient client.Client
	cfg            config.Config
	logger         *zap.SugaredLogger
	upgrader       websocket.Upgrader
	pollInterval   time.Duration
}

// NewHandlers creates new API handlers. db may be nil, in which case runs are
// only visible through Temporal.
func NewHandlers(reg *navigation.Registry, db RunStore, temporalClient client.Client, cfg config.Config, logger *zap.SugaredLogger) *Handlers {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Handlers{
		registry:       reg,
		db:             db,
		temporalClient: temporalClient,
		cfg:            cfg,
		logger:         logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		pollInterval: 500 * time.Millisecond,
	}
}

// Router wires every route under /api plus /health.
func (h *Handlers) Router() *mux.Router {
	router := mux.NewRouter()

	router.HandleFunc("/health", h.Health).Methods("GET")

	apiRouter := router.PathPrefix("/api").Subrouter()

	// Navigation graph
	apiRouter.HandleFunc("/steps", h.ListSteps).Methods("GET")

	// Runs
	apiRouter.HandleFunc("/runs", h.StartRun).Methods("POST")
	apiRouter.HandleFunc("/runs", h.ListRuns).Methods("GET")
	apiRouter.HandleFunc("/runs/{id}", h.GetRun).Methods("GET")
	apiRouter.HandleFunc("/runs/{id}/cancel", h.CancelRun).Methods("POST")

	// WebSocket for real-time updates
	apiRouter.HandleFunc("/runs/{id}/stream", h.StreamRunUpdates).Methods("GET")

	// Screenshots
	apiRouter.HandleFunc("/screenshots/{filename}", h.ServeScreenshot).Methods("GET")

	return router
}

// WorkflowID is the Temporal workflow ID used for a run.
func WorkflowID(runID string) string {
	return "navigation-" + runID
}

func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ==================== Step Handlers ====================

// ListSteps lists every registered navigation step with its chain
func (h *Handlers) ListSteps(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.registry.Steps())
}

// ==================== Run Handlers ====================

// StartRun validates the destinations and starts a navigation workflow
func (h *Handlers) StartRun(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req models.StartRunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if len(req.Destinations) == 0 {
		http.Error(w, "At least one destination is required", http.StatusBadRequest)
		return
	}
	for _, dest := range req.Destinations {
		if _, err := h.registry.Resolve(dest.Entity, dest.Step); err != nil {
			status := http.StatusUnprocessableEntity
			if errors.Is(err, navigation.ErrUnknownStep) {
				status = http.StatusNotFound
			}
			http.Error(w, err.Error(), status)
			return
		}
	}

	runID := uuid.New().String()
	headless := h.cfg.Browser.Headless
	if req.Headless != nil {
		headless = *req.Headless
	}

	run := &models.NavigationRun{
		ID:           runID,
		Status:       models.StatusPending,
		Destinations: req.Destinations,
	}
	if h.db != nil {
		if err := h.db.CreateRun(ctx, run); err != nil {
			http.Error(w, "Failed to create run: "+err.Error(), http.StatusInternalServerError)
			return
		}
	}

	input := models.NavigationRequest{
		RunID:             runID,
		Destinations:      req.Destinations,
		Headless:          headless,
		TimeoutSeconds:    req.TimeoutSeconds,
		ContinueOnFailure: req.ContinueOnFailure,
	}

	workflowOptions := client.StartWorkflowOptions{
		ID:        WorkflowID(runID),
		TaskQueue: h.cfg.Temporal.TaskQueue,
	}

	we, err := h.temporalClient.ExecuteWorkflow(ctx, workflowOptions, workflows.NavigationWorkflow, input)
	if err != nil {
		if h.db != nil {
			_ = h.db.UpdateRunStatus(ctx, runID, models.StatusFailed, err.Error())
		}
		http.Error(w, "Failed to start workflow: "+err.Error(), http.StatusInternalServerError)
		return
	}

	if h.db != nil {
		if err := h.db.SetTemporalIDs(ctx, runID, we.GetID(), we.GetRunID()); err != nil {
			h.logger.Warnw("Failed to store Temporal IDs", "run_id", runID, "error", err)
		}
	}
	h.logger.Infow("Run started", "run_id", runID, "destinations", len(req.Destinations))

	respondJSON(w, http.StatusAccepted, map[string]interface{}{
		"run_id":               runID,
		"temporal_workflow_id": we.GetID(),
		"temporal_run_id":      we.GetRunID(),
		"status":               models.StatusPending,
	})
}

// ListRuns lists the most recent runs
func (h *Handlers) ListRuns(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if h.db == nil {
		http.Error(w, "Database not available", http.StatusServiceUnavailable)
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	runs, err := h.db.ListRuns(ctx, limit)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if runs == nil {
		runs = []models.NavigationRun{}
	}

	respondJSON(w, http.StatusOK, runs)
}

// GetRun retrieves a run with its step results
func (h *Handlers) GetRun(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := mux.Vars(r)["id"]

	if h.db == nil {
		http.Error(w, "Database not available", http.StatusServiceUnavailable)
		return
	}

	run, err := h.db.GetRun(ctx, id)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if run == nil {
		http.Error(w, "Run not found", http.StatusNotFound)
		return
	}

	results, err := h.db.GetStepResults(ctx, id)
	if err != nil {
		h.logger.Warnw("Failed to load step results", "run_id", id, "error", err)
	}
	run.StepResults = results

	respondJSON(w, http.StatusOK, run)
}

// CancelRun cancels a running navigation workflow
func (h *Handlers) CancelRun(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := mux.Vars(r)["id"]

	workflowID, runID := WorkflowID(id), ""
	if h.db != nil {
		run, err := h.db.GetRun(ctx, id)
		if err != nil || run == nil {
			http.Error(w, "Run not found", http.StatusNotFound)
			return
		}
		if run.Status.Terminal() {
			http.Error(w, fmt.Sprintf("Run already %s", run.Status), http.StatusConflict)
			return
		}
		if run.TemporalWorkflowID != "" {
			workflowID, runID = run.TemporalWorkflowID, run.TemporalRunID
		}
	}

	if err := h.temporalClient.CancelWorkflow(ctx, workflowID, runID); err != nil {
		http.Error(w, "Failed to cancel workflow: "+err.Error(), http.StatusInternalServerError)
		return
	}

	if h.db != nil {
		_ = h.db.UpdateRunStatus(ctx, id, models.StatusCanceled, "Cancelled by user")
	}

	respondJSON(w, http.StatusOK, map[string]string{"status": string(models.StatusCanceled)})
}

// StreamRunUpdates streams run updates via WebSocket until the run finishes
// or the client goes away.
func (h *Handlers) StreamRunUpdates(w http.ResponseWriter, r *http.Request) {
	runID := mux.Vars(r)["id"]

	status, payload := h.progress(r.Context(), runID)
	if status == "" {
		http.Error(w, "Run not found", http.StatusNotFound)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	// A hijacked request's context outlives the client, so the read side
	// reports the disconnect.
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(h.pollInterval)
	defer ticker.Stop()

	lastStatus := models.RunStatus("")
	lastCount := -1

	for {
		// Send update if status or results changed
		if status != "" && (status != lastStatus || payload.count != lastCount) {
			msg := models.WSMessage{
				Type: "run_update",
				Payload: map[string]interface{}{
					"run_id":       runID,
					"status":       status,
					"destinations": payload.destinations,
					"step_results": payload.steps,
				},
			}
			if err := conn.WriteJSON(msg); err != nil {
				return
			}
			lastStatus, lastCount = status, payload.count

			if status.Terminal() {
				return
			}
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		status, payload = h.progress(ctx, runID)
	}
}

type progressPayload struct {
	destinations []models.DestinationResult
	steps        []models.StepResult
	count        int
}

// progress asks the workflow first and falls back to the database.
func (h *Handlers) progress(ctx context.Context, runID string) (models.RunStatus, progressPayload) {
	if h.temporalClient != nil {
		resp, err := h.temporalClient.QueryWorkflow(ctx, WorkflowID(runID), "", workflows.ProgressQuery)
		if err == nil {
			var result models.NavigationResult
			if resp.Get(&result) == nil && result.Status != "" {
				return result.Status, progressPayload{destinations: result.Destinations, count: len(result.Destinations)}
			}
		}
	}

	if h.db == nil {
		return "", progressPayload{}
	}
	run, err := h.db.GetRun(ctx, runID)
	if err != nil || run == nil {
		return "", progressPayload{}
	}
	steps, _ := h.db.GetStepResults(ctx, runID)
	return run.Status, progressPayload{steps: steps, count: len(steps)}
}

// ==================== Screenshot Handlers ====================

// ServeScreenshot serves a screenshot file
func (h *Handlers) ServeScreenshot(w http.ResponseWriter, r *http.Request) {
	filename := mux.Vars(r)["filename"]

	// Only files directly inside the screenshot directory are served
	filePath := filepath.Join(h.cfg.Browser.ScreenshotDir, filepath.Base(filename))

	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		http.Error(w, "Screenshot not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "public, max-age=3600")
	http.ServeFile(w, r, filePath)
}

// ==================== Helpers ====================

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
