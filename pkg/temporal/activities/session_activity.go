package activities

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/temporal"
	"go.uber.org/zap"

	"github.com/SatelliteQE/airgun-sub001/pkg/config"
	"github.com/SatelliteQE/airgun-sub001/pkg/entities"
	"github.com/SatelliteQE/airgun-sub001/pkg/models"
	"github.com/SatelliteQE/airgun-sub001/pkg/navigation"
	"github.com/SatelliteQE/airgun-sub001/pkg/session"
	"github.com/SatelliteQE/airgun-sub001/pkg/temporal/workflows"
)

var (
	ErrSessionNotFound = errors.New("browser session not found")
	ErrSessionBusy     = errors.New("browser session is in use")
)

// SessionPool holds the sessions opened by InitializeSessionActivity until
// CloseSessionActivity releases them. Each session belongs to one run and is
// driven by at most one activity at a time.
type SessionPool struct {
	sessions map[string]*pooledSession
	mu       sync.RWMutex
}

type pooledSession struct {
	s    *session.Session
	busy bool
}

func NewSessionPool() *SessionPool {
	return &SessionPool{sessions: make(map[string]*pooledSession)}
}

func (p *SessionPool) Put(s *session.Session) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sessions[s.ID] = &pooledSession{s: s}
}

func (p *SessionPool) Get(id string) (*session.Session, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	e, ok := p.sessions[id]
	if !ok {
		return nil, false
	}
	return e.s, true
}

// Acquire hands out the session for exclusive use until release is called.
func (p *SessionPool) Acquire(id string) (s *session.Session, release func(), err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	e, ok := p.sessions[id]
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	if e.busy {
		return nil, nil, fmt.Errorf("%w: %s", ErrSessionBusy, id)
	}
	e.busy = true
	return e.s, func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		e.busy = false
	}, nil
}

// Remove takes the session out of the pool and returns it.
func (p *SessionPool) Remove(id string) (*session.Session, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	e, ok := p.sessions[id]
	delete(p.sessions, id)
	if !ok {
		return nil, false
	}
	return e.s, true
}

func (p *SessionPool) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.sessions)
}

// RunStore persists run progress. *database.DB implements it.
type RunStore interface {
	navigation.Recorder
	UpdateRunStatus(ctx context.Context, id string, status models.RunStatus, errorMsg string) error
}

// StartFunc opens a logged-in session.
type StartFunc func(ctx context.Context, cfg config.Config, opts ...session.Option) (*session.Session, error)

// Activities holds activity implementations
type Activities struct {
	Config config.Config
	// Store is optional; without it runs are not persisted.
	Store  RunStore
	Logger *zap.SugaredLogger
	Pool   *SessionPool
	Start  StartFunc
	// HeartbeatInterval is how often browser activities heartbeat while a
	// login or navigation step is still running.
	HeartbeatInterval time.Duration
	// Heartbeat defaults to activity.RecordHeartbeat.
	Heartbeat func(ctx context.Context, details ...interface{})
}

// DefaultHeartbeatInterval keeps several heartbeats inside workflows.HeartbeatTimeout.
const DefaultHeartbeatInterval = 5 * time.Second

// NewActivities creates new activities
func NewActivities(cfg config.Config, store RunStore, logger *zap.SugaredLogger) *Activities {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Activities{
		Config: cfg,
		Store:  store,
		Logger: logger,
		Pool:   NewSessionPool(),
		Start:  session.Start,

		HeartbeatInterval: DefaultHeartbeatInterval,
		Heartbeat:         activity.RecordHeartbeat,
	}
}

func (a *Activities) heartbeat(ctx context.Context, details ...interface{}) {
	if a.Heartbeat != nil {
		a.Heartbeat(ctx, details...)
		return
	}
	activity.RecordHeartbeat(ctx, details...)
}

// keepAlive heartbeats every interval with the latest progress until stop is
// called.
func (a *Activities) keepAlive(ctx context.Context, progress func() string) (stop func()) {
	interval := a.HeartbeatInterval
	if interval <= 0 {
		interval = DefaultHeartbeatInterval
	}

	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
				a.heartbeat(ctx, progress())
			}
		}
	}()
	return func() {
		close(done)
		wg.Wait()
	}
}

// heartbeatRecorder heartbeats once per executed step before handing the
// result on to the store.
type heartbeatRecorder struct {
	acts *Activities
	next navigation.Recorder
}

func (r heartbeatRecorder) RecordStep(ctx context.Context, result models.StepResult) error {
	r.acts.heartbeat(ctx, fmt.Sprintf("%s.%s %s", result.Entity, result.Step, result.Status))
	if r.next == nil {
		return nil
	}
	return r.next.RecordStep(ctx, result)
}

// InitializeSessionActivity launches a browser and logs in.
func (a *Activities) InitializeSessionActivity(ctx context.Context, input workflows.SessionInput) (workflows.SessionInfo, error) {
	logger := activity.GetLogger(ctx)
	logger.Info("Initializing session", "runID", input.RunID, "headless", input.Headless)

	cfg := a.Config
	cfg.Browser.Headless = input.Headless

	rec := heartbeatRecorder{acts: a}
	if a.Store != nil {
		rec.next = a.Store
	}
	opts := []session.Option{
		session.WithLogger(a.Logger.With("run_id", input.RunID)),
		session.WithRecorder(rec, input.RunID),
	}
	if a.Store != nil {
		if err := a.Store.UpdateRunStatus(ctx, input.RunID, models.StatusRunning, ""); err != nil {
			logger.Warn("Failed to mark run as running", "runID", input.RunID, "error", err)
		}
	}

	stop := a.keepAlive(ctx, func() string { return "logging in" })
	s, err := a.Start(ctx, cfg, opts...)
	stop()
	if err != nil {
		if errors.Is(err, config.ErrMissingSatellite) {
			return workflows.SessionInfo{}, temporal.NewNonRetryableApplicationError(err.Error(), workflows.ConfigurationError, err)
		}
		return workflows.SessionInfo{}, fmt.Errorf("failed to start session: %w", err)
	}
	if ctx.Err() != nil {
		// The attempt was abandoned while logging in; nobody will close this browser.
		_ = s.Close()
		return workflows.SessionInfo{}, ctx.Err()
	}
	a.Pool.Put(s)

	pageURL, _ := s.URL(ctx)
	logger.Info("Session created", "sessionID", s.ID)
	return workflows.SessionInfo{SessionID: s.ID, PageURL: pageURL}, nil
}

// NavigateActivity takes a session to one destination.
func (a *Activities) NavigateActivity(ctx context.Context, input workflows.NavigateInput) (models.DestinationResult, error) {
	logger := activity.GetLogger(ctx)
	dest := input.Destination
	logger.Info("Navigating", "entity", dest.Entity, "step", dest.Step, "sessionID", input.SessionID)

	result := models.DestinationResult{
		Entity: dest.Entity,
		Step:   dest.Step,
		Status: models.StatusRunning,
	}
	startTime := time.Now()

	s, release, err := a.Pool.Acquire(input.SessionID)
	if err != nil {
		return result, poolError(err)
	}
	defer release()

	stop := a.keepAlive(ctx, func() string { return "navigating to " + dest.Ref().String() })
	v, err := s.Navigate(ctx, dest.Entity, dest.Step, navigation.Params(dest.Params))
	stop()
	result.Duration = time.Since(startTime).Milliseconds()
	if err != nil {
		result.Status = models.StatusFailed
		result.ErrorMessage = err.Error()
		return result, classify(err)
	}

	result.Status = models.StatusSuccess
	result.View = v.Name()
	result.URL, _ = s.URL(ctx)

	a.heartbeat(ctx, fmt.Sprintf("Reached %s", dest.Ref()))
	return result, nil
}

func poolError(err error) error {
	if errors.Is(err, ErrSessionBusy) {
		return temporal.NewNonRetryableApplicationError(err.Error(), workflows.SessionBusyError, err)
	}
	return temporal.NewNonRetryableApplicationError(err.Error(), workflows.SessionNotFoundError, err)
}

// classify maps navigation failures onto non-retryable application errors.
func classify(err error) error {
	switch {
	case errors.Is(err, navigation.ErrUnknownStep):
		return temporal.NewNonRetryableApplicationError(err.Error(), workflows.UnknownStepError, err)
	case errors.Is(err, navigation.ErrCyclicPrerequisite),
		errors.Is(err, navigation.ErrViewType),
		errors.Is(err, entities.ErrMissingParam):
		return temporal.NewNonRetryableApplicationError(err.Error(), workflows.ConfigurationError, err)
	default:
		return temporal.NewNonRetryableApplicationError(err.Error(), workflows.NavigationError, err)
	}
}

// TakeScreenshotActivity takes a screenshot
func (a *Activities) TakeScreenshotActivity(ctx context.Context, input workflows.ScreenshotInput) (string, error) {
	logger := activity.GetLogger(ctx)
	logger.Info("Taking screenshot", "sessionID", input.SessionID)

	s, release, err := a.Pool.Acquire(input.SessionID)
	if err != nil {
		return "", poolError(err)
	}
	defer release()

	dir := a.Config.Browser.ScreenshotDir
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create screenshot dir: %w", err)
	}

	data, err := s.Screenshot(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to take screenshot: %w", err)
	}

	screenshotPath := filepath.Join(dir, filepath.Base(input.Filename))
	if err := os.WriteFile(screenshotPath, data, 0644); err != nil {
		return "", fmt.Errorf("failed to save screenshot: %w", err)
	}

	return screenshotPath, nil
}

// FinishRunActivity records the final status of a run.
func (a *Activities) FinishRunActivity(ctx context.Context, input workflows.FinishRunInput) error {
	logger := activity.GetLogger(ctx)
	logger.Info("Finishing run", "runID", input.RunID, "status", input.Status)

	if a.Store == nil {
		return nil
	}
	return a.Store.UpdateRunStatus(ctx, input.RunID, input.Status, input.ErrorMessage)
}

// CloseSessionActivity closes a browser session
func (a *Activities) CloseSessionActivity(ctx context.Context, sessionID string) error {
	logger := activity.GetLogger(ctx)
	logger.Info("Closing browser session", "sessionID", sessionID)

	s, ok := a.Pool.Remove(sessionID)
	if !ok {
		return nil // Already closed
	}
	return s.Close()
}
