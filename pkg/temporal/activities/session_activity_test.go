package activities

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/testsuite"

	"github.com/SatelliteQE/airgun-sub001/pkg/browser/browsertest"
	"github.com/SatelliteQE/airgun-sub001/pkg/config"
	"github.com/SatelliteQE/airgun-sub001/pkg/models"
	"github.com/SatelliteQE/airgun-sub001/pkg/session"
	"github.com/SatelliteQE/airgun-sub001/pkg/temporal/workflows"
)

type memStore struct {
	mu       sync.Mutex
	steps    []models.StepResult
	statuses map[string]models.RunStatus
}

func (m *memStore) RecordStep(_ context.Context, r models.StepResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.steps = append(m.steps, r)
	return nil
}

func (m *memStore) UpdateRunStatus(_ context.Context, id string, status models.RunStatus, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.statuses[id] = status
	return nil
}

func newTestActivities(t *testing.T, d *browsertest.Driver) (*Activities, *memStore) {
	var cfg config.Config
	cfg.Satellite.URL = "https://sat.example.com"
	cfg.Retry.Attempts = 3
	cfg.Browser.ScreenshotDir = t.TempDir()

	store := &memStore{statuses: make(map[string]models.RunStatus)}
	acts := NewActivities(cfg, store, nil)
	acts.Start = func(ctx context.Context, cfg config.Config, opts ...session.Option) (*session.Session, error) {
		return session.Start(ctx, cfg, append(opts, session.WithDriver(d))...)
	}
	return acts, store
}

func TestSessionActivities(t *testing.T) {
	var ts testsuite.WorkflowTestSuite
	env := ts.NewTestActivityEnvironment()
	d := browsertest.New()
	acts, store := newTestActivities(t, d)
	env.RegisterActivity(acts)

	val, err := env.ExecuteActivity(acts.InitializeSessionActivity, workflows.SessionInput{RunID: "run-1", Headless: true})
	require.NoError(t, err)
	var info workflows.SessionInfo
	require.NoError(t, val.Get(&info))
	require.NotEmpty(t, info.SessionID)
	require.Equal(t, 1, acts.Pool.Len())
	require.Equal(t, models.StatusRunning, store.statuses["run-1"])

	val, err = env.ExecuteActivity(acts.NavigateActivity, workflows.NavigateInput{
		SessionID:   info.SessionID,
		RunID:       "run-1",
		Destination: models.Destination{Entity: "Host", Step: "New"},
	})
	require.NoError(t, err)
	var res models.DestinationResult
	require.NoError(t, val.Get(&res))
	require.Equal(t, models.StatusSuccess, res.Status)
	require.Equal(t, "HostCreateView", res.View)
	require.NotEmpty(t, store.steps)
	require.Equal(t, "run-1", store.steps[0].RunID)

	val, err = env.ExecuteActivity(acts.TakeScreenshotActivity, workflows.ScreenshotInput{
		SessionID: info.SessionID,
		Filename:  "../escape.png",
	})
	require.NoError(t, err)
	var path string
	require.NoError(t, val.Get(&path))
	_, err = os.Stat(path)
	require.NoError(t, err)
	require.Equal(t, filepath.Join(acts.Config.Browser.ScreenshotDir, "escape.png"), path)

	_, err = env.ExecuteActivity(acts.FinishRunActivity, workflows.FinishRunInput{RunID: "run-1", Status: models.StatusSuccess})
	require.NoError(t, err)
	require.Equal(t, models.StatusSuccess, store.statuses["run-1"])

	_, err = env.ExecuteActivity(acts.CloseSessionActivity, info.SessionID)
	require.NoError(t, err)
	require.Zero(t, acts.Pool.Len())
	require.True(t, d.Closed())
}

func TestNavigateActivityErrors(t *testing.T) {
	tests := []struct {
		name     string
		dest     models.Destination
		wantType string
	}{
		{"unknown step", models.Destination{Entity: "Host", Step: "Teleport"}, workflows.UnknownStepError},
		{"missing entity name", models.Destination{Entity: "Host", Step: "Edit"}, workflows.ConfigurationError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var ts testsuite.WorkflowTestSuite
			env := ts.NewTestActivityEnvironment()
			acts, _ := newTestActivities(t, browsertest.New())
			env.RegisterActivity(acts)

			val, err := env.ExecuteActivity(acts.InitializeSessionActivity, workflows.SessionInput{RunID: "run-2"})
			require.NoError(t, err)
			var info workflows.SessionInfo
			require.NoError(t, val.Get(&info))

			_, err = env.ExecuteActivity(acts.NavigateActivity, workflows.NavigateInput{SessionID: info.SessionID, Destination: tt.dest})
			var appErr *temporal.ApplicationError
			require.True(t, errors.As(err, &appErr), "got %v", err)
			require.Equal(t, tt.wantType, appErr.Type())
			require.True(t, appErr.NonRetryable())
		})
	}
}

func TestNavigateActivityUnknownSession(t *testing.T) {
	var ts testsuite.WorkflowTestSuite
	env := ts.NewTestActivityEnvironment()
	acts, _ := newTestActivities(t, browsertest.New())
	env.RegisterActivity(acts)

	_, err := env.ExecuteActivity(acts.NavigateActivity, workflows.NavigateInput{SessionID: "nope"})
	var appErr *temporal.ApplicationError
	require.True(t, errors.As(err, &appErr))
	require.Equal(t, workflows.SessionNotFoundError, appErr.Type())
}

func TestInitializeSessionRejectsMissingURL(t *testing.T) {
	var ts testsuite.WorkflowTestSuite
	env := ts.NewTestActivityEnvironment()
	acts, _ := newTestActivities(t, browsertest.New())
	acts.Config.Satellite.URL = ""
	env.RegisterActivity(acts)

	_, err := env.ExecuteActivity(acts.InitializeSessionActivity, workflows.SessionInput{RunID: "run-3"})
	var appErr *temporal.ApplicationError
	require.True(t, errors.As(err, &appErr))
	require.Equal(t, workflows.ConfigurationError, appErr.Type())
}

type heartbeats struct {
	mu      sync.Mutex
	details []string
}

func (h *heartbeats) record(_ context.Context, details ...interface{}) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, d := range details {
		if s, ok := d.(string); ok {
			h.details = append(h.details, s)
		}
	}
}

func (h *heartbeats) all() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.details...)
}

func TestNavigateActivityHeartbeatsPerStep(t *testing.T) {
	var ts testsuite.WorkflowTestSuite
	env := ts.NewTestActivityEnvironment()
	acts, _ := newTestActivities(t, browsertest.New())
	hb := &heartbeats{}
	acts.Heartbeat = hb.record
	acts.HeartbeatInterval = time.Hour
	env.RegisterActivity(acts)

	val, err := env.ExecuteActivity(acts.InitializeSessionActivity, workflows.SessionInput{RunID: "run-hb"})
	require.NoError(t, err)
	var info workflows.SessionInfo
	require.NoError(t, val.Get(&info))

	_, err = env.ExecuteActivity(acts.NavigateActivity, workflows.NavigateInput{
		SessionID:   info.SessionID,
		Destination: models.Destination{Entity: "Host", Step: "New"},
	})
	require.NoError(t, err)

	got := hb.all()
	require.Contains(t, got, "Host.All skipped")
	require.Contains(t, got, "Host.New success")
	require.Contains(t, got, "Reached Host.New")
}

func TestInitializeSessionHeartbeatsDuringLogin(t *testing.T) {
	var ts testsuite.WorkflowTestSuite
	env := ts.NewTestActivityEnvironment()
	acts, _ := newTestActivities(t, browsertest.New())
	hb := &heartbeats{}
	acts.Heartbeat = hb.record
	acts.HeartbeatInterval = 5 * time.Millisecond

	start := acts.Start
	acts.Start = func(ctx context.Context, cfg config.Config, opts ...session.Option) (*session.Session, error) {
		time.Sleep(50 * time.Millisecond)
		return start(ctx, cfg, opts...)
	}
	env.RegisterActivity(acts)

	_, err := env.ExecuteActivity(acts.InitializeSessionActivity, workflows.SessionInput{RunID: "run-slow"})
	require.NoError(t, err)
	require.Contains(t, hb.all(), "logging in")
}

func TestNavigateActivityRejectsBusySession(t *testing.T) {
	var ts testsuite.WorkflowTestSuite
	env := ts.NewTestActivityEnvironment()
	acts, _ := newTestActivities(t, browsertest.New())
	env.RegisterActivity(acts)

	val, err := env.ExecuteActivity(acts.InitializeSessionActivity, workflows.SessionInput{RunID: "run-busy"})
	require.NoError(t, err)
	var info workflows.SessionInfo
	require.NoError(t, val.Get(&info))

	// Another activity still drives the tab.
	_, release, err := acts.Pool.Acquire(info.SessionID)
	require.NoError(t, err)

	input := workflows.NavigateInput{SessionID: info.SessionID, Destination: models.Destination{Entity: "Host", Step: "All"}}
	_, err = env.ExecuteActivity(acts.NavigateActivity, input)
	var appErr *temporal.ApplicationError
	require.True(t, errors.As(err, &appErr), "got %v", err)
	require.Equal(t, workflows.SessionBusyError, appErr.Type())
	require.True(t, appErr.NonRetryable())

	_, err = env.ExecuteActivity(acts.TakeScreenshotActivity, workflows.ScreenshotInput{SessionID: info.SessionID, Filename: "busy.png"})
	require.True(t, errors.As(err, &appErr), "got %v", err)
	require.Equal(t, workflows.SessionBusyError, appErr.Type())

	release()
	_, err = env.ExecuteActivity(acts.NavigateActivity, input)
	require.NoError(t, err)
}

func TestSessionPoolAcquire(t *testing.T) {
	acts, _ := newTestActivities(t, browsertest.New())
	s, err := acts.Start(context.Background(), acts.Config)
	require.NoError(t, err)

	p := NewSessionPool()
	p.Put(s)

	got, release, err := p.Acquire(s.ID)
	require.NoError(t, err)
	require.Same(t, s, got)

	_, _, err = p.Acquire(s.ID)
	require.ErrorIs(t, err, ErrSessionBusy)

	release()
	_, release, err = p.Acquire(s.ID)
	require.NoError(t, err)
	release()

	_, _, err = p.Acquire("missing")
	require.ErrorIs(t, err, ErrSessionNotFound)
}
