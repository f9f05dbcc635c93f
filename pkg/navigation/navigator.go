package navigation

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/SatelliteQE/airgun-sub001/pkg/browser"
	"github.com/SatelliteQE/airgun-sub001/pkg/models"
	"github.com/SatelliteQE/airgun-sub001/pkg/retry"
	"github.com/SatelliteQE/airgun-sub001/pkg/view"
)

// Recorder receives the outcome of every executed step.
type Recorder interface {
	RecordStep(ctx context.Context, result models.StepResult) error
}

// Navigator walks registered steps on one browser tab. Like the driver it
// wraps, it is meant for sequential use by a single test.
type Navigator struct {
	registry      *Registry
	driver        browser.Driver
	menu          *Menu
	policy        retry.Policy
	refresh       bool
	logger        *zap.SugaredLogger
	recorder      Recorder
	runID         string
	screenshotDir string
	seq           int
}

// Option configures a Navigator.
type Option func(*Navigator)

func WithLogger(l *zap.SugaredLogger) Option {
	return func(n *Navigator) { n.logger = l }
}

// WithPolicy replaces the retry policy. A nil classifier defaults to
// browser.IsTransient and a nil hook to the page refresh.
func WithPolicy(p retry.Policy) Option {
	return func(n *Navigator) { n.policy = p }
}

// WithoutRefresh retries failed steps without reloading the page first.
func WithoutRefresh() Option {
	return func(n *Navigator) { n.refresh = false }
}

func WithMenu(m *Menu) Option {
	return func(n *Navigator) { n.menu = m }
}

// WithRecorder hands every step result, tagged with runID, to r.
func WithRecorder(r Recorder, runID string) Option {
	return func(n *Navigator) {
		n.recorder = r
		n.runID = runID
	}
}

// WithScreenshotDir stores a screenshot in dir whenever a step finally fails.
func WithScreenshotDir(dir string) Option {
	return func(n *Navigator) { n.screenshotDir = dir }
}

// New returns a navigator over reg driving d.
func New(reg *Registry, d browser.Driver, opts ...Option) *Navigator {
	n := &Navigator{
		registry: reg,
		driver:   d,
		menu:     NewMenu(""),
		policy:   retry.DefaultPolicy(),
		refresh:  true,
		logger:   zap.NewNop().Sugar(),
	}
	for _, opt := range opts {
		opt(n)
	}
	if n.policy.Retryable == nil {
		n.policy.Retryable = browser.IsTransient
	}
	if n.policy.BeforeRetry == nil {
		n.policy.BeforeRetry = n.beforeRetry
	}
	return n
}

func (n *Navigator) Registry() *Registry    { return n.registry }
func (n *Navigator) Driver() browser.Driver { return n.driver }

// Navigate takes the browser to (entity, step) and returns the step's view.
//
// The whole prerequisite chain is resolved before the browser is touched, so
// an unknown step or a cyclic registration fails without side effects. Steps
// then run root first; each action is retried under the navigator's policy
// and a failure is returned exactly as the action produced it, even when the
// refresh between attempts failed too.
func (n *Navigator) Navigate(ctx context.Context, entity, step string, params Params) (view.View, error) {
	chain, err := n.registry.Resolve(entity, step)
	if err != nil {
		return nil, err
	}

	logger := n.logger.With("entity", entity, "step", step)
	sc := StepContext{Driver: n.driver, Menu: n.menu, Params: params, Logger: logger}
	logger.Infow("Navigating", "chain", len(chain), "params", params)

	for i := n.firstPending(ctx, chain, sc); i < len(chain); i++ {
		if err := n.execute(ctx, chain[i], sc); err != nil {
			return nil, err
		}
	}
	return chain[len(chain)-1].View(n.driver), nil
}

// NavigateAs is Navigate for callers that know the concrete view type.
func NavigateAs[T view.View](ctx context.Context, n *Navigator, entity, step string, params Params) (T, error) {
	var zero T
	v, err := n.Navigate(ctx, entity, step, params)
	if err != nil {
		return zero, err
	}
	t, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("%w: %s.%s produces %T, want %T", ErrViewType, entity, step, v, zero)
	}
	return t, nil
}

// firstPending scans the chain from the leaf down and returns the index of the
// first step that still has to run: everything above the deepest step that
// reports it is already displayed.
func (n *Navigator) firstPending(ctx context.Context, chain []Step, sc StepContext) int {
	for i := len(chain) - 1; i >= 0; i-- {
		s := chain[i]
		if s.AmIHere == nil {
			continue
		}
		here, err := s.AmIHere(ctx, sc)
		if err != nil {
			sc.Logger.Debugw("Location probe failed", "probe", s.Ref().String(), "error", err)
			continue
		}
		if here {
			sc.Logger.Infow("Already here", "at", s.Ref().String())
			n.record(ctx, s, models.StepResult{Status: models.StatusSkipped})
			return i + 1
		}
	}
	return 0
}

func (n *Navigator) execute(ctx context.Context, s Step, sc StepContext) error {
	start := time.Now()
	sc.Logger.Debugw("Invoking step", "at", s.Ref().String())

	res := retry.Do(ctx, n.policy, func(ctx context.Context) error {
		return s.Action(ctx, sc)
	})

	if res.HookErr != nil {
		sc.Logger.Warnw("Page refresh between attempts failed", "at", s.Ref().String(), "error", res.HookErr)
	}

	result := models.StepResult{
		Status:     models.StatusSuccess,
		RetryCount: res.Attempts - 1,
		Duration:   time.Since(start).Milliseconds(),
	}
	if res.Err != nil {
		result.Status = models.StatusFailed
		result.ErrorMessage = res.Err.Error()
		result.ScreenshotPath = n.screenshot(ctx, s)
		sc.Logger.Errorw("Navigation step failed", "at", s.Ref().String(), "attempts", res.Attempts, "error", res.Err)
	}
	n.record(ctx, s, result)
	return res.Err
}

func (n *Navigator) beforeRetry(ctx context.Context, attempt int, err error) error {
	n.logger.Warnw("Navigation step failed, retrying", "attempt", attempt, "refresh", n.refresh, "error", err)
	if !n.refresh {
		return nil
	}
	if err := n.driver.Refresh(ctx); err != nil {
		return fmt.Errorf("refresh after attempt %d: %w", attempt, err)
	}
	return n.driver.EnsurePageSafe(ctx)
}

func (n *Navigator) record(ctx context.Context, s Step, result models.StepResult) {
	n.seq++
	if n.recorder == nil {
		return
	}
	now := time.Now()
	result.ID = uuid.New().String()
	result.RunID = n.runID
	result.Entity = s.Entity
	result.Step = s.Name
	result.SequenceID = n.seq
	result.ExecutedAt = &now
	if err := n.recorder.RecordStep(ctx, result); err != nil {
		n.logger.Warnw("Failed to record step result", "at", s.Ref().String(), "error", err)
	}
}

func (n *Navigator) screenshot(ctx context.Context, s Step) string {
	if n.screenshotDir == "" {
		return ""
	}
	data, err := n.driver.Screenshot(ctx)
	if err != nil {
		n.logger.Warnw("Failed to take screenshot", "error", err)
		return ""
	}
	if err := os.MkdirAll(n.screenshotDir, 0755); err != nil {
		n.logger.Warnw("Failed to create screenshot dir", "dir", n.screenshotDir, "error", err)
		return ""
	}
	path := filepath.Join(n.screenshotDir, fmt.Sprintf("%s_%s_%s.png", s.Entity, s.Name, uuid.New().String()))
	if err := os.WriteFile(path, data, 0644); err != nil {
		n.logger.Warnw("Failed to save screenshot", "path", path, "error", err)
		return ""
	}
	return path
}
