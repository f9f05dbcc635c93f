// Package session ties a browser tab, the navigation registry and the entity
// page objects together behind one logged-in handle.
package session

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/SatelliteQE/airgun-sub001/pkg/browser"
	"github.com/SatelliteQE/airgun-sub001/pkg/config"
	"github.com/SatelliteQE/airgun-sub001/pkg/entities"
	"github.com/SatelliteQE/airgun-sub001/pkg/navigation"
	"github.com/SatelliteQE/airgun-sub001/pkg/view"
)

// Session is one browser tab logged into the application. It drives a single
// tab and must not be used from more than one goroutine at a time.
type Session struct {
	ID string

	cfg    config.Config
	driver browser.Driver
	nav    *navigation.Navigator
	logger *zap.SugaredLogger

	ActivationKey *entities.Entity
	Host          *entities.Entity
	ContentView   *entities.Entity
	JobInvocation *entities.JobInvocations
}

type options struct {
	logger   *zap.SugaredLogger
	driver   browser.Driver
	recorder navigation.Recorder
	runID    string
}

type Option func(*options)

func WithLogger(l *zap.SugaredLogger) Option {
	return func(o *options) { o.logger = l }
}

// WithDriver uses d instead of launching a browser. The session still closes it.
func WithDriver(d browser.Driver) Option {
	return func(o *options) { o.driver = d }
}

// WithRecorder reports every navigation step of the session under runID.
func WithRecorder(r navigation.Recorder, runID string) Option {
	return func(o *options) {
		o.recorder = r
		o.runID = runID
	}
}

// New opens a browser tab and wires the navigator. It does not log in.
func New(ctx context.Context, cfg config.Config, opts ...Option) (*Session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	o := options{logger: zap.NewNop().Sugar()}
	for _, opt := range opts {
		opt(&o)
	}

	reg := navigation.NewRegistry()
	if err := entities.Register(reg); err != nil {
		return nil, err
	}

	id := uuid.New().String()
	logger := o.logger.With("session_id", id)

	d := o.driver
	if d == nil {
		rd, err := browser.Launch(ctx, cfg.BrowserOptions(), logger)
		if err != nil {
			return nil, err
		}
		d = rd
	}

	navOpts := []navigation.Option{
		navigation.WithLogger(logger),
		navigation.WithPolicy(cfg.RetryPolicy()),
		navigation.WithScreenshotDir(cfg.Browser.ScreenshotDir),
	}
	if !cfg.Retry.Refresh {
		navOpts = append(navOpts, navigation.WithoutRefresh())
	}
	if o.recorder != nil {
		navOpts = append(navOpts, navigation.WithRecorder(o.recorder, o.runID))
	}
	nav := navigation.New(reg, d, navOpts...)

	return &Session{
		ID:            id,
		cfg:           cfg,
		driver:        d,
		nav:           nav,
		logger:        logger,
		ActivationKey: entities.New(nav, entities.ActivationKey),
		Host:          entities.New(nav, entities.Host),
		ContentView:   entities.New(nav, entities.ContentView),
		JobInvocation: entities.NewJobInvocations(nav),
	}, nil
}

// Start opens a session and logs in, closing the browser if login fails.
func Start(ctx context.Context, cfg config.Config, opts ...Option) (*Session, error) {
	s, err := New(ctx, cfg, opts...)
	if err != nil {
		return nil, err
	}
	if err := s.Login(ctx); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

// Login signs in with the configured credentials.
func (s *Session) Login(ctx context.Context) error {
	s.logger.Infow("Logging in", "url", s.cfg.Satellite.URL, "user", s.cfg.Satellite.Username)
	return entities.Login(ctx, s.driver, s.cfg.Satellite.URL, s.cfg.Satellite.Username, s.cfg.Satellite.Password)
}

// Navigate takes the tab to any registered step.
func (s *Session) Navigate(ctx context.Context, entity, step string, params navigation.Params) (view.View, error) {
	return s.nav.Navigate(ctx, entity, step, params)
}

func (s *Session) Navigator() *navigation.Navigator { return s.nav }
func (s *Session) Driver() browser.Driver           { return s.driver }

// Screenshot captures the current tab as PNG.
func (s *Session) Screenshot(ctx context.Context) ([]byte, error) {
	return s.driver.Screenshot(ctx)
}

// URL returns the address the tab currently shows.
func (s *Session) URL(ctx context.Context) (string, error) {
	return s.driver.URL(ctx)
}

// Close releases the browser.
func (s *Session) Close() error {
	s.logger.Infow("Closing session")
	if err := s.driver.Close(); err != nil {
		return fmt.Errorf("close browser: %w", err)
	}
	return nil
}

// UniqueName returns prefix followed by a random suffix, for entities that
// must not collide with earlier test runs.
func UniqueName(prefix string) string {
	suffix := strings.ReplaceAll(uuid.New().String(), "-", "")[:12]
	if prefix == "" {
		return suffix
	}
	return prefix + "-" + suffix
}
