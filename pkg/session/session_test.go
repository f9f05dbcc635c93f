package session

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/SatelliteQE/airgun-sub001/pkg/browser/browsertest"
	"github.com/SatelliteQE/airgun-sub001/pkg/config"
	"github.com/SatelliteQE/airgun-sub001/pkg/models"
	"github.com/SatelliteQE/airgun-sub001/pkg/view"
)

func testConfig(t *testing.T) config.Config {
	var c config.Config
	c.Satellite.URL = "https://sat.example.com"
	c.Satellite.Username = "admin"
	c.Satellite.Password = "changeme"
	c.Retry.Attempts = 3
	c.Retry.Refresh = true
	c.Browser.ScreenshotDir = t.TempDir()
	return c
}

type memRecorder struct{ results []models.StepResult }

func (r *memRecorder) RecordStep(_ context.Context, res models.StepResult) error {
	r.results = append(r.results, res)
	return nil
}

func TestStartLogsInAndNavigates(t *testing.T) {
	d := browsertest.New()
	rec := &memRecorder{}
	s, err := Start(context.Background(), testConfig(t), WithDriver(d), WithRecorder(rec, "run-9"))
	require.NoError(t, err)
	require.NotEmpty(t, s.ID)
	require.Equal(t, []string{"https://sat.example.com"}, d.Kind("navigate"))

	v, err := s.Navigate(context.Background(), "Host", "New", nil)
	require.NoError(t, err)
	require.Equal(t, "HostCreateView", v.Name())
	require.IsType(t, &view.Form{}, v)
	require.NotEmpty(t, rec.results)
	require.Equal(t, "run-9", rec.results[0].RunID)

	u, err := s.URL(context.Background())
	require.NoError(t, err)
	require.Equal(t, "https://sat.example.com", u)

	require.NoError(t, s.Close())
	require.True(t, d.Closed())
}

func TestStartClosesBrowserWhenLoginFails(t *testing.T) {
	d := browsertest.New().SetAll(view.DefaultFlashMessages.Error, "Incorrect username or password")

	_, err := Start(context.Background(), testConfig(t), WithDriver(d))
	require.Error(t, err)
	require.True(t, d.Closed())
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	c := testConfig(t)
	c.Satellite.URL = ""

	_, err := New(context.Background(), c, WithDriver(browsertest.New()))
	require.ErrorIs(t, err, config.ErrMissingSatellite)
}

func TestUniqueName(t *testing.T) {
	a, b := UniqueName("host"), UniqueName("host")
	require.NotEqual(t, a, b)
	require.Regexp(t, `^host-[0-9a-f]{12}$`, a)
	require.Len(t, UniqueName(""), 12)
}
