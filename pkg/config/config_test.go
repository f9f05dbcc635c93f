package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// isolate runs Load from an empty directory so no stray airgun.yaml is read.
func isolate(t *testing.T) {
	t.Helper()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { _ = os.Chdir(wd) })
	t.Setenv("AIRGUN_CONFIG", "")
}

func TestLoadDefaults(t *testing.T) {
	isolate(t)

	c, err := Load()
	require.NoError(t, err)
	require.True(t, c.Browser.Headless)
	require.Equal(t, 10*time.Second, c.Browser.ElementTimeout)
	require.Equal(t, []string{"no-sandbox", "disable-gpu", "disable-dev-shm-usage"}, c.Browser.Flags)
	require.Equal(t, 3, c.Retry.Attempts)
	require.Equal(t, 500*time.Millisecond, c.Retry.Delay)
	require.Equal(t, 1.0, c.Retry.Backoff)
	require.True(t, c.Retry.Refresh)
	require.Equal(t, "airgun-navigation", c.Temporal.TaskQueue)
	require.ErrorIs(t, c.Validate(), ErrMissingSatellite)
}

func TestLoadEnvOverrides(t *testing.T) {
	isolate(t)
	t.Setenv("AIRGUN_SATELLITE_URL", "https://sat.example.com")
	t.Setenv("AIRGUN_RETRY_ATTEMPTS", "5")
	t.Setenv("AIRGUN_RETRY_DELAY", "2s")
	t.Setenv("AIRGUN_RETRY_REFRESH", "false")
	t.Setenv("AIRGUN_BROWSER_HEADLESS", "false")

	c, err := Load()
	require.NoError(t, err)
	require.NoError(t, c.Validate())
	require.Equal(t, "https://sat.example.com", c.Satellite.URL)
	require.False(t, c.Retry.Refresh)
	require.False(t, c.BrowserOptions().Headless)

	p := c.RetryPolicy()
	require.Equal(t, 5, p.MaxAttempts)
	require.Equal(t, 2*time.Second, p.Delay)
}

func TestLoadFile(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), "custom.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
satellite:
  url: https://file.example.com
  username: viewer
browser:
  element_timeout: 3s
log:
  level: debug
`), 0o644))
	t.Setenv("AIRGUN_CONFIG", path)

	c, err := Load()
	require.NoError(t, err)
	require.Equal(t, "https://file.example.com", c.Satellite.URL)
	require.Equal(t, "viewer", c.Satellite.Username)
	require.Equal(t, 3*time.Second, c.BrowserOptions().ElementTimeout)
	require.Equal(t, "debug", c.Log.Level)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	isolate(t)
	t.Setenv("AIRGUN_CONFIG", filepath.Join(t.TempDir(), "nope.yaml"))

	_, err := Load()
	require.Error(t, err)
}
