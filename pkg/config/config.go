// Package config loads AirGun settings from defaults, an optional YAML file and
// AIRGUN_ prefixed environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/SatelliteQE/airgun-sub001/pkg/browser"
	"github.com/SatelliteQE/airgun-sub001/pkg/retry"
)

// ErrMissingSatellite is returned by Validate when no application URL is set.
var ErrMissingSatellite = errors.New("satellite.url is required")

type Config struct {
	Satellite SatelliteConfig `mapstructure:"satellite"`
	Browser   BrowserConfig   `mapstructure:"browser"`
	Retry     RetryConfig     `mapstructure:"retry"`
	Log       LogConfig       `mapstructure:"log"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Temporal  TemporalConfig  `mapstructure:"temporal"`
	API       APIConfig       `mapstructure:"api"`
}

// SatelliteConfig is the application under test and the user to log in as.
type SatelliteConfig struct {
	URL      string `mapstructure:"url"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

type BrowserConfig struct {
	Headless        bool          `mapstructure:"headless"`
	Bin             string        `mapstructure:"bin"`
	ControlURL      string        `mapstructure:"control_url"`
	Flags           []string      `mapstructure:"flags"`
	ElementTimeout  time.Duration `mapstructure:"element_timeout"`
	PageSafeTimeout time.Duration `mapstructure:"page_safe_timeout"`
	ScreenshotDir   string        `mapstructure:"screenshot_dir"`
}

type RetryConfig struct {
	Attempts int           `mapstructure:"attempts"`
	Delay    time.Duration `mapstructure:"delay"`
	Backoff  float64       `mapstructure:"backoff"`
	MaxDelay time.Duration `mapstructure:"max_delay"`
	// Refresh reloads the page before every retry.
	Refresh bool `mapstructure:"refresh"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type DatabaseConfig struct {
	DSN string `mapstructure:"dsn"`
}

type TemporalConfig struct {
	HostPort  string `mapstructure:"host_port"`
	TaskQueue string `mapstructure:"task_queue"`
}

type APIConfig struct {
	Port string `mapstructure:"port"`
}

// Load reads the configuration. The file named by AIRGUN_CONFIG, or
// ./airgun.yaml, is optional; environment variables such as
// AIRGUN_SATELLITE_URL or AIRGUN_RETRY_ATTEMPTS override it.
func Load() (Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigType("yaml")
	if path := os.Getenv("AIRGUN_CONFIG"); path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("airgun")
	}

	v.SetEnvPrefix("AIRGUN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	return c, nil
}

func setDefaults(v *viper.Viper) {
	b := browser.DefaultLaunchOptions()
	p := retry.DefaultPolicy()

	v.SetDefault("satellite.url", "")
	v.SetDefault("satellite.username", "admin")
	v.SetDefault("satellite.password", "")

	v.SetDefault("browser.headless", b.Headless)
	v.SetDefault("browser.bin", "")
	v.SetDefault("browser.control_url", "")
	v.SetDefault("browser.flags", b.Flags)
	v.SetDefault("browser.element_timeout", b.ElementTimeout)
	v.SetDefault("browser.page_safe_timeout", b.PageSafeTimeout)
	v.SetDefault("browser.screenshot_dir", "./screenshots")

	v.SetDefault("retry.attempts", p.MaxAttempts)
	v.SetDefault("retry.delay", p.Delay)
	v.SetDefault("retry.backoff", p.Backoff)
	v.SetDefault("retry.max_delay", p.MaxDelay)
	v.SetDefault("retry.refresh", true)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")

	v.SetDefault("database.dsn", "root:password@tcp(localhost:3306)/airgun?parseTime=true")

	v.SetDefault("temporal.host_port", "localhost:7233")
	v.SetDefault("temporal.task_queue", "airgun-navigation")

	v.SetDefault("api.port", "8080")
}

// Validate checks what a browser session cannot start without.
func (c Config) Validate() error {
	if c.Satellite.URL == "" {
		return ErrMissingSatellite
	}
	if c.Retry.Attempts < 1 {
		return fmt.Errorf("retry.attempts must be at least 1, got %d", c.Retry.Attempts)
	}
	return nil
}

// BrowserOptions maps the browser section onto driver launch options.
func (c Config) BrowserOptions() browser.LaunchOptions {
	return browser.LaunchOptions{
		Bin:             c.Browser.Bin,
		ControlURL:      c.Browser.ControlURL,
		Headless:        c.Browser.Headless,
		Flags:           c.Browser.Flags,
		ElementTimeout:  c.Browser.ElementTimeout,
		PageSafeTimeout: c.Browser.PageSafeTimeout,
	}
}

// RetryPolicy maps the retry section onto a policy. The classifier and the
// refresh hook are left to the navigator.
func (c Config) RetryPolicy() retry.Policy {
	return retry.Policy{
		MaxAttempts: c.Retry.Attempts,
		Delay:       c.Retry.Delay,
		Backoff:     c.Retry.Backoff,
		MaxDelay:    c.Retry.MaxDelay,
	}
}
