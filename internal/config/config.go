// Package config provides YAML-based configuration loading for grouplock.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all grouplock configuration.
type Config struct {
	// Target web messenger
	Site SiteConfig `yaml:"site"`

	// Browser process launch settings
	Browser BrowserConfig `yaml:"browser"`

	// Fixed waits used by the automation loops
	Timings TimingsConfig `yaml:"timings"`

	// Account store
	Store StoreConfig `yaml:"store"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`

	// Site heuristics (selector profile)
	Heuristics HeuristicsConfig `yaml:"heuristics"`
}

// SiteConfig describes the remote web interface being driven.
type SiteConfig struct {
	BaseURL      string `yaml:"base_url"`
	CookieDomain string `yaml:"cookie_domain"`
}

// BrowserConfig configures the browser driver and launch flags.
type BrowserConfig struct {
	Driver         string   `yaml:"driver"` // rod, playwright
	Bin            string   `yaml:"bin"`
	Headless       *bool    `yaml:"headless"`
	ViewportWidth  int      `yaml:"viewport_width"`
	ViewportHeight int      `yaml:"viewport_height"`
	UserAgent      string   `yaml:"user_agent"`
	ExtraFlags     []string `yaml:"extra_flags"`
}

// TimingsConfig holds duration strings ("8s", "500ms").
type TimingsConfig struct {
	LandingWait  string `yaml:"landing_wait"`
	ThreadWait   string `yaml:"thread_wait"`
	Settle       string `yaml:"settle"`
	ScrollPause  string `yaml:"scroll_pause"`
	ClickPause   string `yaml:"click_pause"`
	StepPause    string `yaml:"step_pause"`
	InfoPause    string `yaml:"info_pause"`
	PollInterval string `yaml:"poll_interval"`
}

// StoreConfig configures the SQLite account store.
type StoreConfig struct {
	Driver string `yaml:"driver"` // sqlite3 (mattn, cgo), sqlite (modernc, pure Go)
	Path   string `yaml:"path"`
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
	JSON  bool   `yaml:"json"`
	File  string `yaml:"file"`
}

// HeuristicsConfig points at an optional selector profile file.
type HeuristicsConfig struct {
	Profile string `yaml:"profile"`
}

// Defaults
const (
	DefaultBaseURL        = "https://www.facebook.com/"
	DefaultCookieDomain   = ".facebook.com"
	DefaultDriver         = "rod"
	DefaultViewportWidth  = 1920
	DefaultViewportHeight = 1080
	DefaultUserAgent      = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/121.0.0.0 Safari/537.36"
	DefaultStoreDriver    = "sqlite3"
)

// DefaultDir returns ~/.grouplock, falling back to the working directory.
func DefaultDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".grouplock"
	}
	return filepath.Join(home, ".grouplock")
}

// DefaultPath returns the default config file location.
func DefaultPath() string {
	return filepath.Join(DefaultDir(), "config.yaml")
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	headless := true
	return &Config{
		Site: SiteConfig{
			BaseURL:      DefaultBaseURL,
			CookieDomain: DefaultCookieDomain,
		},
		Browser: BrowserConfig{
			Driver:         DefaultDriver,
			Headless:       &headless,
			ViewportWidth:  DefaultViewportWidth,
			ViewportHeight: DefaultViewportHeight,
			UserAgent:      DefaultUserAgent,
		},
		Timings: TimingsConfig{
			LandingWait:  "8s",
			ThreadWait:   "10s",
			Settle:       "4s",
			ScrollPause:  "1s",
			ClickPause:   "500ms",
			StepPause:    "1s",
			InfoPause:    "2s",
			PollInterval: "5s",
		},
		Store: StoreConfig{
			Driver: DefaultStoreDriver,
			Path:   filepath.Join(DefaultDir(), "grouplock.db"),
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load loads configuration from a YAML file. A missing file yields defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("GROUPLOCK_BROWSER_BIN"); v != "" {
		c.Browser.Bin = v
	}
	if v := os.Getenv("GROUPLOCK_BROWSER_DRIVER"); v != "" {
		c.Browser.Driver = v
	}
	if v := os.Getenv("GROUPLOCK_DB"); v != "" {
		c.Store.Path = v
	}
}

// Validate checks enumerations and duration strings.
func (c *Config) Validate() error {
	var errs []string
	switch strings.ToLower(c.Browser.Driver) {
	case "", "rod", "playwright":
	default:
		errs = append(errs, fmt.Sprintf("browser.driver %q must be rod or playwright", c.Browser.Driver))
	}
	switch c.Store.Driver {
	case "", "sqlite3", "sqlite":
	default:
		errs = append(errs, fmt.Sprintf("store.driver %q must be sqlite3 or sqlite", c.Store.Driver))
	}
	durations := map[string]string{
		"landing_wait":  c.Timings.LandingWait,
		"thread_wait":   c.Timings.ThreadWait,
		"settle":        c.Timings.Settle,
		"scroll_pause":  c.Timings.ScrollPause,
		"click_pause":   c.Timings.ClickPause,
		"step_pause":    c.Timings.StepPause,
		"info_pause":    c.Timings.InfoPause,
		"poll_interval": c.Timings.PollInterval,
	}
	for name, raw := range durations {
		if raw == "" {
			continue
		}
		if d, err := time.ParseDuration(raw); err != nil || d < 0 {
			errs = append(errs, fmt.Sprintf("timings.%s %q is not a valid duration", name, raw))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

// IsHeadless returns the headless setting (default true).
func (b BrowserConfig) IsHeadless() bool {
	if b.Headless == nil {
		return true
	}
	return *b.Headless
}

// GetDriver returns the driver name.
func (b BrowserConfig) GetDriver() string {
	if b.Driver == "" {
		return DefaultDriver
	}
	return strings.ToLower(b.Driver)
}

// GetViewportWidth returns viewport width.
func (b BrowserConfig) GetViewportWidth() int {
	if b.ViewportWidth == 0 {
		return DefaultViewportWidth
	}
	return b.ViewportWidth
}

// GetViewportHeight returns viewport height.
func (b BrowserConfig) GetViewportHeight() int {
	if b.ViewportHeight == 0 {
		return DefaultViewportHeight
	}
	return b.ViewportHeight
}

// GetUserAgent returns the spoofed user agent.
func (b BrowserConfig) GetUserAgent() string {
	if b.UserAgent == "" {
		return DefaultUserAgent
	}
	return b.UserAgent
}

// GetBaseURL returns the site root with a trailing slash.
func (s SiteConfig) GetBaseURL() string {
	base := s.BaseURL
	if base == "" {
		base = DefaultBaseURL
	}
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}
	return base
}

// GetCookieDomain returns the domain cookies are scoped to.
func (s SiteConfig) GetCookieDomain() string {
	if s.CookieDomain == "" {
		return DefaultCookieDomain
	}
	return s.CookieDomain
}

// GetDriver returns the database/sql driver name.
func (s StoreConfig) GetDriver() string {
	if s.Driver == "" {
		return DefaultStoreDriver
	}
	return s.Driver
}

// GetPath returns the database file path.
func (s StoreConfig) GetPath() string {
	if s.Path == "" {
		return filepath.Join(DefaultDir(), "grouplock.db")
	}
	return s.Path
}

func parseOr(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d < 0 {
		return fallback
	}
	return d
}

// LandingWaitDuration is the pause after opening the site root.
func (t TimingsConfig) LandingWaitDuration() time.Duration { return parseOr(t.LandingWait, 8*time.Second) }

// ThreadWaitDuration is the pause after opening the conversation.
func (t TimingsConfig) ThreadWaitDuration() time.Duration { return parseOr(t.ThreadWait, 10*time.Second) }

// SettleDuration is the pause before element discovery.
func (t TimingsConfig) SettleDuration() time.Duration { return parseOr(t.Settle, 4*time.Second) }

// ScrollPauseDuration is the pause after each discovery scroll.
func (t TimingsConfig) ScrollPauseDuration() time.Duration { return parseOr(t.ScrollPause, time.Second) }

// ClickPauseDuration is the pause after focusing the composer.
func (t TimingsConfig) ClickPauseDuration() time.Duration {
	return parseOr(t.ClickPause, 500*time.Millisecond)
}

// StepPauseDuration is the pause between scripted steps.
func (t TimingsConfig) StepPauseDuration() time.Duration { return parseOr(t.StepPause, time.Second) }

// InfoPauseDuration is the pause after opening the info panel.
func (t TimingsConfig) InfoPauseDuration() time.Duration { return parseOr(t.InfoPause, 2*time.Second) }

// PollIntervalDuration is the watchdog tick.
func (t TimingsConfig) PollIntervalDuration() time.Duration {
	return parseOr(t.PollInterval, 5*time.Second)
}
