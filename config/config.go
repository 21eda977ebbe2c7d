// Package config holds the integration configuration: merchant identifiers,
// financing amount bounds, fallback order values, and engine tuning knobs.
// Configs load from TOML and validate before a session starts.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	snapembed "github.com/jetd7/snapembed"
	"github.com/pelletier/go-toml/v2"
	"github.com/shopspring/decimal"
)

// PostcodeFormatUK enables the UK postcode pattern check.
const PostcodeFormatUK = "UK"

// Fallback carries the static values used when no live source resolves a
// customer or cart field.
type Fallback struct {
	FirstName string  `toml:"first_name"`
	LastName  string  `toml:"last_name"`
	Email     string  `toml:"email" validate:"omitempty,email"`
	Postcode  string  `toml:"postcode"`
	Country   string  `toml:"country"`
	Total     float64 `toml:"total" validate:"gte=0"`
}

// Tuning groups the timing knobs of the render and lifecycle machinery.
// Zero values are replaced by defaults in WithDefaults.
type Tuning struct {
	DebounceWindow     time.Duration
	HeartbeatInterval  time.Duration
	RenderCooldown     time.Duration
	RecoveryCooldown   time.Duration
	ReadinessInterval  time.Duration
	ReadinessAttempts  int
	OverlayRetryBase   time.Duration
	OverlayRetryCount  int
	RouteWatchInterval time.Duration
	RouteWatchAttempts int
	RequestTimeout     time.Duration
	PollInterval       time.Duration
	MinContainerWidth  float64
	MinContainerHeight float64
}

// Config is the full integration configuration for one checkout page.
type Config struct {
	ClientID       string
	MerchantID     string
	MethodID       string
	Theme          string
	ServerURL      string  `validate:"omitempty,url"`
	MinAmount      float64 `validate:"gte=0"`
	MaxAmount      float64 `validate:"gte=0"`
	PostcodeFormat string  `validate:"omitempty,oneof=UK"`
	Fallback       Fallback
	Tuning         Tuning
}

// fileTuning is the TOML shape of Tuning. Durations travel as millisecond
// integers; zero means "use the default".
type fileTuning struct {
	DebounceWindowMS     int64   `toml:"debounce_window_ms"`
	HeartbeatIntervalMS  int64   `toml:"heartbeat_interval_ms"`
	RenderCooldownMS     int64   `toml:"render_cooldown_ms"`
	RecoveryCooldownMS   int64   `toml:"recovery_cooldown_ms"`
	ReadinessIntervalMS  int64   `toml:"readiness_interval_ms"`
	ReadinessAttempts    int     `toml:"readiness_attempts"`
	OverlayRetryBaseMS   int64   `toml:"overlay_retry_base_ms"`
	OverlayRetryCount    int     `toml:"overlay_retry_count"`
	RouteWatchIntervalMS int64   `toml:"route_watch_interval_ms"`
	RouteWatchAttempts   int     `toml:"route_watch_attempts"`
	RequestTimeoutMS     int64   `toml:"request_timeout_ms"`
	PollIntervalMS       int64   `toml:"poll_interval_ms"`
	MinContainerWidth    float64 `toml:"min_container_width"`
	MinContainerHeight   float64 `toml:"min_container_height"`
}

type fileConfig struct {
	ClientID       string     `toml:"client_id"`
	MerchantID     string     `toml:"merchant_id"`
	MethodID       string     `toml:"method_id"`
	Theme          string     `toml:"theme"`
	ServerURL      string     `toml:"server_url"`
	MinAmount      float64    `toml:"min_amount"`
	MaxAmount      float64    `toml:"max_amount"`
	PostcodeFormat string     `toml:"postcode_format"`
	Fallback       Fallback   `toml:"fallback"`
	Tuning         fileTuning `toml:"tuning"`
}

var validate = validator.New()

// Load reads and validates a TOML config file, applying defaults.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config load failed (%s): %w", path, err)
	}

	var raw fileConfig
	if err := toml.Unmarshal(data, &raw); err != nil {
		return Config{}, fmt.Errorf("config parse failed (%s): %w", path, err)
	}

	cfg := Config{
		ClientID:       raw.ClientID,
		MerchantID:     raw.MerchantID,
		MethodID:       raw.MethodID,
		Theme:          raw.Theme,
		ServerURL:      raw.ServerURL,
		MinAmount:      raw.MinAmount,
		MaxAmount:      raw.MaxAmount,
		PostcodeFormat: raw.PostcodeFormat,
		Fallback:       raw.Fallback,
		Tuning: Tuning{
			DebounceWindow:     millis(raw.Tuning.DebounceWindowMS),
			HeartbeatInterval:  millis(raw.Tuning.HeartbeatIntervalMS),
			RenderCooldown:     millis(raw.Tuning.RenderCooldownMS),
			RecoveryCooldown:   millis(raw.Tuning.RecoveryCooldownMS),
			ReadinessInterval:  millis(raw.Tuning.ReadinessIntervalMS),
			ReadinessAttempts:  raw.Tuning.ReadinessAttempts,
			OverlayRetryBase:   millis(raw.Tuning.OverlayRetryBaseMS),
			OverlayRetryCount:  raw.Tuning.OverlayRetryCount,
			RouteWatchInterval: millis(raw.Tuning.RouteWatchIntervalMS),
			RouteWatchAttempts: raw.Tuning.RouteWatchAttempts,
			RequestTimeout:     millis(raw.Tuning.RequestTimeoutMS),
			PollInterval:       millis(raw.Tuning.PollIntervalMS),
			MinContainerWidth:  raw.Tuning.MinContainerWidth,
			MinContainerHeight: raw.Tuning.MinContainerHeight,
		},
	}

	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func millis(ms int64) time.Duration {
	return time.Duration(ms) * time.Millisecond
}

// WithDefaults fills unset tuning values and returns the result.
func (c Config) WithDefaults() Config {
	t := &c.Tuning

	setDuration(&t.DebounceWindow, 250*time.Millisecond)
	setDuration(&t.HeartbeatInterval, 3*time.Second)
	setDuration(&t.RenderCooldown, 1500*time.Millisecond)
	setDuration(&t.RecoveryCooldown, 2*time.Second)
	setDuration(&t.ReadinessInterval, 400*time.Millisecond)
	setDuration(&t.OverlayRetryBase, 200*time.Millisecond)
	setDuration(&t.RouteWatchInterval, time.Second)
	setDuration(&t.RequestTimeout, 10*time.Second)
	setDuration(&t.PollInterval, time.Second)

	if t.ReadinessAttempts == 0 {
		t.ReadinessAttempts = 25
	}

	if t.OverlayRetryCount == 0 {
		t.OverlayRetryCount = 5
	}

	if t.RouteWatchAttempts == 0 {
		t.RouteWatchAttempts = 120
	}

	if t.MinContainerWidth == 0 {
		t.MinContainerWidth = 80
	}

	if t.MinContainerHeight == 0 {
		t.MinContainerHeight = 20
	}

	if c.Theme == "" {
		c.Theme = "light"
	}

	if c.MethodID == "" {
		c.MethodID = "financing"
	}

	return c
}

// Validate reports missing integration identifiers as a ConfigurationError
// and checks the remaining struct tags.
func (c Config) Validate() error {
	var missing []string

	if c.ClientID == "" {
		missing = append(missing, "client_id")
	}

	if c.MerchantID == "" {
		missing = append(missing, "merchant_id")
	}

	if len(missing) > 0 {
		return &snapembed.ConfigurationError{Missing: missing}
	}

	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("config validation: %w", err)
	}

	if c.MaxAmount > 0 && c.MaxAmount < c.MinAmount {
		return fmt.Errorf("config validation: max_amount %.2f below min_amount %.2f", c.MaxAmount, c.MinAmount)
	}

	return nil
}

// Min returns the lower financing bound as a decimal.
func (c Config) Min() decimal.Decimal {
	return decimal.NewFromFloat(c.MinAmount)
}

// Max returns the upper financing bound as a decimal.
func (c Config) Max() decimal.Decimal {
	return decimal.NewFromFloat(c.MaxAmount)
}

func setDuration(d *time.Duration, def time.Duration) {
	if *d == 0 {
		*d = def
	}
}
