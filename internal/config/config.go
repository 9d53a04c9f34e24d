// File: internal/config/config.go
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds the entire application configuration.
type Config struct {
	Logger    LoggerConfig    `mapstructure:"logger" yaml:"logger"`
	Site      SiteConfig      `mapstructure:"site" yaml:"site"`
	Booking   BookingConfig   `mapstructure:"booking" yaml:"booking"`
	Browser   BrowserConfig   `mapstructure:"browser" yaml:"browser"`
	Artifacts ArtifactsConfig `mapstructure:"artifacts" yaml:"artifacts"`
}

// LoggerConfig controls the zap logger construction.
type LoggerConfig struct {
	Level       string      `mapstructure:"level" yaml:"level"`
	Format      string      `mapstructure:"format" yaml:"format"`
	AddSource   bool        `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string      `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string      `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int         `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int         `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int         `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool        `mapstructure:"compress" yaml:"compress"`
	Colors      ColorConfig `mapstructure:"colors" yaml:"colors"`
}

// ColorConfig maps log levels to terminal colors for the console encoder.
type ColorConfig struct {
	Debug  string `mapstructure:"debug" yaml:"debug"`
	Info   string `mapstructure:"info" yaml:"info"`
	Warn   string `mapstructure:"warn" yaml:"warn"`
	Error  string `mapstructure:"error" yaml:"error"`
	DPanic string `mapstructure:"dpanic" yaml:"dpanic"`
	Panic  string `mapstructure:"panic" yaml:"panic"`
	Fatal  string `mapstructure:"fatal" yaml:"fatal"`
}

// SiteConfig identifies the booking widget and the member account.
// Username and password are expected to arrive via environment variables,
// never from the config file.
type SiteConfig struct {
	URL      string `mapstructure:"url" yaml:"url"`
	Username string `mapstructure:"username" yaml:"-"`
	Password string `mapstructure:"password" yaml:"-"`
}

// BookingConfig is the per-run booking context. It is constructed once and
// treated as read-only by every component that receives it.
type BookingConfig struct {
	// Mode selects the scheduling strategy: "release" races the daily slot
	// release, "immediate" runs the pipeline once (rehearsal runs).
	Mode string `mapstructure:"mode" yaml:"mode"`

	PartySize          int    `mapstructure:"party_size" yaml:"party_size"`
	AdvanceDays        int    `mapstructure:"advance_days" yaml:"advance_days"`
	PreferredTimeRange string `mapstructure:"preferred_time_range" yaml:"preferred_time_range"`

	// ReleaseTime is the daily time-of-day ("15:04") at which new slots open,
	// interpreted in Timezone.
	ReleaseTime string `mapstructure:"release_time" yaml:"release_time"`
	Timezone    string `mapstructure:"timezone" yaml:"timezone"`

	PreAttemptOffset time.Duration `mapstructure:"pre_attempt_offset" yaml:"pre_attempt_offset"`
	MaxRetries       int           `mapstructure:"max_retries" yaml:"max_retries"`
	RetryDelay       time.Duration `mapstructure:"retry_delay" yaml:"retry_delay"`

	DefaultWaitTimeout time.Duration `mapstructure:"default_wait_timeout" yaml:"default_wait_timeout"`

	// Slot materialization sub-loop: slots render asynchronously after the
	// release moment fires, so the tee sheet is polled (with page refreshes)
	// before the slot-selection step is allowed to run.
	SlotPollAttempts int           `mapstructure:"slot_poll_attempts" yaml:"slot_poll_attempts"`
	SlotPollTimeout  time.Duration `mapstructure:"slot_poll_timeout" yaml:"slot_poll_timeout"`
}

// BrowserConfig controls the Chrome process.
type BrowserConfig struct {
	Headless          bool          `mapstructure:"headless" yaml:"headless"`
	Args              []string      `mapstructure:"args" yaml:"args"`
	NavigationTimeout time.Duration `mapstructure:"navigation_timeout" yaml:"navigation_timeout"`
	WindowWidth       int           `mapstructure:"window_width" yaml:"window_width"`
	WindowHeight      int           `mapstructure:"window_height" yaml:"window_height"`
}

// ArtifactsConfig controls where diagnostic output is written.
type ArtifactsConfig struct {
	Dir         string `mapstructure:"dir" yaml:"dir"`
	Screenshots bool   `mapstructure:"screenshots" yaml:"screenshots"`
}

// Modes accepted by BookingConfig.Mode.
const (
	ModeRelease   = "release"
	ModeImmediate = "immediate"
)

// SetDefaults initializes default values for all configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "teesnipe")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 20)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)
	v.SetDefault("logger.colors.debug", "cyan")
	v.SetDefault("logger.colors.info", "green")
	v.SetDefault("logger.colors.warn", "yellow")
	v.SetDefault("logger.colors.error", "red")
	v.SetDefault("logger.colors.dpanic", "magenta")
	v.SetDefault("logger.colors.panic", "magenta")
	v.SetDefault("logger.colors.fatal", "magenta")

	// -- Booking --
	v.SetDefault("booking.mode", ModeRelease)
	v.SetDefault("booking.party_size", 4)
	v.SetDefault("booking.advance_days", 7)
	v.SetDefault("booking.preferred_time_range", "08:00-11:00")
	v.SetDefault("booking.release_time", "07:00")
	v.SetDefault("booking.timezone", "America/Los_Angeles")
	v.SetDefault("booking.pre_attempt_offset", "10s")
	v.SetDefault("booking.max_retries", 60)
	v.SetDefault("booking.retry_delay", "1s")
	v.SetDefault("booking.default_wait_timeout", "3s")
	v.SetDefault("booking.slot_poll_attempts", 60)
	v.SetDefault("booking.slot_poll_timeout", "2s")

	// -- Browser --
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.navigation_timeout", "60s")
	v.SetDefault("browser.window_width", 1920)
	v.SetDefault("browser.window_height", 1080)

	// -- Artifacts --
	v.SetDefault("artifacts.dir", "teesnipe_output")
	v.SetDefault("artifacts.screenshots", true)
}

// NewConfigFromViper creates a validated configuration instance from a viper
// object. Credentials are bound to environment variables here so they never
// have to appear in a config file.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	v.BindEnv("site.url", "TEESNIPE_SITE_URL")
	v.BindEnv("site.username", "TEESNIPE_USERNAME")
	v.BindEnv("site.password", "TEESNIPE_PASSWORD")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// NewDefaultConfig creates a configuration populated with default values.
// Site credentials are left empty; callers that need a bookable config must
// fill them in.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// Validate checks the configuration for required fields and sane values.
// A validation failure is fatal to the run; nothing retries it.
func (c *Config) Validate() error {
	if c.Site.URL == "" {
		return fmt.Errorf("site.url is required (set TEESNIPE_SITE_URL)")
	}
	if c.Site.Username == "" {
		return fmt.Errorf("site.username is required (set TEESNIPE_USERNAME)")
	}
	if c.Site.Password == "" {
		return fmt.Errorf("site.password is required (set TEESNIPE_PASSWORD)")
	}
	return c.Booking.Validate()
}

// Validate checks the booking parameters.
func (b *BookingConfig) Validate() error {
	if b.Mode != ModeRelease && b.Mode != ModeImmediate {
		return fmt.Errorf("booking.mode must be %q or %q, got %q", ModeRelease, ModeImmediate, b.Mode)
	}
	if b.PartySize < 1 || b.PartySize > 4 {
		return fmt.Errorf("booking.party_size must be between 1 and 4")
	}
	if b.AdvanceDays < 0 {
		return fmt.Errorf("booking.advance_days must be non-negative")
	}
	if b.PreAttemptOffset < 0 {
		return fmt.Errorf("booking.pre_attempt_offset must be non-negative")
	}
	if b.MaxRetries < 1 {
		return fmt.Errorf("booking.max_retries must be at least 1")
	}
	if b.DefaultWaitTimeout < time.Second {
		return fmt.Errorf("booking.default_wait_timeout must be at least 1s")
	}
	if b.SlotPollAttempts < 1 {
		return fmt.Errorf("booking.slot_poll_attempts must be at least 1")
	}
	if _, err := b.Location(); err != nil {
		return fmt.Errorf("booking.timezone: %w", err)
	}
	if _, err := time.Parse("15:04", b.ReleaseTime); err != nil {
		return fmt.Errorf("booking.release_time must be HH:MM: %w", err)
	}
	return nil
}

// Location resolves the booking timezone.
func (b *BookingConfig) Location() (*time.Location, error) {
	return time.LoadLocation(b.Timezone)
}

// ReleaseThreshold returns the slot release instant for the day containing
// now, in the booking timezone.
func (b *BookingConfig) ReleaseThreshold(now time.Time) (time.Time, error) {
	loc, err := b.Location()
	if err != nil {
		return time.Time{}, err
	}
	clock, err := time.Parse("15:04", b.ReleaseTime)
	if err != nil {
		return time.Time{}, err
	}
	local := now.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(),
		clock.Hour(), clock.Minute(), 0, 0, loc), nil
}

// TargetDate returns the date being booked: today in the booking timezone
// plus AdvanceDays.
func (b *BookingConfig) TargetDate(now time.Time) (time.Time, error) {
	loc, err := b.Location()
	if err != nil {
		return time.Time{}, err
	}
	local := now.In(loc)
	day := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	return day.AddDate(0, 0, b.AdvanceDays), nil
}
