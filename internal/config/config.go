// File: internal/config/config.go
package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix for every environment override (e.g. E2E_SERVER_BASE_URL).
const EnvPrefix = "E2E"

// Config holds the entire harness configuration.
type Config struct {
	Logger    LoggerConfig    `mapstructure:"logger" yaml:"logger"`
	Browser   BrowserConfig   `mapstructure:"browser" yaml:"browser"`
	Server    ServerConfig    `mapstructure:"server" yaml:"server"`
	Navigator NavigatorConfig `mapstructure:"navigator" yaml:"navigator"`
	Fixture   FixtureConfig   `mapstructure:"fixture" yaml:"fixture"`
	Query     QueryConfig     `mapstructure:"query" yaml:"query"`
	Artifacts ArtifactsConfig `mapstructure:"artifacts" yaml:"artifacts"`
}

// LoggerConfig holds all the configuration for the logger.
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

// ColorConfig defines the color codes for different log levels.
type ColorConfig struct {
	Debug  string `mapstructure:"debug" yaml:"debug"`
	Info   string `mapstructure:"info" yaml:"info"`
	Warn   string `mapstructure:"warn" yaml:"warn"`
	Error  string `mapstructure:"error" yaml:"error"`
	DPanic string `mapstructure:"dpanic" yaml:"dpanic"`
	Panic  string `mapstructure:"panic" yaml:"panic"`
	Fatal  string `mapstructure:"fatal" yaml:"fatal"`
}

// BrowserConfig holds settings for the headless browser process and its single page.
type BrowserConfig struct {
	Headless          bool          `mapstructure:"headless" yaml:"headless"`
	ExecPath          string        `mapstructure:"exec_path" yaml:"exec_path"`
	Args              []string      `mapstructure:"args" yaml:"args"`
	WindowWidth       int           `mapstructure:"window_width" yaml:"window_width"`
	WindowHeight      int           `mapstructure:"window_height" yaml:"window_height"`
	IgnoreTLSErrors   bool          `mapstructure:"ignore_tls_errors" yaml:"ignore_tls_errors"`
	LaunchTimeout     time.Duration `mapstructure:"launch_timeout" yaml:"launch_timeout"`
	ActionTimeout     time.Duration `mapstructure:"action_timeout" yaml:"action_timeout"`
	NavigationTimeout time.Duration `mapstructure:"navigation_timeout" yaml:"navigation_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
	// Debug forwards chromedp's protocol log to the zap logger.
	Debug bool `mapstructure:"debug" yaml:"debug"`
}

// ServerConfig describes the test server the harness runs against and the
// built-in fixture host.
type ServerConfig struct {
	BaseURL    string `mapstructure:"base_url" yaml:"base_url"`
	ListenAddr string `mapstructure:"listen_addr" yaml:"listen_addr"`
	FixtureDir string `mapstructure:"fixture_dir" yaml:"fixture_dir"`
}

// NavigatorConfig bounds the startup retry loop.
type NavigatorConfig struct {
	MaxAttempts int           `mapstructure:"max_attempts" yaml:"max_attempts"`
	Backoff     time.Duration `mapstructure:"backoff" yaml:"backoff"`
}

// FixtureConfig describes how fixtures are addressed and when they count as mounted.
type FixtureConfig struct {
	PathPrefix    string        `mapstructure:"path_prefix" yaml:"path_prefix"`
	Flag          string        `mapstructure:"flag" yaml:"flag"`
	RootTestID    string        `mapstructure:"root_test_id" yaml:"root_test_id"`
	BusyAttribute string        `mapstructure:"busy_attribute" yaml:"busy_attribute"`
	ReadyTimeout  time.Duration `mapstructure:"ready_timeout" yaml:"ready_timeout"`
	PollInterval  time.Duration `mapstructure:"poll_interval" yaml:"poll_interval"`
}

// QueryConfig tunes the remote query façade.
type QueryConfig struct {
	TestIDAttribute string        `mapstructure:"test_id_attribute" yaml:"test_id_attribute"`
	FindTimeout     time.Duration `mapstructure:"find_timeout" yaml:"find_timeout"`
	FindInterval    time.Duration `mapstructure:"find_interval" yaml:"find_interval"`
}

// ArtifactsConfig controls what is written to disk when a scenario fails.
type ArtifactsConfig struct {
	Dir                 string `mapstructure:"dir" yaml:"dir"`
	ScreenshotOnFailure bool   `mapstructure:"screenshot_on_failure" yaml:"screenshot_on_failure"`
}

// NewDefaultConfig creates a new configuration struct populated with default values.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		// This should not happen with defaults, but good to be safe.
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// SetDefaults initializes default values for various configuration parameters.
func SetDefaults(v *viper.Viper) {
	// Logger
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "e2e-harness")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 50)
	v.SetDefault("logger.max_backups", 3)
	v.SetDefault("logger.max_age", 7)
	v.SetDefault("logger.compress", true)
	v.SetDefault("logger.colors.debug", "cyan")
	v.SetDefault("logger.colors.info", "green")
	v.SetDefault("logger.colors.warn", "yellow")
	v.SetDefault("logger.colors.error", "red")
	v.SetDefault("logger.colors.dpanic", "magenta")
	v.SetDefault("logger.colors.panic", "magenta")
	v.SetDefault("logger.colors.fatal", "magenta")

	// Browser
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.window_width", 1280)
	v.SetDefault("browser.window_height", 800)
	v.SetDefault("browser.ignore_tls_errors", false)
	v.SetDefault("browser.launch_timeout", "30s")
	v.SetDefault("browser.action_timeout", "5s")
	v.SetDefault("browser.navigation_timeout", "15s")
	v.SetDefault("browser.shutdown_timeout", "10s")
	v.SetDefault("browser.debug", false)

	// Server
	v.SetDefault("server.base_url", "http://localhost:5001")
	v.SetDefault("server.listen_addr", "localhost:5001")
	v.SetDefault("server.fixture_dir", "")

	// Navigator
	v.SetDefault("navigator.max_attempts", 10)
	v.SetDefault("navigator.backoff", "250ms")

	// Fixture
	v.SetDefault("fixture.path_prefix", "/e2e/")
	v.SetDefault("fixture.flag", "no-dev")
	v.SetDefault("fixture.root_test_id", "testcase")
	v.SetDefault("fixture.busy_attribute", "aria-busy")
	v.SetDefault("fixture.ready_timeout", "10s")
	v.SetDefault("fixture.poll_interval", "50ms")

	// Query
	v.SetDefault("query.test_id_attribute", "data-testid")
	v.SetDefault("query.find_timeout", "1s")
	v.SetDefault("query.find_interval", "50ms")

	// Artifacts
	v.SetDefault("artifacts.dir", "e2e-artifacts")
	v.SetDefault("artifacts.screenshot_on_failure", true)
}

// NewConfigFromViper creates a new configuration instance from a viper object.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := cfg.expandPaths(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// FromEnv builds a configuration from defaults and E2E_* environment variables only.
// It is meant for TestMain functions, which have no cobra command to read a file for them.
func FromEnv() (*Config, error) {
	v := viper.New()
	SetDefaults(v)
	BindEnv(v)
	return NewConfigFromViper(v)
}

// BindEnv wires the E2E_ environment prefix into v.
func BindEnv(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

// expandPaths resolves '~' in every user-supplied path.
func (c *Config) expandPaths() error {
	paths := []*string{&c.Logger.LogFile, &c.Server.FixtureDir, &c.Artifacts.Dir, &c.Browser.ExecPath}
	for _, p := range paths {
		if *p == "" {
			continue
		}
		expanded, err := homedir.Expand(*p)
		if err != nil {
			return fmt.Errorf("could not expand path '%s': %w", *p, err)
		}
		*p = expanded
	}
	return nil
}

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	if c.Server.BaseURL == "" {
		return fmt.Errorf("server.base_url is required")
	}
	u, err := url.Parse(c.Server.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("server.base_url must be an absolute URL, got '%s'", c.Server.BaseURL)
	}
	if c.Navigator.MaxAttempts <= 0 {
		return fmt.Errorf("navigator.max_attempts must be a positive integer")
	}
	if c.Navigator.Backoff < 0 {
		return fmt.Errorf("navigator.backoff must not be negative")
	}
	if err := c.Fixture.Validate(); err != nil {
		return fmt.Errorf("fixture configuration invalid: %w", err)
	}
	if c.Query.TestIDAttribute == "" {
		return fmt.Errorf("query.test_id_attribute is required")
	}
	if c.Query.FindTimeout <= 0 || c.Query.FindInterval <= 0 {
		return fmt.Errorf("query.find_timeout and query.find_interval must be positive durations")
	}
	if c.Browser.ActionTimeout <= 0 || c.Browser.NavigationTimeout <= 0 {
		return fmt.Errorf("browser.action_timeout and browser.navigation_timeout must be positive durations")
	}
	return nil
}

// Validate checks the fixture addressing and readiness settings.
func (f *FixtureConfig) Validate() error {
	if !strings.HasPrefix(f.PathPrefix, "/") {
		return fmt.Errorf("path_prefix must start with '/'")
	}
	if f.RootTestID == "" || f.BusyAttribute == "" {
		return fmt.Errorf("root_test_id and busy_attribute are required")
	}
	if f.ReadyTimeout <= 0 {
		return fmt.Errorf("ready_timeout must be a positive duration")
	}
	if f.PollInterval <= 0 || f.PollInterval > f.ReadyTimeout {
		return fmt.Errorf("poll_interval must be positive and no longer than ready_timeout")
	}
	return nil
}
