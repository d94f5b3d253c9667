package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for meetpilot.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Session   SessionConfig   `yaml:"session"`
	Processes ProcessesConfig `yaml:"processes"`
	Database  DatabaseConfig  `yaml:"database"`
	API       APIConfig       `yaml:"api"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// SessionConfig contains settings for the meeting session flow.
type SessionConfig struct {
	// MeetingURLPrefix is the prefix a meeting URL must start with.
	MeetingURLPrefix string `yaml:"meeting_url_prefix"`

	// DefaultPort is the port handed to the bot process when no --port flag
	// or PORT environment variable is present.
	DefaultPort int `yaml:"default_port"`

	// DefaultVoiceID is the voice handed to the bot when the selected persona
	// does not carry one of its own.
	DefaultVoiceID string `yaml:"default_voice_id"`
}

// ProcessesConfig contains settings for the supervised child processes.
type ProcessesConfig struct {
	// Bot is the command template for the bot worker process.
	Bot CommandConfig `yaml:"bot"`

	// Meeting is the command template for the meeting coordinator process.
	Meeting CommandConfig `yaml:"meeting"`

	// GracefulTimeout is how long to wait after terminate before force-killing (seconds).
	GracefulTimeout int `yaml:"graceful_timeout"`

	// SweepInterval is the liveness sweep cadence (seconds).
	SweepInterval int `yaml:"sweep_interval"`

	// StartupGrace is the pause between starting the bot and the meeting
	// coordinator, giving the bot time to bind its port (seconds).
	StartupGrace int `yaml:"startup_grace"`
}

// CommandConfig is a command template for a supervised process.
// Session-specific arguments (port, persona, meeting URL) are appended at start.
type CommandConfig struct {
	Binary string   `yaml:"binary"`
	Args   []string `yaml:"args"`
}

// DatabaseConfig contains SQLite settings for the persona store.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// APIConfig contains HTTP status API server settings.
type APIConfig struct {
	Enabled  bool             `yaml:"enabled"`
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
}

// APITimeoutConfig contains HTTP timeout settings.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// WebSocketConfig contains WebSocket output-stream settings.
type WebSocketConfig struct {
	Path           string `yaml:"path"`
	MaxMessageSize int    `yaml:"max_message_size"`
	PingInterval   int    `yaml:"ping_interval"`
	PongTimeout    int    `yaml:"pong_timeout"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: MEETPILOT_SECTION_KEY
// For example: MEETPILOT_DATABASE_PATH, MEETPILOT_API_HOST
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	// Start with defaults
	cfg := defaultConfig()

	// Read and parse YAML file
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	// Apply environment variable overrides
	applyEnvOverrides(cfg)

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// Default returns the built-in configuration, validated, with environment
// overrides applied. Used when no config file is present on disk.
func Default() *Config {
	cfg := defaultConfig()
	applyEnvOverrides(cfg)
	return cfg
}

// defaultConfig returns a Config with sensible defaults.
// The defaults match the original demo pipeline: poetry-run commands,
// port 8765, https-only meeting URLs, 1-second supervision timings.
func defaultConfig() *Config {
	return &Config{
		Session: SessionConfig{
			MeetingURLPrefix: "https://",
			DefaultPort:      8765,
			DefaultVoiceID:   "40104aff-a015-4da1-9912-af950fbec99e",
		},
		Processes: ProcessesConfig{
			Bot: CommandConfig{
				Binary: "poetry",
				Args:   []string{"run", "bot"},
			},
			Meeting: CommandConfig{
				Binary: "poetry",
				Args:   []string{"run", "meetingbaas"},
			},
			GracefulTimeout: 1,
			SweepInterval:   1,
			StartupGrace:    1,
		},
		Database: DatabaseConfig{
			Path:        "./data/meetpilot.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		API: APIConfig{
			Enabled: true,
			Host:    "127.0.0.1",
			Port:    8780,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		WebSocket: WebSocketConfig{
			Path:           "/ws",
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: MEETPILOT_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// Database
	if v := os.Getenv("MEETPILOT_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// API
	if v := os.Getenv("MEETPILOT_API_HOST"); v != "" {
		cfg.API.Host = v
	}
	if v := os.Getenv("MEETPILOT_API_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.API.Port = port
		}
	}

	// Session - PORT matches the original pipeline's environment contract
	if v := os.Getenv("PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Session.DefaultPort = port
		}
	}

	// Logging
	if v := os.Getenv("MEETPILOT_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	// Session validation
	if c.Session.MeetingURLPrefix == "" {
		errs = append(errs, "session.meeting_url_prefix is required")
	}
	if c.Session.DefaultPort < 1 || c.Session.DefaultPort > 65535 {
		errs = append(errs, "session.default_port must be between 1 and 65535")
	}

	// Process validation
	if c.Processes.Bot.Binary == "" {
		errs = append(errs, "processes.bot.binary is required")
	}
	if c.Processes.Meeting.Binary == "" {
		errs = append(errs, "processes.meeting.binary is required")
	}
	if c.Processes.GracefulTimeout < 1 {
		errs = append(errs, "processes.graceful_timeout must be at least 1 second")
	}
	if c.Processes.SweepInterval < 1 {
		errs = append(errs, "processes.sweep_interval must be at least 1 second")
	}

	// Database validation
	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	// API validation
	if c.API.Enabled && (c.API.Port < 1 || c.API.Port > 65535) {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// GetGracefulTimeout returns the process graceful-shutdown timeout as a Duration.
func (c *Config) GetGracefulTimeout() time.Duration {
	return time.Duration(c.Processes.GracefulTimeout) * time.Second
}

// GetSweepInterval returns the liveness sweep interval as a Duration.
func (c *Config) GetSweepInterval() time.Duration {
	return time.Duration(c.Processes.SweepInterval) * time.Second
}

// GetStartupGrace returns the pause between process starts as a Duration.
func (c *Config) GetStartupGrace() time.Duration {
	return time.Duration(c.Processes.StartupGrace) * time.Second
}

// GetReadTimeout returns the API read timeout as a Duration.
func (c *Config) GetReadTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the API write timeout as a Duration.
func (c *Config) GetWriteTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the API idle timeout as a Duration.
func (c *Config) GetIdleTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Idle) * time.Second
}
