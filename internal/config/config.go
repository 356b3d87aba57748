// ABOUTME: Configuration loading and parsing for the concierge dispatch server.
// ABOUTME: Supports YAML files with environment variable expansion and duration parsing.

package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete concierge configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Auth     AuthConfig     `yaml:"auth"`
	Database DatabaseConfig `yaml:"database"`
	Dispatch DispatchConfig `yaml:"dispatch"`
	Execlog  ExeclogConfig  `yaml:"execlog"`
	Upstream UpstreamConfig `yaml:"upstream"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// ServerConfig holds the HTTP listen address.
type ServerConfig struct {
	HTTPAddr string `yaml:"http_addr"`
}

// AuthConfig holds transport authentication configuration.
type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret"`
}

// DatabaseConfig holds the execution log database location.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// DispatchConfig holds handler deadline configuration.
type DispatchConfig struct {
	HandlerTimeout time.Duration `yaml:"-"`
	// CapabilityTimeouts overrides the deadline per capability name.
	CapabilityTimeouts map[string]time.Duration `yaml:"-"`

	// Raw string values for YAML unmarshaling.
	HandlerTimeoutRaw     string            `yaml:"handler_timeout"`
	CapabilityTimeoutsRaw map[string]string `yaml:"capability_timeouts"`
}

// ExeclogConfig controls the execution logger queue.
type ExeclogConfig struct {
	QueueSize int `yaml:"queue_size"`
}

// UpstreamConfig holds the collaborator service endpoints.
type UpstreamConfig struct {
	MessageStoreURL string `yaml:"message_store_url"`
	MembershipURL   string `yaml:"membership_url"`
	RetrievalURL    string `yaml:"retrieval_url"`
	GenerationURL   string `yaml:"generation_url"`
	CalendarURL     string `yaml:"calendar_url"`

	RequestTimeout    time.Duration `yaml:"-"`
	RequestTimeoutRaw string        `yaml:"request_timeout"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads a configuration file from the given path and returns a parsed
// Config. Environment variables in the format ${VAR_NAME} are expanded.
// Duration strings are parsed into time.Duration values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	expandedData := expandEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := parseDurations(&cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding
// environment variable values. Unset variables expand to the empty string.
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

func (c *Config) applyDefaults() {
	if c.Server.HTTPAddr == "" {
		c.Server.HTTPAddr = ":8080"
	}
	if c.Dispatch.HandlerTimeout == 0 {
		c.Dispatch.HandlerTimeout = 2 * time.Second
	}
	if c.Execlog.QueueSize == 0 {
		c.Execlog.QueueSize = 256
	}
	if c.Upstream.RequestTimeout == 0 {
		c.Upstream.RequestTimeout = 10 * time.Second
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
}

// Validate checks that all required configuration fields are present and
// valid. Returns an error describing the first validation failure.
func (c *Config) Validate() error {
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret is required")
	}
	if len(c.Auth.JWTSecret) < 32 {
		return fmt.Errorf("auth.jwt_secret must be at least 32 bytes")
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	if c.Dispatch.HandlerTimeout < 0 {
		return fmt.Errorf("dispatch.handler_timeout must be positive")
	}
	return nil
}

// parseDurations converts the raw duration strings into time.Duration values.
func parseDurations(cfg *Config) error {
	var err error

	if cfg.Dispatch.HandlerTimeoutRaw != "" {
		cfg.Dispatch.HandlerTimeout, err = time.ParseDuration(cfg.Dispatch.HandlerTimeoutRaw)
		if err != nil {
			return fmt.Errorf("parsing handler_timeout %q: %w", cfg.Dispatch.HandlerTimeoutRaw, err)
		}
	}

	if len(cfg.Dispatch.CapabilityTimeoutsRaw) > 0 {
		cfg.Dispatch.CapabilityTimeouts = make(map[string]time.Duration, len(cfg.Dispatch.CapabilityTimeoutsRaw))
		for name, raw := range cfg.Dispatch.CapabilityTimeoutsRaw {
			d, err := time.ParseDuration(raw)
			if err != nil {
				return fmt.Errorf("parsing capability_timeouts.%s %q: %w", name, raw, err)
			}
			cfg.Dispatch.CapabilityTimeouts[name] = d
		}
	}

	if cfg.Upstream.RequestTimeoutRaw != "" {
		cfg.Upstream.RequestTimeout, err = time.ParseDuration(cfg.Upstream.RequestTimeoutRaw)
		if err != nil {
			return fmt.Errorf("parsing request_timeout %q: %w", cfg.Upstream.RequestTimeoutRaw, err)
		}
	}

	return nil
}
