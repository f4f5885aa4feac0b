// ABOUTME: Configuration loading and parsing for support-bridge
// ABOUTME: Supports YAML files with environment variable expansion and duration parsing

package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Default session timing when the config leaves it unset.
const (
	DefaultIdleTTL       = 4 * time.Hour
	DefaultSweepInterval = 10 * time.Minute
)

// Config represents the complete support-bridge configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Store     StoreConfig     `yaml:"store"`
	Channel   ChannelConfig   `yaml:"channel"`
	Chat      ChatConfig      `yaml:"chat"`
	Ticketing TicketingConfig `yaml:"ticketing"`
	Sessions  SessionsConfig  `yaml:"sessions"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// ServerConfig holds the webhook listener address.
type ServerConfig struct {
	HTTPAddr string `yaml:"http_addr"`
}

// StoreConfig holds session snapshot persistence configuration.
type StoreConfig struct {
	Path string `yaml:"path"`
}

// ChannelConfig holds the messaging-channel (WhatsApp Cloud API) settings.
type ChannelConfig struct {
	APIURL        string `yaml:"api_url"`
	PhoneNumberID string `yaml:"phone_number_id"`
	AccessToken   string `yaml:"access_token"`
	VerifyToken   string `yaml:"verify_token"`
}

// ChatConfig holds the group-chat (Zulip) settings.
type ChatConfig struct {
	APIURL   string `yaml:"api_url"`
	BotEmail string `yaml:"bot_email"`
	APIKey   string `yaml:"api_key"`
	Stream   string `yaml:"stream"`
}

// TicketingConfig holds the ticketing system (RT) settings.
type TicketingConfig struct {
	BaseURL string `yaml:"base_url"`
	Token   string `yaml:"token"`
	Queue   string `yaml:"queue"`
}

// SessionsConfig holds conversation lifecycle timing.
type SessionsConfig struct {
	IdleTTL       time.Duration `yaml:"-"`
	SweepInterval time.Duration `yaml:"-"`

	// Raw string values for YAML unmarshaling
	IdleTTLRaw       string `yaml:"idle_ttl"`
	SweepIntervalRaw string `yaml:"sweep_interval"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads a configuration file from the given path and returns a parsed Config.
// Environment variables in the format ${VAR_NAME} are expanded.
// Duration strings are parsed into time.Duration values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Expand environment variables in the raw YAML content
	expandedData := expandEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := parseDurations(&cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment
// variable values. Unset variables become empty strings.
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	if c.Server.HTTPAddr == "" {
		return fmt.Errorf("server.http_addr is required")
	}
	if c.Store.Path == "" {
		return fmt.Errorf("store.path is required")
	}
	if c.Channel.APIURL == "" {
		return fmt.Errorf("channel.api_url is required")
	}
	if c.Channel.PhoneNumberID == "" {
		return fmt.Errorf("channel.phone_number_id is required")
	}
	if c.Chat.APIURL == "" {
		return fmt.Errorf("chat.api_url is required")
	}
	if c.Chat.BotEmail == "" {
		return fmt.Errorf("chat.bot_email is required")
	}
	if c.Chat.Stream == "" {
		return fmt.Errorf("chat.stream is required")
	}
	if c.Ticketing.BaseURL == "" {
		return fmt.Errorf("ticketing.base_url is required")
	}
	return nil
}

// parseDurations converts the raw duration strings into time.Duration values,
// applying defaults where the config is silent.
func parseDurations(cfg *Config) error {
	var err error

	cfg.Sessions.IdleTTL = DefaultIdleTTL
	if cfg.Sessions.IdleTTLRaw != "" {
		cfg.Sessions.IdleTTL, err = time.ParseDuration(cfg.Sessions.IdleTTLRaw)
		if err != nil {
			return fmt.Errorf("parsing idle_ttl %q: %w", cfg.Sessions.IdleTTLRaw, err)
		}
	}

	cfg.Sessions.SweepInterval = DefaultSweepInterval
	if cfg.Sessions.SweepIntervalRaw != "" {
		cfg.Sessions.SweepInterval, err = time.ParseDuration(cfg.Sessions.SweepIntervalRaw)
		if err != nil {
			return fmt.Errorf("parsing sweep_interval %q: %w", cfg.Sessions.SweepIntervalRaw, err)
		}
	}

	return nil
}
