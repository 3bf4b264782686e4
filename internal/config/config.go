package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration for signalbot.
type Config struct {
	Bot       BotConfig       `json:"bot" yaml:"bot"`
	Transport TransportConfig `json:"transport" yaml:"transport"`
	Audit     AuditConfig     `json:"audit" yaml:"audit"`
	Metrics   MetricsConfig   `json:"metrics" yaml:"metrics"`
}

type BotConfig struct {
	Username string `json:"username" yaml:"username"` // the bot's own Signal number
	LogLevel string `json:"logLevel" yaml:"logLevel"`
}

// TransportConfig selects how payloads reach the Signal daemon.
type TransportConfig struct {
	Kind      string          `json:"kind" yaml:"kind"` // "socket" | "websocket" | "redis"
	Socket    SocketConfig    `json:"socket" yaml:"socket"`
	WebSocket WebSocketConfig `json:"websocket" yaml:"websocket"`
	Redis     RedisConfig     `json:"redis" yaml:"redis"`
}

type SocketConfig struct {
	Network            string `json:"network" yaml:"network"` // "unix" | "tcp"
	Address            string `json:"address" yaml:"address"`
	DialTimeoutSeconds int    `json:"dialTimeoutSeconds" yaml:"dialTimeoutSeconds"`
}

type WebSocketConfig struct {
	URL                string `json:"url" yaml:"url"`
	Token              string `json:"token,omitempty" yaml:"token,omitempty"`
	DialTimeoutSeconds int    `json:"dialTimeoutSeconds" yaml:"dialTimeoutSeconds"`
}

type RedisConfig struct {
	URL     string `json:"url" yaml:"url"`
	Channel string `json:"channel" yaml:"channel"`
}

type AuditConfig struct {
	Enabled       bool   `json:"enabled" yaml:"enabled"`
	DBPath        string `json:"dbPath" yaml:"dbPath"`
	RetentionDays int    `json:"retentionDays" yaml:"retentionDays"`
}

type MetricsConfig struct {
	Enabled  bool   `json:"enabled" yaml:"enabled"`
	Addr     string `json:"addr" yaml:"addr"`
	Endpoint string `json:"endpoint" yaml:"endpoint"`
}

// DefaultConfigDir returns the default config directory (~/.signalbot).
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".signalbot"
	}
	return filepath.Join(home, ".signalbot")
}

func DefaultConfigPath() string {
	return filepath.Join(DefaultConfigDir(), "config.json")
}

// Load reads a JSON or YAML config file (by extension), expands ${VAR}
// references, and validates the result.
func Load(path string) (*Config, error) {
	cfg, err := LoadUnvalidated(path)
	if err != nil {
		return nil, err
	}
	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return cfg, nil
}

// LoadUnvalidated is Load without the validation step, for editing a config
// that is not complete yet.
func LoadUnvalidated(path string) (*Config, error) {
	path = ExpandPath(path)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read config file %s: %w", path, err)
	}

	data = []byte(ExpandEnvVars(string(data)))

	cfg := Defaults()
	if isYAML(path) {
		err = yaml.Unmarshal(data, cfg)
	} else {
		err = json.Unmarshal(data, cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("cannot parse config file %s: %w", path, err)
	}

	cfg.Audit.DBPath = ExpandPath(cfg.Audit.DBPath)
	if cfg.Transport.Socket.Network == "unix" {
		cfg.Transport.Socket.Address = ExpandPath(cfg.Transport.Socket.Address)
	}
	return cfg, nil
}

// envVarPattern matches ${VAR} and ${VAR:-default}.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-(.*?))?\}`)

// ExpandEnvVars replaces ${VAR} with the environment variable value.
// ${VAR:-default} uses "default" when VAR is unset or empty; an unset
// variable without default is left untouched.
func ExpandEnvVars(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		groups := envVarPattern.FindStringSubmatch(match)
		if len(groups) < 2 {
			return match
		}
		hasDefault := len(groups) >= 3 && groups[2] != ""

		if val, ok := os.LookupEnv(groups[1]); ok && val != "" {
			return val
		}
		if hasDefault {
			return groups[2]
		}
		return match
	})
}

// Save writes cfg as JSON or YAML depending on the path extension.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("cannot create config directory: %w", err)
	}

	var (
		data []byte
		err  error
	)
	if isYAML(path) {
		data, err = yaml.Marshal(cfg)
	} else {
		data, err = json.MarshalIndent(cfg, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("cannot marshal config: %w", err)
	}

	return os.WriteFile(path, data, 0o600)
}

// Validate checks every section and reports all problems at once.
func Validate(cfg *Config) error {
	var errs []string

	if strings.TrimSpace(cfg.Bot.Username) == "" {
		errs = append(errs, "bot.username is required")
	}
	switch cfg.Bot.LogLevel {
	case "", "debug", "info", "warn", "error":
	default:
		errs = append(errs, "bot.logLevel must be one of: debug, info, warn, error")
	}

	t := cfg.Transport
	switch t.Kind {
	case "socket":
		if t.Socket.Network != "unix" && t.Socket.Network != "tcp" {
			errs = append(errs, "transport.socket.network must be unix or tcp")
		}
		if t.Socket.Address == "" {
			errs = append(errs, "transport.socket.address is required")
		}
		if t.Socket.DialTimeoutSeconds < 1 {
			errs = append(errs, "transport.socket.dialTimeoutSeconds must be >= 1")
		}
	case "websocket":
		if !strings.HasPrefix(t.WebSocket.URL, "ws://") && !strings.HasPrefix(t.WebSocket.URL, "wss://") {
			errs = append(errs, "transport.websocket.url must start with ws:// or wss://")
		}
		if t.WebSocket.DialTimeoutSeconds < 1 {
			errs = append(errs, "transport.websocket.dialTimeoutSeconds must be >= 1")
		}
	case "redis":
		if t.Redis.URL == "" {
			errs = append(errs, "transport.redis.url is required")
		}
		if t.Redis.Channel == "" {
			errs = append(errs, "transport.redis.channel is required")
		}
	default:
		errs = append(errs, "transport.kind must be one of: socket, websocket, redis")
	}

	if cfg.Audit.Enabled {
		if cfg.Audit.DBPath == "" {
			errs = append(errs, "audit.dbPath is required when audit is enabled")
		}
		if cfg.Audit.RetentionDays < 1 {
			errs = append(errs, "audit.retentionDays must be >= 1")
		}
	}

	if cfg.Metrics.Enabled {
		if cfg.Metrics.Addr == "" {
			errs = append(errs, "metrics.addr is required when metrics are enabled")
		}
		if !strings.HasPrefix(cfg.Metrics.Endpoint, "/") {
			errs = append(errs, "metrics.endpoint must start with /")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// ExpandPath resolves ~/ to the user's home directory.
func ExpandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}

func isYAML(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}
