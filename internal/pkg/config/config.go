package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// DefaultPath is read when Load is given an empty path. A missing file is not an error.
const DefaultPath = "config.yaml"

// EnvPrefix prefixes every environment override, e.g. INTERVIEW_ORACLE__MODEL.
const EnvPrefix = "INTERVIEW_"

type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Log       LogConfig       `koanf:"log"`
	Oracle    OracleConfig    `koanf:"oracle"`
	Generator GeneratorConfig `koanf:"generator"`
	Sessions  SessionsConfig  `koanf:"sessions"`
	Anticheat AnticheatConfig `koanf:"anticheat"`
	Telemetry TelemetryConfig `koanf:"telemetry"`
}

type ServerConfig struct {
	Port           int           `koanf:"port"`
	RequestTimeout time.Duration `koanf:"request_timeout"`
	CORSOrigins    []string      `koanf:"cors_origins"`
}

type LogConfig struct {
	Level string `koanf:"level"` // debug, info, warn, error
}

// OracleConfig points at the chat endpoint used for code analysis.
type OracleConfig struct {
	BaseURL         string        `koanf:"base_url"`
	Path            string        `koanf:"path"`
	Model           string        `koanf:"model"`
	APIKey          string        `koanf:"api_key"`
	Timeout         time.Duration `koanf:"timeout"`
	MaxPromptTokens int           `koanf:"max_prompt_tokens"` // 0 disables the budget
}

// GeneratorConfig describes the external task generator and its file contract.
// InputFile and OutputFile are resolved relative to WorkDir.
type GeneratorConfig struct {
	Command    string        `koanf:"command"`
	Args       []string      `koanf:"args"`
	WorkDir    string        `koanf:"work_dir"`
	InputFile  string        `koanf:"input_file"`
	OutputFile string        `koanf:"output_file"`
	Timeout    time.Duration `koanf:"timeout"`
	Isolate    bool          `koanf:"isolate"` // run each call in a private directory
}

type SessionsConfig struct {
	MaxSessions   int `koanf:"max_sessions"`
	MaxInterviews int `koanf:"max_interviews"`
}

type AnticheatConfig struct {
	Sink       string        `koanf:"sink"` // log, sqlite
	SQLitePath string        `koanf:"sqlite_path"`
	Webhook    WebhookConfig `koanf:"webhook"`
}

// WebhookConfig forwards anti-cheat events to an external endpoint when URL is set.
type WebhookConfig struct {
	URL          string            `koanf:"url"`
	Timeout      time.Duration     `koanf:"timeout"`
	Retries      int               `koanf:"retries"`
	Headers      map[string]string `koanf:"headers"`
	BlockPrivate bool              `koanf:"block_private"`
}

type TelemetryConfig struct {
	Enabled     bool   `koanf:"enabled"`
	ServiceName string `koanf:"service_name"`
}

var defaults = map[string]any{
	"server.port":               8080,
	"server.request_timeout":    "15m",
	"server.cors_origins":       []string{"*"},
	"log.level":                 "info",
	"oracle.base_url":           "http://localhost:11434",
	"oracle.path":               "/api/chat",
	"oracle.model":              "qwen2-32b-awq",
	"oracle.timeout":            "60s",
	"generator.command":         "python3",
	"generator.args":            []string{"generation.py"},
	"generator.work_dir":        ".",
	"generator.input_file":      "vacancy.txt",
	"generator.output_file":     "generated_tasks.json",
	"generator.timeout":         "10m",
	"sessions.max_sessions":     10000,
	"sessions.max_interviews":   1000,
	"anticheat.sink":            "log",
	"anticheat.sqlite_path":     "./data/anticheat.db",
	"anticheat.webhook.timeout": "5s",
	"telemetry.service_name":    "interview-gateway",
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// Load reads path (or DefaultPath when empty), overlays INTERVIEW_* environment
// variables and fills in defaults.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	explicit := path != ""
	if !explicit {
		path = DefaultPath
	}

	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		// File not found is OK unless the caller asked for it, we'll use env vars
		if explicit || !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", path, err)
		}
	}

	// Load environment variables (can override file config)
	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.Replace(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "__", ".", -1)
	}), nil); err != nil {
		return nil, err
	}

	for key, value := range defaults {
		if !k.Exists(key) {
			if err := k.Set(key, value); err != nil {
				return nil, fmt.Errorf("set default %s: %w", key, err)
			}
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, err
	}

	cfg.Oracle.APIKey = substituteEnvVars(cfg.Oracle.APIKey)
	for name, value := range cfg.Anticheat.Webhook.Headers {
		cfg.Anticheat.Webhook.Headers[name] = substituteEnvVars(value)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate rejects configurations the server cannot run with.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Server.RequestTimeout <= 0 {
		return fmt.Errorf("server.request_timeout must be positive")
	}
	if c.Oracle.Timeout <= 0 {
		return fmt.Errorf("oracle.timeout must be positive")
	}
	if c.Oracle.MaxPromptTokens < 0 {
		return fmt.Errorf("oracle.max_prompt_tokens must not be negative")
	}
	if strings.TrimSpace(c.Generator.Command) == "" {
		return fmt.Errorf("generator.command is required")
	}
	if c.Generator.Timeout <= 0 {
		return fmt.Errorf("generator.timeout must be positive")
	}
	if c.Generator.InputFile == "" || c.Generator.OutputFile == "" {
		return fmt.Errorf("generator.input_file and generator.output_file are required")
	}
	if c.Anticheat.Webhook.Retries < 0 {
		return fmt.Errorf("anticheat.webhook.retries must not be negative")
	}
	switch c.Anticheat.Sink {
	case "log", "sqlite":
	default:
		return fmt.Errorf("anticheat.sink must be log or sqlite, got %q", c.Anticheat.Sink)
	}
	return nil
}

func substituteEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		// Extract variable name from ${VAR_NAME}
		varName := envVarPattern.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}
