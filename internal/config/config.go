package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the Personaliz assistant.
type Config struct {
	Port      int             `yaml:"port"`
	Version   string          `yaml:"version"`
	LogLevel  string          `yaml:"log_level"`
	Paths     PathsConfig     `yaml:"paths"`
	Host      HostConfig      `yaml:"host"`
	LLM       LLMConfig       `yaml:"llm"`
	Assistant AssistantConfig `yaml:"assistant"`
	Events    EventsConfig    `yaml:"events"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Auth      AuthConfig      `yaml:"auth"`
}

type PathsConfig struct {
	// DataDir holds settings.json and the SQLite database.
	DataDir string `yaml:"data_dir"`
	DBPath  string `yaml:"db_path"`
	// Store selects the agent store backend: "sqlite" or "memory".
	Store string `yaml:"store"`
	// AgentsDir receives one JSON file per approved agent.
	AgentsDir string `yaml:"agents_dir"`
	// ProjectDir is the working directory of synthesized agents.
	ProjectDir string `yaml:"project_dir"`
	// ScriptsDir holds the Node.js worker scripts.
	ScriptsDir string `yaml:"scripts_dir"`
}

// HostConfig describes the external agent runtime that picks up agent files.
type HostConfig struct {
	Dir          string        `yaml:"dir"`
	StartCommand string        `yaml:"start_command"`
	StopCommand  string        `yaml:"stop_command"`
	RestartDelay time.Duration `yaml:"restart_delay"`
}

type LLMConfig struct {
	Timeout       time.Duration `yaml:"timeout"`
	RatePerMinute int           `yaml:"rate_per_minute"`
	OpenAIBaseURL string        `yaml:"openai_base_url"`
	ClaudeBaseURL string        `yaml:"claude_base_url"`
}

type AssistantConfig struct {
	// MaxClarifications bounds follow-up questions in the agent builder.
	// Zero means unbounded.
	MaxClarifications int  `yaml:"max_clarifications"`
	SandboxDefault    bool `yaml:"sandbox_default"`
}

type EventsConfig struct {
	Enabled      bool          `yaml:"enabled"`
	PollInterval time.Duration `yaml:"poll_interval"`
}

type TelemetryConfig struct {
	Enabled      bool   `yaml:"enabled"`
	OTLPEndpoint string `yaml:"otlp_endpoint"`
	ServiceName  string `yaml:"service_name"`
}

type AuthConfig struct {
	// APIKeys guards the local HTTP API. Empty disables the check.
	APIKeys []string `yaml:"api_keys"`
}

// Defaults returns the built-in configuration.
func Defaults() *Config {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	data := filepath.Join(home, ".personaliz")
	return &Config{
		Port:     7420,
		Version:  "0.1.0",
		LogLevel: "info",
		Paths: PathsConfig{
			DataDir:    data,
			Store:      "sqlite",
			DBPath:     filepath.Join(data, "personaliz.db"),
			AgentsDir:  ".agents",
			ProjectDir: ".",
			ScriptsDir: ".",
		},
		Host: HostConfig{
			Dir:          filepath.Join(home, "openclaw"),
			StartCommand: "npx openclaw start",
			StopCommand:  "pkill -f openclaw",
			RestartDelay: time.Second,
		},
		LLM: LLMConfig{
			Timeout:       60 * time.Second,
			RatePerMinute: 0,
			OpenAIBaseURL: "https://api.openai.com/v1",
			ClaudeBaseURL: "https://api.anthropic.com",
		},
		Events: EventsConfig{
			Enabled:      true,
			PollInterval: 10 * time.Second,
		},
		Telemetry: TelemetryConfig{
			Enabled:      false,
			OTLPEndpoint: "localhost:4317",
			ServiceName:  "personaliz-assistant",
		},
	}
}

// Load builds the configuration from defaults, an optional YAML file named by
// PERSONALIZ_CONFIG, and environment variables, in that order of precedence.
func Load() (*Config, error) {
	cfg := Defaults()

	if path := os.Getenv("PERSONALIZ_CONFIG"); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	cfg.Port = envInt("PERSONALIZ_PORT", cfg.Port)
	cfg.Version = envStr("PERSONALIZ_VERSION", cfg.Version)
	cfg.LogLevel = envStr("PERSONALIZ_LOG_LEVEL", cfg.LogLevel)

	cfg.Paths.DataDir = envStr("PERSONALIZ_DATA_DIR", cfg.Paths.DataDir)
	cfg.Paths.Store = envStr("PERSONALIZ_STORE", cfg.Paths.Store)
	cfg.Paths.DBPath = envStr("PERSONALIZ_DB_PATH", cfg.Paths.DBPath)
	cfg.Paths.AgentsDir = envStr("PERSONALIZ_AGENTS_DIR", cfg.Paths.AgentsDir)
	cfg.Paths.ProjectDir = envStr("PROJECT_PATH", cfg.Paths.ProjectDir)
	cfg.Paths.ScriptsDir = envStr("PERSONALIZ_SCRIPTS_DIR", cfg.Paths.ScriptsDir)

	cfg.Host.Dir = envStr("OPENCLAW_DIR", cfg.Host.Dir)
	cfg.Host.StartCommand = envStr("OPENCLAW_START_COMMAND", cfg.Host.StartCommand)
	cfg.Host.StopCommand = envStr("OPENCLAW_STOP_COMMAND", cfg.Host.StopCommand)
	cfg.Host.RestartDelay = envDuration("OPENCLAW_RESTART_DELAY", cfg.Host.RestartDelay)

	cfg.LLM.Timeout = envDuration("PERSONALIZ_LLM_TIMEOUT", cfg.LLM.Timeout)
	cfg.LLM.RatePerMinute = envInt("PERSONALIZ_LLM_RATE_PER_MINUTE", cfg.LLM.RatePerMinute)
	cfg.LLM.OpenAIBaseURL = envStr("OPENAI_BASE_URL", cfg.LLM.OpenAIBaseURL)
	cfg.LLM.ClaudeBaseURL = envStr("ANTHROPIC_BASE_URL", cfg.LLM.ClaudeBaseURL)

	cfg.Assistant.MaxClarifications = envInt("PERSONALIZ_MAX_CLARIFICATIONS", cfg.Assistant.MaxClarifications)
	cfg.Assistant.SandboxDefault = envBool("PERSONALIZ_SANDBOX", cfg.Assistant.SandboxDefault)

	cfg.Events.Enabled = envBool("PERSONALIZ_EVENTS_ENABLED", cfg.Events.Enabled)
	cfg.Events.PollInterval = envDuration("PERSONALIZ_EVENTS_INTERVAL", cfg.Events.PollInterval)

	cfg.Telemetry.Enabled = envBool("OTEL_ENABLED", cfg.Telemetry.Enabled)
	cfg.Telemetry.OTLPEndpoint = envStr("OTEL_EXPORTER_OTLP_ENDPOINT", cfg.Telemetry.OTLPEndpoint)
	cfg.Telemetry.ServiceName = envStr("OTEL_SERVICE_NAME", cfg.Telemetry.ServiceName)

	if v := os.Getenv("PERSONALIZ_API_KEYS"); v != "" {
		cfg.Auth.APIKeys = splitList(v)
	}

	if cfg.Port <= 0 || cfg.Port > 65535 {
		return nil, fmt.Errorf("invalid port %d", cfg.Port)
	}
	if cfg.Paths.Store != "sqlite" && cfg.Paths.Store != "memory" {
		return nil, fmt.Errorf("unknown store backend %q", cfg.Paths.Store)
	}
	if cfg.Events.PollInterval <= 0 {
		return nil, fmt.Errorf("invalid events poll interval %s", cfg.Events.PollInterval)
	}
	return cfg, nil
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func splitList(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
