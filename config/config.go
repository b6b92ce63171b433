package config

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete brightmesh configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Model    ModelConfig    `yaml:"model"`
	Agent    AgentConfig    `yaml:"agent"`
	MCP      MCPConfig      `yaml:"mcp"`
	Timeouts TimeoutsConfig `yaml:"timeouts"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// ServerConfig holds the HTTP listener configuration.
type ServerConfig struct {
	Host           string   `yaml:"host"`
	Port           int      `yaml:"port"`
	Debug          bool     `yaml:"debug"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// Addr returns host:port.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// ModelConfig selects and tunes the language model provider.
type ModelConfig struct {
	Provider string `yaml:"provider"` // openai, anthropic or mock
	// Name defaults to the provider package's default model.
	Name        string  `yaml:"name"`
	Temperature float64 `yaml:"temperature"`
	MaxTokens   int64   `yaml:"max_tokens"`
	// APIKey overrides the provider's default environment variable.
	APIKey string `yaml:"api_key"`
}

// APIKeyEnv returns the environment variable the provider SDK reads its key from.
func (m ModelConfig) APIKeyEnv() string {
	switch m.Provider {
	case ProviderOpenAI:
		return "OPENAI_API_KEY"
	case ProviderAnthropic:
		return "ANTHROPIC_API_KEY"
	default:
		return ""
	}
}

// APIKeyConfigured reports whether a key is set in the config or the
// provider's environment variable.
func (m ModelConfig) APIKeyConfigured() bool {
	if m.APIKey != "" {
		return true
	}
	if env := m.APIKeyEnv(); env != "" {
		return os.Getenv(env) != ""
	}
	return false
}

// AgentConfig tunes the conversational agent.
type AgentConfig struct {
	AppName          string `yaml:"app_name"`
	MaxIterations    int    `yaml:"max_iterations"`
	MaxParallelTools int    `yaml:"max_parallel_tools"`
}

// MCPConfig describes how the tool server subprocess is launched.
type MCPConfig struct {
	Command          string        `yaml:"command"`
	Args             []string      `yaml:"args"`
	TerminateTimeout time.Duration `yaml:"terminate_timeout"`
}

// TimeoutsConfig holds the request deadlines. YAML values use Go duration
// syntax ("90s", "5m").
type TimeoutsConfig struct {
	Request    time.Duration `yaml:"request"`
	Quick      time.Duration `yaml:"quick"`
	Background time.Duration `yaml:"background"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // json, text or console
}

// Model providers.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderMock      = "mock"
)

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:           "0.0.0.0",
			Port:           8001,
			AllowedOrigins: []string{"*"},
		},
		Model: ModelConfig{
			Provider:    ProviderOpenAI,
			Temperature: 0.7,
			MaxTokens:   4096,
		},
		Agent: AgentConfig{
			AppName:       "adk_mcp_fastapi",
			MaxIterations: 10,
		},
		MCP: MCPConfig{
			Command:          "npx",
			Args:             []string{"-y", "@brightdata/mcp"},
			TerminateTimeout: time.Second,
		},
		Timeouts: TimeoutsConfig{
			Request:    90 * time.Second,
			Quick:      30 * time.Second,
			Background: 5 * time.Minute,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load reads a configuration file from the given path and returns a parsed
// Config. Missing keys keep their defaults and an empty path yields the
// defaults alone. Environment variables in the format ${VAR_NAME} are
// expanded, then the HOST, PORT, DEBUG, REQUEST_TIMEOUT, QUICK_TIMEOUT,
// MODEL_PROVIDER, MODEL_NAME and LOG_LEVEL overrides are applied.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}

		expandedData := expandEnvVars(string(data))

		if err := yaml.Unmarshal([]byte(expandedData), cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := applyEnv(cfg, os.LookupEnv); err != nil {
		return nil, fmt.Errorf("applying environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding
// environment variable values. Unset variables expand to an empty string.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		return os.Getenv(envVarPattern.FindStringSubmatch(match)[1])
	})
}

func applyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	if v, ok := lookup("HOST"); ok && v != "" {
		cfg.Server.Host = v
	}
	if v, ok := lookup("PORT"); ok && v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("PORT %q: %w", v, err)
		}
		cfg.Server.Port = port
	}
	if v, ok := lookup("DEBUG"); ok && v != "" {
		debug, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("DEBUG %q: %w", v, err)
		}
		cfg.Server.Debug = debug
	}
	if v, ok := lookup("REQUEST_TIMEOUT"); ok && v != "" {
		d, err := parseTimeout(v)
		if err != nil {
			return fmt.Errorf("REQUEST_TIMEOUT %q: %w", v, err)
		}
		cfg.Timeouts.Request = d
	}
	if v, ok := lookup("QUICK_TIMEOUT"); ok && v != "" {
		d, err := parseTimeout(v)
		if err != nil {
			return fmt.Errorf("QUICK_TIMEOUT %q: %w", v, err)
		}
		cfg.Timeouts.Quick = d
	}
	if v, ok := lookup("MODEL_PROVIDER"); ok && v != "" {
		cfg.Model.Provider = strings.ToLower(v)
	}
	if v, ok := lookup("MODEL_NAME"); ok && v != "" {
		cfg.Model.Name = v
	}
	if v, ok := lookup("LOG_LEVEL"); ok && v != "" {
		cfg.Logging.Level = v
	}
	return nil
}

// parseTimeout accepts Go durations and bare integers as seconds.
func parseTimeout(v string) (time.Duration, error) {
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Second, nil
	}
	return time.ParseDuration(v)
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d is out of range", c.Server.Port)
	}

	switch c.Model.Provider {
	case ProviderOpenAI, ProviderAnthropic, ProviderMock:
	default:
		return fmt.Errorf("model.provider %q is not one of openai, anthropic, mock", c.Model.Provider)
	}

	if c.Agent.AppName == "" {
		return fmt.Errorf("agent.app_name is required")
	}
	if c.Agent.MaxIterations < 1 {
		return fmt.Errorf("agent.max_iterations must be positive")
	}

	if c.MCP.Command == "" {
		return fmt.Errorf("mcp.command is required")
	}

	if c.Timeouts.Request <= 0 {
		return fmt.Errorf("timeouts.request must be positive")
	}
	if c.Timeouts.Quick <= 0 {
		return fmt.Errorf("timeouts.quick must be positive")
	}
	if c.Timeouts.Background <= 0 {
		return fmt.Errorf("timeouts.background must be positive")
	}

	switch c.Logging.Format {
	case "json", "text", "console":
	default:
		return fmt.Errorf("logging.format %q is not one of json, text, console", c.Logging.Format)
	}

	return nil
}
