package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/samsaffron/workbench/internal/tools"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes environment overrides, e.g. WORKBENCH_BACKEND_MODEL.
const EnvPrefix = "WORKBENCH"

type Config struct {
	Workspace WorkspaceConfig `mapstructure:"workspace" yaml:"workspace"`
	Backend   BackendConfig   `mapstructure:"backend" yaml:"backend"`
	Serve     ServeConfig     `mapstructure:"serve" yaml:"serve"`
	LogLevel  string          `mapstructure:"log_level" yaml:"log_level"`
}

// WorkspaceConfig configures the sandboxed directory and tool limits.
type WorkspaceConfig struct {
	Root         string   `mapstructure:"root" yaml:"root"`
	Ignore       []string `mapstructure:"ignore" yaml:"ignore"`
	MaxReadBytes int64    `mapstructure:"max_read_bytes" yaml:"max_read_bytes"`
	MaxMatches   int      `mapstructure:"max_matches" yaml:"max_matches"`
}

// Backend providers.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderGemini    = "gemini"
)

var defaultModels = map[string]string{
	ProviderOpenAI:    "gpt-4o-mini",
	ProviderAnthropic: "claude-sonnet-4-5",
	ProviderGemini:    "gemini-2.5-flash",
}

// BackendConfig configures the model endpoint. provider openai covers any
// OpenAI-compatible server via base_url.
type BackendConfig struct {
	Provider    string        `mapstructure:"provider" yaml:"provider"`
	BaseURL     string        `mapstructure:"base_url" yaml:"base_url,omitempty"`
	APIKey      string        `mapstructure:"api_key" yaml:"api_key,omitempty"`
	Model       string        `mapstructure:"model" yaml:"model"`
	Temperature *float64      `mapstructure:"temperature" yaml:"temperature,omitempty"`
	MaxTokens   int           `mapstructure:"max_tokens" yaml:"max_tokens"`
	Timeout     time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// ServeConfig configures `workbench serve` and the client that talks to it.
type ServeConfig struct {
	Host        string   `mapstructure:"host" yaml:"host"`
	Port        int      `mapstructure:"port" yaml:"port"`
	Token       string   `mapstructure:"token" yaml:"token,omitempty"`
	CORSOrigins []string `mapstructure:"cors_origins" yaml:"cors_origins,omitempty"`
	MaxConns    int      `mapstructure:"max_conns" yaml:"max_conns"`
}

// Addr returns host:port.
func (s ServeConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// URL returns the base URL a local client should use.
func (s ServeConfig) URL() string {
	host := s.Host
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "127.0.0.1"
	}
	return fmt.Sprintf("http://%s:%d", host, s.Port)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("workspace.root", ".")
	v.SetDefault("workspace.ignore", tools.DefaultIgnorePatterns())
	v.SetDefault("workspace.max_read_bytes", 200000)
	v.SetDefault("workspace.max_matches", 200)
	v.SetDefault("backend.provider", ProviderOpenAI)
	v.SetDefault("backend.base_url", "")
	v.SetDefault("backend.api_key", "")
	v.SetDefault("backend.model", "")
	v.SetDefault("backend.max_tokens", 4096)
	v.SetDefault("backend.timeout", "10m")
	v.SetDefault("serve.host", "127.0.0.1")
	v.SetDefault("serve.port", 8765)
	v.SetDefault("serve.token", "")
	v.SetDefault("serve.cors_origins", []string{})
	v.SetDefault("serve.max_conns", 0)
	v.SetDefault("log_level", "info")
}

// Load reads configuration. An explicit path must exist; otherwise
// config.yaml is looked up in the config dir and the working directory and
// is optional. Environment variables override file values.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	if path != "" {
		v.SetConfigFile(path)
	} else {
		configDir, err := GetConfigDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get config dir: %w", err)
		}
		v.SetConfigName("config")
		v.AddConfigPath(configDir)
		v.AddConfigPath(".")
	}

	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || path != "" {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if v.IsSet("backend.temperature") {
		t := v.GetFloat64("backend.temperature")
		cfg.Backend.Temperature = &t
	}

	cfg.Backend.Provider = strings.ToLower(cfg.Backend.Provider)
	resolveBackendCredentials(&cfg.Backend)
	if cfg.Backend.Model == "" {
		cfg.Backend.Model = cfg.Backend.DefaultModel()
	}
	cfg.Serve.Token = expandEnv(cfg.Serve.Token)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Defaults returns the built-in configuration, ignoring files and the
// environment.
func Defaults() (*Config, error) {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal defaults: %w", err)
	}
	cfg.Backend.Model = cfg.Backend.DefaultModel()
	return &cfg, nil
}

// Validate checks values viper cannot type-check.
func (c *Config) Validate() error {
	if c.Workspace.Root == "" {
		return fmt.Errorf("workspace.root must not be empty")
	}
	if c.Workspace.MaxReadBytes <= 0 {
		return fmt.Errorf("workspace.max_read_bytes must be positive")
	}
	if c.Workspace.MaxMatches <= 0 {
		return fmt.Errorf("workspace.max_matches must be positive")
	}
	if _, ok := defaultModels[c.Backend.Provider]; !ok {
		return fmt.Errorf("backend.provider must be openai, anthropic or gemini, got %q", c.Backend.Provider)
	}
	if c.Backend.MaxTokens <= 0 {
		return fmt.Errorf("backend.max_tokens must be positive")
	}
	if t := c.Backend.Temperature; t != nil && (*t < 0 || *t > 2) {
		return fmt.Errorf("backend.temperature must be between 0 and 2")
	}
	if c.Serve.Port < 0 || c.Serve.Port > 65535 {
		return fmt.Errorf("serve.port out of range: %d", c.Serve.Port)
	}
	if c.Serve.MaxConns < 0 {
		return fmt.Errorf("serve.max_conns must not be negative")
	}
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log_level must be debug, info, warn or error")
	}
	return nil
}

// DefaultModel returns the model used when backend.model is unset.
func (b BackendConfig) DefaultModel() string {
	return defaultModels[b.Provider]
}

// providerKeyEnv lists the conventional API key variables per provider.
var providerKeyEnv = map[string][]string{
	ProviderOpenAI:    {"OPENAI_API_KEY"},
	ProviderAnthropic: {"ANTHROPIC_API_KEY"},
	ProviderGemini:    {"GEMINI_API_KEY", "GOOGLE_API_KEY"},
}

// resolveBackendCredentials expands ${VAR} references and falls back to the
// provider's conventional key variable.
func resolveBackendCredentials(cfg *BackendConfig) {
	cfg.APIKey = expandEnv(cfg.APIKey)
	for _, name := range providerKeyEnv[cfg.Provider] {
		if cfg.APIKey != "" {
			break
		}
		cfg.APIKey = os.Getenv(name)
	}
	cfg.BaseURL = expandEnv(cfg.BaseURL)
}

// expandEnv expands ${VAR} or $VAR in a string
func expandEnv(s string) string {
	if strings.HasPrefix(s, "${") && strings.HasSuffix(s, "}") {
		varName := s[2 : len(s)-1]
		return os.Getenv(varName)
	}
	if strings.HasPrefix(s, "$") {
		return os.Getenv(s[1:])
	}
	return s
}

// Redacted returns a copy safe to print.
func (c Config) Redacted() Config {
	out := c
	out.Backend.APIKey = redact(c.Backend.APIKey)
	out.Serve.Token = redact(c.Serve.Token)
	return out
}

func redact(secret string) string {
	if secret == "" {
		return ""
	}
	if len(secret) <= 8 {
		return "****"
	}
	return secret[:4] + "****"
}

// Marshal renders the config as YAML.
func (c Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}

// GetConfigDir returns the XDG config directory for workbench.
// Uses $XDG_CONFIG_HOME if set, otherwise ~/.config
func GetConfigDir() (string, error) {
	if xdgHome := os.Getenv("XDG_CONFIG_HOME"); xdgHome != "" {
		return filepath.Join(xdgHome, "workbench"), nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(homeDir, ".config", "workbench"), nil
}

// GetConfigPath returns the path where the config file should be located
func GetConfigPath() (string, error) {
	configDir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "config.yaml"), nil
}

// Save writes cfg to path as YAML, creating the directory if needed.
func Save(cfg *Config, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := cfg.Marshal()
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return os.WriteFile(path, data, 0600)
}
