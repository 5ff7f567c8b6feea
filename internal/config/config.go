// Package config loads the gateway configuration from YAML with
// environment variable expansion.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the main configuration structure for the Rickbot gateway.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Auth      AuthConfig      `yaml:"auth"`
	RateLimit RateLimitConfig `yaml:"ratelimit"`
	Sessions  SessionsConfig  `yaml:"sessions"`
	Personas  PersonasConfig  `yaml:"personas"`
	Roles     RolesConfig     `yaml:"roles"`
	Artifacts ArtifactsConfig `yaml:"artifacts"`
	Agent     AgentConfig     `yaml:"agent"`
	Logging   LoggingConfig   `yaml:"logging"`
}

type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

type AuthConfig struct {
	// AllowMock gates acceptance of mock:<id>:<email>:<name> tokens.
	// Must stay off outside development.
	AllowMock bool             `yaml:"allow_mock"`
	Google    GoogleAuthConfig `yaml:"google"`
	GitHub    GitHubAuthConfig `yaml:"github"`
}

type GoogleAuthConfig struct {
	ClientID string `yaml:"client_id"`
	// JWKSURL overrides the Google certs endpoint, for tests.
	JWKSURL string `yaml:"jwks_url"`
}

type GitHubAuthConfig struct {
	Enabled bool `yaml:"enabled"`
	// APIBase overrides the GitHub API base URL, for tests.
	APIBase string `yaml:"api_base"`
}

type RateLimitConfig struct {
	Enabled bool         `yaml:"enabled"`
	Global  WindowConfig `yaml:"global"`
	Chat    WindowConfig `yaml:"chat"`
}

type WindowConfig struct {
	Limit  int           `yaml:"limit"`
	Window time.Duration `yaml:"window"`
}

type SessionsConfig struct {
	AppID string `yaml:"app_id"`
}

type PersonasConfig struct {
	Path       string `yaml:"path"`
	PromptsDir string `yaml:"prompts_dir"`
	Default    string `yaml:"default"`
	// AllowMissingPrompts substitutes a placeholder system instruction
	// when a persona's prompt file is absent. Test/dev only.
	AllowMissingPrompts bool `yaml:"allow_missing_prompts"`
}

type RolesConfig struct {
	Backend string `yaml:"backend"` // "badger" or "memory"
	Path    string `yaml:"path"`
}

type ArtifactsConfig struct {
	Backend string `yaml:"backend"` // "local" or "memory"
	Dir     string `yaml:"dir"`
}

type AgentConfig struct {
	Model   string        `yaml:"model"`
	Timeout time.Duration `yaml:"timeout"`
	APIKey  string        `yaml:"api_key"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads and parses the configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	// Expand ${VAR} references so secrets stay out of the file.
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	applyDefaults(&cfg)
	return &cfg, nil
}

// Default returns a configuration with all defaults applied.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Auth.Google.JWKSURL == "" {
		cfg.Auth.Google.JWKSURL = "https://www.googleapis.com/oauth2/v3/certs"
	}
	if cfg.Auth.GitHub.APIBase == "" {
		cfg.Auth.GitHub.APIBase = "https://api.github.com"
	}
	if cfg.RateLimit.Global.Limit == 0 {
		cfg.RateLimit.Global.Limit = 60
	}
	if cfg.RateLimit.Global.Window == 0 {
		cfg.RateLimit.Global.Window = time.Minute
	}
	if cfg.RateLimit.Chat.Limit == 0 {
		cfg.RateLimit.Chat.Limit = 10
	}
	if cfg.RateLimit.Chat.Window == 0 {
		cfg.RateLimit.Chat.Window = time.Minute
	}
	if cfg.Sessions.AppID == "" {
		cfg.Sessions.AppID = "rickbot"
	}
	if cfg.Personas.Path == "" {
		cfg.Personas.Path = "data/personalities.yaml"
	}
	if cfg.Personas.PromptsDir == "" {
		cfg.Personas.PromptsDir = "data/system_prompts"
	}
	if cfg.Personas.Default == "" {
		cfg.Personas.Default = "Rick"
	}
	if cfg.Roles.Backend == "" {
		cfg.Roles.Backend = "badger"
	}
	if cfg.Roles.Path == "" {
		cfg.Roles.Path = "data/roles"
	}
	if cfg.Artifacts.Backend == "" {
		cfg.Artifacts.Backend = "local"
	}
	if cfg.Artifacts.Dir == "" {
		cfg.Artifacts.Dir = "data/artifacts"
	}
	if cfg.Agent.Model == "" {
		cfg.Agent.Model = "gemini-2.0-flash"
	}
	if cfg.Agent.Timeout == 0 {
		cfg.Agent.Timeout = 60 * time.Second
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
}
