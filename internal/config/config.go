// Package config loads the server configuration.
//
// Sources are layered with koanf, later ones overriding earlier ones:
//
//  1. built-in defaults (Defaults)
//  2. an optional YAML file (--config)
//  3. environment variables prefixed with SNIPPETS_
//
// Environment names are the section and key joined by an underscore:
// SNIPPETS_HTTP_PORT sets http.port and SNIPPETS_AUTH_JWT_SECRET sets
// auth.jwt_secret. List values are comma separated.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/maps"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/sakif/snippet-api/internal/model"
	"github.com/sakif/snippet-api/internal/pagination"
)

// DefaultEnvPrefix is the prefix of every environment variable we read.
const DefaultEnvPrefix = "SNIPPETS_"

// Config is the root configuration.
type Config struct {
	HTTP       HTTPConfig       `koanf:"http"`
	Database   DatabaseConfig   `koanf:"database"`
	Pagination PaginationConfig `koanf:"pagination"`
	Auth       AuthConfig       `koanf:"auth"`
	Log        LogConfig        `koanf:"log"`
	RateLimit  RateLimitConfig  `koanf:"ratelimit"`
	Executor   ExecutorConfig   `koanf:"executor"`
}

type HTTPConfig struct {
	Port            int           `koanf:"port"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	IdleTimeout     time.Duration `koanf:"idle_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

type DatabaseConfig struct {
	// Path is a file path, or ":memory:" for a throwaway database.
	Path string `koanf:"path"`
}

type PaginationConfig struct {
	PageSize int `koanf:"page_size"`
}

// AuthConfig configures tokens and the optional GitHub login.
type AuthConfig struct {
	// JWTSecret signs session tokens. When empty the server generates a
	// random one at startup, so tokens do not survive a restart.
	JWTSecret    string        `koanf:"jwt_secret"`
	TokenTTL     time.Duration `koanf:"token_ttl"`
	CookieSecure bool          `koanf:"cookie_secure"`
	// PasswordCost is the bcrypt work factor for new password hashes.
	PasswordCost int `koanf:"password_cost"`

	// GitHub login is enabled only when both client id and secret are set.
	GitHubClientID     string `koanf:"github_client_id"`
	GitHubClientSecret string `koanf:"github_client_secret"`
	GitHubCallbackURL  string `koanf:"github_callback_url"`
}

// GitHubEnabled reports whether the OAuth routes should be mounted.
func (a AuthConfig) GitHubEnabled() bool {
	return a.GitHubClientID != "" && a.GitHubClientSecret != ""
}

type LogConfig struct {
	Level  string `koanf:"level"`  // debug, info, warn, error
	Format string `koanf:"format"` // text or json
}

// RateLimitConfig throttles write requests per client IP.
type RateLimitConfig struct {
	Enabled bool    `koanf:"enabled"`
	RPS     float64 `koanf:"rps"`
	Burst   int     `koanf:"burst"`
}

// ExecutorConfig configures the Docker sandbox behind POST /snippets/{id}/run.
type ExecutorConfig struct {
	Enabled bool   `koanf:"enabled"`
	Image   string `koanf:"image"`
	// Command is run inside the container with the snippet's code appended
	// as the last argument, e.g. ["python", "-c"].
	Command   []string      `koanf:"command"`
	Languages []string      `koanf:"languages"`
	MemoryMB  int64         `koanf:"memory_mb"`
	CPUs      float64       `koanf:"cpus"`
	Timeout   time.Duration `koanf:"timeout"`
	PoolSize  int           `koanf:"pool_size"`
}

// Defaults returns the built-in configuration as a flat koanf map.
func Defaults() map[string]any {
	return map[string]any{
		"http.port":             8080,
		"http.read_timeout":     "15s",
		"http.write_timeout":    "15s",
		"http.idle_timeout":     "60s",
		"http.shutdown_timeout": "30s",

		"database.path": "data/snippets.db",

		"pagination.page_size": 10,

		"auth.jwt_secret":           "",
		"auth.token_ttl":            "24h",
		"auth.cookie_secure":        false,
		"auth.password_cost":        12,
		"auth.github_client_id":     "",
		"auth.github_client_secret": "",
		"auth.github_callback_url":  "http://localhost:8080/auth/github/callback",

		"log.level":  "info",
		"log.format": "text",

		"ratelimit.enabled": true,
		"ratelimit.rps":     5.0,
		"ratelimit.burst":   10,

		"executor.enabled":   false,
		"executor.image":     "python:3.12-alpine",
		"executor.command":   []string{"python", "-c"},
		"executor.languages": []string{"python"},
		"executor.memory_mb": 128,
		"executor.cpus":      0.5,
		"executor.timeout":   "5s",
		"executor.pool_size": 3,
	}
}

// listKeys are split on commas when they come from the environment.
var listKeys = map[string]bool{
	"executor.command":   true,
	"executor.languages": true,
}

// Loader loads configuration from defaults, a file and the environment.
type Loader struct {
	k         *koanf.Koanf
	envPrefix string
	filePath  string
}

// Option configures a Loader.
type Option func(*Loader)

// WithEnvPrefix overrides DefaultEnvPrefix.
func WithEnvPrefix(prefix string) Option {
	return func(l *Loader) {
		l.envPrefix = prefix
	}
}

// WithConfigFile adds a YAML file between the defaults and the environment.
func WithConfigFile(path string) Option {
	return func(l *Loader) {
		l.filePath = path
	}
}

func NewLoader(opts ...Option) *Loader {
	l := &Loader{
		k:         koanf.New("."),
		envPrefix: DefaultEnvPrefix,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load reads every source, unmarshals the result and validates it.
func (l *Loader) Load() (*Config, error) {
	if err := l.k.Load(mapProvider(Defaults()), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if l.filePath != "" {
		if err := l.k.Load(file.Provider(l.filePath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", l.filePath, err)
		}
	}

	if err := l.k.Load(env.ProviderWithValue(l.envPrefix, ".", l.envKey), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	var cfg Config
	if err := l.k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// envKey maps SNIPPETS_AUTH_JWT_SECRET to auth.jwt_secret. Only the first
// underscore separates the section, since keys themselves contain underscores.
func (l *Loader) envKey(name, value string) (string, any) {
	name = strings.ToLower(strings.TrimPrefix(name, l.envPrefix))
	section, key, ok := strings.Cut(name, "_")
	if !ok {
		return "", nil
	}
	path := section + "." + key
	if listKeys[path] {
		parts := strings.Split(value, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		return path, parts
	}
	return path, value
}

// Load is shorthand for NewLoader(WithConfigFile(path)).Load().
func Load(path string) (*Config, error) {
	return NewLoader(WithConfigFile(path)).Load()
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	if c.HTTP.Port < 1 || c.HTTP.Port > 65535 {
		add("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	if c.HTTP.ShutdownTimeout <= 0 {
		add("http.shutdown_timeout must be positive")
	}
	if c.Database.Path == "" {
		add("database.path is required")
	}
	if c.Pagination.PageSize < 1 || c.Pagination.PageSize > pagination.MaxPageSize {
		add("pagination.page_size must be between 1 and %d, got %d", pagination.MaxPageSize, c.Pagination.PageSize)
	}
	if c.Auth.JWTSecret != "" && len(c.Auth.JWTSecret) < 16 {
		add("auth.jwt_secret must be at least 16 characters")
	}
	if c.Auth.PasswordCost < 4 || c.Auth.PasswordCost > 31 {
		add("auth.password_cost must be between 4 and 31, got %d", c.Auth.PasswordCost)
	}
	if c.Auth.TokenTTL <= 0 {
		add("auth.token_ttl must be positive")
	}
	if c.Auth.GitHubEnabled() && c.Auth.GitHubCallbackURL == "" {
		add("auth.github_callback_url is required when GitHub login is configured")
	}

	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		add("log.level must be one of debug, info, warn, error; got %q", c.Log.Level)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		add("log.format must be text or json, got %q", c.Log.Format)
	}

	if c.RateLimit.Enabled {
		if c.RateLimit.RPS <= 0 {
			add("ratelimit.rps must be positive")
		}
		if c.RateLimit.Burst < 1 {
			add("ratelimit.burst must be at least 1")
		}
	}

	if c.Executor.Enabled {
		if c.Executor.Image == "" {
			add("executor.image is required when the executor is enabled")
		}
		if len(c.Executor.Command) == 0 {
			add("executor.command is required when the executor is enabled")
		}
		if len(c.Executor.Languages) == 0 {
			add("executor.languages must list at least one language")
		}
		for _, lang := range c.Executor.Languages {
			if !model.IsLanguage(lang) {
				add("executor.languages: unknown language %q", lang)
			}
		}
		if c.Executor.PoolSize < 1 {
			add("executor.pool_size must be at least 1")
		}
		if c.Executor.Timeout <= 0 {
			add("executor.timeout must be positive")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}
	return nil
}

// mapProvider is a koanf.Provider over a flat map with dotted keys, used for
// defaults. Read nests it so later sources merge key by key.
type mapProvider map[string]any

func (m mapProvider) ReadBytes() ([]byte, error) {
	return nil, errors.New("config: map provider does not support ReadBytes")
}

func (m mapProvider) Read() (map[string]any, error) {
	return maps.Unflatten(m, "."), nil
}
