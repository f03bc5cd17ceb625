package docker

import (
	"slices"
	"time"

	"github.com/sakif/snippet-api/internal/config"
)

// Config holds the configuration for Docker execution.
type Config struct {
	// Image is the Docker image to use for execution.
	Image string
	// Command is the interpreter invocation; the snippet code is appended as
	// the final argument, e.g. ["python", "-c"].
	Command []string
	// Languages lists the snippet languages Command can run.
	Languages []string
	// MemoryLimit is the maximum amount of memory the container can use (in bytes).
	MemoryLimit int64
	// CPULimit is the number of CPUs the container can use.
	CPULimit float64
	// Timeout is the maximum amount of time the execution can take.
	Timeout time.Duration
	// PoolSize is the number of pre-warmed containers to maintain.
	PoolSize int
	// MaxOutput caps how many bytes of stdout and of stderr are kept.
	MaxOutput int
}

// DefaultConfig provides sensible defaults for a Python sandbox.
func DefaultConfig() Config {
	return Config{
		Image:       "python:3.12-alpine",
		Command:     []string{"python", "-c"},
		Languages:   []string{"python"},
		MemoryLimit: 128 * 1024 * 1024,
		CPULimit:    0.5,
		Timeout:     5 * time.Second,
		PoolSize:    3,
		MaxOutput:   64 * 1024,
	}
}

// FromConfig converts the executor section of the application config.
func FromConfig(c config.ExecutorConfig) Config {
	cfg := DefaultConfig()
	cfg.Image = c.Image
	cfg.Command = slices.Clone(c.Command)
	cfg.Languages = slices.Clone(c.Languages)
	cfg.MemoryLimit = int64(c.MemoryMB) * 1024 * 1024
	cfg.CPULimit = c.CPUs
	cfg.Timeout = c.Timeout
	cfg.PoolSize = c.PoolSize
	return cfg
}

// Supports reports whether snippets in language can be run.
func (c Config) Supports(language string) bool {
	return slices.Contains(c.Languages, language)
}
