package docker_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/docker/docker/client"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/snippet-api/internal/executor"
	"github.com/sakif/snippet-api/internal/executor/docker"
)

// requireDocker skips the test unless a Docker daemon answers.
func requireDocker(t *testing.T) {
	t.Helper()
	if os.Getenv("CI") != "" {
		t.Skip("skipping docker test in CI environment")
	}
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		t.Skipf("docker client unavailable: %v", err)
	}
	defer cli.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if _, err := cli.Ping(ctx); err != nil {
		t.Skipf("docker daemon unavailable: %v", err)
	}
}

func newExecutor(t *testing.T, cfg docker.Config) *docker.Executor {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	exec, err := docker.New(ctx, cfg, logger)
	require.NoError(t, err, "should initialize docker executor")
	t.Cleanup(func() { exec.Close() })
	return exec
}

func TestDockerExecutor(t *testing.T) {
	requireDocker(t)

	cfg := docker.DefaultConfig()
	cfg.PoolSize = 1
	exec := newExecutor(t, cfg)

	run := func(code string) *executor.ExecutionResult {
		t.Helper()
		res, err := exec.Execute(context.Background(), executor.ExecutionRequest{Language: "python", Code: code})
		require.NoError(t, err)
		return res
	}

	t.Run("successful execution", func(t *testing.T) {
		res := run(`print("Hello from test sandbox!")`)
		assert.Equal(t, 0, res.ExitCode)
		assert.Contains(t, res.Stdout, "Hello from test sandbox!")
		assert.Empty(t, res.Stderr)
		assert.Greater(t, res.Duration, time.Duration(0))
	})

	t.Run("syntax error", func(t *testing.T) {
		res := run(`print("Missing parenthesis"`)
		assert.NotEqual(t, 0, res.ExitCode)
		assert.Contains(t, res.Stderr, "SyntaxError")
		assert.Empty(t, res.Stdout)
	})

	t.Run("multiline logic", func(t *testing.T) {
		res := run(strings.Join([]string{
			"def fib(n):",
			"    if n <= 1: return n",
			"    return fib(n-1) + fib(n-2)",
			"print(fib(5))",
		}, "\n"))
		assert.Equal(t, 0, res.ExitCode)
		assert.Contains(t, res.Stdout, "5")
	})

	t.Run("no network", func(t *testing.T) {
		res := run("import socket\nsocket.create_connection(('1.1.1.1', 53), timeout=1)")
		assert.NotEqual(t, 0, res.ExitCode)
	})

	t.Run("unsupported language", func(t *testing.T) {
		_, err := exec.Execute(context.Background(), executor.ExecutionRequest{Language: "rust", Code: "fn main() {}"})
		assert.True(t, errors.Is(err, executor.ErrUnsupportedLanguage))
	})
}

func TestDockerExecutor_Timeout(t *testing.T) {
	requireDocker(t)

	cfg := docker.DefaultConfig()
	cfg.PoolSize = 1
	cfg.Timeout = 2 * time.Second
	exec := newExecutor(t, cfg)

	res, err := exec.Execute(context.Background(), executor.ExecutionRequest{Language: "python", Code: `while True: pass`})
	require.NoError(t, err)
	assert.Equal(t, executor.TimeoutExitCode, res.ExitCode)
	assert.True(t, res.TimedOut)
	assert.Contains(t, res.Stderr, "timed out")
}
