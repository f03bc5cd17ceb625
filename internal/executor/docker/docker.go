package docker

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"

	"github.com/sakif/snippet-api/internal/executor"
)

// Executor implements the executor.Executor interface using Docker.
type Executor struct {
	cli    *client.Client
	config Config
	logger *slog.Logger
	pool   *Pool
}

// New connects to the Docker daemon, pulls the sandbox image and starts the
// container pool. ctx bounds the image pull only.
func New(ctx context.Context, cfg Config, logger *slog.Logger) (*Executor, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("docker: creating client: %w", err)
	}

	logger.Info("ensuring docker image is available", slog.String("image", cfg.Image))
	reader, err := cli.ImagePull(ctx, cfg.Image, image.PullOptions{})
	if err != nil {
		cli.Close()
		return nil, fmt.Errorf("docker: pulling %s: %w", cfg.Image, err)
	}
	// The pull only finishes once the progress stream is drained.
	_, err = io.Copy(io.Discard, reader)
	reader.Close()
	if err != nil {
		cli.Close()
		return nil, fmt.Errorf("docker: pulling %s: %w", cfg.Image, err)
	}
	logger.Info("docker image is ready", slog.String("image", cfg.Image))

	exec := &Executor{
		cli:    cli,
		config: cfg,
		logger: logger,
		pool:   NewPool(cli, cfg, logger),
	}
	exec.pool.Start()

	return exec, nil
}

// Close shuts down the executor pool and docker client.
func (e *Executor) Close() error {
	e.pool.Stop()
	return e.cli.Close()
}

// Execute runs req.Code with the configured interpreter inside a fresh
// pre-warmed container. A run that outlives the timeout is reported with
// exit code 124 rather than as an error.
func (e *Executor) Execute(ctx context.Context, req executor.ExecutionRequest) (*executor.ExecutionResult, error) {
	if !e.config.Supports(req.Language) {
		return nil, fmt.Errorf("%w: %s", executor.ErrUnsupportedLanguage, req.Language)
	}

	start := time.Now()

	containerID, err := e.pool.GetContainer(ctx)
	if err != nil {
		return nil, fmt.Errorf("docker: acquiring container: %w", err)
	}
	defer e.pool.removeContainer(containerID)

	executeCtx, cancel := context.WithTimeout(ctx, e.config.Timeout)
	defer cancel()

	execResp, err := e.cli.ContainerExecCreate(executeCtx, containerID, container.ExecOptions{
		AttachStdout: true,
		AttachStderr: true,
		Cmd:          buildCommand(e.config.Command, req.Code),
	})
	if err != nil {
		return nil, fmt.Errorf("docker: creating exec: %w", err)
	}

	attachResp, err := e.cli.ContainerExecAttach(executeCtx, execResp.ID, container.ExecStartOptions{})
	if err != nil {
		return nil, fmt.Errorf("docker: attaching to exec: %w", err)
	}
	defer attachResp.Close()

	stdout := &cappedBuffer{limit: e.config.MaxOutput}
	stderr := &cappedBuffer{limit: e.config.MaxOutput}

	done := make(chan struct{})
	go func() {
		// Docker multiplexes both streams over one connection.
		_, _ = stdcopy.StdCopy(stdout, stderr, attachResp.Reader)
		close(done)
	}()

	result := &executor.ExecutionResult{}
	select {
	case <-done:
		inspectResp, err := e.cli.ContainerExecInspect(ctx, execResp.ID)
		if err != nil {
			return nil, fmt.Errorf("docker: inspecting exec: %w", err)
		}
		result.ExitCode = inspectResp.ExitCode
	case <-executeCtx.Done():
		if ctx.Err() != nil {
			attachResp.Close()
			<-done
			return nil, ctx.Err()
		}
		// Closing the stream ends StdCopy; wait for it before touching the buffers.
		attachResp.Close()
		<-done
		result.ExitCode = executor.TimeoutExitCode
		result.TimedOut = true
		stderr.WriteString("\nExecution timed out.\n")
	}

	result.Stdout = stdout.String()
	result.Stderr = stderr.String()
	result.Duration = time.Since(start)

	e.logger.Info("snippet executed",
		slog.String("language", req.Language),
		slog.Int("exitCode", result.ExitCode),
		slog.Duration("duration", result.Duration),
	)
	return result, nil
}

// buildCommand appends code as the last argument without touching command.
func buildCommand(command []string, code string) []string {
	return append(slices.Clone(command), code)
}

// cappedBuffer keeps the first limit bytes written and silently drops the
// rest, so a runaway print loop cannot exhaust server memory. A zero limit
// keeps everything.
type cappedBuffer struct {
	bytes.Buffer
	limit     int
	truncated bool
}

func (b *cappedBuffer) Write(p []byte) (int, error) {
	if b.limit > 0 {
		room := b.limit - b.Len()
		if room <= 0 {
			b.truncated = true
			return len(p), nil
		}
		if len(p) > room {
			b.truncated = true
			b.Buffer.Write(p[:room])
			return len(p), nil
		}
	}
	return b.Buffer.Write(p)
}

func (b *cappedBuffer) String() string {
	if b.truncated {
		return b.Buffer.String() + "\n[output truncated]\n"
	}
	return b.Buffer.String()
}
