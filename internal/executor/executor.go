// Package executor runs snippet code in an isolated environment.
//
// The HTTP layer only sees the Executor interface. The docker subpackage is
// the real implementation; Disabled stands in when sandboxing is switched
// off so the /run route can answer 503 instead of disappearing.
package executor

import (
	"context"
	"errors"
	"time"

	"github.com/sakif/snippet-api/internal/apperror"
)

// ErrUnsupportedLanguage is returned when no sandbox command exists for the
// snippet's language.
var ErrUnsupportedLanguage = errors.New("executor: unsupported language")

// TimeoutExitCode is reported when a run is killed for taking too long, the
// same code the unix timeout command uses.
const TimeoutExitCode = 124

// ExecutionRequest is one piece of code to run.
type ExecutionRequest struct {
	Language string `json:"language"`
	Code     string `json:"code"`
}

// ExecutionResult represents the output and status of the code execution.
type ExecutionResult struct {
	Stdout   string        `json:"stdout"`
	Stderr   string        `json:"stderr"`
	ExitCode int           `json:"exitCode"`
	Duration time.Duration `json:"duration"`
	TimedOut bool          `json:"timedOut"`
}

// Executor represents the core interface for running code in an isolated environment.
type Executor interface {
	Execute(ctx context.Context, req ExecutionRequest) (*ExecutionResult, error)
}

// Disabled is the Executor used when sandboxed runs are turned off.
type Disabled struct{}

func (Disabled) Execute(context.Context, ExecutionRequest) (*ExecutionResult, error) {
	return nil, apperror.Unavailable("Code execution is disabled on this server.")
}
