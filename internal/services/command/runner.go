// Package command runs external tools and builds their argument vectors.
package command

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/fgeck/mysql-dr-dump/internal/apperr"
	"github.com/fgeck/mysql-dr-dump/internal/models"
	"github.com/rs/zerolog"
)

const redacted = "****"

// Command is a validated argument vector for an external tool.
type Command struct {
	Name   string
	Args   []string
	secret string // masked whenever the command or its output is logged
}

// String returns the command line with any secret masked.
func (c Command) String() string {
	return c.Redact(strings.Join(append([]string{c.Name}, c.Args...), " "))
}

// Redact masks every occurrence of the command's secret in s.
func (c Command) Redact(s string) string {
	if c.secret == "" {
		return s
	}
	return strings.ReplaceAll(s, c.secret, redacted)
}

// Service defines the interface for running external commands.
type Service interface {
	Run(ctx context.Context, cmd Command) (*models.CommandResult, error)
}

// Executor allows mocking exec.Command in tests.
type Executor interface {
	Execute(ctx context.Context, name string, args ...string) (*models.CommandResult, error)
}

// DefaultExecutor is the default command executor using os/exec.
type DefaultExecutor struct{}

// Execute runs a command to completion and captures its combined output.
// A non-zero exit is reported in the result; only a failure to start the
// process is returned as an error.
func (e *DefaultExecutor) Execute(ctx context.Context, name string, args ...string) (*models.CommandResult, error) {
	cmd := exec.CommandContext(ctx, name, args...)

	start := time.Now()
	output, err := cmd.CombinedOutput()
	result := &models.CommandResult{
		Output:   string(output),
		Duration: time.Since(start),
	}
	if err == nil {
		return result, nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		result.ExitCode = exitErr.ExitCode()
		if result.ExitCode == 0 {
			result.ExitCode = -1
		}
		return result, nil
	}

	return nil, apperr.New(apperr.KindProcessLaunch, fmt.Sprintf("failed to start %s", name), err)
}

// Impl implements the Service interface.
type Impl struct {
	executor Executor
	logger   zerolog.Logger
	timeout  time.Duration
}

// New creates a new command runner. A zero timeout leaves commands unbounded.
func New(logger zerolog.Logger, timeout time.Duration) *Impl {
	return &Impl{
		executor: &DefaultExecutor{},
		logger:   logger,
		timeout:  timeout,
	}
}

// NewWithExecutor creates a new command runner with a custom executor (for testing).
func NewWithExecutor(logger zerolog.Logger, executor Executor, timeout time.Duration) *Impl {
	return &Impl{
		executor: executor,
		logger:   logger,
		timeout:  timeout,
	}
}

// Run executes cmd and blocks until it exits. The returned output is redacted.
func (s *Impl) Run(ctx context.Context, cmd Command) (*models.CommandResult, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	s.logger.Debug().Str("command", cmd.String()).Msg("running command")

	result, err := s.executor.Execute(ctx, cmd.Name, cmd.Args...)
	if err != nil {
		return nil, err
	}
	result.Output = cmd.Redact(result.Output)

	s.logger.Debug().
		Str("command", cmd.Name).
		Int("exit_code", result.ExitCode).
		Dur("duration", result.Duration).
		Msg("command finished")

	return result, nil
}
