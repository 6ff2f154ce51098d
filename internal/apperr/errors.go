// Package apperr defines the error taxonomy shared by the dump pipeline and
// the environment provisioner.
package apperr

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies an application error.
type Kind string

// Error kinds.
const (
	KindProcessLaunch Kind = "process_launch"
	KindToolFailure   Kind = "tool_failure"
	KindValidation    Kind = "validation"
	KindConnectivity  Kind = "connectivity"
	KindQuery         Kind = "query"
	KindMissingRole   Kind = "missing_role"
	KindProvider      Kind = "provider"
	KindConfiguration Kind = "configuration"
)

// Error is the single application-level error type. Stage is set once the
// error has crossed a pipeline or provisioning step boundary.
type Error struct {
	Kind    Kind
	Stage   string
	Message string
	Output  string   // captured tool output, already redacted
	Missing []string // databases requested but absent (validation only)
	Cause   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	var b strings.Builder
	if e.Stage != "" {
		b.WriteString(e.Stage)
		b.WriteString(": ")
	}
	b.WriteString(e.Message)
	if e.Cause != nil {
		fmt.Fprintf(&b, ": %v", e.Cause)
	}
	if e.Output != "" {
		fmt.Fprintf(&b, ", output: %s", strings.TrimSpace(e.Output))
	}
	return b.String()
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// New creates an error of the given kind.
func New(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// ToolFailure creates an error for a command that exited non-zero.
func ToolFailure(message, output string) *Error {
	return &Error{Kind: KindToolFailure, Message: message, Output: output}
}

// MissingDatabases creates the validation error listing absent databases.
func MissingDatabases(missing []string) *Error {
	return &Error{
		Kind:    KindValidation,
		Message: "requested databases not found: " + strings.Join(missing, ", "),
		Missing: missing,
	}
}

// WithStage attaches stage context to err. An *Error keeps its kind; any
// other error is classified as fallback.
func WithStage(err error, stage string, fallback Kind) error {
	if err == nil {
		return nil
	}
	var appErr *Error
	if errors.As(err, &appErr) {
		staged := *appErr
		staged.Stage = stage
		return &staged
	}
	return &Error{Kind: fallback, Stage: stage, Message: "step failed", Cause: err}
}

// Is reports whether err is an *Error of the given kind.
func Is(err error, kind Kind) bool {
	var appErr *Error
	return errors.As(err, &appErr) && appErr.Kind == kind
}

// StageOf returns the stage recorded on err, or "".
func StageOf(err error) string {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Stage
	}
	return ""
}
