package models

import "time"

// CommandResult holds the outcome of an external process.
type CommandResult struct {
	ExitCode int
	Output   string // combined stdout and stderr
	Duration time.Duration
}

// Success reports whether the process exited with status zero.
func (r *CommandResult) Success() bool {
	return r != nil && r.ExitCode == 0
}
