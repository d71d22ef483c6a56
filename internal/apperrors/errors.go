// Package apperrors provides structured application errors with process exit code mapping.
package apperrors

import (
	"errors"
	"fmt"
)

// Sentinel errors for classification via errors.Is().
var (
	ErrValidation    = errors.New("validation error")
	ErrBuildFailed   = errors.New("build failed")
	ErrPublishFailed = errors.New("publish failed")
	ErrInternal      = errors.New("internal error")
)

// Publish failure reasons carried by PublishFailed errors.
const (
	ReasonAuth    = "auth"
	ReasonNetwork = "network"
	ReasonQuota   = "quota"
	ReasonUnknown = "unknown"
)

// Error provides structured error with context.
type Error struct {
	Sentinel error  // Wrapped sentinel for errors.Is() classification
	Message  string // Human-readable message
	Field    string // For validation errors (e.g., "RELEASE_BRANCH")
	Matrix   string // For build failures (e.g., "py3.8-numpy1.16")
	ExitCode int    // For build failures; the tool's exit code, -1 if it never started
	Channel  string // For publish failures (e.g., "main")
	Reason   string // For publish failures (auth, network, quota, unknown)
	Op       string // Operation that failed (e.g., "registry.upload")
	Cause    error  // Underlying error
}

// Error returns the human-readable error message.
func (e *Error) Error() string {
	return e.Message
}

// Unwrap returns the sentinel error for errors.Is() classification.
func (e *Error) Unwrap() error {
	return e.Sentinel
}

// Validation creates a validation error for a specific field.
func Validation(field, message string) error {
	return &Error{
		Sentinel: ErrValidation,
		Message:  message,
		Field:    field,
	}
}

// BuildFailed creates a build failure error for a matrix cell. exitCode is
// the build tool's exit code, or -1 when the tool could not be started.
func BuildFailed(matrix string, exitCode int, cause error) error {
	return &Error{
		Sentinel: ErrBuildFailed,
		Message:  fmt.Sprintf("build for %s failed with exit code %d", matrix, exitCode),
		Matrix:   matrix,
		ExitCode: exitCode,
		Cause:    cause,
	}
}

// PublishFailed creates a publish failure error for a channel. reason is one
// of the Reason* constants.
func PublishFailed(channel, reason string, cause error) error {
	return &Error{
		Sentinel: ErrPublishFailed,
		Message:  fmt.Sprintf("publish to channel %s failed: %s", channel, reason),
		Channel:  channel,
		Reason:   reason,
		Cause:    cause,
	}
}

// Internal creates an internal error wrapping an underlying cause.
func Internal(op string, cause error) error {
	return &Error{
		Sentinel: ErrInternal,
		Message:  fmt.Sprintf("%s: %v", op, cause),
		Op:       op,
		Cause:    cause,
	}
}
