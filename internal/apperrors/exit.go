package apperrors

import "errors"

// Process exit codes. Build and publish failures carry distinct codes so CI
// automation can tell them apart without parsing logs.
const (
	ExitOK            = 0
	ExitInternal      = 1
	ExitBuildFailed   = 2
	ExitPublishFailed = 3
	ExitValidation    = 4
)

// ExitStatus maps an error to the process exit code.
func ExitStatus(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, ErrBuildFailed):
		return ExitBuildFailed
	case errors.Is(err, ErrPublishFailed):
		return ExitPublishFailed
	case errors.Is(err, ErrValidation):
		return ExitValidation
	default:
		return ExitInternal
	}
}
