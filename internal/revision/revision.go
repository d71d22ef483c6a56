// Package revision describes the source revision a pipeline run releases.
package revision

import (
	"fmt"
	"os"

	"releaser/internal/apperrors"
)

// Context is the immutable revision metadata a pipeline run is invoked for.
// Tag is nil for non-tag builds. CI systems export empty strings for unset
// variables, so an empty tag is represented as absence, never as "".
type Context struct {
	Tag               *string
	Branch            string
	RuntimeVersion    string
	NumericLibVersion string
}

// MatrixKey identifies one cell of the build matrix.
type MatrixKey struct {
	RuntimeVersion    string
	NumericLibVersion string
}

// String renders the cell for logs, errors and metric attributes.
func (k MatrixKey) String() string {
	return fmt.Sprintf("py%s-numpy%s", k.RuntimeVersion, k.NumericLibVersion)
}

// MatrixKey returns the build-matrix cell this revision targets.
func (c Context) MatrixKey() MatrixKey {
	return MatrixKey{
		RuntimeVersion:    c.RuntimeVersion,
		NumericLibVersion: c.NumericLibVersion,
	}
}

// TagString returns the tag value, or "" when the revision is untagged.
func (c Context) TagString() string {
	if c.Tag == nil {
		return ""
	}
	return *c.Tag
}

// FromEnv constructs the revision context from the CI environment.
// RELEASE_TAG is optional and maps to nil when unset or empty; the
// remaining variables are required.
func FromEnv() (Context, error) {
	ctx := Context{
		Branch:            os.Getenv("RELEASE_BRANCH"),
		RuntimeVersion:    os.Getenv("RUNTIME_VERSION"),
		NumericLibVersion: os.Getenv("NUMLIB_VERSION"),
	}
	if tag := os.Getenv("RELEASE_TAG"); tag != "" {
		ctx.Tag = &tag
	}
	if ctx.Branch == "" {
		return Context{}, apperrors.Validation("RELEASE_BRANCH", "RELEASE_BRANCH is required")
	}
	if ctx.RuntimeVersion == "" {
		return Context{}, apperrors.Validation("RUNTIME_VERSION", "RUNTIME_VERSION is required")
	}
	if ctx.NumericLibVersion == "" {
		return Context{}, apperrors.Validation("NUMLIB_VERSION", "NUMLIB_VERSION is required")
	}
	return ctx, nil
}
