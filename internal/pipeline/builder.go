package pipeline

import (
	"context"

	"releaser/internal/artifact"
	"releaser/internal/revision"
)

// Builder defines the interface for artifact build backends.
// Implementations wrap an external build tool (host process or container)
// and turn one matrix cell into one local artifact file.
//
// # Invocation contract
//
// Build invokes the external tool exactly once per call. There is no
// retry inside the builder: a failed build surfaces immediately as
// apperrors.ErrBuildFailed carrying the tool's exit code, and a rerun
// means rerunning the whole pipeline.
type Builder interface {
	// Build produces the artifact for the given matrix cell. A non-empty
	// buildLabel is passed through to the build tool as a build-string
	// qualifier; an empty label adds nothing.
	Build(ctx context.Context, key revision.MatrixKey, buildLabel string) (artifact.Artifact, error)
}
