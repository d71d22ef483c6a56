package pipeline

import (
	"github.com/google/uuid"

	"releaser/internal/artifact"
	"releaser/internal/channel"
)

// State represents the terminal state of a pipeline run.
type State string

// Terminal states
const (
	StateDone   State = "done"
	StateFailed State = "failed"
)

// Stage names for logs, events, and metrics
const (
	StageResolve = "resolve"
	StageBuild   = "build"
	StagePublish = "publish"
)

// Result describes a finished pipeline run.
// Artifact is nil when the run failed before the build completed.
type Result struct {
	RunID    uuid.UUID
	Decision channel.Decision
	Artifact *artifact.Artifact
	State    State
}
