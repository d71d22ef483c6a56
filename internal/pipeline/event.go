package pipeline

import (
	"releaser/internal/artifact"
	"releaser/internal/channel"
	"releaser/internal/revision"
	"releaser/pkg/cloudevent"
)

// Event types for pipeline lifecycle notifications
const (
	EventTypeResolved  = "releaser.pipeline.resolved"
	EventTypePublished = "releaser.pipeline.published"
	EventTypeFailed    = "releaser.pipeline.failed"
)

// eventSource identifies this driver in emitted CloudEvents.
const eventSource = "release-pipeline"

// EventBuilder builds CloudEvents for pipeline lifecycle events.
// The run ID is the event subject; every event carries the matrix key.
type EventBuilder struct {
	source  string
	subject string
	matrix  string
}

// NewEventBuilder creates a new EventBuilder for one pipeline run.
func NewEventBuilder(runID, matrix string) *EventBuilder {
	return &EventBuilder{
		source:  eventSource,
		subject: runID,
		matrix:  matrix,
	}
}

// Build creates a new CloudEvent with the given type and data.
func (b *EventBuilder) Build(eventType string, data map[string]any) *cloudevent.CloudEvent {
	return cloudevent.New(eventType, b.source, b.subject, data)
}

// BuildResolvedEvent creates a channel-resolution event.
func (b *EventBuilder) BuildResolvedEvent(rev revision.Context, decision channel.Decision) *cloudevent.CloudEvent {
	data := map[string]any{
		"matrix":     b.matrix,
		"branch":     rev.Branch,
		"channel":    string(decision.Channel),
		"buildLabel": decision.BuildLabel,
	}
	if rev.Tag != nil {
		data["tag"] = *rev.Tag
	}
	return b.Build(EventTypeResolved, data)
}

// BuildPublishedEvent creates a publication event.
func (b *EventBuilder) BuildPublishedEvent(a artifact.Artifact, ch channel.Channel) *cloudevent.CloudEvent {
	data := map[string]any{
		"matrix":    b.matrix,
		"channel":   string(ch),
		"path":      a.Path,
		"digest":    a.Digest.String(),
		"sizeBytes": a.Size,
	}
	return b.Build(EventTypePublished, data)
}

// BuildFailedEvent creates a failure event naming the stage that halted.
func (b *EventBuilder) BuildFailedEvent(stage string, err error) *cloudevent.CloudEvent {
	data := map[string]any{
		"matrix": b.matrix,
		"stage":  stage,
		"error":  err.Error(),
	}
	return b.Build(EventTypeFailed, data)
}
