// Package pipeline implements the release pipeline state machine:
// Resolve the target channel, Build the matrix artifact, Publish it.
package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"releaser/internal/channel"
	"releaser/internal/notifier"
	"releaser/internal/observability"
	"releaser/internal/revision"
	"releaser/pkg/cloudevent"
)

// Pipeline runs the linear release flow for one matrix cell.
//
// The Pipeline is stateless - nothing about a run is persisted in the
// process or on disk beyond the artifact file itself. This enables:
//   - Rerun after failure without cleanup (publish force-overwrites)
//   - Concurrent runs for different matrix cells as separate processes
type Pipeline struct {
	builder   Builder
	publisher Publisher
	events    notifier.Notifier
	metrics   *observability.Metrics
}

// New creates a pipeline. events and metrics may be nil, in which case
// notifications and metrics are skipped.
func New(builder Builder, publisher Publisher, events notifier.Notifier, metrics *observability.Metrics) *Pipeline {
	return &Pipeline{
		builder:   builder,
		publisher: publisher,
		events:    events,
		metrics:   metrics,
	}
}

// Run executes Resolve -> Build -> Publish for the given revision.
//
// The stages are strictly sequential and the run halts at the first
// failure; there is no retry between stages and no rollback (the build
// output is a local file, not a remote commitment). The returned Result
// is always non-nil; on failure its State is StateFailed and the error
// carries the failure class for exit-code mapping.
func (p *Pipeline) Run(ctx context.Context, rev revision.Context, creds Credentials) (*Result, error) {
	runID := uuid.New()
	matrix := rev.MatrixKey()
	events := NewEventBuilder(runID.String(), matrix.String())
	logger := slog.With("runId", runID.String(), "matrix", matrix.String())
	start := time.Now()

	// Resolve always succeeds: untagged revisions release to dev.
	decision := channel.Resolve(rev)
	result := &Result{RunID: runID, Decision: decision}
	logger.Info("Channel resolved",
		"channel", decision.Channel,
		"buildLabel", decision.BuildLabel,
		"tag", rev.TagString(),
		"branch", rev.Branch,
	)
	p.emit(events.BuildResolvedEvent(rev, decision))

	a, err := p.builder.Build(ctx, matrix, decision.BuildLabel)
	if err != nil {
		result.State = StateFailed
		logger.Error("Build failed", "error", err)
		p.metrics.RecordRun(ctx, string(decision.Channel), false, StageBuild, time.Since(start).Seconds())
		p.emit(events.BuildFailedEvent(StageBuild, err))
		return result, err
	}
	result.Artifact = &a
	logger.Info("Artifact built", "path", a.Path, "digest", a.Digest, "sizeBytes", a.Size)

	if err := p.publisher.Publish(ctx, a, decision.Channel, creds); err != nil {
		result.State = StateFailed
		logger.Error("Publish failed", "error", err)
		p.metrics.RecordRun(ctx, string(decision.Channel), false, StagePublish, time.Since(start).Seconds())
		p.emit(events.BuildFailedEvent(StagePublish, err))
		return result, err
	}

	result.State = StateDone
	logger.Info("Pipeline done", "channel", decision.Channel, "duration", time.Since(start))
	p.metrics.RecordRun(ctx, string(decision.Channel), true, "", time.Since(start).Seconds())
	p.emit(events.BuildPublishedEvent(a, decision.Channel))

	return result, nil
}

// emit queues a lifecycle event for async delivery. Delivery is
// best-effort and never influences the pipeline outcome.
func (p *Pipeline) emit(event *cloudevent.CloudEvent) {
	if p.events == nil {
		return
	}
	if err := p.events.Publish(event); err != nil {
		slog.Debug("Event not queued", "type", event.Type, "error", err)
	}
}
