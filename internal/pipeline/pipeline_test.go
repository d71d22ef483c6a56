package pipeline

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/opencontainers/go-digest"

	"releaser/internal/apperrors"
	"releaser/internal/artifact"
	"releaser/internal/channel"
	"releaser/internal/notifier"
	"releaser/internal/revision"
	"releaser/pkg/cloudevent"
)

// mockBuilder records build calls for testing.
type mockBuilder struct {
	labels []string // build labels, one per call
	err    error
	order  *[]string
}

func (m *mockBuilder) Build(ctx context.Context, key revision.MatrixKey, buildLabel string) (artifact.Artifact, error) {
	m.labels = append(m.labels, buildLabel)
	if m.order != nil {
		*m.order = append(*m.order, "build")
	}
	if m.err != nil {
		return artifact.Artifact{}, m.err
	}
	return artifact.Artifact{
		Path:   "/dist/pkg-" + key.String() + ".tar.bz2",
		Size:   42,
		Matrix: key,
		Digest: digest.FromString("artifact-" + key.String()),
	}, nil
}

// mockPublisher records publish calls for testing.
type mockPublisher struct {
	channels []channel.Channel
	tokens   []string
	err      error
	order    *[]string
}

func (m *mockPublisher) Publish(ctx context.Context, a artifact.Artifact, ch channel.Channel, creds Credentials) error {
	m.channels = append(m.channels, ch)
	m.tokens = append(m.tokens, creds.Token)
	if m.order != nil {
		*m.order = append(*m.order, "publish")
	}
	return m.err
}

// mockNotifier records emitted events for testing.
type mockNotifier struct {
	events []*cloudevent.CloudEvent
}

func (m *mockNotifier) Publish(event *cloudevent.CloudEvent) error {
	m.events = append(m.events, event)
	return nil
}

func (m *mockNotifier) Stats() notifier.Stats { return notifier.Stats{} }

func (m *mockNotifier) Close(ctx context.Context) error { return nil }

func taggedRevision(tag string) revision.Context {
	return revision.Context{
		Tag:               &tag,
		Branch:            "main",
		RuntimeVersion:    "3.8",
		NumericLibVersion: "1.16",
	}
}

func untaggedRevision(branch string) revision.Context {
	return revision.Context{
		Branch:            branch,
		RuntimeVersion:    "3.8",
		NumericLibVersion: "1.16",
	}
}

func TestRun_TaggedReleasesToMain(t *testing.T) {
	t.Parallel()
	builder := &mockBuilder{}
	publisher := &mockPublisher{}
	p := New(builder, publisher, nil, nil)

	result, err := p.Run(context.Background(), taggedRevision("v2.0.1"), Credentials{Token: "tok"})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if result.State != StateDone {
		t.Errorf("Expected state %q, got %q", StateDone, result.State)
	}
	if result.Decision.Channel != channel.Main {
		t.Errorf("Expected channel main, got %s", result.Decision.Channel)
	}
	if len(builder.labels) != 1 || builder.labels[0] != "" {
		t.Errorf("Expected one build with empty label, got %v", builder.labels)
	}
	if len(publisher.channels) != 1 || publisher.channels[0] != channel.Main {
		t.Errorf("Expected one publish to main, got %v", publisher.channels)
	}
	if result.Artifact == nil {
		t.Fatal("Expected artifact on done result")
	}
	if result.Artifact.Digest == "" {
		t.Error("Expected artifact digest to be set")
	}
}

func TestRun_UntaggedReleasesToDev(t *testing.T) {
	t.Parallel()
	builder := &mockBuilder{}
	publisher := &mockPublisher{}
	p := New(builder, publisher, nil, nil)

	result, err := p.Run(context.Background(), untaggedRevision("feature-x"), Credentials{Token: "tok"})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if result.Decision.Channel != channel.Dev {
		t.Errorf("Expected channel dev, got %s", result.Decision.Channel)
	}
	if len(builder.labels) != 1 || builder.labels[0] != channel.DevLabel {
		t.Errorf("Expected build label %q, got %v", channel.DevLabel, builder.labels)
	}
	if len(publisher.channels) != 1 || publisher.channels[0] != channel.Dev {
		t.Errorf("Expected one publish to dev, got %v", publisher.channels)
	}
}

func TestRun_MainBranchUntaggedReleasesToDev(t *testing.T) {
	t.Parallel()
	builder := &mockBuilder{}
	publisher := &mockPublisher{}
	p := New(builder, publisher, nil, nil)

	result, err := p.Run(context.Background(), untaggedRevision("main"), Credentials{})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	// Branch name never overrides the tag rule
	if result.Decision.Channel != channel.Dev {
		t.Errorf("Expected channel dev for untagged main branch, got %s", result.Decision.Channel)
	}
}

func TestRun_BuildFailureHaltsPipeline(t *testing.T) {
	t.Parallel()
	builder := &mockBuilder{err: apperrors.BuildFailed("py3.8-numpy1.16", 1, errors.New("exit status 1"))}
	publisher := &mockPublisher{}
	p := New(builder, publisher, nil, nil)

	result, err := p.Run(context.Background(), taggedRevision("v2.0.1"), Credentials{Token: "tok"})
	if err == nil {
		t.Fatal("Expected error")
	}

	if !errors.Is(err, apperrors.ErrBuildFailed) {
		t.Errorf("Expected build failure, got %v", err)
	}
	if got := apperrors.ExitStatus(err); got != apperrors.ExitBuildFailed {
		t.Errorf("Expected exit code %d, got %d", apperrors.ExitBuildFailed, got)
	}
	if len(publisher.channels) != 0 {
		t.Errorf("Publish must not run after a failed build, got %d calls", len(publisher.channels))
	}
	if result.State != StateFailed {
		t.Errorf("Expected state %q, got %q", StateFailed, result.State)
	}
	if result.Artifact != nil {
		t.Error("Expected no artifact on build failure")
	}
}

func TestRun_PublishFailureSurfaces(t *testing.T) {
	t.Parallel()
	builder := &mockBuilder{}
	publisher := &mockPublisher{err: apperrors.PublishFailed("main", apperrors.ReasonAuth, errors.New("401"))}
	p := New(builder, publisher, nil, nil)

	result, err := p.Run(context.Background(), taggedRevision("v2.0.1"), Credentials{Token: "bad"})
	if err == nil {
		t.Fatal("Expected error")
	}

	if !errors.Is(err, apperrors.ErrPublishFailed) {
		t.Errorf("Expected publish failure, got %v", err)
	}
	if got := apperrors.ExitStatus(err); got != apperrors.ExitPublishFailed {
		t.Errorf("Expected exit code %d, got %d", apperrors.ExitPublishFailed, got)
	}
	if len(builder.labels) != 1 {
		t.Errorf("Expected one build, got %d", len(builder.labels))
	}
	if result.State != StateFailed {
		t.Errorf("Expected state %q, got %q", StateFailed, result.State)
	}
	if result.Artifact == nil {
		t.Error("Expected artifact on publish failure (build succeeded)")
	}
}

func TestRun_StagesRunInOrder(t *testing.T) {
	t.Parallel()
	var order []string
	builder := &mockBuilder{order: &order}
	publisher := &mockPublisher{order: &order}
	p := New(builder, publisher, nil, nil)

	if _, err := p.Run(context.Background(), taggedRevision("v1.0.0"), Credentials{}); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if len(order) != 2 || order[0] != "build" || order[1] != "publish" {
		t.Errorf("Expected [build publish], got %v", order)
	}
}

func TestRun_RerunSucceedsTwice(t *testing.T) {
	t.Parallel()
	builder := &mockBuilder{}
	publisher := &mockPublisher{}
	p := New(builder, publisher, nil, nil)

	first, err := p.Run(context.Background(), taggedRevision("v2.0.1"), Credentials{Token: "tok"})
	if err != nil {
		t.Fatalf("First run failed: %v", err)
	}
	second, err := p.Run(context.Background(), taggedRevision("v2.0.1"), Credentials{Token: "tok"})
	if err != nil {
		t.Fatalf("Second run failed: %v", err)
	}

	if first.State != StateDone || second.State != StateDone {
		t.Errorf("Expected done twice, got %q and %q", first.State, second.State)
	}
	if len(publisher.channels) != 2 {
		t.Errorf("Expected two uploads, got %d", len(publisher.channels))
	}
	if first.RunID == second.RunID {
		t.Error("Expected distinct run IDs")
	}
}

func TestRun_CredentialsReachPublisher(t *testing.T) {
	t.Parallel()
	builder := &mockBuilder{}
	publisher := &mockPublisher{}
	p := New(builder, publisher, nil, nil)

	if _, err := p.Run(context.Background(), taggedRevision("v1.2.3"), Credentials{Token: "ci-token"}); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if len(publisher.tokens) != 1 || publisher.tokens[0] != "ci-token" {
		t.Errorf("Expected token passed through, got %v", publisher.tokens)
	}
}

func TestRun_EmitsLifecycleEvents(t *testing.T) {
	t.Parallel()
	events := &mockNotifier{}
	p := New(&mockBuilder{}, &mockPublisher{}, events, nil)

	result, err := p.Run(context.Background(), taggedRevision("v2.0.1"), Credentials{})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if len(events.events) != 2 {
		t.Fatalf("Expected 2 events, got %d", len(events.events))
	}
	if events.events[0].Type != EventTypeResolved {
		t.Errorf("Expected first event %q, got %q", EventTypeResolved, events.events[0].Type)
	}
	if events.events[1].Type != EventTypePublished {
		t.Errorf("Expected second event %q, got %q", EventTypePublished, events.events[1].Type)
	}
	for _, e := range events.events {
		if e.Subject != result.RunID.String() {
			t.Errorf("Expected event subject %q, got %q", result.RunID.String(), e.Subject)
		}
		if e.Source != "release-pipeline" {
			t.Errorf("Expected event source release-pipeline, got %q", e.Source)
		}
	}
}

func TestRun_EmitsFailedEventWithStage(t *testing.T) {
	t.Parallel()
	events := &mockNotifier{}
	builder := &mockBuilder{err: apperrors.BuildFailed("py3.8-numpy1.16", 2, errors.New("exit status 2"))}
	p := New(builder, &mockPublisher{}, events, nil)

	if _, err := p.Run(context.Background(), taggedRevision("v2.0.1"), Credentials{}); err == nil {
		t.Fatal("Expected error")
	}

	if len(events.events) != 2 {
		t.Fatalf("Expected 2 events, got %d", len(events.events))
	}
	failed := events.events[1]
	if failed.Type != EventTypeFailed {
		t.Errorf("Expected failed event, got %q", failed.Type)
	}
	if failed.Data["stage"] != StageBuild {
		t.Errorf("Expected stage %q, got %v", StageBuild, failed.Data["stage"])
	}
}

func TestCredentials_StringRedactsToken(t *testing.T) {
	t.Parallel()
	creds := Credentials{Token: "super-secret"}
	if s := creds.String(); strings.Contains(s, "super-secret") {
		t.Errorf("Token leaked in String(): %s", s)
	}
	if s := (Credentials{}).String(); s != "Credentials{}" {
		t.Errorf("Unexpected empty-credentials String(): %s", s)
	}
}
