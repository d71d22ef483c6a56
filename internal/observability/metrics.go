package observability

import (
	"context"

	promclient "github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// Metrics holds all pipeline metrics implementing the golden signals:
// - Latency: How long builds, publishes and whole runs take
// - Traffic: Run/build/publish throughput
// - Errors: Rate of failures per stage
// - Saturation: Notifier buffer pressure (drops)
//
// All Record methods are safe on a nil receiver so metrics stay optional.
type Metrics struct {
	meter    metric.Meter
	registry *promclient.Registry

	// Build metrics (Latency, Traffic, Errors)
	BuildDuration    metric.Float64Histogram
	BuildsTotal      metric.Int64Counter
	BuildErrorsTotal metric.Int64Counter

	// Publish metrics (Latency, Traffic, Errors)
	PublishDuration    metric.Float64Histogram
	PublishesTotal     metric.Int64Counter
	PublishErrorsTotal metric.Int64Counter

	// Pipeline run metrics (Latency, Traffic, Errors)
	RunDuration    metric.Float64Histogram
	RunsTotal      metric.Int64Counter
	RunErrorsTotal metric.Int64Counter

	// Notifier metrics (Latency, Traffic, Errors, Saturation)
	NotifyDuration  metric.Float64Histogram
	NotifyDelivered metric.Int64Counter
	NotifyFailed    metric.Int64Counter
	NotifyDropped   metric.Int64Counter
}

// NewMetrics creates all metrics backed by a private Prometheus registry.
// The registry is private so WriteTextfile exports exactly the pipeline's
// instruments and concurrent test instances never collide.
func NewMetrics() (*Metrics, error) {
	registry := promclient.NewRegistry()
	exporter, err := prometheus.New(prometheus.WithRegisterer(registry))
	if err != nil {
		return nil, err
	}

	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
	otel.SetMeterProvider(provider)

	meter := provider.Meter("releaser")
	m := &Metrics{meter: meter, registry: registry}

	// Build metrics
	m.BuildDuration, err = meter.Float64Histogram(
		"build_duration_seconds",
		metric.WithDescription("Build tool execution duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(1, 5, 10, 30, 60, 120, 300, 600, 900, 1800),
	)
	if err != nil {
		return nil, err
	}

	m.BuildsTotal, err = meter.Int64Counter(
		"builds_total",
		metric.WithDescription("Total number of build invocations"),
	)
	if err != nil {
		return nil, err
	}

	m.BuildErrorsTotal, err = meter.Int64Counter(
		"build_errors_total",
		metric.WithDescription("Total number of failed builds"),
	)
	if err != nil {
		return nil, err
	}

	// Publish metrics
	m.PublishDuration, err = meter.Float64Histogram(
		"publish_duration_seconds",
		metric.WithDescription("Artifact upload duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 300),
	)
	if err != nil {
		return nil, err
	}

	m.PublishesTotal, err = meter.Int64Counter(
		"publishes_total",
		metric.WithDescription("Total number of publish attempts"),
	)
	if err != nil {
		return nil, err
	}

	m.PublishErrorsTotal, err = meter.Int64Counter(
		"publish_errors_total",
		metric.WithDescription("Total number of failed publishes"),
	)
	if err != nil {
		return nil, err
	}

	// Pipeline run metrics
	m.RunDuration, err = meter.Float64Histogram(
		"pipeline_run_duration_seconds",
		metric.WithDescription("End-to-end pipeline run duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(1, 5, 10, 30, 60, 120, 300, 600, 900, 1800),
	)
	if err != nil {
		return nil, err
	}

	m.RunsTotal, err = meter.Int64Counter(
		"pipeline_runs_total",
		metric.WithDescription("Total number of pipeline runs"),
	)
	if err != nil {
		return nil, err
	}

	m.RunErrorsTotal, err = meter.Int64Counter(
		"pipeline_run_errors_total",
		metric.WithDescription("Total number of failed pipeline runs"),
	)
	if err != nil {
		return nil, err
	}

	// Notifier metrics
	m.NotifyDuration, err = meter.Float64Histogram(
		"notifier_duration_seconds",
		metric.WithDescription("Webhook delivery latency in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10),
	)
	if err != nil {
		return nil, err
	}

	m.NotifyDelivered, err = meter.Int64Counter(
		"notifier_delivered_total",
		metric.WithDescription("Total events successfully delivered"),
	)
	if err != nil {
		return nil, err
	}

	m.NotifyFailed, err = meter.Int64Counter(
		"notifier_failed_total",
		metric.WithDescription("Total events failed after retries"),
	)
	if err != nil {
		return nil, err
	}

	m.NotifyDropped, err = meter.Int64Counter(
		"notifier_dropped_total",
		metric.WithDescription("Total events dropped (buffer full or closed circuit)"),
	)
	if err != nil {
		return nil, err
	}

	return m, nil
}

// WriteTextfile writes the current metric state in Prometheus text format.
// A process that exits after one run cannot be scraped, so batch invocations
// export a textfile for the node-exporter textfile collector instead.
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil {
		return nil
	}
	return promclient.WriteToTextfile(path, m.registry)
}

// RecordBuild records a build invocation with its outcome.
func (m *Metrics) RecordBuild(ctx context.Context, backend, matrix string, success bool, durationSeconds float64) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(backendAttr(backend), matrixAttr(matrix), successAttr(success))
	m.BuildDuration.Record(ctx, durationSeconds, attrs)
	m.BuildsTotal.Add(ctx, 1, attrs)

	if !success {
		m.BuildErrorsTotal.Add(ctx, 1, metric.WithAttributes(backendAttr(backend), matrixAttr(matrix)))
	}
}

// RecordPublish records a publish attempt. reason is empty on success.
func (m *Metrics) RecordPublish(ctx context.Context, channel string, success bool, reason string, durationSeconds float64) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(channelAttr(channel), successAttr(success))
	m.PublishDuration.Record(ctx, durationSeconds, attrs)
	m.PublishesTotal.Add(ctx, 1, attrs)

	if !success {
		m.PublishErrorsTotal.Add(ctx, 1, metric.WithAttributes(channelAttr(channel), reasonAttr(reason)))
	}
}

// RecordRun records a completed pipeline run. stage names the failing stage
// and is empty when the run succeeded.
func (m *Metrics) RecordRun(ctx context.Context, channel string, success bool, stage string, durationSeconds float64) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(channelAttr(channel), successAttr(success))
	m.RunDuration.Record(ctx, durationSeconds, attrs)
	m.RunsTotal.Add(ctx, 1, attrs)

	if !success {
		m.RunErrorsTotal.Add(ctx, 1, metric.WithAttributes(channelAttr(channel), stageAttr(stage)))
	}
}

// RecordNotifyDelivered records a successful event delivery with its duration.
func (m *Metrics) RecordNotifyDelivered(ctx context.Context, durationSeconds float64) {
	if m == nil {
		return
	}
	m.NotifyDelivered.Add(ctx, 1)
	m.NotifyDuration.Record(ctx, durationSeconds)
}

// RecordNotifyFailed records a failed event delivery.
func (m *Metrics) RecordNotifyFailed(ctx context.Context) {
	if m == nil {
		return
	}
	m.NotifyFailed.Add(ctx, 1)
}

// RecordNotifyDropped records a dropped event.
func (m *Metrics) RecordNotifyDropped(ctx context.Context) {
	if m == nil {
		return
	}
	m.NotifyDropped.Add(ctx, 1)
}
