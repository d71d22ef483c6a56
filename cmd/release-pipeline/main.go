// release-pipeline builds one matrix cell of the conda package and publishes
// it to the channel resolved from the CI revision. All input comes from
// environment variables; the exit code tells CI what failed.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"releaser/internal/apperrors"
	"releaser/internal/builder/dockerbuild"
	"releaser/internal/builder/host"
	"releaser/internal/config"
	"releaser/internal/notifier"
	"releaser/internal/observability"
	"releaser/internal/pipeline"
	"releaser/internal/registry"
	"releaser/internal/revision"
	"syscall"
)

func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	if err := run(); err != nil {
		slog.Error("Pipeline failed", "error", err)
		os.Exit(apperrors.ExitStatus(err))
	}
}

func run() error {
	// Load configuration
	cfg := config.LoadDriverConfig()

	rev, err := revision.FromEnv()
	if err != nil {
		return err
	}

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		cancel()
	}()

	// Setup metrics
	metrics, err := observability.NewMetrics()
	if err != nil {
		return err
	}

	// Create build backend
	var builder pipeline.Builder
	switch cfg.BuildBackend {
	case config.BackendHost:
		builder = host.New(host.LoadConfigFromEnv(), metrics)
	case config.BackendDocker:
		dockerBuilder, err := dockerbuild.New(ctx, dockerbuild.LoadConfigFromEnv(), metrics)
		if err != nil {
			return err
		}
		defer dockerBuilder.Close()
		slog.Info("Connected to Docker daemon")
		builder = dockerBuilder
	default:
		return apperrors.Validation("BUILD_BACKEND",
			fmt.Sprintf("unknown build backend %q (expected %q or %q)",
				cfg.BuildBackend, config.BackendHost, config.BackendDocker))
	}

	// Create registry client
	publisher, err := registry.NewClient(registry.LoadConfigFromEnv(), metrics)
	if err != nil {
		return err
	}

	if cfg.RegistryToken == "" {
		slog.Warn("No registry token configured - set REGISTRY_TOKEN or REGISTRY_TOKEN_FILE")
	}

	// Create webhook notifier (optional)
	var events notifier.Notifier
	notifyCfg := notifier.LoadConfigFromEnv()
	if notifyCfg.URL != "" {
		events = notifier.NewWebhook(notifyCfg, metrics)
		slog.Info("Webhook notifications enabled", "url", notifyCfg.URL)
	}

	// Run the pipeline
	pipe := pipeline.New(builder, publisher, events, metrics)
	result, runErr := pipe.Run(ctx, rev, pipeline.Credentials{Token: cfg.RegistryToken})

	// Drain pending notifications before exiting
	if events != nil {
		drainCtx, drainCancel := context.WithTimeout(context.Background(), cfg.NotifyDrainWait)
		defer drainCancel()
		if err := events.Close(drainCtx); err != nil {
			slog.Warn("Notifier shutdown error", "error", err)
		}

		stats := events.Stats()
		slog.Info("Notifier stats",
			"delivered", stats.Delivered,
			"failed", stats.Failed,
			"dropped", stats.Dropped,
		)
	}

	// Export metrics for the node-exporter textfile collector
	if cfg.MetricsTextfile != "" {
		if err := metrics.WriteTextfile(cfg.MetricsTextfile); err != nil {
			slog.Warn("Metrics textfile write failed", "path", cfg.MetricsTextfile, "error", err)
		}
	}

	if runErr != nil {
		return runErr
	}

	slog.Info("Release complete",
		"channel", string(result.Decision.Channel),
		"artifact", result.Artifact.Path,
	)
	return nil
}
