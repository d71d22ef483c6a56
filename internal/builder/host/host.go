// Package host builds artifacts by running the build tool as a local process.
package host

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"time"

	"releaser/internal/apperrors"
	"releaser/internal/artifact"
	"releaser/internal/config"
	"releaser/internal/observability"
	"releaser/internal/pipeline"
	"releaser/internal/revision"
)

// backendName is the backend attribute on build metrics.
const backendName = "host"

// Config holds host builder configuration.
type Config struct {
	Tool        string // build tool binary
	RecipeDir   string // recipe directory passed to the tool
	OutputDir   string // where the tool drops artifacts
	RuntimeFlag string // flag carrying the runtime version
	NumlibFlag  string // flag carrying the numeric library version
}

// LoadConfigFromEnv loads host builder configuration from environment variables.
func LoadConfigFromEnv() Config {
	return Config{
		Tool:        config.GetEnv("BUILD_TOOL", "conda-build"),
		RecipeDir:   config.GetEnv("BUILD_RECIPE_DIR", "./recipe"),
		OutputDir:   config.GetEnv("BUILD_OUTPUT_DIR", "./dist"),
		RuntimeFlag: config.GetEnv("BUILD_RUNTIME_FLAG", "--python"),
		NumlibFlag:  config.GetEnv("BUILD_NUMLIB_FLAG", "--numpy"),
	}
}

// Builder invokes the external build tool as a host process.
//
// The tool contract: build the matrix cell's package, print the produced
// artifact path as the last non-empty stdout line, exit 0. The builder
// runs the tool exactly once per Build call; a failed build is reported,
// never retried.
type Builder struct {
	config  Config
	metrics *observability.Metrics
}

// New creates a host builder. metrics may be nil.
func New(cfg Config, metrics *observability.Metrics) *Builder {
	return &Builder{config: cfg, metrics: metrics}
}

// Build runs the tool once for the matrix cell. Tool stdout is mirrored
// to stderr so CI logs keep the full output while the artifact path is
// parsed from it.
func (b *Builder) Build(ctx context.Context, key revision.MatrixKey, buildLabel string) (artifact.Artifact, error) {
	args := b.args(key, buildLabel)
	logger := slog.With("backend", backendName, "matrix", key.String())
	logger.Info("Build started", "tool", b.config.Tool, "args", strings.Join(args, " "))

	var stdout bytes.Buffer
	cmd := exec.CommandContext(ctx, b.config.Tool, args...)
	cmd.Stdout = io.MultiWriter(&stdout, os.Stderr)
	cmd.Stderr = os.Stderr

	start := time.Now()
	built := false
	defer func() {
		b.metrics.RecordBuild(ctx, backendName, key.String(), built, time.Since(start).Seconds())
	}()

	if err := cmd.Run(); err != nil {
		// -1 when the tool could not be started or died on a signal
		exitCode := -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			exitCode = exitErr.ExitCode()
		}
		logger.Error("Build tool failed", "exitCode", exitCode, "error", err)
		return artifact.Artifact{}, apperrors.BuildFailed(key.String(), exitCode, err)
	}

	path := lastLine(stdout.String())
	if path == "" {
		return artifact.Artifact{}, apperrors.Internal("parse build output", fmt.Errorf("build tool printed no artifact path"))
	}

	a, err := artifact.FromFile(path, key)
	if err != nil {
		return artifact.Artifact{}, apperrors.Internal("verify artifact", err)
	}
	built = true
	logger.Info("Build finished", "path", a.Path, "sizeBytes", a.Size, "duration", time.Since(start))
	return a, nil
}

// args assembles the tool invocation for one matrix cell. A non-empty
// buildLabel rides along as a build-string qualifier.
func (b *Builder) args(key revision.MatrixKey, buildLabel string) []string {
	args := []string{
		b.config.RecipeDir,
		b.config.RuntimeFlag, key.RuntimeVersion,
		b.config.NumlibFlag, key.NumericLibVersion,
		"--output-folder", b.config.OutputDir,
	}
	if buildLabel != "" {
		args = append(args, "--label", buildLabel)
	}
	return args
}

// lastLine returns the last non-empty line of s.
func lastLine(s string) string {
	lines := strings.Split(s, "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if line := strings.TrimSpace(lines[i]); line != "" {
			return line
		}
	}
	return ""
}

// Verify Builder implements pipeline.Builder
var _ pipeline.Builder = (*Builder)(nil)
