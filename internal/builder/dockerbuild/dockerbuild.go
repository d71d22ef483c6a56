// Package dockerbuild runs the build tool inside a container on the host
// Docker daemon. The recipe and output directories are bind-mounted so the
// produced artifact lands on the host filesystem.
package dockerbuild

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/mount"
	"github.com/docker/docker/client"
	"github.com/google/uuid"

	"releaser/internal/apperrors"
	"releaser/internal/artifact"
	"releaser/internal/observability"
	"releaser/internal/pipeline"
	"releaser/internal/revision"
)

// backendName is the backend attribute on build metrics.
const backendName = "docker"

// Builder implements pipeline.Builder using the Docker API.
//
// Each Build call creates one container, waits for it to exit, and removes
// it. The container's stdout carries the artifact path (inside the
// container); the host path is derived from the bind-mounted output dir.
type Builder struct {
	client  *client.Client
	config  Config
	metrics *observability.Metrics
}

// New creates a containerized builder and verifies the daemon is reachable.
// An unreachable daemon is a configuration error, not a build failure.
// metrics may be nil.
func New(ctx context.Context, cfg Config, metrics *observability.Metrics) (*Builder, error) {
	if cfg.Image == "" {
		return nil, apperrors.Validation("BUILD_IMAGE", "build image is required for the docker backend")
	}
	if cfg.Workspace == "" {
		cfg.Workspace = "/workspace"
	}

	dockerClient, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, apperrors.Validation("DOCKER_HOST", fmt.Sprintf("failed to create docker client: %v", err))
	}
	if _, err := dockerClient.Ping(ctx); err != nil {
		return nil, apperrors.Validation("DOCKER_HOST", fmt.Sprintf("docker daemon is unreachable: %v", err))
	}

	return &Builder{client: dockerClient, config: cfg, metrics: metrics}, nil
}

// Close releases the Docker client.
func (b *Builder) Close() error {
	return b.client.Close()
}

// Build runs the tool in a fresh container for the matrix cell. Exactly one
// container per call; any failure before an exit code is known reports -1.
func (b *Builder) Build(ctx context.Context, key revision.MatrixKey, buildLabel string) (artifact.Artifact, error) {
	logger := slog.With("backend", backendName, "matrix", key.String(), "image", b.config.Image)

	start := time.Now()
	built := false
	defer func() {
		b.metrics.RecordBuild(ctx, backendName, key.String(), built, time.Since(start).Seconds())
	}()

	recipeDir, err := filepath.Abs(b.config.RecipeDir)
	if err != nil {
		return artifact.Artifact{}, apperrors.Internal("resolve recipe dir", err)
	}
	outputDir, err := filepath.Abs(b.config.OutputDir)
	if err != nil {
		return artifact.Artifact{}, apperrors.Internal("resolve output dir", err)
	}
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return artifact.Artifact{}, apperrors.Internal("create output dir", err)
	}

	if err := b.pullImageIfNeeded(ctx, b.config.Image); err != nil {
		logger.Error("Image pull failed", "error", err)
		return artifact.Artifact{}, apperrors.BuildFailed(key.String(), -1, err)
	}

	containerID, err := b.createBuildContainer(ctx, key, buildLabel, recipeDir, outputDir)
	if err != nil {
		logger.Error("Container create failed", "error", err)
		return artifact.Artifact{}, apperrors.BuildFailed(key.String(), -1, err)
	}
	defer b.removeContainer(context.WithoutCancel(ctx), containerID)

	logger.Info("Build started", "containerId", containerID[:12])

	if err := b.client.ContainerStart(ctx, containerID, container.StartOptions{}); err != nil {
		logger.Error("Container start failed", "error", err)
		return artifact.Artifact{}, apperrors.BuildFailed(key.String(), -1, err)
	}

	exitCode, err := b.waitForExit(ctx, containerID)
	if err != nil {
		logger.Error("Container wait failed", "error", err)
		return artifact.Artifact{}, apperrors.BuildFailed(key.String(), -1, err)
	}

	stdout, err := b.collectOutput(ctx, containerID)
	if err != nil {
		logger.Warn("Failed to collect build output", "error", err)
	}

	if exitCode != 0 {
		logger.Error("Build tool failed", "exitCode", exitCode)
		return artifact.Artifact{}, apperrors.BuildFailed(key.String(), exitCode, fmt.Errorf("build tool exited with code %d", exitCode))
	}

	containerPath := lastLine(stdout)
	if containerPath == "" {
		return artifact.Artifact{}, apperrors.Internal("parse build output", fmt.Errorf("build tool printed no artifact path"))
	}

	// The tool prints a container path; the artifact lives on the host
	// under the bind-mounted output dir.
	hostPath := filepath.Join(outputDir, path.Base(containerPath))
	a, err := artifact.FromFile(hostPath, key)
	if err != nil {
		return artifact.Artifact{}, apperrors.Internal("verify artifact", err)
	}

	built = true
	logger.Info("Build finished", "path", a.Path, "sizeBytes", a.Size, "duration", time.Since(start))
	return a, nil
}

// createBuildContainer creates the build container with the recipe and
// output directories mounted under the workspace.
func (b *Builder) createBuildContainer(ctx context.Context, key revision.MatrixKey, buildLabel, recipeDir, outputDir string) (string, error) {
	recipeMount := path.Join(b.config.Workspace, "recipe")
	outputMount := path.Join(b.config.Workspace, "dist")

	cmd := []string{
		b.config.Tool,
		recipeMount,
		b.config.RuntimeFlag, key.RuntimeVersion,
		b.config.NumlibFlag, key.NumericLibVersion,
		"--output-folder", outputMount,
	}
	if buildLabel != "" {
		cmd = append(cmd, "--label", buildLabel)
	}

	containerConfig := &container.Config{
		Image:      b.config.Image,
		Cmd:        cmd,
		WorkingDir: b.config.Workspace,
		Labels: map[string]string{
			"managed-by":   "release-pipeline",
			"build.matrix": key.String(),
		},
	}

	hostConfig := &container.HostConfig{
		Mounts: []mount.Mount{
			{
				Type:     mount.TypeBind,
				Source:   recipeDir,
				Target:   recipeMount,
				ReadOnly: true,
			},
			{
				Type:   mount.TypeBind,
				Source: outputDir,
				Target: outputMount,
			},
		},
	}

	containerName := fmt.Sprintf("release-build-%s-%s", key.String(), uuid.NewString()[:8])
	resp, err := b.client.ContainerCreate(ctx, containerConfig, hostConfig, nil, nil, containerName)
	if err != nil {
		return "", err
	}
	return resp.ID, nil
}

func (b *Builder) pullImageIfNeeded(ctx context.Context, imageName string) error {
	_, err := b.client.ImageInspect(ctx, imageName)
	if err == nil {
		return nil
	}

	slog.Info("Pulling build image", "image", imageName)
	reader, err := b.client.ImagePull(ctx, imageName, image.PullOptions{})
	if err != nil {
		return err
	}
	defer reader.Close()

	_, err = io.Copy(io.Discard, reader)
	return err
}

func (b *Builder) waitForExit(ctx context.Context, containerID string) (int, error) {
	statusCh, errCh := b.client.ContainerWait(ctx, containerID, container.WaitConditionNotRunning)

	select {
	case <-ctx.Done():
		return -1, ctx.Err()
	case err := <-errCh:
		return -1, err
	case status := <-statusCh:
		if status.Error != nil {
			return int(status.StatusCode), fmt.Errorf("%s", status.Error.Message)
		}
		return int(status.StatusCode), nil
	}
}

// collectOutput reads the exited container's log stream, demultiplexing
// stdout for parsing and mirroring stderr to the process stderr.
func (b *Builder) collectOutput(ctx context.Context, containerID string) (string, error) {
	logs, err := b.client.ContainerLogs(ctx, containerID, container.LogsOptions{
		ShowStdout: true,
		ShowStderr: true,
	})
	if err != nil {
		return "", err
	}
	defer logs.Close()

	var stdout bytes.Buffer
	header := make([]byte, 8)

	for {
		if _, err := io.ReadFull(logs, header); err != nil {
			if err == io.EOF {
				return stdout.String(), nil
			}
			return stdout.String(), err
		}

		size := int(header[4])<<24 | int(header[5])<<16 | int(header[6])<<8 | int(header[7])
		if size == 0 {
			continue
		}

		payload := make([]byte, size)
		if _, err := io.ReadFull(logs, payload); err != nil {
			return stdout.String(), err
		}

		if header[0] == 2 {
			os.Stderr.Write(payload)
		} else {
			stdout.Write(payload)
			os.Stderr.Write(payload)
		}
	}
}

func (b *Builder) removeContainer(ctx context.Context, containerID string) {
	if containerID == "" {
		return
	}
	stopTimeout := 10
	_ = b.client.ContainerStop(ctx, containerID, container.StopOptions{Timeout: &stopTimeout})
	_ = b.client.ContainerRemove(ctx, containerID, container.RemoveOptions{Force: true})
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
