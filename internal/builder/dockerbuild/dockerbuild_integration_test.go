//go:build integration

package dockerbuild

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"

	"releaser/internal/apperrors"
	"releaser/internal/revision"
)

const buildImage = "alpine:latest"

var integrationKey = revision.MatrixKey{RuntimeVersion: "3.8", NumericLibVersion: "1.16"}

// writeContainerTool drops a stub build script into the recipe dir, which is
// bind-mounted into the container.
func writeContainerTool(t *testing.T, recipeDir, script string) string {
	t.Helper()
	hostPath := filepath.Join(recipeDir, "build.sh")
	if err := os.WriteFile(hostPath, []byte("#!/bin/sh\n"+script), 0o755); err != nil {
		t.Fatalf("Failed to write stub tool: %v", err)
	}
	return "/workspace/recipe/build.sh"
}

func newIntegrationBuilder(t *testing.T, recipeDir, outputDir, tool string) *Builder {
	t.Helper()
	b, err := New(context.Background(), Config{
		Image:       buildImage,
		Tool:        tool,
		RecipeDir:   recipeDir,
		OutputDir:   outputDir,
		RuntimeFlag: "--python",
		NumlibFlag:  "--numpy",
		Workspace:   "/workspace",
	}, nil)
	if err != nil {
		t.Fatalf("Failed to create builder: %v", err)
	}
	t.Cleanup(func() { b.Close() })
	return b
}

func TestBuild_InContainer(t *testing.T) {
	recipeDir := t.TempDir()
	outputDir := t.TempDir()
	tool := writeContainerTool(t, recipeDir, `
echo "building with: $@"
printf 'artifact-bytes' > /workspace/dist/pkg-py3.8-numpy1.16.tar.bz2
echo /workspace/dist/pkg-py3.8-numpy1.16.tar.bz2
`)
	b := newIntegrationBuilder(t, recipeDir, outputDir, tool)

	a, err := b.Build(context.Background(), integrationKey, "dev")
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	wantPath := filepath.Join(outputDir, "pkg-py3.8-numpy1.16.tar.bz2")
	if a.Path != wantPath {
		t.Errorf("Expected host path %s, got %s", wantPath, a.Path)
	}
	if a.Size != int64(len("artifact-bytes")) {
		t.Errorf("Expected size %d, got %d", len("artifact-bytes"), a.Size)
	}
	if a.Digest == "" {
		t.Error("Expected digest to be set")
	}
}

func TestBuild_NonZeroExitReportsExitCode(t *testing.T) {
	recipeDir := t.TempDir()
	outputDir := t.TempDir()
	tool := writeContainerTool(t, recipeDir, `
echo "broken recipe" >&2
exit 7
`)
	b := newIntegrationBuilder(t, recipeDir, outputDir, tool)

	_, err := b.Build(context.Background(), integrationKey, "")
	if err == nil {
		t.Fatal("Expected error")
	}
	if !errors.Is(err, apperrors.ErrBuildFailed) {
		t.Errorf("Expected build failure, got %v", err)
	}

	var appErr *apperrors.Error
	if !errors.As(err, &appErr) {
		t.Fatalf("Expected *apperrors.Error, got %T", err)
	}
	if appErr.ExitCode != 7 {
		t.Errorf("Expected exit code 7, got %d", appErr.ExitCode)
	}
}

func TestBuild_ContainerRemovedAfterRun(t *testing.T) {
	recipeDir := t.TempDir()
	outputDir := t.TempDir()
	tool := writeContainerTool(t, recipeDir, `
printf 'x' > /workspace/dist/pkg.tar.bz2
echo /workspace/dist/pkg.tar.bz2
`)
	b := newIntegrationBuilder(t, recipeDir, outputDir, tool)

	if _, err := b.Build(context.Background(), integrationKey, ""); err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	// The build container is removed on the way out; only unrelated
	// containers may carry the label afterwards.
	containers, err := b.client.ContainerList(context.Background(), container.ListOptions{
		All: true,
		Filters: filters.NewArgs(
			filters.Arg("label", "managed-by=release-pipeline"),
		),
	})
	if err != nil {
		t.Fatalf("Failed to list containers: %v", err)
	}
	for _, c := range containers {
		if c.Labels["build.matrix"] == integrationKey.String() {
			t.Errorf("Expected build container to be removed, found %s", c.ID)
		}
	}
}
