package artifact

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/opencontainers/go-digest"

	"releaser/internal/revision"
)

func TestFromFile(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := filepath.Join(dir, "pkg-2.0.1-py310.tar.bz2")
	content := []byte("artifact payload")
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("failed to write artifact: %v", err)
	}

	matrix := revision.MatrixKey{RuntimeVersion: "3.10", NumericLibVersion: "1.24"}
	a, err := FromFile(path, matrix)
	if err != nil {
		t.Fatalf("FromFile() error: %v", err)
	}

	if a.Path != path {
		t.Errorf("expected path %q, got %q", path, a.Path)
	}
	if a.Size != int64(len(content)) {
		t.Errorf("expected size %d, got %d", len(content), a.Size)
	}
	if a.Matrix != matrix {
		t.Errorf("expected matrix %v, got %v", matrix, a.Matrix)
	}
	if a.Digest != digest.FromBytes(content) {
		t.Errorf("expected digest %s, got %s", digest.FromBytes(content), a.Digest)
	}
}

func TestFromFileDigestIsStable(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := filepath.Join(dir, "artifact.tar.bz2")
	if err := os.WriteFile(path, []byte("same bytes"), 0o644); err != nil {
		t.Fatalf("failed to write artifact: %v", err)
	}

	matrix := revision.MatrixKey{RuntimeVersion: "3.8", NumericLibVersion: "1.16"}
	first, err := FromFile(path, matrix)
	if err != nil {
		t.Fatalf("FromFile() error: %v", err)
	}
	second, err := FromFile(path, matrix)
	if err != nil {
		t.Fatalf("FromFile() error: %v", err)
	}
	if first.Digest != second.Digest {
		t.Errorf("digest not stable: %s vs %s", first.Digest, second.Digest)
	}
}

func TestFromFileMissing(t *testing.T) {
	t.Parallel()
	_, err := FromFile(filepath.Join(t.TempDir(), "missing.tar.bz2"), revision.MatrixKey{})
	if err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestFromFileDirectory(t *testing.T) {
	t.Parallel()
	_, err := FromFile(t.TempDir(), revision.MatrixKey{})
	if err == nil {
		t.Fatal("expected error for directory path")
	}
}
