// Package artifact describes built artifacts awaiting publication.
package artifact

import (
	"fmt"
	"os"

	"github.com/opencontainers/go-digest"

	"releaser/internal/revision"
)

// Artifact is a built, uploadable file produced for one matrix cell.
// Created once per pipeline run and consumed once by the publisher; the
// pipeline persists nothing about it across runs.
type Artifact struct {
	Path   string
	Size   int64
	Matrix revision.MatrixKey
	Digest digest.Digest // sha256 identity the upload service keys on
}

// FromFile builds an Artifact for path, verifying the file exists and is
// readable and computing its canonical digest.
func FromFile(path string, matrix revision.MatrixKey) (Artifact, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Artifact{}, fmt.Errorf("artifact not readable: %w", err)
	}
	if info.IsDir() {
		return Artifact{}, fmt.Errorf("artifact path %s is a directory", path)
	}

	file, err := os.Open(path)
	if err != nil {
		return Artifact{}, fmt.Errorf("artifact not readable: %w", err)
	}
	defer file.Close()

	dgst, err := digest.FromReader(file)
	if err != nil {
		return Artifact{}, fmt.Errorf("artifact digest: %w", err)
	}

	return Artifact{
		Path:   path,
		Size:   info.Size(),
		Matrix: matrix,
		Digest: dgst,
	}, nil
}
