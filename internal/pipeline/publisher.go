package pipeline

import (
	"context"

	"releaser/internal/artifact"
	"releaser/internal/channel"
)

// Publisher defines the interface for artifact publication backends.
//
// # Force semantics
//
// Publish performs exactly one upload per call, always with force
// semantics: re-publishing the same artifact to the same channel
// overwrites the prior publication instead of erroring on "already
// exists". This is what makes rerunning a failed pipeline safe without
// manual channel cleanup.
//
// Failures surface as apperrors.ErrPublishFailed with a classified
// reason (auth, network, quota, unknown). There is no retry at this
// layer; retry means rerunning the whole pipeline.
type Publisher interface {
	Publish(ctx context.Context, a artifact.Artifact, ch channel.Channel, creds Credentials) error
}

// Credentials holds the externally-supplied upload token for one run.
type Credentials struct {
	Token string
}

// String redacts the token so Credentials can be logged safely.
func (c Credentials) String() string {
	if c.Token == "" {
		return "Credentials{}"
	}
	return "Credentials{Token:<redacted>}"
}
