// Package channel decides which distribution channel a revision publishes to.
package channel

import (
	"strings"

	"releaser/internal/revision"
)

// Channel is a distribution channel artifacts are published to.
type Channel string

// Distribution channels.
const (
	Main Channel = "main"
	Dev  Channel = "dev"
)

// DevLabel qualifies artifacts built from untagged revisions.
const DevLabel = "dev"

// Decision is the routing outcome for one revision.
type Decision struct {
	Channel    Channel
	BuildLabel string // empty for release builds
}

// Resolve maps a revision to its publication channel. A revision releases
// to Main iff it carries a tag starting with "v"; everything else routes to
// Dev with the dev build label. Branch names never influence routing, so
// only explicit version tags can reach the public channel. Tags are not
// validated beyond the leading letter; a malformed v-tag still routes to
// Main.
func Resolve(rev revision.Context) Decision {
	if rev.Tag != nil && strings.HasPrefix(*rev.Tag, "v") {
		return Decision{Channel: Main}
	}
	return Decision{Channel: Dev, BuildLabel: DevLabel}
}
