package service

import (
	"context"
	"time"

	"github.com/vocdoni/kernel-prover/circuits"
)

// DownloadArtifacts loads the provided circuit artifacts concurrently,
// downloading the ones missing from the local cache.
func DownloadArtifacts(timeout time.Duration, artifacts ...*circuits.Artifact) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return circuits.LoadAll(ctx, artifacts...)
}
