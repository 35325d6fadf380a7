// Package token tracks per-key request identity.
//
// Each key has a strictly increasing counter. Begin allocates a new token for
// a key, superseding every token issued before it; Current answers which
// token is the latest. A settling request whose token is no longer current
// must not write state anywhere; that single rule is what lets overlapping
// fetches, mutations and revalidations for the same key race safely.
package token

import (
	"context"
	"time"
)

// Tracker abstracts where tokens live.
// Use Local (default) for in-process tokens, or Redis for tokens shared
// across replicas.
type Tracker interface {
	// Begin atomically allocates and installs a new token for the key,
	// invalidating any previously issued token.
	Begin(ctx context.Context, storageKey string) (uint64, error)
	// Current returns the latest token; missing => 0.
	Current(ctx context.Context, storageKey string) (uint64, error)
	// Cleanup prunes old metadata if applicable (no-op for Redis).
	Cleanup(retention time.Duration)
	// Close releases resources (no-op ok).
	Close(context.Context) error
}
