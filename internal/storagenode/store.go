// Package storagenode implements a storage node: a local chunk directory
// served over HTTP, a heartbeat publisher, and a replication-order
// consumer.
package storagenode

import (
	"context"
	"errors"
	"io"
)

// ErrNotExist is returned by Store.Open when the named chunk blob is not
// present. Backed by each implementation's own not-found error.
var ErrNotExist = errors.New("storagenode: chunk blob does not exist")

// Store persists chunk blobs under an opaque key (the node's
// "<filename>.chunk<index>" naming). Implementations must make Put atomic
// from a concurrent Open's point of view: a reader never observes a
// partially written blob.
type Store interface {
	// Put writes the full contents of body under key, replacing any existing
	// blob atomically.
	Put(ctx context.Context, key string, body io.Reader) error

	// Open returns a reader for key's contents. Caller must Close it.
	// Returns ErrNotExist if key is absent.
	Open(ctx context.Context, key string) (io.ReadCloser, error)

	// Delete removes key. Idempotent: deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error
}
