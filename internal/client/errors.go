package client

import "errors"

// Sentinel errors for the client's abstract failure kinds. Callers use
// errors.Is against these.
var (
	// ErrNoNodesAvailable is returned when the manager has no active
	// storage nodes to place chunks on.
	ErrNoNodesAvailable = errors.New("client: no active storage nodes available")

	// ErrNotFound is returned when the manager has no directory entry (or
	// no active replica) for a requested filename.
	ErrNotFound = errors.New("client: file not found")

	// ErrIntegrityMismatch is returned when a downloaded chunk's recomputed
	// digest does not match its header's md5 field.
	ErrIntegrityMismatch = errors.New("client: chunk integrity mismatch")
)
