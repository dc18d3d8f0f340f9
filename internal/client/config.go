// Package client implements the chunking/assembly protocol: splitting a
// local file into fixed-size chunks, distributing them round-robin across
// the manager-supplied active node set, and reassembling a download from a
// manager-supplied chunk_index -> node_url map.
package client

import "time"

// ChunkSize is the fixed chunk size a file is split into.
const ChunkSize = 128 << 20 // 128 MiB

// Config holds the client's tunable parameters.
type Config struct {
	ManagerURL string

	// DownloadConcurrency bounds how many chunk fetches run in parallel per
	// file download. Defaults to 4 if zero.
	DownloadConcurrency int

	// RPCTimeout bounds every outbound HTTP call (manager and node).
	RPCTimeout time.Duration
}

// DefaultConfig returns the tunables' documented defaults.
func DefaultConfig() Config {
	return Config{
		DownloadConcurrency: 4,
		RPCTimeout:          10 * time.Second,
	}
}

func (c Config) downloadConcurrency() int {
	if c.DownloadConcurrency > 0 {
		return c.DownloadConcurrency
	}
	return 4
}
