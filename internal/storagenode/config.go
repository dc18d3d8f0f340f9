package storagenode

import "time"

// Config holds a storage node's tunable parameters.
type Config struct {
	NodeID      string
	NodeURL     string // this node's own reachable base URL, advertised in heartbeats
	DisplayName string

	HeartbeatInterval time.Duration
	RPCTimeout        time.Duration

	// UploadRateLimit caps inbound upload bytes/sec across all chunk writes;
	// zero disables limiting.
	UploadRateLimitBytesPerSec float64
	UploadRateLimitBurstBytes  int
}

// DefaultConfig returns the tunables' documented defaults.
func DefaultConfig() Config {
	return Config{
		HeartbeatInterval: 5 * time.Second,
		RPCTimeout:        5 * time.Second,
	}
}
