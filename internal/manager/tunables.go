package manager

import (
	"sync/atomic"
	"time"
)

// Tunables is the subset of Config that can change without a restart.
// ChunkSize, HeartbeatInterval and RPCTimeout are deliberately absent:
// they are read once when their components are built and require a
// restart to change.
type Tunables struct {
	ReplicationFactor int
	LivenessTimeout   time.Duration
	SweepInterval     time.Duration
	GracePeriod       time.Duration
}

func tunablesFromConfig(cfg Config) Tunables {
	return Tunables{
		ReplicationFactor: cfg.ReplicationFactor,
		LivenessTimeout:   cfg.LivenessTimeout,
		SweepInterval:     cfg.SweepInterval,
		GracePeriod:       cfg.GracePeriod,
	}
}

// TunablesStore holds the live value of Tunables behind an atomic pointer,
// so the config watcher can push a reload from one goroutine while the
// planner and sweep read it from others without a lock.
type TunablesStore struct {
	v atomic.Pointer[Tunables]
}

// NewTunablesStore seeds the store with initial.
func NewTunablesStore(initial Tunables) *TunablesStore {
	s := &TunablesStore{}
	s.Set(initial)
	return s
}

// Get returns the current Tunables.
func (s *TunablesStore) Get() Tunables {
	return *s.v.Load()
}

// Set replaces the current Tunables.
func (s *TunablesStore) Set(t Tunables) {
	s.v.Store(&t)
}

// tunables returns the live value from store if one is attached, otherwise
// falls back to the static Config this component was built with. store is
// nil unless SetTunables was called, which keeps every existing constructor
// call site (and every test built against plain Config) working unchanged.
func tunables(store *TunablesStore, cfg Config) Tunables {
	if store == nil {
		return tunablesFromConfig(cfg)
	}
	return store.Get()
}
