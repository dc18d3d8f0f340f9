package manager

import (
	"log/slog"
	"sync"

	"chunkvault/internal/logging"
)

// Replica is one entry in a chunk's replica set. Committed distinguishes a
// replica the owning node has itself registered from one the replication
// planner optimistically appended before the target acknowledged storage.
type Replica struct {
	NodeURL   string
	Committed bool
}

// fileEntry is the directory's per-filename state.
type fileEntry struct {
	totalChunks int // best known; set on first registration, not persisted across restarts
	chunks      map[int][]Replica
}

// FileSnapshot is a read-only, detached view of one file's directory entry.
type FileSnapshot struct {
	TotalChunks int
	Chunks      map[int][]Replica
}

// Directory is the manager's filename → chunk_index → replica-set map.
// All mutations are serialized under one mutex.
type Directory struct {
	mu     sync.Mutex
	files  map[string]*fileEntry
	logger *slog.Logger
}

// NewDirectory creates an empty directory.
func NewDirectory(logger *slog.Logger) *Directory {
	return &Directory{
		files:  make(map[string]*fileEntry),
		logger: logging.Default(logger).With("component", "manager", "part", "directory"),
	}
}

// Register records that nodeURL holds (filename, chunkIndex) as a committed
// replica — i.e. the node itself announced it via register_file. Appending
// is idempotent: a replica already present (committed or not) is promoted
// to committed but not duplicated. Returns the resulting replica-set size
// for chunkIndex, so the caller can decide whether to trigger replication.
func (d *Directory) Register(filename string, chunkIndex int, nodeURL string, totalChunks int) (size int) {
	d.mu.Lock()
	defer d.mu.Unlock()

	fe, ok := d.files[filename]
	if !ok {
		fe = &fileEntry{chunks: make(map[int][]Replica)}
		d.files[filename] = fe
	}
	if totalChunks > 0 {
		if fe.totalChunks == 0 {
			fe.totalChunks = totalChunks
		} else if fe.totalChunks != totalChunks {
			d.logger.Warn("total_chunks mismatch on registration",
				"filename", filename, "known_total", fe.totalChunks, "reported_total", totalChunks)
		}
	}

	replicas := fe.chunks[chunkIndex]
	for i, r := range replicas {
		if r.NodeURL == nodeURL {
			replicas[i].Committed = true
			fe.chunks[chunkIndex] = replicas
			return len(replicas)
		}
	}
	fe.chunks[chunkIndex] = append(replicas, Replica{NodeURL: nodeURL, Committed: true})
	return len(fe.chunks[chunkIndex])
}

// AppendInFlight optimistically records that a replication order has been
// enqueued for (filename, chunkIndex) → nodeURL, before the target has
// acknowledged storage. A later Register call for the same pair promotes it
// to committed. No-op if nodeURL is already present.
func (d *Directory) AppendInFlight(filename string, chunkIndex int, nodeURL string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	fe, ok := d.files[filename]
	if !ok {
		fe = &fileEntry{chunks: make(map[int][]Replica)}
		d.files[filename] = fe
	}
	for _, r := range fe.chunks[chunkIndex] {
		if r.NodeURL == nodeURL {
			return
		}
	}
	fe.chunks[chunkIndex] = append(fe.chunks[chunkIndex], Replica{NodeURL: nodeURL, Committed: false})
}

// ChunkReplicas returns a detached copy of (filename, chunkIndex)'s replica
// set, in insertion order.
func (d *Directory) ChunkReplicas(filename string, chunkIndex int) []Replica {
	d.mu.Lock()
	defer d.mu.Unlock()
	fe, ok := d.files[filename]
	if !ok {
		return nil
	}
	return append([]Replica(nil), fe.chunks[chunkIndex]...)
}

// ChunkRef identifies one (filename, chunk_index) pair.
type ChunkRef struct {
	Filename   string
	ChunkIndex int
}

// EachChunk invokes fn with a detached copy of every (filename, chunk_index,
// replica-set) triple currently in the directory. Used by the replication
// planner and the liveness sweep, which must not hold the directory lock
// while making bus/network calls.
func (d *Directory) EachChunk(fn func(ref ChunkRef, replicas []Replica)) {
	d.mu.Lock()
	type entry struct {
		ref       ChunkRef
		replicas  []Replica
	}
	var entries []entry
	for filename, fe := range d.files {
		for idx, replicas := range fe.chunks {
			entries = append(entries, entry{ChunkRef{filename, idx}, append([]Replica(nil), replicas...)})
		}
	}
	d.mu.Unlock()

	for _, e := range entries {
		fn(e.ref, e.replicas)
	}
}

// RemoveReplica removes nodeURL from (filename, chunkIndex)'s replica set.
// Reports whether a replica was removed.
func (d *Directory) RemoveReplica(filename string, chunkIndex int, nodeURL string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	fe, ok := d.files[filename]
	if !ok {
		return false
	}
	replicas := fe.chunks[chunkIndex]
	for i, r := range replicas {
		if r.NodeURL == nodeURL {
			fe.chunks[chunkIndex] = append(replicas[:i], replicas[i+1:]...)
			return true
		}
	}
	return false
}

// DownloadLocations picks, for each registered chunk index of filename, one
// active holder (committed replicas preferred over in-flight ones, since
// in-flight may not have materialized yet). Returns NotFound-equivalent
// ok=false if the filename is unknown or no chunk has any active holder.
func (d *Directory) DownloadLocations(filename string, isActive func(nodeURL string) bool) (locations map[int]string, totalChunks int, ok bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	fe, exists := d.files[filename]
	if !exists {
		return nil, 0, false
	}

	locations = make(map[int]string, len(fe.chunks))
	for idx, replicas := range fe.chunks {
		var fallback string
		for _, r := range replicas {
			if !isActive(r.NodeURL) {
				continue
			}
			if r.Committed {
				locations[idx] = r.NodeURL
				fallback = ""
				break
			}
			if fallback == "" {
				fallback = r.NodeURL
			}
		}
		if _, picked := locations[idx]; !picked && fallback != "" {
			locations[idx] = fallback
		}
	}
	if len(locations) == 0 {
		return nil, fe.totalChunks, false
	}
	return locations, fe.totalChunks, true
}

// List returns a full, detached snapshot of the directory.
func (d *Directory) List() map[string]FileSnapshot {
	d.mu.Lock()
	defer d.mu.Unlock()

	out := make(map[string]FileSnapshot, len(d.files))
	for filename, fe := range d.files {
		chunks := make(map[int][]Replica, len(fe.chunks))
		for idx, replicas := range fe.chunks {
			chunks[idx] = append([]Replica(nil), replicas...)
		}
		out[filename] = FileSnapshot{TotalChunks: fe.totalChunks, Chunks: chunks}
	}
	return out
}

// Remove drops filename's directory entry entirely and returns, per node
// URL that held any of its chunks, the chunk indices it held — so the
// caller can dispatch a best-effort delete RPC naming exactly those
// indices. Reports false if filename was unknown.
func (d *Directory) Remove(filename string) (byNode map[string][]int, ok bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	fe, exists := d.files[filename]
	if !exists {
		return nil, false
	}
	byNode = make(map[string][]int)
	for idx, replicas := range fe.chunks {
		for _, r := range replicas {
			byNode[r.NodeURL] = append(byNode[r.NodeURL], idx)
		}
	}
	delete(d.files, filename)
	return byNode, true
}
