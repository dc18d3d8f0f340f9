package manager

import (
	"context"
	"fmt"
	"log/slog"

	"chunkvault/internal/bus"
	"chunkvault/internal/logging"
)

// nodeLookup resolves a NodeURL to the NodeID the bus needs for replication
// routing: the replication_queue is partitioned per target node, so the
// planner must know the target's id, not just its URL.
type nodeLookup interface {
	NodeIDForURL(nodeURL string) (string, bool)
}

// Planner implements the replication planning algorithm: for every chunk
// whose committed-or-in-flight replica count is below the configured
// replication factor, it picks additional active nodes — preserving
// registry insertion order — and enqueues a replication order for each.
type Planner struct {
	registry  *Registry
	directory *Directory
	bus       bus.Bus
	audit     *AuditLog
	cfg       Config
	tunables  *TunablesStore
	logger    *slog.Logger
}

// SetTunables attaches a live TunablesStore, switching ReplicationFactor and
// LivenessTimeout reads from the static Config to whatever the store
// currently holds. Called once at startup when config hot-reload is wired;
// nil (the default) preserves the static Config's values.
func (p *Planner) SetTunables(store *TunablesStore) {
	p.tunables = store
}

// NewPlanner builds a Planner over the given components.
func NewPlanner(registry *Registry, directory *Directory, b bus.Bus, audit *AuditLog, cfg Config, logger *slog.Logger) *Planner {
	return &Planner{
		registry:  registry,
		directory: directory,
		bus:       b,
		audit:     audit,
		cfg:       cfg,
		logger:    logging.Default(logger).With("component", "manager", "part", "planner"),
	}
}

// PlanChunk evaluates one (filename, chunkIndex)'s replica set and enqueues
// replication orders to bring it up to the configured replication factor, if
// enough active candidates exist. Safe to call repeatedly; replicas already
// in flight are never double-ordered (Directory.AppendInFlight is
// idempotent and EachChunk/ChunkReplicas reflect pending orders immediately).
func (p *Planner) PlanChunk(ctx context.Context, filename string, chunkIndex int) {
	t := tunables(p.tunables, p.cfg)

	current := p.directory.ChunkReplicas(filename, chunkIndex)
	if len(current) >= t.ReplicationFactor {
		return
	}
	if len(current) == 0 {
		p.logger.Warn("chunk has no replicas to source from", "filename", filename, "chunk_index", chunkIndex)
		return
	}

	have := make(map[string]bool, len(current))
	for _, r := range current {
		have[r.NodeURL] = true
	}

	active := p.registry.ActiveURLs(t.LivenessTimeout)
	needed := t.ReplicationFactor - len(current)
	source := current[0].NodeURL

	for _, candidate := range active {
		if needed <= 0 {
			break
		}
		if have[candidate] {
			continue
		}
		targetID, ok := p.registry.NodeIDForURL(candidate)
		if !ok {
			continue
		}
		p.directory.AppendInFlight(filename, chunkIndex, candidate)
		have[candidate] = true
		needed--

		order := bus.Replicate{
			Filename:      filename,
			ChunkIndex:    chunkIndex,
			SourceNodeURL: source,
			TargetNodeURL: candidate,
			TargetNodeID:  targetID,
		}
		if err := p.bus.PublishReplicate(ctx, order); err != nil {
			p.logger.Error("publish replicate order", "filename", filename, "chunk_index", chunkIndex, "target", candidate, "error", err)
			continue
		}
		p.audit.Write("REPLICATE", fmt.Sprintf("filename=%s chunk_index=%d source=%s target=%s", filename, chunkIndex, source, candidate))
	}

	if needed > 0 {
		p.logger.Warn("not enough active candidates to reach replication factor",
			"filename", filename, "chunk_index", chunkIndex, "short_by", needed)
	}
}

// PlanFile evaluates every known chunk of filename.
func (p *Planner) PlanFile(ctx context.Context, filename string) {
	snap, ok := p.directory.List()[filename]
	if !ok {
		return
	}
	for idx := range snap.Chunks {
		p.PlanChunk(ctx, filename, idx)
	}
}

// PlanAll evaluates every chunk of every file currently in the directory.
// Used by the periodic sweep to catch under-replicated chunks left by a
// node that went inactive between registrations.
func (p *Planner) PlanAll(ctx context.Context) {
	t := tunables(p.tunables, p.cfg)
	p.directory.EachChunk(func(ref ChunkRef, replicas []Replica) {
		if len(replicas) >= t.ReplicationFactor {
			return
		}
		p.PlanChunk(ctx, ref.Filename, ref.ChunkIndex)
	})
}
