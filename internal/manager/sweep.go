package manager

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron/v2"

	"chunkvault/internal/logging"
)

// Sweep is the periodic liveness check and re-replication trigger.
// On each tick it marks nodes inactive by simply letting
// their heartbeat age past LivenessTimeout (Registry needs no explicit
// transition), prunes replicas that have been inactive for longer than
// LivenessTimeout+GracePeriod, and re-runs the planner over every
// under-replicated chunk.
type Sweep struct {
	registry  *Registry
	directory *Directory
	planner   *Planner
	audit     *AuditLog
	cfg       Config
	tunables  *TunablesStore
	logger    *slog.Logger

	scheduler         gocron.Scheduler
	scheduledInterval time.Duration
}

// SetTunables attaches a live TunablesStore. Call before Start; a change to
// SweepInterval observed after Start takes effect on the next Reload call,
// not retroactively on the already-scheduled job.
func (s *Sweep) SetTunables(store *TunablesStore) {
	s.tunables = store
}

// Reload restarts the sweep scheduler if SweepInterval has changed since it
// was last started. Safe to call even if Start was never called.
func (s *Sweep) Reload() error {
	if s.scheduler == nil {
		return nil
	}
	t := tunables(s.tunables, s.cfg)
	if t.SweepInterval == s.scheduledInterval {
		return nil
	}
	if err := s.Stop(); err != nil {
		return err
	}
	return s.Start()
}

// NewSweep builds a Sweep. Call Start to begin the periodic tick.
func NewSweep(registry *Registry, directory *Directory, planner *Planner, audit *AuditLog, cfg Config, logger *slog.Logger) *Sweep {
	return &Sweep{
		registry:  registry,
		directory: directory,
		planner:   planner,
		audit:     audit,
		cfg:       cfg,
		logger:    logging.Default(logger).With("component", "manager", "part", "sweep"),
	}
}

// Start schedules the sweep to run every SweepInterval, via gocron.
func (s *Sweep) Start() error {
	interval := tunables(s.tunables, s.cfg).SweepInterval
	sched, err := gocron.NewScheduler()
	if err != nil {
		return fmt.Errorf("manager: create sweep scheduler: %w", err)
	}
	_, err = sched.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			s.Run(context.Background())
		}),
		gocron.WithName("liveness-sweep"),
	)
	if err != nil {
		return fmt.Errorf("manager: schedule sweep job: %w", err)
	}
	s.scheduler = sched
	s.scheduledInterval = interval
	sched.Start()
	return nil
}

// Stop shuts the sweep scheduler down.
func (s *Sweep) Stop() error {
	if s.scheduler == nil {
		return nil
	}
	sched := s.scheduler
	s.scheduler = nil
	return sched.Shutdown()
}

// Run executes one sweep pass immediately. Exported so tests can call it
// without waiting on the scheduled job.
func (s *Sweep) Run(ctx context.Context) {
	s.pruneInactiveReplicas()
	s.planner.PlanAll(ctx)
}

// pruneInactiveReplicas removes every replica whose owning node has been
// inactive for longer than LivenessTimeout+GracePeriod. Pruning waits out
// a bounded grace period rather than acting the instant a node goes
// inactive, so a node that restarts within the window keeps its replicas.
func (s *Sweep) pruneInactiveReplicas() {
	t := tunables(s.tunables, s.cfg)
	gracePeriod := t.GracePeriod
	if gracePeriod <= 0 {
		gracePeriod = t.SweepInterval
	}
	grace := t.LivenessTimeout + gracePeriod

	s.directory.EachChunk(func(ref ChunkRef, replicas []Replica) {
		for _, r := range replicas {
			if s.registry.IsURLActive(r.NodeURL, t.LivenessTimeout) {
				continue
			}
			if s.registry.IsURLActive(r.NodeURL, grace) {
				continue // within grace period, keep the replica listed
			}
			if s.directory.RemoveReplica(ref.Filename, ref.ChunkIndex, r.NodeURL) {
				s.logger.Info("pruned stale replica", "filename", ref.Filename, "chunk_index", ref.ChunkIndex, "node_url", r.NodeURL)
				s.audit.Write("NODE FAILURE", fmt.Sprintf("filename=%s chunk_index=%d node_url=%s", ref.Filename, ref.ChunkIndex, r.NodeURL))
			}
		}
	})
}
