package manager

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"chunkvault/internal/bus"
	"chunkvault/internal/logging"
)

// Manager is the whole control plane: it owns the registry, directory, audit
// log, replication planner and liveness sweep, and drives them from the
// manager_queue plus the HTTP API.
type Manager struct {
	Registry  *Registry
	Directory *Directory
	Planner   *Planner
	Sweep     *Sweep
	Audit     *AuditLog
	API       *API

	bus      bus.Bus
	cfg      Config
	tunables *TunablesStore
	logger   *slog.Logger
}

// SetTunables attaches a live TunablesStore to the manager and every
// component that reads hot-reloadable tunables (the planner and the
// sweep), so a config file change takes effect without a restart.
func (m *Manager) SetTunables(store *TunablesStore) {
	m.tunables = store
	m.Planner.SetTunables(store)
	m.Sweep.SetTunables(store)
	m.API.SetTunables(store)
}

// ReloadTunables pushes a new set of hot-reloadable values into the shared
// store and restarts the sweep scheduler if SweepInterval changed. Intended
// to be called from a config file watcher; a no-op if SetTunables was never
// called.
func (m *Manager) ReloadTunables(t Tunables) error {
	if m.tunables == nil {
		return nil
	}
	m.tunables.Set(t)
	return m.Sweep.Reload()
}

// New builds a Manager. b is the control-message bus; httpAddr is the
// address the HTTP API listens on.
func New(httpAddr string, b bus.Bus, cfg Config, logger *slog.Logger) (*Manager, error) {
	logger = logging.Default(logger).With("component", "manager")

	audit, err := NewAuditLog(cfg.AuditLogPath, time.Now)
	if err != nil {
		return nil, fmt.Errorf("manager: %w", err)
	}

	registry := NewRegistry(time.Now)
	directory := NewDirectory(logger)
	planner := NewPlanner(registry, directory, b, audit, cfg, logger)
	sweep := NewSweep(registry, directory, planner, audit, cfg, logger)
	api := NewAPI(httpAddr, registry, directory, planner, audit, cfg, logger)

	return &Manager{
		Registry:  registry,
		Directory: directory,
		Planner:   planner,
		Sweep:     sweep,
		Audit:     audit,
		API:       api,
		bus:       b,
		cfg:       cfg,
		logger:    logger,
	}, nil
}

// Run starts the bus consumer, the liveness sweep, and the HTTP API, and
// blocks until ctx is cancelled or one of them fails.
func (m *Manager) Run(ctx context.Context) error {
	if err := m.Sweep.Start(); err != nil {
		return fmt.Errorf("manager: start sweep: %w", err)
	}
	defer m.Sweep.Stop()
	defer m.Audit.Close()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return m.consumeBus(ctx)
	})
	g.Go(func() error {
		return m.API.Run(ctx)
	})
	return g.Wait()
}

// consumeBus dispatches every inbound manager_queue message: heartbeats
// update the registry, register_file calls update the directory and, once a
// chunk's replica set is below the replication factor, trigger the planner.
func (m *Manager) consumeBus(ctx context.Context) error {
	msgs, err := m.bus.ConsumeManager(ctx)
	if err != nil {
		return fmt.Errorf("manager: consume bus: %w", err)
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-msgs:
			if !ok {
				return nil
			}
			m.handleMessage(ctx, msg)
		}
	}
}

func (m *Manager) handleMessage(ctx context.Context, msg bus.ManagerMessage) {
	switch msg.Kind {
	case bus.KindHeartbeat:
		hb := msg.Heartbeat
		m.Registry.Upsert(hb.NodeID, hb.NodeURL, hb.DisplayName)
	case bus.KindRegisterFile:
		rf := msg.RegisterFile
		size := m.Directory.Register(rf.Filename, rf.ChunkIndex, rf.NodeURL, rf.TotalChunks)
		m.Audit.Write("REGISTER", fmt.Sprintf("filename=%s chunk_index=%d node_url=%s", rf.Filename, rf.ChunkIndex, rf.NodeURL))
		if size < tunables(m.tunables, m.cfg).ReplicationFactor {
			m.Planner.PlanChunk(ctx, rf.Filename, rf.ChunkIndex)
		}
	default:
		m.logger.Warn("unknown manager message kind", "kind", msg.Kind)
	}
}
