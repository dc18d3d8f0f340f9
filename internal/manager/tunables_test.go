package manager

import (
	"context"
	"testing"
	"time"

	"chunkvault/internal/bus"
)

func TestTunablesStoreGetSet(t *testing.T) {
	store := NewTunablesStore(Tunables{ReplicationFactor: 2, LivenessTimeout: time.Second})
	if got := store.Get().ReplicationFactor; got != 2 {
		t.Fatalf("ReplicationFactor = %d, want 2", got)
	}

	store.Set(Tunables{ReplicationFactor: 5, LivenessTimeout: 2 * time.Second})
	if got := store.Get().ReplicationFactor; got != 5 {
		t.Fatalf("ReplicationFactor after Set = %d, want 5", got)
	}
}

func TestPlannerReadsLiveTunablesWhenAttached(t *testing.T) {
	now := time.Unix(1000, 0)
	registry := NewRegistry(func() time.Time { return now })
	directory := NewDirectory(nil)
	b := bus.NewMemory(16, nil)
	t.Cleanup(func() { b.Close() })
	audit, err := NewAuditLog("", nil)
	if err != nil {
		t.Fatalf("NewAuditLog: %v", err)
	}

	cfg := DefaultConfig()
	cfg.ReplicationFactor = 1 // static value the planner was built with
	cfg.LivenessTimeout = time.Minute

	planner := NewPlanner(registry, directory, b, audit, cfg, nil)

	store := NewTunablesStore(Tunables{ReplicationFactor: 3, LivenessTimeout: time.Minute})
	planner.SetTunables(store)

	registry.Upsert("n1", "http://n1", "")
	registry.Upsert("n2", "http://n2", "")
	registry.Upsert("n3", "http://n3", "")
	directory.Register("f.txt", 0, "http://n1", 1)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	ch2, err := b.ConsumeReplication(ctx, "n2")
	if err != nil {
		t.Fatalf("ConsumeReplication n2: %v", err)
	}
	ch3, err := b.ConsumeReplication(ctx, "n3")
	if err != nil {
		t.Fatalf("ConsumeReplication n3: %v", err)
	}

	planner.PlanChunk(ctx, "f.txt", 0)

	for _, ch := range []<-chan bus.Replicate{ch2, ch3} {
		select {
		case <-ch:
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for replicate order")
		}
	}

	// With the live store reporting ReplicationFactor=3 (not the static
	// cfg's 1), the planner should have ordered replication to 2 more nodes.
	replicas := directory.ChunkReplicas("f.txt", 0)
	if len(replicas) != 3 {
		t.Fatalf("replica count = %d, want 3 (planner should have read the live tunables, not the static cfg)", len(replicas))
	}
}

func TestSweepReloadRestartsSchedulerOnIntervalChange(t *testing.T) {
	now := time.Unix(1000, 0)
	registry := NewRegistry(func() time.Time { return now })
	directory := NewDirectory(nil)
	b := bus.NewMemory(16, nil)
	t.Cleanup(func() { b.Close() })
	audit, err := NewAuditLog("", nil)
	if err != nil {
		t.Fatalf("NewAuditLog: %v", err)
	}

	cfg := DefaultConfig()
	cfg.SweepInterval = time.Hour
	cfg.LivenessTimeout = time.Minute
	cfg.ReplicationFactor = 1

	planner := NewPlanner(registry, directory, b, audit, cfg, nil)
	sweep := NewSweep(registry, directory, planner, audit, cfg, nil)

	store := NewTunablesStore(Tunables{
		ReplicationFactor: cfg.ReplicationFactor,
		LivenessTimeout:   cfg.LivenessTimeout,
		SweepInterval:     cfg.SweepInterval,
		GracePeriod:       cfg.GracePeriod,
	})
	sweep.SetTunables(store)

	if err := sweep.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer sweep.Stop()

	if sweep.scheduledInterval != time.Hour {
		t.Fatalf("scheduledInterval = %v, want 1h", sweep.scheduledInterval)
	}

	store.Set(Tunables{
		ReplicationFactor: cfg.ReplicationFactor,
		LivenessTimeout:   cfg.LivenessTimeout,
		SweepInterval:     time.Minute,
		GracePeriod:       cfg.GracePeriod,
	})

	if err := sweep.Reload(); err != nil {
		t.Fatalf("Reload: %v", err)
	}

	if sweep.scheduledInterval != time.Minute {
		t.Fatalf("scheduledInterval after Reload = %v, want 1m", sweep.scheduledInterval)
	}
}
