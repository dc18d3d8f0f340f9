package manager

import (
	"context"
	"testing"
	"time"

	"chunkvault/internal/bus"
)

func newTestPlanner(t *testing.T, now time.Time, replicationFactor int) (*Planner, *Registry, *Directory, *bus.Memory) {
	t.Helper()
	registry := NewRegistry(func() time.Time { return now })
	directory := NewDirectory(nil)
	b := bus.NewMemory(16, nil)
	t.Cleanup(func() { b.Close() })
	audit, err := NewAuditLog("", nil)
	if err != nil {
		t.Fatalf("NewAuditLog: %v", err)
	}
	cfg := DefaultConfig()
	cfg.ReplicationFactor = replicationFactor
	cfg.LivenessTimeout = time.Minute
	planner := NewPlanner(registry, directory, b, audit, cfg, nil)
	return planner, registry, directory, b
}

func TestPlannerEnqueuesReplicationToReachFactor(t *testing.T) {
	now := time.Unix(1000, 0)
	planner, registry, directory, b := newTestPlanner(t, now, 2)

	registry.Upsert("n1", "http://n1", "")
	registry.Upsert("n2", "http://n2", "")
	registry.Upsert("n3", "http://n3", "")
	directory.Register("f.txt", 0, "http://n1", 1)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	ch, err := b.ConsumeReplication(ctx, "n2")
	if err != nil {
		t.Fatalf("ConsumeReplication: %v", err)
	}

	planner.PlanChunk(ctx, "f.txt", 0)

	select {
	case order := <-ch:
		if order.SourceNodeURL != "http://n1" || order.TargetNodeURL != "http://n2" {
			t.Fatalf("unexpected replicate order: %+v", order)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for replicate order")
	}

	replicas := directory.ChunkReplicas("f.txt", 0)
	if len(replicas) != 2 {
		t.Fatalf("expected 2 replicas after planning (1 committed + 1 in-flight), got %+v", replicas)
	}
}

func TestPlannerSkipsChunkAlreadyAtFactor(t *testing.T) {
	now := time.Unix(1000, 0)
	planner, registry, directory, b := newTestPlanner(t, now, 2)

	registry.Upsert("n1", "http://n1", "")
	registry.Upsert("n2", "http://n2", "")
	directory.Register("f.txt", 0, "http://n1", 1)
	directory.Register("f.txt", 0, "http://n2", 1)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	ch, _ := b.ConsumeReplication(ctx, "n2")

	planner.PlanChunk(ctx, "f.txt", 0)

	select {
	case order := <-ch:
		t.Fatalf("expected no replicate order, got %+v", order)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestPlannerSkipsChunkWithNoSourceReplica(t *testing.T) {
	now := time.Unix(1000, 0)
	planner, _, _, _ := newTestPlanner(t, now, 2)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	// No replicas registered at all for this chunk: nothing to source from.
	planner.PlanChunk(ctx, "f.txt", 0)
}

func TestPlannerNeverReplicatesToInactiveNode(t *testing.T) {
	now := time.Unix(1000, 0)
	planner, registry, directory, b := newTestPlanner(t, now, 2)

	registry.Upsert("n1", "http://n1", "")
	registry.Upsert("n2", "http://n2", "")
	directory.Register("f.txt", 0, "http://n1", 1)

	// n2 goes stale.
	now = now.Add(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	ch, _ := b.ConsumeReplication(ctx, "n2")

	planner.PlanChunk(ctx, "f.txt", 0)

	select {
	case order := <-ch:
		t.Fatalf("expected no replicate order to inactive node, got %+v", order)
	case <-time.After(100 * time.Millisecond):
	}
}
