package manager

import (
	"context"
	"testing"
	"time"

	"chunkvault/internal/bus"
)

func TestManagerDispatchesHeartbeatAndRegisterFile(t *testing.T) {
	b := bus.NewMemory(8, nil)
	defer b.Close()

	cfg := DefaultConfig()
	cfg.ReplicationFactor = 1
	cfg.AuditLogPath = ""
	m, err := New("127.0.0.1:0", b, cfg, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go m.consumeBus(ctx)

	if err := b.PublishHeartbeat(ctx, bus.Heartbeat{NodeID: "n1", NodeURL: "http://n1"}); err != nil {
		t.Fatalf("PublishHeartbeat: %v", err)
	}
	if err := b.PublishRegisterFile(ctx, bus.RegisterFile{Filename: "f.txt", ChunkIndex: 0, NodeURL: "http://n1", TotalChunks: 1}); err != nil {
		t.Fatalf("PublishRegisterFile: %v", err)
	}

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if m.Registry.IsURLActive("http://n1", time.Minute) {
			replicas := m.Directory.ChunkReplicas("f.txt", 0)
			if len(replicas) == 1 {
				return
			}
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("manager did not dispatch heartbeat/register_file messages in time")
}
