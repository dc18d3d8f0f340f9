package storagenode

import (
	"context"
	"testing"
	"time"

	"chunkvault/internal/bus"
)

func TestRunHeartbeatPublishesPeriodically(t *testing.T) {
	n, b := newTestNode(t, "n1")
	n.cfg.HeartbeatInterval = 20 * time.Millisecond
	n.cfg.DisplayName = "lucid-otter"

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	msgs, err := b.ConsumeManager(ctx)
	if err != nil {
		t.Fatalf("ConsumeManager: %v", err)
	}

	go n.runHeartbeat(ctx)

	select {
	case msg := <-msgs:
		if msg.Kind != bus.KindHeartbeat || msg.Heartbeat.NodeID != "n1" || msg.Heartbeat.DisplayName != "lucid-otter" {
			t.Fatalf("unexpected heartbeat message: %+v", msg)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for heartbeat")
	}
}
