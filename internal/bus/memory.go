package bus

import (
	"context"
	"log/slog"
	"sync"

	"chunkvault/internal/logging"
)

// Memory is an in-process Bus backed by Go channels. It is the default
// transport for single-process demos and tests; PublishReplicate routes by
// target node id the same way the Kafka and MQTT transports do, just without
// crossing a process boundary.
type Memory struct {
	logger *slog.Logger

	mu        sync.Mutex
	managerCh chan ManagerMessage
	replCh    map[string]chan Replicate
	closed    bool
}

// NewMemory creates an in-process Bus. bufSize sizes each channel's buffer;
// a publish to a full buffer blocks the publisher (callers should publish
// from a goroutine, or size the buffer generously for tests).
func NewMemory(bufSize int, logger *slog.Logger) *Memory {
	if bufSize <= 0 {
		bufSize = 64
	}
	return &Memory{
		logger:    logging.Default(logger).With("component", "bus", "transport", "memory"),
		managerCh: make(chan ManagerMessage, bufSize),
		replCh:    make(map[string]chan Replicate),
	}
}

func (m *Memory) PublishHeartbeat(ctx context.Context, hb Heartbeat) error {
	return m.publishManager(ctx, ManagerMessage{Kind: KindHeartbeat, Heartbeat: &hb})
}

func (m *Memory) PublishRegisterFile(ctx context.Context, rf RegisterFile) error {
	return m.publishManager(ctx, ManagerMessage{Kind: KindRegisterFile, RegisterFile: &rf})
}

func (m *Memory) publishManager(ctx context.Context, msg ManagerMessage) error {
	select {
	case m.managerCh <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *Memory) ConsumeManager(ctx context.Context) (<-chan ManagerMessage, error) {
	return m.managerCh, nil
}

func (m *Memory) PublishReplicate(ctx context.Context, r Replicate) error {
	ch := m.replicationChannel(r.TargetNodeID)
	select {
	case ch <- r:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *Memory) ConsumeReplication(ctx context.Context, nodeID string) (<-chan Replicate, error) {
	return m.replicationChannel(nodeID), nil
}

func (m *Memory) replicationChannel(nodeID string) chan Replicate {
	m.mu.Lock()
	defer m.mu.Unlock()
	ch, ok := m.replCh[nodeID]
	if !ok {
		ch = make(chan Replicate, 64)
		m.replCh[nodeID] = ch
	}
	return ch
}

func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true
	close(m.managerCh)
	for _, ch := range m.replCh {
		close(ch)
	}
	return nil
}
