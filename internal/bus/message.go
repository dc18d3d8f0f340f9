// Package bus defines the control-message bus between the manager and
// storage nodes: the manager_queue (heartbeats, chunk registrations) and the
// replication_queue (per-node replication orders). Concrete transports
// (in-process channels, Kafka, MQTT) implement the Bus interface.
package bus

import (
	"context"
	"encoding/json"
	"fmt"
)

// Kind tags a control message's variant. Dispatch is always by Kind, never
// by ad-hoc string comparison against raw JSON.
type Kind string

const (
	KindHeartbeat    Kind = "heartbeat"
	KindRegisterFile Kind = "register_file"
	KindReplicate    Kind = "replicate"
)

// Heartbeat is a node's periodic liveness announcement.
type Heartbeat struct {
	NodeID      string `json:"node_id"`
	NodeURL     string `json:"node_url"`
	DisplayName string `json:"display_name,omitempty"`
}

// RegisterFile announces that a node holds a given chunk.
type RegisterFile struct {
	Filename    string `json:"filename"`
	ChunkIndex  int    `json:"chunk_index"`
	NodeURL     string `json:"node_url"`
	TotalChunks int    `json:"total_chunks"`
}

// Replicate is a replication order addressed to exactly one target node.
type Replicate struct {
	Filename       string `json:"filename"`
	ChunkIndex     int    `json:"chunk_index"`
	SourceNodeURL  string `json:"source_node_url"`
	TargetNodeURL  string `json:"target_node_url"`
	TargetNodeID   string `json:"target_node_id"`
}

// ManagerMessage is the tagged union carried on the manager_queue.
type ManagerMessage struct {
	Kind         Kind
	Heartbeat    *Heartbeat
	RegisterFile *RegisterFile
}

// wireManagerMessage is the JSON-on-the-wire shape: a flat object with a
// "type" discriminator, matching the external interface in the control
// message wire format. Heartbeat and RegisterFile both carry node_url at the
// same depth, which encoding/json would silently drop, so it is hoisted here.
type wireManagerMessage struct {
	Type    string `json:"type"`
	NodeURL string `json:"node_url"`
	Heartbeat
	RegisterFile
}

// MarshalManagerMessage encodes a ManagerMessage to its wire JSON form.
func MarshalManagerMessage(m ManagerMessage) ([]byte, error) {
	switch m.Kind {
	case KindHeartbeat:
		if m.Heartbeat == nil {
			return nil, fmt.Errorf("bus: heartbeat message missing payload")
		}
		return json.Marshal(wireManagerMessage{Type: string(KindHeartbeat), NodeURL: m.Heartbeat.NodeURL, Heartbeat: *m.Heartbeat})
	case KindRegisterFile:
		if m.RegisterFile == nil {
			return nil, fmt.Errorf("bus: register_file message missing payload")
		}
		return json.Marshal(wireManagerMessage{Type: string(KindRegisterFile), NodeURL: m.RegisterFile.NodeURL, RegisterFile: *m.RegisterFile})
	default:
		return nil, fmt.Errorf("bus: unknown manager message kind %q", m.Kind)
	}
}

// UnmarshalManagerMessage decodes a manager_queue wire message, dispatching
// on its "type" field.
func UnmarshalManagerMessage(data []byte) (ManagerMessage, error) {
	var w wireManagerMessage
	if err := json.Unmarshal(data, &w); err != nil {
		return ManagerMessage{}, fmt.Errorf("bus: decode manager message: %w", err)
	}
	switch Kind(w.Type) {
	case KindHeartbeat:
		hb := w.Heartbeat
		hb.NodeURL = w.NodeURL
		return ManagerMessage{Kind: KindHeartbeat, Heartbeat: &hb}, nil
	case KindRegisterFile:
		rf := w.RegisterFile
		rf.NodeURL = w.NodeURL
		return ManagerMessage{Kind: KindRegisterFile, RegisterFile: &rf}, nil
	default:
		return ManagerMessage{}, fmt.Errorf("bus: unknown manager message type %q", w.Type)
	}
}

// MarshalReplicate encodes a Replicate order to its wire JSON form.
func MarshalReplicate(r Replicate) ([]byte, error) {
	type wire struct {
		Type string `json:"type"`
		Replicate
	}
	return json.Marshal(wire{Type: string(KindReplicate), Replicate: r})
}

// UnmarshalReplicate decodes a replication_queue wire message.
func UnmarshalReplicate(data []byte) (Replicate, error) {
	type wire struct {
		Type string `json:"type"`
		Replicate
	}
	var w wire
	if err := json.Unmarshal(data, &w); err != nil {
		return Replicate{}, fmt.Errorf("bus: decode replicate message: %w", err)
	}
	if Kind(w.Type) != KindReplicate {
		return Replicate{}, fmt.Errorf("bus: expected replicate message, got type %q", w.Type)
	}
	return w.Replicate, nil
}

// Bus is the control-message bus. Publishers never block on a consumer being
// present; at-least-once delivery is assumed and all consumers must treat
// messages as idempotent (register_file and heartbeat naturally are).
type Bus interface {
	// PublishHeartbeat and PublishRegisterFile put a message on the shared
	// manager_queue, consumed by the manager.
	PublishHeartbeat(ctx context.Context, hb Heartbeat) error
	PublishRegisterFile(ctx context.Context, rf RegisterFile) error

	// ConsumeManager returns the manager's inbound channel. Intended to be
	// called once, by the manager process.
	ConsumeManager(ctx context.Context) (<-chan ManagerMessage, error)

	// PublishReplicate enqueues a replication order addressed to exactly one
	// target node (resolving the routing open question in the design notes:
	// the replication_queue is partitioned per target node id/topic, not a
	// single queue filtered client-side).
	PublishReplicate(ctx context.Context, r Replicate) error

	// ConsumeReplication returns the inbound replication channel for one
	// node id. Intended to be called once per node process.
	ConsumeReplication(ctx context.Context, nodeID string) (<-chan Replicate, error)

	// Close releases transport resources (connections, goroutines).
	Close() error
}
