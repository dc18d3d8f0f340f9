package bus

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"

	"github.com/eclipse/paho.golang/autopaho"
	"github.com/eclipse/paho.golang/paho"

	"chunkvault/internal/logging"
)

// MQTTConfig configures the MQTT-backed Bus transport. MQTT's per-topic
// subscription model is a natural fit for the replication_queue's
// "exactly one designated node" semantics: each node subscribes only to its
// own replication topic.
type MQTTConfig struct {
	BrokerURL string // e.g. "mqtt://localhost:1883"
	ClientID  string

	ManagerTopic           string // default "chunkvault/manager"
	ReplicationTopicPrefix string // default "chunkvault/replicate/"

	Logger *slog.Logger
}

func (c MQTTConfig) managerTopic() string {
	if c.ManagerTopic != "" {
		return c.ManagerTopic
	}
	return "chunkvault/manager"
}

func (c MQTTConfig) replicationTopic(nodeID string) string {
	prefix := c.ReplicationTopicPrefix
	if prefix == "" {
		prefix = "chunkvault/replicate/"
	}
	return prefix + nodeID
}

// MQTT is a Bus transport backed by github.com/eclipse/paho.golang (MQTTv5)
// via its autopaho reconnecting client.
type MQTT struct {
	cfg    MQTTConfig
	logger *slog.Logger
	cm     *autopaho.ConnectionManager

	managerOut   chan ManagerMessage
	replOut      map[string]chan Replicate
}

// NewMQTT connects (with auto-reconnect) to cfg.BrokerURL and returns a Bus.
// Subscriptions for ConsumeManager/ConsumeReplication are (re-)issued on
// every reconnect via OnConnectionUp.
func NewMQTT(ctx context.Context, cfg MQTTConfig) (*MQTT, error) {
	u, err := url.Parse(cfg.BrokerURL)
	if err != nil {
		return nil, fmt.Errorf("bus: parse mqtt broker url: %w", err)
	}

	m := &MQTT{
		cfg:        cfg,
		logger:     logging.Default(cfg.Logger).With("component", "bus", "transport", "mqtt"),
		managerOut: make(chan ManagerMessage, 64),
		replOut:    make(map[string]chan Replicate),
	}

	clientCfg := autopaho.ClientConfig{
		ServerUrls: []*url.URL{u},
		KeepAlive:  20,
		OnConnectionUp: func(cm *autopaho.ConnectionManager, _ *paho.Connack) {
			m.resubscribe(ctx, cm)
		},
		OnConnectError: func(err error) {
			m.logger.Warn("mqtt connect error", "error", err)
		},
		ClientConfig: paho.ClientConfig{
			ClientID: cfg.ClientID,
			OnPublishReceived: []func(paho.PublishReceived) (bool, error){
				m.onPublish,
			},
			OnClientError: func(err error) {
				m.logger.Warn("mqtt client error", "error", err)
			},
		},
	}

	cm, err := autopaho.NewConnection(ctx, clientCfg)
	if err != nil {
		return nil, fmt.Errorf("bus: mqtt connection: %w", err)
	}
	m.cm = cm
	return m, nil
}

// resubscribe (re-)subscribes to the manager topic and every replication
// topic a consumer has registered interest in. Called on every connect.
func (m *MQTT) resubscribe(ctx context.Context, cm *autopaho.ConnectionManager) {
	subs := []paho.SubscribeOptions{{Topic: m.cfg.managerTopic(), QoS: 1}}
	for _, nodeID := range m.replTopics() {
		subs = append(subs, paho.SubscribeOptions{Topic: m.cfg.replicationTopic(nodeID), QoS: 1})
	}
	if _, err := cm.Subscribe(ctx, &paho.Subscribe{Subscriptions: subs}); err != nil {
		m.logger.Warn("mqtt subscribe failed", "error", err)
	}
}

func (m *MQTT) replTopics() []string {
	nodeIDs := make([]string, 0, len(m.replOut))
	for id := range m.replOut {
		nodeIDs = append(nodeIDs, id)
	}
	return nodeIDs
}

func (m *MQTT) onPublish(pr paho.PublishReceived) (bool, error) {
	topic := pr.Packet.Topic
	switch {
	case topic == m.cfg.managerTopic():
		msg, err := UnmarshalManagerMessage(pr.Packet.Payload)
		if err != nil {
			m.logger.Warn("dropping malformed manager message", "error", err)
			return true, nil
		}
		m.managerOut <- msg
		return true, nil
	default:
		for nodeID, ch := range m.replOut {
			if topic == m.cfg.replicationTopic(nodeID) {
				r, err := UnmarshalReplicate(pr.Packet.Payload)
				if err != nil {
					m.logger.Warn("dropping malformed replication message", "error", err)
					return true, nil
				}
				ch <- r
				return true, nil
			}
		}
	}
	return true, nil
}

func (m *MQTT) PublishHeartbeat(ctx context.Context, hb Heartbeat) error {
	return m.publishManager(ctx, ManagerMessage{Kind: KindHeartbeat, Heartbeat: &hb})
}

func (m *MQTT) PublishRegisterFile(ctx context.Context, rf RegisterFile) error {
	return m.publishManager(ctx, ManagerMessage{Kind: KindRegisterFile, RegisterFile: &rf})
}

func (m *MQTT) publishManager(ctx context.Context, msg ManagerMessage) error {
	data, err := MarshalManagerMessage(msg)
	if err != nil {
		return err
	}
	_, err = m.cm.Publish(ctx, &paho.Publish{Topic: m.cfg.managerTopic(), QoS: 1, Payload: data})
	if err != nil {
		return fmt.Errorf("bus: mqtt publish manager message: %w", err)
	}
	return nil
}

func (m *MQTT) ConsumeManager(ctx context.Context) (<-chan ManagerMessage, error) {
	return m.managerOut, nil
}

func (m *MQTT) PublishReplicate(ctx context.Context, r Replicate) error {
	data, err := MarshalReplicate(r)
	if err != nil {
		return err
	}
	topic := m.cfg.replicationTopic(r.TargetNodeID)
	_, err = m.cm.Publish(ctx, &paho.Publish{Topic: topic, QoS: 1, Payload: data})
	if err != nil {
		return fmt.Errorf("bus: mqtt publish replicate to %s: %w", topic, err)
	}
	return nil
}

func (m *MQTT) ConsumeReplication(ctx context.Context, nodeID string) (<-chan Replicate, error) {
	ch, ok := m.replOut[nodeID]
	if !ok {
		ch = make(chan Replicate, 64)
		m.replOut[nodeID] = ch
	}
	m.resubscribe(ctx, m.cm)
	return ch, nil
}

func (m *MQTT) Close() error {
	return m.cm.Disconnect(context.Background())
}
