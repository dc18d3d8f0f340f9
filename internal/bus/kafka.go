package bus

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/twmb/franz-go/pkg/kgo"

	"chunkvault/internal/logging"
)

// KafkaConfig configures the Kafka-backed Bus transport.
type KafkaConfig struct {
	Brokers []string

	// ManagerTopic carries heartbeats and register_file messages.
	// Defaults to "chunkvault.manager".
	ManagerTopic string

	// ReplicationTopicPrefix + node id names the per-node replication topic,
	// e.g. "chunkvault.replicate.<nodeID>". This resolves the replication
	// routing open question: one topic per target node, not one shared
	// queue filtered client-side.
	ReplicationTopicPrefix string

	// ManagerGroup is the consumer group used by the manager to read
	// ManagerTopic. Defaults to "chunkvault-manager".
	ManagerGroup string

	Logger *slog.Logger
}

func (c KafkaConfig) managerTopic() string {
	if c.ManagerTopic != "" {
		return c.ManagerTopic
	}
	return "chunkvault.manager"
}

func (c KafkaConfig) replicationTopic(nodeID string) string {
	prefix := c.ReplicationTopicPrefix
	if prefix == "" {
		prefix = "chunkvault.replicate."
	}
	return prefix + nodeID
}

func (c KafkaConfig) managerGroup() string {
	if c.ManagerGroup != "" {
		return c.ManagerGroup
	}
	return "chunkvault-manager"
}

// Kafka is a Bus transport backed by github.com/twmb/franz-go.
type Kafka struct {
	cfg    KafkaConfig
	logger *slog.Logger

	producer *kgo.Client

	// managerConsumer is created lazily by ConsumeManager; replConsumers by
	// ConsumeReplication, keyed by node id (one client per node process in
	// practice, so the map usually holds a single entry).
	managerConsumer *kgo.Client
	replConsumers   map[string]*kgo.Client
}

// NewKafka dials a producer client against cfg.Brokers. Consumer clients are
// created lazily, one per ConsumeManager/ConsumeReplication call, since each
// needs its own group/topic subscription.
func NewKafka(cfg KafkaConfig) (*Kafka, error) {
	producer, err := kgo.NewClient(kgo.SeedBrokers(cfg.Brokers...))
	if err != nil {
		return nil, fmt.Errorf("bus: kafka producer client: %w", err)
	}
	return &Kafka{
		cfg:           cfg,
		logger:        logging.Default(cfg.Logger).With("component", "bus", "transport", "kafka"),
		producer:      producer,
		replConsumers: make(map[string]*kgo.Client),
	}, nil
}

func (k *Kafka) PublishHeartbeat(ctx context.Context, hb Heartbeat) error {
	return k.publishManager(ctx, ManagerMessage{Kind: KindHeartbeat, Heartbeat: &hb})
}

func (k *Kafka) PublishRegisterFile(ctx context.Context, rf RegisterFile) error {
	return k.publishManager(ctx, ManagerMessage{Kind: KindRegisterFile, RegisterFile: &rf})
}

func (k *Kafka) publishManager(ctx context.Context, msg ManagerMessage) error {
	data, err := MarshalManagerMessage(msg)
	if err != nil {
		return err
	}
	rec := &kgo.Record{Topic: k.cfg.managerTopic(), Value: data}
	res := k.producer.ProduceSync(ctx, rec)
	if err := res.FirstErr(); err != nil {
		return fmt.Errorf("bus: publish to %s: %w", k.cfg.managerTopic(), err)
	}
	return nil
}

func (k *Kafka) ConsumeManager(ctx context.Context) (<-chan ManagerMessage, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(k.cfg.Brokers...),
		kgo.ConsumeTopics(k.cfg.managerTopic()),
		kgo.ConsumerGroup(k.cfg.managerGroup()),
	)
	if err != nil {
		return nil, fmt.Errorf("bus: kafka manager consumer: %w", err)
	}
	k.managerConsumer = client

	out := make(chan ManagerMessage, 64)
	go k.pollManager(ctx, client, out)
	return out, nil
}

func (k *Kafka) pollManager(ctx context.Context, client *kgo.Client, out chan<- ManagerMessage) {
	defer close(out)
	for {
		fetches := client.PollFetches(ctx)
		if ctx.Err() != nil {
			return
		}
		for _, err := range fetches.Errors() {
			k.logger.Warn("kafka fetch error", "topic", err.Topic, "partition", err.Partition, "error", err.Err)
		}
		fetches.EachRecord(func(rec *kgo.Record) {
			msg, err := UnmarshalManagerMessage(rec.Value)
			if err != nil {
				k.logger.Warn("dropping malformed manager message", "error", err)
				return
			}
			select {
			case out <- msg:
			case <-ctx.Done():
			}
		})
	}
}

func (k *Kafka) PublishReplicate(ctx context.Context, r Replicate) error {
	data, err := MarshalReplicate(r)
	if err != nil {
		return err
	}
	topic := k.cfg.replicationTopic(r.TargetNodeID)
	rec := &kgo.Record{Topic: topic, Value: data}
	res := k.producer.ProduceSync(ctx, rec)
	if err := res.FirstErr(); err != nil {
		return fmt.Errorf("bus: publish replicate to %s: %w", topic, err)
	}
	return nil
}

func (k *Kafka) ConsumeReplication(ctx context.Context, nodeID string) (<-chan Replicate, error) {
	topic := k.cfg.replicationTopic(nodeID)
	client, err := kgo.NewClient(
		kgo.SeedBrokers(k.cfg.Brokers...),
		kgo.ConsumeTopics(topic),
		kgo.ConsumerGroup("chunkvault-node-"+nodeID),
	)
	if err != nil {
		return nil, fmt.Errorf("bus: kafka replication consumer for %s: %w", nodeID, err)
	}
	k.replConsumers[nodeID] = client

	out := make(chan Replicate, 64)
	go k.pollReplication(ctx, client, out)
	return out, nil
}

func (k *Kafka) pollReplication(ctx context.Context, client *kgo.Client, out chan<- Replicate) {
	defer close(out)
	for {
		fetches := client.PollFetches(ctx)
		if ctx.Err() != nil {
			return
		}
		for _, err := range fetches.Errors() {
			k.logger.Warn("kafka fetch error", "topic", err.Topic, "partition", err.Partition, "error", err.Err)
		}
		fetches.EachRecord(func(rec *kgo.Record) {
			r, err := UnmarshalReplicate(rec.Value)
			if err != nil {
				k.logger.Warn("dropping malformed replication message", "error", err)
				return
			}
			select {
			case out <- r:
			case <-ctx.Done():
			}
		})
	}
}

func (k *Kafka) Close() error {
	k.producer.Close()
	if k.managerConsumer != nil {
		k.managerConsumer.Close()
	}
	for _, c := range k.replConsumers {
		c.Close()
	}
	return nil
}
