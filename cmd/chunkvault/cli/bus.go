package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"chunkvault/internal/bus"
)

// openBus builds the control-message bus named by the root --bus flag.
// "memory" only makes sense within a single process (tests, demos); a real
// multi-node deployment needs kafka or mqtt.
func openBus(ctx context.Context, cmd *cobra.Command, logger *slog.Logger) (bus.Bus, error) {
	kind, _ := cmd.Flags().GetString("bus")
	switch kind {
	case "memory":
		return bus.NewMemory(64, logger), nil
	case "kafka":
		brokers, _ := cmd.Flags().GetStringSlice("kafka-brokers")
		if len(brokers) == 0 {
			return nil, fmt.Errorf("--bus=kafka requires --kafka-brokers")
		}
		return bus.NewKafka(bus.KafkaConfig{Brokers: brokers, Logger: logger})
	case "mqtt":
		url, _ := cmd.Flags().GetString("mqtt-url")
		if url == "" {
			return nil, fmt.Errorf("--bus=mqtt requires --mqtt-url")
		}
		return bus.NewMQTT(ctx, bus.MQTTConfig{BrokerURL: url, Logger: logger})
	default:
		return nil, fmt.Errorf("unknown --bus %q (want memory, kafka, or mqtt)", kind)
	}
}
