package storagenode

import (
	"context"
	"fmt"

	"github.com/go-co-op/gocron/v2"

	"chunkvault/internal/bus"
)

// runHeartbeat publishes a heartbeat every cfg.HeartbeatInterval until ctx
// is cancelled, as a gocron job. The interval is read once, when the
// scheduler is built; changing it takes a restart.
func (n *Node) runHeartbeat(ctx context.Context) error {
	sched, err := gocron.NewScheduler()
	if err != nil {
		return fmt.Errorf("storagenode: create heartbeat scheduler: %w", err)
	}

	_, err = sched.NewJob(
		gocron.DurationJob(n.cfg.HeartbeatInterval),
		gocron.NewTask(func() {
			hb := bus.Heartbeat{
				NodeID:      n.cfg.NodeID,
				NodeURL:     n.cfg.NodeURL,
				DisplayName: n.cfg.DisplayName,
			}
			if err := n.bus.PublishHeartbeat(ctx, hb); err != nil {
				n.logger.Error("publish heartbeat", "error", err)
			}
		}),
		gocron.WithName("heartbeat"),
	)
	if err != nil {
		return fmt.Errorf("storagenode: schedule heartbeat job: %w", err)
	}

	sched.Start()
	<-ctx.Done()
	return sched.Shutdown()
}
