package storagenode

import (
	"context"
	"fmt"
	"net/http"

	"chunkvault/internal/bus"
	"chunkvault/internal/chunkproto"
)

// runReplicationConsumer consumes this node's replication_queue partition
// and fetches+stores each ordered chunk. Each message is already routed to
// this node specifically (bus.Bus partitions per target), so no
// client-side filtering is needed.
func (n *Node) runReplicationConsumer(ctx context.Context) error {
	orders, err := n.bus.ConsumeReplication(ctx, n.cfg.NodeID)
	if err != nil {
		return fmt.Errorf("storagenode: consume replication queue: %w", err)
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case order, ok := <-orders:
			if !ok {
				return nil
			}
			n.handleReplicateOrder(ctx, order)
		}
	}
}

func (n *Node) handleReplicateOrder(ctx context.Context, order bus.Replicate) {
	if err := n.fetchAndStore(ctx, order.Filename, order.ChunkIndex, order.SourceNodeURL); err != nil {
		n.logger.Error("execute replication order", "filename", order.Filename, "chunk_index", order.ChunkIndex, "source", order.SourceNodeURL, "error", err)
	}
}

// fetchAndStore pulls <filename>.chunk<index> from sourceNodeURL's download
// endpoint, persists it as-is (it already carries its own header+body), and
// registers it with the manager.
func (n *Node) fetchAndStore(ctx context.Context, filename string, chunkIndex int, sourceNodeURL string) error {
	key := chunkKey(filename, chunkIndex)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sourceNodeURL+"/download/"+key, nil)
	if err != nil {
		return fmt.Errorf("build fetch request: %w", err)
	}
	resp, err := n.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("fetch from source node: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("source node returned status %d", resp.StatusCode)
	}

	if err := n.store.Put(ctx, key, resp.Body); err != nil {
		return fmt.Errorf("store replicated chunk: %w", err)
	}

	totalChunks, err := n.readTotalChunks(ctx, key)
	if err != nil {
		n.logger.Warn("re-read replicated chunk header for total_chunks", "key", key, "error", err)
	}
	n.publishRegisterFile(ctx, filename, chunkIndex, totalChunks)
	return nil
}

// readTotalChunks re-opens a just-stored chunk to recover its header's
// total_chunks field, so the register_file message can carry it even for
// chunks obtained via replication rather than direct client upload.
func (n *Node) readTotalChunks(ctx context.Context, key string) (int, error) {
	rc, err := n.store.Open(ctx, key)
	if err != nil {
		return 0, err
	}
	defer rc.Close()

	header, err := chunkproto.ReadHeader(chunkproto.NewBodyReader(rc))
	if err != nil {
		return 0, err
	}
	return header.TotalChunks, nil
}
