package storagenode

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"chunkvault/internal/bus"
	"chunkvault/internal/logging"
)

// Node wires together a storage node's Store, HTTP API, heartbeat
// publisher, and replication consumer.
type Node struct {
	cfg    Config
	store  Store
	bus    bus.Bus
	logger *slog.Logger

	api     *API
	limiter *rate.Limiter

	httpClient *http.Client
}

// New builds a Node. store is the (possibly compressed/remote) chunk
// backend; b is the control-message bus.
func New(cfg Config, store Store, b bus.Bus, addr string, logger *slog.Logger) *Node {
	logger = logging.Default(logger).With("component", "storagenode", "node_id", cfg.NodeID)

	var limiter *rate.Limiter
	if cfg.UploadRateLimitBytesPerSec > 0 {
		burst := cfg.UploadRateLimitBurstBytes
		if burst <= 0 {
			burst = int(cfg.UploadRateLimitBytesPerSec)
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.UploadRateLimitBytesPerSec), burst)
	}

	n := &Node{
		cfg:        cfg,
		store:      store,
		bus:        b,
		logger:     logger,
		limiter:    limiter,
		httpClient: &http.Client{Timeout: cfg.RPCTimeout},
	}
	n.api = newAPI(addr, n)
	return n
}

// Handler returns the node's HTTP routes, for embedding behind a caller-
// owned listener (tests, or a shared front door process).
func (n *Node) Handler() http.Handler {
	return n.api.mux()
}

// SetURL updates the node's self-reported URL, used in register_file and
// heartbeat announcements. Needed in tests where the node's address is only
// known once an httptest server has started.
func (n *Node) SetURL(url string) {
	n.cfg.NodeURL = url
}

// Run starts the HTTP API, heartbeat publisher, and replication consumer,
// and blocks until ctx is cancelled or one of them fails.
func (n *Node) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return n.api.Run(ctx) })
	g.Go(func() error { return n.runHeartbeat(ctx) })
	g.Go(func() error { return n.runReplicationConsumer(ctx) })
	return g.Wait()
}

// publishRegisterFile announces that this node holds (filename, chunkIndex)
// with the given total chunk count. A failed publish is logged and not
// retried.
func (n *Node) publishRegisterFile(ctx context.Context, filename string, chunkIndex, totalChunks int) {
	err := n.bus.PublishRegisterFile(ctx, bus.RegisterFile{
		Filename:    filename,
		ChunkIndex:  chunkIndex,
		NodeURL:     n.cfg.NodeURL,
		TotalChunks: totalChunks,
	})
	if err != nil {
		n.logger.Error("publish register_file", "filename", filename, "chunk_index", chunkIndex, "error", err)
	}
}

func chunkKey(filename string, chunkIndex int) string {
	return fmt.Sprintf("%s.chunk%d", filename, chunkIndex)
}
