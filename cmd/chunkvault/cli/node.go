package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"chunkvault/internal/config"
	"chunkvault/internal/storagenode"
)

func newNodeCmd(logger *slog.Logger) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "node",
		Short: "Run a storage node: persist, serve, and replicate chunks",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()
			return runNode(ctx, cmd, logger)
		},
	}
	cmd.Flags().String("addr", ":4565", "listen address (host:port)")
	cmd.Flags().String("advertise-url", "", "this node's reachable base URL, advertised in heartbeats (default: http://localhost<addr>)")
	cmd.Flags().String("data-dir", "./data", "directory for on-disk chunk storage and the persisted node id")
	cmd.Flags().String("backend", "local", "chunk storage backend: local, s3, azure, or gcs")
	cmd.Flags().String("s3-bucket", "", "S3 bucket name (backend=s3)")
	cmd.Flags().String("azure-service-url", "", "Azure Blob service URL (backend=azure)")
	cmd.Flags().String("azure-container", "", "Azure Blob container name (backend=azure)")
	cmd.Flags().String("gcs-bucket", "", "GCS bucket name (backend=gcs)")
	cmd.Flags().String("blob-prefix", "", "key prefix for remote backends (s3, azure, gcs)")
	cmd.Flags().String("compress", "", "at-rest compression codec: none, zstd, or brotli")
	cmd.Flags().Float64("upload-rate-limit", 0, "inbound upload bytes/sec across all chunk writes (0 disables)")
	cmd.Flags().Int("upload-rate-burst", 0, "burst size in bytes for --upload-rate-limit")
	return cmd
}

func runNode(ctx context.Context, cmd *cobra.Command, logger *slog.Logger) error {
	addr, _ := cmd.Flags().GetString("addr")
	advertiseURL, _ := cmd.Flags().GetString("advertise-url")
	dataDir, _ := cmd.Flags().GetString("data-dir")
	configPath, _ := cmd.Root().PersistentFlags().GetString("config")

	if advertiseURL == "" {
		advertiseURL = "http://localhost" + addr
	}

	nodeID, err := storagenode.LoadOrCreateNodeID(dataDir)
	if err != nil {
		return fmt.Errorf("load node id: %w", err)
	}
	displayName := storagenode.NewDisplayName()

	_, nodeCfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	nodeCfg.NodeID = nodeID
	nodeCfg.NodeURL = advertiseURL
	nodeCfg.DisplayName = displayName

	if v, _ := cmd.Flags().GetFloat64("upload-rate-limit"); v > 0 {
		nodeCfg.UploadRateLimitBytesPerSec = v
	}
	if v, _ := cmd.Flags().GetInt("upload-rate-burst"); v > 0 {
		nodeCfg.UploadRateLimitBurstBytes = v
	}

	store, err := openStore(ctx, cmd, dataDir)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}

	b, err := openBus(ctx, cmd, logger)
	if err != nil {
		return fmt.Errorf("open bus: %w", err)
	}

	node := storagenode.New(nodeCfg, store, b, addr, logger)
	logger.Info("node starting", "node_id", nodeID, "display_name", displayName, "advertise_url", advertiseURL, "addr", addr)
	return node.Run(ctx)
}

func openStore(ctx context.Context, cmd *cobra.Command, dataDir string) (storagenode.Store, error) {
	backend, _ := cmd.Flags().GetString("backend")
	prefix, _ := cmd.Flags().GetString("blob-prefix")

	var store storagenode.Store
	var err error
	switch backend {
	case "local":
		store, err = storagenode.NewLocalStore(dataDir)
	case "s3":
		bucket, _ := cmd.Flags().GetString("s3-bucket")
		if bucket == "" {
			return nil, fmt.Errorf("--backend=s3 requires --s3-bucket")
		}
		store, err = storagenode.NewS3Store(ctx, bucket, prefix)
	case "azure":
		serviceURL, _ := cmd.Flags().GetString("azure-service-url")
		container, _ := cmd.Flags().GetString("azure-container")
		if serviceURL == "" || container == "" {
			return nil, fmt.Errorf("--backend=azure requires --azure-service-url and --azure-container")
		}
		store, err = storagenode.NewAzureStore(serviceURL, container, prefix)
	case "gcs":
		bucket, _ := cmd.Flags().GetString("gcs-bucket")
		if bucket == "" {
			return nil, fmt.Errorf("--backend=gcs requires --gcs-bucket")
		}
		store, err = storagenode.NewGCSStore(ctx, bucket, prefix)
	default:
		return nil, fmt.Errorf("unknown --backend %q (want local, s3, azure, or gcs)", backend)
	}
	if err != nil {
		return nil, err
	}

	codec, _ := cmd.Flags().GetString("compress")
	if codec == "" || codec == "none" {
		return store, nil
	}
	return storagenode.NewCompressedStore(store, storagenode.Codec(codec))
}
