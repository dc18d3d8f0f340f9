package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"chunkvault/internal/config"
	"chunkvault/internal/manager"
)

func newManagerCmd(logger *slog.Logger) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "manager",
		Short: "Run the control plane: node registry, file directory, replication planner, liveness sweep",
		RunE: func(cmd *cobra.Command, args []string) error {
			addr, _ := cmd.Flags().GetString("addr")
			configPath, _ := cmd.Root().PersistentFlags().GetString("config")

			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			return runManager(ctx, cmd, logger, addr, configPath)
		},
	}
	cmd.Flags().String("addr", ":4564", "listen address (host:port)")
	return cmd
}

func runManager(ctx context.Context, cmd *cobra.Command, logger *slog.Logger, addr, configPath string) error {
	b, err := openBus(ctx, cmd, logger)
	if err != nil {
		return fmt.Errorf("open bus: %w", err)
	}

	mgrCfg, _, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	m, err := manager.New(addr, b, mgrCfg, logger)
	if err != nil {
		return fmt.Errorf("build manager: %w", err)
	}

	if configPath != "" {
		m.SetTunables(manager.NewTunablesStore(config.Tunables(mgrCfg)))
		watcher, err := config.WatchManagerTunables(configPath, m, logger)
		if err != nil {
			return fmt.Errorf("watch config: %w", err)
		}
		defer watcher.Close()
	}

	logger.Info("manager starting", "addr", addr, "replication_factor", mgrCfg.ReplicationFactor)
	return m.Run(ctx)
}
