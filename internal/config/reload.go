package config

import (
	"fmt"
	"log/slog"

	"chunkvault/internal/manager"
)

// WatchManagerTunables re-parses path's config file on every change and
// pushes the hot-reloadable subset into m via ReloadTunables. The caller
// must have already attached a TunablesStore to m (Manager.SetTunables);
// this is what makes the reload observable to the planner and sweep.
func WatchManagerTunables(path string, m *manager.Manager, logger *slog.Logger) (*FileWatcher, error) {
	return WatchFile(path, logger, func(path string) error {
		mgrCfg, _, err := Load(path)
		if err != nil {
			return fmt.Errorf("reload manager tunables: %w", err)
		}
		return m.ReloadTunables(Tunables(mgrCfg))
	})
}
