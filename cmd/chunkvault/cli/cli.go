// Package cli builds the chunkvault command tree: manager, node, and the
// upload/download/list/remove client operations.
package cli

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

// Execute builds and runs the root command. version is printed by the
// "version" subcommand; logger is the base logger every subcommand scopes
// with its own component attributes.
func Execute(version string, logger *slog.Logger) error {
	root := newRootCmd(version, logger)
	return root.Execute()
}

func newRootCmd(version string, logger *slog.Logger) *cobra.Command {
	root := &cobra.Command{
		Use:           "chunkvault",
		Short:         "Distributed chunked object store",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	root.PersistentFlags().String("config", envOr("CHUNKVAULT_CONFIG", ""), "path to the config file (JSON, optional)")
	root.PersistentFlags().String("bus", envOr("CHUNKVAULT_BUS", "memory"), "control bus backend: memory, kafka, or mqtt")
	root.PersistentFlags().StringSlice("kafka-brokers", nil, "Kafka broker addresses (bus=kafka)")
	root.PersistentFlags().String("mqtt-url", envOr("CHUNKVAULT_MQTT_URL", ""), "MQTT broker URL, e.g. mqtt://localhost:1883 (bus=mqtt)")
	root.PersistentFlags().String("manager-url", envOr("CHUNKVAULT_MANAGER_URL", "http://localhost:4564"), "manager base URL (upload, download, list, remove)")

	root.AddCommand(
		newManagerCmd(logger),
		newNodeCmd(logger),
		newUploadCmd(logger),
		newDownloadCmd(logger),
		newListCmd(logger),
		newRemoveCmd(logger),
		newVersionCmd(version),
	)
	return root
}

// envOr returns the named environment variable's value, falling back to
// fallback if unset or empty. Flags still win on the command line; this
// only sets the default the way pflag alone cannot.
func envOr(name, fallback string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return fallback
}

func newVersionCmd(version string) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Println(version)
		},
	}
}
