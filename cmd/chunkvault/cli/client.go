package cli

import (
	"log/slog"
	"path/filepath"

	"github.com/spf13/cobra"

	"chunkvault/internal/client"
)

func newClientCmd(cmd *cobra.Command) *client.Client {
	managerURL, _ := cmd.Root().PersistentFlags().GetString("manager-url")
	concurrency, _ := cmd.Flags().GetInt("concurrency")
	cfg := client.DefaultConfig()
	cfg.ManagerURL = managerURL
	if concurrency > 0 {
		cfg.DownloadConcurrency = concurrency
	}
	return client.New(cfg, nil)
}

func newUploadCmd(logger *slog.Logger) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "upload <path> [filename]",
		Short: "Split a local file into chunks and distribute it across storage nodes",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			filename := filepath.Base(path)
			if len(args) == 2 {
				filename = args[1]
			}

			glob, _ := cmd.Flags().GetString("glob")
			c := newClientCmd(cmd)

			if glob != "" {
				results, err := c.UploadGlob(cmd.Context(), path, glob)
				if err != nil {
					return err
				}
				for _, r := range results {
					cmd.Printf("%s: %d chunks, %d failed\n", r.Filename, r.TotalChunks, len(r.Failed))
				}
				return nil
			}

			result, err := c.UploadFile(cmd.Context(), path, filename)
			if err != nil {
				return err
			}
			cmd.Printf("%s: %d chunks, %d failed\n", result.Filename, result.TotalChunks, len(result.Failed))
			for _, ferr := range result.Failed {
				logger.Error("chunk upload failed", "filename", result.Filename, "error", ferr)
			}
			return nil
		},
	}
	cmd.Flags().Int("concurrency", 0, "override the default download concurrency (chunks are uploaded one at a time)")
	cmd.Flags().String("glob", "", "treat <path> as a root directory and upload every file matching this doublestar pattern")
	return cmd
}

func newDownloadCmd(logger *slog.Logger) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "download <filename> <dest-path>",
		Short: "Reassemble a file from its storage node replicas",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := newClientCmd(cmd)
			if err := c.DownloadFile(cmd.Context(), args[0], args[1]); err != nil {
				return err
			}
			cmd.Printf("downloaded %s -> %s\n", args[0], args[1])
			return nil
		},
	}
	cmd.Flags().Int("concurrency", 0, "override the default download concurrency")
	return cmd
}

func newListCmd(logger *slog.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List every file the manager currently knows about",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c := newClientCmd(cmd)
			entries, err := c.List(cmd.Context())
			if err != nil {
				return err
			}
			for _, e := range entries {
				cmd.Printf("%s\t%d chunks\n", e.Filename, e.TotalChunks)
			}
			return nil
		},
	}
}

func newRemoveCmd(logger *slog.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <filename>",
		Short: "Drop a file's directory entry and fan out delete RPCs to its replicas",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := newClientCmd(cmd)
			if err := c.Remove(cmd.Context(), args[0]); err != nil {
				return err
			}
			cmd.Printf("removed %s\n", args[0])
			return nil
		},
	}
}
