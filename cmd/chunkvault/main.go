// Command chunkvault runs and talks to the distributed chunked object
// store: its manager, its storage nodes, and the upload/download/list/
// remove client operations.
//
// Logging:
//   - Base logger is created here with output format and level
//   - Logger is passed to every component via dependency injection
//   - No global slog configuration (no slog.SetDefault)
//   - Components scope loggers with their own attributes
package main

import (
	"log/slog"
	"os"

	"chunkvault/cmd/chunkvault/cli"
	"chunkvault/internal/logging"
)

var version = "dev"

func main() {
	baseHandler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelDebug, // filtering is done by ComponentFilterHandler
	})
	filterHandler := logging.NewComponentFilterHandler(baseHandler, slog.LevelInfo)
	logger := slog.New(filterHandler)

	if err := cli.Execute(version, logger); err != nil {
		os.Exit(1)
	}
}
