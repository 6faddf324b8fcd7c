// Command pgwire runs a Postgres wire-protocol server or proxy, wiring
// together the config, auth, metrics, and proxy packages behind a small
// Cobra command tree.
package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/natefinch/lumberjack.v2"
)

func main() {
	root := newRootCommand()
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "pgwire",
		Short: "A Postgres wire-protocol v3 server and proxy toolkit",
	}

	root.AddCommand(newServeCommand())
	root.AddCommand(newProxyCommand())
	return root
}

// debugLevel mirrors the root package's DEBUG_PG_SERVER toggle so the CLI's
// own logger matches the verbosity of the wire-level debug dumps.
func debugLevel() slog.Level {
	switch os.Getenv("DEBUG_PG_SERVER") {
	case "true", "1":
		return slog.LevelDebug
	default:
		return slog.LevelInfo
	}
}

// newLogger builds the process-wide slog.Logger. When PGWIRE_LOG_FILE is
// set, output rotates through lumberjack instead of going to stderr.
func newLogger(level slog.Level) *slog.Logger {
	var out io.Writer = os.Stderr
	if path := os.Getenv("PGWIRE_LOG_FILE"); path != "" {
		out = &lumberjack.Logger{
			Filename:   path,
			MaxSize:    100,
			MaxBackups: 5,
			MaxAge:     28,
			Compress:   true,
		}
	}

	handler := slog.NewTextHandler(out, &slog.HandlerOptions{Level: level})
	return slog.New(handler)
}
