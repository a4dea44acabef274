// Command quarry runs the search service and its queue worker.
//
// Logging:
//   - Base logger is created here with output format and level
//   - Logger is passed to all components via dependency injection
//   - No global slog configuration (no slog.SetDefault)
//   - Components scope loggers with their own attributes
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/quarrysearch/quarry/config"
)

var version = "dev"

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	rootCmd := &cobra.Command{
		Use:   "quarry",
		Short: "Multi-tenant full-text search service",
	}

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP search service",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
				cfg.ListenAddr = addr
			}
			local, _ := cmd.Flags().GetBool("local")

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
			defer cancel()

			return runServe(ctx, logger, cfg, local)
		},
	}
	serveCmd.Flags().String("addr", "", "listen address (host:port), overrides "+config.EnvListenAddr)
	serveCmd.Flags().Bool("local", false, "run an in-process worker with in-memory queue and bucket")

	workerCmd := &cobra.Command{
		Use:   "worker",
		Short: "Drain the index mutation queue",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
			defer cancel()

			return runWorker(ctx, logger, config.Load())
		},
	}

	statsCmd := &cobra.Command{
		Use:   "stats <index-id>",
		Short: "Print stats for an index",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
			defer cancel()

			return runStats(ctx, logger, config.Load(), args[0])
		},
	}

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(version)
		},
	}

	rootCmd.AddCommand(serveCmd, workerCmd, statsCmd, versionCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
