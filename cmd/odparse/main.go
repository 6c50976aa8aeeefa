// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the odparse CLI. The root command runs
// the batch pipeline over the configured input directory, or a single file
// with --single-file.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/pdiddy/odparse/internal/config"
)

// version is set at build time via ldflags.
var version = "dev"

// rootCmd is the base command for the odparse CLI.
var rootCmd = &cobra.Command{
	Use:   "odparse",
	Short: "Batch document parsing pipeline",
	Long: `odparse discovers documents in an input directory, parses each one with
the configured backend, and writes the results as JSON and/or a CSV summary
into the output directory. Successfully processed inputs are moved to the
processed directory when one is configured.

Without flags the whole input directory is processed in batches and run
statistics are printed. With --single-file only that file is parsed and
saved; it is not moved.`,
	SilenceUsage: true,
	RunE:         runPipeline,
}

func init() {
	rootCmd.PersistentFlags().StringP("config", "c", config.DefaultPath, "path to the configuration file")
	rootCmd.Flags().StringP("single-file", "f", "", "process a single file instead of batch processing")
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}
