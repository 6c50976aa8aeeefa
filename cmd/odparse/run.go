// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/pdiddy/odparse/internal/config"
	"github.com/pdiddy/odparse/internal/ledger"
	"github.com/pdiddy/odparse/internal/logging"
	"github.com/pdiddy/odparse/internal/parse"
	"github.com/pdiddy/odparse/internal/pipeline"
	"github.com/pdiddy/odparse/pkg/types"
)

// app holds the components wired from one configuration.
type app struct {
	cfg     types.Config
	logger  *slog.Logger
	orch    *pipeline.Orchestrator
	closers []func() error
}

// newApp loads the configuration at cfgPath and wires the backend, adapter,
// ledger, and orchestrator. A ledger that cannot be opened is logged and
// skipped.
func newApp(ctx context.Context, cfgPath string) (*app, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}
	if err := config.EnsureDirectories(cfg); err != nil {
		return nil, err
	}
	logger, closeLog, err := logging.Setup(cfg.Logging)
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, logger: logger, closers: []func() error{closeLog}}

	backend, err := parse.NewBackend(ctx, cfg.Parsing, logger)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("initializing %s parser backend: %w", cfg.Parsing.Backend, err)
	}
	adapter := parse.NewAdapter(backend, cfg.Parsing, cfg.Output, logger)

	var opts []pipeline.Option
	if cfg.Ledger.Path != "" {
		l, err := ledger.Open(cfg.Ledger.Path, logger)
		if err != nil {
			logger.Warn("run ledger disabled", "path", cfg.Ledger.Path, "error", err)
		} else {
			opts = append(opts, pipeline.WithRecorder(l))
			a.closers = append(a.closers, l.Close)
		}
	}
	a.orch = pipeline.New(cfg.Pipeline, adapter, logger, opts...)
	return a, nil
}

// Close releases the ledger and the log file, newest first.
func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	return errors.Join(errs...)
}

func runPipeline(cmd *cobra.Command, _ []string) error {
	cfgPath, _ := cmd.Flags().GetString("config")
	single, _ := cmd.Flags().GetString("single-file")

	a, err := newApp(cmd.Context(), cfgPath)
	if err != nil {
		return err
	}
	defer a.Close()

	out := cmd.OutOrStdout()
	if single != "" {
		outcome, _ := a.orch.RunFile(cmd.Context(), single)
		if outcome.Status != types.FileProcessed {
			fmt.Fprintf(out, "Failed to process: %s\n", single)
			return fmt.Errorf("failed to process %s: %s", single, outcome.Reason)
		}
		fmt.Fprintf(out, "Successfully processed: %s\n", single)
		return nil
	}

	stats, err := a.orch.Run(cmd.Context())
	if err != nil && !pipeline.IsInterrupted(err) {
		return err
	}
	printStats(out, stats)
	if err != nil {
		return err
	}
	if stats.HasFailures() {
		return fmt.Errorf("%d file(s) failed processing", stats.Failed)
	}
	return nil
}

func printStats(w io.Writer, stats types.Stats) {
	fmt.Fprintln(w, "\nPipeline Statistics:")
	fmt.Fprintf(w, "Processed: %d\n", stats.Processed)
	fmt.Fprintf(w, "Failed: %d\n", stats.Failed)
	fmt.Fprintf(w, "Success Rate: %.2f%%\n", stats.SuccessRate())
}
