// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package pipeline drives a run: it discovers candidate files, processes
// them in sequential batches, and accumulates the run statistics. A failure
// in one file never stops the run.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/pdiddy/odparse/internal/discover"
	"github.com/pdiddy/odparse/internal/relocate"
	"github.com/pdiddy/odparse/pkg/types"
)

// Processor parses one document and persists its artifacts. *parse.Adapter
// implements it.
type Processor interface {
	Parse(ctx context.Context, path string) (*types.ParseResult, error)
	Save(ctx context.Context, result *types.ParseResult, outBase string) ([]string, error)
}

// Relocator moves a successfully processed input file out of the input
// directory and returns its new path.
type Relocator interface {
	Relocate(src string) (string, error)
}

// Recorder persists run history. Recorder errors are logged and otherwise
// ignored; they never change the statistics.
type Recorder interface {
	StartRun(ctx context.Context, stats types.Stats) error
	RecordFile(ctx context.Context, runID string, outcome types.FileOutcome) error
	FinishRun(ctx context.Context, stats types.Stats) error
}

// Run states, logged as the orchestrator moves through a run.
const (
	stateIdle        = "IDLE"
	stateDiscovering = "DISCOVERING"
	stateBatch       = "BATCH_PROCESSING"
	stateDone        = "DONE"
)

// Orchestrator runs the pipeline over the input directory.
type Orchestrator struct {
	cfg       types.PipelineConfig
	processor Processor
	relocator Relocator
	recorder  Recorder
	logger    *slog.Logger

	sleep func(ctx context.Context, d time.Duration) error
	now   func() time.Time
	newID func() string
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithRelocator replaces the relocator built from processed_directory.
func WithRelocator(r Relocator) Option {
	return func(o *Orchestrator) { o.relocator = r }
}

// WithRecorder records every run and file outcome with r.
func WithRecorder(r Recorder) Option {
	return func(o *Orchestrator) { o.recorder = r }
}

// New returns an Orchestrator for cfg. When cfg.ProcessedDirectory is set,
// processed files are moved there with a relocate.Mover unless
// WithRelocator overrides it.
func New(cfg types.PipelineConfig, p Processor, logger *slog.Logger, opts ...Option) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	o := &Orchestrator{
		cfg:       cfg,
		processor: p,
		logger:    logger,
		sleep:     sleepContext,
		now:       time.Now,
		newID:     func() string { return uuid.NewString() },
	}
	if cfg.ProcessedDirectory != "" {
		o.relocator = relocate.NewMover(cfg.ProcessedDirectory)
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Run discovers the candidate files and processes them batch by batch.
//
// Every attempted file ends up counted exactly once, as processed or
// failed. A discovery error aborts the run before any file is touched.
// When ctx is cancelled the run stops between files and returns the
// statistics so far together with ctx.Err().
func (o *Orchestrator) Run(ctx context.Context) (types.Stats, error) {
	stats := types.Stats{RunID: o.newID(), StartedAt: o.now()}
	log := o.logger.With("run_id", stats.RunID)
	log.Info("starting data pipeline", "state", stateIdle)

	log.Debug("discovering files", "state", stateDiscovering, "input", o.cfg.InputDirectory)
	files, err := discover.Files(o.cfg)
	if err != nil {
		log.Error("file discovery failed", "error", err)
		return stats, err
	}
	stats.Discovered = len(files)

	if len(files) == 0 {
		log.Info("no files to process", "state", stateDone)
		stats.FinishedAt = o.now()
		return stats, nil
	}
	log.Info("found files to process", "count", len(files))

	o.startRun(ctx, log, stats)

	batches := discover.Batches(files, o.cfg.BatchSize)
	var runErr error
batchLoop:
	for i, batch := range batches {
		log.Info("processing batch", "state", stateBatch,
			"batch", i+1, "batches", len(batches), "files", len(batch))
		for _, path := range batch {
			if err := ctx.Err(); err != nil {
				runErr = err
				break batchLoop
			}

			outcome := o.processFile(ctx, log, path, true)
			o.count(&stats, outcome)
			o.recordFile(ctx, log, stats.RunID, outcome)

			if err := o.sleep(ctx, o.cfg.FileDelay); err != nil {
				runErr = err
				break batchLoop
			}
		}
	}

	stats.FinishedAt = o.now()
	o.finishRun(ctx, log, stats)

	if runErr != nil {
		log.Warn("pipeline interrupted", "processed", stats.Processed, "failed", stats.Failed, "error", runErr)
		return stats, runErr
	}
	log.Info("pipeline completed", "state", stateDone,
		"processed", stats.Processed, "failed", stats.Failed,
		"success_rate", fmt.Sprintf("%.2f", stats.SuccessRate()))
	return stats, nil
}

// RunFile processes one file outside of discovery: the file is parsed and
// its artifacts are written, but it is never relocated. The outcome is
// recorded as a one-file run.
func (o *Orchestrator) RunFile(ctx context.Context, path string) (types.FileOutcome, types.Stats) {
	stats := types.Stats{RunID: o.newID(), StartedAt: o.now(), Discovered: 1}
	log := o.logger.With("run_id", stats.RunID)

	o.startRun(ctx, log, stats)
	outcome := o.processFile(ctx, log, path, false)
	o.count(&stats, outcome)
	o.recordFile(ctx, log, stats.RunID, outcome)
	stats.FinishedAt = o.now()
	o.finishRun(ctx, log, stats)

	return outcome, stats
}

// processFile is the per-file step. Any error or panic inside it turns
// into a failed outcome.
func (o *Orchestrator) processFile(ctx context.Context, log *slog.Logger, path string, relocateFile bool) (outcome types.FileOutcome) {
	start := o.now()
	outcome = types.FileOutcome{Path: path, Status: types.FileFailed}

	defer func() {
		if r := recover(); r != nil {
			outcome.Status = types.FileFailed
			outcome.Reason = fmt.Sprintf("panic: %v", r)
			log.Error("error processing file", "path", path, "error", outcome.Reason)
		}
		outcome.Duration = o.now().Sub(start)
	}()

	result, err := o.processor.Parse(ctx, path)
	if err != nil {
		outcome.Reason = err.Error()
		return outcome
	}
	if result == nil {
		outcome.Reason = "parser returned no result"
		log.Error("error processing file", "path", path, "error", outcome.Reason)
		return outcome
	}

	artifacts, err := o.processor.Save(ctx, result, OutputBase(o.cfg.OutputDirectory, path))
	outcome.Artifacts = artifacts
	if err != nil {
		outcome.Reason = err.Error()
		log.Error("error processing file", "path", path, "error", err)
		return outcome
	}

	if relocateFile && o.relocator != nil {
		dest, err := o.relocator.Relocate(path)
		if err != nil {
			outcome.Reason = err.Error()
			log.Error("error processing file", "path", path, "error", err)
			return outcome
		}
		outcome.RelocatedTo = dest
		log.Info("moved processed file", "from", path, "to", dest)
	}

	outcome.Status = types.FileProcessed
	return outcome
}

func (o *Orchestrator) count(stats *types.Stats, outcome types.FileOutcome) {
	if outcome.Status == types.FileProcessed {
		stats.Processed++
		return
	}
	stats.Failed++
}

func (o *Orchestrator) startRun(ctx context.Context, log *slog.Logger, stats types.Stats) {
	if o.recorder == nil {
		return
	}
	if err := o.recorder.StartRun(ctx, stats); err != nil {
		log.Warn("ledger: recording run start", "error", err)
	}
}

func (o *Orchestrator) recordFile(ctx context.Context, log *slog.Logger, runID string, outcome types.FileOutcome) {
	if o.recorder == nil {
		return
	}
	if err := o.recorder.RecordFile(ctx, runID, outcome); err != nil {
		log.Warn("ledger: recording file outcome", "path", outcome.Path, "error", err)
	}
}

// finishRun runs even after cancellation so the ledger sees the final
// counters.
func (o *Orchestrator) finishRun(ctx context.Context, log *slog.Logger, stats types.Stats) {
	if o.recorder == nil {
		return
	}
	if err := o.recorder.FinishRun(context.WithoutCancel(ctx), stats); err != nil {
		log.Warn("ledger: recording run completion", "error", err)
	}
}

// OutputBase returns the artifact path for input without extension:
// <outputDir>/<basename minus its last extension>.
func OutputBase(outputDir, input string) string {
	name := filepath.Base(input)
	return filepath.Join(outputDir, strings.TrimSuffix(name, filepath.Ext(name)))
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// IsInterrupted reports whether err is a context cancellation or deadline.
func IsInterrupted(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
