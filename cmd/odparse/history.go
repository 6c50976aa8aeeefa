// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/pdiddy/odparse/internal/config"
	"github.com/pdiddy/odparse/internal/ledger"
	"github.com/pdiddy/odparse/internal/logging"
	"github.com/pdiddy/odparse/pkg/types"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recorded pipeline runs",
	Long: `History reads the run ledger named by ledger.path. Without flags it lists
the most recent runs; --run lists the file outcomes of one run and --yaml
exports runs with their file outcomes as YAML.`,
	RunE: runHistory,
}

func init() {
	historyCmd.Flags().String("run", "", "show the file outcomes of this run ID")
	historyCmd.Flags().Int("limit", 20, "maximum number of runs to show")
	historyCmd.Flags().Bool("yaml", false, "export runs and file outcomes as YAML")

	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, _ []string) error {
	cfgPath, _ := cmd.Flags().GetString("config")
	runID, _ := cmd.Flags().GetString("run")
	limit, _ := cmd.Flags().GetInt("limit")
	asYAML, _ := cmd.Flags().GetBool("yaml")

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}
	if cfg.Ledger.Path == "" {
		return errors.New("run ledger is disabled: set ledger.path in the configuration")
	}
	l, err := ledger.Open(cfg.Ledger.Path, logging.Discard())
	if err != nil {
		return err
	}
	defer l.Close()

	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	if asYAML {
		return l.ExportYAML(ctx, out, limit)
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	defer tw.Flush()

	if runID != "" {
		run, err := l.Run(ctx, runID)
		if err != nil {
			return err
		}
		fmt.Fprintln(tw, "STATUS\tPATH\tDURATION\tDETAIL")
		for _, f := range run.Files {
			detail := f.Reason
			if f.Status == types.FileProcessed && f.RelocatedTo != "" {
				detail = "moved to " + f.RelocatedTo
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", f.Status, f.Path, f.Duration, detail)
		}
		return nil
	}

	runs, err := l.History(ctx, limit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Fprintln(out, "no runs recorded")
		return nil
	}
	fmt.Fprintln(tw, "RUN ID\tSTARTED\tPROCESSED\tFAILED\tSUCCESS\tSTATUS")
	for _, r := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%.2f%%\t%s\n",
			r.RunID, r.StartedAt.Local().Format(time.DateTime), r.Processed, r.Failed, r.SuccessRate(), r.Status)
	}
	return nil
}
