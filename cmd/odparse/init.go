// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/pdiddy/odparse/internal/config"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default configuration and create the pipeline directories",
	Long: `Init writes the default configuration to the --config path unless a file
already exists there (use --force to overwrite), then creates the input,
output, processed, log, and ledger directories it names.`,
	RunE: runInit,
}

func init() {
	initCmd.Flags().Bool("force", false, "overwrite an existing configuration file")

	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, _ []string) error {
	cfgPath, _ := cmd.Flags().GetString("config")
	force, _ := cmd.Flags().GetBool("force")
	out := cmd.OutOrStdout()

	_, err := os.Stat(cfgPath)
	switch {
	case err == nil && !force:
		fmt.Fprintf(out, "config exists: %s\n", cfgPath)
	case err == nil || errors.Is(err, fs.ErrNotExist):
		data, err := config.Render(config.Defaults())
		if err != nil {
			return err
		}
		if dir := filepath.Dir(cfgPath); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("creating config directory: %w", err)
			}
		}
		if err := os.WriteFile(cfgPath, data, 0o644); err != nil {
			return fmt.Errorf("writing config: %w", err)
		}
		fmt.Fprintf(out, "wrote config: %s\n", cfgPath)
	default:
		return fmt.Errorf("checking config %s: %w", cfgPath, err)
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}
	if err := config.EnsureDirectories(cfg); err != nil {
		return err
	}
	fmt.Fprintf(out, "directories ready: input=%s output=%s\n",
		cfg.Pipeline.InputDirectory, cfg.Pipeline.OutputDirectory)
	return nil
}
