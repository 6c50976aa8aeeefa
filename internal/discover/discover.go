// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package discover finds the candidate files of a pipeline run.
package discover

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pdiddy/odparse/pkg/types"
)

const bytesPerMB = 1024 * 1024

// Files returns the regular files directly inside cfg.InputDirectory whose
// lower-cased name ends with one of cfg.FileExtensions and whose size in MiB
// does not exceed cfg.MaxFileSizeMB. Paths are joined onto the input
// directory and ordered by file name. Oversized files are skipped silently.
// A missing or unreadable input directory is an error.
func Files(cfg types.PipelineConfig) ([]string, error) {
	// os.ReadDir sorts entries by name.
	entries, err := os.ReadDir(cfg.InputDirectory)
	if err != nil {
		return nil, fmt.Errorf("reading input directory %s: %w", cfg.InputDirectory, err)
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() || !MatchesExtension(entry.Name(), cfg.FileExtensions) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", filepath.Join(cfg.InputDirectory, entry.Name()), err)
		}
		if !info.Mode().IsRegular() {
			continue
		}
		if float64(info.Size())/bytesPerMB > cfg.MaxFileSizeMB {
			continue
		}
		files = append(files, filepath.Join(cfg.InputDirectory, entry.Name()))
	}
	return files, nil
}

// MatchesExtension reports whether the lower-cased name ends with any of exts.
func MatchesExtension(name string, exts []string) bool {
	lower := strings.ToLower(name)
	for _, ext := range exts {
		if ext != "" && strings.HasSuffix(lower, strings.ToLower(ext)) {
			return true
		}
	}
	return false
}

// Batches splits files into contiguous slices of at most size elements.
// The last batch may be shorter. A size below 1 is treated as 1.
func Batches(files []string, size int) [][]string {
	if size < 1 {
		size = 1
	}
	batches := make([][]string, 0, (len(files)+size-1)/size)
	for start := 0; start < len(files); start += size {
		end := min(start+size, len(files))
		batches = append(batches, files[start:end])
	}
	return batches
}
