// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package parse

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/pdiddy/odparse/internal/fsutil"
	"github.com/pdiddy/odparse/pkg/types"
)

const artifactPerm = 0o644

// Save writes the artifacts for result next to outBase (a path without
// extension) and returns the paths it wrote.
//
// The JSON artifact is primary: its failure is returned. The CSV summary
// and the Markdown rendition are best effort: failures are logged and
// skipped. A nil result is a logged no-op.
func (a *Adapter) Save(ctx context.Context, result *types.ParseResult, outBase string) ([]string, error) {
	if result == nil {
		a.logger.Warn("no results to save", "output", outBase)
		return nil, nil
	}

	var written []string

	if a.output.Format.WantsJSON() {
		jsonPath := outBase + ".json"
		if err := fsutil.WriteFileAtomic(jsonPath, artifactPerm, func(w io.Writer) error {
			return EncodeJSON(w, result)
		}); err != nil {
			return written, fmt.Errorf("saving JSON %s: %w", jsonPath, err)
		}
		a.logger.Info("saved JSON file", "path", jsonPath)
		written = append(written, jsonPath)
	}

	if a.output.Format.WantsCSV() {
		if csvPath, err := a.saveCSV(result, outBase+".csv"); err != nil {
			a.logger.Error("failed to create summary", "path", csvPath, "error", err)
		} else {
			a.logger.Info("saved CSV file", "path", csvPath)
			written = append(written, csvPath)
		}
	}

	if a.output.Markdown {
		mdPath := outBase + ".md"
		if err := a.saveMarkdown(ctx, result, mdPath); err != nil {
			if errors.Is(err, ErrNoMarkdown) {
				a.logger.Debug("markdown not available", "path", result.FileInfo.FilePath)
			} else {
				a.logger.Error("failed to save markdown", "path", mdPath, "error", err)
			}
		} else {
			a.logger.Info("saved Markdown file", "path", mdPath)
			written = append(written, mdPath)
		}
	}

	return written, nil
}

// EncodeJSON writes result as two-space indented UTF-8 JSON. Non-ASCII
// and HTML characters are written verbatim. Map keys are sorted, so equal
// results encode to identical bytes.
func EncodeJSON(w io.Writer, result *types.ParseResult) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(result.Document())
}

func (a *Adapter) saveCSV(result *types.ParseResult, path string) (string, error) {
	summary, err := Summarize(result)
	if err != nil {
		return path, err
	}
	return path, fsutil.WriteFileAtomic(path, artifactPerm, func(w io.Writer) error {
		return WriteSummaryCSV(w, summary)
	})
}

// WriteSummaryCSV writes the header row and one data row for s.
func WriteSummaryCSV(w io.Writer, s types.Summary) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(types.SummaryHeader); err != nil {
		return err
	}
	if err := cw.Write(summaryRow(s)); err != nil {
		return err
	}
	cw.Flush()
	return cw.Error()
}

func summaryRow(s types.Summary) []string {
	return []string{
		s.Filename,
		strconv.FormatInt(s.FileSizeBytes, 10),
		strconv.Itoa(s.TextLength),
		strconv.Itoa(s.PageCount),
		strconv.Itoa(s.TableCount),
		strconv.FormatBool(s.HasMetadata),
		s.Title,
		s.Author,
		s.Creator,
		s.CreationDate,
	}
}

func (a *Adapter) saveMarkdown(ctx context.Context, result *types.ParseResult, path string) error {
	md, err := a.Markdown(ctx, result)
	if err != nil {
		return err
	}
	return fsutil.WriteFileAtomic(path, artifactPerm, func(w io.Writer) error {
		_, err := io.WriteString(w, md)
		return err
	})
}
