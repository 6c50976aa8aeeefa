// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package parse adapts document parser backends to the pipeline: it turns a
// file path into a ParseResult, persists results as JSON, CSV, and Markdown
// artifacts, and derives the single-row summary record.
//
// Backends (pdfcpu, HTML, markitdown container, Tika server) implement the
// Parser interface; the Adapter never depends on a concrete backend.
package parse

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/pdiddy/odparse/pkg/types"
)

// Options carries the behaviour flags passed to a backend on every call.
type Options struct {
	UseDeepLearning bool
}

// Parser extracts structured content from one document. Implementations may
// be slow and resource-heavy; callers invoke them sequentially.
type Parser interface {
	// Parse reads the document at path and returns its content.
	Parse(ctx context.Context, path string, opts Options) (types.Content, error)
}

// MarkdownConverter is the optional Markdown capability of a backend.
type MarkdownConverter interface {
	// ConvertToMarkdown reads the document at path and returns Markdown text.
	ConvertToMarkdown(ctx context.Context, path string) (string, error)
}

// ParserFunc adapts a function to the Parser interface.
type ParserFunc func(ctx context.Context, path string, opts Options) (types.Content, error)

// Parse calls f.
func (f ParserFunc) Parse(ctx context.Context, path string, opts Options) (types.Content, error) {
	return f(ctx, path, opts)
}

var (
	// ErrNotFound is returned by Adapter.Parse when the input file is missing.
	ErrNotFound = errors.New("file not found")

	// ErrUnsupported is returned when no backend handles a file type.
	ErrUnsupported = errors.New("unsupported document type")

	// ErrNoMarkdown is returned when a backend has no Markdown capability.
	ErrNoMarkdown = errors.New("backend cannot convert to markdown")
)

// ParseError wraps a failure raised by the parser backend.
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("failed to parse %s: %v", e.Path, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Adapter wraps a Parser with file bookkeeping and artifact persistence.
type Adapter struct {
	parser Parser
	opts   Options
	output types.OutputConfig
	logger *slog.Logger
}

// NewAdapter returns an Adapter calling p with the parsing options and
// writing artifacts as output specifies.
func NewAdapter(p Parser, parsing types.ParsingConfig, output types.OutputConfig, logger *slog.Logger) *Adapter {
	if logger == nil {
		logger = slog.Default()
	}
	if output.Format == "" {
		output.Format = types.FormatJSON
	}
	return &Adapter{
		parser: p,
		opts:   Options{UseDeepLearning: parsing.UseDeepLearning},
		output: output,
		logger: logger,
	}
}

// Parse runs the backend on path and attaches file info to the result.
//
// A missing file yields an error wrapping ErrNotFound; a backend failure
// yields a *ParseError. Both are logged here. Callers should treat every
// error the same way ("this file failed"); the type only refines the
// reported reason.
func (a *Adapter) Parse(ctx context.Context, path string) (*types.ParseResult, error) {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			a.logger.Error("file not found", "path", path)
			return nil, fmt.Errorf("%s: %w", path, ErrNotFound)
		}
		a.logger.Error("failed to parse", "path", path, "error", err)
		return nil, &ParseError{Path: path, Err: err}
	}

	a.logger.Info("parsing document", "path", path, "use_deep_learning", a.opts.UseDeepLearning)

	content, err := a.parser.Parse(ctx, path, a.opts)
	if err != nil {
		a.logger.Error("failed to parse", "path", path, "error", err)
		return nil, &ParseError{Path: path, Err: err}
	}
	if content == nil {
		content = types.Content{}
	}

	info, err := os.Stat(path)
	if err != nil {
		a.logger.Error("failed to parse", "path", path, "error", err)
		return nil, &ParseError{Path: path, Err: err}
	}

	return &types.ParseResult{
		Content: content,
		FileInfo: types.FileInfo{
			Filename: filepath.Base(path),
			FileSize: info.Size(),
			FilePath: path,
		},
	}, nil
}

// Markdown returns Markdown for result: the content's "markdown" value
// when the backend produced one, otherwise a conversion through the
// backend's MarkdownConverter capability.
func (a *Adapter) Markdown(ctx context.Context, result *types.ParseResult) (string, error) {
	if md, ok := result.Content[types.KeyMarkdown].(string); ok && md != "" {
		return md, nil
	}
	conv, ok := a.parser.(MarkdownConverter)
	if !ok {
		return "", ErrNoMarkdown
	}
	return conv.ConvertToMarkdown(ctx, result.FileInfo.FilePath)
}
