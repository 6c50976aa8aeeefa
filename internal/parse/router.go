// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package parse

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/pdiddy/odparse/internal/container"
	"github.com/pdiddy/odparse/internal/secrets"
	"github.com/pdiddy/odparse/pkg/types"
)

// Router dispatches each file to a backend chosen by its extension.
type Router struct {
	routes map[string]Parser
}

// NewRouter returns an empty Router.
func NewRouter() *Router {
	return &Router{routes: make(map[string]Parser)}
}

// Handle registers p for files with extension ext (e.g. ".pdf").
func (r *Router) Handle(ext string, p Parser) {
	r.routes[strings.ToLower(ext)] = p
}

func (r *Router) lookup(path string) (Parser, error) {
	ext := strings.ToLower(filepath.Ext(path))
	p, ok := r.routes[ext]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupported, ext)
	}
	return p, nil
}

// Parse routes path to its backend.
func (r *Router) Parse(ctx context.Context, path string, opts Options) (types.Content, error) {
	p, err := r.lookup(path)
	if err != nil {
		return nil, err
	}
	return p.Parse(ctx, path, opts)
}

// ConvertToMarkdown routes path to its backend's Markdown capability.
func (r *Router) ConvertToMarkdown(ctx context.Context, path string) (string, error) {
	p, err := r.lookup(path)
	if err != nil {
		return "", err
	}
	conv, ok := p.(MarkdownConverter)
	if !ok {
		return "", ErrNoMarkdown
	}
	return conv.ConvertToMarkdown(ctx, path)
}

// NewBackend builds the parser selected by cfg.Backend. The auto backend
// handles .pdf with pdfcpu and .html/.htm with the HTML parser; markitdown
// requires a docker or podman runtime with the configured image; tika talks
// to the configured server, authenticating with the tika-api-key secret when
// one is present in cfg.SecretsDir.
func NewBackend(ctx context.Context, cfg types.ParsingConfig, logger *slog.Logger) (Parser, error) {
	switch cfg.Backend {
	case types.BackendAuto, "":
		r := NewRouter()
		r.Handle(".pdf", NewPDFParser())
		html := NewHTMLParser()
		r.Handle(".html", html)
		r.Handle(".htm", html)
		return r, nil
	case types.BackendMarkitdown:
		rt, err := container.DetectRuntime(ctx, cfg.ContainerRuntime)
		if err != nil {
			return nil, err
		}
		return NewMarkitdownParser(ctx, rt, cfg.MarkitdownImage)
	case types.BackendTika:
		creds, err := secrets.Load(cfg.SecretsDir, logger)
		if err != nil {
			return nil, err
		}
		client := &http.Client{Timeout: cfg.Timeout}
		return NewTikaParser(cfg.TikaURL, client, cfg.MaxRetries, logger).WithToken(creds[secrets.TikaAPIKey]), nil
	default:
		return nil, fmt.Errorf("unknown parser backend %q", cfg.Backend)
	}
}
