// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package parse

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/pdiddy/odparse/internal/httputil"
	"github.com/pdiddy/odparse/pkg/types"
)

const (
	tikaOCRHeader = "X-Tika-PDFOcrStrategy"
	tikaOCRFull   = "ocr_and_text_extraction"
	tikaOCROff    = "no_ocr"
)

// tikaMetadataKeys maps summary metadata fields to Tika keys, in order of
// preference.
var tikaMetadataKeys = map[string][]string{
	"title":         {"dc:title", "title"},
	"author":        {"dc:creator", "meta:author", "Author"},
	"creator":       {"xmp:CreatorTool", "pdf:docinfo:creator_tool"},
	"creation_date": {"dcterms:created", "pdf:docinfo:created", "Creation-Date"},
	"producer":      {"pdf:producer", "pdf:docinfo:producer"},
}

// TikaParser extracts text and metadata through an Apache Tika server.
// UseDeepLearning switches Tika's PDF OCR strategy on.
type TikaParser struct {
	baseURL    string
	token      string
	client     *http.Client
	maxRetries int
	logger     *slog.Logger
}

// NewTikaParser returns a parser for the Tika server at baseURL.
func NewTikaParser(baseURL string, client *http.Client, maxRetries int, logger *slog.Logger) *TikaParser {
	if client == nil {
		client = http.DefaultClient
	}
	return &TikaParser{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		client:     client,
		maxRetries: maxRetries,
		logger:     logger,
	}
}

// WithToken sends token as a bearer credential on every request.
func (t *TikaParser) WithToken(token string) *TikaParser {
	t.token = token
	return t
}

// Parse uploads the document twice: once to /tika for plain text and once
// to /meta for its metadata.
func (t *TikaParser) Parse(ctx context.Context, path string, opts Options) (types.Content, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	strategy := tikaOCROff
	if opts.UseDeepLearning {
		strategy = tikaOCRFull
	}

	text, err := t.put(ctx, "/tika", "text/plain", strategy, data)
	if err != nil {
		return nil, err
	}
	rawMeta, err := t.put(ctx, "/meta", "application/json", strategy, data)
	if err != nil {
		return nil, err
	}

	var fields map[string]any
	if err := json.Unmarshal(rawMeta, &fields); err != nil {
		return nil, fmt.Errorf("decoding tika metadata for %s: %w", path, err)
	}

	meta := map[string]string{}
	for field, keys := range tikaMetadataKeys {
		if v := firstTikaValue(fields, keys); v != "" {
			meta[field] = v
		}
	}

	pages := []types.Page{}
	if n, err := strconv.Atoi(firstTikaValue(fields, []string{"xmpTPg:NPages"})); err == nil {
		for i := 1; i <= n; i++ {
			pages = append(pages, types.Page{Number: i})
		}
	}

	return types.Content{
		types.KeyText:     strings.TrimSpace(string(text)),
		types.KeyPages:    pages,
		types.KeyTables:   []types.Table{},
		types.KeyMetadata: meta,
	}, nil
}

func (t *TikaParser) put(ctx context.Context, endpoint, accept, strategy string, body []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, t.baseURL+endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", accept)
	req.Header.Set(tikaOCRHeader, strategy)
	if t.token != "" {
		req.Header.Set("Authorization", "Bearer "+t.token)
	}

	resp, err := httputil.DoWithRetry(ctx, t.client, req, t.maxRetries, t.logger)
	if err != nil {
		return nil, fmt.Errorf("tika %s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	out, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading tika %s response: %w", endpoint, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("tika %s: HTTP %d: %s", endpoint, resp.StatusCode, strings.TrimSpace(string(out)))
	}
	return out, nil
}

// firstTikaValue returns the first non-empty value among keys. Tika reports
// repeated properties as arrays; the first element is used.
func firstTikaValue(fields map[string]any, keys []string) string {
	for _, k := range keys {
		switch v := fields[k].(type) {
		case string:
			if v != "" {
				return v
			}
		case []any:
			if len(v) > 0 {
				if s, ok := v[0].(string); ok && s != "" {
					return s
				}
			}
		}
	}
	return ""
}
