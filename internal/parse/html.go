// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package parse

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
	"github.com/PuerkitoBio/goquery"
	"github.com/microcosm-cc/bluemonday"

	"github.com/pdiddy/odparse/pkg/types"
)

// htmlMetaNames maps <meta name|property> values to metadata fields.
var htmlMetaNames = map[string]string{
	"author":                 "author",
	"dc.creator":             "author",
	"generator":              "creator",
	"dcterms.created":        "creation_date",
	"dc.date":                "creation_date",
	"date":                   "creation_date",
	"article:published_time": "creation_date",
	"description":            "description",
	"keywords":               "keywords",
}

// HTMLParser extracts text, tables, and meta tags from HTML documents and
// renders sanitized Markdown.
type HTMLParser struct {
	policy *bluemonday.Policy
	md     *converter.Converter
}

// NewHTMLParser returns an HTMLParser with the UGC sanitizer policy and the
// CommonMark + table Markdown plugins.
func NewHTMLParser() *HTMLParser {
	return &HTMLParser{
		policy: bluemonday.UGCPolicy(),
		md: converter.NewConverter(
			converter.WithPlugins(
				base.NewBasePlugin(),
				commonmark.NewCommonmarkPlugin(),
				table.NewTablePlugin(),
			),
		),
	}
}

// Parse reads an HTML file. The whole document is one page. HTML has no
// deep-learning mode; opts is ignored.
func (h *HTMLParser) Parse(ctx context.Context, path string, _ Options) (types.Content, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("parsing HTML %s: %w", path, err)
	}

	meta := htmlMetadata(doc)
	tables := htmlTables(doc)

	doc.Find("script, style, noscript, template").Remove()
	body := doc.Find("body")
	if body.Length() == 0 {
		body = doc.Selection
	}
	text := collapseSpace(body.Text())

	content := types.Content{
		types.KeyText:     text,
		types.KeyPages:    []types.Page{{Number: 1, Text: text}},
		types.KeyTables:   tables,
		types.KeyMetadata: meta,
	}
	if md, err := h.toMarkdown(ctx, raw); err == nil {
		content[types.KeyMarkdown] = md
	}
	return content, nil
}

// ConvertToMarkdown renders the sanitized document as Markdown.
func (h *HTMLParser) ConvertToMarkdown(ctx context.Context, path string) (string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", path, err)
	}
	return h.toMarkdown(ctx, raw)
}

func (h *HTMLParser) toMarkdown(ctx context.Context, raw []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	clean := h.policy.SanitizeBytes(raw)
	md, err := h.md.ConvertString(string(clean))
	if err != nil {
		return "", fmt.Errorf("converting HTML to markdown: %w", err)
	}
	return strings.TrimSpace(md) + "\n", nil
}

func htmlMetadata(doc *goquery.Document) map[string]string {
	meta := map[string]string{}
	if title := collapseSpace(doc.Find("head title").First().Text()); title != "" {
		meta["title"] = title
	}
	doc.Find("meta").Each(func(_ int, s *goquery.Selection) {
		key, ok := s.Attr("name")
		if !ok {
			key, ok = s.Attr("property")
		}
		if !ok {
			return
		}
		field, known := htmlMetaNames[strings.ToLower(strings.TrimSpace(key))]
		if !known {
			return
		}
		value := strings.TrimSpace(s.AttrOr("content", ""))
		if value == "" {
			return
		}
		if _, taken := meta[field]; !taken {
			meta[field] = value
		}
	})
	return meta
}

func htmlTables(doc *goquery.Document) []types.Table {
	tables := []types.Table{}
	doc.Find("table").Each(func(_ int, tbl *goquery.Selection) {
		t := types.Table{Page: 1, Rows: [][]string{}}
		tbl.Find("tr").Each(func(_ int, tr *goquery.Selection) {
			// Skip rows of nested tables; they are reported separately.
			if tr.Closest("table").Get(0) != tbl.Get(0) {
				return
			}
			var cells []string
			headerRow := true
			tr.Children().Each(func(_ int, cell *goquery.Selection) {
				if goquery.NodeName(cell) != "th" {
					headerRow = false
				}
				cells = append(cells, collapseSpace(cell.Text()))
			})
			if len(cells) == 0 {
				return
			}
			if headerRow && t.Headers == nil && len(t.Rows) == 0 {
				t.Headers = cells
				return
			}
			t.Rows = append(t.Rows, cells)
		})
		tables = append(tables, t)
	})
	return tables
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
