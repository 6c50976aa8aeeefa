// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package parse

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/pdiddy/odparse/pkg/types"
)

// PDFParser extracts page text and document info from PDFs with pdfcpu.
// It reads text-showing operators from page content streams; it performs no
// layout analysis, table detection, or OCR, so UseDeepLearning has no effect
// and tables is always empty.
type PDFParser struct{}

// NewPDFParser returns a PDFParser. pdfcpu runs on its built-in defaults;
// its user configuration directory is never read or created.
func NewPDFParser() *PDFParser {
	api.DisableConfigDir()
	return &PDFParser{}
}

// Parse reads and validates the PDF at path and extracts one Page per page.
func (p *PDFParser) Parse(ctx context.Context, path string, _ Options) (types.Content, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	pctx, err := api.ReadValidateAndOptimize(f, model.NewDefaultConfiguration())
	if err != nil {
		return nil, fmt.Errorf("pdfcpu read: %w", err)
	}

	pages := make([]types.Page, 0, pctx.PageCount)
	var all strings.Builder
	for pageNr := 1; pageNr <= pctx.PageCount; pageNr++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		text := pdfPageText(pctx, pageNr)
		pages = append(pages, types.Page{Number: pageNr, Text: text})
		if text == "" {
			continue
		}
		if all.Len() > 0 {
			all.WriteByte('\n')
		}
		all.WriteString(text)
	}

	return types.Content{
		types.KeyText:     all.String(),
		types.KeyPages:    pages,
		types.KeyTables:   []types.Table{},
		types.KeyMetadata: pdfMetadata(pctx),
	}, nil
}

// pdfMetadata returns the non-empty document info entries. The fields are
// read through XRefTable since Configuration also carries a CreationDate.
func pdfMetadata(pctx *model.Context) map[string]string {
	meta := map[string]string{}
	for field, value := range map[string]string{
		"title":         pctx.XRefTable.Title,
		"author":        pctx.XRefTable.Author,
		"creator":       pctx.XRefTable.Creator,
		"producer":      pctx.XRefTable.Producer,
		"subject":       pctx.XRefTable.Subject,
		"creation_date": pctx.XRefTable.CreationDate,
		"mod_date":      pctx.XRefTable.ModDate,
	} {
		if v := strings.TrimSpace(value); v != "" {
			meta[field] = v
		}
	}
	return meta
}

func pdfPageText(pctx *model.Context, pageNr int) string {
	r, err := pdfcpu.ExtractPageContent(pctx, pageNr)
	if err != nil || r == nil {
		return ""
	}
	data, err := io.ReadAll(r)
	if err != nil || len(data) == 0 {
		return ""
	}
	return textFromContentStream(data)
}

// pdfStringRe matches PDF literal strings: (text here)
var pdfStringRe = regexp.MustCompile(`\(((?:\\.|[^\\)])*)\)`)

// textFromContentStream collects the operands of the text-showing operators
// Tj, TJ, ' and " and breaks lines on T*, Td, and TD.
func textFromContentStream(data []byte) string {
	var sb strings.Builder
	for _, line := range bytes.Split(data, []byte{'\n'}) {
		line = bytes.TrimSpace(line)
		switch {
		case len(line) == 0:
		case bytes.HasSuffix(line, []byte("Tj")), bytes.HasSuffix(line, []byte("TJ")):
			for _, m := range pdfStringRe.FindAllSubmatch(line, -1) {
				sb.WriteString(decodePDFString(m[1]))
			}
		case bytes.HasSuffix(line, []byte("'")), bytes.HasSuffix(line, []byte(`"`)):
			for _, m := range pdfStringRe.FindAllSubmatch(line, -1) {
				sb.WriteByte('\n')
				sb.WriteString(decodePDFString(m[1]))
			}
		case bytes.Equal(line, []byte("T*")):
			sb.WriteByte('\n')
		case bytes.HasSuffix(line, []byte("Td")), bytes.HasSuffix(line, []byte("TD")):
			if sb.Len() > 0 {
				sb.WriteByte(' ')
			}
		}
	}
	return normalizeLines(sb.String())
}

// decodePDFString resolves the escape sequences of a PDF literal string.
func decodePDFString(raw []byte) string {
	var sb strings.Builder
	for i := 0; i < len(raw); i++ {
		c := raw[i]
		if c != '\\' || i+1 >= len(raw) {
			sb.WriteByte(c)
			continue
		}
		i++
		switch raw[i] {
		case 'n':
			sb.WriteByte('\n')
		case 'r':
			sb.WriteByte('\r')
		case 't':
			sb.WriteByte('\t')
		case 'b', 'f':
		case '0', '1', '2', '3', '4', '5', '6', '7':
			val := 0
			for n := 0; n < 3 && i < len(raw) && raw[i] >= '0' && raw[i] <= '7'; n++ {
				val = val*8 + int(raw[i]-'0')
				i++
			}
			i--
			sb.WriteByte(byte(val))
		default:
			sb.WriteByte(raw[i])
		}
	}
	return sb.String()
}

// normalizeLines collapses runs of blanks inside each line and drops empty lines.
func normalizeLines(s string) string {
	var out []string
	for _, line := range strings.Split(s, "\n") {
		if line = strings.Join(strings.Fields(line), " "); line != "" {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}
