// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package parse

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/odparse/internal/logging"
	"github.com/pdiddy/odparse/pkg/types"
)

// fakeParser implements Parser for testing. It returns canned content or an
// error and records the options it was called with.
type fakeParser struct {
	content types.Content
	err     error
	gotOpts Options
	calls   int
}

func (f *fakeParser) Parse(_ context.Context, _ string, opts Options) (types.Content, error) {
	f.calls++
	f.gotOpts = opts
	if f.err != nil {
		return nil, f.err
	}
	return f.content, nil
}

func sampleContent() types.Content {
	return types.Content{
		types.KeyText:   "Grüße aus Zürich <b>&</b>",
		types.KeyPages:  []types.Page{{Number: 1, Text: "Grüße"}, {Number: 2, Text: "aus Zürich"}},
		types.KeyTables: []types.Table{{Page: 2, Rows: [][]string{{"a", "b"}}}},
		types.KeyMetadata: map[string]string{
			"title":  "Jahresbericht",
			"author": "Ana",
		},
	}
}

func writeInput(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("%PDF-1.4 fake"), 0o644))
	return path
}

func newTestAdapter(p Parser, format types.OutputFormat) *Adapter {
	return NewAdapter(p,
		types.ParsingConfig{UseDeepLearning: true},
		types.OutputConfig{Format: format},
		logging.Discard())
}

func TestAdapter_Parse(t *testing.T) {
	dir := t.TempDir()
	path := writeInput(t, dir, "report.pdf")
	fp := &fakeParser{content: sampleContent()}

	result, err := newTestAdapter(fp, types.FormatJSON).Parse(context.Background(), path)
	require.NoError(t, err)

	assert.True(t, fp.gotOpts.UseDeepLearning)
	assert.Equal(t, types.FileInfo{Filename: "report.pdf", FileSize: 13, FilePath: path}, result.FileInfo)
	assert.Equal(t, "Grüße aus Zürich <b>&</b>", result.Content[types.KeyText])
}

func TestAdapter_ParseFailures(t *testing.T) {
	dir := t.TempDir()

	t.Run("missing file", func(t *testing.T) {
		fp := &fakeParser{content: sampleContent()}
		_, err := newTestAdapter(fp, types.FormatJSON).Parse(context.Background(), filepath.Join(dir, "gone.pdf"))
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrNotFound)
		assert.Zero(t, fp.calls, "backend must not be called for a missing file")
	})

	t.Run("backend error", func(t *testing.T) {
		path := writeInput(t, dir, "broken.pdf")
		cause := errors.New("xref table corrupt")
		_, err := newTestAdapter(&fakeParser{err: cause}, types.FormatJSON).Parse(context.Background(), path)
		require.Error(t, err)

		var pe *ParseError
		require.ErrorAs(t, err, &pe)
		assert.Equal(t, path, pe.Path)
		assert.ErrorIs(t, err, cause)
		assert.NotErrorIs(t, err, ErrNotFound)
	})

	t.Run("nil content becomes empty", func(t *testing.T) {
		path := writeInput(t, dir, "empty.pdf")
		result, err := newTestAdapter(&fakeParser{}, types.FormatJSON).Parse(context.Background(), path)
		require.NoError(t, err)
		assert.NotNil(t, result.Content)
	})
}

func parseSample(t *testing.T, a *Adapter, dir string) *types.ParseResult {
	t.Helper()
	result, err := a.Parse(context.Background(), writeInput(t, dir, "report.pdf"))
	require.NoError(t, err)
	return result
}

func TestSave_Formats(t *testing.T) {
	tests := []struct {
		format   types.OutputFormat
		wantJSON bool
		wantCSV  bool
	}{
		{format: types.FormatJSON, wantJSON: true},
		{format: types.FormatCSV, wantCSV: true},
		{format: types.FormatBoth, wantJSON: true, wantCSV: true},
	}
	for _, tt := range tests {
		t.Run(string(tt.format), func(t *testing.T) {
			dir := t.TempDir()
			a := newTestAdapter(&fakeParser{content: sampleContent()}, tt.format)
			result := parseSample(t, a, dir)
			outBase := filepath.Join(dir, "report")

			written, err := a.Save(context.Background(), result, outBase)
			require.NoError(t, err)

			if tt.wantJSON {
				assert.FileExists(t, outBase+".json")
				assert.Contains(t, written, outBase+".json")
			} else {
				assert.NoFileExists(t, outBase+".json")
			}
			if tt.wantCSV {
				assert.FileExists(t, outBase+".csv")
				assert.Contains(t, written, outBase+".csv")
			} else {
				assert.NoFileExists(t, outBase+".csv")
			}
		})
	}
}

func TestSave_JSONContent(t *testing.T) {
	dir := t.TempDir()
	a := newTestAdapter(&fakeParser{content: sampleContent()}, types.FormatJSON)
	result := parseSample(t, a, dir)
	outBase := filepath.Join(dir, "report")

	_, err := a.Save(context.Background(), result, outBase)
	require.NoError(t, err)

	data, err := os.ReadFile(outBase + ".json")
	require.NoError(t, err)
	text := string(data)

	assert.Contains(t, text, "Grüße aus Zürich <b>&</b>", "non-ASCII and HTML characters are written verbatim")
	assert.Contains(t, text, "\n  \"file_info\": {\n    \"filename\": \"report.pdf\"")

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	info := decoded["file_info"].(map[string]any)
	assert.Equal(t, "report.pdf", info["filename"])
	assert.Equal(t, float64(13), info["file_size"])
	assert.Len(t, decoded["pages"], 2)
}

func TestSave_Idempotent(t *testing.T) {
	dir := t.TempDir()
	a := newTestAdapter(&fakeParser{content: sampleContent()}, types.FormatBoth)
	result := parseSample(t, a, dir)
	outBase := filepath.Join(dir, "report")

	_, err := a.Save(context.Background(), result, outBase)
	require.NoError(t, err)
	first, err := os.ReadFile(outBase + ".json")
	require.NoError(t, err)

	_, err = a.Save(context.Background(), result, outBase)
	require.NoError(t, err)
	second, err := os.ReadFile(outBase + ".json")
	require.NoError(t, err)

	assert.True(t, bytes.Equal(first, second), "repeated saves must produce identical JSON")
}

func TestSave_CSVSummaryRow(t *testing.T) {
	dir := t.TempDir()
	a := newTestAdapter(&fakeParser{content: sampleContent()}, types.FormatBoth)
	result := parseSample(t, a, dir)
	outBase := filepath.Join(dir, "report")

	_, err := a.Save(context.Background(), result, outBase)
	require.NoError(t, err)

	f, err := os.Open(outBase + ".csv")
	require.NoError(t, err)
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)

	require.Len(t, records, 2, "header plus exactly one data row")
	assert.Equal(t, types.SummaryHeader, records[0])
	assert.Equal(t, []string{
		"report.pdf", "13", "25", "2", "1", "true", "Jahresbericht", "Ana", "N/A", "N/A",
	}, records[1])
}

func TestSave_SummaryFailureSkipsCSVOnly(t *testing.T) {
	dir := t.TempDir()
	content := sampleContent()
	content[types.KeyPages] = "not a list"
	a := newTestAdapter(&fakeParser{content: content}, types.FormatBoth)
	result := parseSample(t, a, dir)
	outBase := filepath.Join(dir, "report")

	written, err := a.Save(context.Background(), result, outBase)
	require.NoError(t, err, "summary failures are best effort")

	assert.Equal(t, []string{outBase + ".json"}, written)
	assert.FileExists(t, outBase+".json")
	assert.NoFileExists(t, outBase+".csv")
}

func TestSave_JSONFailureIsReturned(t *testing.T) {
	dir := t.TempDir()
	a := newTestAdapter(&fakeParser{content: sampleContent()}, types.FormatJSON)
	result := parseSample(t, a, dir)

	_, err := a.Save(context.Background(), result, filepath.Join(dir, "missing-dir", "report"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "saving JSON")
}

func TestSave_NilResultIsNoop(t *testing.T) {
	dir := t.TempDir()
	a := newTestAdapter(&fakeParser{}, types.FormatBoth)
	written, err := a.Save(context.Background(), nil, filepath.Join(dir, "x"))
	require.NoError(t, err)
	assert.Empty(t, written)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestSave_Markdown(t *testing.T) {
	dir := t.TempDir()
	content := sampleContent()
	content[types.KeyMarkdown] = "# Jahresbericht\n"
	a := NewAdapter(&fakeParser{content: content}, types.ParsingConfig{},
		types.OutputConfig{Format: types.FormatJSON, Markdown: true}, logging.Discard())
	result := parseSample(t, a, dir)
	outBase := filepath.Join(dir, "report")

	written, err := a.Save(context.Background(), result, outBase)
	require.NoError(t, err)
	assert.Contains(t, written, outBase+".md")

	md, err := os.ReadFile(outBase + ".md")
	require.NoError(t, err)
	assert.Equal(t, "# Jahresbericht\n", string(md))
}

func TestSave_MarkdownUnavailableIsSkipped(t *testing.T) {
	dir := t.TempDir()
	a := NewAdapter(&fakeParser{content: sampleContent()}, types.ParsingConfig{},
		types.OutputConfig{Format: types.FormatJSON, Markdown: true}, logging.Discard())
	result := parseSample(t, a, dir)
	outBase := filepath.Join(dir, "report")

	written, err := a.Save(context.Background(), result, outBase)
	require.NoError(t, err)
	assert.Equal(t, []string{outBase + ".json"}, written)
	assert.NoFileExists(t, outBase+".md")
}

func TestEncodeJSON_IndentsWithTwoSpaces(t *testing.T) {
	var buf bytes.Buffer
	err := EncodeJSON(&buf, &types.ParseResult{
		Content:  types.Content{"text": "x"},
		FileInfo: types.FileInfo{Filename: "a.pdf"},
	})
	require.NoError(t, err)
	lines := strings.Split(buf.String(), "\n")
	assert.Equal(t, "{", lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "  \""), lines[1])
}
