// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package parse

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/odparse/internal/container"
	"github.com/pdiddy/odparse/internal/httputil"
	"github.com/pdiddy/odparse/internal/logging"
	"github.com/pdiddy/odparse/pkg/types"
)

func init() {
	httputil.RetryBaseDelay = time.Millisecond
}

const sampleHTML = `<!DOCTYPE html>
<html>
<head>
  <title> Quarterly
    Report </title>
  <meta name="author" content="Ana">
  <meta name="generator" content="Hugo">
  <meta property="article:published_time" content="2024-03-01">
</head>
<body>
  <h1>Results</h1>
  <p>Revenue grew.</p>
  <script>var secret = 1;</script>
  <table>
    <tr><th>Region</th><th>Sales</th></tr>
    <tr><td>EU</td><td>10</td></tr>
    <tr><td>US</td><td>12</td></tr>
  </table>
</body>
</html>
`

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestHTMLParser_Parse(t *testing.T) {
	path := writeFile(t, "report.html", sampleHTML)

	content, err := NewHTMLParser().Parse(context.Background(), path, Options{})
	require.NoError(t, err)

	text := content[types.KeyText].(string)
	assert.Contains(t, text, "Results")
	assert.Contains(t, text, "Revenue grew.")
	assert.NotContains(t, text, "secret")

	assert.Equal(t, map[string]string{
		"title":         "Quarterly Report",
		"author":        "Ana",
		"creator":       "Hugo",
		"creation_date": "2024-03-01",
	}, content[types.KeyMetadata])

	tables := content[types.KeyTables].([]types.Table)
	require.Len(t, tables, 1)
	assert.Equal(t, []string{"Region", "Sales"}, tables[0].Headers)
	assert.Equal(t, [][]string{{"EU", "10"}, {"US", "12"}}, tables[0].Rows)

	pages := content[types.KeyPages].([]types.Page)
	require.Len(t, pages, 1)
	assert.Equal(t, 1, pages[0].Number)

	md, ok := content[types.KeyMarkdown].(string)
	require.True(t, ok, "markdown should be produced")
	assert.Contains(t, md, "# Results")
	assert.NotContains(t, md, "secret")
}

func TestHTMLParser_NestedTablesReportedSeparately(t *testing.T) {
	path := writeFile(t, "nested.html", `<table>
<tr><td>outer</td><td><table><tr><td>inner</td></tr></table></td></tr>
</table>`)

	content, err := NewHTMLParser().Parse(context.Background(), path, Options{})
	require.NoError(t, err)

	tables := content[types.KeyTables].([]types.Table)
	require.Len(t, tables, 2)
	assert.Len(t, tables[0].Rows, 1)
	assert.Equal(t, [][]string{{"inner"}}, tables[1].Rows)
}

func TestHTMLParser_MissingFile(t *testing.T) {
	_, err := NewHTMLParser().Parse(context.Background(), filepath.Join(t.TempDir(), "no.html"), Options{})
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestMarkdownTables(t *testing.T) {
	md := "# Title\n\nIntro\n\n| a | b |\n|---|:---:|\n| 1 | 2 |\n| 3 | 4 |\n\ntext\n\n| x |\n| --- |\n"

	tables := markdownTables(md)
	require.Len(t, tables, 2)
	assert.Equal(t, []string{"a", "b"}, tables[0].Headers)
	assert.Equal(t, [][]string{{"1", "2"}, {"3", "4"}}, tables[0].Rows)
	assert.Equal(t, []string{"x"}, tables[1].Headers)
	assert.Empty(t, tables[1].Rows)

	assert.Equal(t, "Title", markdownTitle(md))
	assert.Empty(t, markdownTitle("no heading\n## sub"))
}

// fakeRuntime implements container.Runtime for testing.
type fakeRuntime struct {
	imageErr error
	runErr   error
	output   string
	gotSpec  container.RunSpec
	gotStdin string
}

func (f *fakeRuntime) Name() string { return "fake" }

func (f *fakeRuntime) Available(context.Context) bool { return true }

func (f *fakeRuntime) ImageExists(context.Context, string) error { return f.imageErr }

func (f *fakeRuntime) Run(_ context.Context, spec container.RunSpec) error {
	f.gotSpec = spec
	if spec.Stdin != nil {
		data, _ := io.ReadAll(spec.Stdin)
		f.gotStdin = string(data)
	}
	if f.runErr != nil {
		return f.runErr
	}
	_, err := io.WriteString(spec.Stdout, f.output)
	return err
}

func TestMarkitdownParser(t *testing.T) {
	rt := &fakeRuntime{output: "# Memo\n\n| k | v |\n| --- | --- |\n| a | 1 |\n"}
	m, err := NewMarkitdownParser(context.Background(), rt, "")
	require.NoError(t, err)

	path := writeFile(t, "memo.docx", "DOCX BYTES")
	content, err := m.Parse(context.Background(), path, Options{UseDeepLearning: true})
	require.NoError(t, err)

	assert.Equal(t, DefaultMarkitdownImage, rt.gotSpec.Image)
	assert.Equal(t, "DOCX BYTES", rt.gotStdin)
	assert.False(t, rt.gotSpec.Network)
	assert.Equal(t, rt.output, content[types.KeyMarkdown])
	assert.Equal(t, map[string]string{"title": "Memo"}, content[types.KeyMetadata])
	assert.Len(t, content[types.KeyTables], 1)
}

func TestMarkitdownParser_Failures(t *testing.T) {
	t.Run("image missing", func(t *testing.T) {
		_, err := NewMarkitdownParser(context.Background(), &fakeRuntime{imageErr: errors.New("no such image")}, "md:1")
		assert.ErrorContains(t, err, "no such image")
	})

	t.Run("empty output", func(t *testing.T) {
		m, err := NewMarkitdownParser(context.Background(), &fakeRuntime{}, "md:1")
		require.NoError(t, err)
		_, err = m.ConvertToMarkdown(context.Background(), writeFile(t, "a.pdf", "x"))
		assert.ErrorContains(t, err, "empty output")
	})

	t.Run("container error", func(t *testing.T) {
		m, err := NewMarkitdownParser(context.Background(), &fakeRuntime{runErr: errors.New("exit 1")}, "md:1")
		require.NoError(t, err)
		_, err = m.Parse(context.Background(), writeFile(t, "a.pdf", "x"), Options{})
		assert.ErrorContains(t, err, "exit 1")
	})
}

func TestTikaParser(t *testing.T) {
	var throttled atomic.Bool
	var gotStrategy atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut {
			http.Error(w, "method", http.StatusMethodNotAllowed)
			return
		}
		body, _ := io.ReadAll(r.Body)
		if string(body) != "PDF BYTES" {
			http.Error(w, "body", http.StatusBadRequest)
			return
		}
		gotStrategy.Store(r.Header.Get("X-Tika-PDFOcrStrategy"))
		switch r.URL.Path {
		case "/tika":
			if !throttled.Swap(true) {
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
			io.WriteString(w, "\n  Hello Tika \n")
		case "/meta":
			w.Header().Set("Content-Type", "application/json")
			io.WriteString(w, `{"dc:title":"Paper","dc:creator":["Ana","Bob"],"xmpTPg:NPages":"3","pdf:producer":""}`)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	p := NewTikaParser(srv.URL+"/", srv.Client(), 2, logging.Discard())
	content, err := p.Parse(context.Background(), writeFile(t, "a.pdf", "PDF BYTES"), Options{UseDeepLearning: true})
	require.NoError(t, err)

	assert.Equal(t, "ocr_and_text_extraction", gotStrategy.Load())
	assert.Equal(t, "Hello Tika", content[types.KeyText])
	assert.Equal(t, map[string]string{"title": "Paper", "author": "Ana"}, content[types.KeyMetadata])
	assert.Len(t, content[types.KeyPages], 3)
}

func TestTikaParser_NoOCRWithoutDeepLearning(t *testing.T) {
	var gotStrategy atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotStrategy.Store(r.Header.Get("X-Tika-PDFOcrStrategy"))
		if r.URL.Path == "/meta" {
			io.WriteString(w, `{}`)
			return
		}
		io.WriteString(w, "text")
	}))
	defer srv.Close()

	_, err := NewTikaParser(srv.URL, srv.Client(), 1, logging.Discard()).
		Parse(context.Background(), writeFile(t, "a.pdf", "x"), Options{})
	require.NoError(t, err)
	assert.Equal(t, "no_ocr", gotStrategy.Load())
}

func TestTikaParser_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := NewTikaParser(srv.URL, srv.Client(), 1, logging.Discard()).
		Parse(context.Background(), writeFile(t, "a.pdf", "x"), Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HTTP 500")
}

func TestRouter(t *testing.T) {
	pdf := ParserFunc(func(context.Context, string, Options) (types.Content, error) {
		return types.Content{"text": "pdf"}, nil
	})
	r := NewRouter()
	r.Handle(".PDF", pdf)
	r.Handle(".html", NewHTMLParser())

	content, err := r.Parse(context.Background(), "/in/A.Pdf", Options{})
	require.NoError(t, err)
	assert.Equal(t, "pdf", content["text"])

	_, err = r.Parse(context.Background(), "/in/a.docx", Options{})
	assert.ErrorIs(t, err, ErrUnsupported)

	_, err = r.ConvertToMarkdown(context.Background(), "/in/a.pdf")
	assert.ErrorIs(t, err, ErrNoMarkdown)

	md, err := r.ConvertToMarkdown(context.Background(), writeFile(t, "a.html", "<h1>Hi</h1>"))
	require.NoError(t, err)
	assert.Equal(t, "# Hi\n", md)
}

func TestNewBackend(t *testing.T) {
	p, err := NewBackend(context.Background(), types.ParsingConfig{Backend: types.BackendAuto}, logging.Discard())
	require.NoError(t, err)
	assert.IsType(t, &Router{}, p)

	p, err = NewBackend(context.Background(), types.ParsingConfig{Backend: types.BackendTika, TikaURL: "http://tika:9998"}, logging.Discard())
	require.NoError(t, err)
	assert.IsType(t, &TikaParser{}, p)

	_, err = NewBackend(context.Background(), types.ParsingConfig{Backend: "grobid"}, logging.Discard())
	assert.Error(t, err)
}

func TestPDFParser_RejectsInvalidFile(t *testing.T) {
	_, err := NewPDFParser().Parse(context.Background(), writeFile(t, "bad.pdf", "not a pdf at all"), Options{})
	assert.Error(t, err)
}

// onePagePDF builds an uncompressed single-page PDF whose content stream
// shows text, with an indirect /Info dictionary.
func onePagePDF(text string) string {
	content := "BT\n/F1 12 Tf\n72 720 Td\n(" + text + ") Tj\nET\n"
	objects := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		"<< /Type /Pages /Kids [3 0 R] /Count 1 >>",
		"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Resources << /Font << /F1 5 0 R >> >> /Contents 4 0 R >>",
		fmt.Sprintf("<< /Length %d >>\nstream\n%sendstream", len(content), content),
		"<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica >>",
		"<< /Title (Annual Report) /Author (Ana) /Creator (Writer) /CreationDate (D:20240101120000+00'00') >>",
	}

	var b strings.Builder
	b.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = b.Len()
		fmt.Fprintf(&b, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}
	xref := b.Len()
	fmt.Fprintf(&b, "xref\n0 %d\n0000000000 65535 f \n", len(objects)+1)
	for _, off := range offsets {
		fmt.Fprintf(&b, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&b, "trailer\n<< /Size %d /Root 1 0 R /Info 6 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xref)
	return b.String()
}

func TestPDFParser_Parse(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(home, ".config"))

	path := writeFile(t, "report.pdf", onePagePDF("Hello PDF"))
	content, err := NewPDFParser().Parse(context.Background(), path, Options{})
	require.NoError(t, err)

	assert.Equal(t, "Hello PDF", content[types.KeyText])
	assert.Equal(t, []types.Page{{Number: 1, Text: "Hello PDF"}}, content[types.KeyPages])
	assert.Equal(t, []types.Table{}, content[types.KeyTables])

	summary, err := Summarize(&types.ParseResult{Content: content, FileInfo: types.FileInfo{Filename: "report.pdf"}})
	require.NoError(t, err)
	assert.Equal(t, 1, summary.PageCount)
	assert.Equal(t, len("Hello PDF"), summary.TextLength)
	assert.True(t, summary.HasMetadata)
	assert.Equal(t, "Annual Report", summary.Title)
	assert.Equal(t, "Ana", summary.Author)
	assert.Equal(t, "Writer", summary.Creator)
	assert.Equal(t, "D:20240101120000+00'00'", summary.CreationDate)

	assert.NoDirExists(t, filepath.Join(home, ".config", "pdfcpu"))
}

func TestTextFromContentStream(t *testing.T) {
	stream := []byte("BT\n/F1 12 Tf\n72 712 Td\n(Hello\\040World) Tj\nT*\n[(Sec) -250 (ond)] TJ\n(line \\(three\\)) '\nET\n")
	assert.Equal(t, "Hello World\nSecond\nline (three)", textFromContentStream(stream))
}

func TestDecodePDFString(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{raw: `plain`, want: "plain"},
		{raw: `a\nb`, want: "a\nb"},
		{raw: `\(x\)`, want: "(x)"},
		{raw: `\101\102`, want: "AB"},
		{raw: `back\\slash`, want: `back\slash`},
		{raw: `trailing\`, want: `trailing\`},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			assert.Equal(t, tt.want, decodePDFString([]byte(tt.raw)))
		})
	}
}

func TestNewBackend_TikaUsesSecretToken(t *testing.T) {
	var gotAuth atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth.Store(r.Header.Get("Authorization"))
		if r.URL.Path == "/meta" {
			io.WriteString(w, `{}`)
			return
		}
		io.WriteString(w, "text")
	}))
	defer srv.Close()

	secretsDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(secretsDir, "tika-api-key"), []byte("tk_123\n"), 0o600))

	p, err := NewBackend(context.Background(), types.ParsingConfig{
		Backend:    types.BackendTika,
		TikaURL:    srv.URL,
		Timeout:    5 * time.Second,
		SecretsDir: secretsDir,
	}, logging.Discard())
	require.NoError(t, err)

	_, err = p.Parse(context.Background(), writeFile(t, "a.pdf", "x"), Options{})
	require.NoError(t, err)
	assert.Equal(t, "Bearer tk_123", gotAuth.Load())
}
