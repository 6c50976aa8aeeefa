// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// Content is the free-form structured output of a document parser. The
// conventional keys are "text" (string), "pages" (sequence), "tables"
// (sequence), and "metadata" (mapping); any of them may be absent.
type Content map[string]any

// Conventional Content keys.
const (
	KeyText       = "text"
	KeyPages      = "pages"
	KeyTables     = "tables"
	KeyMetadata   = "metadata"
	KeyMarkdown   = "markdown"
	KeyParsedData = "parsed_data"
	KeyFileInfo   = "file_info"
)

// Page is one page of extracted text.
type Page struct {
	Number int    `json:"number" yaml:"number"`
	Text   string `json:"text" yaml:"text"`
}

// Table is one detected table.
type Table struct {
	Page    int        `json:"page,omitempty" yaml:"page,omitempty"`
	Headers []string   `json:"headers,omitempty" yaml:"headers,omitempty"`
	Rows    [][]string `json:"rows" yaml:"rows"`
}

// FileInfo describes the source file of a parse result.
type FileInfo struct {
	Filename string `json:"filename" yaml:"filename"`
	FileSize int64  `json:"file_size" yaml:"file_size"`
	FilePath string `json:"file_path" yaml:"file_path"`
}

// ParseResult is the parser output for one document plus its file info.
type ParseResult struct {
	Content  Content
	FileInfo FileInfo
}

// Document returns the serializable form of r: the content keys with
// "file_info" added. The receiver is not modified.
func (r *ParseResult) Document() map[string]any {
	doc := make(map[string]any, len(r.Content)+1)
	for k, v := range r.Content {
		doc[k] = v
	}
	doc[KeyFileInfo] = r.FileInfo
	return doc
}

// NotAvailable is the summary value for absent metadata fields.
const NotAvailable = "N/A"

// SummaryHeader lists the CSV columns of a Summary, in order.
var SummaryHeader = []string{
	"filename", "file_size_bytes", "text_length", "page_count", "table_count",
	"has_metadata", "title", "author", "creator", "creation_date",
}

// Summary is the flattened single-row projection of a ParseResult.
type Summary struct {
	Filename      string `json:"filename"`
	FileSizeBytes int64  `json:"file_size_bytes"`
	TextLength    int    `json:"text_length"`
	PageCount     int    `json:"page_count"`
	TableCount    int    `json:"table_count"`
	HasMetadata   bool   `json:"has_metadata"`
	Title         string `json:"title"`
	Author        string `json:"author"`
	Creator       string `json:"creator"`
	CreationDate  string `json:"creation_date"`
}

// FileStatus is the outcome of one per-file step.
type FileStatus string

const (
	FileProcessed FileStatus = "processed"
	FileFailed    FileStatus = "failed"
)

// FileOutcome records what happened to one candidate file during a run.
type FileOutcome struct {
	Path        string        `json:"path" yaml:"path"`
	Status      FileStatus    `json:"status" yaml:"status"`
	Reason      string        `json:"reason,omitempty" yaml:"reason,omitempty"`
	Artifacts   []string      `json:"artifacts,omitempty" yaml:"artifacts,omitempty"`
	RelocatedTo string        `json:"relocated_to,omitempty" yaml:"relocated_to,omitempty"`
	Duration    time.Duration `json:"duration" yaml:"duration"`
}
