// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// OutputFormat selects which artifacts Save writes for a parse result.
type OutputFormat string

const (
	FormatJSON OutputFormat = "json"
	FormatCSV  OutputFormat = "csv"
	FormatBoth OutputFormat = "both"
)

// WantsJSON reports whether the format includes the JSON artifact.
func (f OutputFormat) WantsJSON() bool {
	return f == FormatJSON || f == FormatBoth
}

// WantsCSV reports whether the format includes the CSV summary artifact.
func (f OutputFormat) WantsCSV() bool {
	return f == FormatCSV || f == FormatBoth
}

// Valid reports whether f is one of the known formats.
func (f OutputFormat) Valid() bool {
	switch f {
	case FormatJSON, FormatCSV, FormatBoth:
		return true
	}
	return false
}

// ParserBackend identifies the document parser implementation.
type ParserBackend string

const (
	// BackendAuto routes by file extension to the built-in local backends.
	BackendAuto       ParserBackend = "auto"
	BackendMarkitdown ParserBackend = "markitdown"
	BackendTika       ParserBackend = "tika"
)

// PipelineConfig holds directory, filter, and batching settings.
type PipelineConfig struct {
	// InputDirectory is scanned (non-recursively) for candidate files.
	InputDirectory string `json:"input_directory" yaml:"input_directory" mapstructure:"input_directory"`

	// OutputDirectory receives <basename>.json / .csv artifacts.
	OutputDirectory string `json:"output_directory" yaml:"output_directory" mapstructure:"output_directory"`

	// ProcessedDirectory receives successfully processed inputs. Empty
	// disables relocation.
	ProcessedDirectory string `json:"processed_directory" yaml:"processed_directory" mapstructure:"processed_directory"`

	// FileExtensions lists accepted name suffixes (e.g. ".pdf"), lower-cased at load.
	FileExtensions []string `json:"file_extensions" yaml:"file_extensions" mapstructure:"file_extensions"`

	// MaxFileSizeMB excludes files larger than this many MiB.
	MaxFileSizeMB float64 `json:"max_file_size_mb" yaml:"max_file_size_mb" mapstructure:"max_file_size_mb"`

	// BatchSize is the number of files per batch (>= 1).
	BatchSize int `json:"batch_size" yaml:"batch_size" mapstructure:"batch_size"`

	// FileDelay is the pause after each file (default 100ms).
	FileDelay time.Duration `json:"file_delay" yaml:"file_delay" mapstructure:"file_delay"`
}

// ParsingConfig holds parser backend settings.
type ParsingConfig struct {
	// UseDeepLearning is passed through to the parser backend.
	UseDeepLearning bool `json:"use_deep_learning" yaml:"use_deep_learning" mapstructure:"use_deep_learning"`

	// Backend selects the parser: auto, markitdown, or tika.
	Backend ParserBackend `json:"backend" yaml:"backend" mapstructure:"backend"`

	// TikaURL is the base URL of the Tika server (tika backend).
	TikaURL string `json:"tika_url" yaml:"tika_url" mapstructure:"tika_url"`

	// MarkitdownImage is the container image for the markitdown backend.
	MarkitdownImage string `json:"markitdown_image" yaml:"markitdown_image" mapstructure:"markitdown_image"`

	// ContainerRuntime pins the markitdown runtime to docker or podman;
	// empty detects one.
	ContainerRuntime string `json:"container_runtime" yaml:"container_runtime" mapstructure:"container_runtime"`

	// Timeout bounds a single remote parse request.
	Timeout time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`

	// MaxRetries is the retry budget for throttled remote requests.
	MaxRetries int `json:"max_retries" yaml:"max_retries" mapstructure:"max_retries"`

	// SecretsDir holds credential files for remote backends; the file
	// tika-api-key is sent to the Tika server as a bearer token.
	SecretsDir string `json:"secrets_dir" yaml:"secrets_dir" mapstructure:"secrets_dir"`
}

// OutputConfig holds artifact settings.
type OutputConfig struct {
	Format OutputFormat `json:"format" yaml:"format" mapstructure:"format"`

	// Markdown writes <basename>.md when the backend can convert to Markdown.
	Markdown bool `json:"markdown" yaml:"markdown" mapstructure:"markdown"`
}

// LoggingConfig holds log sink settings.
type LoggingConfig struct {
	Level   string `json:"level" yaml:"level" mapstructure:"level"`
	LogFile string `json:"log_file" yaml:"log_file" mapstructure:"log_file"`

	// Format is "text" or "json".
	Format string `json:"format" yaml:"format" mapstructure:"format"`
}

// LedgerConfig holds run history settings.
type LedgerConfig struct {
	// Path is the SQLite database file. Empty disables the ledger.
	Path string `json:"path" yaml:"path" mapstructure:"path"`
}

// Config is the complete runtime configuration.
type Config struct {
	Pipeline PipelineConfig `json:"pipeline" yaml:"pipeline" mapstructure:"pipeline"`
	Parsing  ParsingConfig  `json:"parsing" yaml:"parsing" mapstructure:"parsing"`
	Output   OutputConfig   `json:"output" yaml:"output" mapstructure:"output"`
	Logging  LoggingConfig  `json:"logging" yaml:"logging" mapstructure:"logging"`
	Ledger   LedgerConfig   `json:"ledger" yaml:"ledger" mapstructure:"ledger"`
}
