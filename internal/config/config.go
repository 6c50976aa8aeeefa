// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package config loads, validates, and renders the pipeline configuration.
// The configuration is read once by the entry point and passed by value to
// every component; nothing in this package keeps global state.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/odparse/pkg/types"
)

// DefaultPath is the configuration file used when --config is not given.
const DefaultPath = "config/config.yaml"

const envPrefix = "ODPARSE"

// requiredKeys must be present in the configuration file (or environment).
var requiredKeys = []string{
	"pipeline.input_directory",
	"pipeline.output_directory",
	"pipeline.file_extensions",
	"pipeline.max_file_size_mb",
	"pipeline.batch_size",
	"logging.level",
	"logging.log_file",
}

// MissingKeysError reports required configuration keys that are absent.
type MissingKeysError struct {
	Path string
	Keys []string
}

func (e *MissingKeysError) Error() string {
	return fmt.Sprintf("config %s: missing required keys: %s", e.Path, strings.Join(e.Keys, ", "))
}

// Defaults returns the configuration used by `odparse init` and the values
// applied to optional keys on load.
func Defaults() types.Config {
	return types.Config{
		Pipeline: types.PipelineConfig{
			InputDirectory:     "data/input",
			OutputDirectory:    "data/output",
			ProcessedDirectory: "data/processed",
			FileExtensions:     []string{".pdf"},
			MaxFileSizeMB:      50,
			BatchSize:          10,
			FileDelay:          100 * time.Millisecond,
		},
		Parsing: types.ParsingConfig{
			UseDeepLearning: true,
			Backend:         types.BackendAuto,
			TikaURL:         "http://localhost:9998",
			MarkitdownImage: "markitdown:latest",
			Timeout:         5 * time.Minute,
			MaxRetries:      3,
			SecretsDir:      ".secrets",
		},
		Output: types.OutputConfig{
			Format: types.FormatJSON,
		},
		Logging: types.LoggingConfig{
			Level:   "info",
			LogFile: "logs/pipeline.log",
			Format:  "text",
		},
		Ledger: types.LedgerConfig{
			Path: "data/ledger.db",
		},
	}
}

// Load reads the configuration file at path, applies defaults to optional
// keys and environment overrides (ODPARSE_PIPELINE_BATCH_SIZE, ...), and
// validates the result. A missing file or required key is an error.
func Load(path string) (types.Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if filepath.Ext(path) == "" {
		v.SetConfigType("yaml")
	}
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setOptionalDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return types.Config{}, fmt.Errorf("reading config %s: %w", path, err)
	}

	var missing []string
	for _, key := range requiredKeys {
		if !v.IsSet(key) {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return types.Config{}, &MissingKeysError{Path: path, Keys: missing}
	}

	var cfg types.Config
	if err := v.Unmarshal(&cfg); err != nil {
		return types.Config{}, fmt.Errorf("decoding config %s: %w", path, err)
	}
	normalize(&cfg)

	if err := Validate(cfg); err != nil {
		return types.Config{}, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// setOptionalDefaults registers defaults for keys the file may omit.
// Required keys get no default so IsSet reflects the file.
func setOptionalDefaults(v *viper.Viper) {
	d := Defaults()
	v.SetDefault("pipeline.processed_directory", "")
	v.SetDefault("pipeline.file_delay", d.Pipeline.FileDelay)
	v.SetDefault("parsing.use_deep_learning", d.Parsing.UseDeepLearning)
	v.SetDefault("parsing.backend", string(d.Parsing.Backend))
	v.SetDefault("parsing.tika_url", d.Parsing.TikaURL)
	v.SetDefault("parsing.markitdown_image", d.Parsing.MarkitdownImage)
	v.SetDefault("parsing.container_runtime", "")
	v.SetDefault("parsing.timeout", d.Parsing.Timeout)
	v.SetDefault("parsing.max_retries", d.Parsing.MaxRetries)
	v.SetDefault("parsing.secrets_dir", d.Parsing.SecretsDir)
	v.SetDefault("output.format", string(d.Output.Format))
	v.SetDefault("output.markdown", false)
	v.SetDefault("logging.format", d.Logging.Format)
	v.SetDefault("ledger.path", "")
}

func normalize(cfg *types.Config) {
	exts := make([]string, 0, len(cfg.Pipeline.FileExtensions))
	for _, ext := range cfg.Pipeline.FileExtensions {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext != "" {
			exts = append(exts, ext)
		}
	}
	cfg.Pipeline.FileExtensions = exts
	cfg.Output.Format = types.OutputFormat(strings.ToLower(string(cfg.Output.Format)))
	cfg.Parsing.Backend = types.ParserBackend(strings.ToLower(string(cfg.Parsing.Backend)))
	cfg.Parsing.ContainerRuntime = strings.ToLower(strings.TrimSpace(cfg.Parsing.ContainerRuntime))
	cfg.Logging.Format = strings.ToLower(cfg.Logging.Format)
}

// Validate checks value constraints on an already-decoded configuration.
// All violations are reported together.
func Validate(cfg types.Config) error {
	var errs []error
	p := cfg.Pipeline
	if p.InputDirectory == "" {
		errs = append(errs, errors.New("pipeline.input_directory must not be empty"))
	}
	if p.OutputDirectory == "" {
		errs = append(errs, errors.New("pipeline.output_directory must not be empty"))
	}
	if len(p.FileExtensions) == 0 {
		errs = append(errs, errors.New("pipeline.file_extensions must list at least one extension"))
	}
	if p.MaxFileSizeMB < 0 {
		errs = append(errs, fmt.Errorf("pipeline.max_file_size_mb must not be negative, got %v", p.MaxFileSizeMB))
	}
	if p.BatchSize < 1 {
		errs = append(errs, fmt.Errorf("pipeline.batch_size must be >= 1, got %d", p.BatchSize))
	}
	if p.FileDelay < 0 {
		errs = append(errs, fmt.Errorf("pipeline.file_delay must not be negative, got %v", p.FileDelay))
	}
	if !cfg.Output.Format.Valid() {
		errs = append(errs, fmt.Errorf("output.format must be json, csv, or both, got %q", cfg.Output.Format))
	}
	switch cfg.Parsing.Backend {
	case types.BackendAuto, types.BackendMarkitdown, types.BackendTika:
	default:
		errs = append(errs, fmt.Errorf("parsing.backend must be auto, markitdown, or tika, got %q", cfg.Parsing.Backend))
	}
	switch cfg.Parsing.ContainerRuntime {
	case "", "docker", "podman":
	default:
		errs = append(errs, fmt.Errorf("parsing.container_runtime must be docker or podman, got %q", cfg.Parsing.ContainerRuntime))
	}
	if cfg.Logging.LogFile == "" {
		errs = append(errs, errors.New("logging.log_file must not be empty"))
	}
	switch cfg.Logging.Format {
	case "", "text", "json":
	default:
		errs = append(errs, fmt.Errorf("logging.format must be text or json, got %q", cfg.Logging.Format))
	}
	return errors.Join(errs...)
}

// EnsureDirectories creates the input, output, and processed directories
// plus the parent directories of the log file and ledger database.
func EnsureDirectories(cfg types.Config) error {
	dirs := []string{
		cfg.Pipeline.InputDirectory,
		cfg.Pipeline.OutputDirectory,
		cfg.Pipeline.ProcessedDirectory,
		filepath.Dir(cfg.Logging.LogFile),
	}
	if cfg.Ledger.Path != "" {
		dirs = append(dirs, filepath.Dir(cfg.Ledger.Path))
	}
	for _, dir := range dirs {
		if dir == "" || dir == "." {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating directory %s: %w", dir, err)
		}
	}
	return nil
}

// Render serializes cfg as YAML in the layout Load reads.
func Render(cfg types.Config) ([]byte, error) {
	data, err := yaml.Marshal(&cfg)
	if err != nil {
		return nil, fmt.Errorf("marshaling config: %w", err)
	}
	return data, nil
}
