// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package secrets loads backend credentials from a directory of plain-text
// files. Each file is one secret: the filename is the key and the trimmed
// contents are the value.
//
// Known keys: tika-api-key.
package secrets

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// TikaAPIKey is the secret sent to the Tika server as a bearer token.
const TikaAPIKey = "tika-api-key"

// Load reads all files in dir and returns a map of filename to trimmed
// contents. An empty dir or a missing directory yields an empty map.
// Hidden files and empty values are skipped; unreadable files are logged
// and skipped.
func Load(dir string, logger *slog.Logger) (map[string]string, error) {
	if dir == "" {
		return map[string]string{}, nil
	}
	if logger == nil {
		logger = slog.Default()
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("reading secrets directory %s: %w", dir, err)
	}

	secrets := make(map[string]string)
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, ".") {
			continue
		}

		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			logger.Warn("could not read secret", "name", name, "error", err)
			continue
		}
		if value := strings.TrimSpace(string(data)); value != "" {
			secrets[name] = value
		}
	}
	if len(secrets) > 0 {
		logger.Debug("loaded secrets", "dir", dir, "count", len(secrets))
	}
	return secrets, nil
}
