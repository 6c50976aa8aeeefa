// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package parse

import (
	"regexp"
	"strings"

	"github.com/pdiddy/odparse/pkg/types"
)

// tableSeparatorRe matches a GitHub-style table delimiter row: | --- | :-: |
var tableSeparatorRe = regexp.MustCompile(`^\|?\s*:?-{3,}:?\s*(\|\s*:?-{3,}:?\s*)*\|?$`)

// markdownTables extracts pipe tables from Markdown text. A table is a
// header row, a delimiter row, and the contiguous pipe rows after it.
func markdownTables(md string) []types.Table {
	lines := strings.Split(strings.ReplaceAll(md, "\r\n", "\n"), "\n")
	tables := []types.Table{}
	for i := 1; i < len(lines); i++ {
		sep := strings.TrimSpace(lines[i])
		header := strings.TrimSpace(lines[i-1])
		if !strings.Contains(header, "|") || !tableSeparatorRe.MatchString(sep) {
			continue
		}
		t := types.Table{Headers: splitRow(header), Rows: [][]string{}}
		j := i + 1
		for ; j < len(lines); j++ {
			row := strings.TrimSpace(lines[j])
			if !strings.Contains(row, "|") {
				break
			}
			t.Rows = append(t.Rows, splitRow(row))
		}
		tables = append(tables, t)
		i = j
	}
	return tables
}

func splitRow(row string) []string {
	row = strings.TrimPrefix(strings.TrimSuffix(row, "|"), "|")
	cells := strings.Split(row, "|")
	for i, c := range cells {
		cells[i] = strings.TrimSpace(c)
	}
	return cells
}

// markdownTitle returns the text of the first level-one heading, or "".
func markdownTitle(md string) string {
	for _, line := range strings.Split(md, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "# ") {
			return strings.TrimSpace(strings.TrimPrefix(line, "# "))
		}
	}
	return ""
}

// markdownContent builds Content for a backend that only yields Markdown.
func markdownContent(md string) types.Content {
	meta := map[string]string{}
	if title := markdownTitle(md); title != "" {
		meta["title"] = title
	}
	return types.Content{
		types.KeyText:     md,
		types.KeyMarkdown: md,
		types.KeyTables:   markdownTables(md),
		types.KeyMetadata: meta,
	}
}
