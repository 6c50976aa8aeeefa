// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package parse

import (
	"errors"
	"fmt"
	"reflect"
	"unicode/utf8"

	"github.com/pdiddy/odparse/pkg/types"
)

// summaryMetadataFields are copied from the metadata mapping into the summary.
var summaryMetadataFields = []string{"title", "author", "creator", "creation_date"}

// Summarize derives the flattened summary record of result. Counts are read
// from the "parsed_data" mapping when the content nests one, otherwise from
// the content itself; absent keys count as zero and absent metadata fields
// become "N/A". It fails when the file name is missing or a key holds a
// value of the wrong shape.
func Summarize(result *types.ParseResult) (types.Summary, error) {
	if result == nil {
		return types.Summary{}, errors.New("summary of nil result")
	}
	if result.FileInfo.Filename == "" {
		return types.Summary{}, errors.New("summary: file_info.filename is missing")
	}

	data := map[string]any(result.Content)
	if nested, ok := data[types.KeyParsedData]; ok {
		m, err := asMap(nested)
		if err != nil {
			return types.Summary{}, fmt.Errorf("summary: parsed_data: %w", err)
		}
		data = m
	}

	s := types.Summary{
		Filename:      result.FileInfo.Filename,
		FileSizeBytes: result.FileInfo.FileSize,
	}

	if v, ok := data[types.KeyText]; ok && v != nil {
		text, ok := v.(string)
		if !ok {
			return types.Summary{}, fmt.Errorf("summary: text is %T, want string", v)
		}
		s.TextLength = utf8.RuneCountInString(text)
	}

	var err error
	if s.PageCount, err = seqLen(data[types.KeyPages]); err != nil {
		return types.Summary{}, fmt.Errorf("summary: pages: %w", err)
	}
	if s.TableCount, err = seqLen(data[types.KeyTables]); err != nil {
		return types.Summary{}, fmt.Errorf("summary: tables: %w", err)
	}

	meta, err := asMap(data[types.KeyMetadata])
	if err != nil {
		return types.Summary{}, fmt.Errorf("summary: metadata: %w", err)
	}
	s.HasMetadata = len(meta) > 0

	values := make([]string, len(summaryMetadataFields))
	for i, field := range summaryMetadataFields {
		values[i] = metaString(meta, field)
	}
	s.Title, s.Author, s.Creator, s.CreationDate = values[0], values[1], values[2], values[3]

	return s, nil
}

// seqLen returns the length of a slice or array value; nil counts as 0.
func seqLen(v any) (int, error) {
	if v == nil {
		return 0, nil
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		return rv.Len(), nil
	}
	return 0, fmt.Errorf("%T is not a sequence", v)
}

// asMap converts a mapping with string keys to map[string]any; nil yields nil.
func asMap(v any) (map[string]any, error) {
	switch m := v.(type) {
	case nil:
		return nil, nil
	case map[string]any:
		return m, nil
	case types.Content:
		return m, nil
	case map[string]string:
		out := make(map[string]any, len(m))
		for k, val := range m {
			out[k] = val
		}
		return out, nil
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Map || rv.Type().Key().Kind() != reflect.String {
		return nil, fmt.Errorf("%T is not a mapping", v)
	}
	out := make(map[string]any, rv.Len())
	iter := rv.MapRange()
	for iter.Next() {
		out[iter.Key().String()] = iter.Value().Interface()
	}
	return out, nil
}

func metaString(meta map[string]any, field string) string {
	v, ok := meta[field]
	if !ok || v == nil {
		return types.NotAvailable
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}
