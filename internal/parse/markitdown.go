// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package parse

import (
	"bytes"
	"context"
	"fmt"
	"os"

	"github.com/pdiddy/odparse/internal/container"
	"github.com/pdiddy/odparse/pkg/types"
)

// DefaultMarkitdownImage is used when no image is configured.
const DefaultMarkitdownImage = "markitdown:latest"

// MarkitdownParser converts documents by piping them through the markitdown
// container image. The content it returns is Markdown-derived: text and
// markdown hold the conversion, tables are the pipe tables found in it.
type MarkitdownParser struct {
	runtime container.Runtime
	image   string
}

// NewMarkitdownParser creates a parser that uses rt to run image. It
// verifies that the image exists locally before returning.
func NewMarkitdownParser(ctx context.Context, rt container.Runtime, image string) (*MarkitdownParser, error) {
	if image == "" {
		image = DefaultMarkitdownImage
	}
	if err := rt.ImageExists(ctx, image); err != nil {
		return nil, fmt.Errorf("markitdown image not available in %s: %w", rt.Name(), err)
	}
	return &MarkitdownParser{runtime: rt, image: image}, nil
}

// Parse converts the document and derives content from the Markdown.
// markitdown has no deep-learning mode; opts is ignored.
func (m *MarkitdownParser) Parse(ctx context.Context, path string, _ Options) (types.Content, error) {
	md, err := m.ConvertToMarkdown(ctx, path)
	if err != nil {
		return nil, err
	}
	return markdownContent(md), nil
}

// ConvertToMarkdown reads the document at path, pipes it through the
// markitdown container, and returns the resulting Markdown text.
func (m *MarkitdownParser) ConvertToMarkdown(ctx context.Context, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	var out bytes.Buffer
	if err := m.runtime.Run(ctx, container.RunSpec{Image: m.image, Stdin: f, Stdout: &out}); err != nil {
		return "", fmt.Errorf("converting %s with markitdown: %w", path, err)
	}

	if out.Len() == 0 {
		return "", fmt.Errorf("markitdown produced empty output for %s", path)
	}

	return out.String(), nil
}
