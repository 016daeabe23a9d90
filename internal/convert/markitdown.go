// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package convert

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/pdiddy/paper-intake/internal/container"
	"github.com/pdiddy/paper-intake/pkg/types"
)

const imageMarkitdown = "markitdown:latest"

// markitdownTimeout bounds one conversion; large scanned PDFs are slow.
var markitdownTimeout = 5 * time.Minute

// MarkitdownExtractor converts PDFs by piping them through the markitdown
// container image. It depends on a container.Runtime (docker or podman)
// injected at construction time.
type MarkitdownExtractor struct {
	runtime container.Runtime
}

// NewMarkitdownExtractor verifies that the markitdown image exists locally
// before returning.
func NewMarkitdownExtractor(rt container.Runtime) (*MarkitdownExtractor, error) {
	if err := rt.ImageExists(imageMarkitdown); err != nil {
		return nil, fmt.Errorf("markitdown image not available in %s: %w", rt.Name(), err)
	}
	return &MarkitdownExtractor{runtime: rt}, nil
}

// Extract pipes data through markitdown. A container failure on a valid
// header means the tool could not read the document, which degrades the
// extraction like any other unreadable PDF.
func (m *MarkitdownExtractor) Extract(ctx context.Context, data []byte) (types.Extraction, error) {
	if err := CheckPDF(data); err != nil {
		return types.Extraction{}, err
	}

	var out bytes.Buffer
	err := m.runtime.Run(ctx, container.RunSpec{
		Image:   imageMarkitdown,
		Stdin:   bytes.NewReader(data),
		Stdout:  &out,
		Network: "none",
		Timeout: markitdownTimeout,
	})
	if err != nil {
		return types.DegradedExtraction(fmt.Sprintf("markitdown failed: %v", err), 0), nil
	}
	return finish(out.String(), 0), nil
}
