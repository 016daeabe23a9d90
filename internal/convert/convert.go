// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package convert turns downloaded PDF bytes into plain text with pluggable
// backends. A PDF that parses but yields no text is not an error: it comes
// back as a degraded Extraction carrying a marker, so the paper can still
// be analyzed from its title and abstract.
package convert

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/pdiddy/paper-intake/internal/container"
	"github.com/pdiddy/paper-intake/pkg/types"
)

// ErrFormat is wrapped by every FormatError.
var ErrFormat = errors.New("payload is not a PDF")

// FormatError reports bytes that are not a PDF at all, such as an HTML
// error page served with status 200.
type FormatError struct {
	Reason string
}

func (e *FormatError) Error() string { return "not a PDF: " + e.Reason }

func (e *FormatError) Unwrap() error { return ErrFormat }

// Extractor converts PDF bytes to text. Different backends (native parser,
// markitdown container) implement this interface.
type Extractor interface {
	Extract(ctx context.Context, data []byte) (types.Extraction, error)
}

var pdfMagic = []byte("%PDF-")

// CheckPDF returns a *FormatError unless data starts with the PDF header,
// ignoring leading whitespace.
func CheckPDF(data []byte) error {
	trimmed := bytes.TrimLeft(data, " \t\r\n\f\x00")
	if len(trimmed) == 0 {
		return &FormatError{Reason: "empty payload"}
	}
	if !bytes.HasPrefix(trimmed, pdfMagic) {
		n := min(len(trimmed), 16)
		return &FormatError{Reason: fmt.Sprintf("unexpected header %q", trimmed[:n])}
	}
	return nil
}

// New selects the backend named in cfg. The markitdown backend needs a
// container runtime; rt may be nil for the native backend.
func New(cfg types.ExtractionConfig, rt container.Runtime) (Extractor, error) {
	switch cfg.Backend {
	case types.BackendNative, "":
		return NativeExtractor{}, nil
	case types.BackendMarkitdown:
		if rt == nil {
			return nil, errors.New("markitdown backend needs a container runtime")
		}
		return NewMarkitdownExtractor(rt)
	default:
		return nil, fmt.Errorf("unknown extraction backend %q", cfg.Backend)
	}
}

var (
	blankRuns  = regexp.MustCompile(`\n{3,}`)
	trailingWS = regexp.MustCompile(`[ \t]+\n`)
)

const noTextNote = "no text layer (scanned or image-only PDF)"

// normalize trims trailing spaces and collapses runs of blank lines.
func normalize(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = trailingWS.ReplaceAllString(s, "\n")
	s = blankRuns.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}

// finish normalizes text and degrades it when nothing is left.
func finish(text string, pages int) types.Extraction {
	text = normalize(text)
	if text == "" {
		return types.DegradedExtraction(noTextNote, pages)
	}
	return types.Extraction{Text: text, Pages: pages}
}
