// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package convert

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/paper-intake/internal/container"
	"github.com/pdiddy/paper-intake/pkg/types"
)

// buildPDF assembles a one-page PDF whose content stream is content,
// computing the xref offsets so the parser accepts it.
func buildPDF(content string) []byte {
	objs := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		"<< /Type /Pages /Kids [3 0 R] /Count 1 >>",
		"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Contents 4 0 R /Resources << /Font << /F1 5 0 R >> >> >>",
		fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(content), content),
		"<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding >>",
	}

	var b bytes.Buffer
	b.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objs))
	for i, o := range objs {
		offsets[i] = b.Len()
		fmt.Fprintf(&b, "%d 0 obj\n%s\nendobj\n", i+1, o)
	}
	xref := b.Len()
	fmt.Fprintf(&b, "xref\n0 %d\n0000000000 65535 f \n", len(objs)+1)
	for _, off := range offsets {
		fmt.Fprintf(&b, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&b, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objs)+1, xref)
	return b.Bytes()
}

func TestCheckPDF(t *testing.T) {
	tests := []struct {
		name    string
		data    []byte
		wantErr bool
	}{
		{"pdf header", []byte("%PDF-1.7\n..."), false},
		{"leading whitespace", []byte("\n  %PDF-1.4"), false},
		{"empty", nil, true},
		{"whitespace only", []byte(" \n\t"), true},
		{"html error page", []byte("<!DOCTYPE html><html>Not Found</html>"), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckPDF(tt.data)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrFormat)
				var fe *FormatError
				assert.True(t, errors.As(err, &fe))
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestNativeExtractText(t *testing.T) {
	data := buildPDF("BT /F1 24 Tf 72 720 Td (Hello PDF) Tj ET")
	ext, err := NativeExtractor{}.Extract(context.Background(), data)
	require.NoError(t, err)
	assert.False(t, ext.Degraded)
	assert.Contains(t, ext.Text, "Hello")
	assert.Equal(t, 1, ext.Pages)
}

func TestNativeExtractNoTextLayer(t *testing.T) {
	data := buildPDF("0 0 m 100 100 l S")
	ext, err := NativeExtractor{}.Extract(context.Background(), data)
	require.NoError(t, err)
	assert.True(t, ext.Degraded)
	assert.Equal(t, types.DegradedMarker(noTextNote), ext.Text)
}

func TestNativeExtractCorruptDegrades(t *testing.T) {
	for _, payload := range []string{
		"%PDF-1.4\ngarbage without structure\n%%EOF",
		"%PDF-1.4\n",
	} {
		ext, err := NativeExtractor{}.Extract(context.Background(), []byte(payload))
		require.NoError(t, err)
		assert.True(t, ext.Degraded)
		assert.True(t, strings.HasPrefix(ext.Text, "[No extractable text: "))
	}
}

func TestNativeExtractRejectsNonPDF(t *testing.T) {
	_, err := NativeExtractor{}.Extract(context.Background(), []byte("<html>oops</html>"))
	assert.ErrorIs(t, err, ErrFormat)
}

func TestNormalize(t *testing.T) {
	got := normalize("  line one   \r\nline two\n\n\n\n\nline three  \n")
	assert.Equal(t, "line one\nline two\n\nline three", got)
}

// fakeRuntime implements container.Runtime for testing.
type fakeRuntime struct {
	imageErr error
	output   string
	runErr   error
	gotStdin []byte
	gotSpec  container.RunSpec
}

func (f *fakeRuntime) Name() string             { return "fake" }
func (f *fakeRuntime) Available() bool          { return true }
func (f *fakeRuntime) ImageExists(string) error { return f.imageErr }
func (f *fakeRuntime) Run(_ context.Context, spec container.RunSpec) error {
	f.gotSpec = spec
	if spec.Stdin != nil {
		f.gotStdin, _ = io.ReadAll(spec.Stdin)
	}
	if f.runErr != nil {
		return f.runErr
	}
	_, err := io.WriteString(spec.Stdout, f.output)
	return err
}

func TestMarkitdownExtractor(t *testing.T) {
	tests := []struct {
		name         string
		rt           *fakeRuntime
		data         []byte
		wantText     string
		wantDegraded bool
		wantErr      error
	}{
		{
			name:     "converted text",
			rt:       &fakeRuntime{output: "# Title\n\n\n\nBody text  \n"},
			data:     []byte("%PDF-1.4 body"),
			wantText: "# Title\n\nBody text",
		},
		{
			name:         "empty output degrades",
			rt:           &fakeRuntime{output: "  \n"},
			data:         []byte("%PDF-1.4 body"),
			wantDegraded: true,
		},
		{
			name:         "container failure degrades",
			rt:           &fakeRuntime{runErr: errors.New("exit 1")},
			data:         []byte("%PDF-1.4 body"),
			wantDegraded: true,
		},
		{
			name:    "non-PDF is a format error",
			rt:      &fakeRuntime{output: "never"},
			data:    []byte("<html/>"),
			wantErr: ErrFormat,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := NewMarkitdownExtractor(tt.rt)
			require.NoError(t, err)

			ext, err := m.Extract(context.Background(), tt.data)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, tt.rt.gotStdin, "container must not run")
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantDegraded, ext.Degraded)
			if tt.wantText != "" {
				assert.Equal(t, tt.wantText, ext.Text)
			}
			assert.Equal(t, tt.data, tt.rt.gotStdin)
			assert.Equal(t, "none", tt.rt.gotSpec.Network)
			assert.Equal(t, markitdownTimeout, tt.rt.gotSpec.Timeout)
		})
	}
}

func TestNewMarkitdownExtractorMissingImage(t *testing.T) {
	_, err := NewMarkitdownExtractor(&fakeRuntime{imageErr: errors.New("no such image")})
	assert.ErrorContains(t, err, "markitdown image not available")
}

func TestNewSelectsBackend(t *testing.T) {
	ex, err := New(types.ExtractionConfig{Backend: types.BackendNative}, nil)
	require.NoError(t, err)
	assert.IsType(t, NativeExtractor{}, ex)

	ex, err = New(types.ExtractionConfig{Backend: types.BackendMarkitdown}, &fakeRuntime{})
	require.NoError(t, err)
	assert.IsType(t, &MarkitdownExtractor{}, ex)

	_, err = New(types.ExtractionConfig{Backend: types.BackendMarkitdown}, nil)
	assert.Error(t, err)

	_, err = New(types.ExtractionConfig{Backend: "grobid"}, nil)
	assert.Error(t, err)
}
