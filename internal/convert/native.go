// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package convert

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/pdiddy/paper-intake/pkg/types"
)

// NativeExtractor reads the PDF text layer in-process, page by page.
type NativeExtractor struct{}

// Extract returns the text of every page. Encrypted, unparseable and
// text-less documents degrade instead of failing; the parser panics on
// some malformed inputs, and that is treated as unparseable too.
func (NativeExtractor) Extract(_ context.Context, data []byte) (ext types.Extraction, err error) {
	if err := CheckPDF(data); err != nil {
		return types.Extraction{}, err
	}

	defer func() {
		if r := recover(); r != nil {
			ext = types.DegradedExtraction(fmt.Sprintf("unparseable PDF (%v)", r), 0)
			err = nil
		}
	}()

	rd, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		if errors.Is(err, pdf.ErrInvalidPassword) {
			return types.DegradedExtraction("encrypted PDF", 0), nil
		}
		return types.DegradedExtraction(fmt.Sprintf("unparseable PDF (%v)", err), 0), nil
	}

	pages := rd.NumPage()
	var b strings.Builder
	for i := 1; i <= pages; i++ {
		p := rd.Page(i)
		if p.V.IsNull() {
			continue
		}
		text, err := p.GetPlainText(nil)
		if err != nil {
			continue
		}
		b.WriteString(text)
		b.WriteString("\n\n")
	}
	return finish(b.String(), pages), nil
}
