// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package ingest

import (
	"context"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

// PDF extracts text page by page with github.com/ledongthuc/pdf. Pages are
// joined by newlines; pages without content contribute an empty line.
type PDF struct{}

// Extract implements Extractor.
func (PDF) Extract(ctx context.Context, path string, onPage PageFunc) (out Extraction, err error) {
	// The parser panics on some malformed files.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("reading PDF: %v", r)
		}
	}()

	f, r, err := pdf.Open(path)
	if err != nil {
		return Extraction{}, fmt.Errorf("opening PDF: %w", err)
	}
	defer f.Close()

	total := r.NumPage()
	var b strings.Builder
	for i := 1; i <= total; i++ {
		if err := ctx.Err(); err != nil {
			return Extraction{}, err
		}
		p := r.Page(i)
		if !p.V.IsNull() {
			text, err := p.GetPlainText(nil)
			if err != nil {
				return Extraction{}, fmt.Errorf("page %d: %w", i, err)
			}
			b.WriteString(text)
		}
		b.WriteString("\n")
		if onPage != nil {
			onPage(i, total)
		}
	}
	return Extraction{Text: b.String(), Pages: total}, nil
}
