// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package ingest

import (
	"context"
	"errors"
	"os"
	"unicode/utf8"
)

// ErrNotUTF8 is returned for text files that are not valid UTF-8.
var ErrNotUTF8 = errors.New("file is not valid UTF-8")

// Text reads plain-text and Markdown files as a single page.
type Text struct{}

// Extract implements Extractor.
func (Text) Extract(ctx context.Context, path string, onPage PageFunc) (Extraction, error) {
	if err := ctx.Err(); err != nil {
		return Extraction{}, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Extraction{}, err
	}
	if !utf8.Valid(data) {
		return Extraction{}, ErrNotUTF8
	}
	if onPage != nil {
		onPage(1, 1)
	}
	return Extraction{Text: string(data), Pages: 1}, nil
}
