// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package ingest extracts the plain text of a source document before any
// pipeline stage runs. Extraction is sequential, page by page, and reports
// progress at a fixed page interval.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/pdiddy/atlas/internal/progress"
	"github.com/pdiddy/atlas/pkg/types"
)

// DefaultProgressEvery is the page interval between progress events.
const DefaultProgressEvery = 5

var (
	// ErrUnsupported is returned for file extensions no extractor handles.
	ErrUnsupported = errors.New("unsupported document type")

	// ErrNoText is returned when extraction yields no text.
	ErrNoText = errors.New("no text extracted")
)

// IngestionError reports a document whose text could not be extracted.
type IngestionError struct {
	Path string
	Err  error
}

func (e *IngestionError) Error() string {
	return fmt.Sprintf("ingesting %s: %v", e.Path, e.Err)
}

func (e *IngestionError) Unwrap() error { return e.Err }

// PageFunc is called after each extracted page.
type PageFunc func(page, total int)

// Extraction is the output of an Extractor.
type Extraction struct {
	Text  string
	Pages int
}

// Extractor turns a file into plain text.
type Extractor interface {
	Extract(ctx context.Context, path string, onPage PageFunc) (Extraction, error)
}

// Loader picks an extractor by file extension.
type Loader struct {
	extractors map[string]Extractor
	every      int
}

// NewLoader returns a Loader with the PDF and text extractors registered.
func NewLoader(cfg types.IngestConfig) *Loader {
	every := cfg.ProgressEvery
	if every <= 0 {
		every = DefaultProgressEvery
	}
	l := &Loader{extractors: make(map[string]Extractor), every: every}
	l.Register(PDF{}, ".pdf")
	l.Register(Text{}, ".txt", ".md", ".markdown")
	return l
}

// Register maps extensions (with leading dot) to e, replacing any previous
// mapping.
func (l *Loader) Register(e Extractor, exts ...string) {
	for _, ext := range exts {
		l.extractors[strings.ToLower(ext)] = e
	}
}

// Load extracts path and returns the document. Every failure is an
// *IngestionError.
func (l *Loader) Load(ctx context.Context, path string, reporter progress.Reporter) (types.Document, error) {
	if reporter == nil {
		reporter = progress.Nop{}
	}
	report := func(msg string) {
		reporter.Report(progress.Event{Kind: progress.KindIngest, Message: msg})
	}

	ext := strings.ToLower(filepath.Ext(path))
	ex, ok := l.extractors[ext]
	if !ok {
		return types.Document{}, &IngestionError{Path: path, Err: fmt.Errorf("%w %q", ErrUnsupported, ext)}
	}
	if _, err := os.Stat(path); err != nil {
		return types.Document{}, &IngestionError{Path: path, Err: err}
	}

	report("Extracting text...")
	out, err := ex.Extract(ctx, path, func(page, total int) {
		if page%l.every == 0 {
			report(fmt.Sprintf("Scanning page %d/%d...", page, total))
		}
	})
	if err != nil {
		return types.Document{}, &IngestionError{Path: path, Err: err}
	}
	if strings.TrimSpace(out.Text) == "" {
		return types.Document{}, &IngestionError{Path: path, Err: ErrNoText}
	}

	report(fmt.Sprintf("Text extracted: %d chars", utf8.RuneCountInString(out.Text)))
	return types.Document{
		Path:  path,
		Name:  filepath.Base(path),
		Text:  out.Text,
		Pages: out.Pages,
	}, nil
}

// Load extracts path with the default extractors.
func Load(ctx context.Context, path string, cfg types.IngestConfig, reporter progress.Reporter) (types.Document, error) {
	return NewLoader(cfg).Load(ctx, path, reporter)
}
