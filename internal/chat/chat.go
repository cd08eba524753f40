// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package chat answers research questions through the model client, using
// the bibliography and stored dossiers as context.
package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/pdiddy/atlas/internal/bibliography"
	"github.com/pdiddy/atlas/internal/dossier"
	"github.com/pdiddy/atlas/internal/model"
)

// Mode selects the assistant persona.
type Mode string

const (
	ModeResearch     Mode = "research"
	ModeBibliography Mode = "bibliography"
)

const (
	// DefaultModel is the chat model when none is configured.
	DefaultModel = "deepseek/deepseek-v3.2"

	// DefaultMaxEntries caps the bibliography entries sent as context.
	DefaultMaxEntries = 40

	maxDossiers    = 5
	maxSearchTerms = 5
)

const researchPrompt = "Sei un assistente di ricerca esperto in filosofia francese (Simondon, Deleuze, Guattari). " +
	"Rispondi in italiano accademico, preciso e strutturato."

const bibliographyPrompt = "Sei un bibliotecario di ricerca esperto in filosofia francese e filosofia della tecnica. " +
	"Consiglia letture scegliendo solo tra i testi della bibliografia fornita, citandoli con il loro codice tra parentesi quadre, " +
	"e spiega brevemente perché ciascuno è pertinente. Rispondi in italiano."

var (
	// ErrEmptyMessage is returned when a request carries no message.
	ErrEmptyMessage = errors.New("message is required")

	// ErrUnknownMode is returned for modes other than research and bibliography.
	ErrUnknownMode = errors.New("unknown chat mode")
)

// Searcher finds stored dossiers relevant to a query.
type Searcher interface {
	Search(ctx context.Context, query string, limit int) ([]dossier.Summary, error)
}

// Request is one user question.
type Request struct {
	Message string
	Mode    Mode

	// SystemOverride replaces the mode prompt when set.
	SystemOverride string

	// Model overrides the assistant's model for this request.
	Model string
}

// Response is the model reply and the context it was given.
type Response struct {
	Reply    string   `json:"reply"`
	Model    string   `json:"model"`
	Entries  []string `json:"entries,omitempty"`
	Dossiers []string `json:"dossiers,omitempty"`
}

// Assistant composes context and sends chat requests.
type Assistant struct {
	completer  model.Completer
	bib        *bibliography.Bibliography
	dossiers   Searcher
	model      string
	maxEntries int
	logger     *slog.Logger
}

// Option configures an Assistant.
type Option func(*Assistant)

// WithBibliography sets the reading list used as context.
func WithBibliography(b *bibliography.Bibliography) Option {
	return func(a *Assistant) { a.bib = b }
}

// WithDossiers sets the dossier source used as context.
func WithDossiers(s Searcher) Option {
	return func(a *Assistant) { a.dossiers = s }
}

// WithModel sets the default chat model.
func WithModel(m string) Option {
	return func(a *Assistant) {
		if m != "" {
			a.model = m
		}
	}
}

// WithMaxEntries caps the bibliography entries per request.
func WithMaxEntries(n int) Option {
	return func(a *Assistant) {
		if n > 0 {
			a.maxEntries = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(a *Assistant) { a.logger = l }
}

// New returns an Assistant sending through c.
func New(c model.Completer, opts ...Option) *Assistant {
	a := &Assistant{
		completer:  c,
		model:      DefaultModel,
		maxEntries: DefaultMaxEntries,
		logger:     slog.New(slog.DiscardHandler),
	}
	for _, o := range opts {
		o(a)
	}
	return a
}

// Ask sends req and returns the reply. A dossier lookup failure is logged
// and the request proceeds without dossier context.
func (a *Assistant) Ask(ctx context.Context, req Request) (*Response, error) {
	msg := strings.TrimSpace(req.Message)
	if msg == "" {
		return nil, ErrEmptyMessage
	}

	mode := req.Mode
	if mode == "" {
		mode = ModeResearch
	}
	system, err := systemPrompt(mode)
	if err != nil {
		return nil, err
	}
	if req.SystemOverride != "" {
		system = req.SystemOverride
	}

	resp := &Response{Model: a.model}
	if req.Model != "" {
		resp.Model = req.Model
	}

	var sections []string
	if entries := a.entries(mode, msg); len(entries) > 0 {
		for _, e := range entries {
			resp.Entries = append(resp.Entries, e.ID)
		}
		sections = append(sections, "BIBLIOGRAFIA:\n"+bibliography.Format(entries))
	}
	if sums := a.relatedDossiers(ctx, msg); len(sums) > 0 {
		for _, s := range sums {
			resp.Dossiers = append(resp.Dossiers, s.ID)
		}
		sections = append(sections, "DOSSIER ANALIZZATI:\n"+formatDossiers(sums))
	}

	user := msg
	if len(sections) > 0 {
		user = msg + "\n\n" + strings.Join(sections, "\n")
	}

	a.logger.Debug("chat request", "mode", mode, "model", resp.Model,
		"entries", len(resp.Entries), "dossiers", len(resp.Dossiers))

	reply, err := a.completer.Complete(ctx, model.Request{Model: resp.Model, System: system, User: user})
	if err != nil {
		return nil, fmt.Errorf("chat: %w", err)
	}
	resp.Reply = reply
	return resp, nil
}

func systemPrompt(m Mode) (string, error) {
	switch m {
	case ModeResearch:
		return researchPrompt, nil
	case ModeBibliography:
		return bibliographyPrompt, nil
	}
	return "", fmt.Errorf("%q: %w", m, ErrUnknownMode)
}

// entries picks the bibliography context. Bibliography mode falls back to
// the highest-priority entries when nothing matches the message.
func (a *Assistant) entries(mode Mode, msg string) []bibliography.Entry {
	if a.bib == nil {
		return nil
	}
	entries := a.bib.Rank(msg, a.maxEntries)
	if len(entries) == 0 && mode == ModeBibliography {
		entries = a.bib.Filter("")
		if len(entries) > a.maxEntries {
			entries = entries[:a.maxEntries]
		}
	}
	return entries
}

func (a *Assistant) relatedDossiers(ctx context.Context, msg string) []dossier.Summary {
	if a.dossiers == nil {
		return nil
	}
	var (
		out  []dossier.Summary
		seen = make(map[string]bool)
	)
	for _, term := range searchTerms(msg) {
		sums, err := a.dossiers.Search(ctx, term, maxDossiers)
		if err != nil {
			a.logger.Warn("dossier search failed", "term", term, "error", err)
			return out
		}
		for _, s := range sums {
			if !seen[s.ID] && len(out) < maxDossiers {
				seen[s.ID] = true
				out = append(out, s)
			}
		}
	}
	return out
}

// searchTerms returns the distinct words of at least four letters in msg,
// longest first.
func searchTerms(msg string) []string {
	var (
		terms []string
		seen  = make(map[string]bool)
	)
	for _, w := range strings.FieldsFunc(msg, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		key := strings.ToLower(w)
		if utf8.RuneCountInString(w) < 4 || seen[key] {
			continue
		}
		seen[key] = true
		terms = append(terms, w)
	}
	slices.SortStableFunc(terms, func(a, b string) int {
		return utf8.RuneCountInString(b) - utf8.RuneCountInString(a)
	})
	if len(terms) > maxSearchTerms {
		terms = terms[:maxSearchTerms]
	}
	return terms
}

func formatDossiers(sums []dossier.Summary) string {
	var b strings.Builder
	for _, s := range sums {
		id := s.ID
		if len(id) > 8 {
			id = id[:8]
		}
		fmt.Fprintf(&b, "[%s] %s", id, s.Title)
		if s.Author != "" {
			fmt.Fprintf(&b, ", %s", s.Author)
		}
		if s.Year != "" {
			fmt.Fprintf(&b, " (%s)", s.Year)
		}
		if s.Description != "" {
			fmt.Fprintf(&b, ": %s", s.Description)
		}
		b.WriteByte('\n')
	}
	return b.String()
}
