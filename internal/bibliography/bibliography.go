// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package bibliography loads the static reading list used as chat context.
package bibliography

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"unicode"

	"go.yaml.in/yaml/v3"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

//go:embed master.yaml
var master []byte

// Priority ranks how central an entry is to the reading list.
type Priority string

const (
	PriorityEssential Priority = "ESSENTIAL"
	PriorityHigh      Priority = "HIGH"
	PriorityMedium    Priority = "MEDIUM"
	PriorityLow       Priority = "LOW"
)

// Rank orders priorities, essential first. Unknown priorities sort last.
func (p Priority) Rank() int {
	switch p {
	case PriorityEssential:
		return 0
	case PriorityHigh:
		return 1
	case PriorityMedium:
		return 2
	case PriorityLow:
		return 3
	}
	return 4
}

// Entry is one bibliography item.
type Entry struct {
	ID       string   `json:"id" yaml:"id"`
	Subject  string   `json:"subject" yaml:"subject"`
	Author   string   `json:"author" yaml:"author"`
	Year     string   `json:"year" yaml:"year"`
	Title    string   `json:"title" yaml:"title"`
	Pub      string   `json:"pub" yaml:"pub"`
	Category string   `json:"cat" yaml:"cat"`
	Priority Priority `json:"prio" yaml:"prio"`
	Desc     string   `json:"desc" yaml:"desc"`
}

// ErrFormat is returned for files that are neither YAML nor JSON.
var ErrFormat = errors.New("unsupported bibliography format")

// Bibliography is an immutable, ordered set of entries.
type Bibliography struct {
	entries []Entry
	index   map[string]int
	folded  []string
}

// Default returns the built-in reading list.
func Default() (*Bibliography, error) {
	return Parse(master, ".yaml")
}

// Load reads a YAML (.yaml, .yml) or JSON (.json) list of entries.
func Load(path string) (*Bibliography, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading bibliography: %w", err)
	}
	b, err := Parse(data, filepath.Ext(path))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return b, nil
}

// Parse decodes data in the format named by ext and checks that every entry
// has a unique ID.
func Parse(data []byte, ext string) (*Bibliography, error) {
	var entries []Entry
	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &entries); err != nil {
			return nil, fmt.Errorf("parsing YAML: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, &entries); err != nil {
			return nil, fmt.Errorf("parsing JSON: %w", err)
		}
	default:
		return nil, fmt.Errorf("%q: %w", ext, ErrFormat)
	}

	b := &Bibliography{
		entries: entries,
		index:   make(map[string]int, len(entries)),
		folded:  make([]string, len(entries)),
	}
	for i, e := range entries {
		if e.ID == "" {
			return nil, fmt.Errorf("entry %d has no id", i+1)
		}
		if _, dup := b.index[e.ID]; dup {
			return nil, fmt.Errorf("duplicate entry id %q", e.ID)
		}
		b.index[e.ID] = i
		b.folded[i] = fold(strings.Join([]string{e.ID, e.Subject, e.Author, e.Year, e.Title, e.Pub, e.Category, e.Desc}, " "))
	}
	return b, nil
}

// Len returns the number of entries.
func (b *Bibliography) Len() int { return len(b.entries) }

// Entries returns a copy of all entries in file order.
func (b *Bibliography) Entries() []Entry {
	return slices.Clone(b.entries)
}

// Get returns the entry with id.
func (b *Bibliography) Get(id string) (Entry, bool) {
	i, ok := b.index[id]
	if !ok {
		return Entry{}, false
	}
	return b.entries[i], true
}

// Filter returns the entries matching every whitespace-separated term of
// query, ignoring case and diacritics, ordered by priority and then file
// order. An empty query matches everything.
func (b *Bibliography) Filter(query string) []Entry {
	terms := strings.Fields(fold(query))
	var out []Entry
	for i, e := range b.entries {
		if matchesAll(b.folded[i], terms) {
			out = append(out, e)
		}
	}
	slices.SortStableFunc(out, func(a, c Entry) int {
		return a.Priority.Rank() - c.Priority.Rank()
	})
	return out
}

// Rank returns up to limit entries matching at least one term of query,
// most matched terms first, then by priority. Terms shorter than three
// letters are ignored. A limit of zero or less returns every match.
func (b *Bibliography) Rank(query string, limit int) []Entry {
	var terms []string
	for _, t := range strings.FieldsFunc(fold(query), isSeparator) {
		if len([]rune(t)) >= 3 {
			terms = append(terms, t)
		}
	}

	type scored struct {
		entry Entry
		hits  int
	}
	var matches []scored
	for i, e := range b.entries {
		hits := 0
		for _, t := range terms {
			if strings.Contains(b.folded[i], t) {
				hits++
			}
		}
		if hits > 0 {
			matches = append(matches, scored{e, hits})
		}
	}
	slices.SortStableFunc(matches, func(a, c scored) int {
		if a.hits != c.hits {
			return c.hits - a.hits
		}
		return a.entry.Priority.Rank() - c.entry.Priority.Rank()
	})
	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}
	out := make([]Entry, len(matches))
	for i, m := range matches {
		out[i] = m.entry
	}
	return out
}

func isSeparator(r rune) bool {
	return !unicode.IsLetter(r) && !unicode.IsDigit(r)
}

func matchesAll(haystack string, terms []string) bool {
	for _, t := range terms {
		if !strings.Contains(haystack, t) {
			return false
		}
	}
	return true
}

// Format renders entries as the context block handed to the chat model, one
// line per entry.
func Format(entries []Entry) string {
	var b strings.Builder
	for _, e := range entries {
		fmt.Fprintf(&b, "[%s] %s (%s). %s.", e.ID, e.Author, e.Year, e.Title)
		if e.Pub != "" && e.Pub != "-" {
			fmt.Fprintf(&b, " %s.", e.Pub)
		}
		fmt.Fprintf(&b, " [%s, %s]", e.Category, e.Priority)
		if e.Desc != "" {
			fmt.Fprintf(&b, " %s", e.Desc)
		}
		b.WriteByte('\n')
	}
	return b.String()
}

// fold lowercases s and strips combining marks, so "Répétition" matches
// "repetition".
func fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return strings.ToLower(out)
}
