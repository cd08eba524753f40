// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pipeline

import (
	"fmt"
	"maps"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/pdiddy/atlas/internal/stage"
	"github.com/pdiddy/atlas/pkg/types"
)

// Merge maps the done stage values of run onto a FinalRecord by the field
// each stage feeds. Parse failures contribute nothing. Title, author and
// year come from the document.
func Merge(stages []stage.Stage, run *types.PipelineRun, doc types.Document) types.FinalRecord {
	rec := types.FinalRecord{
		Title:  doc.Title,
		Author: doc.Author,
		Year:   doc.Year,
	}
	if rec.Title == "" && doc.Name != "" {
		rec.Title = strings.TrimSuffix(doc.Name, filepath.Ext(doc.Name))
	}

	for _, s := range stages {
		res, ok := run.Result(s.ID)
		if !ok || res.State != types.StateDone || res.Value.IsFailure() {
			continue
		}
		v := res.Value
		switch s.Feeds {
		case stage.FieldStructure:
			rec.Structure = structureOf(v.Payload())
		case stage.FieldDiagram:
			rec.Diagram = v.Text
		case stage.FieldDefinitions:
			rec.Definitions = definitionsOf(v.Payload())
		case stage.FieldRelations:
			rec.Relations = relationsOf(v.Payload())
		case stage.FieldQuotes:
			rec.Quotes = stringsOf(v.Payload(), "quotes")
		case stage.FieldNotes:
			rec.Notes = stringsOf(v.Payload(), "notes")
		case stage.FieldConnections:
			rec.Connections = connectionsOf(v.Payload())
		}
	}
	return rec
}

// Synthesize decodes a synthesis stage result into a record, back-filling
// empty fields from merged. Document metadata supplied by the user wins over
// inferred values. A parse failure yields merged with Raw set.
func Synthesize(res *types.StageResult, merged types.FinalRecord, doc types.Document) types.FinalRecord {
	if res.Value.Kind != types.KindObject {
		merged.Raw = res.RawText
		return merged
	}
	obj := res.Value.Object

	rec := types.FinalRecord{
		Title:       scalar(obj, "title"),
		Author:      scalar(obj, "author"),
		Year:        scalar(obj, "year"),
		Publisher:   scalar(obj, "pub", "publisher"),
		Description: scalar(obj, "desc", "description"),
		Structure:   structureOf(obj["structure"]),
		Diagram:     scalar(obj, "diagram"),
		Definitions: definitionsOf(obj["definitions"]),
		Relations:   relationsOf(obj["relations"]),
		Quotes:      stringsOf(obj["quotes"], "quotes"),
		Notes:       stringsOf(obj["notes"], "notes"),
		Connections: connectionsOf(obj["connections"]),
	}

	if doc.Title != "" {
		rec.Title = doc.Title
	}
	if doc.Author != "" {
		rec.Author = doc.Author
	}
	if doc.Year != "" {
		rec.Year = doc.Year
	}
	backfill(&rec, merged)
	return rec
}

func backfill(rec *types.FinalRecord, from types.FinalRecord) {
	fillString(&rec.Title, from.Title)
	fillString(&rec.Author, from.Author)
	fillString(&rec.Year, from.Year)
	fillString(&rec.Publisher, from.Publisher)
	fillString(&rec.Description, from.Description)
	fillString(&rec.Diagram, from.Diagram)
	if len(rec.Structure) == 0 {
		rec.Structure = from.Structure
	}
	if len(rec.Definitions) == 0 {
		rec.Definitions = from.Definitions
	}
	if len(rec.Relations) == 0 {
		rec.Relations = from.Relations
	}
	if len(rec.Quotes) == 0 {
		rec.Quotes = from.Quotes
	}
	if len(rec.Notes) == 0 {
		rec.Notes = from.Notes
	}
	if len(rec.Connections.RelatedAuthors) == 0 {
		rec.Connections.RelatedAuthors = from.Connections.RelatedAuthors
	}
	if len(rec.Connections.ThematicClusters) == 0 {
		rec.Connections.ThematicClusters = from.Connections.ThematicClusters
	}
}

func fillString(dst *string, v string) {
	if *dst == "" {
		*dst = v
	}
}

// scalar returns the first present key as a string. Numbers are formatted
// without a fractional part when integral.
func scalar(obj map[string]any, keys ...string) string {
	for _, k := range keys {
		if s := toString(obj[k]); s != "" {
			return s
		}
	}
	return ""
}

func toString(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	case nil:
		return ""
	}
	return fmt.Sprint(v)
}

// structureOf accepts a list of strings, an object holding one under
// chapters, sections or structure, a list of {title} objects, or plain text
// with one entry per line.
func structureOf(v any) []string {
	switch t := v.(type) {
	case []string:
		return nonEmpty(t)
	case []map[string]any:
		return structureOf(asAny(t))
	case []any:
		out := make([]string, 0, len(t))
		for _, item := range t {
			if m, ok := item.(map[string]any); ok {
				if s := scalar(m, "title", "name", "chapter"); s != "" {
					out = append(out, s)
				}
				continue
			}
			if s := toString(item); s != "" {
				out = append(out, s)
			}
		}
		return out
	case map[string]any:
		for _, k := range []string{"chapters", "sections", "structure"} {
			if inner, ok := t[k]; ok {
				return structureOf(inner)
			}
		}
	case string:
		return nonEmpty(strings.Split(t, "\n"))
	}
	return nil
}

// stringsOf accepts a list or an object holding a list under key.
func stringsOf(v any, key string) []string {
	switch t := v.(type) {
	case []string:
		return nonEmpty(t)
	case []any:
		out := make([]string, 0, len(t))
		for _, item := range t {
			if s := toString(item); s != "" {
				out = append(out, s)
			}
		}
		return out
	case map[string]any:
		if inner, ok := t[key]; ok {
			return stringsOf(inner, key)
		}
	case string:
		if s := strings.TrimSpace(t); s != "" {
			return []string{s}
		}
	}
	return nil
}

// definitionsOf accepts a list of {term, def} objects or a term-to-definition
// object.
func definitionsOf(v any) []types.Definition {
	switch t := v.(type) {
	case []map[string]any:
		return definitionsOf(asAny(t))
	case []any:
		var out []types.Definition
		for _, item := range t {
			m, ok := item.(map[string]any)
			if !ok {
				continue
			}
			d := types.Definition{
				Term: scalar(m, "term", "concept", "name"),
				Def:  scalar(m, "def", "definition", "description"),
			}
			if d.Term != "" {
				out = append(out, d)
			}
		}
		return out
	case map[string]any:
		if inner, ok := t["definitions"]; ok {
			return definitionsOf(inner)
		}
		keys := slices.Sorted(maps.Keys(t))
		out := make([]types.Definition, 0, len(keys))
		for _, k := range keys {
			out = append(out, types.Definition{Term: k, Def: toString(t[k])})
		}
		return out
	}
	return nil
}

// relationsOf accepts a list of {from, to, relation} objects.
func relationsOf(v any) []types.Relation {
	switch t := v.(type) {
	case []map[string]any:
		return relationsOf(asAny(t))
	case []any:
		var out []types.Relation
		for _, item := range t {
			m, ok := item.(map[string]any)
			if !ok {
				continue
			}
			r := types.Relation{
				From:  scalar(m, "from", "source"),
				To:    scalar(m, "to", "target"),
				Label: scalar(m, "relation", "label", "type"),
			}
			if r.From != "" && r.To != "" {
				out = append(out, r)
			}
		}
		return out
	case map[string]any:
		if inner, ok := t["relations"]; ok {
			return relationsOf(inner)
		}
	}
	return nil
}

func connectionsOf(v any) types.Connections {
	m, ok := v.(map[string]any)
	if !ok {
		return types.Connections{}
	}
	return types.Connections{
		RelatedAuthors:   stringsOf(m["related_authors"], "related_authors"),
		ThematicClusters: stringsOf(m["thematic_clusters"], "thematic_clusters"),
	}
}

func nonEmpty(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func asAny(objs []map[string]any) []any {
	out := make([]any, len(objs))
	for i := range objs {
		out[i] = objs[i]
	}
	return out
}
