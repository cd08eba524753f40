// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/pdiddy/atlas/pkg/types"
)

func TestStructureOf(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want []string
	}{
		{"string list", []any{"1. Forma", " ", "2. Informazione"}, []string{"1. Forma", "2. Informazione"}},
		{"chapters object", map[string]any{"chapters": []any{"I", "II"}}, []string{"I", "II"}},
		{"sections object", map[string]any{"sections": []string{"A"}}, []string{"A"}},
		{"title objects", []any{map[string]any{"title": "Uno"}, map[string]any{"name": "Due"}, map[string]any{}}, []string{"Uno", "Due"}},
		{"text", "Capitolo 1\n\nCapitolo 2\n", []string{"Capitolo 1", "Capitolo 2"}},
		{"numbers", []any{1.0, 2.0}, []string{"1", "2"}},
		{"unknown object", map[string]any{"x": 1}, nil},
		{"nil", nil, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, structureOf(tt.in))
		})
	}
}

func TestDefinitionsOf(t *testing.T) {
	assert.Equal(t,
		[]types.Definition{{Term: "Hyle", Def: "materia"}, {Term: "Morphe", Def: "forma"}},
		definitionsOf([]any{
			map[string]any{"term": "Hyle", "def": "materia"},
			map[string]any{"concept": "Morphe", "definition": "forma"},
			map[string]any{"def": "orphan"},
			"not an object",
		}))
	assert.Equal(t,
		[]types.Definition{{Term: "Allagmatica", Def: "teoria delle operazioni"}, {Term: "Transduzione", Def: "propagazione"}},
		definitionsOf(map[string]any{"Transduzione": "propagazione", "Allagmatica": "teoria delle operazioni"}),
		"map form is sorted by term")
	assert.Len(t, definitionsOf(map[string]any{"definitions": []any{map[string]any{"term": "a"}}}), 1)
}

func TestScalar(t *testing.T) {
	obj := map[string]any{"year": 1958.0, "publisher": "Aubier", "desc": "  testo  ", "flag": true}
	assert.Equal(t, "1958", scalar(obj, "year"))
	assert.Equal(t, "Aubier", scalar(obj, "pub", "publisher"))
	assert.Equal(t, "testo", scalar(obj, "desc"))
	assert.Equal(t, "true", scalar(obj, "flag"))
	assert.Equal(t, "", scalar(obj, "missing"))
}

func TestSynthesize_UserMetadataWins(t *testing.T) {
	res := &types.StageResult{
		StageID: "archivist",
		State:   types.StateDone,
		Value: types.ObjectValue(map[string]any{
			"title":       "Titolo inferito",
			"author":      "Autore inferito",
			"description": "Sintesi.",
			"quotes":      map[string]any{"quotes": []any{"a"}},
			"definitions": map[string]any{"Hyle": "materia"},
			"connections": map[string]any{"related_authors": []any{"Bergson"}},
		}),
	}
	merged := types.FinalRecord{
		Structure:   []string{"1"},
		Quotes:      []string{"x", "y"},
		Connections: types.Connections{ThematicClusters: []string{"Tecnica"}},
	}
	rec := Synthesize(res, merged, types.Document{Title: "Titolo dato"})

	assert.Equal(t, "Titolo dato", rec.Title)
	assert.Equal(t, "Autore inferito", rec.Author)
	assert.Equal(t, "Sintesi.", rec.Description)
	assert.Equal(t, []string{"1"}, rec.Structure)
	assert.Equal(t, []string{"a"}, rec.Quotes)
	assert.Equal(t, []types.Definition{{Term: "Hyle", Def: "materia"}}, rec.Definitions)
	assert.Equal(t, []string{"Bergson"}, rec.Connections.RelatedAuthors)
	assert.Equal(t, []string{"Tecnica"}, rec.Connections.ThematicClusters)
}
