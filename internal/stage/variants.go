// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package stage

import (
	"fmt"
	"sort"

	"github.com/pdiddy/atlas/pkg/types"
)

// Variant names.
const (
	VariantSquad = "squad"
	VariantAtlas = "atlas"
)

// Default models.
const (
	ModelMaverick = "meta-llama/llama-4-maverick"
	ModelDeepSeek = "deepseek/deepseek-v3.2"
	ModelMini     = "gpt-4o-mini"
)

const cartographerSquadPrompt = `ROLE: You are THE CARTOGRAPHER. Your job is to map the structure of this text.
TASK: Analyze the entire book text provided. Extract the Table of Contents or infer the logical structure (Chapters/Sections).
OUTPUT: A clean JSON object.
FORMAT: { "chapters": ["1. Title", "2. Title", "3. Title"] }
CONSTRAINT: Do not summarize. Just list the structure.`

const ontologistSquadPrompt = `ROLE: You are THE ONTOLOGIST. Your job is to extract the philosophical DNA.
TASK: Identify the 5 most critical PHILOSOPHICAL TERMS defined or used by the author.
OUTPUT: JSON Array of objects.
FORMAT: [ { "term": "Concept Name", "def": "Definizione accurata in ITALIANO." } ]
CONSTRAINT: Definitions MUST be in ITALIAN. Term names can be original language if specific (e.g., 'Hyle').`

const sniperPrompt = `ROLE: You are THE SNIPER. Your job is to find the "Kill Shots".
TASK: Extract exactly 3 VERBATIM quotes that summarize the core thesis of the text.
OUTPUT: JSON Array of strings.
FORMAT: [ "Quote 1", "Quote 2", "Quote 3" ]
CONSTRAINT: Trace exact quotes in original language (Italiano preferred if available in text).`

const weaverPrompt = `ROLE: You are THE WEAVER. You see the invisible threads of history.
TASK: Identify related philosophers (referenced or implied) and thematic clusters.
OUTPUT: JSON Object.
FORMAT: { "related_authors": ["Name1", "Name2"], "thematic_clusters": ["Tema1 (IT)", "Tema2 (IT)"] }
CONSTRAINT: Output themes in ITALIAN.`

const archivistPrompt = `ROLE: You are THE ARCHIVIST. You compile the final dossier.
TASK: Synthesize the analysis into a final JSON record for the research database.
INPUT DATA:
- Structure: {{.JSON "cartographer"}}
- Definitions: {{.JSON "ontologist"}}
- Quotes: {{.JSON "sniper"}}
- Connections: {{.JSON "weaver"}}

OUTPUT: A Valid JSON Object with keys: title, author, year, pub, desc, structure, definitions, quotes, connections.
IMPORTANT:
- 'desc' MUST be a 2-3 sentence summary in ITALIAN.
- Infer Author/Title/Year from context.`

const cartographerAtlasPrompt = `ROLE: You are THE CARTOGRAPHER. Your job is to draw the conceptual map of this text.
TASK: Build a Mermaid mindmap of the book: the root is the main thesis, branches are the chapters or sections, leaves are their key concepts.
OUTPUT: A single fenced code block tagged mermaid.
FORMAT:
` + "```mermaid" + `
mindmap
  root((Tesi))
    Capitolo 1
      Concetto
` + "```" + `
CONSTRAINT: Labels in ITALIAN. No prose outside the code block.`

const ontologistAtlasPrompt = `ROLE: You are THE ONTOLOGIST. Your job is to map how the author's concepts relate.
TASK: Identify the most important relations between the philosophical concepts of the text.
CONTEXT: The conceptual map drawn so far:
{{.JSON "cartographer"}}
OUTPUT: JSON Array of objects.
FORMAT: [ { "from": "Concetto A", "to": "Concetto B", "relation": "genera" } ]
CONSTRAINT: Relation labels MUST be short verbs in ITALIAN.`

const annotatorPrompt = `ROLE: You are THE ANNOTATOR. You write the margin notes a careful reader leaves.
TASK: Write 5 reading notes on the argument of the text, each one a single sentence, citing the page or section when possible.
OUTPUT: JSON Array of strings.
FORMAT: [ "Nota 1", "Nota 2" ]
CONSTRAINT: Notes in ITALIAN. Do not repeat the concept relations already found: {{.JSON "ontologist"}}`

func squadStages() []Stage {
	return []Stage{
		MustNew(Spec{
			ID: "cartographer", DisplayName: "The Cartographer", Model: ModelMaverick, Task: "Structure Mapping",
			Shape: types.ShapeObject, Feeds: FieldStructure, NeedsDocument: true, Prompt: cartographerSquadPrompt,
		}),
		MustNew(Spec{
			ID: "ontologist", DisplayName: "The Ontologist", Model: ModelDeepSeek, Task: "Concept Extraction",
			Shape: types.ShapeObjectArray, Feeds: FieldDefinitions, NeedsDocument: true, Prompt: ontologistSquadPrompt,
		}),
		MustNew(Spec{
			ID: "sniper", DisplayName: "The Sniper", Model: ModelDeepSeek, Task: "Quote Extraction",
			Shape: types.ShapeStringArray, Feeds: FieldQuotes, NeedsDocument: true, Prompt: sniperPrompt,
		}),
		MustNew(Spec{
			ID: "weaver", DisplayName: "The Weaver", Model: ModelDeepSeek, Task: "Relationship Mapping",
			Shape: types.ShapeObject, Feeds: FieldConnections, NeedsDocument: true, Prompt: weaverPrompt,
		}),
		MustNew(Spec{
			ID: "archivist", DisplayName: "The Archivist", Model: ModelMini, Task: "Synthesis & JSON Repair",
			Shape: types.ShapeObject, Feeds: FieldRecord, Prompt: archivistPrompt,
		}),
	}
}

func atlasStages() []Stage {
	return []Stage{
		MustNew(Spec{
			ID: "cartographer", DisplayName: "The Cartographer", Model: ModelMaverick, Task: "Concept Map",
			Shape: types.ShapeDiagram, Feeds: FieldDiagram, DiagramTag: "mermaid", NeedsDocument: true,
			Prompt: cartographerAtlasPrompt,
		}),
		MustNew(Spec{
			ID: "ontologist", DisplayName: "The Ontologist", Model: ModelDeepSeek, Task: "Concept Relations",
			Shape: types.ShapeObjectArray, Feeds: FieldRelations, NeedsDocument: true, Prompt: ontologistAtlasPrompt,
		}),
		MustNew(Spec{
			ID: "annotator", DisplayName: "The Annotator", Model: ModelDeepSeek, Task: "Reading Notes",
			Shape: types.ShapeStringArray, Feeds: FieldNotes, NeedsDocument: true, Prompt: annotatorPrompt,
		}),
		MustNew(Spec{
			ID: "weaver", DisplayName: "The Weaver", Model: ModelDeepSeek, Task: "Relationship Mapping",
			Shape: types.ShapeObject, Feeds: FieldConnections, NeedsDocument: true, Prompt: weaverPrompt,
		}),
	}
}

var variants = map[string]func() []Stage{
	VariantSquad: squadStages,
	VariantAtlas: atlasStages,
}

// Variants returns the known variant names, sorted.
func Variants() []string {
	names := make([]string, 0, len(variants))
	for n := range variants {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// ForVariant returns the stages of the named variant in execution order.
// models overrides the target model per stage ID; an override naming an
// unknown stage is an error.
func ForVariant(name string, models map[string]string) ([]Stage, error) {
	build, ok := variants[name]
	if !ok {
		return nil, fmt.Errorf("unknown pipeline variant %q (known: %v)", name, Variants())
	}
	stages := build()
	if err := Validate(stages); err != nil {
		return nil, err
	}

	for id, model := range models {
		if model == "" {
			continue
		}
		found := false
		for i := range stages {
			if stages[i].ID == id {
				stages[i] = stages[i].WithModel(model)
				found = true
			}
		}
		if !found {
			return nil, fmt.Errorf("model override for unknown stage %q in variant %s", id, name)
		}
	}
	return stages, nil
}

// Validate checks that stage IDs are unique and non-empty and that at most
// the last stage is a synthesis stage.
func Validate(stages []Stage) error {
	if len(stages) == 0 {
		return fmt.Errorf("no stages")
	}
	seen := make(map[string]bool, len(stages))
	for i, s := range stages {
		if s.ID == "" {
			return fmt.Errorf("stage %d: empty id", i)
		}
		if seen[s.ID] {
			return fmt.Errorf("duplicate stage id %q", s.ID)
		}
		seen[s.ID] = true
		if s.Feeds == FieldRecord && i != len(stages)-1 {
			return fmt.Errorf("synthesis stage %q must be last", s.ID)
		}
	}
	return nil
}

// HasSynthesis reports whether the last stage synthesizes the record.
func HasSynthesis(stages []Stage) bool {
	return len(stages) > 0 && stages[len(stages)-1].Feeds == FieldRecord
}
