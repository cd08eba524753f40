// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package stage defines the agent stages of the analysis pipeline: a role,
// a prompt template over earlier stage outputs, a target model, and the shape
// the model is expected to answer in.
package stage

import (
	"bytes"
	"fmt"
	"text/template"

	"github.com/pdiddy/atlas/pkg/types"
)

// Field names the FinalRecord field a stage's output feeds.
type Field string

const (
	FieldStructure   Field = "structure"
	FieldDiagram     Field = "diagram"
	FieldDefinitions Field = "definitions"
	FieldRelations   Field = "relations"
	FieldQuotes      Field = "quotes"
	FieldNotes       Field = "notes"
	FieldConnections Field = "connections"

	// FieldRecord marks a synthesis stage whose output is the whole record.
	FieldRecord Field = "record"
)

// Stage is an immutable stage descriptor. Construct with New.
type Stage struct {
	ID          string      `json:"id" yaml:"id"`
	DisplayName string      `json:"display_name" yaml:"display_name"`
	Model       string      `json:"target_model" yaml:"target_model"`
	Task        string      `json:"task" yaml:"task"`
	Shape       types.Shape `json:"shape" yaml:"shape"`
	Feeds       Field       `json:"feeds" yaml:"feeds"`

	// DiagramTag is the fence tag searched for when Shape is diagram.
	DiagramTag string `json:"diagram_tag,omitempty" yaml:"diagram_tag,omitempty"`

	// NeedsDocument reports whether the source text is sent as context.
	NeedsDocument bool `json:"needs_document" yaml:"needs_document"`

	tmpl *template.Template
}

// Spec is the input to New.
type Spec struct {
	ID            string
	DisplayName   string
	Model         string
	Task          string
	Shape         types.Shape
	Feeds         Field
	DiagramTag    string
	NeedsDocument bool

	// Prompt is a text/template executed against a Prior.
	Prompt string
}

// New validates spec and parses its prompt template.
func New(spec Spec) (Stage, error) {
	if spec.ID == "" {
		return Stage{}, fmt.Errorf("stage: empty id")
	}
	if !spec.Shape.Valid() {
		return Stage{}, fmt.Errorf("stage %s: invalid shape %q", spec.ID, spec.Shape)
	}
	tmpl, err := template.New(spec.ID).Option("missingkey=error").Parse(spec.Prompt)
	if err != nil {
		return Stage{}, fmt.Errorf("stage %s: parsing prompt: %w", spec.ID, err)
	}
	return Stage{
		ID:            spec.ID,
		DisplayName:   spec.DisplayName,
		Model:         spec.Model,
		Task:          spec.Task,
		Shape:         spec.Shape,
		Feeds:         spec.Feeds,
		DiagramTag:    spec.DiagramTag,
		NeedsDocument: spec.NeedsDocument,
		tmpl:          tmpl,
	}, nil
}

// MustNew is New for statically known stages.
func MustNew(spec Spec) Stage {
	s, err := New(spec)
	if err != nil {
		panic(err)
	}
	return s
}

// Prompt renders the stage instruction from the outputs of earlier stages.
// The same prior always renders the same text.
func (s Stage) Prompt(prior Prior) (string, error) {
	if s.tmpl == nil {
		return "", fmt.Errorf("stage %s: no prompt template", s.ID)
	}
	var buf bytes.Buffer
	if err := s.tmpl.Execute(&buf, prior); err != nil {
		return "", fmt.Errorf("stage %s: rendering prompt: %w", s.ID, err)
	}
	return buf.String(), nil
}

// WithModel returns a copy of s targeting model.
func (s Stage) WithModel(model string) Stage {
	s.Model = model
	return s
}

// WithPrompt returns a copy of s using a different prompt template.
func (s Stage) WithPrompt(prompt string) (Stage, error) {
	tmpl, err := template.New(s.ID).Option("missingkey=error").Parse(prompt)
	if err != nil {
		return Stage{}, fmt.Errorf("stage %s: parsing prompt: %w", s.ID, err)
	}
	s.tmpl = tmpl
	return s, nil
}

// Prior is the read-only view of earlier stage outputs a prompt can see.
type Prior struct {
	order  []string
	values map[string]types.Value
}

// NewPrior builds a Prior from results in execution order. Only done
// results contribute values.
func NewPrior(results []*types.StageResult) Prior {
	p := Prior{values: make(map[string]types.Value, len(results))}
	for _, r := range results {
		if r.State != types.StateDone {
			continue
		}
		p.order = append(p.order, r.StageID)
		p.values[r.StageID] = r.Value
	}
	return p
}

// JSON returns the compact JSON of stage id's value, or null when the stage
// has not produced one.
func (p Prior) JSON(id string) string {
	v, ok := p.values[id]
	if !ok {
		return "null"
	}
	return v.JSON()
}

// Has reports whether stage id has a value.
func (p Prior) Has(id string) bool {
	_, ok := p.values[id]
	return ok
}

// Value returns stage id's value.
func (p Prior) Value(id string) (types.Value, bool) {
	v, ok := p.values[id]
	return v, ok
}

// IDs returns the stages with values, in execution order.
func (p Prior) IDs() []string {
	return append([]string(nil), p.order...)
}
