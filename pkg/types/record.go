// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

// Definition is one philosophical term with its definition.
type Definition struct {
	Term string `json:"term" yaml:"term"`
	Def  string `json:"def" yaml:"def"`
}

// Relation links two concepts, the concept-map form of definitions.
type Relation struct {
	From  string `json:"from" yaml:"from"`
	To    string `json:"to" yaml:"to"`
	Label string `json:"relation,omitempty" yaml:"relation,omitempty"`
}

// Connections groups related authors and thematic clusters.
type Connections struct {
	RelatedAuthors   []string `json:"related_authors,omitempty" yaml:"related_authors,omitempty"`
	ThematicClusters []string `json:"thematic_clusters,omitempty" yaml:"thematic_clusters,omitempty"`
}

// IsEmpty reports whether no connection was recorded.
func (c Connections) IsEmpty() bool {
	return len(c.RelatedAuthors) == 0 && len(c.ThematicClusters) == 0
}

// FinalRecord is the synthesized dossier for one document. Pipeline variants
// fill different subsets: the squad variant yields Structure, Definitions and
// Quotes, the atlas variant yields Diagram, Relations and Notes.
type FinalRecord struct {
	Title       string `json:"title" yaml:"title"`
	Author      string `json:"author" yaml:"author"`
	Year        string `json:"year" yaml:"year"`
	Publisher   string `json:"publisher,omitempty" yaml:"publisher,omitempty"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`

	Structure []string `json:"structure,omitempty" yaml:"structure,omitempty"`
	Diagram   string   `json:"diagram,omitempty" yaml:"diagram,omitempty"`

	Definitions []Definition `json:"definitions,omitempty" yaml:"definitions,omitempty"`
	Relations   []Relation   `json:"relations,omitempty" yaml:"relations,omitempty"`

	Quotes []string `json:"quotes,omitempty" yaml:"quotes,omitempty"`
	Notes  []string `json:"notes,omitempty" yaml:"notes,omitempty"`

	Connections Connections `json:"connections,omitempty" yaml:"connections,omitempty"`

	// Raw is the synthesis stage output when it could not be decoded.
	Raw string `json:"raw,omitempty" yaml:"raw,omitempty"`
}
