// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "encoding/json"

// ValueKind tags the payload carried by a Value.
type ValueKind string

const (
	KindObject       ValueKind = "object"
	KindObjectArray  ValueKind = "object_array"
	KindStringArray  ValueKind = "string_array"
	KindDiagram      ValueKind = "diagram_text"
	KindParseFailure ValueKind = "parse_failure"
)

// Value is the parsed output of one stage. Exactly one payload field is
// meaningful, selected by Kind. A parse failure keeps the model output in Raw
// so nothing is silently dropped.
type Value struct {
	Kind    ValueKind        `json:"kind" yaml:"kind"`
	Object  map[string]any   `json:"object,omitempty" yaml:"object,omitempty"`
	Objects []map[string]any `json:"objects,omitempty" yaml:"objects,omitempty"`
	Strings []string         `json:"strings,omitempty" yaml:"strings,omitempty"`
	Text    string           `json:"text,omitempty" yaml:"text,omitempty"`
	Raw     string           `json:"raw,omitempty" yaml:"raw,omitempty"`
}

// ObjectValue wraps a decoded JSON object.
func ObjectValue(m map[string]any) Value {
	if m == nil {
		m = map[string]any{}
	}
	return Value{Kind: KindObject, Object: m}
}

// ObjectArrayValue wraps a decoded array of JSON objects.
func ObjectArrayValue(objs []map[string]any) Value {
	if objs == nil {
		objs = []map[string]any{}
	}
	return Value{Kind: KindObjectArray, Objects: objs}
}

// StringArrayValue wraps a decoded array of strings.
func StringArrayValue(s []string) Value {
	if s == nil {
		s = []string{}
	}
	return Value{Kind: KindStringArray, Strings: s}
}

// DiagramValue wraps diagram source text.
func DiagramValue(text string) Value {
	return Value{Kind: KindDiagram, Text: text}
}

// ParseFailure is the sentinel for output that could not be decoded into
// the expected shape. raw is kept verbatim.
func ParseFailure(raw string) Value {
	return Value{Kind: KindParseFailure, Raw: raw}
}

// IsFailure reports whether v is the parse failure sentinel.
func (v Value) IsFailure() bool {
	return v.Kind == KindParseFailure
}

// Payload returns the plain data carried by v. Parse failures are rendered as
// an {"error", "raw"} object, the form later prompts receive.
func (v Value) Payload() any {
	switch v.Kind {
	case KindObject:
		return v.Object
	case KindObjectArray:
		return v.Objects
	case KindStringArray:
		return v.Strings
	case KindDiagram:
		return v.Text
	case KindParseFailure:
		return map[string]any{"error": "parse failed", "raw": v.Raw}
	default:
		return nil
	}
}

// JSON renders the payload as compact JSON. Map keys are sorted by
// encoding/json, so the output is deterministic.
func (v Value) JSON() string {
	data, err := json.Marshal(v.Payload())
	if err != nil {
		return "null"
	}
	return string(data)
}
