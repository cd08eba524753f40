// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package parse converts free-form model output into typed stage values.
// Decoding falls back through three bounded tiers: direct decode, repair of
// common wrapping artifacts, and extraction of the first balanced JSON
// substring. Output that survives none of them becomes a parse failure value
// carrying the raw text; Parse never returns an error.
package parse

import (
	"cmp"
	"encoding/json"
	"slices"
	"strings"

	"github.com/pdiddy/atlas/pkg/types"
)

// Tier identifies which decoding tier produced a value.
type Tier int

const (
	TierNone Tier = iota
	TierDirect
	TierRepaired
	TierExtracted
)

func (t Tier) String() string {
	switch t {
	case TierDirect:
		return "direct"
	case TierRepaired:
		return "repaired"
	case TierExtracted:
		return "extracted"
	default:
		return "none"
	}
}

// Tier 3 limits. Only the first maxCandidates balanced spans are decoded.
const maxCandidates = 32

// Parse decodes text into a value of the given shape. Diagram shapes are
// handled by Diagram with the default "mermaid" tag.
func Parse(text string, shape types.Shape) types.Value {
	v, _ := Decode(text, shape)
	return v
}

// Decode is Parse that also reports the tier that succeeded.
func Decode(text string, shape types.Shape) (types.Value, Tier) {
	if shape == types.ShapeDiagram {
		return types.DiagramValue(Diagram(text, "mermaid")), TierDirect
	}
	if strings.TrimSpace(text) == "" {
		return types.ParseFailure(text), TierNone
	}

	if v, ok := decodeDirect(text, shape); ok {
		return v, TierDirect
	}
	if v, ok := decodeDirect(repair(text), shape); ok {
		return v, TierRepaired
	}
	if v, ok := extractBalanced(text, shape); ok {
		return v, TierExtracted
	}
	return types.ParseFailure(text), TierNone
}

// decodeDirect decodes text as JSON and accepts it only if it fits shape.
func decodeDirect(text string, shape types.Shape) (types.Value, bool) {
	var raw any
	if err := json.Unmarshal([]byte(strings.TrimSpace(text)), &raw); err != nil {
		return types.Value{}, false
	}
	return fit(raw, shape)
}

// repair strips a fence wrapping the whole text and removes trailing commas
// outside JSON strings.
func repair(text string) string {
	return dropTrailingCommas(stripFence(strings.TrimSpace(text)))
}

// stripFence removes an opening fence marker (with its language tag) at the
// start of text and a closing marker at the end.
func stripFence(text string) string {
	if rest, ok := strings.CutPrefix(text, "```"); ok {
		i := 0
		for i < len(rest) && isTagByte(rest[i]) {
			i++
		}
		text = rest[i:]
	}
	text = strings.TrimSuffix(strings.TrimSpace(text), "```")
	return strings.TrimSpace(text)
}

func isTagByte(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' ||
		c == '_' || c == '+' || c == '-'
}

// dropTrailingCommas removes each comma followed only by whitespace and a
// closing brace or bracket. Commas inside JSON strings are kept.
func dropTrailingCommas(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	var sc stringScanner
	for i := 0; i < len(text); i++ {
		c := text[i]
		if sc.step(c) || c != ',' {
			b.WriteByte(c)
			continue
		}
		j := i + 1
		for j < len(text) && isSpace(text[j]) {
			j++
		}
		if j < len(text) && (text[j] == '}' || text[j] == ']') {
			continue
		}
		b.WriteByte(c)
	}
	return b.String()
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}

// stringScanner tracks whether a byte stream is inside a JSON string.
type stringScanner struct {
	inString bool
	escaped  bool
}

// step consumes c and reports whether c is part of a string, quotes included.
func (s *stringScanner) step(c byte) bool {
	if s.inString {
		switch {
		case s.escaped:
			s.escaped = false
		case c == '\\':
			s.escaped = true
		case c == '"':
			s.inString = false
		}
		return true
	}
	if c == '"' {
		s.inString = true
		return true
	}
	return false
}

// extractBalanced tries the balanced '{...}' and '[...]' substrings of text
// in order of their opening bracket.
func extractBalanced(text string, shape types.Shape) (types.Value, bool) {
	for _, sp := range balancedSpans(text, maxCandidates) {
		candidate := text[sp.start : sp.end+1]
		if v, ok := decodeDirect(candidate, shape); ok {
			return v, true
		}
		if v, ok := decodeDirect(repair(candidate), shape); ok {
			return v, true
		}
	}
	return types.Value{}, false
}

type span struct{ start, end int }

// balancedSpans finds balanced bracket spans in one pass and returns the
// first limit of them ordered by start. Brackets inside JSON strings are
// ignored; a mismatched closer discards every open bracket.
func balancedSpans(text string, limit int) []span {
	type open struct {
		pos   int
		close byte
	}
	var (
		stack []open
		spans []span
		sc    stringScanner
	)
	for i := 0; i < len(text); i++ {
		c := text[i]
		if len(stack) > 0 && sc.step(c) {
			continue
		}
		switch c {
		case '{':
			stack = append(stack, open{i, '}'})
		case '[':
			stack = append(stack, open{i, ']'})
		case '}', ']':
			if len(stack) == 0 {
				continue
			}
			top := stack[len(stack)-1]
			if top.close != c {
				stack = stack[:0]
				continue
			}
			stack = stack[:len(stack)-1]
			spans = append(spans, span{top.pos, i})
		}
		if len(stack) == 0 {
			sc = stringScanner{}
		}
	}
	slices.SortFunc(spans, func(a, b span) int { return cmp.Compare(a.start, b.start) })
	if len(spans) > limit {
		spans = spans[:limit]
	}
	return spans
}

// fit converts a generic decoded JSON value into the tagged union when it
// matches shape.
func fit(raw any, shape types.Shape) (types.Value, bool) {
	switch shape {
	case types.ShapeObject:
		m, ok := raw.(map[string]any)
		if !ok {
			return types.Value{}, false
		}
		return types.ObjectValue(m), true

	case types.ShapeObjectArray:
		arr, ok := raw.([]any)
		if !ok {
			return types.Value{}, false
		}
		objs := make([]map[string]any, 0, len(arr))
		for _, el := range arr {
			m, ok := el.(map[string]any)
			if !ok {
				return types.Value{}, false
			}
			objs = append(objs, m)
		}
		return types.ObjectArrayValue(objs), true

	case types.ShapeStringArray:
		arr, ok := raw.([]any)
		if !ok {
			return types.Value{}, false
		}
		strs := make([]string, 0, len(arr))
		for _, el := range arr {
			s, ok := el.(string)
			if !ok {
				return types.Value{}, false
			}
			strs = append(strs, s)
		}
		return types.StringArrayValue(strs), true
	}
	return types.Value{}, false
}
