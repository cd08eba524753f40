// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package parse

import (
	"regexp"
	"strings"
	"sync"
)

// fenceRe matches fence markers with an optional language tag, e.g. ```json.
var fenceRe = regexp.MustCompile("```[A-Za-z0-9_+-]*")

// blockRes caches the fenced-block pattern per tag.
var blockRes sync.Map // tag -> *regexp.Regexp

func blockRe(tag string) *regexp.Regexp {
	if re, ok := blockRes.Load(tag); ok {
		return re.(*regexp.Regexp)
	}
	re := regexp.MustCompile("(?s)```" + regexp.QuoteMeta(tag) + "[ \t]*\r?\n(.*?)```")
	actual, _ := blockRes.LoadOrStore(tag, re)
	return actual.(*regexp.Regexp)
}

// Diagram extracts diagram source from model output. It returns the body of
// the first fenced block tagged tag; without one, the text with fence markers
// stripped.
func Diagram(text, tag string) string {
	if tag != "" {
		if m := blockRe(tag).FindStringSubmatch(text); m != nil {
			return strings.TrimSpace(m[1])
		}
	}
	return strings.TrimSpace(fenceRe.ReplaceAllString(text, ""))
}
