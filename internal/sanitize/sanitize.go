// Package sanitize strips markup and control characters from strings that
// leave the client.
package sanitize

import (
	"html"
	"strings"
	"unicode"

	"github.com/microcosm-cc/bluemonday"
)

// Sanitizer cleans a single string.
type Sanitizer interface {
	String(s string) string
}

// Policy removes every HTML element and attribute, then drops control
// characters other than tab and newline. Surviving text is returned as plain
// text, not entity-encoded.
type Policy struct {
	p *bluemonday.Policy
}

// NewPolicy returns the strict outbound policy.
func NewPolicy() *Policy {
	return &Policy{p: bluemonday.StrictPolicy()}
}

// String implements Sanitizer.
func (p *Policy) String(s string) string {
	if s == "" {
		return s
	}
	out := p.plain(s)
	return strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' {
			return r
		}
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, out)
}

// maxPasses bounds plain for input with several layers of entity encoding.
const maxPasses = 4

// plain strips markup and decodes the entities bluemonday writes for kept
// text. Decoding can expose markup that was entity-encoded in the input, so
// it repeats until the text is stable. Text still changing after maxPasses
// is returned escaped.
func (p *Policy) plain(s string) string {
	for i := 0; i < maxPasses; i++ {
		next := html.UnescapeString(p.p.Sanitize(s))
		if next == s {
			return next
		}
		s = next
	}
	return p.p.Sanitize(s)
}

// Value returns a copy of v with every string sanitized, descending into
// maps and slices. Other values are returned unchanged.
func Value(s Sanitizer, v any) any {
	switch t := v.(type) {
	case string:
		return s.String(t)
	case map[string]any:
		return Map(s, t)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = Value(s, e)
		}
		return out
	case []string:
		out := make([]string, len(t))
		for i, e := range t {
			out[i] = s.String(e)
		}
		return out
	case map[string]string:
		out := make(map[string]string, len(t))
		for k, e := range t {
			out[k] = s.String(e)
		}
		return out
	default:
		return v
	}
}

// Map sanitizes every string value in m, returning a new map.
func Map(s Sanitizer, m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = Value(s, v)
	}
	return out
}
