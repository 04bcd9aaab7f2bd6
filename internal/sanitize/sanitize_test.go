package sanitize

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPolicy_String(t *testing.T) {
	p := NewPolicy()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "find shoes", "find shoes"},
		{"tags stripped", "<b>bold</b> move", "bold move"},
		{"attributes stripped", `<a href="javascript:alert(1)">click</a>`, "click"},
		{"ampersand kept", "salt & pepper", "salt & pepper"},
		{"apostrophe kept", "Tom's shoes", "Tom's shoes"},
		{"quotes kept", `the "best" socks`, `the "best" socks`},
		{"mixed punctuation", `Tom's "best" shoes & socks`, `Tom's "best" shoes & socks`},
		{"less than kept", "a < b", "a < b"},
		{"encoded markup stripped", "&lt;b&gt;x&lt;/b&gt;", "x"},
		{"control chars", "a\x00b\x07c", "abc"},
		{"newline kept", "line1\nline2", "line1\nline2"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, p.String(tt.in))
		})
	}
}

func TestMap_Nested(t *testing.T) {
	p := NewPolicy()
	in := map[string]any{
		"message": "<i>hi</i>",
		"count":   3,
		"tags":    []any{"<b>a</b>", 1},
		"names":   []string{"<u>x</u>"},
		"meta":    map[string]any{"note": "<p>n</p>"},
	}

	out := Map(p, in)

	assert.Equal(t, "hi", out["message"])
	assert.Equal(t, 3, out["count"])
	assert.Equal(t, []any{"a", 1}, out["tags"])
	assert.Equal(t, []string{"x"}, out["names"])
	assert.Equal(t, map[string]any{"note": "n"}, out["meta"])

	// input untouched
	assert.Equal(t, "<i>hi</i>", in["message"])
}

func TestMap_Nil(t *testing.T) {
	assert.Nil(t, Map(NewPolicy(), nil))
}
