package version

import (
	"strings"
	"testing"
)

func TestString(t *testing.T) {
	got := String()
	if !strings.Contains(got, Version) || !strings.Contains(got, Commit) {
		t.Errorf("String() = %q", got)
	}
}

func TestUserAgent(t *testing.T) {
	got := UserAgent()
	if !strings.HasPrefix(got, "storefront-realtime/"+Version+" (") {
		t.Errorf("UserAgent() = %q", got)
	}
}
