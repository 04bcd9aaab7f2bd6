package connection

import (
	"fmt"
	"net/url"
)

// ResolveURL derives the WebSocket endpoint from the page's base URL:
// http becomes ws and https becomes wss. A non-empty path replaces the
// base path. ws and wss inputs are kept as they are.
func ResolveURL(base, path string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}

	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("%w: %q", ErrBadScheme, u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("parse url: missing host in %q", base)
	}

	if path != "" {
		u.Path = path
		u.RawPath = ""
	}
	u.Fragment = ""
	return u.String(), nil
}
