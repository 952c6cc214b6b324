package protocol

import (
	"fmt"
	"net/url"
	"strings"
)

// Feature endpoint prefixes
const (
	AssistantPath = "/api/assistant/ws/"
	ExpandPath    = "/api/expand/ws/"
	FeaturesPath  = "/api/chat-features/ws/"
)

// BuildURL turns the page base URL into the websocket URL for a feature
// prefix and an opaque scope (usually a project name).
// The scheme follows the base: https becomes wss, http becomes ws.
func BuildURL(baseURL, prefix, scope string) (string, error) {
	if scope == "" {
		return "", fmt.Errorf("scope is required")
	}

	u, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("parse base url: %w", err)
	}

	switch u.Scheme {
	case "https", "wss":
		u.Scheme = "wss"
	case "http", "ws":
		u.Scheme = "ws"
	default:
		return "", fmt.Errorf("unsupported base url scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("base url %q has no host", baseURL)
	}

	base := strings.TrimSuffix(u.Path, "/")
	u.Path = base + prefix + scope
	u.RawPath = base + prefix + url.PathEscape(scope)
	u.RawQuery = ""
	u.Fragment = ""
	return u.String(), nil
}
