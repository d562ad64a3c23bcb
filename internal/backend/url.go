package backend

import (
	"fmt"
	"net/url"
	"strings"
)

// Streaming endpoints exposed by the backend under /ws/
const (
	EndpointParse    = "parse"
	EndpointOptimize = "optimize"
)

// WebSocketURL derives the streaming channel address for endpoint from the
// HTTP base URL: http becomes ws, https becomes wss.
func WebSocketURL(base, endpoint string) (string, error) {
	if endpoint == "" {
		return "", fmt.Errorf("endpoint cannot be empty")
	}
	u, err := url.Parse(strings.TrimSpace(base))
	if err != nil {
		return "", fmt.Errorf("invalid backend URL %q: %w", base, err)
	}

	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported backend URL scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("backend URL %q has no host", base)
	}

	u.Path = strings.TrimRight(u.Path, "/") + "/ws/" + endpoint
	u.RawQuery = ""
	u.Fragment = ""
	return u.String(), nil
}

// endpointURL joins an API path onto the HTTP base URL.
func endpointURL(base, path string) string {
	return strings.TrimRight(base, "/") + path
}
