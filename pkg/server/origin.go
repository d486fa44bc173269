package server

import (
	"log/slog"
	"net/http"
	"net/url"
	"strings"
)

// originPolicy decides which browser origins may open a WebSocket.
type originPolicy struct {
	allowAll bool
	allowed  map[string]struct{}
}

// newOriginPolicy normalizes the configured origins. No origins, or "*",
// allows every origin.
func newOriginPolicy(origins []string) *originPolicy {
	p := &originPolicy{allowed: make(map[string]struct{})}
	for _, origin := range origins {
		trimmed := strings.TrimSpace(origin)
		if trimmed == "" {
			continue
		}
		if trimmed == "*" {
			p.allowAll = true
			continue
		}
		normalized, ok := normalizeOrigin(trimmed)
		if !ok {
			slog.Warn("ignoring invalid origin in configuration", "origin", origin)
			continue
		}
		p.allowed[normalized] = struct{}{}
	}
	if len(p.allowed) == 0 {
		p.allowAll = true
	}
	return p
}

func normalizeOrigin(origin string) (string, bool) {
	parsed, err := url.Parse(origin)
	if err != nil {
		return "", false
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return "", false
	}
	return strings.ToLower(parsed.Scheme) + "://" + strings.ToLower(parsed.Host), true
}

// check is used as websocket.Upgrader.CheckOrigin. Requests without an
// Origin header come from non-browser clients and are allowed.
func (p *originPolicy) check(r *http.Request) bool {
	if p.allowAll {
		return true
	}
	header := r.Header.Get("Origin")
	if header == "" {
		return true
	}
	normalized, ok := normalizeOrigin(header)
	if ok {
		if _, allowed := p.allowed[normalized]; allowed {
			return true
		}
	}
	slog.Warn("blocked websocket connection from disallowed origin", "origin", header)
	return false
}
