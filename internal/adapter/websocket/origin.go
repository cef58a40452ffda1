package websocket

import (
	"log/slog"
	"net/http"
	"net/url"
	"strings"
)

// originPolicy decides which browser origins may open a live-update socket.
// Entries are exact origins ("https://app.example.com"), a subdomain pattern
// ("https://*.example.com") or "*".
type originPolicy struct {
	any      bool
	exact    map[string]struct{}
	suffixes []originSuffix
	devHosts bool
}

type originSuffix struct {
	scheme string
	suffix string // ".example.com", optionally with ":port"
}

// NewCheckOrigin returns the upgrader's origin check built from the app URL
// and the web client origins. Requests without an Origin header come from
// non-browser clients and are allowed. In development any localhost port is
// allowed too.
func NewCheckOrigin(appURL string, allowed []string, isDevelopment bool) func(r *http.Request) bool {
	p := newOriginPolicy(append([]string{appURL}, allowed...), isDevelopment)
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" || p.allows(origin) {
			return true
		}
		slog.Warn("WebSocket origin rejected", "origin", origin, "remote_addr", r.RemoteAddr)
		return false
	}
}

func newOriginPolicy(entries []string, isDevelopment bool) *originPolicy {
	p := &originPolicy{exact: make(map[string]struct{}, len(entries)), devHosts: isDevelopment}
	for _, raw := range entries {
		raw = strings.TrimSpace(raw)
		switch {
		case raw == "*":
			p.any = true
		case strings.Contains(raw, "://*."):
			scheme, host, _ := strings.Cut(raw, "://*")
			p.suffixes = append(p.suffixes, originSuffix{scheme: strings.ToLower(scheme), suffix: strings.ToLower(host)})
		default:
			if o := extractOrigin(raw); o != "" {
				p.exact[o] = struct{}{}
			}
		}
	}
	return p
}

func (p *originPolicy) allows(origin string) bool {
	if p.any {
		return true
	}
	normalized := extractOrigin(origin)
	if normalized == "" {
		return false
	}
	if _, ok := p.exact[normalized]; ok {
		return true
	}
	scheme, host, _ := strings.Cut(normalized, "://")
	for _, s := range p.suffixes {
		if scheme == s.scheme && strings.HasSuffix(host, s.suffix) && len(host) > len(s.suffix) {
			return true
		}
	}
	return p.devHosts && isLocalhostOrigin(normalized)
}

// extractOrigin reduces a URL to a lowercase scheme://host[:port].
func extractOrigin(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return ""
	}
	return strings.ToLower(u.Scheme + "://" + u.Host)
}

func isLocalhostOrigin(origin string) bool {
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	switch u.Hostname() {
	case "localhost", "127.0.0.1", "::1":
		return true
	}
	return false
}
