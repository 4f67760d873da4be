// Package proxy builds the t.me connection links handed out to approved users.
package proxy

import (
	"errors"
	"net/url"
)

// ErrNotConfigured indicates the proxy endpoint is missing from configuration
// and no connection link can be produced.
var ErrNotConfigured = errors.New("proxy: server or secret not configured")

// Links assembles MTProto proxy deep links for the two published endpoints.
type Links struct {
	server     string
	turboPort  string
	stablePort string
	secret     string
}

// NewLinks returns a Links builder for the given endpoint parameters.
func NewLinks(server, turboPort, stablePort, secret string) *Links {
	return &Links{
		server:     server,
		turboPort:  turboPort,
		stablePort: stablePort,
		secret:     secret,
	}
}

// Turbo returns the connection link for the low-latency endpoint.
func (l *Links) Turbo() (string, error) {
	return l.build(l.turboPort)
}

// Stable returns the connection link for the conservative endpoint.
func (l *Links) Stable() (string, error) {
	return l.build(l.stablePort)
}

// Recommended names the endpoint worth trying first. TURBO wins unless it
// sits on the same port STABLE already serves.
func (l *Links) Recommended() string {
	if l.turboPort == l.stablePort {
		return "STABLE"
	}
	return "TURBO"
}

func (l *Links) build(port string) (string, error) {
	if l.server == "" || l.secret == "" || port == "" {
		return "", ErrNotConfigured
	}
	q := url.Values{}
	q.Set("server", l.server)
	q.Set("port", port)
	q.Set("secret", l.secret)
	u := url.URL{
		Scheme:   "https",
		Host:     "t.me",
		Path:     "/proxy",
		RawQuery: q.Encode(),
	}
	return u.String(), nil
}
