package proxy

import (
	"net/url"
	"testing"
)

func TestLinksTurboAndStable(t *testing.T) {
	links := NewLinks("proxy.example.com", "8443", "443", "ee1234")

	turbo, err := links.Turbo()
	if err != nil {
		t.Fatalf("turbo: %v", err)
	}
	stable, err := links.Stable()
	if err != nil {
		t.Fatalf("stable: %v", err)
	}

	for name, link := range map[string]string{"turbo": turbo, "stable": stable} {
		u, err := url.Parse(link)
		if err != nil {
			t.Fatalf("%s link does not parse: %v", name, err)
		}
		if u.Scheme != "https" || u.Host != "t.me" || u.Path != "/proxy" {
			t.Fatalf("%s link has wrong base: %s", name, link)
		}
		q := u.Query()
		if q.Get("server") != "proxy.example.com" || q.Get("secret") != "ee1234" {
			t.Fatalf("%s link has wrong params: %s", name, link)
		}
	}

	if p := mustQuery(t, turbo, "port"); p != "8443" {
		t.Fatalf("turbo port = %s", p)
	}
	if p := mustQuery(t, stable, "port"); p != "443" {
		t.Fatalf("stable port = %s", p)
	}
}

func TestLinksNotConfigured(t *testing.T) {
	cases := []*Links{
		NewLinks("", "8443", "443", "ee1234"),
		NewLinks("proxy.example.com", "8443", "443", ""),
	}
	for _, links := range cases {
		if _, err := links.Turbo(); err != ErrNotConfigured {
			t.Fatalf("turbo: want ErrNotConfigured, got %v", err)
		}
		if _, err := links.Stable(); err != ErrNotConfigured {
			t.Fatalf("stable: want ErrNotConfigured, got %v", err)
		}
	}
}

func TestRecommended(t *testing.T) {
	if got := NewLinks("h", "8443", "443", "s").Recommended(); got != "TURBO" {
		t.Fatalf("recommended = %s", got)
	}
	if got := NewLinks("h", "443", "443", "s").Recommended(); got != "STABLE" {
		t.Fatalf("same-port recommended = %s", got)
	}
}

func mustQuery(t *testing.T, link, key string) string {
	t.Helper()
	u, err := url.Parse(link)
	if err != nil {
		t.Fatalf("parse %s: %v", link, err)
	}
	return u.Query().Get(key)
}
