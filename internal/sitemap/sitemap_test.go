package sitemap

import (
	"encoding/xml"
	"errors"
	"net"
	"testing"
)

func TestGuardSSRFRejectsNonHTTPS(t *testing.T) {
	err := guardSSRF("http://example.com/sitemap.xml")
	if !errors.Is(err, ErrSitemapSecurity) {
		t.Errorf("expected an http:// sitemap URL to be rejected, got %v", err)
	}
}

func TestGuardSSRFRejectsLoopback(t *testing.T) {
	err := guardSSRF("https://localhost/sitemap.xml")
	if !errors.Is(err, ErrSitemapSecurity) {
		t.Errorf("expected a loopback-resolving host to be rejected, got %v", err)
	}
}

func TestGuardSSRFRejectsUnresolvableHost(t *testing.T) {
	err := guardSSRF("https://this-host-should-never-resolve.invalid/sitemap.xml")
	if !errors.Is(err, ErrSitemapSecurity) {
		t.Errorf("expected DNS resolution failure to fail closed, got %v", err)
	}
}

func TestIsDisallowedIP(t *testing.T) {
	cases := map[string]bool{
		"127.0.0.1":    true,
		"10.0.0.5":     true,
		"169.254.1.1":  true,
		"0.0.0.0":      true,
		"8.8.8.8":      false,
		"93.184.216.34": false,
	}
	for raw, want := range cases {
		ip := net.ParseIP(raw)
		if got := isDisallowedIP(ip); got != want {
			t.Errorf("isDisallowedIP(%s) = %v, want %v", raw, got, want)
		}
	}
}

func TestURLSetXMLParsesLocAndAlternates(t *testing.T) {
	data := []byte(`<?xml version="1.0" encoding="UTF-8"?>
<urlset xmlns="http://www.sitemaps.org/schemas/sitemap/0.9" xmlns:xhtml="http://www.w3.org/1999/xhtml">
  <url>
    <loc>https://example.com/en/</loc>
    <xhtml:link rel="alternate" hreflang="fr" href="https://example.com/fr/"/>
  </url>
</urlset>`)

	var parsed urlsetXML
	if err := xml.Unmarshal(data, &parsed); err != nil {
		t.Fatal(err)
	}
	if len(parsed.URLs) != 1 || parsed.URLs[0].Loc != "https://example.com/en/" {
		t.Fatalf("expected one url with loc https://example.com/en/, got %+v", parsed.URLs)
	}
	if len(parsed.URLs[0].Links) != 1 || parsed.URLs[0].Links[0].Hreflang != "fr" {
		t.Errorf("expected one alternate link with hreflang=fr, got %+v", parsed.URLs[0].Links)
	}
}

func TestSitemapIndexXMLParsesNestedLocs(t *testing.T) {
	data := []byte(`<?xml version="1.0" encoding="UTF-8"?>
<sitemapindex xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">
  <sitemap><loc>https://example.com/sitemap-1.xml</loc></sitemap>
  <sitemap><loc>https://example.com/sitemap-2.xml</loc></sitemap>
</sitemapindex>`)

	var parsed sitemapIndexXML
	if err := xml.Unmarshal(data, &parsed); err != nil {
		t.Fatal(err)
	}
	if len(parsed.Sitemaps) != 2 {
		t.Fatalf("expected 2 nested sitemaps, got %d", len(parsed.Sitemaps))
	}
}
