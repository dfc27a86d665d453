// Package sitemap implements sitemap ingestion (spec §4.2): XML/gzip
// parsing, sitemapindex recursion, robots.txt "Sitemap:" directive
// discovery, and the SSRF guard that gates every sitemap fetch.
package sitemap

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/temoto/robotstxt"

	"github.com/siteprobe/siteprobe/internal/config"
)

// ErrSitemapSecurity is the sentinel for SSRF-guard rejections (spec §7 error kind 7).
var ErrSitemapSecurity = errors.New("sitemap fetch rejected by SSRF guard")

// Entry is one discovered page URL, optionally with alternate-language links.
type Entry struct {
	Loc        string
	Alternates []Alternate
}

// Alternate is an hreflang alternate link from a sitemap urlset entry.
type Alternate struct {
	Hreflang string
	Href     string
}

type urlEntry struct {
	Loc   string `xml:"loc"`
	Links []struct {
		Rel      string `xml:"rel,attr"`
		Hreflang string `xml:"hreflang,attr"`
		Href     string `xml:"href,attr"`
	} `xml:"link"`
}

type urlsetXML struct {
	XMLName xml.Name   `xml:"urlset"`
	URLs    []urlEntry `xml:"url"`
}

type sitemapIndexXML struct {
	XMLName  xml.Name `xml:"sitemapindex"`
	Sitemaps []struct {
		Loc string `xml:"loc"`
	} `xml:"sitemap"`
}

// Ingester fetches and recursively expands sitemaps into page-url entries.
type Ingester struct {
	cfg    config.SitemapConfig
	client *http.Client
	logger *slog.Logger

	alternateLinks bool
	visited        int
}

// NewIngester builds a sitemap ingester.
func NewIngester(cfg config.SitemapConfig, alternateLinks bool, logger *slog.Logger) *Ingester {
	return &Ingester{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.FetchTimeout},
		logger: logger.With("component", "sitemap_ingester"),
		alternateLinks: alternateLinks,
	}
}

// Ingest expands one or more sitemap/robots.txt URLs into page-url entries,
// respecting SITEMAP_MAX_URLS and SITEMAP_MAX_RECURSION_DEPTH (spec §3 invariants).
func (in *Ingester) Ingest(ctx context.Context, seedURLs []string) ([]Entry, error) {
	var out []Entry
	for _, u := range seedURLs {
		if in.visited >= in.cfg.MaxURLs {
			break
		}
		entries, err := in.expand(ctx, u, 0)
		if err != nil {
			in.logger.Warn("sitemap seed failed", "url", u, "error", err)
			continue
		}
		out = append(out, entries...)
	}
	return out, nil
}

func (in *Ingester) expand(ctx context.Context, sitemapURL string, depth int) ([]Entry, error) {
	if depth >= in.cfg.MaxRecursionDepth {
		in.logger.Warn("recursion depth limit reached", "url", sitemapURL, "depth", depth)
		return nil, nil
	}
	if in.visited >= in.cfg.MaxURLs {
		return nil, nil
	}

	if err := guardSSRF(sitemapURL); err != nil {
		in.logger.Warn("sitemap security rejection", "url", sitemapURL, "error", err)
		return nil, err
	}

	if strings.HasSuffix(sitemapURL, "/robots.txt") {
		return in.expandRobots(ctx, sitemapURL, depth)
	}

	body, err := in.fetch(ctx, sitemapURL)
	if err != nil {
		return nil, err
	}

	var index sitemapIndexXML
	if err := xml.Unmarshal(body, &index); err == nil && len(index.Sitemaps) > 0 {
		var out []Entry
		for _, sm := range index.Sitemaps {
			sub, err := in.expand(ctx, sm.Loc, depth+1)
			if err != nil {
				in.logger.Warn("sub-sitemap error", "url", sm.Loc, "error", err)
				continue
			}
			out = append(out, sub...)
			if in.visited >= in.cfg.MaxURLs {
				break
			}
		}
		return out, nil
	}

	var urlset urlsetXML
	if err := xml.Unmarshal(body, &urlset); err != nil {
		return nil, fmt.Errorf("parse sitemap %s: %w", sitemapURL, err)
	}

	var out []Entry
	for _, u := range urlset.URLs {
		if in.visited >= in.cfg.MaxURLs {
			break
		}
		entry := Entry{Loc: u.Loc}
		if in.alternateLinks {
			for _, l := range u.Links {
				if l.Rel == "alternate" && l.Hreflang != "" {
					entry.Alternates = append(entry.Alternates, Alternate{Hreflang: l.Hreflang, Href: l.Href})
				}
			}
		}
		out = append(out, entry)
		in.visited++
	}
	return out, nil
}

// expandRobots extracts "Sitemap:" directives from a robots.txt resource
// using temoto/robotstxt and recurses into each one.
func (in *Ingester) expandRobots(ctx context.Context, robotsURL string, depth int) ([]Entry, error) {
	body, err := in.fetch(ctx, robotsURL)
	if err != nil {
		return nil, err
	}

	doc, err := robotstxt.FromBytes(body)
	if err != nil {
		return nil, fmt.Errorf("parse robots.txt %s: %w", robotsURL, err)
	}

	var out []Entry
	for _, sm := range doc.Sitemaps {
		sub, err := in.expand(ctx, sm, depth+1)
		if err != nil {
			in.logger.Warn("robots.txt sitemap error", "url", sm, "error", err)
			continue
		}
		out = append(out, sub...)
		if in.visited >= in.cfg.MaxURLs {
			break
		}
	}
	return out, nil
}

// fetch retrieves sitemap bytes, decompressing gzip content under a size ceiling.
func (in *Ingester) fetch(ctx context.Context, targetURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, targetURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := in.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("sitemap fetch %s: status %d", targetURL, resp.StatusCode)
	}

	isGzip := strings.HasSuffix(targetURL, ".gz") || resp.Header.Get("Content-Encoding") == "gzip"
	if !isGzip {
		return io.ReadAll(io.LimitReader(resp.Body, in.cfg.MaxGzipBytes))
	}

	gz, err := gzip.NewReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("gzip sitemap %s: %w", targetURL, err)
	}
	defer gz.Close()

	limited := io.LimitReader(gz, in.cfg.MaxGzipBytes+1)
	data, err := io.ReadAll(limited)
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > in.cfg.MaxGzipBytes {
		in.logger.Warn("gzipped sitemap exceeds size ceiling, skipping", "url", targetURL, "limit", in.cfg.MaxGzipBytes)
		return nil, fmt.Errorf("%s: decompressed sitemap exceeds %d bytes", targetURL, in.cfg.MaxGzipBytes)
	}
	return data, nil
}

// guardSSRF enforces the SSRF guard (spec §4.2, §8): HTTPS only, resolved
// IP must not be private/loopback/link-local; resolution failure is
// fail-closed (rejected, not allowed through).
func guardSSRF(targetURL string) error {
	u, err := url.Parse(targetURL)
	if err != nil {
		return fmt.Errorf("%w: invalid URL %s", ErrSitemapSecurity, targetURL)
	}
	if u.Scheme != "https" {
		return fmt.Errorf("%w: scheme %s is not https", ErrSitemapSecurity, u.Scheme)
	}

	host := u.Hostname()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	ips, err := net.DefaultResolver.LookupIPAddr(ctx, host)
	if err != nil || len(ips) == 0 {
		return fmt.Errorf("%w: DNS resolution failed for %s", ErrSitemapSecurity, host)
	}

	for _, ip := range ips {
		if isDisallowedIP(ip.IP) {
			return fmt.Errorf("%w: %s resolves to disallowed address %s", ErrSitemapSecurity, host, ip.IP)
		}
	}
	return nil
}

func isDisallowedIP(ip net.IP) bool {
	return ip.IsLoopback() || ip.IsPrivate() || ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() || ip.IsUnspecified()
}
