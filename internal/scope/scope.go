// Package scope implements URL normalization and the four-policy scope
// filter used by the frontier to decide which discovered links are in
// bounds for a crawl (spec §3 Visited set, §4.2 Scope filter).
package scope

import (
	"net/url"
	"strings"

	"github.com/siteprobe/siteprobe/internal/jobtypes"
)

// Normalize canonicalizes a URL for deduplication: scheme and host
// lowercased, trailing "/" stripped from the path, query preserved
// verbatim, fragment dropped. Idempotent: Normalize(Normalize(u)) == Normalize(u).
func Normalize(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""
	u.RawFragment = ""

	if u.Path != "/" && strings.HasSuffix(u.Path, "/") {
		u.Path = strings.TrimRight(u.Path, "/")
	}
	if u.Path == "" {
		u.Path = "/"
	}

	return u.String()
}

// RootDomain returns the last two dotted labels of a host, e.g.
// "www.blog.example.com" -> "example.com".
func RootDomain(host string) string {
	host = strings.ToLower(host)
	if i := strings.IndexByte(host, ':'); i >= 0 {
		host = host[:i]
	}
	parts := strings.Split(host, ".")
	if len(parts) <= 2 {
		return host
	}
	return strings.Join(parts[len(parts)-2:], ".")
}

// Seed captures the components of a start URL a candidate is tested against.
type Seed struct {
	Scheme     string
	Netloc     string
	RootDomain string
	Path       string
}

// NewSeed parses a start URL into its scope-relevant components.
func NewSeed(rawURL string) (Seed, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return Seed{}, err
	}
	return Seed{
		Scheme:     strings.ToLower(u.Scheme),
		Netloc:     strings.ToLower(u.Host),
		RootDomain: RootDomain(u.Host),
		Path:       u.Path,
	}, nil
}

// Filter tests candidate URLs against one or more seeds under a scope policy.
type Filter struct {
	policy jobtypes.Scope
	seeds  []Seed
}

// NewFilter builds a Filter. A candidate passes if ANY seed accepts it (spec §4.2).
func NewFilter(policy jobtypes.Scope, seeds []Seed) *Filter {
	return &Filter{policy: policy, seeds: seeds}
}

// Allows reports whether candidateURL is in scope.
func (f *Filter) Allows(candidateURL string) bool {
	u, err := url.Parse(candidateURL)
	if err != nil {
		return false
	}
	netloc := strings.ToLower(u.Host)
	root := RootDomain(u.Host)
	path := u.Path
	if path == "" {
		path = "/"
	}

	for _, s := range f.seeds {
		if f.allowsOne(s, netloc, root, path) {
			return true
		}
	}
	return false
}

func (f *Filter) allowsOne(s Seed, netloc, root, path string) bool {
	switch f.policy {
	case jobtypes.ScopeSubdomain:
		return netloc == s.Netloc
	case jobtypes.ScopeDomain:
		return root == s.RootDomain
	case jobtypes.ScopeSubfolder, jobtypes.ScopeSubdomainSubfolder:
		if netloc != s.Netloc {
			return false
		}
		return pathWithinBase(path, s.Path)
	default:
		return root == s.RootDomain
	}
}

// pathWithinBase implements the subfolder boundary test (spec §4.2, §8):
// base "/blog" accepts "/blog" and "/blog/x" but rejects "/blogger"; an
// empty base path (root) matches everything.
func pathWithinBase(candidatePath, basePath string) bool {
	if basePath == "" || basePath == "/" {
		return true
	}
	base := strings.TrimSuffix(basePath, "/")
	if candidatePath == base {
		return true
	}
	return strings.HasPrefix(candidatePath, base+"/")
}
