package extract

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/siteprobe/siteprobe/internal/htmldoc"
	"github.com/siteprobe/siteprobe/internal/jobtypes"
	"github.com/siteprobe/siteprobe/internal/patterns"
	"github.com/siteprobe/siteprobe/internal/scope"
)

// authorityDomains is a curated set of reference/standards/news/health
// authority hosts, beyond the .gov/.edu/.org TLD check in internal/patterns
// (spec §4.3 Outbound link analysis).
var authorityDomains = map[string]bool{
	"wikipedia.org": true, "reuters.com": true, "apnews.com": true, "bbc.com": true,
	"nytimes.com": true, "who.int": true, "cdc.gov": true, "nih.gov": true,
	"nature.com": true, "sciencedirect.com": true, "ieee.org": true, "w3.org": true,
	"iso.org": true, "un.org": true, "worldbank.org": true,
}

// Outbound classifies every external link for authority/nofollow/sponsored/ugc
// and computes aggregate stats (spec §4.3 Outbound link analysis).
func Outbound(doc *htmldoc.Document, pageURL string) *jobtypes.OutboundLinks {
	base, _ := url.Parse(pageURL)
	baseRoot := ""
	if base != nil {
		baseRoot = scope.RootDomain(base.Host)
	}

	ol := &jobtypes.OutboundLinks{}
	domains := make(map[string]bool)
	var nofollowCount int

	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		href = strings.TrimSpace(href)
		if href == "" || strings.HasPrefix(href, "#") || strings.HasPrefix(href, "javascript:") || strings.HasPrefix(href, "mailto:") {
			return
		}
		resolved := href
		if base != nil {
			if u, err := url.Parse(href); err == nil {
				resolved = base.ResolveReference(u).String()
			}
		}
		ru, err := url.Parse(resolved)
		if err != nil || ru.Host == "" {
			return
		}
		root := scope.RootDomain(ru.Host)
		if root == baseRoot {
			return
		}

		relAttr, _ := s.Attr("rel")
		link := jobtypes.OutboundLink{
			URL:         resolved,
			NoFollow:    strings.Contains(relAttr, "nofollow"),
			Sponsored:   strings.Contains(relAttr, "sponsored"),
			UGC:         strings.Contains(relAttr, "ugc"),
			IsWikipedia: strings.Contains(root, "wikipedia.org"),
			IsGovOrEdu:  patterns.IsAuthorityDomain(ru.Host),
			IsAuthority: authorityDomains[root] || patterns.IsAuthorityDomain(ru.Host),
		}

		ol.Links = append(ol.Links, link)
		domains[root] = true
		if link.NoFollow {
			nofollowCount++
		}
		if link.IsAuthority {
			ol.AuthorityCount++
		}
		if link.IsGovOrEdu {
			ol.GovEduCount++
		}
		if link.IsWikipedia {
			ol.WikipediaCount++
		}
	})

	ol.UniqueDomainsCount = len(domains)
	if len(ol.Links) > 0 {
		ol.NoFollowRatio = round1(float64(nofollowCount) / float64(len(ol.Links)))
	}

	return ol
}
