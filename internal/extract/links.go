package extract

import (
	"net/url"
	"regexp"
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"

	"github.com/siteprobe/siteprobe/internal/htmldoc"
	"github.com/siteprobe/siteprobe/internal/jobtypes"
	"github.com/siteprobe/siteprobe/internal/scope"
)

const maxLinkSamples = 500

var genericAnchorPattern = regexp.MustCompile(
	`(?i)^(click( here)?|read( more)?|lire( la suite)?|leer( más)?|voir( plus)?|ver( más)?|more|plus|más|here|ici|aquí)$|` +
		`(here|ici|aquí)$|(more|plus|más)\s*>$`)

// badAnchorWords is the multilingual bad-anchor membership set (spec §4.3 Anchor analysis).
var badAnchorWords = map[string]bool{
	"click here": true, "read more": true, "learn more": true, "here": true,
	"lire la suite": true, "en savoir plus": true, "ici": true,
	"leer más": true, "ver más": true, "aquí": true, "más": true,
	"link": true, "this link": true,
}

// Links builds the internal/external link analysis and region partition
// (spec §4.3 Links), capped at maxLinkSamples per side.
func Links(doc *htmldoc.Document, pageURL string) (*jobtypes.LinkAnalysis, *jobtypes.AnchorStats) {
	base, _ := url.Parse(pageURL)
	baseRoot := ""
	if base != nil {
		baseRoot = scope.RootDomain(base.Host)
	}

	analysis := &jobtypes.LinkAnalysis{
		ByRegion: make(map[string]jobtypes.RegionLinks),
	}

	var empty, generic, good int

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

		anchor := htmldoc.Text(s)
		if len(anchor) > 100 {
			anchor = anchor[:100]
		}
		rel, _ := s.Attr("rel")
		nofollow := strings.Contains(rel, "nofollow")

		link := jobtypes.Link{URL: resolved, Anchor: anchor, NoFollow: nofollow}

		ru, err := url.Parse(resolved)
		isInternal := err == nil && (ru.Host == "" || scope.RootDomain(ru.Host) == baseRoot)

		if isInternal {
			if len(analysis.Internal) < maxLinkSamples {
				analysis.Internal = append(analysis.Internal, link)
			}
			switch classifyAnchor(anchor) {
			case anchorEmpty:
				empty++
			case anchorGeneric:
				generic++
			default:
				good++
			}
		} else {
			if len(analysis.External) < maxLinkSamples {
				analysis.External = append(analysis.External, link)
			}
		}

		region := regionOf(s)
		if region != "" {
			rl := analysis.ByRegion[region]
			rl.Count++
			if len(rl.Samples) < 10 {
				rl.Samples = append(rl.Samples, link)
			}
			analysis.ByRegion[region] = rl
		}
	})

	total := empty + generic + good
	stats := &jobtypes.AnchorStats{Empty: empty, Generic: generic, Good: good}
	if total > 0 {
		stats.EmptyPercent = round1(100 * float64(empty) / float64(total))
		stats.GenericPct = round1(100 * float64(generic) / float64(total))
		stats.GoodPercent = round1(100 * float64(good) / float64(total))
	}

	return analysis, stats
}

type anchorClass int

const (
	anchorGood anchorClass = iota
	anchorEmpty
	anchorGeneric
)

func classifyAnchor(anchor string) anchorClass {
	trimmed := strings.TrimSpace(anchor)
	if trimmed == "" {
		return anchorEmpty
	}
	lower := strings.ToLower(trimmed)
	if badAnchorWords[lower] {
		return anchorGeneric
	}
	if isShortOrNumeric(trimmed) {
		return anchorGeneric
	}
	if genericAnchorPattern.MatchString(lower) {
		return anchorGeneric
	}
	return anchorGood
}

func isShortOrNumeric(s string) bool {
	runes := []rune(s)
	if len(runes) <= 2 {
		return true
	}
	for _, r := range runes {
		if !unicode.IsDigit(r) && !unicode.IsSpace(r) {
			return false
		}
	}
	return true
}

// regionOf reports the first of nav, header, footer, aside, main (checked in
// that order) that encloses the anchor, if any.
func regionOf(s *goquery.Selection) string {
	for _, tag := range []string{"nav", "header", "footer", "aside", "main"} {
		if s.ParentsFiltered(tag).Length() > 0 || s.Closest(tag).Length() > 0 {
			return tag
		}
	}
	return ""
}

func round1(f float64) float64 {
	return float64(int(f*10+0.5)) / 10
}
