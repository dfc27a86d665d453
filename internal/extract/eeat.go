package extract

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/siteprobe/siteprobe/internal/htmldoc"
	"github.com/siteprobe/siteprobe/internal/jobtypes"
	"github.com/siteprobe/siteprobe/internal/patterns"
)

var (
	emailPattern = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)
	phonePattern = regexp.MustCompile(`\+?\d[\d .\-()]{7,}\d`)
	trustHrefPattern = regexp.MustCompile(
		`(?i)/(about|contact|privacy|terms|author|team|editorial|disclaimer|legal)`)
	authorClassPattern = regexp.MustCompile(`(?i)(^|[\s-])(author|byline|by-line)([\s-]|$)`)
)

// EEAT extracts experience/expertise/authoritativeness/trust signals
// (spec §4.3 E-E-A-T).
func EEAT(doc *htmldoc.Document, bodyText string) *jobtypes.EEATSignals {
	e := &jobtypes.EEATSignals{}

	if author, ok := doc.MetaContent("author"); ok && author != "" {
		e.Author = author
	} else if rel := doc.Find(`a[rel="author"]`).First(); rel.Length() > 0 {
		e.Author = htmldoc.Text(rel)
	} else {
		doc.Find("[class]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
			class, _ := s.Attr("class")
			if authorClassPattern.MatchString(class) {
				e.Author = htmldoc.Text(s)
				return false
			}
			return true
		})
	}

	if v, ok := doc.MetaPropertyContent("article:published_time"); ok {
		e.PublishedDate = v
	} else if t, ok := doc.Find("time[datetime]").First().Attr("datetime"); ok {
		e.PublishedDate = t
	}
	if v, ok := doc.MetaPropertyContent("article:modified_time"); ok {
		e.ModifiedDate = v
	}

	seen := make(map[string]bool)
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		if trustHrefPattern.MatchString(href) && !seen[href] {
			seen[href] = true
			e.TrustPageLinks = append(e.TrustPageLinks, href)
		}
	})

	e.HasEmail = emailPattern.MatchString(bodyText)
	e.HasPhone = phonePattern.MatchString(bodyText)
	e.HasAddress = doc.Find("address").Length() > 0

	credSeen := make(map[string]bool)
	for _, m := range patterns.ExpertMarkers(bodyText, -1) {
		text := strings.TrimSpace(m.Text)
		if text == "" || credSeen[strings.ToLower(text)] {
			continue
		}
		credSeen[strings.ToLower(text)] = true
		e.Credentials = append(e.Credentials, text)
		if len(e.Credentials) >= 10 {
			break
		}
	}

	return e
}
