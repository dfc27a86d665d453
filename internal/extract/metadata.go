package extract

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/siteprobe/siteprobe/internal/htmldoc"
	"github.com/siteprobe/siteprobe/internal/jobtypes"
)

// Metadata extracts title/description/canonical/robots/lang/viewport/charset
// and the first h1 plus all h2/h3 texts (spec §4.3 Metadata).
func Metadata(doc *htmldoc.Document) *jobtypes.Metadata {
	m := &jobtypes.Metadata{
		Title: doc.Title(),
	}
	m.MetaDescription, _ = doc.MetaContent("description")
	m.MetaRobots, _ = doc.MetaContent("robots")
	m.Viewport, _ = doc.MetaContent("viewport")
	m.CanonicalURL, _ = doc.LinkHref("canonical")

	if lang, ok := doc.Find("html").First().Attr("lang"); ok {
		m.Lang = lang
	}
	if charset, ok := doc.Find("meta[charset]").First().Attr("charset"); ok {
		m.Charset = charset
	} else if ct, ok := doc.MetaContent("content-type"); ok && strings.Contains(strings.ToLower(ct), "charset=") {
		parts := strings.SplitN(strings.ToLower(ct), "charset=", 2)
		if len(parts) == 2 {
			m.Charset = strings.TrimSpace(parts[1])
		}
	}

	m.H1 = htmldoc.Text(doc.Find("h1").First())
	doc.Find("h2").Each(func(_ int, s *goquery.Selection) {
		m.H2 = append(m.H2, htmldoc.Text(s))
	})
	doc.Find("h3").Each(func(_ int, s *goquery.Selection) {
		m.H3 = append(m.H3, htmldoc.Text(s))
	})

	return m
}
