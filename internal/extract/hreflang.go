package extract

import (
	"github.com/PuerkitoBio/goquery"

	"github.com/siteprobe/siteprobe/internal/htmldoc"
	"github.com/siteprobe/siteprobe/internal/jobtypes"
)

// Hreflang collects all alternate-language link pairs (spec §4.3 Hreflang).
func Hreflang(doc *htmldoc.Document) *jobtypes.HreflangData {
	hd := &jobtypes.HreflangData{}
	doc.Find(`link[rel="alternate"][hreflang]`).Each(func(_ int, s *goquery.Selection) {
		lang, _ := s.Attr("hreflang")
		href, _ := s.Attr("href")
		if lang == "" || href == "" {
			return
		}
		hd.Entries = append(hd.Entries, jobtypes.HreflangEntry{Hreflang: lang, URL: href})
		if lang == "x-default" {
			hd.HasXDefault = true
		}
	})
	return hd
}
