package extract

import (
	"regexp"

	"github.com/PuerkitoBio/goquery"

	"github.com/siteprobe/siteprobe/internal/htmldoc"
	"github.com/siteprobe/siteprobe/internal/jobtypes"
)

var customElementPattern = regexp.MustCompile(`^[a-z]+-[a-z-]+$`)

var jsFrameworkSignals = map[string]*regexp.Regexp{
	"angular": regexp.MustCompile(`(?i)ng-app|angular\.js|\[ng-version\]`),
	"react":   regexp.MustCompile(`(?i)data-reactroot|react-dom|_next/static`),
	"vue":     regexp.MustCompile(`(?i)data-v-app|vue\.js|__vue__`),
	"ember":   regexp.MustCompile(`(?i)ember-view|ember\.js`),
	"next":    regexp.MustCompile(`(?i)__next|_next/static`),
	"nuxt":    regexp.MustCompile(`(?i)__nuxt|_nuxt/`),
	"jquery":  regexp.MustCompile(`(?i)jquery(\.min)?\.js`),
}

// Crawlability computes text/markup density and renderability signals
// (spec §4.3 AI crawlability).
func Crawlability(doc *htmldoc.Document, bodyText string, metaRobots string) *jobtypes.AICrawlability {
	raw := doc.RawBody()
	ac := &jobtypes.AICrawlability{
		HTMLSizeBytes: len(raw),
		TextSizeBytes: len(bodyText),
		MetaRobots:    metaRobots,
	}
	if ac.HTMLSizeBytes > 0 {
		ac.ContentRatio = round1(float64(ac.TextSizeBytes) / float64(ac.HTMLSizeBytes))
	}

	doc.Find("script").Each(func(_ int, s *goquery.Selection) {
		if src, ok := s.Attr("src"); ok && src != "" {
			ac.ExternalScripts++
		} else {
			ac.InlineScripts++
		}
	})
	ac.HasNoscript = doc.Find("noscript").Length() > 0
	ac.IframeCount = doc.Find("iframe").Length()
	ac.CanvasCount = doc.Find("canvas").Length()

	doc.Find("img").Each(func(_ int, s *goquery.Selection) {
		_, hasSrc := s.Attr("src")
		_, hasLoading := s.Attr("loading")
		_, hasDataSrc := s.Attr("data-src")
		if hasLoading {
			if v, _ := s.Attr("loading"); v == "lazy" {
				ac.LazyLoadedImages++
			}
		}
		if hasDataSrc && !hasSrc {
			ac.DataSrcOnlyImages++
		}
	})

	doc.Find("*").Each(func(_ int, s *goquery.Selection) {
		tag := goquery.NodeName(s)
		if customElementPattern.MatchString(tag) {
			ac.CustomElementCount++
		}
	})

	rawStr := string(raw)
	for name, re := range jsFrameworkSignals {
		if re.MatchString(rawStr) {
			ac.JSFrameworks = append(ac.JSFrameworks, name)
		}
	}

	return ac
}
