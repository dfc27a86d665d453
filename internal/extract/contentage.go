package extract

import (
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/siteprobe/siteprobe/internal/htmldoc"
	"github.com/siteprobe/siteprobe/internal/jobtypes"
)

var metaDateNames = []string{"date", "pubdate", "dc.date", "sailthru.date", "last-modified", "lastmod", "modified", "revised"}

var modifiedHintPattern = func(s string) bool {
	lower := strings.ToLower(s)
	return strings.Contains(lower, "modified") || strings.Contains(lower, "updated") || strings.Contains(lower, "edit")
}

// ContentAge resolves published/modified dates by source priority: JSON-LD,
// Open Graph, meta tags, HTTP headers, <time datetime>, CSS-selector
// heuristics (spec §4.3 Content age (final)).
func ContentAge(doc *htmldoc.Document, schema *jobtypes.SchemaData, responseHeaders http.Header, now time.Time) *jobtypes.ContentAge {
	ca := &jobtypes.ContentAge{}

	resolvePublished := []func() (string, string){
		func() (string, string) { return schema.DatePublished, "json_ld" },
		func() (string, string) { v, _ := doc.MetaPropertyContent("article:published_time"); return v, "open_graph" },
		func() (string, string) { return firstMeta(doc, metaDateNames), "meta_tag" },
		func() (string, string) { return responseHeaders.Get("Date"), "http_header" },
		func() (string, string) { return timeElementDate(doc, false), "time_element" },
		func() (string, string) { return cssHeuristicDate(doc, publishedSelectors), "css_heuristic" },
	}
	for _, fn := range resolvePublished {
		if v, source := fn(); v != "" {
			ca.Published = v
			ca.PublishedSource = source
			break
		}
	}

	resolveModified := []func() (string, string){
		func() (string, string) { return schema.DateModified, "json_ld" },
		func() (string, string) { v, _ := doc.MetaPropertyContent("article:modified_time"); return v, "open_graph" },
		func() (string, string) { return firstMeta(doc, []string{"last-modified", "lastmod", "modified", "revised"}), "meta_tag" },
		func() (string, string) { return responseHeaders.Get("Last-Modified"), "http_header" },
		func() (string, string) { return timeElementDate(doc, true), "time_element" },
		func() (string, string) { return cssHeuristicDate(doc, modifiedSelectors), "css_heuristic" },
	}
	for _, fn := range resolveModified {
		if v, source := fn(); v != "" {
			ca.Modified = v
			ca.ModifiedSource = source
			break
		}
	}

	if ca.Published == "" && ca.Modified != "" {
		ca.Published = ca.Modified
		ca.PublishedSource = "inferred"
	}

	if ca.Published != "" {
		if t, ok := parseDateRobust(ca.Published); ok {
			days := int(now.Sub(t).Hours() / 24)
			ca.AgeDays = &days
		}
	}

	return ca
}

func firstMeta(doc *htmldoc.Document, names []string) string {
	for _, name := range names {
		if v, ok := doc.MetaContent(name); ok && v != "" {
			return v
		}
	}
	return ""
}

// timeElementDate reads <time datetime>, classifying it as modified only
// when the element's class/itemprop or its parent's class signals
// "modified"/"updated"/"edit".
func timeElementDate(doc *htmldoc.Document, wantModified bool) string {
	var result string
	doc.Find("time[datetime]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		datetime, _ := s.Attr("datetime")
		if datetime == "" {
			return true
		}
		class, _ := s.Attr("class")
		prop, _ := s.Attr("itemprop")
		parentClass, _ := s.Parent().Attr("class")
		isModified := modifiedHintPattern(class) || modifiedHintPattern(prop) || modifiedHintPattern(parentClass)
		if isModified == wantModified {
			result = datetime
			return false
		}
		return true
	})
	return result
}

var publishedSelectors = []string{
	".published", ".post-date", "[itemprop=\"datePublished\"]", ".entry-date", ".date-published",
}
var modifiedSelectors = []string{
	".updated", ".post-modified", "[itemprop=\"dateModified\"]", ".date-modified", ".last-updated",
}

func cssHeuristicDate(doc *htmldoc.Document, selectors []string) string {
	for _, sel := range selectors {
		s := doc.Find(sel).First()
		if s.Length() == 0 {
			continue
		}
		if v, ok := s.Attr("datetime"); ok && v != "" {
			return v
		}
		if v, ok := s.Attr("content"); ok && v != "" {
			return v
		}
		if text := htmldoc.Text(s); text != "" {
			return text
		}
	}
	return ""
}
