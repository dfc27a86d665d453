package extract

import (
	"encoding/json"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/siteprobe/siteprobe/internal/htmldoc"
	"github.com/siteprobe/siteprobe/internal/jobtypes"
)

// Schema parses every application/ld+json block leniently, recursively
// walking @type/@graph nesting, and flags well-known content types
// (spec §4.3 JSON-LD / schema).
func Schema(doc *htmldoc.Document) *jobtypes.SchemaData {
	sd := &jobtypes.SchemaData{}
	types := make(map[string]bool)

	doc.Find(`script[type="application/ld+json"]`).Each(func(_ int, s *goquery.Selection) {
		raw := strings.TrimSpace(s.Text())
		if raw == "" {
			return
		}
		var generic any
		if err := json.Unmarshal([]byte(raw), &generic); err != nil {
			return
		}
		collectJSONLDTypes(generic, types, sd)
	})

	for t := range types {
		sd.Types = append(sd.Types, t)
		switch strings.ToLower(t) {
		case "faqpage":
			sd.HasFAQPage = true
		case "howto":
			sd.HasHowTo = true
		case "article", "newsarticle", "blogposting":
			sd.HasArticle = true
		case "person":
			sd.HasPerson = true
		case "organization":
			sd.HasOrg = true
		case "product":
			sd.HasProduct = true
		case "breadcrumblist":
			sd.HasBreadcrumb = true
		case "webpage":
			sd.HasWebPage = true
		}
	}

	return sd
}

// collectJSONLDTypes recursively walks a parsed JSON-LD document, gathering
// every @type value and pulling out author/date fields from the first
// object that defines them.
func collectJSONLDTypes(node any, types map[string]bool, sd *jobtypes.SchemaData) {
	switch v := node.(type) {
	case []any:
		for _, item := range v {
			collectJSONLDTypes(item, types, sd)
		}
	case map[string]any:
		if t, ok := v["@type"]; ok {
			switch tv := t.(type) {
			case string:
				types[tv] = true
			case []any:
				for _, e := range tv {
					if s, ok := e.(string); ok {
						types[s] = true
					}
				}
			}
		}
		if sd.Author == "" {
			if a, ok := v["author"]; ok {
				sd.Author = authorString(a)
			}
		}
		if sd.DatePublished == "" {
			if d, ok := v["datePublished"].(string); ok {
				sd.DatePublished = d
			}
		}
		if sd.DateModified == "" {
			if d, ok := v["dateModified"].(string); ok {
				sd.DateModified = d
			}
		}
		if sd.DateCreated == "" {
			if d, ok := v["dateCreated"].(string); ok {
				sd.DateCreated = d
			}
		}
		if g, ok := v["@graph"]; ok {
			collectJSONLDTypes(g, types, sd)
		}
		for k, val := range v {
			if k == "@type" || k == "@graph" {
				continue
			}
			switch val.(type) {
			case map[string]any, []any:
				collectJSONLDTypes(val, types, sd)
			}
		}
	}
}

func authorString(v any) string {
	switch a := v.(type) {
	case string:
		return a
	case map[string]any:
		if name, ok := a["name"].(string); ok {
			return name
		}
	case []any:
		if len(a) > 0 {
			return authorString(a[0])
		}
	}
	return ""
}
