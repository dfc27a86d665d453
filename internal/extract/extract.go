// Package extract assembles the full page-result extraction pipeline (spec
// §4.3): metadata, body/main-content, links, anchors, schema, social tags,
// readability, content patterns, headings, structure, E-E-A-T, outbound
// links, hreflang, temporal signals, multimedia, AI crawlability, and final
// content-age resolution. Every section is isolated so a single failing
// analyzer records a section error instead of aborting the page result,
// grounded on the teacher's per-parser error isolation in
// internal/pipeline/pipeline.go.
package extract

import (
	"fmt"
	"net/http"
	"time"

	"github.com/siteprobe/siteprobe/internal/htmldoc"
	"github.com/siteprobe/siteprobe/internal/jobtypes"
)

// Input bundles everything the pipeline needs for one fetched page (spec §4.3 input).
type Input struct {
	URL             string
	RawHTML         []byte
	StatusCode      int
	ResponseHeaders http.Header
	Depth           int
	Referrer        string
	PageSizeBytes   int
	Now             time.Time
}

// Run executes every extractor section over one page, isolating failures
// per section into PageResult.SectionErrors.
func Run(in Input) *jobtypes.PageResult {
	status := in.StatusCode
	pr := &jobtypes.PageResult{
		URL:           in.URL,
		StatusCode:    &status,
		Depth:         in.Depth,
		Referrer:      in.Referrer,
		CrawledAt:     in.Now.UTC(),
		PageSizeByte:  in.PageSizeBytes,
		SectionErrors: make(map[string]string),
	}

	doc, err := htmldoc.Parse(in.RawHTML)
	if err != nil {
		pr.SectionErrors["document"] = err.Error()
		return pr
	}

	run(pr, "metadata", func() error {
		pr.Metadata = Metadata(doc)
		return nil
	})

	var bodyText string
	run(pr, "body", func() error {
		pr.Body = Body(doc, in.URL)
		bodyText = pr.Body.BodyText
		return nil
	})

	run(pr, "links", func() error {
		links, anchors := Links(doc, in.URL)
		pr.Links = links
		pr.Anchors = anchors
		return nil
	})

	run(pr, "schema", func() error {
		pr.Schema = Schema(doc)
		return nil
	})

	run(pr, "social_tags", func() error {
		pr.SocialTags = Social(doc)
		return nil
	})

	run(pr, "readability", func() error {
		pr.Readability = Readability(bodyText)
		return nil
	})

	run(pr, "headings", func() error {
		pr.Headings = Headings(doc)
		return nil
	})

	run(pr, "content_patterns", func() error {
		var headingTexts []string
		if pr.Headings != nil {
			for _, h := range pr.Headings.Headings {
				headingTexts = append(headingTexts, h.Text)
			}
		}
		pr.Patterns = ContentPatterns(bodyText, headingTexts)
		return nil
	})

	run(pr, "structure", func() error {
		pr.Structure = Structure(doc)
		return nil
	})

	run(pr, "eeat", func() error {
		pr.EEAT = EEAT(doc, bodyText)
		return nil
	})

	run(pr, "outbound", func() error {
		pr.Outbound = Outbound(doc, in.URL)
		return nil
	})

	run(pr, "hreflang", func() error {
		pr.Hreflang = Hreflang(doc)
		return nil
	})

	var publishedAt, modifiedAt *time.Time
	run(pr, "content_age", func() error {
		pr.ContentAge = ContentAge(doc, safeSchema(pr.Schema), in.ResponseHeaders, in.Now)
		if t, ok := parseDateRobust(pr.ContentAge.Published); ok {
			publishedAt = &t
		}
		if t, ok := parseDateRobust(pr.ContentAge.Modified); ok {
			modifiedAt = &t
		}
		return nil
	})

	run(pr, "temporal", func() error {
		pr.Temporal = Temporal(bodyText, publishedAt, modifiedAt, in.ResponseHeaders.Get("Last-Modified"), in.Now)
		return nil
	})

	run(pr, "multimedia", func() error {
		pr.Multimedia = Multimedia(doc)
		return nil
	})

	run(pr, "ai_crawlability", func() error {
		metaRobots := ""
		if pr.Metadata != nil {
			metaRobots = pr.Metadata.MetaRobots
		}
		pr.Crawlability = Crawlability(doc, bodyText, metaRobots)
		return nil
	})

	return pr
}

func safeSchema(sd *jobtypes.SchemaData) *jobtypes.SchemaData {
	if sd == nil {
		return &jobtypes.SchemaData{}
	}
	return sd
}

// run executes one extractor section, converting a panic or error into a
// recorded SectionError without aborting the rest of the pipeline.
func run(pr *jobtypes.PageResult, section string, fn func() error) {
	defer func() {
		if r := recover(); r != nil {
			pr.SectionErrors[section] = fmt.Sprintf("panic: %v", r)
		}
	}()
	if err := fn(); err != nil {
		pr.SectionErrors[section] = err.Error()
	}
}
