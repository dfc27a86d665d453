package extract

import (
	"regexp"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"

	"github.com/siteprobe/siteprobe/internal/htmldoc"
	"github.com/siteprobe/siteprobe/internal/jobtypes"
)

const minMainContentChars = 200

var (
	mainContainerPattern = regexp.MustCompile(
		`(?i)^(article|post|entry|content|main)(-?(body|content|text|area))?$`)
	boilerplatePattern = regexp.MustCompile(
		`(?i)(nav|menu|sidebar|footer|header|comment|share|social|related|widget|ad|promo|banner|cookie|popup|modal)`)
)

// Body extracts body_text (all visible text, scripts/styles/iframes removed,
// whitespace collapsed) and main_content via cascading strategies (spec §4.3).
func Body(doc *htmldoc.Document, pageURL string) *jobtypes.BodyContent {
	bc := &jobtypes.BodyContent{}

	full := doc.Find("html").Clone()
	full.Find("script, style, iframe, noscript").Remove()
	bc.BodyText = collapseWhitespace(full.Text())

	if main, strategy := mainContentSelection(doc); main != nil {
		html, err := main.Html()
		if err == nil {
			bc.MainContent = collapseWhitespace(main.Text())
			bc.MainContentStrategy = strategy
			if converter := md.NewConverter(pageURL, true, nil); converter != nil {
				if converted, err := converter.ConvertString(html); err == nil {
					bc.MainContentMarkdown = strings.TrimSpace(converted)
				}
			}
		}
	}

	if bc.MainContent == "" {
		bc.MainContent = bc.BodyText
		bc.MainContentStrategy = "fallback_body_text"
	}

	return bc
}

// mainContentSelection runs the three cascading strategies and returns the
// winning selection plus the strategy name that produced it.
func mainContentSelection(doc *htmldoc.Document) (*goquery.Selection, string) {
	if sel := strategyMainArticle(doc); sel != nil && len(strings.TrimSpace(sel.Text())) >= minMainContentChars {
		return sel, "main_article_tag"
	}
	if sel := strategyHeuristicContainer(doc); sel != nil && len(strings.TrimSpace(sel.Text())) >= minMainContentChars {
		return sel, "heuristic_container"
	}
	if sel := strategyBodyMinusBoilerplate(doc); sel != nil {
		return sel, "body_minus_boilerplate"
	}
	return nil, ""
}

// strategyMainArticle: <main>/<article>, nested nav/aside stripped.
func strategyMainArticle(doc *htmldoc.Document) *goquery.Selection {
	sel := doc.Find("main, article").First()
	if sel.Length() == 0 {
		return nil
	}
	clone := sel.Clone()
	clone.Find("nav, aside").Remove()
	return clone
}

// strategyHeuristicContainer: first element whose class/id/role/itemprop
// matches the article|post|entry|content|main heuristic pattern.
func strategyHeuristicContainer(doc *htmldoc.Document) *goquery.Selection {
	var found *goquery.Selection
	doc.Find("[class],[id],[role],[itemprop]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if roleMain, _ := s.Attr("role"); roleMain == "main" {
			found = s
			return false
		}
		if prop, _ := s.Attr("itemprop"); prop == "articleBody" {
			found = s
			return false
		}
		for _, attr := range []string{"class", "id"} {
			val, ok := s.Attr(attr)
			if !ok {
				continue
			}
			for _, token := range strings.Fields(val) {
				if mainContainerPattern.MatchString(token) {
					found = s
					return false
				}
			}
		}
		return true
	})
	if found == nil {
		return nil
	}
	clone := found.Clone()
	clone.Find("nav, aside").Remove()
	return clone
}

// strategyBodyMinusBoilerplate: body minus structural tags and boilerplate-matched elements.
func strategyBodyMinusBoilerplate(doc *htmldoc.Document) *goquery.Selection {
	body := doc.Find("body").First()
	if body.Length() == 0 {
		return nil
	}
	clone := body.Clone()
	clone.Find("nav, header, footer, aside, form, script, style, iframe, noscript").Remove()
	clone.Find("[class],[id]").Each(func(_ int, s *goquery.Selection) {
		class, _ := s.Attr("class")
		id, _ := s.Attr("id")
		if boilerplatePattern.MatchString(class) || boilerplatePattern.MatchString(id) {
			s.Remove()
		}
	})
	return clone
}

var whitespacePattern = regexp.MustCompile(`\s+`)

func collapseWhitespace(s string) string {
	return strings.TrimSpace(whitespacePattern.ReplaceAllString(s, " "))
}
