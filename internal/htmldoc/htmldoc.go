// Package htmldoc is the shared DOM facade the extraction pipeline parses
// every page through, grounded on the teacher's parser.DOMTraverser and
// parser.XPathParser (internal/parser/dom.go, internal/parser/xpath.go)
// collapsed into one read-only document wrapper.
package htmldoc

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html"
)

// Document wraps a parsed page, exposing both CSS-selector (goquery) and
// XPath (htmlquery) queries over the same underlying node tree.
type Document struct {
	gq   *goquery.Document
	root *html.Node
	raw  []byte
}

// Parse builds a Document from raw HTML bytes.
func Parse(body []byte) (*Document, error) {
	root, err := html.Parse(strings.NewReader(string(body)))
	if err != nil {
		return nil, err
	}
	gq, err := goquery.NewDocumentFromNode(cloneNode(root))
	if err != nil {
		return nil, err
	}
	return &Document{gq: gq, root: root, raw: body}, nil
}

func cloneNode(n *html.Node) *html.Node {
	// goquery.NewDocumentFromNode takes ownership of the node tree; html.Parse
	// is only called once above, so the same tree is shared between the
	// goquery and htmlquery views (both are read-only over it).
	return n
}

// Find runs a CSS selector, returning the goquery selection.
func (d *Document) Find(selector string) *goquery.Selection {
	return d.gq.Find(selector)
}

// Root returns the underlying parsed node tree for XPath queries.
func (d *Document) Root() *html.Node {
	return d.root
}

// XPath runs an XPath expression and returns matching nodes.
func (d *Document) XPath(expr string) ([]*html.Node, error) {
	return htmlquery.QueryAll(d.root, expr)
}

// HasAncestorMatching reports whether node n has an ancestor satisfying the
// given XPath ancestor-axis test, e.g. "ancestor::nav" or "ancestor::*[@role='navigation']".
func (d *Document) HasAncestorMatching(n *html.Node, ancestorExpr string) bool {
	nodes, err := htmlquery.QueryAll(n, ancestorExpr)
	return err == nil && len(nodes) > 0
}

// Text returns trimmed visible text of a selection.
func Text(sel *goquery.Selection) string {
	return strings.TrimSpace(sel.Text())
}

// InnerText returns trimmed visible text of an htmlquery node.
func InnerText(n *html.Node) string {
	return strings.TrimSpace(htmlquery.InnerText(n))
}

// OuterHTML renders a node (including itself) back to HTML.
func OuterHTML(n *html.Node) string {
	return htmlquery.OutputHTML(n, true)
}

// Title returns the document's <title> text.
func (d *Document) Title() string {
	return Text(d.gq.Find("title").First())
}

// MetaContent returns the content attribute of the first meta[name=name] match.
func (d *Document) MetaContent(name string) (string, bool) {
	return d.gq.Find(`meta[name="` + name + `"]`).Attr("content")
}

// MetaPropertyContent returns the content attribute of the first meta[property=property] match.
func (d *Document) MetaPropertyContent(property string) (string, bool) {
	return d.gq.Find(`meta[property="` + property + `"]`).Attr("content")
}

// LinkHref returns the href of the first link[rel=rel] match.
func (d *Document) LinkHref(rel string) (string, bool) {
	return d.gq.Find(`link[rel="` + rel + `"]`).Attr("href")
}

// RawBody returns the original HTML bytes the document was built from.
func (d *Document) RawBody() []byte {
	return d.raw
}
