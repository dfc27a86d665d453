package extract

import (
	"github.com/PuerkitoBio/goquery"

	"github.com/siteprobe/siteprobe/internal/htmldoc"
	"github.com/siteprobe/siteprobe/internal/jobtypes"
)

// Structure counts structural elements: lists, tables, blockquotes,
// pre/inline code, definition lists, accordions, figures (spec §4.3
// Structure elements).
func Structure(doc *htmldoc.Document) *jobtypes.StructureElements {
	se := &jobtypes.StructureElements{}

	se.OrderedLists = doc.Find("ol").Length()
	se.UnorderedLists = doc.Find("ul").Length()
	se.ListItemsTotal = doc.Find("li").Length()

	doc.Find("table").Each(func(_ int, t *goquery.Selection) {
		rows := t.Find("tr")
		cells := t.Find("td, th")
		info := jobtypes.TableInfo{
			Rows:      rows.Length(),
			Cells:     cells.Length(),
			HasHeader: t.Find("th").Length() > 0 || t.Find("thead").Length() > 0,
		}
		info.Caption = htmldoc.Text(t.Find("caption").First())
		se.Tables = append(se.Tables, info)
	})

	doc.Find("blockquote").Each(func(_ int, b *goquery.Selection) {
		se.Blockquotes = append(se.Blockquotes, htmldoc.Text(b))
	})

	se.PreBlocks = doc.Find("pre").Length()
	se.InlineCode = doc.Find("code").Length()
	se.DefinitionLists = doc.Find("dl").Length()
	se.DefinitionTerms = doc.Find("dt").Length()
	se.Details = doc.Find("details").Length()

	doc.Find("figure").Each(func(_ int, f *goquery.Selection) {
		if f.Find("figcaption").Length() > 0 {
			se.FiguresWithCaption++
		} else {
			se.FiguresNoCaption++
		}
	})

	return se
}
