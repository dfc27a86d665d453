package extract

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/siteprobe/siteprobe/internal/htmldoc"
	"github.com/siteprobe/siteprobe/internal/jobtypes"
)

// Headings builds the per-level heading counts, the ordered heading list,
// and hierarchy-issue flags (spec §4.3 Heading analysis).
func Headings(doc *htmldoc.Document) *jobtypes.HeadingAnalysis {
	ha := &jobtypes.HeadingAnalysis{
		CountsByLevel: make(map[string]int),
	}

	var entries []jobtypes.HeadingEntry
	var levels []int

	doc.Find("h1, h2, h3, h4, h5, h6").Each(func(_ int, s *goquery.Selection) {
		level, _ := strconv.Atoi(strings.TrimPrefix(goquery.NodeName(s), "h"))
		text := htmldoc.Text(s)
		wordCount := len(strings.Fields(text))
		entries = append(entries, jobtypes.HeadingEntry{Level: level, Text: text, WordCount: wordCount})
		levels = append(levels, level)
		ha.CountsByLevel[fmt.Sprintf("h%d", level)]++
	})
	ha.Headings = entries

	h1Count := ha.CountsByLevel["h1"]
	if h1Count == 0 {
		ha.Issues = append(ha.Issues, "missing_h1")
	} else if h1Count > 1 {
		ha.Issues = append(ha.Issues, "multiple_h1")
	}

	prev := 0
	for _, lvl := range levels {
		if prev != 0 && lvl > prev+1 {
			ha.Issues = append(ha.Issues, fmt.Sprintf("skipped_level_h%d_to_h%d", prev, lvl))
		}
		prev = lvl
	}

	if len(entries) > 0 {
		total := 0
		for _, e := range entries {
			total += len(e.Text)
		}
		ha.AvgLength = round1(float64(total) / float64(len(entries)))
	}

	return ha
}
