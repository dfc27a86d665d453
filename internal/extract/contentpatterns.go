package extract

import (
	"regexp"
	"strings"

	"github.com/siteprobe/siteprobe/internal/jobtypes"
	"github.com/siteprobe/siteprobe/internal/patterns"
)

const maxPatternExamples = 5

var (
	definitionPattern = regexp.MustCompile(
		`(?i)\b\w[\w\s]{0,40}\s(is|are|refers to|means|defined as)\s[^.!?]{3,200}[.!?]`)
	comparisonPattern = regexp.MustCompile(
		`(?i)\b(vs\.?|versus|compared to|difference between)\b[^.!?]{0,200}`)
	tripleVerbPattern = regexp.MustCompile(
		`(?i)\b\w[\w\s]{0,30}\s(is|has|provides|offers|includes|supports|enables|requires)\s[^.!?]{3,150}[.!?]`)
)

// ContentPatterns counts and samples the fixed signal set (spec §4.3 Content patterns).
func ContentPatterns(bodyText string, headingTexts []string) *jobtypes.ContentPatterns {
	cp := &jobtypes.ContentPatterns{}

	questions := patterns.Questions(bodyText, -1)
	for _, h := range headingTexts {
		if strings.HasSuffix(strings.TrimSpace(h), "?") {
			questions = append(questions, patterns.Match{Text: h})
		}
	}
	cp.Questions = toPatternCount(matchTexts(questions))

	cp.Definitions = toPatternCount(regexMatches(definitionPattern, bodyText))
	cp.Comparisons = toPatternCount(regexMatches(comparisonPattern, bodyText))
	cp.Statistics = toPatternCount(matchTexts(patterns.Statistics(bodyText, -1)))
	cp.Citations = toPatternCount(matchTexts(patterns.Citations(bodyText, -1)))
	cp.ExpertMentions = toPatternCount(matchTexts(patterns.ExpertMarkers(bodyText, -1)))
	cp.SemanticTriples = toPatternCount(regexMatches(tripleVerbPattern, bodyText))

	return cp
}

func matchTexts(matches []patterns.Match) []string {
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		out = append(out, m.Text)
	}
	return out
}

func regexMatches(re *regexp.Regexp, text string) []string {
	return re.FindAllString(text, -1)
}

func toPatternCount(texts []string) jobtypes.PatternCount {
	pc := jobtypes.PatternCount{Count: len(texts)}
	for i, t := range texts {
		if i >= maxPatternExamples {
			break
		}
		pc.Examples = append(pc.Examples, jobtypes.PatternExample{Text: strings.TrimSpace(t)})
	}
	return pc
}
