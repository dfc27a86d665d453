package extract

import (
	"math"
	"regexp"
	"strings"
	"unicode"

	"github.com/montanaflynn/stats"

	"github.com/siteprobe/siteprobe/internal/jobtypes"
)

var (
	sentenceSplitPattern = regexp.MustCompile(`[.!?]+(\s+|$)`)
	wordPattern          = regexp.MustCompile(`[A-Za-z']+`)
	vowelGroupPattern    = regexp.MustCompile(`(?i)[aeiouy]+`)
)

// Readability computes the standard readability battery plus average
// sentence and word lengths (spec §4.3 Readability).
func Readability(bodyText string) *jobtypes.Readability {
	words := wordPattern.FindAllString(bodyText, -1)
	sentences := splitSentences(bodyText)

	wordCount := len(words)
	sentenceCount := len(sentences)
	if sentenceCount == 0 {
		sentenceCount = 1
	}

	syllableCount := 0
	difficultWords := 0
	wordLengths := make([]float64, 0, wordCount)
	for _, w := range words {
		syl := countSyllables(w)
		syllableCount += syl
		wordLengths = append(wordLengths, float64(len(w)))
		if syl >= 3 {
			difficultWords++
		}
	}

	r := &jobtypes.Readability{
		WordCount:     wordCount,
		SentenceCount: sentenceCount,
		SyllableCount: syllableCount,
	}

	if wordCount == 0 {
		return r
	}

	avgSentenceLen := float64(wordCount) / float64(sentenceCount)
	avgSyllablesPerWord := float64(syllableCount) / float64(wordCount)
	avgWordLen, _ := stats.Mean(wordLengths)

	r.AvgSentenceLength = round1(avgSentenceLen)
	r.AvgWordLength = round1(avgWordLen)
	r.DifficultWordsCount = difficultWords
	r.DifficultWordsPercent = round1(100 * float64(difficultWords) / float64(wordCount))
	r.ReadingTimeMinutes = math.Round(float64(wordCount)/225*10) / 10

	r.FleschReadingEase = round1(206.835 - 1.015*avgSentenceLen - 84.6*avgSyllablesPerWord)
	r.FleschKincaidGrade = round1(0.39*avgSentenceLen + 11.8*avgSyllablesPerWord - 15.59)
	r.GunningFog = round1(0.4 * (avgSentenceLen + 100*float64(difficultWords)/float64(wordCount)))

	if sentenceCount >= 1 {
		r.SMOGIndex = round1(1.0430*math.Sqrt(float64(difficultWords)*(30.0/float64(sentenceCount))) + 3.1291)
	}

	letters := 0
	for _, w := range words {
		letters += len(w)
	}
	lPer100 := float64(letters) / float64(wordCount) * 100
	sPer100 := float64(sentenceCount) / float64(wordCount) * 100
	r.ColemanLiauIndex = round1(0.0588*lPer100 - 0.296*sPer100 - 15.8)

	charCount := 0
	for _, r2 := range bodyText {
		if !unicode.IsSpace(r2) {
			charCount++
		}
	}
	r.AutomatedReadabilityIndex = round1(4.71*(float64(charCount)/float64(wordCount)) + 0.5*avgSentenceLen - 21.43)

	return r
}

func splitSentences(text string) []string {
	parts := sentenceSplitPattern.Split(strings.TrimSpace(text), -1)
	var out []string
	for _, p := range parts {
		if strings.TrimSpace(p) != "" {
			out = append(out, p)
		}
	}
	return out
}

// countSyllables is a heuristic vowel-group counter, not a dictionary lookup.
func countSyllables(word string) int {
	word = strings.ToLower(word)
	groups := vowelGroupPattern.FindAllString(word, -1)
	n := len(groups)
	if strings.HasSuffix(word, "e") && n > 1 {
		n--
	}
	if n < 1 {
		n = 1
	}
	return n
}
