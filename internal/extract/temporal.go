package extract

import (
	"net/http"
	"regexp"
	"sort"
	"strconv"
	"time"

	"github.com/araddon/dateparse"

	"github.com/siteprobe/siteprobe/internal/jobtypes"
)

var (
	yearPattern       = regexp.MustCompile(`\b(19|20)\d{2}\b`)
	relativePhrase    = regexp.MustCompile(`(?i)\b(today|yesterday|this (week|month|year)|last (week|month|year)|next (week|month|year))\b`)
	asOfPattern       = regexp.MustCompile(`(?i)\bas of\s+[^.,;\n]{3,40}`)
	monthYearPattern  = regexp.MustCompile(`(?i)\b(january|february|march|april|may|june|july|august|september|october|november|december)\s+\d{4}\b`)
	outdatedSignalRe  = regexp.MustCompile(`(?i)\b(outdated|obsolete|deprecated|no longer (valid|accurate|supported)|superseded)\b`)
)

// Temporal extracts year/relative-time/outdated signals from body text and
// resolves content-age in days against publish/modify/HTTP dates (spec §4.3
// Temporal signals).
func Temporal(bodyText string, publishedAt, modifiedAt *time.Time, lastModifiedHeader string, now time.Time) *jobtypes.TemporalSignals {
	ts := &jobtypes.TemporalSignals{}

	yearSet := make(map[int]bool)
	for _, y := range yearPattern.FindAllString(bodyText, -1) {
		n, err := strconv.Atoi(y)
		if err == nil {
			yearSet[n] = true
		}
	}
	years := make([]int, 0, len(yearSet))
	for y := range yearSet {
		years = append(years, y)
	}
	sort.Ints(years)
	ts.YearsMentioned = years
	if len(years) > 0 {
		mostRecent := years[len(years)-1]
		oldest := years[0]
		ts.MostRecentYear = &mostRecent
		ts.OldestYear = &oldest
		ts.HasCurrentYear = yearSet[now.Year()]
		ts.HasLastYear = yearSet[now.Year()-1]
	}

	ts.RelativePhrases = relativePhrase.FindAllString(bodyText, -1)
	ts.AsOfStatements = asOfPattern.FindAllString(bodyText, -1)
	ts.MonthYearReferences = monthYearPattern.FindAllString(bodyText, -1)
	ts.OutdatedSignalCount = len(outdatedSignalRe.FindAllString(bodyText, -1))

	if publishedAt != nil {
		days := int(now.Sub(*publishedAt).Hours() / 24)
		ts.ContentAgeDays = &days
	}
	if modifiedAt != nil {
		days := int(now.Sub(*modifiedAt).Hours() / 24)
		ts.LastUpdateAgeDays = &days
	}
	if lastModifiedHeader != "" {
		if t, err := http.ParseTime(lastModifiedHeader); err == nil {
			days := int(now.Sub(t).Hours() / 24)
			ts.LastModifiedAgeDays = &days
		} else if t, err := dateparse.ParseAny(lastModifiedHeader); err == nil {
			days := int(now.Sub(t).Hours() / 24)
			ts.LastModifiedAgeDays = &days
		}
	}

	return ts
}

// parseDateRobust parses a loosely-formatted date string using dateparse,
// used by the content-age resolver across every candidate source.
func parseDateRobust(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	t, err := dateparse.ParseAny(s)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
