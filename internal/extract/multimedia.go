package extract

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/siteprobe/siteprobe/internal/htmldoc"
	"github.com/siteprobe/siteprobe/internal/jobtypes"
)

var (
	videoIframePattern = regexp.MustCompile(`(?i)(youtube\.com|youtu\.be|vimeo\.com|wistia\.(com|net))`)
	audioIframePattern = regexp.MustCompile(`(?i)(open\.spotify\.com|podcasts\.apple\.com|anchor\.fm|soundcloud\.com)`)
	infographicPattern = regexp.MustCompile(`(?i)infographic`)
)

// Multimedia detects embedded videos/audio/PDFs and infographic images
// (spec §4.3 Multimedia).
func Multimedia(doc *htmldoc.Document) *jobtypes.MultimediaData {
	md := &jobtypes.MultimediaData{}

	doc.Find("iframe[src]").Each(func(_ int, s *goquery.Selection) {
		src, _ := s.Attr("src")
		switch {
		case videoIframePattern.MatchString(src):
			md.Videos = append(md.Videos, jobtypes.VideoRef{Platform: videoPlatform(src), URL: src})
		case audioIframePattern.MatchString(src):
			md.AudioCount++
		}
	})
	doc.Find("video").Each(func(_ int, s *goquery.Selection) {
		src, _ := s.Attr("src")
		if src == "" {
			src, _ = s.Find("source").First().Attr("src")
		}
		md.Videos = append(md.Videos, jobtypes.VideoRef{Platform: "html5", URL: src})
	})
	md.AudioCount += doc.Find("audio").Length()

	doc.Find(`a[href]`).Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		if strings.HasSuffix(strings.ToLower(href), ".pdf") {
			md.PDFLinks = append(md.PDFLinks, href)
		}
	})

	doc.Find("img").Each(func(_ int, s *goquery.Selection) {
		alt, _ := s.Attr("alt")
		src, _ := s.Attr("src")
		class, _ := s.Attr("class")
		if infographicPattern.MatchString(alt) || infographicPattern.MatchString(src) || infographicPattern.MatchString(class) {
			md.InfographicCount++
		}
	})

	return md
}

func videoPlatform(src string) string {
	lower := strings.ToLower(src)
	switch {
	case strings.Contains(lower, "youtube") || strings.Contains(lower, "youtu.be"):
		return "youtube"
	case strings.Contains(lower, "vimeo"):
		return "vimeo"
	case strings.Contains(lower, "wistia"):
		return "wistia"
	default:
		return "unknown"
	}
}
