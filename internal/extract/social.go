package extract

import (
	"github.com/siteprobe/siteprobe/internal/htmldoc"
	"github.com/siteprobe/siteprobe/internal/jobtypes"
)

// Social extracts standard Open Graph and Twitter Card tags (spec §4.3
// Open Graph / Twitter).
func Social(doc *htmldoc.Document) *jobtypes.SocialTags {
	st := &jobtypes.SocialTags{}
	st.OGTitle, _ = doc.MetaPropertyContent("og:title")
	st.OGDescription, _ = doc.MetaPropertyContent("og:description")
	st.OGImage, _ = doc.MetaPropertyContent("og:image")
	st.OGType, _ = doc.MetaPropertyContent("og:type")
	st.OGURL, _ = doc.MetaPropertyContent("og:url")
	st.TwitterCard, _ = doc.MetaContent("twitter:card")
	st.TwitterTitle, _ = doc.MetaContent("twitter:title")
	st.TwitterImage, _ = doc.MetaContent("twitter:image")
	return st
}
