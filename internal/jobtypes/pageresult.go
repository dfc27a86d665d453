package jobtypes

import "time"

// PageResult is the extraction output for one fetched URL (spec §3, §4.3).
// Every extractor section is a separate nested struct so that a failed
// section can be replaced wholesale by a SectionError without losing the
// rest of the record.
type PageResult struct {
	// Core
	URL          string    `json:"url"`
	StatusCode   *int      `json:"status_code"`
	Depth        int       `json:"depth"`
	Referrer     string    `json:"referrer,omitempty"`
	CrawledAt    time.Time `json:"crawled_at"`
	PageSizeByte int       `json:"page_size_bytes"`
	Error        string    `json:"error,omitempty"`

	Metadata      *Metadata      `json:"metadata,omitempty"`
	Body          *BodyContent   `json:"body,omitempty"`
	Links         *LinkAnalysis  `json:"links,omitempty"`
	Anchors       *AnchorStats   `json:"anchors,omitempty"`
	Schema        *SchemaData    `json:"schema,omitempty"`
	SocialTags    *SocialTags    `json:"social_tags,omitempty"`
	Readability   *Readability   `json:"readability,omitempty"`
	Patterns      *ContentPatterns `json:"content_patterns,omitempty"`
	Headings      *HeadingAnalysis `json:"headings,omitempty"`
	Structure     *StructureElements `json:"structure,omitempty"`
	EEAT          *EEATSignals   `json:"eeat,omitempty"`
	Outbound      *OutboundLinks `json:"outbound,omitempty"`
	Hreflang      *HreflangData  `json:"hreflang,omitempty"`
	Temporal      *TemporalSignals `json:"temporal,omitempty"`
	Multimedia    *MultimediaData `json:"multimedia,omitempty"`
	Crawlability  *AICrawlability `json:"ai_crawlability,omitempty"`
	ContentAge    *ContentAge    `json:"content_age,omitempty"`

	SectionErrors map[string]string `json:"section_errors,omitempty"`
}

// NewErrorResult builds the synthetic page result for a transport failure
// (spec §4.2 Fetcher, §7 error kind 1): null status, error string, no body.
func NewErrorResult(url string, depth int, referrer string, err error) *PageResult {
	return &PageResult{
		URL:        url,
		StatusCode: nil,
		Depth:      depth,
		Referrer:   referrer,
		CrawledAt:  time.Now().UTC(),
		Error:      err.Error(),
	}
}

type Metadata struct {
	Title           string   `json:"title"`
	MetaDescription string   `json:"meta_description"`
	CanonicalURL    string   `json:"canonical_url"`
	MetaRobots      string   `json:"meta_robots"`
	Lang            string   `json:"lang"`
	Viewport        string   `json:"viewport"`
	Charset         string   `json:"charset"`
	H1              string   `json:"h1"`
	H2              []string `json:"h2"`
	H3              []string `json:"h3"`
}

type BodyContent struct {
	BodyText           string `json:"body_text"`
	MainContent        string `json:"main_content"`
	MainContentStrategy string `json:"main_content_strategy"`
	MainContentMarkdown string `json:"main_content_markdown,omitempty"`
}

type Link struct {
	URL      string `json:"url"`
	Anchor   string `json:"anchor"`
	NoFollow bool   `json:"nofollow"`
}

type RegionLinks struct {
	Count   int    `json:"count"`
	Samples []Link `json:"samples"`
}

type LinkAnalysis struct {
	Internal []Link                 `json:"internal"`
	External []Link                 `json:"external"`
	ByRegion map[string]RegionLinks `json:"by_region"`
}

type AnchorStats struct {
	Empty        int     `json:"empty"`
	Generic      int     `json:"generic"`
	Good         int     `json:"good"`
	EmptyPercent float64 `json:"empty_percent"`
	GenericPct   float64 `json:"generic_percent"`
	GoodPercent  float64 `json:"good_percent"`
}

type SchemaData struct {
	Types          []string   `json:"types"`
	HasFAQPage     bool       `json:"has_faq_page"`
	HasHowTo       bool       `json:"has_how_to"`
	HasArticle     bool       `json:"has_article"`
	HasPerson      bool       `json:"has_person"`
	HasOrg         bool       `json:"has_organization"`
	HasProduct     bool       `json:"has_product"`
	HasBreadcrumb  bool       `json:"has_breadcrumb_list"`
	HasWebPage     bool       `json:"has_web_page"`
	Author         string     `json:"author,omitempty"`
	DatePublished  string     `json:"date_published,omitempty"`
	DateModified   string     `json:"date_modified,omitempty"`
	DateCreated    string     `json:"date_created,omitempty"`
}

type SocialTags struct {
	OGTitle       string `json:"og_title"`
	OGDescription string `json:"og_description"`
	OGImage       string `json:"og_image"`
	OGType        string `json:"og_type"`
	OGURL         string `json:"og_url"`
	TwitterCard   string `json:"twitter_card"`
	TwitterTitle  string `json:"twitter_title"`
	TwitterImage  string `json:"twitter_image"`
}

type Readability struct {
	WordCount                  int     `json:"word_count"`
	SentenceCount               int     `json:"sentence_count"`
	SyllableCount                int     `json:"syllable_count"`
	FleschReadingEase            float64 `json:"flesch_reading_ease"`
	FleschKincaidGrade           float64 `json:"flesch_kincaid_grade"`
	GunningFog                   float64 `json:"gunning_fog"`
	SMOGIndex                    float64 `json:"smog_index"`
	AutomatedReadabilityIndex    float64 `json:"automated_readability_index"`
	ColemanLiauIndex             float64 `json:"coleman_liau_index"`
	AvgSentenceLength            float64 `json:"avg_sentence_length"`
	AvgWordLength                float64 `json:"avg_word_length"`
	DifficultWordsCount          int     `json:"difficult_words_count"`
	DifficultWordsPercent        float64 `json:"difficult_words_percent"`
	ReadingTimeMinutes           float64 `json:"reading_time_minutes"`
}

type PatternExample struct {
	Text string `json:"text"`
}

type PatternCount struct {
	Count    int              `json:"count"`
	Examples []PatternExample `json:"examples"`
}

type ContentPatterns struct {
	Questions      PatternCount `json:"questions"`
	Definitions    PatternCount `json:"definitions"`
	Comparisons    PatternCount `json:"comparisons"`
	Statistics     PatternCount `json:"statistics"`
	Citations      PatternCount `json:"citations"`
	ExpertMentions PatternCount `json:"expert_mentions"`
	SemanticTriples PatternCount `json:"semantic_triples"`
}

type HeadingEntry struct {
	Level     int    `json:"level"`
	Text      string `json:"text"`
	WordCount int    `json:"word_count"`
}

type HeadingAnalysis struct {
	CountsByLevel  map[string]int `json:"counts_by_level"`
	Headings       []HeadingEntry `json:"headings"`
	Issues         []string       `json:"issues"`
	AvgLength      float64        `json:"average_heading_length"`
}

type TableInfo struct {
	Rows        int    `json:"rows"`
	Cells       int    `json:"cells"`
	HasHeader   bool   `json:"has_header"`
	Caption     string `json:"caption,omitempty"`
}

type StructureElements struct {
	OrderedLists     int         `json:"ordered_lists"`
	UnorderedLists   int         `json:"unordered_lists"`
	ListItemsTotal   int         `json:"list_items_total"`
	Tables           []TableInfo `json:"tables"`
	Blockquotes      []string    `json:"blockquotes"`
	PreBlocks        int         `json:"pre_blocks"`
	InlineCode       int         `json:"inline_code"`
	DefinitionLists  int         `json:"definition_lists"`
	DefinitionTerms  int         `json:"definition_terms"`
	Details          int         `json:"details_accordions"`
	FiguresWithCaption int       `json:"figures_with_caption"`
	FiguresNoCaption   int       `json:"figures_without_caption"`
}

type EEATSignals struct {
	Author           string   `json:"author,omitempty"`
	PublishedDate    string   `json:"published_date,omitempty"`
	ModifiedDate     string   `json:"modified_date,omitempty"`
	TrustPageLinks   []string `json:"trust_page_links"`
	HasEmail         bool     `json:"has_email"`
	HasPhone         bool     `json:"has_phone"`
	HasAddress       bool     `json:"has_address"`
	Credentials      []string `json:"credentials"`
}

type OutboundLink struct {
	URL           string `json:"url"`
	NoFollow      bool   `json:"nofollow"`
	Sponsored     bool   `json:"sponsored"`
	UGC           bool   `json:"ugc"`
	IsAuthority   bool   `json:"is_authority"`
	IsGovOrEdu    bool   `json:"is_gov_or_edu"`
	IsWikipedia   bool   `json:"is_wikipedia"`
}

type OutboundLinks struct {
	Links              []OutboundLink `json:"links"`
	AuthorityCount     int            `json:"authority_count"`
	GovEduCount        int            `json:"gov_edu_count"`
	WikipediaCount     int            `json:"wikipedia_count"`
	UniqueDomainsCount int            `json:"unique_domains_count"`
	NoFollowRatio      float64        `json:"nofollow_ratio"`
}

type HreflangEntry struct {
	Hreflang string `json:"hreflang"`
	URL      string `json:"url"`
}

type HreflangData struct {
	Entries      []HreflangEntry `json:"entries"`
	HasXDefault  bool            `json:"has_x_default"`
}

type TemporalSignals struct {
	YearsMentioned      []int    `json:"years_mentioned"`
	MostRecentYear      *int     `json:"most_recent_year,omitempty"`
	OldestYear          *int     `json:"oldest_year,omitempty"`
	HasCurrentYear      bool     `json:"has_current_year"`
	HasLastYear         bool     `json:"has_last_year"`
	RelativePhrases     []string `json:"relative_phrases"`
	AsOfStatements      []string `json:"as_of_statements"`
	MonthYearReferences []string `json:"month_year_references"`
	OutdatedSignalCount int      `json:"outdated_signal_count"`
	ContentAgeDays      *int     `json:"content_age_days,omitempty"`
	LastUpdateAgeDays   *int     `json:"last_update_age_days,omitempty"`
	LastModifiedAgeDays *int     `json:"http_last_modified_age_days,omitempty"`
}

type VideoRef struct {
	Platform string `json:"platform"`
	URL      string `json:"url"`
}

type MultimediaData struct {
	Videos           []VideoRef `json:"videos"`
	AudioCount       int        `json:"audio_count"`
	PDFLinks         []string   `json:"pdf_links"`
	InfographicCount int        `json:"infographic_count"`
}

type AICrawlability struct {
	HTMLSizeBytes       int      `json:"html_size_bytes"`
	TextSizeBytes       int      `json:"text_size_bytes"`
	ContentRatio        float64  `json:"content_ratio"`
	InlineScripts       int      `json:"inline_scripts"`
	ExternalScripts     int      `json:"external_scripts"`
	HasNoscript         bool     `json:"has_noscript"`
	MetaRobots          string   `json:"meta_robots"`
	IframeCount         int      `json:"iframe_count"`
	LazyLoadedImages    int      `json:"lazy_loaded_images"`
	DataSrcOnlyImages   int      `json:"data_src_only_images"`
	CustomElementCount  int      `json:"custom_element_count"`
	CanvasCount         int      `json:"canvas_count"`
	JSFrameworks        []string `json:"js_frameworks"`
}

type ContentAge struct {
	Published      string `json:"published,omitempty"`
	PublishedSource string `json:"published_source,omitempty"`
	Modified       string `json:"modified,omitempty"`
	ModifiedSource string `json:"modified_source,omitempty"`
	AgeDays        *int   `json:"age_days,omitempty"`
}

// BatchEnvelope is the JSON body shipped to the ingestion API (spec §3, §4.4).
type BatchEnvelope struct {
	JobID     string       `json:"job_id"`
	ProjectID string       `json:"project_id"`
	APIKey    string       `json:"api_key,omitempty"`
	Status    Status       `json:"status"`
	Pages     []PageResult `json:"pages"`
	Stats     BatchStats   `json:"stats"`
}

type BatchStats struct {
	PagesQueued  int `json:"pages_queued"`
	PagesCrawled int `json:"pages_crawled"`
	PagesErrored int `json:"pages_errored"`
}
