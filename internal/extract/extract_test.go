package extract

import (
	"net/http"
	"testing"
	"time"

	"github.com/siteprobe/siteprobe/internal/jobtypes"
)

const samplePage = `<!DOCTYPE html>
<html lang="en">
<head>
  <title>Widgets For Sale | Acme</title>
  <meta name="description" content="Buy the best widgets online.">
  <link rel="canonical" href="https://example.com/widgets">
</head>
<body>
  <nav><a href="/">Home</a></nav>
  <main>
    <h1>Widgets For Sale</h1>
    <p>We sell a wide range of widgets for every purpose, hand crafted for quality and durability.</p>
    <h2>Why choose us</h2>
    <a href="/about">About us</a>
    <a href="https://external.example/partner">Partner site</a>
    <a href="#">click here</a>
    <a href="/contact"></a>
  </main>
</body>
</html>`

func TestRunProducesFullPageResult(t *testing.T) {
	in := Input{
		URL:             "https://example.com/widgets",
		RawHTML:         []byte(samplePage),
		StatusCode:      200,
		ResponseHeaders: http.Header{},
		Depth:           1,
		Referrer:        "https://example.com/",
		PageSizeBytes:   len(samplePage),
		Now:             time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}

	pr := Run(in)

	if len(pr.SectionErrors) != 0 {
		t.Errorf("expected no section errors for well-formed HTML, got %v", pr.SectionErrors)
	}
	if pr.Metadata == nil || pr.Metadata.Title != "Widgets For Sale | Acme" {
		t.Fatalf("expected metadata title to be extracted, got %+v", pr.Metadata)
	}
	if pr.Metadata.H1 != "Widgets For Sale" {
		t.Errorf("expected H1 to be extracted, got %q", pr.Metadata.H1)
	}
	if pr.Links == nil || len(pr.Links.Internal) == 0 {
		t.Error("expected at least one internal link to be discovered")
	}
	if pr.Links == nil || len(pr.Links.External) == 0 {
		t.Error("expected at least one external link to be discovered")
	}
	if pr.Anchors == nil || pr.Anchors.Empty == 0 {
		t.Errorf("expected the text-less /contact link to register as an empty anchor, got %+v", pr.Anchors)
	}
	if pr.Headings == nil {
		t.Error("expected headings to be extracted")
	}
	if pr.StatusCode == nil || *pr.StatusCode != 200 {
		t.Errorf("expected status code 200 to be recorded")
	}
	if pr.Depth != 1 {
		t.Errorf("expected depth=1 to be carried through, got %d", pr.Depth)
	}
}

func TestRunIsolatesDocumentParseFailure(t *testing.T) {
	in := Input{
		URL:             "https://example.com/broken",
		RawHTML:         nil,
		StatusCode:      200,
		ResponseHeaders: http.Header{},
		Now:             time.Now(),
	}
	pr := Run(in)
	// html.Parse tolerates malformed/empty input, so this mainly ensures Run
	// never panics on an edge-case empty body and still returns a result.
	if pr == nil {
		t.Fatal("expected a non-nil page result even for an empty body")
	}
}

func TestRunIsolatesPanickingSection(t *testing.T) {
	pr := &jobtypes.PageResult{SectionErrors: map[string]string{}}
	run(pr, "fake_section", func() error {
		panic("boom")
	})
	if pr.SectionErrors["fake_section"] == "" {
		t.Error("expected a panicking section to be recorded as a section error, not crash the test")
	}
}

func TestRunRecordsOrdinaryError(t *testing.T) {
	pr := &jobtypes.PageResult{SectionErrors: map[string]string{}}
	run(pr, "other_section", func() error {
		return errBoom
	})
	if pr.SectionErrors["other_section"] == "" {
		t.Error("expected an ordinary error to be recorded as a section error")
	}
}

var errBoom = &testError{"boom"}

type testError struct{ msg string }

func (e *testError) Error() string { return e.msg }
