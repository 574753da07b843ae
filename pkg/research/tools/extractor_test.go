package tools

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/sourcedive/sourcedive/pkg/research"
)

const pageFixture = `<!DOCTYPE html>
<html>
<head>
  <title>Grid Storage Economics</title>
  <meta name="description" content="Costs and economics of grid-scale storage.">
  <meta name="author" content="J. Doe">
  <meta property="article:published_time" content="2024-02-10T08:00:00Z">
  <script>console.log("ignore me")</script>
  <style>.x{color:red}</style>
</head>
<body>
  <nav>Home | About | Contact</nav>
  <article>
    <h1>Grid Storage Economics</h1>
    <p>Battery storage costs fell 40% over the last decade.</p>
    <p>Deployment at grid scale is now economically viable in several markets.</p>
    <blockquote>Storage is the missing piece of the renewable puzzle.</blockquote>
  </article>
  <footer>Copyright 2024</footer>
</body>
</html>`

func TestPageExtractorExtract(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(pageFixture))
	}))
	defer srv.Close()

	extractor := NewPageExtractor(srv.Client(), nil)
	extraction, err := extractor.Extract(context.Background(), srv.URL, research.ExtractOptions{
		IncludeMetadata:       true,
		IncludeStructuredData: true,
	})
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}

	if !strings.Contains(extraction.Content, "Battery storage costs fell 40%") {
		t.Errorf("article text missing from content:\n%s", extraction.Content)
	}
	if strings.Contains(extraction.Content, "console.log") {
		t.Error("script text leaked into content")
	}
	if strings.Contains(extraction.Content, "Home | About") {
		t.Error("navigation chrome leaked into content")
	}
	if strings.Contains(extraction.Content, "Copyright 2024") {
		t.Error("footer leaked into content")
	}
	if !strings.Contains(extraction.Content, "\n\n") {
		t.Error("expected paragraph breaks in extracted content")
	}

	if got := extraction.Metadata["title"]; got != "Grid Storage Economics" {
		t.Errorf("title metadata = %v", got)
	}
	if got := extraction.Metadata["author"]; got != "J. Doe" {
		t.Errorf("author metadata = %v", got)
	}
	if got := extraction.Metadata["publishedDate"]; got != "2024-02-10T08:00:00Z" {
		t.Errorf("publishedDate metadata = %v", got)
	}

	if got, _ := extraction.StructuredData["quotes"].(int); got != 1 {
		t.Errorf("quotes count = %v, want 1", extraction.StructuredData["quotes"])
	}
}

func TestPageExtractorRejectsNonHTML(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		w.Write([]byte("%PDF-1.4"))
	}))
	defer srv.Close()

	extractor := NewPageExtractor(srv.Client(), nil)
	if _, err := extractor.Extract(context.Background(), srv.URL, research.ExtractOptions{}); err == nil {
		t.Fatal("expected an error for a non-HTML content type")
	}
}

func TestPageExtractorHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	extractor := NewPageExtractor(srv.Client(), nil)
	if _, err := extractor.Extract(context.Background(), srv.URL, research.ExtractOptions{}); err == nil {
		t.Fatal("expected an error for a 404 response")
	}
}
