package tools

import (
	"context"
	"errors"
	"testing"

	"github.com/sourcedive/sourcedive/pkg/research"
)

type stubSearcher struct {
	results []research.SearchResult
	err     error
}

func (s *stubSearcher) Search(ctx context.Context, query string, limit int) ([]research.SearchResult, error) {
	return s.results, s.err
}

func TestMultiSearcherMergesAndDedupes(t *testing.T) {
	a := &stubSearcher{results: []research.SearchResult{
		{Title: "one", URL: "https://a.com/1"},
		{Title: "two", URL: "https://a.com/2"},
	}}
	b := &stubSearcher{results: []research.SearchResult{
		{Title: "dup", URL: "https://a.com/1"},
		{Title: "three", URL: "https://b.com/3"},
	}}

	multi := NewMultiSearcher(nil, a, b)
	results, err := multi.Search(context.Background(), "q", 10)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("got %d results, want 3 after dedup", len(results))
	}
	if results[0].URL != "https://a.com/1" || results[2].URL != "https://b.com/3" {
		t.Errorf("backend order not preserved: %v", results)
	}
}

func TestMultiSearcherPartialFailure(t *testing.T) {
	good := &stubSearcher{results: []research.SearchResult{{Title: "ok", URL: "https://a.com/1"}}}
	bad := &stubSearcher{err: errors.New("backend down")}

	multi := NewMultiSearcher(nil, bad, good)
	results, err := multi.Search(context.Background(), "q", 10)
	if err != nil {
		t.Fatalf("one healthy backend should be enough: %v", err)
	}
	if len(results) != 1 {
		t.Errorf("got %d results, want 1", len(results))
	}
}

func TestMultiSearcherAllFail(t *testing.T) {
	bad := &stubSearcher{err: errors.New("down")}
	multi := NewMultiSearcher(nil, bad, bad)

	if _, err := multi.Search(context.Background(), "q", 10); err == nil {
		t.Fatal("expected an error when every backend fails")
	}
}

func TestMultiSearcherLimit(t *testing.T) {
	a := &stubSearcher{results: []research.SearchResult{
		{URL: "https://a.com/1", Title: "1"},
		{URL: "https://a.com/2", Title: "2"},
		{URL: "https://a.com/3", Title: "3"},
	}}
	multi := NewMultiSearcher(nil, a)

	results, err := multi.Search(context.Background(), "q", 2)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(results) != 2 {
		t.Errorf("got %d results, want limit of 2", len(results))
	}
}

func TestMultiSearcherNoBackends(t *testing.T) {
	if _, err := NewMultiSearcher(nil).Search(context.Background(), "q", 5); err == nil {
		t.Fatal("expected an error with no backends configured")
	}
}
