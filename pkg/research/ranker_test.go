package research

import (
	"math"
	"testing"
	"time"
)

func rankerFixture() []SearchResult {
	return []SearchResult{
		{Title: "Quantum computing advances in error correction", URL: "https://arxiv.org/abs/2301.01234", Snippet: "A study of quantum error correction codes and their recent advances."},
		{Title: "Quantum computing explained", URL: "https://en.wikipedia.org/wiki/Quantum_computing", Snippet: "Quantum computing uses quantum mechanics to process information."},
		{Title: "My thoughts on computers", URL: "http://randomblog.biz/posts/2023/05/stuff?ref=twitter", Snippet: "Some rambling about technology in general."},
		{Title: "Quantum computing market report", URL: "https://example.com/report", Snippet: "The quantum computing market grew 30% last year according to analysts."},
	}
}

func TestRankScoreBounds(t *testing.T) {
	r := NewRanker(nil, nil)
	results := rankerFixture()

	ranked := r.Rank(results, "quantum computing", RankOptions{})
	if len(ranked) != len(results) {
		t.Fatalf("Rank returned %d results, want %d", len(ranked), len(results))
	}

	for i, rr := range ranked {
		for name, score := range map[string]float64{
			"bm25":      rr.BM25,
			"semantic":  rr.Semantic,
			"authority": rr.Authority,
			"freshness": rr.Freshness,
			"final":     rr.FinalScore,
		} {
			if score < 0 || score > 1 {
				t.Errorf("result %d: %s score %v out of [0,1]", i, name, score)
			}
		}
		if rr.Rank != i {
			t.Errorf("result %d: Rank = %d, want %d", i, rr.Rank, i)
		}
	}

	for i := 1; i < len(ranked); i++ {
		if ranked[i].FinalScore > ranked[i-1].FinalScore {
			t.Errorf("results not sorted: score[%d]=%v > score[%d]=%v",
				i, ranked[i].FinalScore, i-1, ranked[i-1].FinalScore)
		}
	}
}

func TestRankMalformedURLs(t *testing.T) {
	r := NewRanker(nil, nil)
	results := []SearchResult{
		{Title: "ok", URL: "https://example.com/a", Snippet: "fine"},
		{Title: "bad scheme", URL: "ftp://example.com/a", Snippet: "odd"},
		{Title: "garbage", URL: "://not a url at all %%%", Snippet: "broken"},
		{Title: "empty", URL: "", Snippet: "missing"},
	}

	ranked := r.Rank(results, "example", RankOptions{})
	if len(ranked) != len(results) {
		t.Fatalf("Rank returned %d results, want %d", len(ranked), len(results))
	}
	for _, rr := range ranked {
		if rr.FinalScore < 0 || rr.FinalScore > 1 {
			t.Errorf("%q: final score %v out of [0,1]", rr.URL, rr.FinalScore)
		}
	}
}

func TestRankDeterminism(t *testing.T) {
	r := NewRanker(nil, nil)
	results := rankerFixture()

	first := r.Rank(results, "quantum computing", RankOptions{})
	second := r.Rank(results, "quantum computing", RankOptions{})

	for i := range first {
		if first[i].URL != second[i].URL {
			t.Fatalf("order differs at %d: %q vs %q", i, first[i].URL, second[i].URL)
		}
		if math.Abs(first[i].FinalScore-second[i].FinalScore) > 1e-9 {
			t.Errorf("score differs at %d: %v vs %v", i, first[i].FinalScore, second[i].FinalScore)
		}
	}
}

func TestRankCacheHit(t *testing.T) {
	cache := NewMemoryCache(10, time.Minute)
	r := NewRanker(cache, nil)
	results := rankerFixture()

	first := r.Rank(results, "quantum computing", RankOptions{CacheEnabled: true})
	if cache.Size() == 0 {
		t.Fatal("expected ranking to be cached")
	}
	second := r.Rank(results, "quantum computing", RankOptions{CacheEnabled: true})

	for i := range first {
		if first[i].URL != second[i].URL || first[i].FinalScore != second[i].FinalScore {
			t.Errorf("cached ranking differs at %d", i)
		}
	}

	// Mutating the returned slice must not corrupt the cached copy.
	second[0].FinalScore = -99
	third := r.Rank(results, "quantum computing", RankOptions{CacheEnabled: true})
	if third[0].FinalScore == -99 {
		t.Error("cache returned a shared slice")
	}
}

func TestRankCacheKeyCoversScoredFields(t *testing.T) {
	cache := NewMemoryCache(10, time.Minute)
	r := NewRanker(cache, nil)

	batch := []SearchResult{
		{Title: "Result", URL: "https://example.com/a", Snippet: "solar panels and grid storage"},
		{Title: "Result", URL: "https://example.com/b", Snippet: "unrelated gardening tips"},
	}
	r.Rank(batch, "solar panels", RankOptions{CacheEnabled: true})

	// Same URLs and titles, swapped snippets: must be scored fresh, not
	// served from the first batch's entry.
	swapped := []SearchResult{
		{Title: "Result", URL: "https://example.com/a", Snippet: "unrelated gardening tips"},
		{Title: "Result", URL: "https://example.com/b", Snippet: "solar panels and grid storage"},
	}
	cachedRanker := r.Rank(swapped, "solar panels", RankOptions{CacheEnabled: true})
	uncachedRanker := NewRanker(nil, nil).Rank(swapped, "solar panels", RankOptions{})

	if cachedRanker[0].URL != uncachedRanker[0].URL {
		t.Errorf("top result %q with cache, %q without", cachedRanker[0].URL, uncachedRanker[0].URL)
	}
	for i := range cachedRanker {
		if math.Abs(cachedRanker[i].FinalScore-uncachedRanker[i].FinalScore) > 1e-9 {
			t.Errorf("result %d: score %v with cache, %v without", i, cachedRanker[i].FinalScore, uncachedRanker[i].FinalScore)
		}
	}

	// Metadata dates feed freshness, so they distinguish entries too.
	dated := []SearchResult{
		{Title: "Result", URL: "https://example.com/a", Snippet: "solar panels and grid storage",
			Metadata: map[string]interface{}{"publishedDate": "2014-01-01"}},
		{Title: "Result", URL: "https://example.com/b", Snippet: "unrelated gardening tips"},
	}
	cachedDated := r.Rank(dated, "solar panels", RankOptions{CacheEnabled: true})
	uncachedDated := NewRanker(nil, nil).Rank(dated, "solar panels", RankOptions{})
	for i := range cachedDated {
		if math.Abs(cachedDated[i].FinalScore-uncachedDated[i].FinalScore) > 1e-9 {
			t.Errorf("dated result %d: score %v with cache, %v without", i, cachedDated[i].FinalScore, uncachedDated[i].FinalScore)
		}
	}
}

func TestRankEmptyInput(t *testing.T) {
	r := NewRanker(nil, nil)
	ranked := r.Rank(nil, "anything", RankOptions{})
	if ranked == nil || len(ranked) != 0 {
		t.Fatalf("Rank(nil) = %v, want empty non-nil slice", ranked)
	}
}

func TestNormalizeWeights(t *testing.T) {
	tests := []struct {
		name  string
		in    *RankWeights
		check func(t *testing.T, w RankWeights)
	}{
		{
			name: "nil uses defaults",
			in:   nil,
			check: func(t *testing.T, w RankWeights) {
				if w != DefaultRankWeights() {
					t.Errorf("got %+v, want defaults", w)
				}
			},
		},
		{
			name: "unnormalized weights renormalize to sum 1",
			in:   &RankWeights{BM25: 2, Semantic: 1, Authority: 1, Freshness: 0},
			check: func(t *testing.T, w RankWeights) {
				sum := w.BM25 + w.Semantic + w.Authority + w.Freshness
				if math.Abs(sum-1) > 1e-9 {
					t.Errorf("weights sum to %v, want 1", sum)
				}
				if math.Abs(w.BM25-0.5) > 1e-9 {
					t.Errorf("BM25 weight = %v, want 0.5", w.BM25)
				}
			},
		},
		{
			name: "all-zero weights fall back to defaults",
			in:   &RankWeights{},
			check: func(t *testing.T, w RankWeights) {
				if w != DefaultRankWeights() {
					t.Errorf("got %+v, want defaults", w)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, normalizeWeights(tt.in))
		})
	}
}

func TestAuthorityScore(t *testing.T) {
	tests := []struct {
		name string
		url  string
		want float64
	}{
		{"invalid url", "://broken", 0.1},
		{"non-http scheme", "ftp://arxiv.org/abs/1", 0.1},
		{"known domain clean https", "https://arxiv.org/abs", 0.95 + 0.1 - 0.02 + 0.1},
		{"edu tld", "https://mit.edu", 0.8 + 0.1 + 0.1},
		{"gov tld", "https://nasa.gov", 0.9 + 0.1 + 0.1},
		{"com deep path with query", "http://example.com/a/b/c/d?x=1", 0.4 - 0.08},
		{"subdomain of known domain", "https://blog.github.com", 0.8*0.8 + 0.1 + 0.1 - 0.1},
		{"www subdomain no penalty", "https://www.wikipedia.org", 0.85*0.8 + 0.1 + 0.1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := authorityScore(tt.url)
			want := clamp01(tt.want)
			if math.Abs(got-want) > 1e-9 {
				t.Errorf("authorityScore(%q) = %v, want %v", tt.url, got, want)
			}
		})
	}
}

func TestFreshnessScore(t *testing.T) {
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		meta map[string]interface{}
		want float64
	}{
		{"no date", nil, 0.5},
		{"unparseable date", map[string]interface{}{"publishedDate": "sometime"}, 0.5},
		{"future date", map[string]interface{}{"publishedDate": "2030-01-01"}, 1.0},
		{"ancient date", map[string]interface{}{"publishedDate": "2010-01-01"}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := freshnessScore(SearchResult{Metadata: tt.meta}, now)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("freshnessScore = %v, want %v", got, tt.want)
			}
		})
	}

	t.Run("recent decays exponentially", func(t *testing.T) {
		res := SearchResult{Metadata: map[string]interface{}{"publishedDate": "2024-03-01"}}
		got := freshnessScore(res, now)
		if got <= 0 || got >= 1 {
			t.Fatalf("freshnessScore = %v, want within (0,1)", got)
		}
		older := SearchResult{Metadata: map[string]interface{}{"publishedDate": "2023-06-01"}}
		if gotOlder := freshnessScore(older, now); gotOlder >= got {
			t.Errorf("older source scored %v, newer scored %v", gotOlder, got)
		}
	})
}
