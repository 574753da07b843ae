package research

import (
	"strings"
	"testing"
)

func TestVerifySourcesCutoffAndOrder(t *testing.T) {
	engine := NewEngine(EngineConfig{Logger: quietLogger()})
	s := newSession("verify topic", clampOptions(Options{}))

	article := strings.Repeat("The measured results show a 42% improvement over baseline methods. ", 60)
	sources := []SourceRecord{
		{
			URL:         "https://research.university.edu/paper",
			Content:     article + "References: et al, doi:10.1000/xyz, University of Testing.",
			WordCount:   600,
			Readability: 0.8,
		},
		{
			URL:     "ftp://nowhere.invalid",
			Content: "",
		},
		{
			URL:         "https://example.com/post",
			Content:     "A short opinion piece without much substance.",
			WordCount:   8,
			Readability: 0.5,
		},
	}

	verified := engine.verifySources(s, sources)

	for _, src := range verified {
		if src.OverallCredibility < verificationCutoff {
			t.Errorf("%q kept with credibility %v below cutoff", src.URL, src.OverallCredibility)
		}
		for name, f := range map[string]float64{
			"domainAuthority":     src.Credibility.DomainAuthority,
			"contentQuality":      src.Credibility.ContentQuality,
			"sourceType":          src.Credibility.SourceType,
			"recency":             src.Credibility.Recency,
			"authorityIndicators": src.Credibility.AuthorityIndicators,
			"citationPotential":   src.Credibility.CitationPotential,
		} {
			if f < 0 || f > 1 {
				t.Errorf("%q: factor %s = %v out of [0,1]", src.URL, name, f)
			}
		}
	}

	for i := 1; i < len(verified); i++ {
		if verified[i].OverallCredibility > verified[i-1].OverallCredibility {
			t.Error("verified sources not sorted by descending credibility")
		}
	}

	if len(verified) == 0 || verified[0].URL != "https://research.university.edu/paper" {
		t.Error("the academic source should rank first")
	}
	if s.metrics.SourcesVerified != len(verified) {
		t.Errorf("SourcesVerified = %d, want %d", s.metrics.SourcesVerified, len(verified))
	}
	if s.metrics.SourcesDropped != len(sources)-len(verified) {
		t.Errorf("SourcesDropped = %d, want %d", s.metrics.SourcesDropped, len(sources)-len(verified))
	}
}

func TestSourceTypeScore(t *testing.T) {
	tests := []struct {
		name string
		url  string
		want float64
	}{
		{"edu domain", "https://cs.stanford.edu/paper", 0.9},
		{"arxiv", "https://arxiv.org/abs/1234", 0.9},
		{"gov domain", "https://cdc.gov/data", 0.85},
		{"org domain", "https://w3.org/spec", 0.7},
		{"blog path", "https://example.com/blog/post", 0.4},
		{"reddit", "https://reddit.com/r/science", 0.3},
		{"plain com", "https://example.com/page", 0.5},
		{"unparseable", "://nope", 0.3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := sourceTypeScore(tt.url); got != tt.want {
				t.Errorf("sourceTypeScore(%q) = %v, want %v", tt.url, got, tt.want)
			}
		})
	}
}

func TestReadabilityScore(t *testing.T) {
	if got := readabilityScore(""); got != 0 {
		t.Errorf("empty content = %v, want 0", got)
	}

	ideal := strings.Repeat("one two three four five six seven eight nine ten "+
		"eleven twelve thirteen fourteen fifteen sixteen seventeen. ", 5)
	run := strings.Repeat("word ", 200) + "end."

	if gotIdeal, gotRun := readabilityScore(ideal), readabilityScore(run); gotIdeal <= gotRun {
		t.Errorf("ideal sentences scored %v, run-on scored %v", gotIdeal, gotRun)
	}
}

func TestInitialCredibility(t *testing.T) {
	plain := initialCredibility("https://example.com/page", "some page about cats")
	boosted := initialCredibility("https://example.com/page", "a peer-reviewed study with research data")
	if boosted <= plain {
		t.Errorf("research keywords should raise credibility: %v <= %v", boosted, plain)
	}
	if boosted > plain+0.2+1e-9 {
		t.Errorf("keyword bonus exceeds cap: %v vs %v", boosted, plain)
	}
	if got := initialCredibility("not a url", "text"); got < 0 || got > 1 {
		t.Errorf("invalid url credibility %v out of [0,1]", got)
	}
}

func TestRelevanceScore(t *testing.T) {
	full := relevanceScore("solar energy", SearchResult{Title: "Solar energy basics", Snippet: "All about solar energy"})
	if diff := full - 1.0; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("full coverage = %v, want 1.0", full)
	}

	titleOnly := relevanceScore("solar energy", SearchResult{Title: "Solar energy basics", Snippet: "unrelated text"})
	if diff := titleOnly - 0.6; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("title-only coverage = %v, want 0.6", titleOnly)
	}

	if got := relevanceScore("solar energy", SearchResult{Title: "cooking pasta", Snippet: "with tomatoes"}); got != 0 {
		t.Errorf("no coverage = %v, want 0", got)
	}
}

func TestDedupeSources(t *testing.T) {
	records := []SourceRecord{
		{URL: "https://a.com"},
		{URL: "https://b.com"},
		{URL: "https://a.com"},
		{URL: ""},
	}
	out := dedupeSources(records)
	if len(out) != 2 {
		t.Fatalf("got %d records, want 2", len(out))
	}
	if out[0].URL != "https://a.com" || out[1].URL != "https://b.com" {
		t.Errorf("order not preserved: %v", out)
	}
}
