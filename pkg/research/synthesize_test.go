package research

import (
	"reflect"
	"strings"
	"testing"
)

func TestClaimSignature(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{
			name: "picks alphabetical top three on equal frequency",
			text: "Renewable energy storage is economically viable",
			want: []string{"economically", "energy", "renewable"},
		},
		{
			name: "negation does not change the signature",
			text: "Renewable energy storage is not economically viable",
			want: []string{"economically", "energy", "renewable"},
		},
		{
			name: "frequency beats alphabetical order",
			text: "solar panels solar panels solar arrays generate power",
			want: []string{"arrays", "panels", "solar"},
		},
		{
			name: "short words and stopwords excluded",
			text: "it is the best that there would ever be",
			want: []string{"best", "ever"},
		},
		{
			name: "empty text",
			text: "",
			want: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := claimSignature(tt.text)
			if len(got) == 0 && len(tt.want) == 0 {
				return
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("claimSignature(%q) = %v, want %v", tt.text, got, tt.want)
			}
		})
	}
}

func TestKeywordGrouperGroup(t *testing.T) {
	claims := []Claim{
		{ID: "1", Text: "Renewable energy storage is economically viable", SourceURL: "https://a.com", Credibility: 0.8},
		{ID: "2", Text: "Renewable energy storage is not economically viable", SourceURL: "https://b.com", Credibility: 0.6},
		{ID: "3", Text: "Quantum computers break classical encryption schemes", SourceURL: "https://c.com", Credibility: 0.9},
		{ID: "4", Text: "Renewable energy storage is economically viable", SourceURL: "https://a.com", Credibility: 0.8},
	}

	groups := KeywordGrouper{}.Group(claims)
	if len(groups) != 2 {
		t.Fatalf("got %d groups, want 2", len(groups))
	}

	storage := groups[0]
	if len(storage.Claims) != 3 {
		t.Errorf("storage group has %d claims, want 3", len(storage.Claims))
	}
	if storage.SourceCount != 2 {
		t.Errorf("storage group SourceCount = %d, want 2 distinct URLs", storage.SourceCount)
	}
	wantAvg := (0.8 + 0.6 + 0.8) / 3
	if diff := storage.AvgCredibility - wantAvg; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("storage group AvgCredibility = %v, want %v", storage.AvgCredibility, wantAvg)
	}

	quantum := groups[1]
	if len(quantum.Claims) != 1 || quantum.SourceCount != 1 {
		t.Errorf("quantum group = %d claims / %d sources, want 1/1", len(quantum.Claims), quantum.SourceCount)
	}
}

func TestAntonymDetectorSymmetry(t *testing.T) {
	a := Claim{ID: "1", Text: "The approach is effective", SourceURL: "https://a.com", Credibility: 0.9}
	b := Claim{ID: "2", Text: "The approach is not effective", SourceURL: "https://b.com", Credibility: 0.5}

	forward := AntonymDetector{}.Detect(ClaimGroup{Claims: []Claim{a, b}})
	reversed := AntonymDetector{}.Detect(ClaimGroup{Claims: []Claim{b, a}})

	if len(forward) != 1 {
		t.Fatalf("forward order: %d conflicts, want 1", len(forward))
	}
	if len(reversed) != 1 {
		t.Fatalf("reversed order: %d conflicts, want 1", len(reversed))
	}
	if forward[0].Terms != "not/is" || reversed[0].Terms != "not/is" {
		t.Errorf("terms = %q / %q, want not/is", forward[0].Terms, reversed[0].Terms)
	}

	wantSeverity := 0.5 + 0.5*0.4
	for _, c := range []Conflict{forward[0], reversed[0]} {
		if diff := c.Severity - wantSeverity; diff > 1e-9 || diff < -1e-9 {
			t.Errorf("severity = %v, want %v", c.Severity, wantSeverity)
		}
	}
}

func TestAntonymDetectorOnePerPair(t *testing.T) {
	group := ClaimGroup{}
	for i := 0; i < 5; i++ {
		group.Claims = append(group.Claims,
			Claim{Text: "Remote work is productive", Credibility: 0.7},
			Claim{Text: "Remote work is not productive", Credibility: 0.7})
	}

	conflicts := AntonymDetector{}.Detect(group)
	if len(conflicts) != 1 {
		t.Fatalf("got %d conflicts from 25 opposing pairs, want 1", len(conflicts))
	}
	if conflicts[0].Severity != 0.5 {
		t.Errorf("severity = %v, want 0.5 for equal credibility", conflicts[0].Severity)
	}
}

func TestAntonymDetectorWholeWordMatching(t *testing.T) {
	group := ClaimGroup{Claims: []Claim{
		{Text: "There is no evidence supporting this notion"},
		{Text: "Yes the notion is well supported"},
	}}

	conflicts := AntonymDetector{}.Detect(group)
	var sawNoYes bool
	for _, c := range conflicts {
		if c.Terms == "no/yes" {
			sawNoYes = true
		}
	}
	if !sawNoYes {
		t.Error("expected a no/yes conflict from whole-word matches")
	}

	// "notion" and "not" must not be confused.
	quiet := ClaimGroup{Claims: []Claim{
		{Text: "The notion is interesting"},
		{Text: "The idea is interesting"},
	}}
	got := AntonymDetector{}.Detect(quiet)
	if len(got) != 0 {
		t.Errorf("got %d conflicts from non-opposing claims, want 0", len(got))
	}
}

func TestBuildConsensus(t *testing.T) {
	groups := []ClaimGroup{
		{Claims: []Claim{{Text: "strong claim"}}, SourceCount: 3, AvgCredibility: 0.8, ConsensusStrength: 3*0.4 + 0.8*0.6},
		{Claims: []Claim{{Text: "single source"}}, SourceCount: 1, AvgCredibility: 0.9, ConsensusStrength: 1*0.4 + 0.9*0.6},
		{Claims: []Claim{{Text: "weak sources"}}, SourceCount: 4, AvgCredibility: 0.5, ConsensusStrength: 4*0.4 + 0.5*0.6},
		{Claims: []Claim{{Text: "also strong"}}, SourceCount: 2, AvgCredibility: 0.7, ConsensusStrength: 2*0.4 + 0.7*0.6},
	}

	consensus := buildConsensus(groups)
	if len(consensus) != 2 {
		t.Fatalf("got %d consensus entries, want 2", len(consensus))
	}
	if consensus[0].Statement != "strong claim" {
		t.Errorf("strongest first: got %q", consensus[0].Statement)
	}
	if consensus[1].Statement != "also strong" {
		t.Errorf("second entry: got %q", consensus[1].Statement)
	}
}

func TestBuildEvidenceCapsAndExcerpts(t *testing.T) {
	long := strings.Repeat("evidence text ", 50)
	sources := make([]SourceRecord, 20)
	for i := range sources {
		sources[i] = SourceRecord{
			URL:                "https://example.com/" + string(rune('a'+i)),
			Title:              "source",
			Content:            long,
			OverallCredibility: 0.9,
		}
	}
	sources = append(sources, SourceRecord{URL: "https://low.com", Content: long, OverallCredibility: 0.5})

	evidence := buildEvidence(sources)
	if len(evidence) != 15 {
		t.Fatalf("got %d evidence entries, want cap of 15", len(evidence))
	}
	for _, ev := range evidence {
		if len([]rune(ev.Excerpt)) > 300 {
			t.Errorf("excerpt length %d exceeds 300", len([]rune(ev.Excerpt)))
		}
		if ev.Credibility < 0.7 {
			t.Errorf("low-credibility source %q included as evidence", ev.URL)
		}
	}
}

func TestBuildGaps(t *testing.T) {
	groups := []ClaimGroup{
		{Signature: []string{"solid", "topic"}, Claims: []Claim{{}, {}}, AvgCredibility: 0.8},
		{Signature: []string{"thin", "topic"}, Claims: []Claim{{}}, AvgCredibility: 0.9},
		{Signature: []string{"weak", "topic"}, Claims: []Claim{{}, {}}, AvgCredibility: 0.3},
	}

	gaps := buildGaps(groups)
	if len(gaps) != 2 {
		t.Fatalf("got %d gaps, want 2", len(gaps))
	}
	for i := 0; i < 10; i++ {
		groups = append(groups, ClaimGroup{Signature: []string{"more"}, Claims: []Claim{{}}, AvgCredibility: 0.2})
	}
	if gaps = buildGaps(groups); len(gaps) != maxResearchGaps {
		t.Errorf("got %d gaps, want cap of %d", len(gaps), maxResearchGaps)
	}
}
