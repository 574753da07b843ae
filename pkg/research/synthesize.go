package research

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
)

// maxSummaryInput caps how much source content is handed to the summarizer.
const maxSummaryInput = 5000

const (
	maxKeyFindings   = 10
	maxEvidence      = 15
	maxEvidenceChars = 300
	maxResearchGaps  = 5

	evidenceCredibility  = 0.7
	consensusMinSources  = 2
	consensusCredibility = 0.6
)

// ClaimGrouper clusters claims into groups for consensus and conflict
// analysis.
type ClaimGrouper interface {
	Group(claims []Claim) []ClaimGroup
}

// ConflictDetector inspects one claim group for contradicting claims.
type ConflictDetector interface {
	Detect(group ClaimGroup) []Conflict
}

// synthesize is stage 5: extract claims from verified sources, group them,
// detect consensus and conflicts, and assemble findings, evidence, gaps and
// recommendations. A panic in any sub-step is captured into Synthesis.Error
// so the pipeline still compiles a report.
func (e *Engine) synthesize(ctx context.Context, s *session, sources []SourceRecord) (syn Synthesis) {
	syn = Synthesis{
		KeyFindings:        []Finding{},
		SupportingEvidence: []Evidence{},
		Conflicts:          []Conflict{},
		Consensus:          []ConsensusEntry{},
		ResearchGaps:       []string{},
		Recommendations:    []Recommendation{},
	}
	defer func() {
		if rec := recover(); rec != nil {
			e.Logger.Error("synthesis failed", "session", s.id, "panic", rec)
			syn.Error = fmt.Sprintf("synthesis failed: %v", rec)
		}
	}()

	claims := e.extractClaims(ctx, s, sources)
	groups := e.grouper.Group(claims)
	for i := range groups {
		groups[i].ConsensusStrength = float64(groups[i].SourceCount)*0.4 + groups[i].AvgCredibility*0.6
	}

	if s.opts.EnableConflictDetection {
		for _, g := range groups {
			syn.Conflicts = append(syn.Conflicts, e.detector.Detect(g)...)
		}
	}

	syn.Consensus = buildConsensus(groups)
	syn.KeyFindings = buildFindings(groups)
	syn.SupportingEvidence = buildEvidence(sources)
	syn.ResearchGaps = buildGaps(groups)
	syn.Recommendations = buildRecommendations(syn)
	return syn
}

// extractClaims summarizes each source's content into key-point claims. A
// failing summarizer drops that source's claims and moves on.
func (e *Engine) extractClaims(ctx context.Context, s *session, sources []SourceRecord) []Claim {
	var claims []Claim
	if e.summarizer == nil {
		return claims
	}
	for _, src := range sources {
		text := src.Content
		if text == "" {
			text = src.Snippet
		}
		if text == "" {
			continue
		}
		if runes := []rune(text); len(runes) > maxSummaryInput {
			text = string(runes[:maxSummaryInput])
		}

		summary, err := e.summarizer.Summarize(ctx, text)
		if err != nil {
			e.Logger.Warn("summarization failed, skipping source",
				"session", s.id, "url", src.URL, "error", err)
			continue
		}
		for i, point := range summary.KeyPoints {
			point = strings.TrimSpace(point)
			if point == "" {
				continue
			}
			claim := Claim{
				ID:          uuid.New().String(),
				Text:        point,
				SourceURL:   src.URL,
				SourceTitle: src.Title,
				Credibility: src.OverallCredibility,
			}
			if i < len(summary.Supporting) {
				claim.Context = summary.Supporting[i]
			}
			claims = append(claims, claim)
		}
	}

	s.mu.Lock()
	s.metrics.ClaimsExtracted = len(claims)
	s.mu.Unlock()
	return claims
}

func buildConsensus(groups []ClaimGroup) []ConsensusEntry {
	consensus := []ConsensusEntry{}
	for _, g := range groups {
		if g.SourceCount < consensusMinSources || g.AvgCredibility < consensusCredibility {
			continue
		}
		consensus = append(consensus, ConsensusEntry{
			Statement:      g.Claims[0].Text,
			SourceCount:    g.SourceCount,
			AvgCredibility: g.AvgCredibility,
			Strength:       g.ConsensusStrength,
		})
	}
	sort.SliceStable(consensus, func(a, b int) bool {
		return consensus[a].Strength > consensus[b].Strength
	})
	return consensus
}

func buildFindings(groups []ClaimGroup) []Finding {
	ordered := make([]ClaimGroup, len(groups))
	copy(ordered, groups)
	sort.SliceStable(ordered, func(a, b int) bool {
		return ordered[a].AvgCredibility > ordered[b].AvgCredibility
	})
	if len(ordered) > maxKeyFindings {
		ordered = ordered[:maxKeyFindings]
	}

	findings := []Finding{}
	for _, g := range ordered {
		findings = append(findings, Finding{
			Text:        g.Claims[0].Text,
			SourceCount: g.SourceCount,
			Confidence:  g.AvgCredibility,
			Keywords:    g.Signature,
		})
	}
	return findings
}

func buildEvidence(sources []SourceRecord) []Evidence {
	evidence := []Evidence{}
	for _, src := range sources {
		if src.OverallCredibility < evidenceCredibility {
			continue
		}
		excerpt := src.Content
		if excerpt == "" {
			excerpt = src.Snippet
		}
		if runes := []rune(excerpt); len(runes) > maxEvidenceChars {
			excerpt = string(runes[:maxEvidenceChars])
		}
		evidence = append(evidence, Evidence{
			URL:         src.URL,
			Title:       src.Title,
			Excerpt:     excerpt,
			Credibility: src.OverallCredibility,
		})
		if len(evidence) == maxEvidence {
			break
		}
	}
	return evidence
}

func buildGaps(groups []ClaimGroup) []string {
	gaps := []string{}
	for _, g := range groups {
		if len(g.Claims) >= 2 && g.AvgCredibility >= 0.5 {
			continue
		}
		gaps = append(gaps, fmt.Sprintf(
			"Limited coverage of %s: %d claim(s) with average credibility %.2f; more sources needed.",
			strings.Join(g.Signature, ", "), len(g.Claims), g.AvgCredibility))
		if len(gaps) == maxResearchGaps {
			break
		}
	}
	return gaps
}

func buildRecommendations(syn Synthesis) []Recommendation {
	recs := []Recommendation{}
	if len(syn.Conflicts) > 0 {
		recs = append(recs, Recommendation{
			Type:   "conflict_resolution",
			Detail: fmt.Sprintf("%d conflicting claim pair(s) were found; consult additional authoritative sources to resolve them.", len(syn.Conflicts)),
		})
	}
	if len(syn.ResearchGaps) > 0 {
		recs = append(recs, Recommendation{
			Type:   "gap_filling",
			Detail: fmt.Sprintf("%d topic area(s) have thin coverage; broaden the search or raise maxUrls.", len(syn.ResearchGaps)),
		})
	}
	recs = append(recs, Recommendation{
		Type:   "validation",
		Detail: "Validate key findings against primary sources or domain experts before acting on them.",
	})
	return recs
}

// KeywordGrouper clusters claims by their three most significant keywords.
type KeywordGrouper struct{}

var stopwords = map[string]bool{
	"about": true, "after": true, "also": true, "been": true, "being": true,
	"between": true, "both": true, "could": true, "does": true, "each": true,
	"from": true, "have": true, "include": true, "includes": true, "into": true,
	"more": true, "most": true, "other": true, "over": true, "should": true,
	"some": true, "such": true, "than": true, "that": true, "their": true,
	"there": true, "these": true, "they": true, "this": true, "through": true,
	"under": true, "very": true, "were": true, "when": true, "where": true,
	"which": true, "while": true, "will": true, "with": true, "would": true,
}

func (KeywordGrouper) Group(claims []Claim) []ClaimGroup {
	byKey := make(map[string]*ClaimGroup)
	var order []string
	for _, claim := range claims {
		sig := claimSignature(claim.Text)
		key := strings.Join(sig, "|")
		g, ok := byKey[key]
		if !ok {
			g = &ClaimGroup{Signature: sig}
			byKey[key] = g
			order = append(order, key)
		}
		g.Claims = append(g.Claims, claim)
	}

	groups := make([]ClaimGroup, 0, len(order))
	for _, key := range order {
		g := byKey[key]
		urls := make(map[string]bool, len(g.Claims))
		total := 0.0
		for _, c := range g.Claims {
			urls[c.SourceURL] = true
			total += c.Credibility
		}
		g.SourceCount = len(urls)
		g.AvgCredibility = total / float64(len(g.Claims))
		groups = append(groups, *g)
	}
	return groups
}

// claimSignature picks the three most significant keywords of a claim:
// tokens longer than three characters, minus stopwords, ranked by frequency
// then alphabetically, returned in alphabetical order.
func claimSignature(text string) []string {
	freq := make(map[string]int)
	for _, tok := range tokenize(text) {
		if len(tok) <= 3 || stopwords[tok] {
			continue
		}
		freq[tok]++
	}

	keywords := make([]string, 0, len(freq))
	for kw := range freq {
		keywords = append(keywords, kw)
	}
	sort.Slice(keywords, func(a, b int) bool {
		if freq[keywords[a]] != freq[keywords[b]] {
			return freq[keywords[a]] > freq[keywords[b]]
		}
		return keywords[a] < keywords[b]
	})
	if len(keywords) > 3 {
		keywords = keywords[:3]
	}
	sort.Strings(keywords)
	return keywords
}

// AntonymDetector flags claim pairs within a group whose texts contain
// opposing terms. At most one conflict is recorded per opposing pair per
// group, so five claims against five counter-claims still yield a single
// record.
type AntonymDetector struct{}

var antonymPairs = [][2]string{
	{"not", "is"},
	{"false", "true"},
	{"incorrect", "correct"},
	{"impossible", "possible"},
	{"never", "always"},
	{"no", "yes"},
}

func (AntonymDetector) Detect(group ClaimGroup) []Conflict {
	sets := make([]map[string]bool, len(group.Claims))
	for i, c := range group.Claims {
		sets[i] = wordSet(c.Text)
	}

	conflicts := []Conflict{}
	for _, pair := range antonymPairs {
		found := false
		for i := 0; i < len(group.Claims) && !found; i++ {
			for j := i + 1; j < len(group.Claims) && !found; j++ {
				if !opposing(sets[i], sets[j], pair[0], pair[1]) {
					continue
				}
				a, b := group.Claims[i], group.Claims[j]
				conflicts = append(conflicts, Conflict{
					First:    a,
					Second:   b,
					Terms:    pair[0] + "/" + pair[1],
					Severity: 0.5 + 0.5*absFloat(a.Credibility-b.Credibility),
				})
				found = true
			}
		}
	}
	return conflicts
}

// opposing reports whether one claim carries the negating term the other
// lacks. Whole-word matching keeps "no" from firing inside "not".
func opposing(a, b map[string]bool, neg, pos string) bool {
	return (a[neg] && b[pos] && !b[neg]) || (b[neg] && a[pos] && !a[neg])
}

func wordSet(text string) map[string]bool {
	set := make(map[string]bool)
	for _, tok := range strings.Fields(strings.ToLower(text)) {
		set[strings.Trim(tok, ".,;:!?\"'()")] = true
	}
	return set
}

func absFloat(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
