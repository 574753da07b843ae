package research

import (
	"fmt"
	"log/slog"
	"math"
	"net/url"
	"sort"
	"strings"
	"time"
	"unicode"
)

// RankWeights weight the four ranker sub-scores. They are renormalized to sum
// to 1 before use, so callers may pass any positive proportions.
type RankWeights struct {
	BM25      float64 `json:"bm25"`
	Semantic  float64 `json:"semantic"`
	Authority float64 `json:"authority"`
	Freshness float64 `json:"freshness"`
}

// DefaultRankWeights returns the standard sub-score weighting.
func DefaultRankWeights() RankWeights {
	return RankWeights{BM25: 0.4, Semantic: 0.3, Authority: 0.2, Freshness: 0.1}
}

// RankOptions tunes a single Rank call.
type RankOptions struct {
	Weights      *RankWeights
	CacheEnabled bool
}

// RankedResult is a search result with its sub-scores and rank movement.
type RankedResult struct {
	SearchResult

	BM25       float64 `json:"bm25"`
	Semantic   float64 `json:"semantic"`
	Authority  float64 `json:"authority"`
	Freshness  float64 `json:"freshness"`
	FinalScore float64 `json:"finalScore"`

	OriginalIndex int `json:"originalIndex"`
	Rank          int `json:"rank"`
	RankDelta     int `json:"rankDelta"`
}

// Ranker scores batches of search results against a query using four
// independent heuristics. Rank never fails: on any internal panic it falls
// back to the original order with synthetic descending scores.
type Ranker struct {
	cache  Cache
	logger *slog.Logger
}

// NewRanker creates a ranker. cache may be nil to disable memoization.
func NewRanker(cache Cache, logger *slog.Logger) *Ranker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Ranker{cache: cache, logger: logger}
}

// BM25 parameters and the constant document-frequency approximation. True
// corpus statistics are unavailable for a transient search batch, so document
// frequency is fixed at 10% of the batch size.
const (
	bm25K1      = 1.5
	bm25B       = 0.75
	bm25DFRatio = 0.1

	freshnessDecayRate = 0.1
	freshnessMaxMonths = 24
	exactMatchBoost    = 0.2
)

// Rank scores results against query and returns them sorted by descending
// final score. Output length always equals input length.
func (r *Ranker) Rank(results []SearchResult, query string, opts RankOptions) (ranked []RankedResult) {
	if len(results) == 0 {
		return []RankedResult{}
	}

	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("ranker failed, falling back to original order", "error", fmt.Sprint(rec))
			ranked = fallbackOrder(results)
		}
	}()

	weights := normalizeWeights(opts.Weights)

	var cacheKey string
	if opts.CacheEnabled && r.cache != nil {
		cacheKey = rankCacheKey(results, query, weights)
		if cached, ok := r.cache.Get(cacheKey); ok {
			if hit, ok := cached.([]RankedResult); ok {
				out := make([]RankedResult, len(hit))
				copy(out, hit)
				return out
			}
		}
	}

	queryTerms := tokenize(query)
	docs := make([][]string, len(results))
	totalLen := 0
	for i, res := range results {
		docs[i] = tokenize(res.Title + " " + res.Snippet)
		totalLen += len(docs[i])
	}
	avgDocLen := float64(totalLen) / float64(len(results))
	if avgDocLen == 0 {
		avgDocLen = 1
	}

	ranked = make([]RankedResult, len(results))
	for i, res := range results {
		rr := RankedResult{SearchResult: res, OriginalIndex: i}
		rr.BM25 = bm25Score(queryTerms, docs[i], len(results), avgDocLen)
		rr.Semantic = semanticScore(query, queryTerms, res)
		rr.Authority = authorityScore(res.URL)
		rr.Freshness = freshnessScore(res, time.Now())
		rr.FinalScore = clamp01(weights.BM25*rr.BM25 +
			weights.Semantic*rr.Semantic +
			weights.Authority*rr.Authority +
			weights.Freshness*rr.Freshness)
		ranked[i] = rr
	}

	sort.SliceStable(ranked, func(a, b int) bool {
		return ranked[a].FinalScore > ranked[b].FinalScore
	})
	for i := range ranked {
		ranked[i].Rank = i
		ranked[i].RankDelta = ranked[i].OriginalIndex - i
	}

	if cacheKey != "" {
		stored := make([]RankedResult, len(ranked))
		copy(stored, ranked)
		r.cache.Set(cacheKey, stored)
	}

	return ranked
}

// fallbackOrder preserves the input order with synthetic descending scores.
func fallbackOrder(results []SearchResult) []RankedResult {
	ranked := make([]RankedResult, len(results))
	for i, res := range results {
		ranked[i] = RankedResult{
			SearchResult:  res,
			FinalScore:    1.0 - float64(i)*0.1,
			OriginalIndex: i,
			Rank:          i,
		}
	}
	return ranked
}

func normalizeWeights(w *RankWeights) RankWeights {
	if w == nil {
		return DefaultRankWeights()
	}
	weights := *w
	sum := weights.BM25 + weights.Semantic + weights.Authority + weights.Freshness
	if sum <= 0 {
		return DefaultRankWeights()
	}
	weights.BM25 /= sum
	weights.Semantic /= sum
	weights.Authority /= sum
	weights.Freshness /= sum
	return weights
}

func rankCacheKey(results []SearchResult, query string, weights RankWeights) string {
	parts := make([]string, 0, len(results)+2)
	parts = append(parts, "rank", query,
		fmt.Sprintf("%.4f|%.4f|%.4f|%.4f", weights.BM25, weights.Semantic, weights.Authority, weights.Freshness))
	// Every field that feeds a sub-score participates in the key, so results
	// differing only in snippet or date never collide.
	for _, res := range results {
		part := res.URL + "|" + res.Title + "|" + res.Snippet
		if published, ok := publishedDate(res); ok {
			part += "|" + published.UTC().Format(time.RFC3339)
		}
		parts = append(parts, part)
	}
	return CacheKey(parts...)
}

// bm25Score computes a classic BM25 score of the document against the query
// terms, normalized into [0,1] by the maximum attainable term contribution.
func bm25Score(queryTerms, doc []string, batchSize int, avgDocLen float64) float64 {
	if len(queryTerms) == 0 || len(doc) == 0 {
		return 0
	}

	tf := make(map[string]int, len(doc))
	for _, t := range doc {
		tf[t]++
	}

	df := bm25DFRatio * float64(batchSize)
	if df < 1 {
		df = 1
	}
	idf := math.Log((float64(batchSize)-df+0.5)/(df+0.5) + 1)
	if idf <= 0 {
		return 0
	}

	docLen := float64(len(doc))
	var score float64
	for _, term := range queryTerms {
		freq := float64(tf[term])
		if freq == 0 {
			continue
		}
		score += idf * (freq * (bm25K1 + 1)) / (freq + bm25K1*(1-bm25B+bm25B*docLen/avgDocLen))
	}

	maxScore := idf * (bm25K1 + 1) * float64(len(queryTerms))
	return clamp01(score / maxScore)
}

// semanticScore is the cosine similarity of normalized term-frequency vectors
// for the query and the result text, with a flat boost when the full query
// appears verbatim.
func semanticScore(query string, queryTerms []string, res SearchResult) float64 {
	content := res.Title + " " + res.Snippet
	docTerms := tokenize(content)
	if len(queryTerms) == 0 || len(docTerms) == 0 {
		return 0
	}

	qv := termFrequencies(queryTerms)
	dv := termFrequencies(docTerms)

	var dot, qnorm, dnorm float64
	for term, qf := range qv {
		dot += qf * dv[term]
		qnorm += qf * qf
	}
	for _, df := range dv {
		dnorm += df * df
	}

	var score float64
	if qnorm > 0 && dnorm > 0 {
		score = dot / (math.Sqrt(qnorm) * math.Sqrt(dnorm))
	}

	if strings.Contains(strings.ToLower(content), strings.ToLower(strings.TrimSpace(query))) {
		score += exactMatchBoost
	}
	return clamp01(score)
}

// domainBoosts maps known-reputable domains to base authority scores.
// Matching is exact or by parent domain (subdomains inherit at a discount).
var domainBoosts = map[string]float64{
	"arxiv.org":         0.95,
	"nature.com":        0.95,
	"nih.gov":           0.95,
	"sciencedirect.com": 0.9,
	"ieee.org":          0.9,
	"acm.org":           0.9,
	"springer.com":      0.85,
	"wikipedia.org":     0.85,
	"reuters.com":       0.85,
	"github.com":        0.8,
	"bbc.com":           0.8,
	"nytimes.com":       0.8,
	"stackoverflow.com": 0.75,
}

// authorityScore estimates trustworthiness from URL shape alone. Unparseable
// URLs score a floor of 0.1.
func authorityScore(rawURL string) float64 {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return 0.1
	}

	host := strings.ToLower(u.Hostname())
	base, subdomained := lookupDomainBoost(host)
	if base == 0 {
		base = tldDefault(host)
	} else if subdomained {
		base *= 0.8
	}

	score := base
	if u.Scheme == "https" {
		score += 0.1
	}

	segments := 0
	for _, seg := range strings.Split(u.Path, "/") {
		if seg != "" {
			segments++
		}
	}
	penalty := 0.02 * float64(segments)
	if penalty > 0.3 {
		penalty = 0.3
	}
	score -= penalty

	if segments <= 2 && u.RawQuery == "" && u.Fragment == "" {
		score += 0.1
	}

	if sub := subdomainOf(host); sub != "" && sub != "www" {
		score -= 0.1
	}

	return clamp01(score)
}

// lookupDomainBoost finds a boost for host or any parent domain. The second
// return reports whether the match was via a parent (host is a subdomain).
func lookupDomainBoost(host string) (float64, bool) {
	if boost, ok := domainBoosts[host]; ok {
		return boost, false
	}
	labels := strings.Split(host, ".")
	for i := 1; i < len(labels)-1; i++ {
		parent := strings.Join(labels[i:], ".")
		if boost, ok := domainBoosts[parent]; ok {
			return boost, true
		}
	}
	return 0, false
}

func tldDefault(host string) float64 {
	switch {
	case strings.HasSuffix(host, ".edu"):
		return 0.8
	case strings.HasSuffix(host, ".gov"):
		return 0.9
	case strings.HasSuffix(host, ".org"):
		return 0.6
	case strings.HasSuffix(host, ".com"):
		return 0.4
	default:
		return 0.3
	}
}

// subdomainOf returns the left-most label when host has one beyond a
// registrable two-label domain, else "".
func subdomainOf(host string) string {
	labels := strings.Split(host, ".")
	if len(labels) > 2 {
		return labels[0]
	}
	return ""
}

// freshnessScore decays exponentially with the result's age in months. No
// parseable date scores a neutral 0.5; future dates score 1.0; anything past
// 24 months scores 0.
func freshnessScore(res SearchResult, now time.Time) float64 {
	published, ok := publishedDate(res)
	if !ok {
		return 0.5
	}
	if published.After(now) {
		return 1.0
	}

	ageMonths := now.Sub(published).Hours() / (24 * 30)
	if ageMonths > freshnessMaxMonths {
		return 0
	}
	return clamp01(math.Exp(-freshnessDecayRate * ageMonths))
}

var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02",
	"January 2, 2006",
	"Jan 2, 2006",
	"2 January 2006",
}

func publishedDate(res SearchResult) (time.Time, bool) {
	for _, key := range []string{"publishedDate", "published", "date"} {
		raw, ok := res.Metadata[key]
		if !ok {
			continue
		}
		switch v := raw.(type) {
		case time.Time:
			return v, true
		case string:
			for _, layout := range dateLayouts {
				if t, err := time.Parse(layout, v); err == nil {
					return t, true
				}
			}
		}
	}
	return time.Time{}, false
}

// tokenize lowercases and splits on non-alphanumeric runes, dropping
// single-character tokens.
func tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		if len(f) > 1 {
			tokens = append(tokens, f)
		}
	}
	return tokens
}

func termFrequencies(terms []string) map[string]float64 {
	freqs := make(map[string]float64, len(terms))
	for _, t := range terms {
		freqs[t]++
	}
	total := float64(len(terms))
	for t := range freqs {
		freqs[t] /= total
	}
	return freqs
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
