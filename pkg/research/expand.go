package research

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

// queryTemplates are the fixed research angles merged with collaborator
// variants during topic expansion.
var queryTemplates = []string{
	"what is %s",
	"%s overview",
	"%s research",
	"%s 2024",
	"%s analysis",
	"%s case studies",
	"%s benefits and drawbacks",
	"%s latest developments",
	"%s statistics",
	"%s future trends",
}

var researchKeywords = []string{
	"research", "study", "analysis", "data", "evidence",
	"report", "overview", "statistics", "trends", "developments",
}

// expandTopic is stage 1: merge collaborator variants with the fixed
// templates, rank by topic overlap, and keep the top maxDepth queries. A
// failing expander degrades to the bare topic plus templates.
func (e *Engine) expandTopic(ctx context.Context, s *session) []string {
	if s.opts.CacheEnabled && e.cache != nil {
		key := CacheKey("expand", s.topic, fmt.Sprint(s.opts.MaxDepth))
		if cached, ok := e.cache.Get(key); ok {
			if queries, ok := cached.([]string); ok {
				s.mu.Lock()
				s.metrics.CacheHits++
				s.metrics.QueriesExpanded = len(queries)
				s.mu.Unlock()
				return queries
			}
		}
	}

	var variants []string
	if e.expander != nil {
		var err error
		variants, err = e.expander.Variants(ctx, s.topic)
		if err != nil {
			e.Logger.Warn("query expansion failed, degrading to original topic",
				"session", s.id, "error", err)
			variants = nil
		}
	}

	candidates := make([]string, 0, len(queryTemplates)+len(variants)+1)
	candidates = append(candidates, s.topic)
	for _, tmpl := range queryTemplates {
		candidates = append(candidates, fmt.Sprintf(tmpl, s.topic))
	}
	candidates = append(candidates, variants...)
	candidates = dedupeStrings(candidates)

	type scored struct {
		query string
		score float64
	}
	topicTerms := tokenize(s.topic)
	ranked := make([]scored, 0, len(candidates))
	for _, q := range candidates {
		ranked = append(ranked, scored{query: q, score: queryScore(q, topicTerms)})
	}
	sort.SliceStable(ranked, func(a, b int) bool { return ranked[a].score > ranked[b].score })

	n := s.opts.MaxDepth
	if n > len(ranked) {
		n = len(ranked)
	}
	queries := make([]string, 0, n)
	for _, sc := range ranked[:n] {
		queries = append(queries, sc.query)
	}

	s.mu.Lock()
	s.metrics.QueriesExpanded = len(queries)
	s.mu.Unlock()

	if s.opts.CacheEnabled && e.cache != nil {
		e.cache.Set(CacheKey("expand", s.topic, fmt.Sprint(s.opts.MaxDepth)), queries)
	}
	return queries
}

// queryScore ranks a candidate query: topic-term overlap contributes up to
// 0.3, a research keyword 0.2, and a sane length 0.1.
func queryScore(query string, topicTerms []string) float64 {
	var score float64

	queryTerms := tokenize(query)
	if len(topicTerms) > 0 {
		present := make(map[string]bool, len(queryTerms))
		for _, t := range queryTerms {
			present[t] = true
		}
		overlap := 0
		for _, t := range topicTerms {
			if present[t] {
				overlap++
			}
		}
		score += 0.3 * float64(overlap) / float64(len(topicTerms))
	}

	lower := strings.ToLower(query)
	for _, kw := range researchKeywords {
		if strings.Contains(lower, kw) {
			score += 0.2
			break
		}
	}

	if n := len(query); n >= 10 && n <= 100 {
		score += 0.1
	}
	return score
}

func dedupeStrings(ss []string) []string {
	seen := make(map[string]bool, len(ss))
	out := make([]string, 0, len(ss))
	for _, s := range ss {
		key := strings.ToLower(strings.TrimSpace(s))
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, s)
	}
	return out
}
