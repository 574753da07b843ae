package research

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"
)

var sourceKeywords = []string{
	"study", "research", "journal", "official", "data",
	"report", "university", "peer-reviewed", "analysis",
}

// gatherSources is stage 2: fan a search out per expanded query, rank each
// query's batch, score lightweight credibility and relevance heuristics,
// then dedupe, sort and truncate the merged pool to maxUrls. Records land in
// the session as each query settles, so a lost deadline race still leaves
// partial results behind.
func (e *Engine) gatherSources(ctx context.Context, s *session, queries []string) error {
	if e.searcher == nil || len(queries) == 0 {
		return nil
	}
	if len(queries) > maxGatherQueries {
		queries = queries[:maxGatherQueries]
	}
	perQuery := (s.opts.MaxURLs + len(queries) - 1) / len(queries)

	var wg sync.WaitGroup
	for _, query := range queries {
		wg.Add(1)
		go func(query string) {
			defer wg.Done()
			defer func() {
				if rec := recover(); rec != nil {
					e.Logger.Error("search panicked", "session", s.id, "query", query, "panic", rec)
					s.mu.Lock()
					s.metrics.SearchFailures++
					s.mu.Unlock()
				}
			}()

			results, err := e.searcher.Search(ctx, query, perQuery)
			if err != nil {
				e.Logger.Warn("search failed", "session", s.id, "query", query, "error", err)
				s.mu.Lock()
				s.metrics.SearchFailures++
				s.mu.Unlock()
				return
			}

			ranked := e.ranker.Rank(results, query, RankOptions{CacheEnabled: s.opts.CacheEnabled})
			records := make([]SourceRecord, 0, len(ranked))
			now := time.Now()
			for _, res := range ranked {
				records = append(records, SourceRecord{
					URL:                res.URL,
					Title:              res.Title,
					Snippet:            res.Snippet,
					Query:              query,
					DiscoveredAt:       now,
					Metadata:           res.Metadata,
					InitialCredibility: initialCredibility(res.URL, res.Title+" "+res.Snippet),
					Relevance:          relevanceScore(query, res.SearchResult),
				})
			}

			s.mu.Lock()
			s.queryResults[query] = results
			s.gathered = append(s.gathered, records...)
			s.metrics.SearchesExecuted++
			s.mu.Unlock()
		}(query)
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	s.finalizeGatheredLocked()
	s.mu.Unlock()
	return nil
}

// finalizeGatheredLocked dedupes, orders and caps the gathered pool. It runs
// again at snapshot time because a stage that lost its deadline race never
// reaches the post-wait block above. Callers must hold s.mu.
func (s *session) finalizeGatheredLocked() {
	s.gathered = dedupeSources(s.gathered)
	sort.SliceStable(s.gathered, func(a, b int) bool {
		sa := s.gathered[a].InitialCredibility + s.gathered[a].Relevance
		sb := s.gathered[b].InitialCredibility + s.gathered[b].Relevance
		return sa > sb
	})
	if len(s.gathered) > s.opts.MaxURLs {
		s.gathered = s.gathered[:s.opts.MaxURLs]
	}
	s.metrics.SourcesGathered = len(s.gathered)
}

// initialCredibility is the cheap stage-2 heuristic: the domain's authority
// baseline plus a small bonus per research keyword in the title or snippet.
func initialCredibility(rawURL, text string) float64 {
	score := authorityScore(rawURL)

	lower := strings.ToLower(text)
	bonus := 0.0
	for _, kw := range sourceKeywords {
		if strings.Contains(lower, kw) {
			bonus += 0.05
		}
	}
	if bonus > 0.2 {
		bonus = 0.2
	}
	return clamp01(score + bonus)
}

// relevanceScore measures query-term coverage, weighting the title over the
// snippet.
func relevanceScore(query string, res SearchResult) float64 {
	queryTerms := tokenize(query)
	if len(queryTerms) == 0 {
		return 0
	}
	return clamp01(0.6*termCoverage(queryTerms, tokenize(res.Title)) +
		0.4*termCoverage(queryTerms, tokenize(res.Snippet)))
}

func termCoverage(queryTerms, docTerms []string) float64 {
	if len(queryTerms) == 0 {
		return 0
	}
	present := make(map[string]bool, len(docTerms))
	for _, t := range docTerms {
		present[t] = true
	}
	hits := 0
	for _, t := range queryTerms {
		if present[t] {
			hits++
		}
	}
	return float64(hits) / float64(len(queryTerms))
}

func dedupeSources(records []SourceRecord) []SourceRecord {
	seen := make(map[string]bool, len(records))
	out := records[:0]
	for _, rec := range records {
		if rec.URL == "" || seen[rec.URL] {
			continue
		}
		seen[rec.URL] = true
		out = append(out, rec)
	}
	return out
}
