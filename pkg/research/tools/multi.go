package tools

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/sourcedive/sourcedive/pkg/research"
)

// MultiSearcher fans one query out to several searchers and merges their
// results, deduplicated by URL in searcher order. It fails only when every
// backend fails.
type MultiSearcher struct {
	searchers []research.Searcher
	logger    *slog.Logger
}

func NewMultiSearcher(logger *slog.Logger, searchers ...research.Searcher) *MultiSearcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &MultiSearcher{searchers: searchers, logger: logger}
}

func (m *MultiSearcher) Search(ctx context.Context, query string, limit int) ([]research.SearchResult, error) {
	if len(m.searchers) == 0 {
		return nil, errors.New("no search backends configured")
	}

	batches := make([][]research.SearchResult, len(m.searchers))
	errs := make([]error, len(m.searchers))

	var wg sync.WaitGroup
	for i, searcher := range m.searchers {
		wg.Add(1)
		go func(i int, searcher research.Searcher) {
			defer wg.Done()
			results, err := searcher.Search(ctx, query, limit)
			if err != nil {
				m.logger.Warn("search backend failed", "backend", i, "query", query, "error", err)
				errs[i] = err
				return
			}
			batches[i] = results
		}(i, searcher)
	}
	wg.Wait()

	seen := make(map[string]bool)
	var merged []research.SearchResult
	for _, batch := range batches {
		for _, res := range batch {
			if res.URL == "" || seen[res.URL] {
				continue
			}
			seen[res.URL] = true
			merged = append(merged, res)
			if len(merged) == limit {
				return merged, nil
			}
		}
	}

	if len(merged) == 0 {
		if err := errors.Join(errs...); err != nil {
			return nil, err
		}
	}
	return merged, nil
}
