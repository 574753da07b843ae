package research

import (
	"context"
	"math"
	"strings"
	"sync"
	"time"
)

// exploreSources is stage 3: fetch and extract content for the gathered
// sources in bounded batches. Each batch completes as a unit and its
// successes are appended in batch order, so a lost deadline race leaves whole
// batches behind rather than a torn one. Failed extractions drop the source.
func (e *Engine) exploreSources(ctx context.Context, s *session, sources []SourceRecord) error {
	if e.extractor == nil || len(sources) == 0 {
		return nil
	}
	batchSize := s.opts.Concurrency
	if batchSize > maxBatchSize {
		batchSize = maxBatchSize
	}

	for start := 0; start < len(sources); start += batchSize {
		if err := ctx.Err(); err != nil {
			return err
		}
		end := start + batchSize
		if end > len(sources) {
			end = len(sources)
		}

		batch := make([]SourceRecord, 0, end-start)
		s.mu.Lock()
		for _, src := range sources[start:end] {
			if s.visited[src.URL] {
				continue
			}
			s.visited[src.URL] = true
			batch = append(batch, src)
		}
		s.mu.Unlock()

		results := make([]*SourceRecord, len(batch))
		var wg sync.WaitGroup
		for i, src := range batch {
			wg.Add(1)
			go func(i int, src SourceRecord) {
				defer wg.Done()
				defer func() {
					if rec := recover(); rec != nil {
						e.Logger.Error("extraction panicked", "session", s.id, "url", src.URL, "panic", rec)
						s.mu.Lock()
						s.metrics.ExtractionFailures++
						s.mu.Unlock()
					}
				}()

				extraction, err := e.extractor.Extract(ctx, src.URL, ExtractOptions{
					IncludeMetadata:       true,
					IncludeStructuredData: true,
				})
				if err != nil {
					e.Logger.Warn("extraction failed, dropping source",
						"session", s.id, "url", src.URL, "error", err)
					s.mu.Lock()
					s.metrics.ExtractionFailures++
					s.mu.Unlock()
					return
				}

				src.Content = extraction.Content
				src.StructuredData = extraction.StructuredData
				src.ExtractedAt = time.Now()
				src.WordCount = len(strings.Fields(extraction.Content))
				src.Readability = readabilityScore(extraction.Content)
				if len(extraction.Metadata) > 0 {
					if src.Metadata == nil {
						src.Metadata = make(map[string]interface{}, len(extraction.Metadata))
					}
					for k, v := range extraction.Metadata {
						src.Metadata[k] = v
					}
				}
				results[i] = &src
			}(i, src)
		}
		wg.Wait()

		s.mu.Lock()
		for _, rec := range results {
			if rec == nil {
				continue
			}
			s.contentByURL[rec.URL] = rec.Content
			s.explored = append(s.explored, *rec)
			s.metrics.SourcesExplored++
		}
		s.mu.Unlock()
	}
	return nil
}

// readabilityScore approximates how readable prose is from its average
// sentence length, peaking around 17 words per sentence.
func readabilityScore(content string) float64 {
	words := strings.Fields(content)
	if len(words) == 0 {
		return 0
	}
	sentences := 0
	for _, w := range words {
		if strings.HasSuffix(w, ".") || strings.HasSuffix(w, "!") || strings.HasSuffix(w, "?") {
			sentences++
		}
	}
	if sentences == 0 {
		sentences = 1
	}
	avg := float64(len(words)) / float64(sentences)
	return clamp01(1 - math.Abs(avg-17)/40)
}
