// Package archive stores completed research reports as embedded evidence
// chunks so later chat sessions can retrieve them.
package archive

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/tmc/langchaingo/textsplitter"

	"github.com/sourcedive/sourcedive/pkg/research"
	"github.com/sourcedive/sourcedive/pkg/vectorstore"
)

// Embedder turns text into vectors. Satisfied by embeddings.GoogleEmbedder.
type Embedder interface {
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// ChunkStore persists embedded chunks. Satisfied by vectorstore.EvidenceStore.
type ChunkStore interface {
	AddChunks(ctx context.Context, chunks []vectorstore.Chunk) error
}

// Indexer splits report sections into overlapping chunks, embeds them and
// writes them to the evidence collection.
type Indexer struct {
	splitter textsplitter.TextSplitter
	embedder Embedder
	store    ChunkStore
	logger   *slog.Logger
}

func NewIndexer(embedder Embedder, store ChunkStore, chunkSize, chunkOverlap int, logger *slog.Logger) *Indexer {
	return &Indexer{
		splitter: textsplitter.NewRecursiveCharacter(
			textsplitter.WithChunkSize(chunkSize),
			textsplitter.WithChunkOverlap(chunkOverlap),
		),
		embedder: embedder,
		store:    store,
		logger:   logger,
	}
}

type section struct {
	text     string
	metadata map[string]interface{}
}

// IndexReport archives the findings, supporting evidence and consensus of a
// completed report. It returns the number of chunks written.
func (ix *Indexer) IndexReport(ctx context.Context, report *research.Report) (int, error) {
	sections := collectSections(report)
	if len(sections) == 0 {
		ix.logger.Info("nothing to archive", "sessionId", report.SessionID)
		return 0, nil
	}

	var chunks []vectorstore.Chunk
	for _, sec := range sections {
		parts, err := ix.splitter.SplitText(sec.text)
		if err != nil {
			return 0, fmt.Errorf("failed to split section: %w", err)
		}
		for _, part := range parts {
			chunks = append(chunks, vectorstore.Chunk{Content: part, Metadata: sec.metadata})
		}
	}

	texts := make([]string, len(chunks))
	for i, chunk := range chunks {
		texts[i] = chunk.Content
	}
	vectors, err := ix.embedder.EmbedTexts(ctx, texts)
	if err != nil {
		return 0, fmt.Errorf("failed to embed chunks: %w", err)
	}
	if len(vectors) != len(chunks) {
		return 0, fmt.Errorf("embedder returned %d vectors for %d chunks", len(vectors), len(chunks))
	}
	for i := range chunks {
		chunks[i].Embedding = vectors[i]
	}

	if err := ix.store.AddChunks(ctx, chunks); err != nil {
		return 0, fmt.Errorf("failed to store chunks: %w", err)
	}
	ix.logger.Info("report archived", "sessionId", report.SessionID, "chunks", len(chunks))
	return len(chunks), nil
}

func collectSections(report *research.Report) []section {
	var sections []section
	base := func(kind string) map[string]interface{} {
		return map[string]interface{}{
			vectorstore.MetaReportID: report.SessionID,
			vectorstore.MetaKind:     kind,
			"topic":                  report.Topic,
		}
	}

	for _, finding := range report.Findings {
		if finding.Text == "" {
			continue
		}
		meta := base("finding")
		meta["sourceCount"] = finding.SourceCount
		sections = append(sections, section{
			text:     fmt.Sprintf("Finding: %s", finding.Text),
			metadata: meta,
		})
	}
	for _, ev := range report.SupportingEvidence {
		if ev.Excerpt == "" {
			continue
		}
		meta := base("evidence")
		meta[vectorstore.MetaSource] = ev.URL
		meta[vectorstore.MetaCredibility] = ev.Credibility
		meta["title"] = ev.Title
		sections = append(sections, section{text: ev.Excerpt, metadata: meta})
	}
	for _, entry := range report.Consensus {
		if entry.Statement == "" {
			continue
		}
		meta := base("consensus")
		meta["sourceCount"] = entry.SourceCount
		sections = append(sections, section{
			text:     fmt.Sprintf("Consensus (%d sources): %s", entry.SourceCount, entry.Statement),
			metadata: meta,
		})
	}
	return sections
}
