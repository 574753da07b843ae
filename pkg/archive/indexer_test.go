package archive

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/sourcedive/sourcedive/pkg/research"
	"github.com/sourcedive/sourcedive/pkg/vectorstore"
)

type fakeEmbedder struct {
	fail bool
}

func (f *fakeEmbedder) EmbedTexts(_ context.Context, texts []string) ([][]float32, error) {
	if f.fail {
		return nil, errors.New("quota exceeded")
	}
	vectors := make([][]float32, len(texts))
	for i := range texts {
		vectors[i] = []float32{float32(len(texts[i])), 0.5}
	}
	return vectors, nil
}

type fakeStore struct {
	chunks []vectorstore.Chunk
	fail   bool
}

func (f *fakeStore) AddChunks(_ context.Context, chunks []vectorstore.Chunk) error {
	if f.fail {
		return errors.New("connection refused")
	}
	f.chunks = append(f.chunks, chunks...)
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func sampleReport() *research.Report {
	return &research.Report{
		SessionID: "session-1",
		Topic:     "solar energy",
		Success:   true,
		Findings: []research.Finding{
			{Text: "Solar adoption is accelerating worldwide.", SourceCount: 3},
		},
		SupportingEvidence: []research.Evidence{
			{
				URL:         "https://example.edu/solar",
				Title:       "Solar Study",
				Excerpt:     "Installed capacity grew by 24% year over year.",
				Credibility: 0.82,
			},
		},
		Consensus: []research.ConsensusEntry{
			{Statement: "Solar is cost competitive with fossil fuels.", SourceCount: 4},
		},
	}
}

func TestIndexReport(t *testing.T) {
	store := &fakeStore{}
	ix := NewIndexer(&fakeEmbedder{}, store, 1000, 200, testLogger())

	count, err := ix.IndexReport(context.Background(), sampleReport())
	if err != nil {
		t.Fatalf("IndexReport: %v", err)
	}
	if count != 3 {
		t.Fatalf("chunk count = %d, want 3", count)
	}
	if len(store.chunks) != 3 {
		t.Fatalf("stored chunks = %d, want 3", len(store.chunks))
	}

	kinds := map[string]bool{}
	for _, chunk := range store.chunks {
		if len(chunk.Embedding) == 0 {
			t.Error("chunk stored without embedding")
		}
		if chunk.Metadata[vectorstore.MetaReportID] != "session-1" {
			t.Errorf("reportId = %v, want session-1", chunk.Metadata[vectorstore.MetaReportID])
		}
		if chunk.Metadata["topic"] != "solar energy" {
			t.Errorf("topic = %v, want solar energy", chunk.Metadata["topic"])
		}
		kind, _ := chunk.Metadata[vectorstore.MetaKind].(string)
		kinds[kind] = true
	}
	for _, kind := range []string{"finding", "evidence", "consensus"} {
		if !kinds[kind] {
			t.Errorf("missing chunk kind %q", kind)
		}
	}

	var evidence *vectorstore.Chunk
	for i := range store.chunks {
		if store.chunks[i].Metadata[vectorstore.MetaKind] == "evidence" {
			evidence = &store.chunks[i]
		}
	}
	if evidence == nil {
		t.Fatal("no evidence chunk stored")
	}
	if evidence.Metadata[vectorstore.MetaSource] != "https://example.edu/solar" {
		t.Errorf("source = %v", evidence.Metadata[vectorstore.MetaSource])
	}
	if !strings.Contains(evidence.Content, "24%") {
		t.Errorf("evidence content = %q", evidence.Content)
	}
}

func TestIndexReportEmpty(t *testing.T) {
	store := &fakeStore{}
	ix := NewIndexer(&fakeEmbedder{}, store, 1000, 200, testLogger())

	count, err := ix.IndexReport(context.Background(), &research.Report{SessionID: "empty", Success: true})
	if err != nil {
		t.Fatalf("IndexReport: %v", err)
	}
	if count != 0 {
		t.Errorf("chunk count = %d, want 0", count)
	}
	if len(store.chunks) != 0 {
		t.Errorf("stored chunks = %d, want 0", len(store.chunks))
	}
}

func TestIndexReportEmbedFailure(t *testing.T) {
	store := &fakeStore{}
	ix := NewIndexer(&fakeEmbedder{fail: true}, store, 1000, 200, testLogger())

	if _, err := ix.IndexReport(context.Background(), sampleReport()); err == nil {
		t.Fatal("expected error when embedding fails")
	}
	if len(store.chunks) != 0 {
		t.Errorf("stored chunks = %d, want 0 after failure", len(store.chunks))
	}
}

func TestIndexReportStoreFailure(t *testing.T) {
	ix := NewIndexer(&fakeEmbedder{}, &fakeStore{fail: true}, 1000, 200, testLogger())
	if _, err := ix.IndexReport(context.Background(), sampleReport()); err == nil {
		t.Fatal("expected error when store fails")
	}
}

func TestIndexReportSplitsLongSections(t *testing.T) {
	store := &fakeStore{}
	ix := NewIndexer(&fakeEmbedder{}, store, 80, 10, testLogger())

	report := &research.Report{
		SessionID: "long",
		Topic:     "batteries",
		SupportingEvidence: []research.Evidence{
			{
				URL:         "https://example.org/batteries",
				Excerpt:     strings.Repeat("Grid storage deployments keep growing. ", 20),
				Credibility: 0.75,
			},
		},
	}
	count, err := ix.IndexReport(context.Background(), report)
	if err != nil {
		t.Fatalf("IndexReport: %v", err)
	}
	if count < 2 {
		t.Errorf("chunk count = %d, want multiple chunks for long excerpt", count)
	}
}
