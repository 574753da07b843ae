package chat

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"google.golang.org/adk/agent"
	"google.golang.org/adk/tool"
	"google.golang.org/adk/tool/functiontool"

	"github.com/sourcedive/sourcedive/pkg/config"
	"github.com/sourcedive/sourcedive/pkg/database"
	"github.com/sourcedive/sourcedive/pkg/embeddings"
	"github.com/sourcedive/sourcedive/pkg/vectorstore"
)

// EvidenceToolset exposes the archived research evidence to the chat agent.
type EvidenceToolset struct {
	DB       *database.PostgresDB
	Embedder *embeddings.GoogleEmbedder
	config   *config.Config
}

func NewEvidenceToolset(db *database.PostgresDB, embedder *embeddings.GoogleEmbedder, config *config.Config) *EvidenceToolset {
	return &EvidenceToolset{
		DB:       db,
		Embedder: embedder,
		config:   config,
	}
}

func (t *EvidenceToolset) Name() string {
	return "evidence_tools"
}

func (t *EvidenceToolset) Tools(ctx agent.ReadonlyContext) ([]tool.Tool, error) {
	searchTool, err := functiontool.New[SearchEvidenceArgs, SearchEvidenceResp](
		functiontool.Config{
			Name:        "search_evidence",
			Description: "Semantic search over archived research findings and evidence.",
		},
		t.searchEvidenceTool,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create search tool: %w", err)
	}

	findBySourceTool, err := functiontool.New[FindSourceArgs, FindSourceResp](
		functiontool.Config{
			Name:        "find_evidence_by_source",
			Description: "Return all archived evidence gathered from a specific source URL.",
		},
		t.findEvidenceBySourceTool,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create find_by_source tool: %w", err)
	}

	findByMetadataTool, err := functiontool.New[FindMetadataArgs, FindMetadataResp](
		functiontool.Config{
			Name:        "find_evidence_by_metadata",
			Description: "Find archived evidence using logical filters ($and, $or, $not) on chunk metadata.",
		},
		t.findEvidenceByMetadataTool,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create find_by_metadata tool: %w", err)
	}

	return []tool.Tool{searchTool, findBySourceTool, findByMetadataTool}, nil
}

func (t *EvidenceToolset) store() (*vectorstore.EvidenceStore, error) {
	return vectorstore.NewEvidenceStore(t.DB.Pool, t.config.EvidenceCollection)
}

// --- Tool Implementations ---

type SearchEvidenceArgs struct {
	Query    string `json:"query" description:"The search query"`
	TopK     int    `json:"topK,omitempty" description:"Number of results to return (default 5)"`
	Source   string `json:"source,omitempty" description:"Optional source URL filter"`
	ReportID string `json:"reportId,omitempty" description:"Optional research session filter"`
}

type SearchEvidenceResp struct {
	Results string `json:"results"`
}

// Wrapper for ADK tool interface
func (t *EvidenceToolset) searchEvidenceTool(ctx tool.Context, args SearchEvidenceArgs) (SearchEvidenceResp, error) {
	return t.SearchEvidence(ctx, args)
}

// Public method using standard context
func (t *EvidenceToolset) SearchEvidence(ctx context.Context, args SearchEvidenceArgs) (SearchEvidenceResp, error) {
	if args.TopK == 0 {
		args.TopK = 5
	}

	slog.Info("Search evidence", "query", args.Query, "topK", args.TopK, "source", args.Source, "reportId", args.ReportID)

	queryEmbedding, err := t.Embedder.EmbedText(ctx, args.Query)
	if err != nil {
		return SearchEvidenceResp{}, fmt.Errorf("failed to generate query embedding: %w", err)
	}

	store, err := t.store()
	if err != nil {
		return SearchEvidenceResp{}, fmt.Errorf("invalid collection name: %w", err)
	}

	matches, err := store.Search(ctx, queryEmbedding, args.TopK, vectorstore.SearchFilter{
		Source:   args.Source,
		ReportID: args.ReportID,
	})
	if err != nil {
		return SearchEvidenceResp{}, fmt.Errorf("failed to search: %w", err)
	}

	var formatted []string
	for _, match := range matches {
		formatted = append(formatted, formatChunk(match.Chunk))
	}
	return SearchEvidenceResp{Results: strings.Join(formatted, "\n\n")}, nil
}

type FindSourceArgs struct {
	Source string `json:"source" description:"The source URL to find evidence for"`
}

type FindSourceResp struct {
	Content string `json:"content"`
}

// Wrapper for ADK tool interface
func (t *EvidenceToolset) findEvidenceBySourceTool(ctx tool.Context, args FindSourceArgs) (FindSourceResp, error) {
	return t.FindEvidenceBySource(ctx, args)
}

// Public method using standard context
func (t *EvidenceToolset) FindEvidenceBySource(ctx context.Context, args FindSourceArgs) (FindSourceResp, error) {
	store, err := t.store()
	if err != nil {
		return FindSourceResp{}, fmt.Errorf("invalid collection name: %w", err)
	}

	chunks, err := store.ChunksBySource(ctx, args.Source)
	if err != nil {
		return FindSourceResp{}, fmt.Errorf("failed to find evidence: %w", err)
	}

	var formatted []string
	for _, chunk := range chunks {
		formatted = append(formatted, chunk.Content)
	}
	return FindSourceResp{Content: strings.Join(formatted, "\n\n")}, nil
}

type FindMetadataArgs struct {
	Filter map[string]interface{} `json:"filter" description:"JSON filter object with logical operators ($and, $or, $not)"`
}

type FindMetadataResp struct {
	Content string `json:"content"`
}

// Wrapper for ADK tool interface
func (t *EvidenceToolset) findEvidenceByMetadataTool(ctx tool.Context, args FindMetadataArgs) (FindMetadataResp, error) {
	return t.FindEvidenceByMetadata(ctx, args)
}

// Public method using standard context
func (t *EvidenceToolset) FindEvidenceByMetadata(ctx context.Context, args FindMetadataArgs) (FindMetadataResp, error) {
	store, err := t.store()
	if err != nil {
		return FindMetadataResp{}, fmt.Errorf("invalid collection name: %w", err)
	}

	chunks, err := store.ChunksByMetadata(ctx, args.Filter)
	if err != nil {
		return FindMetadataResp{}, fmt.Errorf("failed to find evidence: %w", err)
	}

	var formatted []string
	for _, chunk := range chunks {
		formatted = append(formatted, formatChunk(chunk))
	}
	return FindMetadataResp{Content: strings.Join(formatted, "\n\n")}, nil
}

func formatChunk(chunk vectorstore.Chunk) string {
	source := "unknown"
	if s, ok := chunk.Metadata[vectorstore.MetaSource].(string); ok && s != "" {
		source = s
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("[Source]: %s\n[Content]: %s", source, chunk.Content))
	for k, v := range chunk.Metadata {
		if k == vectorstore.MetaSource {
			continue
		}
		sb.WriteString(fmt.Sprintf("\n[%s]: %v", k, v))
	}
	return sb.String()
}
