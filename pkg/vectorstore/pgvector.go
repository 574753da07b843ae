package vectorstore

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

// Chunk is one embedded piece of archived research evidence.
type Chunk struct {
	ID        string                 `json:"id"`
	Content   string                 `json:"content"`
	Metadata  map[string]interface{} `json:"metadata"`
	Embedding []float32              `json:"embedding,omitempty"`
}

// Well-known metadata keys written by the archive indexer.
const (
	MetaReportID    = "reportId"
	MetaSource      = "source"
	MetaCredibility = "credibility"
	MetaKind        = "kind" // finding, evidence, consensus
)

// SearchFilter narrows a similarity search. Zero value means no filtering.
type SearchFilter struct {
	Source   string
	ReportID string
}

// Match is a similarity search hit.
type Match struct {
	Chunk Chunk
	Score float64
}

// EvidenceStore persists and searches evidence chunks in a pgvector table.
type EvidenceStore struct {
	pool      *pgxpool.Pool
	tableName string
}

// isValidTableName guards the collection name interpolated into SQL. Only
// lowercase-led identifiers within PostgreSQL's 63-char limit pass.
func isValidTableName(name string) bool {
	matched, _ := regexp.MatchString(`^[a-z_][a-zA-Z0-9_]{0,62}$`, name)
	return matched
}

func NewEvidenceStore(pool *pgxpool.Pool, tableName string) (*EvidenceStore, error) {
	if !isValidTableName(tableName) {
		return nil, fmt.Errorf("invalid collection name %q: must contain only alphanumeric characters and underscores, start with a letter or underscore, and be 1-63 characters long", tableName)
	}
	return &EvidenceStore{pool: pool, tableName: tableName}, nil
}

// AddChunks inserts embedded chunks in one batch.
func (vs *EvidenceStore) AddChunks(ctx context.Context, chunks []Chunk) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (content, metadata, embedding)
		VALUES ($1, $2, $3)
	`, pgx.Identifier{vs.tableName}.Sanitize())

	batch := &pgx.Batch{}
	for _, chunk := range chunks {
		metadataJSON, err := json.Marshal(chunk.Metadata)
		if err != nil {
			return fmt.Errorf("failed to marshal chunk metadata: %w", err)
		}
		batch.Queue(query, chunk.Content, metadataJSON, pgvector.NewVector(chunk.Embedding))
	}

	br := vs.pool.SendBatch(ctx, batch)
	defer br.Close()
	for range chunks {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("failed to insert chunk: %w", err)
		}
	}
	return nil
}

// Search returns the topK chunks nearest to queryEmbedding by cosine
// distance, optionally scoped by filter.
func (vs *EvidenceStore) Search(ctx context.Context, queryEmbedding []float32, topK int, filter SearchFilter) ([]Match, error) {
	embedding := pgvector.NewVector(queryEmbedding)
	args := []interface{}{embedding}

	where := "TRUE"
	var clauses []string
	if filter.Source != "" {
		args = append(args, filter.Source)
		clauses = append(clauses, fmt.Sprintf("metadata->>'%s' = $%d", MetaSource, len(args)))
	}
	if filter.ReportID != "" {
		args = append(args, filter.ReportID)
		clauses = append(clauses, fmt.Sprintf("metadata->>'%s' = $%d", MetaReportID, len(args)))
	}
	if len(clauses) > 0 {
		where = strings.Join(clauses, " AND ")
	}

	args = append(args, topK)
	query := fmt.Sprintf(`
		SELECT id, content, metadata, 1 - (embedding <=> $1) AS similarity
		FROM %s
		WHERE %s
		ORDER BY embedding <=> $1
		LIMIT $%d
	`, pgx.Identifier{vs.tableName}.Sanitize(), where, len(args))

	rows, err := vs.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to execute similarity search: %w", err)
	}
	defer rows.Close()

	var matches []Match
	for rows.Next() {
		var chunk Chunk
		var metadataJSON []byte
		var score float64
		if err := rows.Scan(&chunk.ID, &chunk.Content, &metadataJSON, &score); err != nil {
			return nil, fmt.Errorf("failed to scan match: %w", err)
		}
		if err := json.Unmarshal(metadataJSON, &chunk.Metadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal chunk metadata: %w", err)
		}
		matches = append(matches, Match{Chunk: chunk, Score: score})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating matches: %w", err)
	}
	return matches, nil
}

// ChunksBySource returns every chunk archived for one source URL.
func (vs *EvidenceStore) ChunksBySource(ctx context.Context, source string) ([]Chunk, error) {
	query := fmt.Sprintf(`
		SELECT id, content, metadata
		FROM %s
		WHERE metadata->>'%s' = $1
	`, pgx.Identifier{vs.tableName}.Sanitize(), MetaSource)
	return vs.queryChunks(ctx, query, source)
}

// ChunksByReport returns every chunk archived for one research session.
func (vs *EvidenceStore) ChunksByReport(ctx context.Context, reportID string) ([]Chunk, error) {
	query := fmt.Sprintf(`
		SELECT id, content, metadata
		FROM %s
		WHERE metadata->>'%s' = $1
	`, pgx.Identifier{vs.tableName}.Sanitize(), MetaReportID)
	return vs.queryChunks(ctx, query, reportID)
}

// ChunksByMetadata returns chunks matching a JSON filter. The filter supports
// the logical operators $and, $or and $not; any other key is an equality
// match through the JSONB containment operator.
func (vs *EvidenceStore) ChunksByMetadata(ctx context.Context, filter map[string]interface{}) ([]Chunk, error) {
	var args []interface{}
	whereClause, err := vs.buildMetadataQuery(filter, &args)
	if err != nil {
		return nil, fmt.Errorf("failed to build metadata query: %w", err)
	}

	query := fmt.Sprintf(`
		SELECT id, content, metadata
		FROM %s
		WHERE %s
	`, pgx.Identifier{vs.tableName}.Sanitize(), whereClause)
	return vs.queryChunks(ctx, query, args...)
}

func (vs *EvidenceStore) queryChunks(ctx context.Context, query string, args ...interface{}) ([]Chunk, error) {
	rows, err := vs.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	defer rows.Close()

	var chunks []Chunk
	for rows.Next() {
		var chunk Chunk
		var metadataJSON []byte
		if err := rows.Scan(&chunk.ID, &chunk.Content, &metadataJSON); err != nil {
			return nil, fmt.Errorf("failed to scan chunk: %w", err)
		}
		if err := json.Unmarshal(metadataJSON, &chunk.Metadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal chunk metadata: %w", err)
		}
		chunks = append(chunks, chunk)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating chunks: %w", err)
	}
	return chunks, nil
}

func (vs *EvidenceStore) buildMetadataQuery(filter map[string]interface{}, args *[]interface{}) (string, error) {
	if len(filter) == 0 {
		return "TRUE", nil
	}

	var conditions []string
	for key, value := range filter {
		switch key {
		case "$and", "$or":
			list, ok := value.([]interface{})
			if !ok {
				return "", fmt.Errorf("value for %s must be a list of conditions", key)
			}
			var subConditions []string
			for _, item := range list {
				subMap, ok := item.(map[string]interface{})
				if !ok {
					return "", fmt.Errorf("item in %s list must be a JSON object", key)
				}
				subQuery, err := vs.buildMetadataQuery(subMap, args)
				if err != nil {
					return "", err
				}
				subConditions = append(subConditions, "("+subQuery+")")
			}
			if len(subConditions) == 0 {
				continue
			}
			op := " AND "
			if key == "$or" {
				op = " OR "
			}
			conditions = append(conditions, "("+strings.Join(subConditions, op)+")")

		case "$not":
			subMap, ok := value.(map[string]interface{})
			if !ok {
				return "", fmt.Errorf("value for $not must be a JSON object")
			}
			subQuery, err := vs.buildMetadataQuery(subMap, args)
			if err != nil {
				return "", err
			}
			conditions = append(conditions, "NOT ("+subQuery+")")

		default:
			pair := map[string]interface{}{key: value}
			jsonBytes, err := json.Marshal(pair)
			if err != nil {
				return "", fmt.Errorf("failed to marshal metadata pair: %w", err)
			}
			*args = append(*args, jsonBytes)
			conditions = append(conditions, fmt.Sprintf("metadata @> $%d", len(*args)))
		}
	}

	if len(conditions) == 0 {
		return "TRUE", nil
	}
	return strings.Join(conditions, " AND "), nil
}
