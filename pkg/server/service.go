package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/sourcedive/sourcedive/pkg/archive"
	"github.com/sourcedive/sourcedive/pkg/config"
	"github.com/sourcedive/sourcedive/pkg/database"
	"github.com/sourcedive/sourcedive/pkg/embeddings"
	"github.com/sourcedive/sourcedive/pkg/research"
	"github.com/sourcedive/sourcedive/pkg/research/tools"
	"github.com/sourcedive/sourcedive/pkg/vectorstore"
)

type Service struct {
	DB  *database.PostgresDB
	Cfg *config.Config
}

func NewService(db *database.PostgresDB, cfg *config.Config) *Service {
	return &Service{
		DB:  db,
		Cfg: cfg,
	}
}

type Job struct {
	ID        uuid.UUID       `json:"id"`
	Topic     string          `json:"topic"`
	Status    string          `json:"status"`
	Options   json.RawMessage `json:"options"`
	Report    json.RawMessage `json:"report,omitempty"`
	Error     *string         `json:"error,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

type CreateJobRequest struct {
	Topic   string            `json:"topic"`
	Options *research.Options `json:"options,omitempty"`
}

func (s *Service) CreateJob(ctx context.Context, req CreateJobRequest) (*Job, error) {
	opts := s.Cfg.ResearchOptions()
	if req.Options != nil {
		opts = *req.Options
	}
	optionsJSON, err := json.Marshal(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal options: %w", err)
	}

	jobID := uuid.New()
	query := `
		INSERT INTO research_jobs (id, topic, status, options)
		VALUES ($1, $2, 'pending', $3)
		RETURNING id, topic, status, options, created_at, updated_at
	`

	job := &Job{}
	err = s.DB.Pool.QueryRow(ctx, query, jobID, req.Topic, optionsJSON).Scan(
		&job.ID, &job.Topic, &job.Status, &job.Options, &job.CreatedAt, &job.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create job: %w", err)
	}

	go s.runWorker(job.ID, req.Topic, opts)

	return job, nil
}

func (s *Service) GetJob(ctx context.Context, id uuid.UUID) (*Job, error) {
	query := `
		SELECT id, topic, status, options, report, error, created_at, updated_at
		FROM research_jobs
		WHERE id = $1
	`
	job := &Job{}
	err := s.DB.Pool.QueryRow(ctx, query, id).Scan(
		&job.ID, &job.Topic, &job.Status, &job.Options, &job.Report, &job.Error, &job.CreatedAt, &job.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	return job, nil
}

func (s *Service) ListJobs(ctx context.Context) ([]Job, error) {
	query := `
		SELECT id, topic, status, options, report, error, created_at, updated_at
		FROM research_jobs
		ORDER BY created_at DESC
		LIMIT 50
	`
	rows, err := s.DB.Pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []Job
	for rows.Next() {
		var job Job
		if err := rows.Scan(&job.ID, &job.Topic, &job.Status, &job.Options, &job.Report, &job.Error, &job.CreatedAt, &job.UpdatedAt); err != nil {
			continue
		}
		jobs = append(jobs, job)
	}
	return jobs, nil
}

type LogEntry struct {
	ID        int             `json:"id"`
	Timestamp time.Time       `json:"timestamp"`
	Level     string          `json:"level"`
	Message   string          `json:"message"`
	Metadata  json.RawMessage `json:"metadata"`
}

func (s *Service) GetJobLogs(ctx context.Context, jobID uuid.UUID) ([]LogEntry, error) {
	query := `
		SELECT id, timestamp, level, message, metadata
		FROM research_logs
		WHERE job_id = $1
		ORDER BY id ASC
	`
	rows, err := s.DB.Pool.Query(ctx, query, jobID)
	if err != nil {
		return nil, fmt.Errorf("failed to get logs: %w", err)
	}
	defer rows.Close()

	var logs []LogEntry
	for rows.Next() {
		var l LogEntry
		if err := rows.Scan(&l.ID, &l.Timestamp, &l.Level, &l.Message, &l.Metadata); err != nil {
			continue
		}
		logs = append(logs, l)
	}
	return logs, nil
}

// runWorker executes one research job in the background, streaming its logs
// into the research_logs table and archiving the finished report.
func (s *Service) runWorker(jobID uuid.UUID, topic string, opts research.Options) {
	ctx := context.Background()

	_, _ = s.DB.Pool.Exec(ctx, "UPDATE research_jobs SET status = 'running', updated_at = NOW() WHERE id = $1", jobID)

	dbLogger := slog.New(NewDBLogHandler(s.DB, jobID))

	engineCfg, err := tools.BuildCollaborators(ctx, tools.CollaboratorOptions{
		APIKey:      s.Cfg.GoogleAPIKey,
		Model:       s.Cfg.FastModel,
		EnableArxiv: s.Cfg.EnableArxiv,
		Logger:      dbLogger,
	})
	if err != nil {
		s.failJob(ctx, jobID, fmt.Sprintf("Failed to init engine: %v", err))
		return
	}
	engine := research.NewEngine(engineCfg)

	report := engine.ConductResearch(ctx, topic, opts)

	reportJSON, err := json.Marshal(report)
	if err != nil {
		s.failJob(ctx, jobID, fmt.Sprintf("Failed to marshal report: %v", err))
		return
	}

	status := "completed"
	if !report.Success {
		status = "failed"
	}
	_, err = s.DB.Pool.Exec(ctx,
		"UPDATE research_jobs SET status = $2, report = $3, error = NULLIF($4, ''), updated_at = NOW() WHERE id = $1",
		jobID, status, reportJSON, report.Error)
	if err != nil {
		dbLogger.Error("Failed to save final report to DB", "error", err)
	}

	if report.Success {
		s.archiveReport(ctx, dbLogger, report)
	}
}

// archiveReport indexes the report into the evidence collection so chat
// sessions can retrieve it. Failures are logged, not fatal: the report row
// already holds the full result.
func (s *Service) archiveReport(ctx context.Context, logger *slog.Logger, report *research.Report) {
	if s.Cfg.GoogleAPIKey == "" {
		logger.Warn("skipping archive, no embedding API key configured")
		return
	}

	embedder, err := embeddings.NewGoogleEmbedder(ctx, s.Cfg.EmbeddingModel, s.Cfg.GoogleAPIKey)
	if err != nil {
		logger.Error("Failed to create embedder for archiving", "error", err)
		return
	}
	store, err := vectorstore.NewEvidenceStore(s.DB.Pool, s.Cfg.EvidenceCollection)
	if err != nil {
		logger.Error("Failed to open evidence store", "error", err)
		return
	}

	indexer := archive.NewIndexer(embedder, store, s.Cfg.ChunkSize, s.Cfg.ChunkOverlap, logger)
	if _, err := indexer.IndexReport(ctx, report); err != nil {
		logger.Error("Failed to archive report", "error", err)
	}
}

func (s *Service) failJob(ctx context.Context, jobID uuid.UUID, reason string) {
	dbLogger := slog.New(NewDBLogHandler(s.DB, jobID))
	dbLogger.Error(reason)

	_, _ = s.DB.Pool.Exec(ctx, "UPDATE research_jobs SET status = 'failed', error = $2, updated_at = NOW() WHERE id = $1", jobID, reason)
}
