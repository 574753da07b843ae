package research

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// errTimeBudget is the tagged signal for a stage losing its race against the
// session deadline. It is compared with errors.Is, never by message text, and
// never escapes the engine: the pipeline swallows it and proceeds with
// whatever the stage accumulated.
var errTimeBudget = errors.New("research: time budget exceeded")

// Bounds applied to caller-supplied options.
const (
	minDepth       = 1
	maxDepth       = 10
	minURLs        = 1
	maxURLs        = 1000
	minTimeLimit   = 30 * time.Second
	maxTimeLimit   = 300 * time.Second
	minConcurrency = 1
	maxConcurrency = 20

	maxGatherQueries = 5
	maxBatchSize     = 10
)

// EngineConfig wires an Engine's collaborators. Searcher, Extractor and
// Summarizer are required for a useful pipeline; the rest default.
type EngineConfig struct {
	Searcher   Searcher
	Extractor  Extractor
	Summarizer Summarizer
	Expander   QueryExpander
	Cache      Cache
	Grouper    ClaimGrouper
	Detector   ConflictDetector
	Logger     *slog.Logger
}

// Engine drives research sessions. Session state is threaded through the
// stage functions as an explicit value, so one Engine is safe for concurrent
// ConductResearch calls.
type Engine struct {
	searcher   Searcher
	extractor  Extractor
	summarizer Summarizer
	expander   QueryExpander
	cache      Cache
	grouper    ClaimGrouper
	detector   ConflictDetector
	ranker     *Ranker

	Logger *slog.Logger

	// Observable event hooks for an external dispatcher or UI. All optional.
	OnActivity  func(Activity)
	OnCompleted func(Completion)
	OnFailed    func(Failure)
}

// NewEngine creates an engine, filling unset collaborators with defaults.
func NewEngine(cfg EngineConfig) *Engine {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	cache := cfg.Cache
	if cache == nil {
		cache = NewMemoryCache(1000, 30*time.Minute)
	}
	grouper := cfg.Grouper
	if grouper == nil {
		grouper = KeywordGrouper{}
	}
	detector := cfg.Detector
	if detector == nil {
		detector = AntonymDetector{}
	}

	return &Engine{
		searcher:   cfg.Searcher,
		extractor:  cfg.Extractor,
		summarizer: cfg.Summarizer,
		expander:   cfg.Expander,
		cache:      cache,
		grouper:    grouper,
		detector:   detector,
		ranker:     NewRanker(cache, logger),
		Logger:     logger,
	}
}

// Ranker exposes the engine's result ranker for standalone use.
func (e *Engine) Ranker() *Ranker {
	return e.ranker
}

// session is the private state of one ConductResearch call. Stage goroutines
// may outlive their stage's deadline race; they append under mu, and the
// pipeline proceeds with a snapshot taken when the race ends, so late
// arrivals are discarded.
type session struct {
	id        string
	topic     string
	opts      Options
	startedAt time.Time
	deadline  time.Time

	mu               sync.Mutex
	visited          map[string]bool
	queryResults     map[string][]SearchResult
	contentByURL     map[string]string
	credibilityByURL map[string]float64
	gathered         []SourceRecord
	explored         []SourceRecord
	activity         []Activity
	metrics          Metrics
}

func newSession(topic string, opts Options) *session {
	now := time.Now()
	return &session{
		id:               uuid.New().String(),
		topic:            topic,
		opts:             opts,
		startedAt:        now,
		deadline:         now.Add(opts.TimeLimit),
		visited:          make(map[string]bool),
		queryResults:     make(map[string][]SearchResult),
		contentByURL:     make(map[string]string),
		credibilityByURL: make(map[string]float64),
	}
}

func (s *session) snapshotGathered() []SourceRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.finalizeGatheredLocked()
	out := make([]SourceRecord, len(s.gathered))
	copy(out, s.gathered)
	return out
}

func (s *session) snapshotExplored() []SourceRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]SourceRecord, len(s.explored))
	copy(out, s.explored)
	return out
}

func (s *session) visitedURLs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	urls := make([]string, 0, len(s.visited))
	for u := range s.visited {
		urls = append(urls, u)
	}
	return urls
}

// clampOptions fills defaults for zero values and clamps everything into the
// supported bounds.
func clampOptions(opts Options) Options {
	defaults := DefaultOptions()
	if opts.MaxDepth == 0 {
		opts.MaxDepth = defaults.MaxDepth
	}
	if opts.MaxURLs == 0 {
		opts.MaxURLs = defaults.MaxURLs
	}
	if opts.TimeLimit == 0 {
		opts.TimeLimit = defaults.TimeLimit
	}
	if opts.Concurrency == 0 {
		opts.Concurrency = defaults.Concurrency
	}
	if opts.CacheTTL == 0 {
		opts.CacheTTL = defaults.CacheTTL
	}

	opts.MaxDepth = clampInt(opts.MaxDepth, minDepth, maxDepth)
	opts.MaxURLs = clampInt(opts.MaxURLs, minURLs, maxURLs)
	opts.Concurrency = clampInt(opts.Concurrency, minConcurrency, maxConcurrency)
	if opts.TimeLimit < minTimeLimit {
		opts.TimeLimit = minTimeLimit
	}
	if opts.TimeLimit > maxTimeLimit {
		opts.TimeLimit = maxTimeLimit
	}
	return opts
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// ConductResearch runs the six-stage pipeline for topic. It never returns an
// error and never panics: fatal failures produce a Report with Success=false
// carrying the partial session state and one recovery recommendation.
func (e *Engine) ConductResearch(ctx context.Context, topic string, opts Options) (report *Report) {
	opts = clampOptions(opts)
	s := newSession(topic, opts)

	e.Logger.Info("starting research session",
		"session", s.id, "topic", topic,
		"maxDepth", opts.MaxDepth, "maxUrls", opts.MaxURLs,
		"timeLimit", opts.TimeLimit, "concurrency", opts.Concurrency)

	defer func() {
		if rec := recover(); rec != nil {
			report = e.failureReport(s, fmt.Errorf("pipeline panic: %v", rec))
		}
	}()

	report, err := e.runPipeline(ctx, s)
	if err != nil {
		return e.failureReport(s, err)
	}

	if e.OnCompleted != nil {
		e.OnCompleted(Completion{
			SessionID:     s.id,
			Topic:         s.topic,
			Duration:      time.Since(s.startedAt),
			FindingsCount: len(report.Findings),
		})
	}
	return report
}

// runPipeline executes the stages in order. Besides stage 1-5 boundary
// degradation, only genuinely unexpected errors propagate out of here.
func (e *Engine) runPipeline(ctx context.Context, s *session) (*Report, error) {
	// Stage 1: expand the topic into ranked queries.
	queries := e.expandTopic(ctx, s)
	e.logActivity(s, "topic_expanded", map[string]interface{}{"queries": queries})

	// Stage 2: gather candidate sources, raced against the deadline.
	if err := e.runTimed(ctx, s, "gather", func(stageCtx context.Context) error {
		return e.gatherSources(stageCtx, s, queries)
	}); err != nil && !errors.Is(err, errTimeBudget) {
		return nil, err
	}
	gathered := s.snapshotGathered()
	e.logActivity(s, "sources_gathered", map[string]interface{}{"count": len(gathered)})

	// Stage 3: explore sources in bounded batches, raced against the deadline.
	if err := e.runTimed(ctx, s, "explore", func(stageCtx context.Context) error {
		return e.exploreSources(stageCtx, s, gathered)
	}); err != nil && !errors.Is(err, errTimeBudget) {
		return nil, err
	}
	explored := s.snapshotExplored()
	e.logActivity(s, "sources_explored", map[string]interface{}{"count": len(explored)})

	// Stage 4: verify credibility, dropping anything below the cutoff.
	verified := explored
	if s.opts.EnableSourceVerification {
		verified = e.verifySources(s, explored)
		e.logActivity(s, "sources_verified", map[string]interface{}{
			"kept":    len(verified),
			"dropped": len(explored) - len(verified),
		})
	} else {
		for i := range verified {
			verified[i].OverallCredibility = verified[i].InitialCredibility
		}
	}

	// Stage 5: synthesize claims, consensus and conflicts.
	synthesis := e.synthesize(ctx, s, verified)
	e.logActivity(s, "synthesis_complete", map[string]interface{}{
		"findings":  len(synthesis.KeyFindings),
		"conflicts": len(synthesis.Conflicts),
	})

	// Stage 6: compile the final report.
	report := e.compileReport(s, verified, synthesis)
	e.logActivity(s, "report_compiled", map[string]interface{}{
		"withinBudget": report.Performance.WithinBudget,
	})
	return report, nil
}

// runTimed races fn against the remaining session budget. When the timer
// wins, in-flight work is cancelled through the stage context, abandoned, and
// errTimeBudget returned; fn's partial accumulation in the session survives.
func (e *Engine) runTimed(ctx context.Context, s *session, stage string, fn func(context.Context) error) error {
	remaining := time.Until(s.deadline)
	if remaining <= 0 {
		e.Logger.Warn("time budget exhausted before stage", "session", s.id, "stage", stage)
		return errTimeBudget
	}

	stageCtx, cancel := context.WithTimeout(ctx, remaining)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				done <- fmt.Errorf("stage %s panic: %v", stage, rec)
			}
		}()
		done <- fn(stageCtx)
	}()

	select {
	case err := <-done:
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			e.Logger.Warn("stage hit time budget, continuing with partial results",
				"session", s.id, "stage", stage)
			return errTimeBudget
		}
		return err
	case <-stageCtx.Done():
		e.Logger.Warn("stage abandoned at deadline, continuing with partial results",
			"session", s.id, "stage", stage)
		return errTimeBudget
	}
}

func (e *Engine) logActivity(s *session, kind string, data map[string]interface{}) {
	entry := Activity{Type: kind, Timestamp: time.Now(), Data: data}
	s.mu.Lock()
	s.activity = append(s.activity, entry)
	s.mu.Unlock()

	e.Logger.Info("research activity", "session", s.id, "type", kind)
	if e.OnActivity != nil {
		e.OnActivity(entry)
	}
}

// failureReport is the single top-level failure path: a well-formed report
// with the partial session state and one recovery suggestion.
func (e *Engine) failureReport(s *session, err error) *Report {
	e.Logger.Error("research session failed", "session", s.id, "topic", s.topic, "error", err)
	if e.OnFailed != nil {
		e.OnFailed(Failure{SessionID: s.id, Topic: s.topic, Error: err.Error()})
	}

	s.mu.Lock()
	activity := make([]Activity, len(s.activity))
	copy(activity, s.activity)
	metrics := s.metrics
	s.mu.Unlock()

	duration := time.Since(s.startedAt)
	return &Report{
		SessionID: s.id,
		Topic:     s.topic,
		Success:   false,
		Error:     err.Error(),
		StartedAt: s.startedAt,
		Findings:  []Finding{},
		Recommendations: []Recommendation{{
			Type:   "recovery",
			Detail: "The session ended unexpectedly; retry with a smaller maxUrls or a longer timeLimit and review the activity log for the failing stage.",
		}},
		Activity: activity,
		Performance: Performance{
			Duration:     duration,
			TimeLimit:    s.opts.TimeLimit,
			WithinBudget: duration <= s.opts.TimeLimit,
			Metrics:      metrics,
		},
		Config:      s.opts,
		VisitedURLs: s.visitedURLs(),
	}
}
