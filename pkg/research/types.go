package research

import (
	"context"
	"time"
)

// Options controls a single research session. Zero values fall back to
// defaults; out-of-range values are clamped at session start.
type Options struct {
	MaxDepth    int           `json:"maxDepth"`    // number of expanded queries used (1-10)
	MaxURLs     int           `json:"maxUrls"`     // global cap on gathered sources (1-1000)
	TimeLimit   time.Duration `json:"timeLimit"`   // wall-clock budget for the whole session (30s-300s)
	Concurrency int           `json:"concurrency"` // exploration batch size (1-20)

	EnableSourceVerification bool `json:"enableSourceVerification"`
	EnableConflictDetection  bool `json:"enableConflictDetection"`

	CacheEnabled bool          `json:"cacheEnabled"`
	CacheTTL     time.Duration `json:"cacheTtl"`

	// Accepted but only loosely enforced beyond the fixed verification cutoff.
	SourceTypes          []string `json:"sourceTypes,omitempty"`
	CredibilityThreshold float64  `json:"credibilityThreshold,omitempty"`
	IncludeRecentOnly    bool     `json:"includeRecentOnly,omitempty"`
}

// DefaultOptions returns the options used when a caller passes the zero value.
func DefaultOptions() Options {
	return Options{
		MaxDepth:                 3,
		MaxURLs:                  20,
		TimeLimit:                120 * time.Second,
		Concurrency:              5,
		EnableSourceVerification: true,
		EnableConflictDetection:  true,
		CacheEnabled:             true,
		CacheTTL:                 30 * time.Minute,
	}
}

// SearchResult is one raw hit returned by a Searcher.
type SearchResult struct {
	Title    string                 `json:"title"`
	URL      string                 `json:"url"`
	Snippet  string                 `json:"snippet"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// Extraction is the content a collaborator pulled out of one page.
type Extraction struct {
	Content        string                 `json:"content"`
	Metadata       map[string]interface{} `json:"metadata,omitempty"`
	StructuredData map[string]interface{} `json:"structuredData,omitempty"`
}

// ExtractOptions tunes a single Extract call.
type ExtractOptions struct {
	IncludeMetadata       bool
	IncludeStructuredData bool
}

// Summary holds the key points a Summarizer extracted from source text.
type Summary struct {
	KeyPoints  []string `json:"keyPoints"`
	Supporting []string `json:"supporting,omitempty"`
}

// Collaborator ports. The pipeline consumes these behind interfaces so live
// implementations (pkg/research/tools) and test doubles are interchangeable.
type (
	// Searcher executes one web search.
	Searcher interface {
		Search(ctx context.Context, query string, limit int) ([]SearchResult, error)
	}

	// Extractor fetches and extracts readable content for one URL. It may
	// fail per-call; the pipeline drops the source and moves on.
	Extractor interface {
		Extract(ctx context.Context, url string, opts ExtractOptions) (*Extraction, error)
	}

	// Summarizer distills source text into key-point claims.
	Summarizer interface {
		Summarize(ctx context.Context, text string) (*Summary, error)
	}

	// QueryExpander proposes query variants for a topic.
	QueryExpander interface {
		Variants(ctx context.Context, topic string) ([]string, error)
	}

	// Cache memoizes expansion and ranking work between calls.
	Cache interface {
		Get(key string) (interface{}, bool)
		Set(key string, value interface{})
	}
)

// CredibilityFactors are the six independent heuristic sub-scores combined
// into a source's overall credibility. Each lies in [0,1].
type CredibilityFactors struct {
	DomainAuthority     float64 `json:"domainAuthority"`
	ContentQuality      float64 `json:"contentQuality"`
	SourceType          float64 `json:"sourceType"`
	Recency             float64 `json:"recency"`
	AuthorityIndicators float64 `json:"authorityIndicators"`
	CitationPotential   float64 `json:"citationPotential"`
}

// SourceRecord tracks one candidate source across the pipeline stages.
type SourceRecord struct {
	URL     string `json:"url"`
	Title   string `json:"title"`
	Snippet string `json:"snippet"`
	Query   string `json:"query"` // the expanded query that discovered it

	DiscoveredAt time.Time `json:"discoveredAt"`
	ExtractedAt  time.Time `json:"extractedAt,omitempty"`

	Content        string                 `json:"content,omitempty"`
	Metadata       map[string]interface{} `json:"metadata,omitempty"`
	StructuredData map[string]interface{} `json:"structuredData,omitempty"`
	WordCount      int                    `json:"wordCount"`
	Readability    float64                `json:"readability"`

	// Lightweight stage-2 heuristics, replaced by full verification scores
	// when stage 4 runs.
	InitialCredibility float64 `json:"initialCredibility"`
	Relevance          float64 `json:"relevance"`

	Credibility        CredibilityFactors `json:"credibilityFactors"`
	OverallCredibility float64            `json:"overallCredibility"`
}

// Claim is a single key point attributed to one source.
type Claim struct {
	ID          string  `json:"id"`
	Text        string  `json:"text"`
	SourceURL   string  `json:"sourceUrl"`
	SourceTitle string  `json:"sourceTitle"`
	Credibility float64 `json:"credibility"`
	Context     string  `json:"context,omitempty"`
}

// ClaimGroup clusters claims sharing a keyword signature. It is the unit of
// consensus and conflict analysis.
type ClaimGroup struct {
	Signature         []string `json:"signature"` // 3 most significant keywords, alphabetical
	Claims            []Claim  `json:"claims"`
	SourceCount       int      `json:"sourceCount"`
	AvgCredibility    float64  `json:"avgCredibility"`
	ConsensusStrength float64  `json:"consensusStrength"`
}

// Conflict pairs two claims from the same group whose texts contain opposing
// terms. Severity grows with the credibility gap between the sources.
type Conflict struct {
	First    Claim   `json:"first"`
	Second   Claim   `json:"second"`
	Terms    string  `json:"terms"` // the opposing pair, e.g. "possible/impossible"
	Severity float64 `json:"severity"`
}

// Finding is one synthesized key finding backed by a claim group.
type Finding struct {
	Text        string   `json:"text"`
	SourceCount int      `json:"sourceCount"`
	Confidence  float64  `json:"confidence"`
	Keywords    []string `json:"keywords,omitempty"`
}

// Evidence is a high-credibility source excerpt supporting the findings.
type Evidence struct {
	URL         string  `json:"url"`
	Title       string  `json:"title"`
	Excerpt     string  `json:"excerpt"`
	Credibility float64 `json:"credibility"`
}

// ConsensusEntry is a claim group with enough independent credible support
// to count as an established finding.
type ConsensusEntry struct {
	Statement      string  `json:"statement"`
	SourceCount    int     `json:"sourceCount"`
	AvgCredibility float64 `json:"avgCredibility"`
	Strength       float64 `json:"strength"`
}

// Recommendation is a fixed-rule follow-up suggestion.
type Recommendation struct {
	Type   string `json:"type"` // conflict_resolution, gap_filling, validation, recovery
	Detail string `json:"detail"`
}

// Synthesis is the output of stage 5.
type Synthesis struct {
	KeyFindings        []Finding        `json:"keyFindings"`
	SupportingEvidence []Evidence       `json:"supportingEvidence"`
	Conflicts          []Conflict       `json:"conflicts"`
	Consensus          []ConsensusEntry `json:"consensus"`
	ResearchGaps       []string         `json:"researchGaps"`
	Recommendations    []Recommendation `json:"recommendations"`
	Error              string           `json:"error,omitempty"`
}

// Activity is one append-only session log entry, also emitted through the
// Engine's OnActivity hook.
type Activity struct {
	Type      string                 `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Data      map[string]interface{} `json:"data,omitempty"`
}

// Metrics are the running counters of one session.
type Metrics struct {
	QueriesExpanded    int `json:"queriesExpanded"`
	SearchesExecuted   int `json:"searchesExecuted"`
	SearchFailures     int `json:"searchFailures"`
	SourcesGathered    int `json:"sourcesGathered"`
	SourcesExplored    int `json:"sourcesExplored"`
	ExtractionFailures int `json:"extractionFailures"`
	SourcesVerified    int `json:"sourcesVerified"`
	SourcesDropped     int `json:"sourcesDropped"`
	ClaimsExtracted    int `json:"claimsExtracted"`
	CacheHits          int `json:"cacheHits"`
}

// CredibilityDistribution buckets verified sources by overall credibility.
type CredibilityDistribution struct {
	High   int `json:"high"`   // >= 0.7
	Medium int `json:"medium"` // 0.4 - 0.7
	Low    int `json:"low"`    // < 0.4
}

// Summary counts for the compiled report.
type ResearchSummary struct {
	TotalQueries    int `json:"totalQueries"`
	TotalSources    int `json:"totalSources"`
	VerifiedSources int `json:"verifiedSources"`
	TotalFindings   int `json:"totalFindings"`
	TotalConflicts  int `json:"totalConflicts"`
}

// Performance describes how the session spent its time budget.
type Performance struct {
	Duration     time.Duration `json:"duration"`
	TimeLimit    time.Duration `json:"timeLimit"`
	WithinBudget bool          `json:"withinBudget"`
	Metrics      Metrics       `json:"metrics"`
}

// Report is the compiled output of one ConductResearch call. The entry point
// always returns a well-formed Report; Success is false only when an
// unexpected error escaped every stage boundary, in which case Error is set
// and the report carries whatever partial state the session accumulated.
type Report struct {
	SessionID string    `json:"sessionId"`
	Topic     string    `json:"topic"`
	Success   bool      `json:"success"`
	Error     string    `json:"error,omitempty"`
	StartedAt time.Time `json:"startedAt"`

	ResearchSummary    ResearchSummary         `json:"researchSummary"`
	Findings           []Finding               `json:"findings"`
	SupportingEvidence []Evidence              `json:"supportingEvidence"`
	Consensus          []ConsensusEntry        `json:"consensus"`
	Conflicts          []Conflict              `json:"conflicts"`
	ResearchGaps       []string                `json:"researchGaps"`
	Recommendations    []Recommendation        `json:"recommendations"`
	Credibility        CredibilityDistribution `json:"credibilityDistribution"`

	Activity    []Activity  `json:"activity"`
	Performance Performance `json:"performance"`
	Config      Options     `json:"config"`

	// Partial state surfaced on failure so callers can resume manually.
	VisitedURLs []string `json:"visitedUrls,omitempty"`
}

// Completion is delivered to OnCompleted when a session finishes.
type Completion struct {
	SessionID     string        `json:"sessionId"`
	Topic         string        `json:"topic"`
	Duration      time.Duration `json:"duration"`
	FindingsCount int           `json:"findingsCount"`
}

// Failure is delivered to OnFailed when a session ends unsuccessfully.
type Failure struct {
	SessionID string `json:"sessionId"`
	Topic     string `json:"topic"`
	Error     string `json:"error"`
}
