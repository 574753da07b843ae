package tools

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/sourcedive/sourcedive/pkg/research"
)

// CollaboratorOptions selects which live backends the engine gets wired with.
type CollaboratorOptions struct {
	APIKey      string // empty means lexical fallbacks instead of LLM stages
	Model       string // defaults to DefaultModel
	EnableArxiv bool
	Logger      *slog.Logger
}

// BuildCollaborators assembles the live search, extraction, summarization and
// expansion backends for a research engine. Without an API key the LLM stages
// degrade to the lexical implementations, so the pipeline stays usable
// offline.
func BuildCollaborators(ctx context.Context, opts CollaboratorOptions) (research.EngineConfig, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	client := &http.Client{Timeout: 20 * time.Second}

	searchers := []research.Searcher{NewDuckDuckGoSearcher(client, logger)}
	if opts.EnableArxiv {
		searchers = append(searchers, NewArxivSearcher(client, logger))
	}

	cfg := research.EngineConfig{
		Searcher:   NewMultiSearcher(logger, searchers...),
		Extractor:  NewPageExtractor(client, logger),
		Summarizer: &LexicalSummarizer{},
		Expander:   &TemplateExpander{},
		Logger:     logger,
	}

	if opts.APIKey == "" {
		logger.Warn("no API key configured, using lexical summarizer and template expander")
		return cfg, nil
	}

	modelName := opts.Model
	if modelName == "" {
		modelName = DefaultModel
	}
	model, err := NewGoogleModel(ctx, modelName, opts.APIKey)
	if err != nil {
		return research.EngineConfig{}, err
	}
	cfg.Summarizer = NewLLMSummarizer(model, logger)
	cfg.Expander = NewLLMExpander(model, logger)
	return cfg, nil
}
