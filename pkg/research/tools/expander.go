package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/tmc/langchaingo/llms"
)

const expanderSystemPrompt = `You are a research strategist. Given a topic, propose distinct search
queries that approach it from different angles: definitions, evidence, criticism, recent work and
applications. Return between 3 and 8 queries.`

const expanderSchema = `{
  "queries": ["string"]
}`

// LLMExpander proposes query variants for a topic with a language model.
type LLMExpander struct {
	model  llms.Model
	logger *slog.Logger
}

func NewLLMExpander(model llms.Model, logger *slog.Logger) *LLMExpander {
	if logger == nil {
		logger = slog.Default()
	}
	return &LLMExpander{model: model, logger: logger}
}

func (e *LLMExpander) Variants(ctx context.Context, topic string) ([]string, error) {
	var variants []string
	_, err := generateWithRetry(ctx, e.model, e.logger, []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, expanderSystemPrompt+"\n\n# Response Format:\n"+expanderSchema),
		llms.TextParts(llms.ChatMessageTypeHuman, topic),
	}, func(content string) error {
		var candidate struct {
			Queries []string `json:"queries"`
		}
		if err := json.Unmarshal([]byte(content), &candidate); err != nil {
			return fmt.Errorf("invalid variants json: %w", err)
		}
		if len(candidate.Queries) == 0 {
			return fmt.Errorf("expander returned no queries")
		}
		variants = candidate.Queries
		return nil
	})
	if err != nil {
		return nil, err
	}
	return variants, nil
}

// TemplateExpander is the offline fallback: simple angle rewrites of the
// topic with no external calls.
type TemplateExpander struct{}

func (TemplateExpander) Variants(_ context.Context, topic string) ([]string, error) {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return nil, fmt.Errorf("empty topic")
	}
	return []string{
		topic + " advantages and limitations",
		topic + " current state of research",
		topic + " criticism and counterarguments",
		"how does " + topic + " work",
	}, nil
}
