package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/tmc/langchaingo/llms"

	"github.com/sourcedive/sourcedive/pkg/research"
)

const summarizerSystemPrompt = `You are a research assistant. Extract the key factual claims from the
provided text. Each key point must be one standalone declarative sentence. Do not editorialize.`

const summarizerSchema = `{
  "keyPoints": ["string"],
  "supporting": ["string"]
}`

// LLMSummarizer extracts key-point claims from source text with a language
// model in JSON mode.
type LLMSummarizer struct {
	model  llms.Model
	logger *slog.Logger
}

func NewLLMSummarizer(model llms.Model, logger *slog.Logger) *LLMSummarizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &LLMSummarizer{model: model, logger: logger}
}

func (s *LLMSummarizer) Summarize(ctx context.Context, text string) (*research.Summary, error) {
	var summary research.Summary
	_, err := generateWithRetry(ctx, s.model, s.logger, []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, summarizerSystemPrompt+"\n\n# Response Format:\n"+summarizerSchema),
		llms.TextParts(llms.ChatMessageTypeHuman, text),
	}, func(content string) error {
		var candidate research.Summary
		if err := json.Unmarshal([]byte(content), &candidate); err != nil {
			return fmt.Errorf("invalid summary json: %w", err)
		}
		if len(candidate.KeyPoints) == 0 {
			return fmt.Errorf("summary contains no key points")
		}
		summary = candidate
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &summary, nil
}

// LexicalSummarizer is a deterministic, offline fallback: it scores sentences
// by term frequency and returns the strongest ones as key points.
type LexicalSummarizer struct {
	MaxPoints int
}

func (l LexicalSummarizer) Summarize(_ context.Context, text string) (*research.Summary, error) {
	maxPoints := l.MaxPoints
	if maxPoints <= 0 {
		maxPoints = 5
	}

	sentences := splitSentences(text)
	if len(sentences) == 0 {
		return &research.Summary{KeyPoints: []string{}}, nil
	}

	freq := make(map[string]int)
	for _, sentence := range sentences {
		for _, tok := range lexTokens(sentence) {
			freq[tok]++
		}
	}

	type scored struct {
		index int
		text  string
		score float64
	}
	ranked := make([]scored, 0, len(sentences))
	for i, sentence := range sentences {
		toks := lexTokens(sentence)
		if len(toks) < 3 {
			continue
		}
		total := 0
		for _, tok := range toks {
			total += freq[tok]
		}
		ranked = append(ranked, scored{index: i, text: sentence, score: float64(total) / float64(len(toks))})
	}
	sort.SliceStable(ranked, func(a, b int) bool { return ranked[a].score > ranked[b].score })
	if len(ranked) > maxPoints {
		ranked = ranked[:maxPoints]
	}
	// Restore document order so the points read naturally.
	sort.Slice(ranked, func(a, b int) bool { return ranked[a].index < ranked[b].index })

	points := make([]string, 0, len(ranked))
	for _, sc := range ranked {
		points = append(points, sc.text)
	}
	return &research.Summary{KeyPoints: points}, nil
}

func splitSentences(text string) []string {
	var sentences []string
	var current strings.Builder
	for _, r := range text {
		current.WriteRune(r)
		if r == '.' || r == '!' || r == '?' {
			if s := strings.TrimSpace(current.String()); len(s) > 1 {
				sentences = append(sentences, s)
			}
			current.Reset()
		}
	}
	if s := strings.TrimSpace(current.String()); len(s) > 1 {
		sentences = append(sentences, s)
	}
	return sentences
}

func lexTokens(text string) []string {
	fields := strings.Fields(strings.ToLower(text))
	toks := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.Trim(f, ".,;:!?\"'()")
		if len(f) > 3 {
			toks = append(toks, f)
		}
	}
	return toks
}
