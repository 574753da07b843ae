package tools

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/googleai"
)

const (
	// DefaultModel balances cost and quality for summarization work.
	DefaultModel = "gemini-3-flash-preview"
	ProModel     = "gemini-3-pro-preview"

	llmMaxRetries = 3
)

// NewGoogleModel builds a Google AI language model. An empty apiKey falls
// back to GOOGLE_API_KEY from the environment or a .env file.
func NewGoogleModel(ctx context.Context, model, apiKey string) (*googleai.GoogleAI, error) {
	if apiKey == "" {
		_ = godotenv.Load()
		apiKey = os.Getenv("GOOGLE_API_KEY")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("GOOGLE_API_KEY is not set")
	}
	if model == "" {
		model = DefaultModel
	}

	llm, err := googleai.New(ctx,
		googleai.WithAPIKey(apiKey),
		googleai.WithDefaultModel(model))
	if err != nil {
		return nil, fmt.Errorf("failed to create google ai client: %w", err)
	}
	return llm, nil
}

// generateWithRetry asks the model for JSON output and validates it, retrying
// with linear backoff on generation or validation failure.
func generateWithRetry(ctx context.Context, model llms.Model, logger *slog.Logger, prompts []llms.MessageContent, validate func(string) error) (string, error) {
	var lastErr error
	for i := 0; i < llmMaxRetries; i++ {
		if i > 0 {
			logger.Warn("retrying llm generation", "attempt", i+1, "last_error", lastErr)
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(time.Second * time.Duration(i)):
			}
		}

		resp, err := model.GenerateContent(ctx, prompts, llms.WithJSONMode())
		if err != nil {
			lastErr = fmt.Errorf("llm generation failed: %w", err)
			continue
		}
		if len(resp.Choices) == 0 {
			lastErr = fmt.Errorf("llm returned no choices")
			continue
		}

		content := resp.Choices[0].Content
		if err := validate(content); err != nil {
			lastErr = fmt.Errorf("validation failed: %w", err)
			continue
		}
		return content, nil
	}
	return "", fmt.Errorf("operation failed after %d retries: %w", llmMaxRetries, lastErr)
}
