// Package llm talks to the language-model provider: it builds the design
// prompts, issues completion requests and turns responses into layouts and
// room analyses.
package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/spaceify/spaceify/internal/imageprep"
)

// Usage contains token usage and cost information.
type Usage struct {
	InputTokens  int64
	OutputTokens int64
	TotalTokens  int64
	CostUSD      float64
}

// CompletionRequest is one system + user exchange, optionally with images.
type CompletionRequest struct {
	Model       string
	System      string
	Prompt      string
	Images      []*imageprep.Prepared
	Temperature float32
	MaxTokens   int32
	// JSON asks the provider for a single JSON object response.
	JSON bool
}

// Completion is the provider's answer.
type Completion struct {
	Text  string
	Model string
	Usage Usage
}

// Provider issues completion requests against a model API.
type Provider interface {
	Name() string
	Complete(ctx context.Context, req CompletionRequest) (*Completion, error)
}

// Provider names accepted by NewProviderFromConfig.
const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
)

// ProviderConfig selects and authenticates a provider.
type ProviderConfig struct {
	Name          string
	GeminiAPIKey  string
	OpenAIAPIKey  string
	OpenAIBaseURL string
}

// NewProviderFromConfig builds the configured provider. A missing API key is
// not an error: it returns a nil Provider, which leaves AI features disabled.
func NewProviderFromConfig(ctx context.Context, cfg ProviderConfig) (Provider, error) {
	switch strings.ToLower(cfg.Name) {
	case ProviderGemini, "":
		if cfg.GeminiAPIKey == "" {
			log.Warn().Str("provider", ProviderGemini).Msg("API key not configured, AI features will be disabled")
			return nil, nil
		}
		p, err := NewGeminiProvider(ctx, cfg.GeminiAPIKey)
		if err != nil {
			return nil, err
		}
		return p, nil
	case ProviderOpenAI:
		if cfg.OpenAIAPIKey == "" {
			log.Warn().Str("provider", ProviderOpenAI).Msg("API key not configured, AI features will be disabled")
			return nil, nil
		}
		return NewOpenAIProvider(OpenAIOpts{APIKey: cfg.OpenAIAPIKey, BaseURL: cfg.OpenAIBaseURL}), nil
	}
	return nil, fmt.Errorf("unknown provider %q", cfg.Name)
}

// DefaultModels returns the text and vision models used with a provider
// when none are configured.
func DefaultModels(provider string) (text, vision string) {
	if strings.ToLower(provider) == ProviderOpenAI {
		return "gpt-4o-mini", "gpt-4o"
	}
	return geminiLiteModel, geminiModel
}

// modelPrice is the USD price per million input and output tokens.
type modelPrice struct {
	input  float64
	output float64
}

func calculateCost(inputTokens, outputTokens int64, price modelPrice) float64 {
	inputCost := float64(inputTokens) / 1_000_000 * price.input
	outputCost := float64(outputTokens) / 1_000_000 * price.output
	return inputCost + outputCost
}

// extractJSONObject extracts a JSON object from text that may contain markdown
// code blocks or other formatting. Returns the extracted JSON string or an error.
func extractJSONObject(text string) (string, error) {
	text = strings.TrimSpace(text)
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start == -1 || end == -1 || end <= start {
		return "", fmt.Errorf("no JSON object found in response: %s", text)
	}
	return text[start : end+1], nil
}
