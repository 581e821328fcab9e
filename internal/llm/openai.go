package llm

import (
	"context"
	"fmt"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog/log"
)

const openAIBaseURL = "https://api.openai.com/v1"

// OpenAI pricing (per million tokens)
var openAIPricing = map[string]modelPrice{
	"gpt-4o":        {input: 2.50, output: 10.00},
	"gpt-4o-mini":   {input: 0.15, output: 0.60},
	"gpt-4":         {input: 30.00, output: 60.00},
	"gpt-3.5-turbo": {input: 0.50, output: 1.50},
}

type OpenAIOpts struct {
	APIKey  string
	BaseURL string
}

// OpenAIProvider speaks the chat completions protocol, so it also works
// with compatible gateways via BaseURL.
type OpenAIProvider struct {
	httpClient *resty.Client
}

func NewOpenAIProvider(opts OpenAIOpts) *OpenAIProvider {
	baseURL := openAIBaseURL
	if opts.BaseURL != "" {
		baseURL = opts.BaseURL
	}
	return &OpenAIProvider{
		httpClient: resty.New().
			SetBaseURL(baseURL).
			SetAuthToken(opts.APIKey).
			SetHeaders(map[string]string{
				"Accept":       "application/json",
				"Content-Type": "application/json",
			}),
	}
}

func (o *OpenAIProvider) Name() string {
	return ProviderOpenAI
}

type chatMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type chatContentPart struct {
	Type     string        `json:"type"`
	Text     string        `json:"text,omitempty"`
	ImageURL *chatImageURL `json:"image_url,omitempty"`
}

type chatImageURL struct {
	URL    string `json:"url"`
	Detail string `json:"detail,omitempty"`
}

type chatResponseFormat struct {
	Type string `json:"type"`
}

type chatRequest struct {
	Model          string              `json:"model"`
	Messages       []chatMessage       `json:"messages"`
	Temperature    float32             `json:"temperature"`
	MaxTokens      int32               `json:"max_tokens,omitempty"`
	ResponseFormat *chatResponseFormat `json:"response_format,omitempty"`
}

type chatResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int64 `json:"prompt_tokens"`
		CompletionTokens int64 `json:"completion_tokens"`
		TotalTokens      int64 `json:"total_tokens"`
	} `json:"usage"`
}

type chatErrorResponse struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

func buildChatRequest(req CompletionRequest) chatRequest {
	var messages []chatMessage
	if req.System != "" {
		messages = append(messages, chatMessage{Role: "system", Content: req.System})
	}

	if len(req.Images) == 0 {
		messages = append(messages, chatMessage{Role: "user", Content: req.Prompt})
	} else {
		parts := []chatContentPart{{Type: "text", Text: req.Prompt}}
		for _, img := range req.Images {
			parts = append(parts, chatContentPart{
				Type:     "image_url",
				ImageURL: &chatImageURL{URL: img.DataURL(), Detail: "high"},
			})
		}
		messages = append(messages, chatMessage{Role: "user", Content: parts})
	}

	body := chatRequest{
		Model:       req.Model,
		Messages:    messages,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	}
	if req.JSON {
		body.ResponseFormat = &chatResponseFormat{Type: "json_object"}
	}
	return body
}

// Complete posts one chat completion.
func (o *OpenAIProvider) Complete(ctx context.Context, req CompletionRequest) (*Completion, error) {
	result := &chatResponse{}
	apiErr := &chatErrorResponse{}

	res, err := o.httpClient.R().
		SetContext(ctx).
		SetBody(buildChatRequest(req)).
		SetResult(result).
		SetError(apiErr).
		Post("/chat/completions")
	if err != nil {
		return nil, fmt.Errorf("openai request failed: %w", err)
	}
	if res.IsError() {
		if apiErr.Error.Message != "" {
			return nil, fmt.Errorf("openai request failed (status: %d): %s", res.StatusCode(), apiErr.Error.Message)
		}
		return nil, fmt.Errorf("openai request failed (status: %d)", res.StatusCode())
	}

	if len(result.Choices) == 0 {
		return nil, fmt.Errorf("no response from OpenAI")
	}

	model := result.Model
	if model == "" {
		model = req.Model
	}
	usage := Usage{
		InputTokens:  result.Usage.PromptTokens,
		OutputTokens: result.Usage.CompletionTokens,
		TotalTokens:  result.Usage.TotalTokens,
	}
	usage.CostUSD = calculateCost(usage.InputTokens, usage.OutputTokens, openAIPricing[req.Model])

	log.Info().
		Str("model", model).
		Int("imageCount", len(req.Images)).
		Int64("inputTokens", usage.InputTokens).
		Int64("outputTokens", usage.OutputTokens).
		Float64("costUSD", usage.CostUSD).
		Msg("openai llm call")

	return &Completion{Text: result.Choices[0].Message.Content, Model: model, Usage: usage}, nil
}
