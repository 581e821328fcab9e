package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaceify/spaceify/internal/imageprep"
)

func TestOpenAIProvider_Complete(t *testing.T) {
	var got map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"model": "gpt-4o-2024-08-06",
			"choices": [{"message": {"role": "assistant", "content": "{\"challenges\": []}"}}],
			"usage": {"prompt_tokens": 1200, "completion_tokens": 300, "total_tokens": 1500}
		}`))
	}))
	defer server.Close()

	provider := NewOpenAIProvider(OpenAIOpts{APIKey: "test-key", BaseURL: server.URL})
	completion, err := provider.Complete(context.Background(), CompletionRequest{
		Model:       "gpt-4o",
		System:      "system text",
		Prompt:      "user text",
		Images:      []*imageprep.Prepared{{MIMEType: "image/jpeg", Base64: "AAAA"}},
		Temperature: 0.3,
		MaxTokens:   1500,
		JSON:        true,
	})
	require.NoError(t, err)

	assert.Equal(t, `{"challenges": []}`, completion.Text)
	assert.Equal(t, "gpt-4o-2024-08-06", completion.Model)
	assert.Equal(t, int64(1200), completion.Usage.InputTokens)
	assert.Equal(t, int64(300), completion.Usage.OutputTokens)
	assert.Equal(t, int64(1500), completion.Usage.TotalTokens)
	assert.InDelta(t, 0.006, completion.Usage.CostUSD, 1e-9)

	assert.Equal(t, "gpt-4o", got["model"])
	assert.Equal(t, 1500.0, got["max_tokens"])
	assert.Equal(t, map[string]any{"type": "json_object"}, got["response_format"])

	messages := got["messages"].([]any)
	require.Len(t, messages, 2)
	assert.Equal(t, map[string]any{"role": "system", "content": "system text"}, messages[0])

	user := messages[1].(map[string]any)
	assert.Equal(t, "user", user["role"])
	parts := user["content"].([]any)
	require.Len(t, parts, 2)
	assert.Equal(t, map[string]any{"type": "text", "text": "user text"}, parts[0])
	assert.Equal(t, map[string]any{
		"type":      "image_url",
		"image_url": map[string]any{"url": "data:image/jpeg;base64,AAAA", "detail": "high"},
	}, parts[1])
}

func TestOpenAIProvider_TextOnlyUsesPlainContent(t *testing.T) {
	body := buildChatRequest(CompletionRequest{Model: "gpt-4o-mini", Prompt: "hello"})
	require.Len(t, body.Messages, 1)
	assert.Equal(t, "hello", body.Messages[0].Content)
	assert.Nil(t, body.ResponseFormat)
}

func TestOpenAIProvider_Errors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr string
	}{
		{
			name:    "error envelope",
			status:  http.StatusUnauthorized,
			body:    `{"error": {"message": "Incorrect API key provided", "type": "invalid_request_error"}}`,
			wantErr: "openai request failed (status: 401): Incorrect API key provided",
		},
		{
			name:    "bare status",
			status:  http.StatusBadGateway,
			body:    `{}`,
			wantErr: "openai request failed (status: 502)",
		},
		{
			name:    "no choices",
			status:  http.StatusOK,
			body:    `{"choices": []}`,
			wantErr: "no response from OpenAI",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			provider := NewOpenAIProvider(OpenAIOpts{APIKey: "k", BaseURL: server.URL})
			_, err := provider.Complete(context.Background(), CompletionRequest{Model: "gpt-4o-mini", Prompt: "x"})
			require.Error(t, err)
			assert.True(t, strings.HasPrefix(err.Error(), tt.wantErr), err.Error())
		})
	}
}
