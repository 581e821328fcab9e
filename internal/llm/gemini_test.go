package llm

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"github.com/spaceify/spaceify/internal/imageprep"
)

func newTestGeminiProvider(t *testing.T, handler http.HandlerFunc) *GeminiProvider {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	p, err := newGeminiProvider(context.Background(), &genai.ClientConfig{
		APIKey:      "test-key",
		Backend:     genai.BackendGeminiAPI,
		HTTPOptions: genai.HTTPOptions{BaseURL: server.URL},
	})
	require.NoError(t, err)
	return p
}

func TestGeminiProvider_Complete(t *testing.T) {
	var body string
	p := newTestGeminiProvider(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Path, geminiModel+":generateContent")
		raw, _ := io.ReadAll(r.Body)
		body = string(raw)

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"candidates": [{"content": {"role": "model", "parts": [{"text": "{\"layouts\": []}"}]}}],
			"usageMetadata": {"promptTokenCount": 1000000, "candidatesTokenCount": 1000000, "totalTokenCount": 2000000}
		}`))
	})

	completion, err := p.Complete(context.Background(), CompletionRequest{
		Model:       geminiModel,
		System:      "be an interior designer",
		Prompt:      "design a bedroom",
		Images:      []*imageprep.Prepared{{Data: []byte{0xff, 0xd8}, MIMEType: "image/jpeg"}},
		Temperature: 0.8,
		MaxTokens:   2000,
		JSON:        true,
	})
	require.NoError(t, err)

	assert.Equal(t, `{"layouts": []}`, completion.Text)
	assert.Equal(t, geminiModel, completion.Model)
	assert.Equal(t, int64(1000000), completion.Usage.InputTokens)
	assert.Equal(t, int64(2000000), completion.Usage.TotalTokens)
	assert.InDelta(t, 2.80, completion.Usage.CostUSD, 1e-9)

	assert.Contains(t, body, "design a bedroom")
	assert.Contains(t, body, "be an interior designer")
	assert.Contains(t, body, "application/json")
	assert.Contains(t, body, "image/jpeg")
}

func TestGeminiProvider_NoCandidates(t *testing.T) {
	p := newTestGeminiProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"candidates": []}`))
	})

	_, err := p.Complete(context.Background(), CompletionRequest{Model: geminiLiteModel, Prompt: "x"})
	require.Error(t, err)
	assert.Equal(t, "no response from Gemini", err.Error())
}
