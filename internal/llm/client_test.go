package llm

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaceify/spaceify/internal/imageprep"
	"github.com/spaceify/spaceify/internal/layout"
	"github.com/spaceify/spaceify/internal/storage"
	"github.com/spaceify/spaceify/internal/usage"
)

var testRoom = layout.RoomData{
	RoomType:       layout.RoomLivingRoom,
	RoomDimensions: layout.Dimensions{Length: 15, Width: 12, Height: 9},
	Description:    "open plan with a fireplace",
}

func textCompletion(text string) func(context.Context, CompletionRequest) (*Completion, error) {
	return func(_ context.Context, req CompletionRequest) (*Completion, error) {
		return &Completion{
			Text:  text,
			Model: req.Model,
			Usage: Usage{InputTokens: 400, OutputTokens: 600, TotalTokens: 1000},
		}, nil
	}
}

func testPNG(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 8, 6))))
	return buf.Bytes()
}

func TestGenerateLayouts(t *testing.T) {
	provider := &MockProvider{
		CompleteFunc: textCompletion("```json\n" + `{
			"layouts": [
				{"name": "Conversation Hub", "description": "Sofa facing the fireplace", "style": "Art Deco", "efficiency": 150, "aiConfidence": "92", "pros": ["Cozy"]},
				{"description": "Missing a name", "style": "Scandinavian", "efficiency": -10}
			]
		}` + "\n```"),
	}
	client := NewClient(provider, Options{TextModel: "text-model", VisionModel: "vision-model"})

	result, err := client.GenerateLayouts(context.Background(), layout.BasicAnalysis(testRoom), Preferences{Style: "cozy"}, 0)
	require.NoError(t, err)
	require.Len(t, result.Layouts, 2)

	first := result.Layouts[0]
	assert.Equal(t, "Conversation Hub", first.Name)
	assert.Equal(t, layout.StyleModern, first.Style)
	assert.Equal(t, 100, first.Efficiency)
	assert.Equal(t, 92, first.AIConfidence)

	second := result.Layouts[1]
	assert.Equal(t, layout.DefaultLayoutName, second.Name)
	assert.Equal(t, layout.StyleScandinavian, second.Style)
	assert.Equal(t, 0, second.Efficiency)
	assert.Equal(t, []string{layout.DefaultPro}, second.Pros)
	assert.NotEqual(t, first.ID, second.ID)

	assert.Equal(t, "text-model", result.Model)
	assert.Equal(t, int64(1000), result.Usage.TotalTokens)

	reqs := provider.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, "text-model", reqs[0].Model)
	assert.Equal(t, float32(0.8), reqs[0].Temperature)
	assert.Equal(t, int32(2000), reqs[0].MaxTokens)
	assert.True(t, reqs[0].JSON)
	assert.Empty(t, reqs[0].Images)
	assert.Contains(t, reqs[0].Prompt, "Generate 3 distinct room layout options for a living room")
	assert.Contains(t, reqs[0].Prompt, "- Style preference: cozy")
	assert.Contains(t, reqs[0].System, "expert interior designer")
}

func TestGenerateLayouts_EmptyArrayIsValid(t *testing.T) {
	client := NewClient(&MockProvider{}, Options{})

	result, err := client.GenerateLayouts(context.Background(), layout.BasicAnalysis(testRoom), Preferences{}, 2)
	require.NoError(t, err)
	assert.Empty(t, result.Layouts)
}

func TestGenerateLayouts_InvalidFormat(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{"missing layouts key", `{"foo": []}`},
		{"layouts not an array", `{"layouts": {"name": "x"}}`},
		{"layouts null", `{"layouts": null}`},
		{"not json", `I could not design that room`},
		{"broken json", `{"layouts": [}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := NewClient(&MockProvider{CompleteFunc: textCompletion(tt.text)}, Options{})

			_, err := client.GenerateLayouts(context.Background(), layout.BasicAnalysis(testRoom), Preferences{}, 3)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidResponseFormat)
			assert.Contains(t, err.Error(), "failed to generate layouts")
		})
	}
}

func TestGenerateLayouts_ProviderError(t *testing.T) {
	boom := errors.New("rate limited")
	client := NewClient(&MockProvider{
		CompleteFunc: func(context.Context, CompletionRequest) (*Completion, error) { return nil, boom },
	}, Options{})

	_, err := client.GenerateLayouts(context.Background(), layout.BasicAnalysis(testRoom), Preferences{}, 3)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "failed to generate layouts: rate limited")
}

func TestClient_Unavailable(t *testing.T) {
	client := NewClient(nil, Options{})
	assert.False(t, client.Available())

	_, err := client.GenerateLayouts(context.Background(), layout.BasicAnalysis(testRoom), Preferences{}, 3)
	assert.ErrorIs(t, err, ErrServiceUnavailable)

	_, err = client.AnalyzeRoomPhotos(context.Background(), nil, testRoom)
	assert.ErrorIs(t, err, ErrServiceUnavailable)
}

func TestNewClient_DefaultModels(t *testing.T) {
	client := NewClient(&MockProvider{NameValue: ProviderOpenAI}, Options{})
	assert.Equal(t, "gpt-4o-mini", client.TextModel())
	assert.Equal(t, "gpt-4o", client.VisionModel())

	client = NewClient(&MockProvider{NameValue: ProviderGemini}, Options{VisionModel: "custom"})
	assert.Equal(t, geminiLiteModel, client.TextModel())
	assert.Equal(t, "custom", client.VisionModel())
}

func TestAnalyzeRoomPhotos_NoImagesUsesHeuristic(t *testing.T) {
	provider := &MockProvider{}
	client := NewClient(provider, Options{})

	result, err := client.AnalyzeRoomPhotos(context.Background(), nil, testRoom)
	require.NoError(t, err)
	assert.Equal(t, SourceHeuristic, result.Source)
	assert.Equal(t, layout.BasicAnalysis(testRoom).Challenges, result.Analysis.Challenges)
	assert.Empty(t, provider.Calls)
}

func TestAnalyzeRoomPhotos_Vision(t *testing.T) {
	provider := &MockProvider{
		CompleteFunc: textCompletion(`{
			"challenges": ["Awkward corner by the door"],
			"opportunities": ["Use the alcove for shelving"],
			"naturalLight": "excellent",
			"existingFeatures": ["Fireplace", "Bay window"],
			"currentStyle": "Traditional",
			"colorAnalysis": {"dominantColors": ["beige", "oak"], "mood": "warm"},
			"functionalityAssessment": "Seating is too spread out",
			"recommendations": ["Group the seating"]
		}`),
	}
	client := NewClient(provider, Options{VisionModel: "vision-model"})

	images := []imageprep.Image{{Name: "front.png", ContentType: "image/png", Data: testPNG(t)}}
	result, err := client.AnalyzeRoomPhotos(context.Background(), images, testRoom)
	require.NoError(t, err)

	assert.Equal(t, SourceVision, result.Source)
	assert.Equal(t, "vision-model", result.Model)
	assert.Equal(t, int64(1000), result.Usage.TotalTokens)

	a := result.Analysis
	assert.Equal(t, layout.RoomLivingRoom, a.RoomType)
	assert.Equal(t, 180.0, a.SquareFootage)
	assert.Equal(t, []string{"Awkward corner by the door"}, a.Challenges)
	assert.Equal(t, layout.LightExcellent, a.NaturalLight)
	assert.Equal(t, []string{"Fireplace", "Bay window"}, a.ExistingFeatures)
	assert.Equal(t, []string{"front.png"}, a.Photos)
	assert.Equal(t, "Traditional", a.UserPreferences["currentStyle"])
	assert.Equal(t, "Seating is too spread out", a.UserPreferences["functionalityAssessment"])
	assert.Equal(t, []string{"Group the seating"}, a.UserPreferences["recommendations"])

	reqs := provider.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, float32(0.3), reqs[0].Temperature)
	assert.Equal(t, int32(1500), reqs[0].MaxTokens)
	require.Len(t, reqs[0].Images, 1)
	assert.Contains(t, reqs[0].Prompt, "Analyze this living room with dimensions 15' × 12' × 9'")
	assert.Contains(t, reqs[0].Prompt, "Additional context: open plan with a fireplace")
}

func TestAnalyzeRoomPhotos_FallsBackOnFailure(t *testing.T) {
	tests := []struct {
		name      string
		complete  func(context.Context, CompletionRequest) (*Completion, error)
		images    []imageprep.Image
		wantCalls int
	}{
		{
			name: "provider error",
			complete: func(context.Context, CompletionRequest) (*Completion, error) {
				return nil, errors.New("upstream timeout")
			},
			wantCalls: 1,
		},
		{
			name:      "unparseable answer",
			complete:  textCompletion("the room looks nice"),
			wantCalls: 1,
		},
		{
			name:      "invalid image",
			images:    []imageprep.Image{{Name: "scan.gif", ContentType: "image/gif", Data: []byte{1}}},
			wantCalls: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider := &MockProvider{CompleteFunc: tt.complete}
			client := NewClient(provider, Options{})

			images := tt.images
			if images == nil {
				images = []imageprep.Image{{Name: "a.png", ContentType: "image/png", Data: testPNG(t)}}
			}

			result, err := client.AnalyzeRoomPhotos(context.Background(), images, testRoom)
			require.NoError(t, err)
			assert.Equal(t, SourceHeuristic, result.Source)
			assert.Equal(t, Usage{}, result.Usage)
			assert.Len(t, provider.Calls, tt.wantCalls)
		})
	}
}

func TestAnalyzeRoomPhotos_CachesFindings(t *testing.T) {
	provider := &MockProvider{
		CompleteFunc: textCompletion(`{"challenges": ["Narrow"], "naturalLight": "good"}`),
	}
	client := NewClient(provider, Options{Cache: storage.NewMemoryStore()})
	images := []imageprep.Image{{Name: "a.png", ContentType: "image/png", Data: testPNG(t)}}

	first, err := client.AnalyzeRoomPhotos(context.Background(), images, testRoom)
	require.NoError(t, err)
	assert.Equal(t, SourceVision, first.Source)

	second, err := client.AnalyzeRoomPhotos(context.Background(), images, testRoom)
	require.NoError(t, err)
	assert.Equal(t, SourceCache, second.Source)
	assert.Equal(t, Usage{}, second.Usage)
	assert.Equal(t, []string{"Narrow"}, second.Analysis.Challenges)
	assert.Equal(t, layout.LightGood, second.Analysis.NaturalLight)

	assert.Len(t, provider.Calls, 1)
}

func TestParseLayouts_UndecodableEntryIsRepaired(t *testing.T) {
	layouts, err := ParseLayouts(`{"layouts": ["just a string", {"name": "Ok", "description": "Fine"}]}`)
	require.NoError(t, err)
	require.Len(t, layouts, 2)
	assert.Equal(t, layout.DefaultLayoutName, layouts[0].Name)
	assert.Equal(t, layout.DefaultLayoutDescription, layouts[0].Description)
	assert.Equal(t, "Ok", layouts[1].Name)
}

func TestParseLayouts_MistypedFieldKeepsEntry(t *testing.T) {
	layouts, err := ParseLayouts(`{"layouts": [{
		"name": "Reading Nook",
		"description": "Armchair by the window",
		"style": "Rustic",
		"efficiency": 91,
		"pros": ["Bright"],
		"estimatedCost": 1500,
		"furnitureItems": [{"name": "Armchair", "dimensions": {"width": "32", "depth": 34}}, 7]
	}]}`)
	require.NoError(t, err)
	require.Len(t, layouts, 1)

	l := layouts[0]
	assert.Equal(t, "Reading Nook", l.Name)
	assert.Equal(t, layout.StyleRustic, l.Style)
	assert.Equal(t, 91, l.Efficiency)
	assert.Equal(t, []string{"Bright"}, l.Pros)
	require.NotNil(t, l.EstimatedCost)
	assert.Equal(t, "1500", *l.EstimatedCost)
	require.Len(t, l.FurnitureItems, 2)
	assert.Equal(t, 32.0, l.FurnitureItems[0].Dimensions.Width)
}

func TestClient_StampsWithClock(t *testing.T) {
	at := time.Date(2025, 6, 2, 18, 0, 0, 0, time.UTC)
	provider := &MockProvider{
		CompleteFunc: textCompletion(`{"layouts": [{"name": "A", "description": "B"}]}`),
	}
	client := NewClient(provider, Options{Clock: usage.NewFakeClock(at)})

	result, err := client.GenerateLayouts(context.Background(), layout.BasicAnalysis(testRoom), Preferences{}, 1)
	require.NoError(t, err)
	require.Len(t, result.Layouts, 1)
	assert.Equal(t, at, result.Layouts[0].CreatedAt)

	analysis, err := client.AnalyzeRoomPhotos(context.Background(), nil, testRoom)
	require.NoError(t, err)
	assert.Equal(t, SourceHeuristic, analysis.Source)
	assert.Equal(t, at, analysis.Analysis.AnalyzedAt)
}
