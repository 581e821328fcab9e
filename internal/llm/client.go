package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/spaceify/spaceify/internal/imageprep"
	"github.com/spaceify/spaceify/internal/layout"
	"github.com/spaceify/spaceify/internal/storage"
	"github.com/spaceify/spaceify/internal/usage"
)

const (
	// DefaultLayoutCount is how many layouts are requested when the caller
	// does not say.
	DefaultLayoutCount = 3

	layoutTemperature = 0.8
	layoutMaxTokens   = 2000
)

var (
	// ErrServiceUnavailable is returned when no provider is configured.
	ErrServiceUnavailable = errors.New("AI service is not available. Please check your API configuration.")
	// ErrInvalidResponseFormat is returned when the provider answer has no
	// "layouts" array.
	ErrInvalidResponseFormat = errors.New("invalid response format from AI service")
)

// AnalysisSource tells where a room analysis came from.
type AnalysisSource string

const (
	SourceHeuristic AnalysisSource = "heuristic"
	SourceVision    AnalysisSource = "vision"
	SourceCache     AnalysisSource = "cache"
)

// LayoutResult contains generated layouts and the cost of generating them.
type LayoutResult struct {
	Layouts []layout.Layout
	Model   string
	Usage   Usage
}

// AnalysisResult contains a room analysis and, for vision analyses, its cost.
type AnalysisResult struct {
	Analysis layout.RoomAnalysis
	Source   AnalysisSource
	Model    string
	Usage    Usage
}

// Options configures a Client. Empty models fall back to DefaultModels.
type Options struct {
	TextModel   string
	VisionModel string
	// Cache, when set, stores vision findings keyed by image content.
	Cache    storage.KV
	Preparer *imageprep.Preparer
	// Clock stamps layouts and analyses. Defaults to the real clock.
	Clock usage.Clock
}

// Client generates layouts and analyzes room photos through a Provider.
type Client struct {
	provider    Provider
	photos      PhotoAnalyzer
	preparer    *imageprep.Preparer
	clock       usage.Clock
	textModel   string
	visionModel string
}

// NewClient creates a client. A nil provider yields a client whose
// Available method reports false.
func NewClient(provider Provider, opts Options) *Client {
	c := &Client{
		provider:    provider,
		preparer:    opts.Preparer,
		clock:       opts.Clock,
		textModel:   opts.TextModel,
		visionModel: opts.VisionModel,
	}
	if c.preparer == nil {
		c.preparer = imageprep.NewPreparer()
	}
	if c.clock == nil {
		c.clock = usage.RealClock{}
	}
	if provider != nil {
		text, vision := DefaultModels(provider.Name())
		if c.textModel == "" {
			c.textModel = text
		}
		if c.visionModel == "" {
			c.visionModel = vision
		}
		var photos PhotoAnalyzer = NewVisionAnalyzer(provider, c.visionModel)
		if opts.Cache != nil {
			photos = NewCachedAnalyzer(photos, opts.Cache)
		}
		c.photos = photos
	}
	return c
}

// Available reports whether a provider is configured.
func (c *Client) Available() bool {
	return c != nil && c.provider != nil
}

// TextModel returns the model used for layout generation.
func (c *Client) TextModel() string {
	return c.textModel
}

// VisionModel returns the model used for photo analysis.
func (c *Client) VisionModel() string {
	return c.visionModel
}

// GenerateLayouts asks the provider for count layouts of the analyzed room.
// Every returned layout has passed through NewLayout and, if needed,
// RepairLayout.
func (c *Client) GenerateLayouts(ctx context.Context, analysis layout.RoomAnalysis, prefs Preferences, count int) (*LayoutResult, error) {
	if !c.Available() {
		return nil, ErrServiceUnavailable
	}
	if count <= 0 {
		count = DefaultLayoutCount
	}

	completion, err := c.provider.Complete(ctx, CompletionRequest{
		Model:       c.textModel,
		System:      systemPrompt(layoutSystemPrompt),
		Prompt:      buildLayoutPrompt(analysis, prefs, count),
		Temperature: layoutTemperature,
		MaxTokens:   layoutMaxTokens,
		JSON:        true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to generate layouts: %w", err)
	}

	layouts, err := parseLayouts(completion.Text, c.clock.Now())
	if err != nil {
		return nil, fmt.Errorf("failed to generate layouts: %w", err)
	}

	log.Info().
		Str("model", completion.Model).
		Int("requested", count).
		Int("received", len(layouts)).
		Msg("generated layouts")

	return &LayoutResult{
		Layouts: layouts,
		Model:   completion.Model,
		Usage:   completion.Usage,
	}, nil
}

// ParseLayouts turns a provider answer into layouts. The answer must be a
// JSON object with a "layouts" array; entries that fail to decode or
// validate are repaired instead of rejected.
func ParseLayouts(text string) ([]layout.Layout, error) {
	return parseLayouts(text, time.Now())
}

func parseLayouts(text string, now time.Time) ([]layout.Layout, error) {
	jsonText, err := extractJSONObject(text)
	if err != nil {
		return nil, ErrInvalidResponseFormat
	}

	var envelope map[string]json.RawMessage
	if err := json.Unmarshal([]byte(jsonText), &envelope); err != nil {
		return nil, ErrInvalidResponseFormat
	}
	raw, ok := envelope["layouts"]
	if !ok {
		return nil, ErrInvalidResponseFormat
	}
	var entries []json.RawMessage
	if err := json.Unmarshal(raw, &entries); err != nil || entries == nil {
		return nil, ErrInvalidResponseFormat
	}

	layouts := make([]layout.Layout, 0, len(entries))
	for i, entry := range entries {
		in, err := layout.DecodeLayoutInput(entry)
		if err != nil {
			log.Warn().Err(err).Int("index", i).Msg("could not fully decode layout entry")
		}
		in.CreatedAt = now
		l, res := layout.Finalize(layout.NewLayout(in))
		if !res.Valid {
			log.Warn().Int("index", i).Strs("errors", res.Errors).Msg("repaired invalid layout")
		}
		layouts = append(layouts, l)
	}
	return layouts, nil
}

// AnalyzeRoomPhotos analyzes photos of room. Without photos, or when
// preparation or the vision call fails, it falls back to a heuristic
// analysis built from the room dimensions.
func (c *Client) AnalyzeRoomPhotos(ctx context.Context, images []imageprep.Image, room layout.RoomData) (*AnalysisResult, error) {
	if !c.Available() {
		return nil, ErrServiceUnavailable
	}
	if len(images) == 0 {
		return c.heuristicResult(room), nil
	}

	prepared, err := c.preparer.PrepareAll(ctx, images)
	if err != nil {
		log.Warn().Err(err).Msg("failed to prepare room photos, using basic analysis")
		return c.heuristicResult(room), nil
	}

	result, err := c.photos.AnalyzePhotos(ctx, PhotoRequest{Room: room, Images: prepared})
	if err != nil {
		log.Warn().Err(err).Msg("failed to analyze room photos, using basic analysis")
		return c.heuristicResult(room), nil
	}

	names := make([]string, len(images))
	for i, img := range images {
		names[i] = img.Name
	}

	source := SourceVision
	if result.FromCache {
		source = SourceCache
	}
	return &AnalysisResult{
		Analysis: mergeFindings(room, result.Findings, names, c.clock.Now()),
		Source:   source,
		Model:    result.Model,
		Usage:    result.Usage,
	}, nil
}

func (c *Client) heuristicResult(room layout.RoomData) *AnalysisResult {
	return &AnalysisResult{
		Analysis: layout.BasicAnalysisAt(room, c.clock.Now()),
		Source:   SourceHeuristic,
	}
}

// mergeFindings builds a RoomAnalysis from the stored room plus vision
// findings. Style and color observations go into UserPreferences.
func mergeFindings(room layout.RoomData, f PhotoFindings, photos []string, now time.Time) layout.RoomAnalysis {
	prefs := map[string]any{
		"recommendations": nonNilList(f.Recommendations),
	}
	if room.Description != "" {
		prefs["description"] = room.Description
	}
	if f.CurrentStyle != "" {
		prefs["currentStyle"] = f.CurrentStyle
	}
	if f.ColorAnalysis != nil {
		prefs["colorAnalysis"] = f.ColorAnalysis
	}
	if f.FunctionalityAssessment != nil {
		prefs["functionalityAssessment"] = f.FunctionalityAssessment
	}

	return layout.NewRoomAnalysis(layout.RoomAnalysisInput{
		RoomType:         room.RoomType,
		Dimensions:       room.RoomDimensions,
		Challenges:       f.Challenges,
		Opportunities:    f.Opportunities,
		NaturalLight:     f.NaturalLight,
		ExistingFeatures: f.ExistingFeatures,
		UserPreferences:  prefs,
		Photos:           photos,
		AnalyzedAt:       now,
	})
}

func nonNilList(l layout.StringList) []string {
	if l == nil {
		return []string{}
	}
	return l
}
