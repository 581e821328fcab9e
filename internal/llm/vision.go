package llm

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spaceify/spaceify/internal/imageprep"
	"github.com/spaceify/spaceify/internal/layout"
)

const (
	visionTemperature = 0.3
	visionMaxTokens   = 1500
)

// PhotoRequest is a set of prepared room photos plus the room they show.
type PhotoRequest struct {
	Room   layout.RoomData
	Images []*imageprep.Prepared
}

// ColorAnalysis is the palette the model observed.
type ColorAnalysis struct {
	DominantColors layout.StringList `json:"dominantColors"`
	Mood           string            `json:"mood"`
}

// PhotoFindings is the structured answer of a vision model.
type PhotoFindings struct {
	Challenges       layout.StringList `json:"challenges"`
	Opportunities    layout.StringList `json:"opportunities"`
	NaturalLight     string            `json:"naturalLight"`
	ExistingFeatures layout.StringList `json:"existingFeatures"`
	CurrentStyle     string            `json:"currentStyle"`
	ColorAnalysis    *ColorAnalysis    `json:"colorAnalysis"`
	// FunctionalityAssessment is free-form; models return either text or an object.
	FunctionalityAssessment any               `json:"functionalityAssessment"`
	Recommendations         layout.StringList `json:"recommendations"`
}

// PhotoResult contains the findings and usage of one analysis.
type PhotoResult struct {
	Findings  PhotoFindings
	Model     string
	Usage     Usage
	FromCache bool
}

// PhotoAnalyzer inspects room photos.
type PhotoAnalyzer interface {
	AnalyzePhotos(ctx context.Context, req PhotoRequest) (*PhotoResult, error)
}

// visionAnalyzer sends photos to a provider's vision model.
type visionAnalyzer struct {
	provider Provider
	model    string
}

// NewVisionAnalyzer creates a PhotoAnalyzer backed by provider.
func NewVisionAnalyzer(provider Provider, model string) PhotoAnalyzer {
	return &visionAnalyzer{provider: provider, model: model}
}

func (v *visionAnalyzer) AnalyzePhotos(ctx context.Context, req PhotoRequest) (*PhotoResult, error) {
	completion, err := v.provider.Complete(ctx, CompletionRequest{
		Model:       v.model,
		System:      systemPrompt(roomAnalysisSystemPrompt),
		Prompt:      buildRoomAnalysisPrompt(req.Room),
		Images:      req.Images,
		Temperature: visionTemperature,
		MaxTokens:   visionMaxTokens,
		JSON:        true,
	})
	if err != nil {
		return nil, err
	}

	findings, err := parseFindings(completion.Text)
	if err != nil {
		return nil, err
	}

	return &PhotoResult{
		Findings: findings,
		Model:    completion.Model,
		Usage:    completion.Usage,
	}, nil
}

func parseFindings(text string) (PhotoFindings, error) {
	var findings PhotoFindings
	jsonText, err := extractJSONObject(text)
	if err != nil {
		return findings, err
	}
	if err := json.Unmarshal([]byte(jsonText), &findings); err != nil {
		return findings, fmt.Errorf("failed to parse room analysis: %w", err)
	}
	return findings, nil
}
