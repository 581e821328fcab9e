// Package layout defines the room and layout data model produced by the
// generation client, together with the validators and the repair transform
// applied to provider output.
package layout

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"
)

// Style is a design style from the fixed style vocabulary.
type Style string

const (
	StyleModern       Style = "Modern"
	StyleTraditional  Style = "Traditional"
	StyleContemporary Style = "Contemporary"
	StyleMinimalist   Style = "Minimalist"
	StyleIndustrial   Style = "Industrial"
	StyleScandinavian Style = "Scandinavian"
	StyleBohemian     Style = "Bohemian"
	StyleRustic       Style = "Rustic"
)

// Styles lists every member of the style vocabulary in display order.
var Styles = []Style{
	StyleModern,
	StyleTraditional,
	StyleContemporary,
	StyleMinimalist,
	StyleIndustrial,
	StyleScandinavian,
	StyleBohemian,
	StyleRustic,
}

// Valid reports whether s is a member of the style vocabulary.
func (s Style) Valid() bool {
	for _, v := range Styles {
		if s == v {
			return true
		}
	}
	return false
}

// NormalizeStyle returns s as a Style when it is a vocabulary member and
// StyleModern otherwise. Matching is exact, like the provider contract.
func NormalizeStyle(s string) Style {
	if st := Style(s); st.Valid() {
		return st
	}
	return StyleModern
}

// RoomType is the kind of room being designed.
type RoomType string

const (
	RoomLivingRoom RoomType = "Living Room"
	RoomBedroom    RoomType = "Bedroom"
	RoomKitchen    RoomType = "Kitchen"
	RoomBathroom   RoomType = "Bathroom"
	RoomOffice     RoomType = "Office"
	RoomDiningRoom RoomType = "Dining Room"
	RoomOther      RoomType = "Other"
)

var roomTypes = []RoomType{
	RoomLivingRoom,
	RoomBedroom,
	RoomKitchen,
	RoomBathroom,
	RoomOffice,
	RoomDiningRoom,
	RoomOther,
}

// Valid reports whether r is a known room type.
func (r RoomType) Valid() bool {
	for _, v := range roomTypes {
		if r == v {
			return true
		}
	}
	return false
}

// Priority ranks a furniture recommendation.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// NormalizePriority maps provider text onto a Priority, defaulting to medium.
func NormalizePriority(p string) Priority {
	switch Priority(p) {
	case PriorityHigh, PriorityMedium, PriorityLow:
		return Priority(p)
	}
	return PriorityMedium
}

// Natural light qualifiers.
const (
	LightPoor      = "poor"
	LightModerate  = "moderate"
	LightGood      = "good"
	LightExcellent = "excellent"
)

// NormalizeNaturalLight returns one of the light qualifiers, defaulting to moderate.
func NormalizeNaturalLight(s string) string {
	switch s {
	case LightPoor, LightModerate, LightGood, LightExcellent:
		return s
	}
	return LightModerate
}

// Dimensions are room measurements in feet.
type Dimensions struct {
	Length float64 `json:"length"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// SquareFootage returns length × width.
func (d Dimensions) SquareFootage() float64 {
	return d.Length * d.Width
}

// FurnitureDimensions are the footprint of a single piece.
type FurnitureDimensions struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
	Depth  float64 `json:"depth"`
}

// UnmarshalJSON accepts numbers or numeric strings; anything else is zero.
func (d *FurnitureDimensions) UnmarshalJSON(data []byte) error {
	var raw struct {
		Width, Height, Depth any
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		*d = FurnitureDimensions{}
		return nil
	}
	*d = FurnitureDimensions{
		Width:  looseFloat(raw.Width),
		Height: looseFloat(raw.Height),
		Depth:  looseFloat(raw.Depth),
	}
	return nil
}

// Position places a piece inside the room.
type Position struct {
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Rotation float64 `json:"rotation"`
}

// UnmarshalJSON accepts numbers or numeric strings; anything else is zero.
func (p *Position) UnmarshalJSON(data []byte) error {
	var raw struct {
		X, Y, Rotation any
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		*p = Position{}
		return nil
	}
	*p = Position{
		X:        looseFloat(raw.X),
		Y:        looseFloat(raw.Y),
		Rotation: looseFloat(raw.Rotation),
	}
	return nil
}

// ColorScheme holds the layout palette.
type ColorScheme struct {
	Primary   string `json:"primary,omitempty"`
	Secondary string `json:"secondary,omitempty"`
	Accent    string `json:"accent,omitempty"`
}

func (c *ColorScheme) UnmarshalJSON(data []byte) error {
	var raw struct {
		Primary, Secondary, Accent FlexString
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		*c = ColorScheme{}
		return nil
	}
	*c = ColorScheme{
		Primary:   string(raw.Primary),
		Secondary: string(raw.Secondary),
		Accent:    string(raw.Accent),
	}
	return nil
}

// FurnitureItem is one recommended piece within a layout.
type FurnitureItem struct {
	Name           string              `json:"name"`
	Category       string              `json:"category"`
	Dimensions     FurnitureDimensions `json:"dimensions"`
	Position       Position            `json:"position"`
	Description    string              `json:"description"`
	EstimatedPrice string              `json:"estimatedPrice"`
	Priority       Priority            `json:"priority"`
}

// Layout is a proposed furniture and space arrangement for a room.
// Layouts are immutable once constructed by NewLayout.
type Layout struct {
	ID                      string          `json:"id"`
	Name                    string          `json:"name"`
	Description             string          `json:"description"`
	Style                   Style           `json:"style"`
	Efficiency              int             `json:"efficiency"`
	Pros                    []string        `json:"pros"`
	Cons                    []string        `json:"cons"`
	FurnitureItems          []FurnitureItem `json:"furnitureItems"`
	DesignPrinciples        []string        `json:"designPrinciples"`
	ColorScheme             ColorScheme     `json:"colorScheme"`
	LightingRecommendations []string        `json:"lightingRecommendations"`
	EstimatedCost           *string         `json:"estimatedCost"`
	ImplementationTime      *string         `json:"implementationTime"`
	AIConfidence            int             `json:"aiConfidence"`
	CreatedAt               time.Time       `json:"createdAt"`
}

// RoomData is the caller's stored description of a room.
type RoomData struct {
	RoomType       RoomType   `json:"roomType"`
	RoomDimensions Dimensions `json:"roomDimensions"`
	Description    string     `json:"description,omitempty"`
}

// RoomAnalysis is a derived understanding of a physical room, either
// computed heuristically or from a vision model response.
type RoomAnalysis struct {
	RoomType         RoomType       `json:"roomType"`
	Dimensions       Dimensions     `json:"dimensions"`
	SquareFootage    float64        `json:"squareFootage"`
	Challenges       []string       `json:"challenges"`
	Opportunities    []string       `json:"opportunities"`
	NaturalLight     string         `json:"naturalLight"`
	ExistingFeatures []string       `json:"existingFeatures"`
	UserPreferences  map[string]any `json:"userPreferences"`
	Photos           []string       `json:"photos"`
	AnalyzedAt       time.Time      `json:"analyzedAt"`
}

// ValidationResult collects every failed check rather than stopping at the first.
type ValidationResult struct {
	Valid  bool
	Errors []string
}

func newValidationResult(errs []string) ValidationResult {
	return ValidationResult{Valid: len(errs) == 0, Errors: errs}
}

// StringList decodes a JSON array of strings and silently drops anything
// else, so a single malformed field does not fail the whole entry.
type StringList []string

func (l *StringList) UnmarshalJSON(data []byte) error {
	var raw []any
	if err := json.Unmarshal(data, &raw); err != nil {
		*l = nil
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	*l = out
	return nil
}

// FlexString decodes a JSON string, or the text of a number or boolean.
// Objects and arrays decode to the empty string.
type FlexString string

func (s *FlexString) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		*s = ""
		return nil
	}
	switch t := v.(type) {
	case string:
		*s = FlexString(t)
	case json.Number:
		*s = FlexString(t.String())
	case bool:
		*s = FlexString(strconv.FormatBool(t))
	default:
		*s = ""
	}
	return nil
}

func looseFloat(v any) float64 {
	switch t := v.(type) {
	case float64:
		return t
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return 0
		}
		return f
	}
	return 0
}
