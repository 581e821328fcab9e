package layout

import (
	"encoding/json"
	"errors"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	// DefaultEfficiency is used when the provider's efficiency is not a number.
	DefaultEfficiency = 75
	// DefaultConfidence is used when the provider's confidence is not a number.
	DefaultConfidence = 80
)

// Defaults applied by RepairLayout.
const (
	DefaultLayoutName        = "Generated Layout"
	DefaultLayoutDescription = "AI-generated room layout optimized for your space."
	DefaultPro               = "Optimized space utilization"
	DefaultCon               = "May require furniture adjustments"
)

// FurnitureInput is a furniture entry as returned by the provider.
type FurnitureInput struct {
	Name           FlexString           `json:"name"`
	Category       FlexString           `json:"category"`
	Dimensions     *FurnitureDimensions `json:"dimensions"`
	Position       *Position            `json:"position"`
	Description    FlexString           `json:"description"`
	EstimatedPrice FlexString           `json:"estimatedPrice"`
	Priority       FlexString           `json:"priority"`
}

// LayoutInput is an untrusted layout entry as returned by the provider.
// Scores are kept as raw JSON values so they can be coerced leniently.
// A zero CreatedAt means now.
type LayoutInput struct {
	Name                    FlexString       `json:"name"`
	Description             FlexString       `json:"description"`
	Style                   FlexString       `json:"style"`
	Efficiency              any              `json:"efficiency"`
	Pros                    StringList       `json:"pros"`
	Cons                    StringList       `json:"cons"`
	FurnitureItems          []FurnitureInput `json:"furnitureItems"`
	DesignPrinciples        StringList       `json:"designPrinciples"`
	ColorScheme             *ColorScheme     `json:"colorScheme"`
	LightingRecommendations StringList       `json:"lightingRecommendations"`
	EstimatedCost           *FlexString      `json:"estimatedCost"`
	ImplementationTime      *FlexString      `json:"implementationTime"`
	AIConfidence            any              `json:"aiConfidence"`
	CreatedAt               time.Time        `json:"-"`
}

// DecodeLayoutInput decodes one provider entry. Fields of the wrong type
// are skipped and the rest of the entry is kept; the error still reports
// the first mismatch. Malformed JSON yields an empty input, which the
// repair step later fills in.
func DecodeLayoutInput(raw json.RawMessage) (LayoutInput, error) {
	var in LayoutInput
	if err := json.Unmarshal(raw, &in); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return in, err
		}
		return LayoutInput{}, err
	}
	return in, nil
}

// NewLayout builds a Layout from provider input. Scores are clamped to
// [0,100], unknown styles become Modern, and a fresh ID is assigned.
func NewLayout(in LayoutInput) Layout {
	createdAt := in.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	l := Layout{
		ID:                      uuid.NewString(),
		Name:                    strings.TrimSpace(string(in.Name)),
		Description:             strings.TrimSpace(string(in.Description)),
		Style:                   NormalizeStyle(string(in.Style)),
		Efficiency:              ClampScore(ParseScore(in.Efficiency, DefaultEfficiency)),
		Pros:                    nonNil(in.Pros),
		Cons:                    nonNil(in.Cons),
		FurnitureItems:          make([]FurnitureItem, 0, len(in.FurnitureItems)),
		DesignPrinciples:        nonNil(in.DesignPrinciples),
		LightingRecommendations: nonNil(in.LightingRecommendations),
		EstimatedCost:           optionalString(in.EstimatedCost),
		ImplementationTime:      optionalString(in.ImplementationTime),
		AIConfidence:            ClampScore(ParseScore(in.AIConfidence, DefaultConfidence)),
		CreatedAt:               createdAt.UTC(),
	}
	if in.ColorScheme != nil {
		l.ColorScheme = *in.ColorScheme
	}
	for _, f := range in.FurnitureItems {
		l.FurnitureItems = append(l.FurnitureItems, NewFurnitureItem(f))
	}
	return l
}

// NewFurnitureItem fills absent dimensions and position with zeros.
func NewFurnitureItem(in FurnitureInput) FurnitureItem {
	item := FurnitureItem{
		Name:           string(in.Name),
		Category:       string(in.Category),
		Description:    string(in.Description),
		EstimatedPrice: string(in.EstimatedPrice),
		Priority:       NormalizePriority(string(in.Priority)),
	}
	if in.Dimensions != nil {
		item.Dimensions = *in.Dimensions
	}
	if in.Position != nil {
		item.Position = *in.Position
	}
	return item
}

// ParseScore leniently reads an integer score the way a user would:
// numbers are truncated, strings like "85" or "85%" use their leading
// integer. Values beyond the int32 range saturate. Anything else returns
// fallback.
func ParseScore(raw any, fallback int) int {
	switch v := raw.(type) {
	case float64:
		if math.IsNaN(v) {
			return fallback
		}
		return int(math.Max(math.MinInt32, math.Min(math.MaxInt32, v)))
	case int:
		return v
	case int64:
		return int(v)
	case json.Number:
		if f, err := v.Float64(); err == nil {
			return ParseScore(f, fallback)
		}
		return ParseScore(string(v), fallback)
	case string:
		s := strings.TrimSpace(v)
		end := 0
		for end < len(s) {
			c := s[end]
			if (c == '-' || c == '+') && end == 0 {
				end++
				continue
			}
			if c < '0' || c > '9' {
				break
			}
			end++
		}
		digits := s[:end]
		n, err := strconv.Atoi(digits)
		if errors.Is(err, strconv.ErrRange) {
			if strings.HasPrefix(digits, "-") {
				return math.MinInt32
			}
			return math.MaxInt32
		}
		if err != nil {
			return fallback
		}
		return n
	}
	return fallback
}

// ClampScore limits n to [0,100].
func ClampScore(n int) int {
	return min(100, max(0, n))
}

// ValidateLayout checks the fields a layout cannot be shown without.
func ValidateLayout(l Layout) ValidationResult {
	var errs []string
	if strings.TrimSpace(l.Name) == "" {
		errs = append(errs, "Layout name is required and must be a string")
	}
	if strings.TrimSpace(l.Description) == "" {
		errs = append(errs, "Layout description is required and must be a string")
	}
	if !l.Style.Valid() {
		errs = append(errs, "Layout style must be a valid style")
	}
	if l.Efficiency < 0 || l.Efficiency > 100 {
		errs = append(errs, "Layout efficiency must be a number between 0 and 100")
	}
	return newValidationResult(errs)
}

// RepairLayout returns a copy of l with defaults filled in so that name,
// description, pros and cons are never empty. It does not touch l.
func RepairLayout(l Layout) Layout {
	out := l
	if strings.TrimSpace(out.Name) == "" {
		out.Name = DefaultLayoutName
	}
	if strings.TrimSpace(out.Description) == "" {
		out.Description = DefaultLayoutDescription
	}
	out.Style = NormalizeStyle(string(out.Style))
	out.Efficiency = ClampScore(out.Efficiency)
	out.AIConfidence = ClampScore(out.AIConfidence)
	if len(out.Pros) == 0 {
		out.Pros = []string{DefaultPro}
	}
	if len(out.Cons) == 0 {
		out.Cons = []string{DefaultCon}
	}
	return out
}

// Finalize runs validation and, when it fails, the repair transform.
// The returned result is the validation of the input before repair.
func Finalize(l Layout) (Layout, ValidationResult) {
	res := ValidateLayout(l)
	if res.Valid {
		return l, res
	}
	return RepairLayout(l), res
}

func optionalString(s *FlexString) *string {
	if s == nil || strings.TrimSpace(string(*s)) == "" {
		return nil
	}
	out := string(*s)
	return &out
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
