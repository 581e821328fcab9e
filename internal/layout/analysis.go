package layout

import "time"

// Heuristic thresholds, in square feet and feet.
const (
	smallRoomSqFt    = 100
	largeRoomSqFt    = 400
	lowCeilingFt     = 8
	highCeilingFt    = 10
	challengeSmall   = "Limited space requires efficient furniture selection"
	opportunitySmall = "Cozy, intimate atmosphere potential"
	challengeLarge   = "Large space may feel empty without proper zoning"
	opportunityLarge = "Multiple functional areas possible"
	challengeLow     = "Lower ceiling height may feel cramped"
	opportunityHigh  = "High ceilings create dramatic vertical space"
)

// RoomAnalysisInput carries the fields NewRoomAnalysis accepts.
// A zero SquareFootage means "derive it from the dimensions" and a zero
// AnalyzedAt means now.
type RoomAnalysisInput struct {
	RoomType         RoomType
	Dimensions       Dimensions
	SquareFootage    float64
	Challenges       []string
	Opportunities    []string
	NaturalLight     string
	ExistingFeatures []string
	UserPreferences  map[string]any
	Photos           []string
	AnalyzedAt       time.Time
}

// NewRoomAnalysis constructs a RoomAnalysis with defaults applied.
func NewRoomAnalysis(in RoomAnalysisInput) RoomAnalysis {
	sqft := in.SquareFootage
	if sqft == 0 {
		sqft = in.Dimensions.SquareFootage()
	}
	analyzedAt := in.AnalyzedAt
	if analyzedAt.IsZero() {
		analyzedAt = time.Now()
	}
	prefs := in.UserPreferences
	if prefs == nil {
		prefs = map[string]any{}
	}
	return RoomAnalysis{
		RoomType:         in.RoomType,
		Dimensions:       in.Dimensions,
		SquareFootage:    sqft,
		Challenges:       nonNil(in.Challenges),
		Opportunities:    nonNil(in.Opportunities),
		NaturalLight:     NormalizeNaturalLight(in.NaturalLight),
		ExistingFeatures: nonNil(in.ExistingFeatures),
		UserPreferences:  prefs,
		Photos:           nonNil(in.Photos),
		AnalyzedAt:       analyzedAt.UTC(),
	}
}

// BasicAnalysis derives a room analysis from dimensions alone, without
// calling any provider. It is the fallback for failed photo analysis.
func BasicAnalysis(room RoomData) RoomAnalysis {
	return BasicAnalysisAt(room, time.Now())
}

// BasicAnalysisAt is BasicAnalysis stamped with the given time.
func BasicAnalysisAt(room RoomData, now time.Time) RoomAnalysis {
	d := room.RoomDimensions
	sqft := d.SquareFootage()

	challenges := []string{}
	opportunities := []string{}

	if sqft < smallRoomSqFt {
		challenges = append(challenges, challengeSmall)
		opportunities = append(opportunities, opportunitySmall)
	} else if sqft > largeRoomSqFt {
		challenges = append(challenges, challengeLarge)
		opportunities = append(opportunities, opportunityLarge)
	}

	if d.Height < lowCeilingFt {
		challenges = append(challenges, challengeLow)
	} else if d.Height > highCeilingFt {
		opportunities = append(opportunities, opportunityHigh)
	}

	return NewRoomAnalysis(RoomAnalysisInput{
		RoomType:      room.RoomType,
		Dimensions:    d,
		SquareFootage: sqft,
		Challenges:    challenges,
		Opportunities: opportunities,
		NaturalLight:  LightModerate,
		UserPreferences: map[string]any{
			"description": room.Description,
		},
		AnalyzedAt: now,
	})
}

// ValidateRoomAnalysis checks the room type and that every dimension is
// strictly positive.
func ValidateRoomAnalysis(a RoomAnalysis) ValidationResult {
	var errs []string
	if !a.RoomType.Valid() {
		errs = append(errs, "Room type must be a valid room type")
	}
	if a.Dimensions.Length <= 0 {
		errs = append(errs, "Room length must be a positive number")
	}
	if a.Dimensions.Width <= 0 {
		errs = append(errs, "Room width must be a positive number")
	}
	if a.Dimensions.Height <= 0 {
		errs = append(errs, "Room height must be a positive number")
	}
	return newValidationResult(errs)
}
