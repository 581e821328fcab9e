package llm

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/lithammer/dedent"

	"github.com/spaceify/spaceify/internal/layout"
)

const layoutSystemPrompt = `
	You are an expert interior designer and space planner with 20+ years of experience. You specialize in creating functional, beautiful, and efficient room layouts that maximize space utilization while maintaining aesthetic appeal.

	Your expertise includes:
	- Space planning and furniture arrangement
	- Traffic flow optimization
	- Style coordination and design principles
	- Budget-conscious recommendations
	- Problem-solving for challenging spaces

	When generating layouts, consider:
	- Functionality and daily use patterns
	- Natural light and artificial lighting needs
	- Storage requirements
	- Safety and accessibility
	- Style consistency and visual appeal
	- Budget constraints and practical implementation

	Always provide practical, implementable solutions with clear explanations of design decisions.

	Return responses in JSON format with this structure:
	{
	  "layouts": [
	    {
	      "name": "Layout Name",
	      "description": "Detailed description of the layout concept and approach",
	      "style": "One of: Modern, Traditional, Contemporary, Minimalist, Industrial, Scandinavian, Bohemian, Rustic",
	      "efficiency": 85,
	      "pros": ["List of advantages"],
	      "cons": ["List of considerations or limitations"],
	      "furnitureItems": [
	        {
	          "name": "Item name",
	          "category": "furniture category",
	          "dimensions": {"width": 0, "height": 0, "depth": 0},
	          "position": {"x": 0, "y": 0, "rotation": 0},
	          "description": "Why this item and placement",
	          "estimatedPrice": "$XXX-XXX",
	          "priority": "high/medium/low"
	        }
	      ],
	      "designPrinciples": ["Key design principles applied"],
	      "colorScheme": {
	        "primary": "color",
	        "secondary": "color",
	        "accent": "color"
	      },
	      "lightingRecommendations": ["Lighting suggestions"],
	      "estimatedCost": "$XXX-XXX",
	      "implementationTime": "X weeks",
	      "aiConfidence": 90
	    }
	  ]
	}
`

const roomAnalysisSystemPrompt = `
	You are an expert interior designer analyzing room photos to provide detailed insights for space planning. Examine the images carefully and provide comprehensive analysis.

	Return analysis in JSON format:
	{
	  "challenges": ["List of space challenges identified"],
	  "opportunities": ["List of improvement opportunities"],
	  "naturalLight": "poor/moderate/good/excellent",
	  "existingFeatures": ["Notable architectural or design features"],
	  "currentStyle": "Current design style if identifiable",
	  "colorAnalysis": {
	    "dominantColors": ["colors"],
	    "mood": "description"
	  },
	  "functionalityAssessment": "Current functionality rating and notes",
	  "recommendations": ["Immediate improvement suggestions"]
	}
`

const layoutPrompt = `
	Generate %d distinct room layout options for a %s with the following specifications:

	Room Details:
	- Dimensions: %s' × %s' × %s'
	- Square footage: %s sq ft
	- Room type: %s

	User Preferences:
	- Style preference: %s
	- Budget: %s
	- Priorities: %s
	%s
	Please provide diverse layout options that:
	1. Optimize the space efficiently
	2. Address the specific challenges mentioned
	3. Align with the user's style and budget preferences
	4. Include practical furniture placement suggestions
	5. Consider traffic flow and functionality

	Return the response as a JSON object with a "layouts" array containing the generated options.
`

const roomAnalysisPrompt = `
	Analyze this %s with dimensions %s' × %s' × %s' and provide insights about:

	1. Current layout and furniture arrangement
	2. Natural light sources and quality
	3. Existing architectural features (windows, doors, built-ins, etc.)
	4. Space utilization challenges
	5. Opportunities for improvement
	6. Color scheme and style assessment
	7. Traffic flow patterns
	8. Storage solutions present or needed
	%s
	Return analysis as JSON with structured insights.
`

// Preference defaults used when the caller leaves a field empty.
const (
	DefaultStyle      = "modern"
	DefaultBudget     = "moderate"
	DefaultPriorities = "functionality and aesthetics"
)

// Preferences steer layout generation.
type Preferences struct {
	Style      string
	Budget     string
	Priorities []string
}

func formatPrompt(text string, a ...any) string {
	return fmt.Sprintf(strings.TrimSpace(dedent.Dedent(text)), a...)
}

func systemPrompt(text string) string {
	return strings.TrimSpace(dedent.Dedent(text))
}

// feet renders a measurement without trailing zeros.
func feet(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func feetOrUnknown(v float64) string {
	if v <= 0 {
		return "unknown"
	}
	return feet(v)
}

func buildLayoutPrompt(a layout.RoomAnalysis, prefs Preferences, count int) string {
	style := prefs.Style
	if style == "" {
		style = DefaultStyle
	}
	budget := prefs.Budget
	if budget == "" {
		budget = DefaultBudget
	}
	priorities := strings.Join(prefs.Priorities, ", ")
	if priorities == "" {
		priorities = DefaultPriorities
	}

	var extra strings.Builder
	if len(a.Challenges) > 0 {
		fmt.Fprintf(&extra, "\nChallenges to address: %s", strings.Join(a.Challenges, ", "))
	}
	if len(a.Opportunities) > 0 {
		fmt.Fprintf(&extra, "\nOpportunities to leverage: %s", strings.Join(a.Opportunities, ", "))
	}
	if s, ok := a.UserPreferences["currentStyle"].(string); ok && s != "" {
		fmt.Fprintf(&extra, "\nCurrent room style: %s", s)
	}
	if s, ok := a.UserPreferences["description"].(string); ok && s != "" {
		fmt.Fprintf(&extra, "\nAdditional context: %s", s)
	}
	extra.WriteString("\n")

	return formatPrompt(layoutPrompt,
		count,
		strings.ToLower(string(a.RoomType)),
		feet(a.Dimensions.Length), feet(a.Dimensions.Width), feet(a.Dimensions.Height),
		feet(a.SquareFootage),
		a.RoomType,
		style,
		budget,
		priorities,
		extra.String(),
	)
}

func buildRoomAnalysisPrompt(room layout.RoomData) string {
	roomType := strings.ToLower(string(room.RoomType))
	if roomType == "" {
		roomType = "room"
	}
	extra := "\n"
	if room.Description != "" {
		extra = fmt.Sprintf("\nAdditional context: %s\n", room.Description)
	}
	return formatPrompt(roomAnalysisPrompt,
		roomType,
		feetOrUnknown(room.RoomDimensions.Length),
		feetOrUnknown(room.RoomDimensions.Width),
		feetOrUnknown(room.RoomDimensions.Height),
		extra,
	)
}
