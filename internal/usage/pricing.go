package usage

import "github.com/shopspring/decimal"

// Default models used when a tracking call does not name one.
const (
	DefaultTextModel   = "gpt-4o-mini"
	DefaultVisionModel = "gpt-4o"
)

// Default token estimates per call.
const (
	DefaultLayoutTokens = 1000
	DefaultImageTokens  = 1500
)

// pricePer1K is the estimated USD price per 1000 tokens.
var pricePer1K = map[string]decimal.Decimal{
	"gpt-4o":                decimal.RequireFromString("0.005"),
	"gpt-4o-mini":           decimal.RequireFromString("0.0015"),
	"gpt-4":                 decimal.RequireFromString("0.03"),
	"gpt-3.5-turbo":         decimal.RequireFromString("0.001"),
	"gemini-2.5-flash":      decimal.RequireFromString("0.0025"),
	"gemini-2.5-flash-lite": decimal.RequireFromString("0.0004"),
}

var thousand = decimal.NewFromInt(1000)

// EstimateCost prices tokens for model. Unknown models use the
// gpt-4o-mini rate.
func EstimateCost(tokens int, model string) decimal.Decimal {
	rate, ok := pricePer1K[model]
	if !ok {
		rate = pricePer1K[DefaultTextModel]
	}
	return decimal.NewFromInt(int64(tokens)).Mul(rate).Div(thousand)
}
