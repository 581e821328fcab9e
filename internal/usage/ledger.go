package usage

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Ledger is the persisted per-device usage record. Counters reset daily;
// TotalAPICalls and EstimatedCost accumulate forever.
type Ledger struct {
	LayoutGenerations int
	ImageAnalyses     int
	LastReset         time.Time
	TotalAPICalls     int
	EstimatedCost     decimal.Decimal
}

// ledgerJSON is the stored shape: timestamps as epoch milliseconds and cost
// as a plain JSON number.
type ledgerJSON struct {
	LayoutGenerations int         `json:"layoutGenerations"`
	ImageAnalyses     int         `json:"imageAnalyses"`
	LastReset         int64       `json:"lastReset"`
	TotalAPICalls     int         `json:"totalApiCalls"`
	EstimatedCost     json.Number `json:"estimatedCost"`
}

func (l Ledger) MarshalJSON() ([]byte, error) {
	return json.Marshal(ledgerJSON{
		LayoutGenerations: l.LayoutGenerations,
		ImageAnalyses:     l.ImageAnalyses,
		LastReset:         l.LastReset.UnixMilli(),
		TotalAPICalls:     l.TotalAPICalls,
		EstimatedCost:     json.Number(l.EstimatedCost.String()),
	})
}

func (l *Ledger) UnmarshalJSON(data []byte) error {
	var raw ledgerJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	cost := decimal.Zero
	if raw.EstimatedCost != "" {
		var err error
		cost, err = decimal.NewFromString(raw.EstimatedCost.String())
		if err != nil {
			return fmt.Errorf("invalid estimatedCost: %w", err)
		}
	}
	*l = Ledger{
		LayoutGenerations: raw.LayoutGenerations,
		ImageAnalyses:     raw.ImageAnalyses,
		LastReset:         time.UnixMilli(raw.LastReset).UTC(),
		TotalAPICalls:     raw.TotalAPICalls,
		EstimatedCost:     cost,
	}
	return nil
}

// newLedger returns an empty ledger whose window starts at now.
func newLedger(now time.Time) Ledger {
	return Ledger{LastReset: now, EstimatedCost: decimal.Zero}
}

// resetCounters zeroes the daily counters and keeps the cumulative totals.
func (l Ledger) resetCounters(now time.Time) Ledger {
	return Ledger{
		LastReset:     now,
		TotalAPICalls: l.TotalAPICalls,
		EstimatedCost: l.EstimatedCost,
	}
}
