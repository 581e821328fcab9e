// Package usage meters AI calls against per-plan daily quotas.
package usage

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/spaceify/spaceify/internal/storage"
)

const (
	// StorageKey is the KV key holding the ledger.
	StorageKey = "spaceify_usage"
	// ResetInterval is the length of a quota window.
	ResetInterval = 24 * time.Hour
)

// Tracker reads and updates the usage ledger. Read-modify-write cycles are
// serialised within a process; separate processes sharing one store can
// still race.
type Tracker struct {
	store       storage.KV
	clock       Clock
	textModel   string
	visionModel string
	mu          sync.Mutex
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithClock replaces the system clock.
func WithClock(c Clock) Option {
	return func(t *Tracker) { t.clock = c }
}

// WithModels sets the models charged when a tracking call does not name one.
func WithModels(text, vision string) Option {
	return func(t *Tracker) {
		if text != "" {
			t.textModel = text
		}
		if vision != "" {
			t.visionModel = vision
		}
	}
}

// NewTracker creates a Tracker persisting to store.
func NewTracker(store storage.KV, opts ...Option) *Tracker {
	t := &Tracker{
		store:       store,
		clock:       RealClock{},
		textModel:   DefaultTextModel,
		visionModel: DefaultVisionModel,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Usage returns the current ledger, creating it on first use and applying
// the daily reset when the window has elapsed.
func (t *Tracker) Usage(ctx context.Context) (Ledger, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.load(ctx)
}

func (t *Tracker) load(ctx context.Context) (Ledger, error) {
	now := t.clock.Now()

	raw, err := t.store.Get(ctx, StorageKey)
	if err != nil {
		return Ledger{}, fmt.Errorf("failed to read usage: %w", err)
	}

	if raw == nil {
		l := newLedger(now)
		return l, t.save(ctx, l)
	}

	var l Ledger
	if err := json.Unmarshal(raw, &l); err != nil {
		log.Warn().Err(err).Str("key", StorageKey).Msg("discarding malformed usage ledger")
		l = newLedger(now)
		return l, t.save(ctx, l)
	}

	if now.Sub(l.LastReset) >= ResetInterval {
		log.Debug().
			Time("lastReset", l.LastReset).
			Int("layoutGenerations", l.LayoutGenerations).
			Int("imageAnalyses", l.ImageAnalyses).
			Msg("daily usage window elapsed, resetting counters")
		l = l.resetCounters(now)
		return l, t.save(ctx, l)
	}

	return l, nil
}

func (t *Tracker) save(ctx context.Context, l Ledger) error {
	data, err := json.Marshal(l)
	if err != nil {
		return fmt.Errorf("failed to encode usage: %w", err)
	}
	if err := t.store.Set(ctx, StorageKey, data); err != nil {
		return fmt.Errorf("failed to save usage: %w", err)
	}
	return nil
}

// TrackLayoutGeneration records one layout generation. Zero tokens and an
// empty model fall back to the defaults.
func (t *Tracker) TrackLayoutGeneration(ctx context.Context, tokens int, model string) (Ledger, error) {
	if tokens <= 0 {
		tokens = DefaultLayoutTokens
	}
	if model == "" {
		model = t.textModel
	}
	return t.track(ctx, tokens, model, func(l *Ledger) { l.LayoutGenerations++ })
}

// TrackImageAnalysis records one photo analysis. Zero tokens and an empty
// model fall back to the defaults.
func (t *Tracker) TrackImageAnalysis(ctx context.Context, tokens int, model string) (Ledger, error) {
	if tokens <= 0 {
		tokens = DefaultImageTokens
	}
	if model == "" {
		model = t.visionModel
	}
	return t.track(ctx, tokens, model, func(l *Ledger) { l.ImageAnalyses++ })
}

func (t *Tracker) track(ctx context.Context, tokens int, model string, bump func(*Ledger)) (Ledger, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	l, err := t.load(ctx)
	if err != nil {
		return Ledger{}, err
	}

	cost := EstimateCost(tokens, model)
	bump(&l)
	l.TotalAPICalls++
	l.EstimatedCost = l.EstimatedCost.Add(cost)

	if err := t.save(ctx, l); err != nil {
		return Ledger{}, err
	}

	log.Debug().
		Str("model", model).
		Int("tokens", tokens).
		Str("cost", cost.String()).
		Int("totalApiCalls", l.TotalAPICalls).
		Msg("tracked ai usage")

	return l, nil
}

// CheckPermission reports whether action may run under sub's quotas.
func (t *Tracker) CheckPermission(ctx context.Context, action Action, sub *Subscription) (Permission, error) {
	l, err := t.Usage(ctx)
	if err != nil {
		return Permission{}, err
	}
	return Evaluate(action, l, LimitsFor(sub)), nil
}

// ActionStats summarises one metered action for display.
type ActionStats struct {
	Used       int       `json:"used"`
	Limit      int       `json:"limit"`
	Remaining  Remaining `json:"remaining"`
	Percentage float64   `json:"percentage"`
}

func newActionStats(used, limit int) ActionStats {
	if limit == Unlimited {
		return ActionStats{Used: used, Limit: limit, Remaining: Unlimited}
	}
	s := ActionStats{Used: used, Limit: limit, Remaining: Remaining(max(0, limit-used))}
	if limit > 0 {
		s.Percentage = min(100, float64(used)*100/float64(limit))
	} else if used > 0 {
		s.Percentage = 100
	}
	return s
}

// Stats is the usage summary shown to the user.
type Stats struct {
	LayoutGenerations  ActionStats     `json:"layoutGenerations"`
	ImageAnalyses      ActionStats     `json:"imageAnalyses"`
	TotalAPICalls      int             `json:"totalApiCalls"`
	EstimatedCost      decimal.Decimal `json:"estimatedCost"`
	Plan               string          `json:"plan"`
	ResetTime          time.Time       `json:"resetTime"`
	ResetTimeFormatted string          `json:"resetTimeFormatted"`
}

// Stats returns the usage summary for sub.
func (t *Tracker) Stats(ctx context.Context, sub *Subscription) (Stats, error) {
	l, err := t.Usage(ctx)
	if err != nil {
		return Stats{}, err
	}
	limits := LimitsFor(sub)
	resetAt := l.LastReset.Add(ResetInterval)
	return Stats{
		LayoutGenerations:  newActionStats(l.LayoutGenerations, limits.LayoutGenerations),
		ImageAnalyses:      newActionStats(l.ImageAnalyses, limits.ImageAnalyses),
		TotalAPICalls:      l.TotalAPICalls,
		EstimatedCost:      l.EstimatedCost,
		Plan:               limits.Plan,
		ResetTime:          resetAt,
		ResetTimeFormatted: resetAt.Local().Format("2006-01-02 15:04:05 MST"),
	}, nil
}

// Reset zeroes the daily counters immediately and starts a new window.
func (t *Tracker) Reset(ctx context.Context) (Ledger, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	l, err := t.load(ctx)
	if err != nil {
		return Ledger{}, err
	}
	l = l.resetCounters(t.clock.Now())
	return l, t.save(ctx, l)
}

// Clear deletes the ledger, cumulative totals included.
func (t *Tracker) Clear(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.store.Remove(ctx, StorageKey); err != nil {
		return fmt.Errorf("failed to clear usage: %w", err)
	}
	return nil
}
