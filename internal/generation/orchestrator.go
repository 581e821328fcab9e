// Package generation is the entry point callers use for AI features. It
// gates every request on the usage quota and provider availability, records
// usage after success and keeps the in-flight and error state a UI shows.
package generation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/spaceify/spaceify/internal/imageprep"
	"github.com/spaceify/spaceify/internal/layout"
	"github.com/spaceify/spaceify/internal/llm"
	"github.com/spaceify/spaceify/internal/metrics"
	"github.com/spaceify/spaceify/internal/usage"
)

// ErrServiceUnavailable is returned when no provider is configured.
var ErrServiceUnavailable = errors.New("AI service is currently unavailable. Please check your configuration.")

// QuotaExceededError is returned when the usage quota denies a request.
// Its message is the tracker's reason.
type QuotaExceededError struct {
	Action usage.Action
	Limit  int
	Reason string
}

func (e *QuotaExceededError) Error() string {
	return e.Reason
}

// Tracker is the usage ledger the orchestrator consults and updates.
type Tracker interface {
	CheckPermission(ctx context.Context, action usage.Action, sub *usage.Subscription) (usage.Permission, error)
	TrackLayoutGeneration(ctx context.Context, tokens int, model string) (usage.Ledger, error)
	TrackImageAnalysis(ctx context.Context, tokens int, model string) (usage.Ledger, error)
	Stats(ctx context.Context, sub *usage.Subscription) (usage.Stats, error)
}

// Client performs the provider calls.
type Client interface {
	Available() bool
	GenerateLayouts(ctx context.Context, analysis layout.RoomAnalysis, prefs llm.Preferences, count int) (*llm.LayoutResult, error)
	AnalyzeRoomPhotos(ctx context.Context, images []imageprep.Image, room layout.RoomData) (*llm.AnalysisResult, error)
}

var (
	_ Tracker = (*usage.Tracker)(nil)
	_ Client  = (*llm.Client)(nil)
)

// AIHistory holds earlier AI results stored with a project.
type AIHistory struct {
	EnhancedAnalysis *layout.RoomAnalysis `json:"enhancedAnalysis,omitempty"`
}

// Project is the caller's stored project record.
type Project struct {
	ID             string            `json:"id"`
	RoomType       layout.RoomType   `json:"roomType"`
	RoomDimensions layout.Dimensions `json:"roomDimensions"`
	Description    string            `json:"description,omitempty"`
	RoomPhotos     []string          `json:"roomPhotos,omitempty"`
	AIHistory      *AIHistory        `json:"aiHistory,omitempty"`
}

// RoomData returns the room part of the project.
func (p Project) RoomData() layout.RoomData {
	return layout.RoomData{
		RoomType:       p.RoomType,
		RoomDimensions: p.RoomDimensions,
		Description:    p.Description,
	}
}

// analysis reuses a stored enhanced analysis when there is one.
func (p Project) analysis(now time.Time) layout.RoomAnalysis {
	if p.AIHistory != nil && p.AIHistory.EnhancedAnalysis != nil {
		return *p.AIHistory.EnhancedAnalysis
	}
	return layout.BasicAnalysisAt(p.RoomData(), now)
}

// Options tune a layout generation request. Zero values take defaults.
type Options struct {
	Count      int
	Style      string
	Budget     string
	Priorities []string
}

func (o Options) withDefaults() Options {
	if o.Count <= 0 {
		o.Count = llm.DefaultLayoutCount
	}
	if o.Style == "" {
		o.Style = llm.DefaultStyle
	}
	if o.Budget == "" {
		o.Budget = llm.DefaultBudget
	}
	return o
}

// LastGeneration marks the most recent successful layout generation.
type LastGeneration struct {
	Timestamp   time.Time `json:"timestamp"`
	ProjectID   string    `json:"projectId"`
	LayoutCount int       `json:"layoutCount"`
}

// Orchestrator coordinates the tracker and the client for one caller.
type Orchestrator struct {
	tracker Tracker
	client  Client
	metrics *metrics.Metrics
	clock   usage.Clock

	mu             sync.Mutex
	sub            *usage.Subscription
	generating     bool
	analyzing      bool
	err            error
	lastGeneration *LastGeneration
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithSubscription sets the caller's subscription. Nil means signed out.
func WithSubscription(sub *usage.Subscription) Option {
	return func(o *Orchestrator) { o.sub = sub }
}

// WithMetrics records request outcomes in m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

// WithClock sets the clock used for the last-generation marker and for
// heuristic room analyses.
func WithClock(c usage.Clock) Option {
	return func(o *Orchestrator) { o.clock = c }
}

// New creates an orchestrator.
func New(tracker Tracker, client Client, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		tracker: tracker,
		client:  client,
		clock:   usage.RealClock{},
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// SetSubscription replaces the caller's subscription.
func (o *Orchestrator) SetSubscription(sub *usage.Subscription) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.sub = sub
}

func (o *Orchestrator) subscription() *usage.Subscription {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.sub
}

// begin raises flag and clears the previous error.
func (o *Orchestrator) begin(flag *bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	*flag = true
	o.err = nil
}

func (o *Orchestrator) end(flag *bool, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	*flag = false
	if err != nil {
		o.err = err
	}
}

// GenerateLayouts generates layouts for project. The quota and provider
// availability are checked before any provider call, and usage is tracked
// only after the provider succeeds.
func (o *Orchestrator) GenerateLayouts(ctx context.Context, project Project, opts Options) (layouts []layout.Layout, err error) {
	start := time.Now()
	o.begin(&o.generating)
	defer func() {
		o.end(&o.generating, err)
		o.metrics.ObserveRequest(string(usage.ActionLayoutGeneration), outcome(err), time.Since(start))
	}()

	if err := o.gate(ctx, usage.ActionLayoutGeneration); err != nil {
		return nil, err
	}

	opts = opts.withDefaults()
	result, err := o.client.GenerateLayouts(ctx, project.analysis(o.clock.Now()), llm.Preferences{
		Style:      opts.Style,
		Budget:     opts.Budget,
		Priorities: opts.Priorities,
	}, opts.Count)
	if err != nil {
		return nil, err
	}

	if _, err := o.tracker.TrackLayoutGeneration(ctx, int(result.Usage.TotalTokens), result.Model); err != nil {
		log.Error().Err(err).Str("projectId", project.ID).Msg("failed to track layout generation")
	}
	o.metrics.AddUsage(string(usage.ActionLayoutGeneration), result.Model, result.Usage.TotalTokens, result.Usage.CostUSD)

	o.mu.Lock()
	o.lastGeneration = &LastGeneration{
		Timestamp:   o.clock.Now(),
		ProjectID:   project.ID,
		LayoutCount: len(result.Layouts),
	}
	o.mu.Unlock()

	log.Info().
		Str("projectId", project.ID).
		Int("layouts", len(result.Layouts)).
		Msg("layout generation complete")

	return result.Layouts, nil
}

// AnalyzeRoomPhotos analyzes room photos behind the same gate as layout
// generation. Only answers from the vision model count against the
// imageAnalysis quota. Heuristic fallbacks and cache hits made no vision
// call, so re-analyzing identical photos is free while quota remains; once
// the quota is exhausted the gate refuses cached analyses too.
func (o *Orchestrator) AnalyzeRoomPhotos(ctx context.Context, images []imageprep.Image, room layout.RoomData) (result *llm.AnalysisResult, err error) {
	start := time.Now()
	o.begin(&o.analyzing)
	defer func() {
		o.end(&o.analyzing, err)
		o.metrics.ObserveRequest(string(usage.ActionImageAnalysis), outcome(err), time.Since(start))
	}()

	if err := o.gate(ctx, usage.ActionImageAnalysis); err != nil {
		return nil, err
	}

	result, err = o.client.AnalyzeRoomPhotos(ctx, images, room)
	if err != nil {
		return nil, err
	}

	if result.Source == llm.SourceVision {
		if _, err := o.tracker.TrackImageAnalysis(ctx, int(result.Usage.TotalTokens), result.Model); err != nil {
			log.Error().Err(err).Msg("failed to track image analysis")
		}
		o.metrics.AddUsage(string(usage.ActionImageAnalysis), result.Model, result.Usage.TotalTokens, result.Usage.CostUSD)
	}

	log.Info().
		Str("source", string(result.Source)).
		Int("photos", len(images)).
		Msg("room analysis complete")

	return result, nil
}

// gate checks the quota, then provider availability.
func (o *Orchestrator) gate(ctx context.Context, action usage.Action) error {
	perm, err := o.tracker.CheckPermission(ctx, action, o.subscription())
	if err != nil {
		return fmt.Errorf("failed to check permission: %w", err)
	}
	if !perm.CanPerform {
		return &QuotaExceededError{
			Action: action,
			Limit:  limitFor(action, perm.Limits),
			Reason: perm.Reason,
		}
	}
	if o.client == nil || !o.client.Available() {
		return ErrServiceUnavailable
	}
	return nil
}

func limitFor(action usage.Action, l usage.Limits) int {
	switch action {
	case usage.ActionLayoutGeneration:
		return l.LayoutGenerations
	case usage.ActionImageAnalysis:
		return l.ImageAnalyses
	}
	return 0
}

func outcome(err error) string {
	var quota *QuotaExceededError
	switch {
	case err == nil:
		return metrics.OutcomeSuccess
	case errors.As(err, &quota):
		return metrics.OutcomeDenied
	case errors.Is(err, ErrServiceUnavailable):
		return metrics.OutcomeUnavailable
	}
	return metrics.OutcomeError
}

// CheckPermission reports whether action is currently allowed.
func (o *Orchestrator) CheckPermission(ctx context.Context, action usage.Action) (usage.Permission, error) {
	return o.tracker.CheckPermission(ctx, action, o.subscription())
}

// UsageStats returns usage against the caller's plan.
func (o *Orchestrator) UsageStats(ctx context.Context) (usage.Stats, error) {
	return o.tracker.Stats(ctx, o.subscription())
}

// CanGenerateLayouts reports whether the layout quota allows another call.
func (o *Orchestrator) CanGenerateLayouts(ctx context.Context) bool {
	return o.can(ctx, usage.ActionLayoutGeneration)
}

// CanAnalyzeImages reports whether the image analysis quota allows another call.
func (o *Orchestrator) CanAnalyzeImages(ctx context.Context) bool {
	return o.can(ctx, usage.ActionImageAnalysis)
}

func (o *Orchestrator) can(ctx context.Context, action usage.Action) bool {
	perm, err := o.CheckPermission(ctx, action)
	if err != nil {
		log.Warn().Err(err).Str("action", string(action)).Msg("failed to check permission")
		return false
	}
	return perm.CanPerform
}

// IsAIAvailable reports whether a provider is configured.
func (o *Orchestrator) IsAIAvailable() bool {
	return o.client != nil && o.client.Available()
}

// ClearError drops the stored error.
func (o *Orchestrator) ClearError() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.err = nil
}

// Retry clears the stored error and runs fn. A nil fn does nothing.
func (o *Orchestrator) Retry(ctx context.Context, fn func(context.Context) error) error {
	if fn == nil {
		return nil
	}
	o.ClearError()
	return fn(ctx)
}

// Err returns the error of the last failed operation, if not cleared.
func (o *Orchestrator) Err() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.err
}

// IsGenerating reports whether a layout generation is in flight.
func (o *Orchestrator) IsGenerating() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.generating
}

// IsAnalyzing reports whether a photo analysis is in flight.
func (o *Orchestrator) IsAnalyzing() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.analyzing
}

// IsLoading reports whether any operation is in flight.
func (o *Orchestrator) IsLoading() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.generating || o.analyzing
}

// LastGeneration returns the marker of the last successful layout
// generation, or nil.
func (o *Orchestrator) LastGeneration() *LastGeneration {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.lastGeneration == nil {
		return nil
	}
	lg := *o.lastGeneration
	return &lg
}
