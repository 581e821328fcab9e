package usage

import (
	"fmt"
	"strconv"
	"strings"
)

// Unlimited is the limit value meaning "no cap".
const Unlimited = -1

// Plan labels.
const (
	PlanFree       = "free"
	PlanBasic      = "basic"
	PlanPro        = "pro"
	PlanEnterprise = "enterprise"
)

// Action identifies a metered operation.
type Action string

const (
	ActionLayoutGeneration Action = "layoutGeneration"
	ActionImageAnalysis    Action = "imageAnalysis"
)

// Subscription is the caller's plan record. A nil *Subscription means the
// user is not signed in.
type Subscription struct {
	Plan   string `json:"plan"`
	Status string `json:"status"`
}

// IsActive reports whether the subscription is currently paid up.
func (s *Subscription) IsActive() bool {
	return s != nil && s.Status == "active"
}

// Limits are the daily quotas for a plan. Unlimited is -1.
type Limits struct {
	LayoutGenerations int    `json:"layoutGenerations"`
	ImageAnalyses     int    `json:"imageAnalyses"`
	Plan              string `json:"plan"`
}

var freeLimits = Limits{LayoutGenerations: 2, ImageAnalyses: 1, Plan: PlanFree}

// LimitsFor maps a subscription to its quotas. Missing, inactive and
// unrecognised subscriptions get the free tier.
func LimitsFor(sub *Subscription) Limits {
	if !sub.IsActive() {
		return freeLimits
	}
	switch strings.ToLower(sub.Plan) {
	case PlanBasic:
		return Limits{LayoutGenerations: 10, ImageAnalyses: 5, Plan: PlanBasic}
	case PlanPro:
		return Limits{LayoutGenerations: 50, ImageAnalyses: 25, Plan: PlanPro}
	case PlanEnterprise:
		return Limits{LayoutGenerations: Unlimited, ImageAnalyses: Unlimited, Plan: PlanEnterprise}
	}
	return freeLimits
}

// Remaining is a count of uses left, or Unlimited.
type Remaining int

func (r Remaining) String() string {
	if r == Unlimited {
		return "Unlimited"
	}
	return strconv.Itoa(int(r))
}

// MarshalJSON renders Unlimited as the string "Unlimited".
func (r Remaining) MarshalJSON() ([]byte, error) {
	if r == Unlimited {
		return []byte(`"Unlimited"`), nil
	}
	return []byte(strconv.Itoa(int(r))), nil
}

// Permission is the answer to a pre-flight quota check.
type Permission struct {
	CanPerform    bool      `json:"canPerform"`
	Reason        string    `json:"reason"`
	RemainingUses Remaining `json:"remainingUses"`
	CurrentUsage  Ledger    `json:"currentUsage"`
	Limits        Limits    `json:"limits"`
}

// Evaluate decides whether action is allowed given the ledger and limits.
func Evaluate(action Action, ledger Ledger, limits Limits) Permission {
	p := Permission{CanPerform: true, CurrentUsage: ledger, Limits: limits}

	var used, limit int
	var noun string
	switch action {
	case ActionLayoutGeneration:
		used, limit, noun = ledger.LayoutGenerations, limits.LayoutGenerations, "layout generations"
	case ActionImageAnalysis:
		used, limit, noun = ledger.ImageAnalyses, limits.ImageAnalyses, "image analyses"
	default:
		p.CanPerform = false
		p.Reason = "Unknown action type"
		return p
	}

	if limit == Unlimited {
		p.RemainingUses = Unlimited
		return p
	}
	p.RemainingUses = Remaining(max(0, limit-used))
	if used >= limit {
		p.CanPerform = false
		p.Reason = fmt.Sprintf("Daily limit of %d %s reached", limit, noun)
	}
	return p
}
