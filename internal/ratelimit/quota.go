package ratelimit

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"travelsec/pkg/errors"
)

// Category groups endpoints that spend on a paid upstream.
type Category string

const (
	CategoryAmadeus     Category = "amadeus"
	CategoryImageSearch Category = "image_search"
	CategoryAIImage     Category = "ai_image"
)

// Tier is an organization's subscription tier.
type Tier string

const (
	TierFree       Tier = "free"
	TierPro        Tier = "pro"
	TierEnterprise Tier = "enterprise"
)

// TierLimits holds the burst (per minute) and daily allowances.
type TierLimits struct {
	BurstPerMinute int `yaml:"burst_per_minute" json:"burst_per_minute"`
	Daily          int `yaml:"daily" json:"daily"`
}

// DefaultCostLimits returns the built-in plan table.
func DefaultCostLimits() map[Category]map[Tier]TierLimits {
	return map[Category]map[Tier]TierLimits{
		CategoryAmadeus: {
			TierFree:       {BurstPerMinute: 6, Daily: 120},
			TierPro:        {BurstPerMinute: 18, Daily: 1200},
			TierEnterprise: {BurstPerMinute: 45, Daily: 8000},
		},
		CategoryImageSearch: {
			TierFree:       {BurstPerMinute: 12, Daily: 300},
			TierPro:        {BurstPerMinute: 30, Daily: 2400},
			TierEnterprise: {BurstPerMinute: 80, Daily: 12000},
		},
		CategoryAIImage: {
			TierFree:       {BurstPerMinute: 2, Daily: 20},
			TierPro:        {BurstPerMinute: 8, Daily: 200},
			TierEnterprise: {BurstPerMinute: 20, Daily: 1200},
		},
	}
}

// ErrUnknownPlan is returned for a category/tier pair with no limits.
var ErrUnknownPlan = errors.New("unknown cost category or tier")

// QuotaRequest identifies the caller of a cost endpoint.
type QuotaRequest struct {
	Category       Category
	Tier           Tier
	OrganizationID string
	UserID         string
}

// QuotaDecision is the combined result of the burst and daily windows.
type QuotaDecision struct {
	Allowed    bool
	Reason     string
	Burst      Result
	Daily      Result
	RetryAfter int
}

// Quota enforces a per-user burst window and a per-organization daily
// window on cost endpoints.
type Quota struct {
	controller *Controller
	limits     map[Category]map[Tier]TierLimits
}

// NewQuota creates a quota guard. A nil table uses DefaultCostLimits.
func NewQuota(controller *Controller, limits map[Category]map[Tier]TierLimits) *Quota {
	if limits == nil {
		limits = DefaultCostLimits()
	}
	return &Quota{controller: controller, limits: limits}
}

// Check evaluates both windows. Both are always charged.
func (q *Quota) Check(ctx context.Context, req QuotaRequest) (QuotaDecision, error) {
	tiers, ok := q.limits[req.Category]
	if !ok {
		return QuotaDecision{}, fmt.Errorf("%w: %s", ErrUnknownPlan, req.Category)
	}
	limits, ok := tiers[req.Tier]
	if !ok {
		return QuotaDecision{}, fmt.Errorf("%w: %s/%s", ErrUnknownPlan, req.Category, req.Tier)
	}

	results, allowed := q.controller.CheckAll(ctx,
		Options{
			Identifier: req.OrganizationID + ":" + req.UserID,
			Limit:      limits.BurstPerMinute,
			Window:     time.Minute,
			Prefix:     fmt.Sprintf("cost:%s:burst", req.Category),
		},
		Options{
			Identifier: req.OrganizationID,
			Limit:      limits.Daily,
			Window:     24 * time.Hour,
			Prefix:     fmt.Sprintf("cost:%s:daily", req.Category),
		},
	)

	d := QuotaDecision{Allowed: allowed, Burst: results[0], Daily: results[1], Reason: "within limits"}
	if !allowed {
		d.Reason = "burst rate limit exceeded"
		if !d.Daily.Success {
			d.Reason = "daily quota exceeded"
		}
		earliest := d.Burst.Reset
		if d.Daily.Reset.Before(earliest) {
			earliest = d.Daily.Reset
		}
		d.RetryAfter = RetryAfter(earliest, q.controller.Now())
	}
	return d, nil
}

// UpgradePlan suggests the next plan for a denied tier, or "".
func UpgradePlan(t Tier) string {
	switch t {
	case TierFree:
		return "pro_monthly"
	case TierPro:
		return "enterprise"
	default:
		return ""
	}
}

// WriteQuotaHeaders sets the daily window as the primary headers and the
// burst window as the secondary ones.
func WriteQuotaHeaders(h http.Header, d QuotaDecision) {
	WriteHeaders(h, d.Daily)
	WriteBurstHeaders(h, d.Burst)
}
