// Package query derives read views (remaining days, activity, effective status)
// from stored subscription data. Every function is pure and safe for concurrent use.
package query

import (
	"math"
	"time"

	"milk-subscription-be/internal/entity"
)

const day = 24 * time.Hour

// CeilDays returns ceil(d / 24h), with zero or negative durations mapped to 0.
func CeilDays(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int(math.Ceil(float64(d) / float64(day)))
}

// RemainingDays is max(0, ceil((EndDate - asOf) / 1 day)).
func RemainingDays(sub *entity.Subscription, asOf time.Time) int {
	if sub == nil {
		return 0
	}
	return CeilDays(sub.EndDate.Sub(asOf))
}

// HasEnded reports whether EndDate is at or before asOf.
func HasEnded(sub *entity.Subscription, asOf time.Time) bool {
	return !sub.EndDate.After(asOf)
}

// IsActive requires both the stored status and an unexpired EndDate.
func IsActive(sub *entity.Subscription, asOf time.Time) bool {
	if sub == nil {
		return false
	}
	return sub.Status == entity.SubscriptionStatusActive && RemainingDays(sub, asOf) > 0
}

// EffectiveStatus is the stored status, except that active or paused rows
// whose EndDate has passed read as expired.
func EffectiveStatus(sub *entity.Subscription, asOf time.Time) entity.SubscriptionStatus {
	switch sub.Status {
	case entity.SubscriptionStatusActive, entity.SubscriptionStatusPaused:
		if HasEnded(sub, asOf) {
			return entity.SubscriptionStatusExpired
		}
	}
	return sub.Status
}

func rank(s entity.SubscriptionStatus) int {
	switch s {
	case entity.SubscriptionStatusActive:
		return 0
	case entity.SubscriptionStatusPaused:
		return 1
	case entity.SubscriptionStatusExpired:
		return 2
	case entity.SubscriptionStatusCancelled:
		return 3
	default:
		return 4
	}
}

// MostRelevant picks active > paused > expired > cancelled by effective status,
// newest CreatedAt first on ties. Returns nil for an empty slice.
func MostRelevant(subs []*entity.Subscription, asOf time.Time) *entity.Subscription {
	var best *entity.Subscription
	bestRank := math.MaxInt
	for _, s := range subs {
		if s == nil {
			continue
		}
		r := rank(EffectiveStatus(s, asOf))
		if best == nil || r < bestRank || (r == bestRank && s.CreatedAt.After(best.CreatedAt)) {
			best = s
			bestRank = r
		}
	}
	return best
}

type View struct {
	Status          entity.SubscriptionStatus
	StoredStatus    entity.SubscriptionStatus
	IsActive        bool
	IsExpired       bool
	RemainingDays   int
	TotalPausedDays int
	AsOf            time.Time
}

// StatusView bundles the derived values reported to clients.
func StatusView(sub *entity.Subscription, asOf time.Time) View {
	effective := EffectiveStatus(sub, asOf)
	return View{
		Status:          effective,
		StoredStatus:    sub.Status,
		IsActive:        IsActive(sub, asOf),
		IsExpired:       effective == entity.SubscriptionStatusExpired,
		RemainingDays:   RemainingDays(sub, asOf),
		TotalPausedDays: sub.TotalPausedDays,
		AsOf:            asOf,
	}
}
