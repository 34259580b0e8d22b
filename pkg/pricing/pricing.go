package pricing

import (
	"fmt"
	"sort"
)

const Currency = "INR"

// Duration codes accepted at checkout.
const (
	Duration6Days  = "6days"
	Duration15Days = "15days"
)

// Plan types (daily volume tier).
const (
	Plan500ml = "500ml"
	Plan1L    = "1L"
)

type duration struct {
	billedDays    int
	deliveredDays int // billed days plus free bonus days
}

// durations is a pricing contract shared with the storefront. Do not derive it.
var durations = map[string]duration{
	Duration6Days:  {billedDays: 6, deliveredDays: 7},
	Duration15Days: {billedDays: 15, deliveredDays: 17},
}

// dailyRates are per billed day, in minor units (paise).
var dailyRates = map[string]int64{
	Plan500ml: 5000,
	Plan1L:    9500,
}

// DurationDays returns the calendar days a duration code delivers.
func DurationDays(code string) (int, bool) {
	d, ok := durations[code]
	if !ok {
		return 0, false
	}
	return d.deliveredDays, true
}

// BilledDays returns the days a duration code charges for.
func BilledDays(code string) (int, bool) {
	d, ok := durations[code]
	if !ok {
		return 0, false
	}
	return d.billedDays, true
}

func IsValidPlan(planType string) bool {
	_, ok := dailyRates[planType]
	return ok
}

// ComputeAmount returns the price of planType for durationCode in minor units.
func ComputeAmount(planType, durationCode string) (int64, error) {
	rate, ok := dailyRates[planType]
	if !ok {
		return 0, fmt.Errorf("unknown plan type %q", planType)
	}
	d, ok := durations[durationCode]
	if !ok {
		return 0, fmt.Errorf("unknown duration code %q", durationCode)
	}
	return rate * int64(d.billedDays), nil
}

type Offer struct {
	PlanType      string
	DurationCode  string
	BilledDays    int
	DeliveredDays int
	Amount        int64
	Currency      string
}

// Catalog lists every plan and duration combination, ordered by plan then billed days.
func Catalog() []Offer {
	offers := make([]Offer, 0, len(dailyRates)*len(durations))
	for plan, rate := range dailyRates {
		for code, d := range durations {
			offers = append(offers, Offer{
				PlanType:      plan,
				DurationCode:  code,
				BilledDays:    d.billedDays,
				DeliveredDays: d.deliveredDays,
				Amount:        rate * int64(d.billedDays),
				Currency:      Currency,
			})
		}
	}
	sort.Slice(offers, func(i, j int) bool {
		if offers[i].PlanType != offers[j].PlanType {
			return offers[i].PlanType < offers[j].PlanType
		}
		return offers[i].BilledDays < offers[j].BilledDays
	})
	return offers
}
