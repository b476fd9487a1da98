package propane

import (
	"math"
	"time"
)

// Conversion and policy constants for the derived readings.
const (
	// GallonsToCubicFeet converts liquid propane gallons to cubic feet of vapor.
	GallonsToCubicFeet = 36.3888

	// DefaultTankSizeGallons is assumed when the portal reports no usable size.
	DefaultTankSizeGallons = 500

	// DefaultFillFraction is the industry-standard safety fill limit. Tanks
	// are filled to 80%, not 100%, to leave room for thermal expansion.
	DefaultFillFraction = 0.80

	// NoiseThresholdGallons is the minimum drop between refreshes counted as
	// real consumption by the lifetime accumulator.
	NoiseThresholdGallons = 0.5

	// MaxDaysUntilEmpty caps the projection instead of reporting an unbounded
	// figure when the usage rate is practically zero.
	MaxDaysUntilEmpty = 9999

	// minDailyUsageGallons is the rate below which usage is treated as zero.
	minDailyUsageGallons = 0.001

	// smallDeliveryMaxGallons splits top-offs from near-empty refills when
	// estimating the pre-delivery level without a captured baseline.
	smallDeliveryMaxGallons = 50
)

// Starting-level resolution methods, reported alongside the usage readings.
const (
	MethodAutoCaptured          = "auto_captured"
	MethodSmallDeliveryEstimate = "small_delivery_estimate"
	MethodLargeDeliveryEstimate = "large_delivery_estimate"
	MethodAssumed80Percent      = "assumed_80_percent"
)

// Derived is the full set of calculated readings for one snapshot. Readings
// that cannot be computed from the available fields are nil, never an error.
type Derived struct {
	GallonsRemaining *float64 `json:"gallons_remaining"`

	StartingLevelGallons float64 `json:"starting_level_gallons"`
	StartingLevelMethod  string  `json:"starting_level_method"`

	GallonsUsedSinceDelivery   float64 `json:"gallons_used_since_delivery"`
	EnergyConsumptionCubicFeet float64 `json:"energy_consumption_cubic_feet"`

	DailyAverageUsage *float64 `json:"daily_average_usage"`
	DaysUntilEmpty    *int     `json:"days_until_empty"`

	CostPerGallon       *float64 `json:"cost_per_gallon"`
	CostPerCubicFoot    *float64 `json:"cost_per_cubic_foot"`
	CostSinceDelivery   *float64 `json:"cost_since_delivery"`
	EstimatedRefillCost *float64 `json:"estimated_refill_cost"`

	DaysSinceDelivery       *int `json:"days_since_delivery"`
	DaysRemainingDifference *int `json:"days_remaining_difference"`
}

// Compute derives every reading from the snapshot and the shared pre-delivery
// baseline. It is pure: identical inputs always yield identical results, and
// it must be re-run on every refresh and on any baseline change.
func Compute(s AccountSnapshot, baselineGallons float64, now time.Time) Derived {
	level, method := ResolveStartingLevel(s, baselineGallons)

	used := GallonsUsedSinceDelivery(s, baselineGallons)
	d := Derived{
		GallonsRemaining:           GallonsRemaining(s),
		StartingLevelGallons:       round2(level),
		StartingLevelMethod:        method,
		GallonsUsedSinceDelivery:   used,
		EnergyConsumptionCubicFeet: round2(used * GallonsToCubicFeet),
		DailyAverageUsage:          DailyAverageUsage(s, baselineGallons, now),
		CostPerGallon:              CostPerGallon(s),
		CostPerCubicFoot:           CostPerCubicFoot(s),
		CostSinceDelivery:          CostSinceDelivery(s, baselineGallons),
		EstimatedRefillCost:        EstimatedRefillCost(s),
		DaysSinceDelivery:          DaysSinceDelivery(s, now),
	}
	d.DaysUntilEmpty = daysUntilEmpty(d.GallonsRemaining, d.DailyAverageUsage)
	if d.DaysUntilEmpty != nil && d.DailyAverageUsage != nil && d.GallonsRemaining != nil {
		diff := *d.DaysUntilEmpty - s.DaysRemaining
		d.DaysRemainingDifference = &diff
	}
	return d
}

// clampPct bounds a reported tank percentage to [0,100] before any
// calculation touches it.
func clampPct(pct int) int {
	if pct < 0 {
		return 0
	}
	if pct > 100 {
		return 100
	}
	return pct
}

// effectiveTankSize falls back to the default when the portal reports a
// missing or non-positive size, so ratio math never divides by zero.
func effectiveTankSize(s AccountSnapshot) float64 {
	if s.TankSizeGallons > 0 {
		return float64(s.TankSizeGallons)
	}
	return DefaultTankSizeGallons
}

// currentLevelGallons is the unrounded gallons in the tank right now, using
// the effective tank size.
func currentLevelGallons(s AccountSnapshot) float64 {
	return effectiveTankSize(s) * float64(clampPct(s.TankLevelPct)) / 100
}

// GallonsRemaining converts the tank percentage to gallons. It is nil when
// the portal reports a non-positive tank size; every other reading falls back
// to the default size instead, so only this one degrades.
func GallonsRemaining(s AccountSnapshot) *float64 {
	if s.TankSizeGallons <= 0 {
		return nil
	}
	v := round2(float64(s.TankSizeGallons) * float64(clampPct(s.TankLevelPct)) / 100)
	return &v
}

// ResolveStartingLevel picks the tank level at the moment of the last
// delivery, preferring the captured baseline, then a delivery-size heuristic,
// then an assumed standard fill. The result is capped at tank capacity.
//
// Every usage- and cost-since-delivery reading consumes this one resolution;
// there is deliberately no per-reading copy of the formula.
func ResolveStartingLevel(s AccountSnapshot, baselineGallons float64) (float64, string) {
	size := effectiveTankSize(s)

	var level float64
	var method string
	switch {
	case baselineGallons > 0:
		level = baselineGallons + s.LastDeliveryGallons
		method = MethodAutoCaptured
	case s.LastDeliveryGallons > 0:
		// A small delivery is likely a top-off of a mostly full tank; a
		// large one is likely a refill from near empty.
		if s.LastDeliveryGallons < smallDeliveryMaxGallons {
			level = size*0.65 + s.LastDeliveryGallons
			method = MethodSmallDeliveryEstimate
		} else {
			level = size*0.20 + s.LastDeliveryGallons
			method = MethodLargeDeliveryEstimate
		}
	default:
		level = size * DefaultFillFraction
		method = MethodAssumed80Percent
	}

	if level > size {
		level = size
	}
	return level, method
}

// GallonsUsedSinceDelivery is the starting level minus the current level,
// floored at zero. The floor absorbs apparent negative usage from overfill
// or thermal expansion.
func GallonsUsedSinceDelivery(s AccountSnapshot, baselineGallons float64) float64 {
	level, _ := ResolveStartingLevel(s, baselineGallons)
	used := level - currentLevelGallons(s)
	if used < 0 {
		return 0
	}
	return round2(used)
}

// DailyAverageUsage is gallons used per day since the last delivery. It is
// nil when no delivery date exists or the delivery happened today; a same-day
// rate would be a division by zero or a misleadingly huge figure.
func DailyAverageUsage(s AccountSnapshot, baselineGallons float64, now time.Time) *float64 {
	days := DaysSinceDelivery(s, now)
	if days == nil || *days <= 0 {
		return nil
	}
	v := round2(GallonsUsedSinceDelivery(s, baselineGallons) / float64(*days))
	return &v
}

// DaysSinceDelivery is the whole days elapsed since the last delivery, nil
// when no delivery date is known.
func DaysSinceDelivery(s AccountSnapshot, now time.Time) *int {
	if s.LastDeliveryDate == nil {
		return nil
	}
	d := int(now.Sub(*s.LastDeliveryDate).Hours() / 24)
	return &d
}

// daysUntilEmpty projects the days left at the current usage rate: 0 when the
// tank is already empty, the MaxDaysUntilEmpty sentinel when the rate is
// practically zero, and nil when either input is unavailable.
func daysUntilEmpty(remaining, avgUsage *float64) *int {
	if remaining == nil || avgUsage == nil {
		return nil
	}
	var days int
	switch {
	case *remaining <= 0:
		days = 0
	case *avgUsage < minDailyUsageGallons:
		days = MaxDaysUntilEmpty
	default:
		d := *remaining / *avgUsage
		if d > MaxDaysUntilEmpty {
			days = MaxDaysUntilEmpty
		} else {
			days = int(math.Round(d))
		}
	}
	return &days
}

// CostPerGallon divides the last payment by the last delivery volume, nil
// when no delivery volume is known.
func CostPerGallon(s AccountSnapshot) *float64 {
	if s.LastDeliveryGallons <= 0 {
		return nil
	}
	v := round2(s.LastPaymentAmount / s.LastDeliveryGallons)
	return &v
}

// CostPerCubicFoot converts the per-gallon cost to vapor cubic feet.
func CostPerCubicFoot(s AccountSnapshot) *float64 {
	if s.LastDeliveryGallons <= 0 {
		return nil
	}
	v := round4(s.LastPaymentAmount / s.LastDeliveryGallons / GallonsToCubicFeet)
	return &v
}

// CostSinceDelivery prices the gallons used since the last delivery at the
// last delivery's per-gallon cost.
func CostSinceDelivery(s AccountSnapshot, baselineGallons float64) *float64 {
	cpg := CostPerGallon(s)
	if cpg == nil {
		return nil
	}
	v := round2(GallonsUsedSinceDelivery(s, baselineGallons) * *cpg)
	return &v
}

// EstimatedRefillCost prices topping the tank back up to the 80% safety fill
// limit at the last delivery's per-gallon cost.
func EstimatedRefillCost(s AccountSnapshot) *float64 {
	cpg := CostPerGallon(s)
	if cpg == nil {
		return nil
	}
	size := effectiveTankSize(s)
	needed := size*DefaultFillFraction - currentLevelGallons(s)
	if needed < 0 {
		needed = 0
	} else if needed > size {
		needed = size
	}
	v := round2(needed * *cpg)
	return &v
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }

func round4(v float64) float64 { return math.Round(v*10000) / 10000 }
