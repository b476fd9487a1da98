package propane

import "time"

// LifetimeAccumulator turns the gallons-remaining reading into a cumulative
// consumption total across all tracked history. Drops at or below the noise
// threshold are counted but not accumulated; the previous reading is kept so
// repeated sub-threshold rounding jitter is recovered by the next real drop
// rather than lost. Rises (deliveries, thermal expansion) re-seed the
// previous reading without touching the total.
type LifetimeAccumulator struct {
	total           float64
	previous        *float64 // last observed gallons remaining; nil until seeded
	lastEvent       *time.Time
	totalTriggers   int64
	ignoredTriggers int64
	largest         float64
}

// LifetimeState is the accumulator's full persistable state.
type LifetimeState struct {
	LifetimeTotalGallons     float64    `json:"lifetime_total_gallons"`
	PreviousReadingGallons   *float64   `json:"previous_reading_gallons,omitempty"`
	LastConsumptionEvent     *time.Time `json:"last_consumption_event,omitempty"`
	TotalTriggers            int64      `json:"total_triggers"`
	IgnoredTriggers          int64      `json:"ignored_triggers"`
	LargestSingleConsumption float64    `json:"largest_single_consumption"`
}

func NewLifetimeAccumulator() *LifetimeAccumulator {
	return &LifetimeAccumulator{}
}

// Observe processes one refresh's gallons-remaining reading. An undefined
// reading changes nothing; the first defined reading only seeds the previous
// value.
func (a *LifetimeAccumulator) Observe(remaining *float64, now time.Time) {
	if remaining == nil {
		return
	}
	a.totalTriggers++

	if a.previous == nil {
		v := *remaining
		a.previous = &v
		return
	}

	diff := *a.previous - *remaining
	switch {
	case diff > NoiseThresholdGallons:
		a.total += diff
		v := *remaining
		a.previous = &v
		t := now
		a.lastEvent = &t
		if diff > a.largest {
			a.largest = diff
		}
	case diff > 0:
		// Sub-threshold drop: count it, keep the previous reading so the
		// gallons are recovered by the next qualifying drop.
		a.ignoredTriggers++
	default:
		// Level rose: delivery or thermal expansion, not consumption.
		v := *remaining
		a.previous = &v
	}
}

// TotalGallons is the lifetime consumption total.
func (a *LifetimeAccumulator) TotalGallons() float64 { return round2(a.total) }

// EnergyCubicFeet is the lifetime total expressed as cubic feet of vapor.
func (a *LifetimeAccumulator) EnergyCubicFeet() float64 {
	return round2(a.total * GallonsToCubicFeet)
}

// State exports the accumulator for persistence.
func (a *LifetimeAccumulator) State() LifetimeState {
	st := LifetimeState{
		LifetimeTotalGallons:     a.total,
		TotalTriggers:            a.totalTriggers,
		IgnoredTriggers:          a.ignoredTriggers,
		LargestSingleConsumption: a.largest,
	}
	if a.previous != nil {
		v := *a.previous
		st.PreviousReadingGallons = &v
	}
	if a.lastEvent != nil {
		t := *a.lastEvent
		st.LastConsumptionEvent = &t
	}
	return st
}

// Restore repopulates the accumulator from persisted state. It must run
// before the first refresh is processed. Missing or invalid fields fall back
// to zero values; a negative total is treated as corrupt and reset.
func (a *LifetimeAccumulator) Restore(st LifetimeState) {
	a.total = st.LifetimeTotalGallons
	if a.total < 0 {
		a.total = 0
	}
	a.previous = nil
	if st.PreviousReadingGallons != nil {
		v := *st.PreviousReadingGallons
		a.previous = &v
	}
	a.lastEvent = nil
	if st.LastConsumptionEvent != nil {
		t := *st.LastConsumptionEvent
		a.lastEvent = &t
	}
	a.totalTriggers = st.TotalTriggers
	a.ignoredTriggers = st.IgnoredTriggers
	a.largest = st.LargestSingleConsumption
}
