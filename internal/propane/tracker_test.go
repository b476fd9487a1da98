package propane

import (
	"testing"
	"time"
)

func snapWithDelivery(date time.Time, gallons float64, pct, size int) AccountSnapshot {
	return AccountSnapshot{
		TankLevelPct:        pct,
		TankSizeGallons:     size,
		LastDeliveryDate:    &date,
		LastDeliveryGallons: gallons,
	}
}

func TestTracker_FirstObservationOnlySeeds(t *testing.T) {
	b := NewBaseline()
	tr := NewDeliveryTracker(b)

	// First sight of a delivery date is history, not an event. Capturing
	// here would treat every process start as a fresh delivery.
	s := snapWithDelivery(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), 100, 80, 500)
	if tr.Observe(s) {
		t.Fatal("first observation captured a baseline")
	}
	if b.Gallons() != 0 {
		t.Fatalf("baseline = %v, want 0", b.Gallons())
	}

	// Same date again: still nothing.
	if tr.Observe(s) {
		t.Fatal("repeated date captured a baseline")
	}
}

func TestTracker_CapturesOnDateChange(t *testing.T) {
	b := NewBaseline()
	tr := NewDeliveryTracker(b)

	first := snapWithDelivery(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), 100, 40, 500)
	tr.Observe(first)

	// New delivery: portal now shows the post-delivery level of 60% (300
	// gal) after a 120 gal drop, so pre-delivery was 180 gal.
	second := snapWithDelivery(time.Date(2026, 4, 10, 0, 0, 0, 0, time.UTC), 120, 60, 500)
	if !tr.Observe(second) {
		t.Fatal("date change did not capture a baseline")
	}
	if b.Gallons() != 180.0 {
		t.Fatalf("baseline = %v, want 180.0", b.Gallons())
	}

	// The same date does not capture again.
	if tr.Observe(second) {
		t.Fatal("unchanged date captured again")
	}
}

func TestTracker_CaptureFloorsAtZero(t *testing.T) {
	b := NewBaseline()
	tr := NewDeliveryTracker(b)

	tr.Observe(snapWithDelivery(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), 100, 40, 500))

	// Delivered volume exceeds the current level reading. The arithmetic
	// would go negative; the capture floors at zero instead.
	odd := snapWithDelivery(time.Date(2026, 4, 10, 0, 0, 0, 0, time.UTC), 300, 20, 500)
	if !tr.Observe(odd) {
		t.Fatal("date change did not capture")
	}
	if b.Gallons() != 0 {
		t.Fatalf("baseline = %v, want 0", b.Gallons())
	}
}

func TestTracker_NilDateIsIgnored(t *testing.T) {
	b := NewBaseline()
	tr := NewDeliveryTracker(b)

	tr.Observe(snapWithDelivery(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), 100, 40, 500))

	// A refresh without a delivery date neither captures nor clears the
	// marker.
	if tr.Observe(AccountSnapshot{TankLevelPct: 40, TankSizeGallons: 500}) {
		t.Fatal("nil date captured a baseline")
	}

	// The marker survived, so the same old date is still not an event.
	if tr.Observe(snapWithDelivery(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), 100, 40, 500)) {
		t.Fatal("old date after nil gap captured a baseline")
	}
}

func TestTracker_ManualOverrideSurvivesUntilNextDelivery(t *testing.T) {
	b := NewBaseline()
	tr := NewDeliveryTracker(b)

	tr.Observe(snapWithDelivery(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), 100, 40, 500))

	if err := b.Set(75.5); err != nil {
		t.Fatalf("Set: %v", err)
	}

	// Refreshes with the same delivery date leave the override alone.
	tr.Observe(snapWithDelivery(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), 100, 38, 500))
	if b.Gallons() != 75.5 {
		t.Fatalf("baseline = %v, want 75.5", b.Gallons())
	}

	// A genuine new delivery replaces it.
	tr.Observe(snapWithDelivery(time.Date(2026, 4, 10, 0, 0, 0, 0, time.UTC), 120, 60, 500))
	if b.Gallons() != 180.0 {
		t.Fatalf("baseline = %v, want 180.0", b.Gallons())
	}
}

func TestBaseline_SetBounds(t *testing.T) {
	b := NewBaseline()
	if err := b.Set(-1); err == nil {
		t.Error("Set(-1) accepted")
	}
	if err := b.Set(MaxBaselineGallons + 1); err == nil {
		t.Error("Set above max accepted")
	}
	if err := b.Set(0); err != nil {
		t.Errorf("Set(0) rejected: %v", err)
	}
	if err := b.Set(MaxBaselineGallons); err != nil {
		t.Errorf("Set(max) rejected: %v", err)
	}
}

func TestTracker_StateRoundTrip(t *testing.T) {
	b := NewBaseline()
	tr := NewDeliveryTracker(b)

	tr.Observe(snapWithDelivery(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), 100, 40, 500))
	tr.Observe(snapWithDelivery(time.Date(2026, 4, 10, 0, 0, 0, 0, time.UTC), 120, 60, 500))

	st := tr.State()
	if st.PreDeliveryLevelGallons != 180.0 {
		t.Fatalf("state baseline = %v, want 180.0", st.PreDeliveryLevelGallons)
	}

	// A restored tracker treats the persisted marker as already seen.
	b2 := NewBaseline()
	tr2 := NewDeliveryTracker(b2)
	tr2.Restore(st)
	if b2.Gallons() != 180.0 {
		t.Fatalf("restored baseline = %v, want 180.0", b2.Gallons())
	}
	if tr2.Observe(snapWithDelivery(time.Date(2026, 4, 10, 0, 0, 0, 0, time.UTC), 120, 60, 500)) {
		t.Fatal("restored marker date captured again")
	}
	if !tr2.Observe(snapWithDelivery(time.Date(2026, 5, 20, 0, 0, 0, 0, time.UTC), 90, 55, 500)) {
		t.Fatal("new date after restore did not capture")
	}
}
