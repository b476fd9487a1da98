package propane

import (
	"log"
	"time"
)

// DeliveryTracker watches the last-delivery date across refreshes and
// captures the pre-delivery tank level when a new delivery appears.
//
// The capture is simple arithmetic: when the portal updates after a delivery
// it reports the post-delivery level, so pre-delivery = current - delivered.
type DeliveryTracker struct {
	baseline *Baseline
	marker   *time.Time // last delivery date seen; nil until first observation
}

// TrackerState is the tracker's full persistable state.
type TrackerState struct {
	PreDeliveryLevelGallons float64    `json:"pre_delivery_level_gallons"`
	LastKnownDeliveryDate   *time.Time `json:"last_known_delivery_date,omitempty"`
}

func NewDeliveryTracker(baseline *Baseline) *DeliveryTracker {
	return &DeliveryTracker{baseline: baseline}
}

// Observe processes one refresh. The first observed delivery date only seeds
// the marker, so a restart never fakes a delivery event. A subsequent,
// different, non-null date is a genuine delivery: the pre-delivery level is
// computed from the current snapshot and published to the shared baseline.
// It reports whether a capture happened.
func (t *DeliveryTracker) Observe(s AccountSnapshot) bool {
	date := s.LastDeliveryDate

	captured := false
	if date != nil && t.marker != nil && !date.Equal(*t.marker) {
		log.Printf("propane: new delivery detected, date changed from %s to %s",
			t.marker.Format(time.RFC3339), date.Format(time.RFC3339))
		t.capture(s)
		captured = true
	}

	if date != nil {
		d := *date
		t.marker = &d
	}
	return captured
}

func (t *DeliveryTracker) capture(s AccountSnapshot) {
	pre := currentLevelGallons(s) - s.LastDeliveryGallons
	if pre < 0 {
		pre = 0
	}
	pre = round2(pre)
	t.baseline.store(pre)
	log.Printf("propane: captured pre-delivery level %.2f gal (current %.2f gal, delivered %.2f gal)",
		pre, currentLevelGallons(s), s.LastDeliveryGallons)
}

// State exports the tracker for persistence.
func (t *DeliveryTracker) State() TrackerState {
	st := TrackerState{PreDeliveryLevelGallons: t.baseline.Gallons()}
	if t.marker != nil {
		d := *t.marker
		st.LastKnownDeliveryDate = &d
	}
	return st
}

// Restore repopulates the tracker from persisted state. It must run before
// the first refresh is processed.
func (t *DeliveryTracker) Restore(st TrackerState) {
	if st.PreDeliveryLevelGallons > 0 {
		t.baseline.store(st.PreDeliveryLevelGallons)
	}
	t.marker = nil
	if st.LastKnownDeliveryDate != nil {
		d := *st.LastKnownDeliveryDate
		t.marker = &d
	}
}
