package propane

import (
	"fmt"
	"sync"
)

// MaxBaselineGallons bounds manual overrides of the pre-delivery level.
const MaxBaselineGallons = 1000

// Baseline is the shared pre-delivery tank level for one account: the
// gallons in the tank immediately before the most recent delivery. Zero means
// "not yet captured". The metrics engine and the delivery tracker hold the
// same *Baseline; there is no name-based lookup between them.
type Baseline struct {
	mu      sync.RWMutex
	gallons float64
}

func NewBaseline() *Baseline { return &Baseline{} }

// Gallons returns the current value.
func (b *Baseline) Gallons() float64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.gallons
}

// Set applies a manual override, bounded to [0, MaxBaselineGallons]. The
// value takes effect immediately and is not reverted by the tracker until the
// next genuine delivery-date change.
func (b *Baseline) Set(gallons float64) error {
	if gallons < 0 || gallons > MaxBaselineGallons {
		return fmt.Errorf("baseline %v gal out of range [0, %d]", gallons, MaxBaselineGallons)
	}
	b.store(gallons)
	return nil
}

// store writes a tracker-captured or restored value, bypassing the manual
// override bounds.
func (b *Baseline) store(gallons float64) {
	b.mu.Lock()
	b.gallons = gallons
	b.mu.Unlock()
}
