package propane

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/bher20/tankmanager/internal/metrics"
	"github.com/bher20/tankmanager/internal/storage"
)

// Fetcher retrieves the raw account summary object from the supplier portal.
type Fetcher interface {
	FetchAccountData(ctx context.Context) (map[string]any, error)
}

// LifetimeReadings is the accumulator's public view in a Readings result.
type LifetimeReadings struct {
	TotalGallons             float64    `json:"total_gallons"`
	EnergyCubicFeet          float64    `json:"energy_cubic_feet"`
	TotalTriggers            int64      `json:"total_triggers"`
	IgnoredTriggers          int64      `json:"ignored_triggers"`
	LargestSingleConsumption float64    `json:"largest_single_consumption"`
	LastConsumptionEvent     *time.Time `json:"last_consumption_event,omitempty"`
}

// Readings is one complete refresh result: the normalized snapshot plus
// everything derived from it.
type Readings struct {
	Account         string           `json:"account"`
	FetchedAt       time.Time        `json:"fetched_at"`
	Snapshot        AccountSnapshot  `json:"snapshot"`
	Derived         Derived          `json:"derived"`
	BaselineGallons float64          `json:"baseline_gallons"`
	Lifetime        LifetimeReadings `json:"lifetime"`
}

// Service runs the refresh pipeline for one account: fetch, normalize, track
// deliveries, derive readings, accumulate lifetime consumption, persist.
// One refresh is in flight at a time; a failed fetch leaves all state and the
// last readings untouched.
type Service struct {
	mu      sync.Mutex
	fetcher Fetcher
	store   storage.Storage // nil means no persistence
	account string
	loc     *time.Location

	baseline *Baseline
	tracker  *DeliveryTracker
	lifetime *LifetimeAccumulator

	// tankSize overrides the portal-reported size when positive. Some
	// portals report 0 for owned tanks.
	tankSize int

	last *Readings
}

// NewService builds a Service without persistence. loc is the zone for
// date-only portal values; nil means the system local zone.
func NewService(fetcher Fetcher, account string, loc *time.Location) *Service {
	b := NewBaseline()
	return &Service{
		fetcher:  fetcher,
		account:  account,
		loc:      loc,
		baseline: b,
		tracker:  NewDeliveryTracker(b),
		lifetime: NewLifetimeAccumulator(),
	}
}

// NewServiceWithStorage builds a Service that persists tracker and lifetime
// state plus the latest snapshot after each refresh.
func NewServiceWithStorage(fetcher Fetcher, store storage.Storage, account string, loc *time.Location) *Service {
	s := NewService(fetcher, account, loc)
	s.store = store
	return s
}

// Account returns the account key this service refreshes.
func (s *Service) Account() string { return s.account }

// SetTankSizeOverride forces the tank size in gallons for all subsequent
// refreshes. Zero or negative restores the portal-reported value.
func (s *Service) SetTankSizeOverride(gallons int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tankSize = gallons
}

// RestoreState loads persisted tracker and lifetime state. It must run
// before the first Refresh so a restart neither fakes a delivery nor resets
// the lifetime total.
func (s *Service) RestoreState(ctx context.Context) error {
	if s.store == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	ts, err := s.store.GetTrackerState(ctx, s.account)
	if err != nil {
		return fmt.Errorf("restore tracker state: %w", err)
	}
	if ts != nil {
		s.tracker.Restore(TrackerState{
			PreDeliveryLevelGallons: ts.PreDeliveryLevelGallons,
			LastKnownDeliveryDate:   ts.LastKnownDeliveryDate,
		})
	}

	ls, err := s.store.GetLifetimeState(ctx, s.account)
	if err != nil {
		return fmt.Errorf("restore lifetime state: %w", err)
	}
	if ls != nil {
		s.lifetime.Restore(LifetimeState{
			LifetimeTotalGallons:     ls.LifetimeTotalGallons,
			PreviousReadingGallons:   ls.PreviousReadingGallons,
			LastConsumptionEvent:     ls.LastConsumptionEvent,
			TotalTriggers:            ls.TotalTriggers,
			IgnoredTriggers:          ls.IgnoredTriggers,
			LargestSingleConsumption: ls.LargestSingleConsumption,
		})
	}
	return nil
}

// Refresh runs one full cycle and returns the new readings.
func (s *Service) Refresh(ctx context.Context) (*Readings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	started := time.Now()
	raw, err := s.fetcher.FetchAccountData(ctx)
	if err != nil {
		metrics.ObserveRefresh(s.account, time.Since(started), false)
		return nil, fmt.Errorf("fetch account data: %w", err)
	}

	snap := Normalize(raw, s.loc)
	if s.tankSize > 0 {
		snap.TankSizeGallons = s.tankSize
	}
	if s.tracker.Observe(snap) {
		metrics.IncDeliveryCapture(s.account)
	}

	now := time.Now()
	derived := Compute(snap, s.baseline.Gallons(), now)
	s.lifetime.Observe(derived.GallonsRemaining, now)

	ls := s.lifetime.State()
	r := &Readings{
		Account:         s.account,
		FetchedAt:       now,
		Snapshot:        snap,
		Derived:         derived,
		BaselineGallons: s.baseline.Gallons(),
		Lifetime: LifetimeReadings{
			TotalGallons:             s.lifetime.TotalGallons(),
			EnergyCubicFeet:          s.lifetime.EnergyCubicFeet(),
			TotalTriggers:            ls.TotalTriggers,
			IgnoredTriggers:          ls.IgnoredTriggers,
			LargestSingleConsumption: round2(ls.LargestSingleConsumption),
			LastConsumptionEvent:     ls.LastConsumptionEvent,
		},
	}
	s.last = r

	s.persist(ctx, r)
	s.publishGauges(r)
	metrics.ObserveRefresh(s.account, time.Since(started), true)
	return r, nil
}

// persist writes the snapshot and both state records. Persistence failures
// are logged, not returned: readings stay usable even when the database is
// briefly unavailable.
func (s *Service) persist(ctx context.Context, r *Readings) {
	if s.store == nil {
		return
	}

	payload, err := json.Marshal(r.Snapshot)
	if err != nil {
		log.Printf("propane: marshal snapshot: %v", err)
	} else if err := s.store.SaveSnapshot(ctx, storage.SnapshotRecord{
		Account:   s.account,
		Payload:   payload,
		FetchedAt: r.FetchedAt,
	}); err != nil {
		log.Printf("propane: save snapshot: %v", err)
	}

	ts := s.tracker.State()
	if err := s.store.SaveTrackerState(ctx, storage.TrackerStateRecord{
		Account:                 s.account,
		PreDeliveryLevelGallons: ts.PreDeliveryLevelGallons,
		LastKnownDeliveryDate:   ts.LastKnownDeliveryDate,
	}); err != nil {
		log.Printf("propane: save tracker state: %v", err)
	}

	ls := s.lifetime.State()
	if err := s.store.SaveLifetimeState(ctx, storage.LifetimeStateRecord{
		Account:                  s.account,
		LifetimeTotalGallons:     ls.LifetimeTotalGallons,
		PreviousReadingGallons:   ls.PreviousReadingGallons,
		LastConsumptionEvent:     ls.LastConsumptionEvent,
		TotalTriggers:            ls.TotalTriggers,
		IgnoredTriggers:          ls.IgnoredTriggers,
		LargestSingleConsumption: ls.LargestSingleConsumption,
	}); err != nil {
		log.Printf("propane: save lifetime state: %v", err)
	}
}

func (s *Service) publishGauges(r *Readings) {
	metrics.SetTankLevel(s.account, float64(r.Snapshot.TankLevelPct))
	if r.Derived.GallonsRemaining != nil {
		metrics.SetGallonsRemaining(s.account, *r.Derived.GallonsRemaining)
	}
	if r.Derived.DaysUntilEmpty != nil {
		metrics.SetDaysUntilEmpty(s.account, float64(*r.Derived.DaysUntilEmpty))
	}
	metrics.SetLifetimeTotal(s.account, r.Lifetime.TotalGallons)
}

// Readings returns the result of the most recent successful refresh, nil
// before the first one.
func (s *Service) Readings() *Readings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

// BaselineGallons returns the current pre-delivery baseline.
func (s *Service) BaselineGallons() float64 {
	return s.baseline.Gallons()
}

// SetBaseline applies a manual baseline override, persists it, and recomputes
// the cached readings so callers see consistent derived values immediately.
func (s *Service) SetBaseline(ctx context.Context, gallons float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.baseline.Set(gallons); err != nil {
		return err
	}

	if s.last != nil {
		s.last.BaselineGallons = s.baseline.Gallons()
		s.last.Derived = Compute(s.last.Snapshot, s.baseline.Gallons(), time.Now())
	}

	if s.store != nil {
		ts := s.tracker.State()
		if err := s.store.SaveTrackerState(ctx, storage.TrackerStateRecord{
			Account:                 s.account,
			PreDeliveryLevelGallons: ts.PreDeliveryLevelGallons,
			LastKnownDeliveryDate:   ts.LastKnownDeliveryDate,
		}); err != nil {
			return fmt.Errorf("save tracker state: %w", err)
		}
	}
	return nil
}
