package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RefreshTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tankmanager_refresh_total",
			Help: "Total number of refresh cycles per account",
		},
		[]string{"account"},
	)

	RefreshFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tankmanager_refresh_failures_total",
			Help: "Total number of failed refresh cycles per account",
		},
		[]string{"account"},
	)

	RefreshDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tankmanager_refresh_duration_seconds",
			Help:    "Refresh cycle duration in seconds per account",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"account"},
	)

	TankLevelPercent = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "tankmanager_tank_level_percent",
			Help: "Current tank level percentage per account",
		},
		[]string{"account"},
	)

	GallonsRemaining = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "tankmanager_gallons_remaining",
			Help: "Estimated gallons remaining in the tank per account",
		},
		[]string{"account"},
	)

	DaysUntilEmpty = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "tankmanager_days_until_empty",
			Help: "Projected days until the tank is empty per account",
		},
		[]string{"account"},
	)

	LifetimeConsumptionGallons = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "tankmanager_lifetime_consumption_gallons",
			Help: "Cumulative lifetime propane consumption per account",
		},
		[]string{"account"},
	)

	DeliveryCapturesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tankmanager_delivery_captures_total",
			Help: "Total number of automatic pre-delivery baseline captures per account",
		},
		[]string{"account"},
	)
)

// ObserveRefresh records one refresh cycle's outcome and duration.
func ObserveRefresh(account string, dur time.Duration, success bool) {
	RefreshTotal.WithLabelValues(account).Inc()
	RefreshDurationSeconds.WithLabelValues(account).Observe(dur.Seconds())
	if !success {
		RefreshFailuresTotal.WithLabelValues(account).Inc()
	}
}

func SetTankLevel(account string, pct float64) {
	TankLevelPercent.WithLabelValues(account).Set(pct)
}

func SetGallonsRemaining(account string, gallons float64) {
	GallonsRemaining.WithLabelValues(account).Set(gallons)
}

func SetDaysUntilEmpty(account string, days float64) {
	DaysUntilEmpty.WithLabelValues(account).Set(days)
}

func SetLifetimeTotal(account string, gallons float64) {
	LifetimeConsumptionGallons.WithLabelValues(account).Set(gallons)
}

func IncDeliveryCapture(account string) {
	DeliveryCapturesTotal.WithLabelValues(account).Inc()
}

var (
	DBPoolTotalConns = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "tankmanager_db_pool_total_conns",
			Help: "Total number of connections in the DB pool per driver",
		},
		[]string{"driver"},
	)

	DBPoolIdleConns = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "tankmanager_db_pool_idle_conns",
			Help: "Idle connections in the DB pool per driver",
		},
		[]string{"driver"},
	)

	DBPoolAcquiredConns = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "tankmanager_db_pool_acquired_conns",
			Help: "Currently acquired (in-use) connections per driver",
		},
		[]string{"driver"},
	)

	DBPoolAcquiresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tankmanager_db_pool_acquires_total",
			Help: "Total number of connection acquires per driver",
		},
		[]string{"driver"},
	)
)

func UpdateDBPoolMetrics(driver string, total, idle, acquired float64, acquires uint64) {
	DBPoolTotalConns.WithLabelValues(driver).Set(total)
	DBPoolIdleConns.WithLabelValues(driver).Set(idle)
	DBPoolAcquiredConns.WithLabelValues(driver).Set(acquired)
	DBPoolAcquiresTotal.WithLabelValues(driver).Add(float64(acquires))
}

var (
	ScheduledJobLastRun = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "tankmanager_job_last_run_timestamp",
			Help: "Unix timestamp of the last completed run for a job",
		},
		[]string{"job"},
	)

	ScheduledJobLastDurationSeconds = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "tankmanager_job_last_duration_seconds",
			Help: "Duration of the last completed run for a job",
		},
		[]string{"job"},
	)

	ScheduledJobFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tankmanager_job_failures_total",
			Help: "Total number of failed executions per job",
		},
		[]string{"job"},
	)
)

func UpdateJobMetrics(job string, startedAt time.Time, err error) {
	dur := time.Since(startedAt).Seconds()
	ScheduledJobLastDurationSeconds.WithLabelValues(job).Set(dur)
	ScheduledJobLastRun.WithLabelValues(job).Set(float64(time.Now().Unix()))
	if err != nil {
		ScheduledJobFailuresTotal.WithLabelValues(job).Inc()
	}
}
