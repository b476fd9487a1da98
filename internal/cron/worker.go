package cron

import (
	"context"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/bher20/tankmanager/internal/alerting"
	"github.com/bher20/tankmanager/internal/amerigas"
	"github.com/bher20/tankmanager/internal/config"
	"github.com/bher20/tankmanager/internal/metrics"
	"github.com/bher20/tankmanager/internal/notification"
	"github.com/bher20/tankmanager/internal/propane"
	"github.com/bher20/tankmanager/internal/storage"
	"github.com/robfig/cron/v3"
)

const (
	jobName    = "refresh_account"
	lockKey    = int64(42)
	settingKey = "refresh_interval_seconds"
)

// Run starts the refresh worker: a control loop that periodically scrapes
// the portal and runs the readings pipeline. With a postgrespool backend a
// PostgreSQL advisory lock keeps one worker per job across replicas; other
// backends are assumed single-instance.
func Run(ctx context.Context, cfg config.Config) error {
	if cfg.Username == "" || cfg.Password == "" {
		return fmt.Errorf("cron: TANKMANAGER_USERNAME and TANKMANAGER_PASSWORD are required")
	}

	st, err := storage.Open(ctx, storage.Config{
		Driver:      cfg.StorageDriver,
		DSN:         cfg.StorageDSN,
		AutoMigrate: os.Getenv("TANKMANAGER_AUTO_MIGRATE") == "true",
	})
	if err != nil {
		return fmt.Errorf("cron: open storage: %w", err)
	}
	defer st.Close()

	locker, _ := st.(storage.Locker)

	client := amerigas.NewClient(cfg.Username, cfg.Password,
		amerigas.WithTimeout(cfg.FetchTimeout))
	svc := propane.NewServiceWithStorage(client, st, cfg.AccountKey, cfg.Location())
	svc.SetTankSizeOverride(cfg.TankSizeGallons)
	if err := svc.RestoreState(ctx); err != nil {
		return fmt.Errorf("cron: restore state: %w", err)
	}

	alerter := alerting.NewAlerter(alerting.DefaultAlertConfig())
	notifier := notification.NewService(st)

	// Interval starts from config, a DB setting overrides it at runtime.
	// The setting can be integer seconds or a cron expression.
	intervalSetting := strconv.Itoa(int(cfg.ScanInterval.Seconds()))
	if val, err := st.GetSetting(ctx, settingKey); err == nil && val != "" {
		intervalSetting = val
	}

	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()

	getNextRun := func(setting string, lastRun time.Time) time.Time {
		if v, err := strconv.Atoi(setting); err == nil && v > 0 {
			return lastRun.Add(time.Duration(v) * time.Second)
		}
		if sched, err := cron.ParseStandard(setting); err == nil {
			return sched.Next(lastRun)
		}
		return lastRun.Add(cfg.ScanInterval)
	}

	// Run immediately on start, then schedule.
	nextRun := time.Now()
	consecutiveFailures := 0
	lowTankNotified := false

	log.Printf("cron: worker starting, account=%s interval=%q driver=%s",
		cfg.AccountKey, intervalSetting, cfg.StorageDriver)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if val, err := st.GetSetting(ctx, settingKey); err == nil && val != "" {
				if val != intervalSetting {
					log.Printf("cron: interval updated from %q to %q", intervalSetting, val)
					intervalSetting = val
					nextRun = getNextRun(intervalSetting, time.Now())
				}
			}

			if time.Now().Before(nextRun) {
				continue
			}

			started := time.Now()

			if locker != nil {
				ok, err := locker.AcquireAdvisoryLock(ctx, lockKey)
				if err != nil {
					log.Printf("cron: acquire advisory lock failed: %v", err)
					metrics.UpdateJobMetrics(jobName, started, err)
					nextRun = getNextRun(intervalSetting, time.Now())
					continue
				}
				if !ok {
					log.Printf("cron: advisory lock held by another worker, skipping run")
					nextRun = getNextRun(intervalSetting, time.Now())
					continue
				}
			}

			var readings *propane.Readings
			var runErr error
			func() {
				if locker != nil {
					defer func() {
						if _, err := locker.ReleaseAdvisoryLock(ctx, lockKey); err != nil {
							log.Printf("cron: release advisory lock failed: %v", err)
						}
					}()
				}
				readings, runErr = svc.Refresh(ctx)
			}()

			metrics.UpdateJobMetrics(jobName, started, runErr)
			if ps, ok := st.(*storage.PostgresPoolStorage); ok {
				stat := ps.Stat()
				metrics.UpdateDBPoolMetrics(cfg.StorageDriver,
					float64(stat.TotalConns()), float64(stat.IdleConns()),
					float64(stat.AcquiredConns()), uint64(stat.AcquireCount()))
			}
			dur := time.Since(started)
			errMsg := ""
			if runErr != nil {
				errMsg = runErr.Error()
			}
			if err := st.UpdateScheduledJob(ctx, jobName, started, dur, runErr == nil, errMsg); err != nil {
				log.Printf("cron: update scheduled_jobs failed: %v", err)
			}

			if runErr != nil {
				consecutiveFailures++
				log.Printf("cron: job %s failed: %v (duration=%s, failures=%d)",
					jobName, runErr, dur, consecutiveFailures)
				if err := alerter.SendRefreshAlert(ctx, alerting.RefreshAlert{
					Account:      cfg.AccountKey,
					Error:        runErr.Error(),
					FailureCount: consecutiveFailures,
					Duration:     dur,
					Timestamp:    time.Now(),
				}); err != nil {
					log.Printf("cron: send refresh alert failed: %v", err)
				}
			} else {
				consecutiveFailures = 0
				log.Printf("cron: job %s completed successfully (duration=%s)", jobName, dur)
				lowTankNotified = checkLowTank(ctx, cfg, readings, alerter, notifier, lowTankNotified)
			}

			nextRun = getNextRun(intervalSetting, time.Now())
		}
	}
}

// checkLowTank fires the low-tank alert and email once per excursion below
// the threshold; the notification re-arms when the level recovers.
func checkLowTank(ctx context.Context, cfg config.Config, r *propane.Readings,
	alerter *alerting.Alerter, notifier *notification.Service, alreadyNotified bool) bool {

	if cfg.LowTankThresholdPct <= 0 || r == nil {
		return alreadyNotified
	}

	level := r.Snapshot.TankLevelPct
	if level > cfg.LowTankThresholdPct {
		return false
	}
	if alreadyNotified {
		return true
	}

	gallons := 0.0
	if r.Derived.GallonsRemaining != nil {
		gallons = *r.Derived.GallonsRemaining
	}
	days := 0
	if r.Derived.DaysUntilEmpty != nil {
		days = *r.Derived.DaysUntilEmpty
	}

	if err := alerter.SendLowTankAlert(ctx, alerting.LowTankAlert{
		Account:          r.Account,
		TankLevelPct:     level,
		ThresholdPct:     cfg.LowTankThresholdPct,
		GallonsRemaining: gallons,
		DaysUntilEmpty:   days,
		Timestamp:        time.Now(),
	}); err != nil {
		log.Printf("cron: send low tank alert failed: %v", err)
	}
	if err := notifier.NotifyLowTank(ctx, r.Account, level, gallons, days); err != nil {
		log.Printf("cron: low tank email failed: %v", err)
	}
	return true
}
