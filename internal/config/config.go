package config

import (
	"log"
	"os"
	"strconv"
	"time"
)

// Config carries everything needed to talk to the portal and run the
// refresh loop. Credentials come from the environment only; they are never
// persisted.
type Config struct {
	// Portal credentials.
	Username string
	Password string

	// AccountKey names the monitored account in storage and metrics.
	AccountKey string

	// ScanInterval is the time between scheduled refreshes.
	ScanInterval time.Duration

	// FetchTimeout bounds one full portal scrape.
	FetchTimeout time.Duration

	// Timezone interprets the portal's date-only values.
	Timezone string

	// TankSizeGallons overrides the portal-reported tank size. Zero uses
	// the portal value.
	TankSizeGallons int

	// LowTankThresholdPct triggers alert and email notifications when the
	// tank level drops to or below it. Zero disables the check.
	LowTankThresholdPct int

	// Storage.
	StorageDriver string
	StorageDSN    string

	// AdminUsername and AdminPassword seed the first admin user when the
	// users table is empty, so a fresh deployment can authenticate.
	AdminUsername string
	AdminPassword string
}

// FromEnv builds a Config from environment variables, with sane defaults.
func FromEnv() Config {
	return Config{
		Username:            os.Getenv("TANKMANAGER_USERNAME"),
		Password:            os.Getenv("TANKMANAGER_PASSWORD"),
		AccountKey:          envOr("TANKMANAGER_ACCOUNT", "default"),
		ScanInterval:        envDuration("TANKMANAGER_SCAN_INTERVAL", 6*time.Hour),
		FetchTimeout:        envDuration("TANKMANAGER_FETCH_TIMEOUT", 45*time.Second),
		Timezone:            envOr("TANKMANAGER_TZ", ""),
		TankSizeGallons:     envInt("TANKMANAGER_TANK_SIZE", 0),
		LowTankThresholdPct: envInt("TANKMANAGER_LOW_TANK_THRESHOLD", 20),
		StorageDriver:       envOr("TANKMANAGER_STORAGE_DRIVER", "memory"),
		StorageDSN:          os.Getenv("TANKMANAGER_STORAGE_DSN"),
		AdminUsername:       envOr("TANKMANAGER_ADMIN_USERNAME", "admin"),
		AdminPassword:       os.Getenv("TANKMANAGER_ADMIN_PASSWORD"),
	}
}

// Location resolves the configured timezone, falling back to the system
// local zone on an empty or invalid name.
func (c Config) Location() *time.Location {
	if c.Timezone == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		log.Printf("config: invalid timezone %q, using local: %v", c.Timezone, err)
		return time.Local
	}
	return loc
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("config: invalid %s=%q, using %d", key, v, def)
		return def
	}
	return n
}

// envDuration accepts a Go duration string, or a bare number of seconds for
// compatibility with plain numeric settings.
func envDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Second
	}
	log.Printf("config: invalid %s=%q, using %s", key, v, def)
	return def
}
