package config

import (
	"testing"
	"time"
)

func TestFromEnv_Defaults(t *testing.T) {
	t.Setenv("TANKMANAGER_USERNAME", "")
	t.Setenv("TANKMANAGER_SCAN_INTERVAL", "")
	t.Setenv("TANKMANAGER_STORAGE_DRIVER", "")

	cfg := FromEnv()
	if cfg.ScanInterval != 6*time.Hour {
		t.Errorf("ScanInterval = %v, want 6h", cfg.ScanInterval)
	}
	if cfg.FetchTimeout != 45*time.Second {
		t.Errorf("FetchTimeout = %v, want 45s", cfg.FetchTimeout)
	}
	if cfg.AccountKey != "default" {
		t.Errorf("AccountKey = %q, want default", cfg.AccountKey)
	}
	if cfg.StorageDriver != "memory" {
		t.Errorf("StorageDriver = %q, want memory", cfg.StorageDriver)
	}
	if cfg.LowTankThresholdPct != 20 {
		t.Errorf("LowTankThresholdPct = %d, want 20", cfg.LowTankThresholdPct)
	}
}

func TestFromEnv_Overrides(t *testing.T) {
	t.Setenv("TANKMANAGER_USERNAME", "user@example.org")
	t.Setenv("TANKMANAGER_SCAN_INTERVAL", "30m")
	t.Setenv("TANKMANAGER_LOW_TANK_THRESHOLD", "15")
	t.Setenv("TANKMANAGER_STORAGE_DRIVER", "sqlite")
	t.Setenv("TANKMANAGER_STORAGE_DSN", "tank.db")

	cfg := FromEnv()
	if cfg.Username != "user@example.org" {
		t.Errorf("Username = %q", cfg.Username)
	}
	if cfg.ScanInterval != 30*time.Minute {
		t.Errorf("ScanInterval = %v, want 30m", cfg.ScanInterval)
	}
	if cfg.LowTankThresholdPct != 15 {
		t.Errorf("LowTankThresholdPct = %d, want 15", cfg.LowTankThresholdPct)
	}
	if cfg.StorageDriver != "sqlite" || cfg.StorageDSN != "tank.db" {
		t.Errorf("storage = %q %q", cfg.StorageDriver, cfg.StorageDSN)
	}
}

func TestFromEnv_NumericInterval(t *testing.T) {
	t.Setenv("TANKMANAGER_SCAN_INTERVAL", "3600")
	cfg := FromEnv()
	if cfg.ScanInterval != time.Hour {
		t.Errorf("ScanInterval = %v, want 1h from bare seconds", cfg.ScanInterval)
	}
}

func TestLocation(t *testing.T) {
	cfg := Config{Timezone: "America/New_York"}
	if cfg.Location().String() != "America/New_York" {
		t.Errorf("Location = %v", cfg.Location())
	}

	cfg = Config{Timezone: "Not/AZone"}
	if cfg.Location() != time.Local {
		t.Errorf("invalid zone should fall back to local, got %v", cfg.Location())
	}

	cfg = Config{}
	if cfg.Location() != time.Local {
		t.Errorf("empty zone should fall back to local, got %v", cfg.Location())
	}
}
