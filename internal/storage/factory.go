package storage

import (
	"context"
	"fmt"
	"log"
)

// Config controls how the storage backend is opened.
type Config struct {
	Driver   string
	DSN      string
	Accounts []Account
	// AutoMigrate runs GORM auto-migration on open. Deployments that manage
	// schema with the migrate command leave this off.
	AutoMigrate bool
}

// Open constructs a Storage based on the given configuration.
func Open(ctx context.Context, cfg Config) (Storage, error) {
	drv := cfg.Driver
	if drv == "" {
		drv = "memory"
	}
	switch drv {
	case "memory":
		log.Printf("storage: using in-memory backend")
		if len(cfg.Accounts) > 0 {
			return NewMemoryWithAccounts(cfg.Accounts), nil
		}
		return NewMemory(), nil

	case "sqlite", "postgres":
		log.Printf("storage: using gorm driver=%s", drv)
		st, err := NewGormStorage(drv, cfg.DSN)
		if err != nil {
			return nil, err
		}
		if cfg.AutoMigrate {
			if err := st.Migrate(ctx); err != nil {
				st.Close()
				return nil, fmt.Errorf("storage migrate: %w", err)
			}
		}
		return seedAccounts(ctx, st, cfg.Accounts)

	case "postgrespool":
		log.Printf("storage: using postgres with pgx pool")
		st, err := OpenPostgresPool(ctx, cfg.DSN)
		if err != nil {
			return nil, err
		}
		if cfg.AutoMigrate {
			if err := st.Migrate(ctx); err != nil {
				st.Close()
				return nil, fmt.Errorf("storage migrate: %w", err)
			}
		}
		return seedAccounts(ctx, st, cfg.Accounts)

	default:
		return nil, fmt.Errorf("unsupported storage driver %q", drv)
	}
}

// seedAccounts inserts configured accounts that are not already present so a
// fresh database starts with something to refresh.
func seedAccounts(ctx context.Context, st Storage, accounts []Account) (Storage, error) {
	for _, a := range accounts {
		existing, err := st.GetAccount(ctx, a.Key)
		if err != nil {
			st.Close()
			return nil, fmt.Errorf("storage seed: %w", err)
		}
		if existing != nil {
			continue
		}
		if err := st.UpsertAccount(ctx, a); err != nil {
			st.Close()
			return nil, fmt.Errorf("storage seed: %w", err)
		}
	}
	return st, nil
}
