package storage

import (
	"context"
	"time"
)

// Storage abstracts persistence for accounts, snapshots, and tracker state.
type Storage interface {
	// Accounts
	ListAccounts(ctx context.Context) ([]Account, error)
	GetAccount(ctx context.Context, key string) (*Account, error)
	UpsertAccount(ctx context.Context, a Account) error

	// Snapshots
	GetSnapshot(ctx context.Context, account string) (*SnapshotRecord, error)
	SaveSnapshot(ctx context.Context, rec SnapshotRecord) error

	// Delivery tracker and lifetime accumulator state. Restoration reads
	// these before the first refresh; every state change writes them back.
	GetTrackerState(ctx context.Context, account string) (*TrackerStateRecord, error)
	SaveTrackerState(ctx context.Context, rec TrackerStateRecord) error
	GetLifetimeState(ctx context.Context, account string) (*LifetimeStateRecord, error)
	SaveLifetimeState(ctx context.Context, rec LifetimeStateRecord) error

	// Settings
	GetSetting(ctx context.Context, key string) (string, error)
	SetSetting(ctx context.Context, key, value string) error

	// Scheduled jobs
	UpdateScheduledJob(ctx context.Context, name string, started time.Time, dur time.Duration, success bool, errMsg string) error

	// Users
	CreateUser(ctx context.Context, user User) error
	GetUser(ctx context.Context, id string) (*User, error)
	GetUserByUsername(ctx context.Context, username string) (*User, error)
	UpdateUser(ctx context.Context, user User) error
	DeleteUser(ctx context.Context, id string) error
	ListUsers(ctx context.Context) ([]User, error)

	// Tokens
	CreateToken(ctx context.Context, token Token) error
	GetToken(ctx context.Context, id string) (*Token, error)
	GetTokenByHash(ctx context.Context, hash string) (*Token, error)
	ListTokens(ctx context.Context, userID string) ([]Token, error)
	DeleteToken(ctx context.Context, id string) error
	UpdateTokenLastUsed(ctx context.Context, id string) error

	// Casbin rules
	LoadCasbinRules(ctx context.Context) ([]CasbinRule, error)
	AddCasbinRule(ctx context.Context, rule CasbinRule) error
	RemoveCasbinRule(ctx context.Context, rule CasbinRule) error

	// Email config
	GetEmailConfig(ctx context.Context) (*EmailConfig, error)
	SaveEmailConfig(ctx context.Context, config EmailConfig) error

	Ping(ctx context.Context) error

	// Close releases any resources (no-op for in-memory).
	Close() error
}

// Locker is implemented by backends that support cross-replica advisory
// locks; the cron worker uses it to keep one refresh in flight globally.
type Locker interface {
	AcquireAdvisoryLock(ctx context.Context, key int64) (bool, error)
	ReleaseAdvisoryLock(ctx context.Context, key int64) (bool, error)
}
