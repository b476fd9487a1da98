package storage

import "time"

// Account holds metadata about a monitored propane account.
type Account struct {
	Key          string `json:"key" gorm:"primaryKey;column:key"`
	Name         string `json:"name" gorm:"column:name"`
	LoginURL     string `json:"loginUrl" gorm:"column:login_url"`
	DashboardURL string `json:"dashboardUrl" gorm:"column:dashboard_url"`
	Notes        string `json:"notes,omitempty" gorm:"column:notes"`
}

// SnapshotRecord stores a normalized account snapshot payload for an account.
type SnapshotRecord struct {
	ID        uint      `json:"-" gorm:"primaryKey;column:id"`
	Account   string    `json:"account" gorm:"column:account"`
	Payload   []byte    `json:"payload" gorm:"column:payload"`
	FetchedAt time.Time `json:"fetched_at" gorm:"column:fetched_at"`
}

// TrackerStateRecord persists the delivery tracker: the captured pre-delivery
// level and the marker used to detect new deliveries.
type TrackerStateRecord struct {
	Account                 string     `json:"account" gorm:"primaryKey;column:account"`
	PreDeliveryLevelGallons float64    `json:"pre_delivery_level_gallons" gorm:"column:pre_delivery_level_gallons"`
	LastKnownDeliveryDate   *time.Time `json:"last_known_delivery_date,omitempty" gorm:"column:last_known_delivery_date"`
	UpdatedAt               time.Time  `json:"updated_at" gorm:"column:updated_at"`
}

// LifetimeStateRecord persists the lifetime consumption accumulator.
type LifetimeStateRecord struct {
	Account                  string     `json:"account" gorm:"primaryKey;column:account"`
	LifetimeTotalGallons     float64    `json:"lifetime_total_gallons" gorm:"column:lifetime_total_gallons"`
	PreviousReadingGallons   *float64   `json:"previous_reading_gallons,omitempty" gorm:"column:previous_reading_gallons"`
	LastConsumptionEvent     *time.Time `json:"last_consumption_event,omitempty" gorm:"column:last_consumption_event"`
	TotalTriggers            int64      `json:"total_triggers" gorm:"column:total_triggers"`
	IgnoredTriggers          int64      `json:"ignored_triggers" gorm:"column:ignored_triggers"`
	LargestSingleConsumption float64    `json:"largest_single_consumption" gorm:"column:largest_single_consumption"`
	UpdatedAt                time.Time  `json:"updated_at" gorm:"column:updated_at"`
}

// Setting is a small key/value row for runtime-tunable configuration, e.g.
// the refresh interval consulted by the cron worker.
type Setting struct {
	Key       string    `gorm:"primaryKey;column:key"`
	Value     string    `gorm:"column:value"`
	UpdatedAt time.Time `gorm:"column:updated_at"`
}

// ScheduledJob records the outcome of the most recent run of a background job.
type ScheduledJob struct {
	Name           string    `gorm:"primaryKey;column:name"`
	LastRunAt      time.Time `gorm:"column:last_run_at"`
	LastDurationMs int64     `gorm:"column:last_duration_ms"`
	LastSuccess    int       `gorm:"column:last_success"`
	LastError      string    `gorm:"column:last_error"`
}

// User represents a registered user in the system.
type User struct {
	ID           string    `json:"id" gorm:"primaryKey;column:id"`
	Username     string    `json:"username" gorm:"unique;column:username"`
	Email        string    `json:"email" gorm:"column:email"`
	PasswordHash string    `json:"-" gorm:"column:password_hash"`
	Role         string    `json:"role" gorm:"column:role"`
	CreatedAt    time.Time `json:"created_at" gorm:"column:created_at"`
	UpdatedAt    time.Time `json:"updated_at" gorm:"column:updated_at"`
}

// Token represents an API access token.
type Token struct {
	ID         string     `json:"id" gorm:"primaryKey;column:id"`
	UserID     string     `json:"user_id" gorm:"column:user_id"`
	Name       string     `json:"name" gorm:"column:name"`
	TokenHash  string     `json:"-" gorm:"column:token_hash"`
	Role       string     `json:"role" gorm:"column:role"`
	CreatedAt  time.Time  `json:"created_at" gorm:"column:created_at"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty" gorm:"column:expires_at"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty" gorm:"column:last_used_at"`
}

// CasbinRule represents a policy rule for RBAC.
type CasbinRule struct {
	ID    uint   `gorm:"primaryKey"`
	PType string `json:"ptype" gorm:"column:ptype"`
	V0    string `json:"v0" gorm:"column:v0"`
	V1    string `json:"v1" gorm:"column:v1"`
	V2    string `json:"v2" gorm:"column:v2"`
	V3    string `json:"v3" gorm:"column:v3"`
	V4    string `json:"v4" gorm:"column:v4"`
	V5    string `json:"v5" gorm:"column:v5"`
}

// EmailConfig holds configuration for email notifications.
type EmailConfig struct {
	ID          string    `json:"id" gorm:"primaryKey;column:id"`
	Provider    string    `json:"provider" gorm:"column:provider"` // "smtp", "sendgrid", "gmail", "resend"
	Host        string    `json:"host,omitempty" gorm:"column:host"`
	Port        int       `json:"port,omitempty" gorm:"column:port"`
	Username    string    `json:"username,omitempty" gorm:"column:username"`
	Password    string    `json:"password,omitempty" gorm:"column:password"`
	Encryption  string    `json:"encryption,omitempty" gorm:"column:encryption"` // "ssl", "tls", or "" for plain
	FromAddress string    `json:"from_address" gorm:"column:from_address"`
	FromName    string    `json:"from_name" gorm:"column:from_name"`
	APIKey      string    `json:"api_key,omitempty" gorm:"column:api_key"`
	Recipients  string    `json:"recipients,omitempty" gorm:"column:recipients"` // comma separated
	Enabled     bool      `json:"enabled" gorm:"column:enabled"`
	CreatedAt   time.Time `json:"created_at" gorm:"column:created_at"`
	UpdatedAt   time.Time `json:"updated_at" gorm:"column:updated_at"`
}
