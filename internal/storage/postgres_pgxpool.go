package storage

import (
	"context"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresPoolStorage layers a pgx connection pool over the GORM backend.
// Reads and writes go through GORM; the dedicated pool serves advisory
// locks and pool statistics without contending with ORM connections.
type PostgresPoolStorage struct {
	*GormStorage
	pool *pgxpool.Pool

	// Advisory locks are session-scoped, so acquire and unlock must run on
	// the same connection. lockConn is held out of the pool for the
	// duration of the lock.
	lockMu   sync.Mutex
	lockConn *pgxpool.Conn
}

func OpenPostgresPool(ctx context.Context, dsn string) (*PostgresPoolStorage, error) {
	if dsn == "" {
		dsn = "postgres://localhost:5432/tankmanager?sslmode=disable"
	}

	gs, err := NewGormStorage("postgres", dsn)
	if err != nil {
		return nil, err
	}

	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		gs.Close()
		return nil, err
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		gs.Close()
		return nil, err
	}

	return &PostgresPoolStorage{GormStorage: gs, pool: pool}, nil
}

func (s *PostgresPoolStorage) Close() error {
	s.pool.Close()
	return s.GormStorage.Close()
}

func (s *PostgresPoolStorage) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *PostgresPoolStorage) AcquireAdvisoryLock(ctx context.Context, key int64) (bool, error) {
	s.lockMu.Lock()
	defer s.lockMu.Unlock()
	if s.lockConn != nil {
		return false, nil
	}

	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return false, err
	}
	var ok bool
	if err := conn.QueryRow(ctx, `SELECT pg_try_advisory_lock($1)`, key).Scan(&ok); err != nil {
		conn.Release()
		return false, err
	}
	if !ok {
		conn.Release()
		return false, nil
	}
	s.lockConn = conn
	return true, nil
}

func (s *PostgresPoolStorage) ReleaseAdvisoryLock(ctx context.Context, key int64) (bool, error) {
	s.lockMu.Lock()
	defer s.lockMu.Unlock()
	if s.lockConn == nil {
		return false, nil
	}

	var ok bool
	err := s.lockConn.QueryRow(ctx, `SELECT pg_advisory_unlock($1)`, key).Scan(&ok)
	s.lockConn.Release()
	s.lockConn = nil
	return ok, err
}

// Stat exposes the pgx pool counters for the metrics collector.
func (s *PostgresPoolStorage) Stat() *pgxpool.Stat {
	return s.pool.Stat()
}
