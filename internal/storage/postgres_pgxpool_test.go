package storage

import (
	"context"
	"os"
	"testing"
)

// Needs a reachable Postgres; the lock semantics cannot be faked in sqlite.
func openTestPool(t *testing.T, ctx context.Context) *PostgresPoolStorage {
	t.Helper()
	dsn := os.Getenv("TANKMANAGER_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("TANKMANAGER_TEST_POSTGRES_DSN not set")
	}
	s, err := OpenPostgresPool(ctx, dsn)
	if err != nil {
		t.Fatalf("OpenPostgresPool: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// Advisory locks are session-scoped: the unlock must land on the connection
// that acquired, or the lock leaks and every later acquire fails.
func TestPostgresPool_AdvisoryLockRoundTrip(t *testing.T) {
	ctx := context.Background()
	a := openTestPool(t, ctx)
	b := openTestPool(t, ctx)

	const key = int64(427)

	ok, err := a.AcquireAdvisoryLock(ctx, key)
	if err != nil || !ok {
		t.Fatalf("first acquire = (%v, %v), want (true, nil)", ok, err)
	}
	ok, err = b.AcquireAdvisoryLock(ctx, key)
	if err != nil || ok {
		t.Fatalf("contended acquire = (%v, %v), want (false, nil)", ok, err)
	}

	ok, err = a.ReleaseAdvisoryLock(ctx, key)
	if err != nil || !ok {
		t.Fatalf("release by holder = (%v, %v), want (true, nil)", ok, err)
	}

	ok, err = b.AcquireAdvisoryLock(ctx, key)
	if err != nil || !ok {
		t.Fatalf("acquire after release = (%v, %v), want (true, nil)", ok, err)
	}
	ok, err = b.ReleaseAdvisoryLock(ctx, key)
	if err != nil || !ok {
		t.Fatalf("second release = (%v, %v), want (true, nil)", ok, err)
	}
}

func TestPostgresPool_ReleaseWithoutAcquire(t *testing.T) {
	ctx := context.Background()
	s := openTestPool(t, ctx)

	ok, err := s.ReleaseAdvisoryLock(ctx, int64(428))
	if err != nil || ok {
		t.Fatalf("release without acquire = (%v, %v), want (false, nil)", ok, err)
	}
}
