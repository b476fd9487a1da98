package auth

import (
	"context"
	"testing"
	"time"

	"github.com/bher20/tankmanager/internal/storage"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	svc, err := NewService(storage.NewMemory())
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc
}

func TestRegisterAndAuthenticate(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	u, err := svc.Register(ctx, "alice", "s3cret", "admin")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if u.Role != "admin" {
		t.Errorf("role = %q, want admin", u.Role)
	}

	if _, err := svc.Register(ctx, "alice", "other", "viewer"); err == nil {
		t.Error("duplicate register accepted")
	}

	got, err := svc.Authenticate(ctx, "alice", "s3cret")
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if got.ID != u.ID {
		t.Errorf("authenticated user ID = %q, want %q", got.ID, u.ID)
	}

	if _, err := svc.Authenticate(ctx, "alice", "wrong"); err == nil {
		t.Error("wrong password accepted")
	}
	if _, err := svc.Authenticate(ctx, "nobody", "s3cret"); err == nil {
		t.Error("unknown user accepted")
	}
}

func TestTokenLifecycle(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	u, err := svc.Register(ctx, "bob", "s3cret", "viewer")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	tok, raw, err := svc.CreateToken(ctx, u.ID, "ci", "viewer", nil)
	if err != nil {
		t.Fatalf("CreateToken: %v", err)
	}
	if tok.TokenHash == raw {
		t.Error("raw token stored unhashed")
	}

	got, err := svc.ValidateToken(ctx, raw)
	if err != nil {
		t.Fatalf("ValidateToken: %v", err)
	}
	if got.ID != tok.ID {
		t.Errorf("token ID = %q, want %q", got.ID, tok.ID)
	}

	if _, err := svc.ValidateToken(ctx, "not-a-token"); err == nil {
		t.Error("bogus token accepted")
	}

	expired := time.Now().Add(-time.Hour)
	_, rawExpired, err := svc.CreateToken(ctx, u.ID, "old", "viewer", &expired)
	if err != nil {
		t.Fatalf("CreateToken: %v", err)
	}
	if _, err := svc.ValidateToken(ctx, rawExpired); err == nil {
		t.Error("expired token accepted")
	}
}

func TestEnforceRoles(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	admin, _ := svc.Register(ctx, "root", "pw", "admin")
	viewer, _ := svc.Register(ctx, "watcher", "pw", "viewer")

	tests := []struct {
		sub, obj, act string
		want          bool
	}{
		{admin.ID, "readings", "read", true},
		{admin.ID, "baseline", "write", true},
		{admin.ID, "users", "write", true},
		{viewer.ID, "readings", "read", true},
		{viewer.ID, "baseline", "write", false},
		{viewer.ID, "users", "write", false},
	}
	for _, tt := range tests {
		ok, err := svc.Enforce(tt.sub, tt.obj, tt.act)
		if err != nil {
			t.Fatalf("Enforce(%s, %s, %s): %v", tt.sub, tt.obj, tt.act, err)
		}
		if ok != tt.want {
			t.Errorf("Enforce(%s, %s, %s) = %v, want %v", tt.sub, tt.obj, tt.act, ok, tt.want)
		}
	}
}

func TestParseExpirationDuration(t *testing.T) {
	if got, err := ParseExpirationDuration("never"); err != nil || got != nil {
		t.Errorf("never: %v %v", got, err)
	}
	if got, err := ParseExpirationDuration(""); err != nil || got != nil {
		t.Errorf("empty: %v %v", got, err)
	}

	got, err := ParseExpirationDuration("30d")
	if err != nil {
		t.Fatalf("30d: %v", err)
	}
	want := time.Now().Add(30 * 24 * time.Hour)
	if got.Sub(want) > time.Minute || want.Sub(*got) > time.Minute {
		t.Errorf("30d = %v, want ~%v", got, want)
	}

	if _, err := ParseExpirationDuration("soonish"); err == nil {
		t.Error("garbage accepted")
	}
}

func TestEnsureAdmin(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	// No password configured: nothing seeded.
	if u, err := svc.EnsureAdmin(ctx, "admin", ""); err != nil || u != nil {
		t.Fatalf("EnsureAdmin without password = (%v, %v), want (nil, nil)", u, err)
	}

	u, err := svc.EnsureAdmin(ctx, "", "changeme")
	if err != nil {
		t.Fatalf("EnsureAdmin: %v", err)
	}
	if u == nil || u.Username != "admin" || u.Role != "admin" {
		t.Fatalf("seeded user = %+v, want admin/admin", u)
	}
	if _, err := svc.Authenticate(ctx, "admin", "changeme"); err != nil {
		t.Errorf("seeded admin cannot authenticate: %v", err)
	}

	// Any existing user makes it a no-op, even with a password set.
	if u, err := svc.EnsureAdmin(ctx, "admin2", "other"); err != nil || u != nil {
		t.Fatalf("EnsureAdmin on populated store = (%v, %v), want (nil, nil)", u, err)
	}
}

func TestValidateToken_StampsLastUsed(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	u, err := svc.Register(ctx, "alice", "secret", "viewer")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	info, raw, err := svc.CreateToken(ctx, u.ID, "test", u.Role, nil)
	if err != nil {
		t.Fatalf("CreateToken: %v", err)
	}
	if info.LastUsedAt != nil {
		t.Fatal("new token already has LastUsedAt")
	}

	if _, err := svc.ValidateToken(ctx, raw); err != nil {
		t.Fatalf("ValidateToken: %v", err)
	}
	stored, err := svc.storage.GetToken(ctx, info.ID)
	if err != nil {
		t.Fatalf("GetToken: %v", err)
	}
	if stored == nil || stored.LastUsedAt == nil {
		t.Error("LastUsedAt not stamped after validation")
	}
}
