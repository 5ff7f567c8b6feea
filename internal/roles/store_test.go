package roles

import (
	"context"
	"testing"

	"github.com/dgraph-io/badger/v4"

	"github.com/derailed-dash/rickbot/pkg/models"
)

func testUser() *models.User {
	return &models.User{
		ID:       "42",
		Email:    "rick@example.com",
		Name:     "Rick",
		Provider: models.ProviderMock,
	}
}

// storeTests exercises the Store contract against any implementation.
func storeTests(t *testing.T, store Store) {
	ctx := context.Background()
	user := testUser()

	t.Run("unknown user defaults to standard", func(t *testing.T) {
		if role := store.UserRole(ctx, user); role != models.RoleStandard {
			t.Errorf("role = %q, want standard", role)
		}
	})

	t.Run("nil user defaults to standard", func(t *testing.T) {
		if role := store.UserRole(ctx, nil); role != models.RoleStandard {
			t.Errorf("role = %q, want standard", role)
		}
	})

	t.Run("unknown persona requires standard", func(t *testing.T) {
		if role := store.RequiredRole(ctx, "Nobody"); role != models.RoleStandard {
			t.Errorf("role = %q, want standard", role)
		}
	})

	t.Run("set and get user role", func(t *testing.T) {
		if err := store.SetUserRole(ctx, user, models.RoleSupporter); err != nil {
			t.Fatalf("SetUserRole: %v", err)
		}
		if role := store.UserRole(ctx, user); role != models.RoleSupporter {
			t.Errorf("role = %q, want supporter", role)
		}
	})

	t.Run("sync preserves assigned role", func(t *testing.T) {
		if err := store.SyncUser(ctx, user); err != nil {
			t.Fatalf("SyncUser: %v", err)
		}
		if role := store.UserRole(ctx, user); role != models.RoleSupporter {
			t.Errorf("role after sync = %q, want supporter", role)
		}
	})

	t.Run("sync creates standard record", func(t *testing.T) {
		fresh := &models.User{ID: "77", Email: "m@example.com", Name: "Morty", Provider: models.ProviderGoogle}
		if err := store.SyncUser(ctx, fresh); err != nil {
			t.Fatalf("SyncUser: %v", err)
		}
		if role := store.UserRole(ctx, fresh); role != models.RoleStandard {
			t.Errorf("role = %q, want standard", role)
		}
	})

	t.Run("set and get required role", func(t *testing.T) {
		if err := store.SetRequiredRole(ctx, "The Bartender", models.RoleSupporter); err != nil {
			t.Fatalf("SetRequiredRole: %v", err)
		}
		if role := store.RequiredRole(ctx, "The Bartender"); role != models.RoleSupporter {
			t.Errorf("role = %q, want supporter", role)
		}
	})

	t.Run("rejects invalid role", func(t *testing.T) {
		if err := store.SetUserRole(ctx, user, models.Role("admin")); err == nil {
			t.Error("expected error for invalid user role")
		}
		if err := store.SetRequiredRole(ctx, "Rick", models.Role("vip")); err == nil {
			t.Error("expected error for invalid required role")
		}
	})

	t.Run("provider isolation", func(t *testing.T) {
		same := &models.User{ID: user.ID, Email: user.Email, Name: user.Name, Provider: models.ProviderGitHub}
		if role := store.UserRole(ctx, same); role != models.RoleStandard {
			t.Errorf("role = %q, same id under another provider must be a different user", role)
		}
	})
}

func TestMemoryStore(t *testing.T) {
	storeTests(t, NewMemoryStore())
}

func TestBadgerStore(t *testing.T) {
	opts := badger.DefaultOptions(t.TempDir()).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		t.Fatalf("open badger: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	storeTests(t, NewBadgerStore(db, nil))
}

func TestBadgerStoreSurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	user := testUser()

	opts := badger.DefaultOptions(dir).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		t.Fatalf("open badger: %v", err)
	}
	store := NewBadgerStore(db, nil)
	if err := store.SetUserRole(ctx, user, models.RoleSupporter); err != nil {
		t.Fatalf("SetUserRole: %v", err)
	}
	if err := db.Close(); err != nil {
		t.Fatalf("close badger: %v", err)
	}

	db, err = badger.Open(opts)
	if err != nil {
		t.Fatalf("reopen badger: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if role := NewBadgerStore(db, nil).UserRole(ctx, user); role != models.RoleSupporter {
		t.Errorf("role after reopen = %q, want supporter", role)
	}
}
