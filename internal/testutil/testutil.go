// Package testutil builds real backends for tests: a SQLite file in a temp
// dir behind a remote.Client with a controllable clock.
package testutil

import (
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"task-manager/internal/remote"
	"task-manager/internal/repository"
)

const Secret = "test-secret"

// Clock is a settable time source.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

func NewClock() *Clock {
	return &Clock{now: time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// NewDriver opens a migrated SQLite database in a temp dir.
func NewDriver(t *testing.T) *repository.Driver {
	t.Helper()
	db, err := repository.NewDB(filepath.Join(t.TempDir(), "test.db"), zerolog.Nop())
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return repository.NewDriver(db)
}

// NewClient returns a client over driver using clock. A nil driver opens a
// fresh database.
func NewClient(t *testing.T, driver remote.Driver, clock *Clock) *remote.Client {
	t.Helper()
	if driver == nil {
		driver = NewDriver(t)
	}
	if clock == nil {
		clock = NewClock()
	}
	c, err := remote.NewClient(driver, remote.Options{
		Secret:     []byte(Secret),
		SessionTTL: time.Hour,
		BcryptCost: bcrypt.MinCost,
		Now:        clock.Now,
		Logger:     zerolog.Nop(),
	})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return c
}

// SignedIn registers email and signs c in as that user.
func SignedIn(t *testing.T, c *remote.Client, email string) remote.Session {
	t.Helper()
	ctx := t.Context()
	if _, err := c.SignUp(ctx, email, "secret123"); err != nil {
		t.Fatalf("sign up %s: %v", email, err)
	}
	s, err := c.SignIn(ctx, email, "secret123")
	if err != nil {
		t.Fatalf("sign in %s: %v", email, err)
	}
	return s
}
