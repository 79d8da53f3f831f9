package rbac

import (
	"context"
	"database/sql"
	"io"
	"sync"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/rolegate/pkg/audit"
	"github.com/platinummonkey/rolegate/pkg/users"
)

var testEpoch = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

// setupTestDB returns a migrated in-memory SQLite database
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", "file::memory:?_foreign_keys=on")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, RunMigrations(context.Background(), db, "sqlite3", quietLogger()))
	return db
}

// stepClock returns a clock that advances one second per call
func stepClock() func() time.Time {
	var (
		mu  sync.Mutex
		now = testEpoch
	)
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		now = now.Add(time.Second)
		return now
	}
}

type recordingAudit struct {
	mu     sync.Mutex
	events []*audit.AuditEvent
}

func (r *recordingAudit) Log(ctx context.Context, event *audit.AuditEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *recordingAudit) Close() error { return nil }

func (r *recordingAudit) types() []audit.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]audit.EventType, len(r.events))
	for i, e := range r.events {
		out[i] = e.EventType
	}
	return out
}

type fixture struct {
	db      *sql.DB
	store   *SQLStore
	users   *users.Store
	guard   *Guard
	service *Service
	audit   *recordingAudit
}

func newFixture(t *testing.T, guardOpts ...GuardOption) *fixture {
	t.Helper()

	db := setupTestDB(t)
	store := NewSQLStore(db)
	directory := users.NewStore(db)
	catalog := DefaultCatalog()
	guard := NewGuard(catalog, store, append([]GuardOption{WithRoleCache(16, time.Minute)}, guardOpts...)...)
	rec := &recordingAudit{}

	return &fixture{
		db:    db,
		store: store,
		users: directory,
		guard: guard,
		service: NewService(store, directory, catalog, guard,
			WithAuditLogger(rec),
			WithClock(stepClock()),
		),
		audit: rec,
	}
}

func (f *fixture) addUser(t *testing.T, id, role string) {
	t.Helper()
	require.NoError(t, f.users.Create(context.Background(), &users.User{
		ID:        id,
		Email:     id + "@example.com",
		Name:      id,
		Role:      role,
		CreatedAt: testEpoch,
	}))
}

func (f *fixture) countRoles(t *testing.T) int {
	t.Helper()
	var n int
	require.NoError(t, f.db.QueryRow(`SELECT COUNT(*) FROM roles`).Scan(&n))
	return n
}

func strPtr(s string) *string { return &s }
