package rbac

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRole(id, name string) *Role {
	return &Role{
		ID:          id,
		Name:        name,
		Description: strPtr("test role " + name),
		Permissions: []Permission{{Resource: ResourceContent, Actions: []Action{ActionRead, ActionUpdate}}},
		CreatedAt:   testEpoch,
		UpdatedAt:   testEpoch,
	}
}

func TestSQLStore_RoleCRUD(t *testing.T) {
	ctx := context.Background()
	store := NewSQLStore(setupTestDB(t))

	// Create
	role := newTestRole("r1", "support")
	require.NoError(t, store.Insert(ctx, role))

	// Read
	got, err := store.FindByID(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, role, got)

	byName, err := store.FindByName(ctx, "support")
	require.NoError(t, err)
	assert.Equal(t, "r1", byName.ID)

	// Update
	got.Name = "helpdesk"
	got.Description = nil
	got.Permissions = append(got.Permissions, Permission{Resource: ResourceSettings, Actions: []Action{ActionRead}})
	got.UpdatedAt = testEpoch.Add(time.Hour)
	require.NoError(t, store.Update(ctx, got))

	updated, err := store.FindByID(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, "helpdesk", updated.Name)
	assert.Nil(t, updated.Description)
	assert.Len(t, updated.Permissions, 2)
	assert.True(t, updated.UpdatedAt.Equal(testEpoch.Add(time.Hour)))
	assert.True(t, updated.CreatedAt.Equal(testEpoch))

	_, err = store.FindByName(ctx, "support")
	assert.ErrorIs(t, err, ErrNotFound)

	// Delete
	require.NoError(t, store.Delete(ctx, "r1"))
	_, err = store.FindByID(ctx, "r1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLStore_FindAllSortedByName(t *testing.T) {
	ctx := context.Background()
	store := NewSQLStore(setupTestDB(t))

	for i, name := range []string{"zeta", "alpha", "mid"} {
		require.NoError(t, store.Insert(ctx, newTestRole(string(rune('a'+i)), name)))
	}

	roles, err := store.FindAll(ctx)
	require.NoError(t, err)
	require.Len(t, roles, 3)
	assert.Equal(t, "alpha", roles[0].Name)
	assert.Equal(t, "mid", roles[1].Name)
	assert.Equal(t, "zeta", roles[2].Name)
}

func TestSQLStore_FindAllEmpty(t *testing.T) {
	roles, err := NewSQLStore(setupTestDB(t)).FindAll(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, roles)
	assert.Empty(t, roles)
}

func TestSQLStore_UniqueName(t *testing.T) {
	ctx := context.Background()
	store := NewSQLStore(setupTestDB(t))

	require.NoError(t, store.Insert(ctx, newTestRole("r1", "support")))

	err := store.Insert(ctx, newTestRole("r2", "support"))
	assert.ErrorIs(t, err, ErrDuplicateName)

	require.NoError(t, store.Insert(ctx, newTestRole("r3", "billing")))
	other, err := store.FindByID(ctx, "r3")
	require.NoError(t, err)
	other.Name = "support"
	assert.ErrorIs(t, store.Update(ctx, other), ErrDuplicateName)
}

func TestSQLStore_InsertIfAbsent(t *testing.T) {
	ctx := context.Background()
	store := NewSQLStore(setupTestDB(t))

	inserted, err := store.InsertIfAbsent(ctx, newTestRole("r1", "admin"))
	require.NoError(t, err)
	assert.True(t, inserted)

	inserted, err = store.InsertIfAbsent(ctx, newTestRole("r2", "admin"))
	require.NoError(t, err)
	assert.False(t, inserted)

	got, err := store.FindByName(ctx, "admin")
	require.NoError(t, err)
	assert.Equal(t, "r1", got.ID)
}

func TestSQLStore_MissingRows(t *testing.T) {
	ctx := context.Background()
	store := NewSQLStore(setupTestDB(t))

	assert.ErrorIs(t, store.Update(ctx, newTestRole("missing", "x")), ErrNotFound)
	assert.ErrorIs(t, store.Delete(ctx, "missing"), ErrNotFound)

	_, err := store.FindByName(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLStore_DatabaseErrors(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	ctx := context.Background()
	store := NewSQLStore(db)
	boom := errors.New("connection reset")

	mock.ExpectQuery("SELECT (.+) FROM roles ORDER BY name").WillReturnError(boom)
	_, err = store.FindAll(ctx)
	assert.ErrorIs(t, err, boom)

	mock.ExpectQuery("SELECT (.+) FROM roles WHERE id").WithArgs("r1").WillReturnError(boom)
	_, err = store.FindByID(ctx, "r1")
	assert.ErrorIs(t, err, boom)
	assert.False(t, errors.Is(err, ErrNotFound))

	mock.ExpectExec("INSERT INTO roles").WillReturnError(boom)
	err = store.Insert(ctx, newTestRole("r1", "support"))
	assert.ErrorIs(t, err, boom)
	assert.False(t, errors.Is(err, ErrDuplicateName))

	mock.ExpectExec("DELETE FROM roles").WithArgs("r1").WillReturnResult(sqlmock.NewErrorResult(boom))
	assert.ErrorIs(t, store.Delete(ctx, "r1"), boom)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLStore_CorruptPermissions(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	rows := sqlmock.NewRows([]string{"id", "name", "description", "is_system", "permissions", "created_at", "updated_at"}).
		AddRow("r1", "support", nil, false, []byte("{not json"), testEpoch, testEpoch)
	mock.ExpectQuery("SELECT (.+) FROM roles WHERE id").WillReturnRows(rows)

	_, err = NewSQLStore(db).FindByID(context.Background(), "r1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to unmarshal permissions")
}

func TestSQLStore_InsertIfAbsentAcrossConnections(t *testing.T) {
	dsn := "file:" + filepath.Join(t.TempDir(), "roles.db") + "?_busy_timeout=5000&_journal_mode=WAL"
	db, err := sql.Open("sqlite3", dsn)
	require.NoError(t, err)
	db.SetMaxOpenConns(8)
	t.Cleanup(func() { db.Close() })

	ctx := context.Background()
	require.NoError(t, RunMigrations(ctx, db, "sqlite3", quietLogger()))
	store := NewSQLStore(db)

	const workers = 16
	var (
		wg       sync.WaitGroup
		inserted atomic.Int32
		start    = make(chan struct{})
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			ok, err := store.InsertIfAbsent(ctx, newTestRole(fmt.Sprintf("role-%d", i), "auditor"))
			assert.NoError(t, err)
			if ok {
				inserted.Add(1)
			}
		}(i)
	}
	close(start)
	wg.Wait()

	assert.Equal(t, int32(1), inserted.Load())

	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM roles WHERE name = 'auditor'`).Scan(&n))
	assert.Equal(t, 1, n)
}
