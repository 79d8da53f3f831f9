package rbac

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
)

// RoleStore persists roles. Implementations must enforce name uniqueness at
// the storage level and report violations as ErrDuplicateName.
type RoleStore interface {
	// FindAll returns every role sorted by name ascending
	FindAll(ctx context.Context) ([]*Role, error)
	FindByID(ctx context.Context, id string) (*Role, error)
	FindByName(ctx context.Context, name string) (*Role, error)
	Insert(ctx context.Context, role *Role) error
	// InsertIfAbsent inserts role unless its name is taken and reports whether it wrote a row
	InsertIfAbsent(ctx context.Context, role *Role) (bool, error)
	// Update writes name, description, permissions and updated_at of role.ID
	Update(ctx context.Context, role *Role) error
	Delete(ctx context.Context, id string) error
}

// SQLStore is a RoleStore on database/sql. The queries run unchanged on
// PostgreSQL (lib/pq) and SQLite (mattn/go-sqlite3).
type SQLStore struct {
	db *sql.DB
}

// NewSQLStore creates a new SQL role store
func NewSQLStore(db *sql.DB) *SQLStore {
	return &SQLStore{db: db}
}

const roleColumns = `id, name, description, is_system, permissions, created_at, updated_at`

// FindAll returns all roles ordered by name
func (s *SQLStore) FindAll(ctx context.Context) ([]*Role, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+roleColumns+` FROM roles ORDER BY name ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list roles: %w", err)
	}
	defer rows.Close()

	roles := []*Role{}
	for rows.Next() {
		role, err := scanRole(rows)
		if err != nil {
			return nil, err
		}
		roles = append(roles, role)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list roles: %w", err)
	}

	return roles, nil
}

// FindByID retrieves a role by ID
func (s *SQLStore) FindByID(ctx context.Context, id string) (*Role, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+roleColumns+` FROM roles WHERE id = $1`, id)
	role, err := scanRole(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return role, err
}

// FindByName retrieves a role by its exact name
func (s *SQLStore) FindByName(ctx context.Context, name string) (*Role, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+roleColumns+` FROM roles WHERE name = $1`, name)
	role, err := scanRole(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return role, err
}

// Insert creates a role
func (s *SQLStore) Insert(ctx context.Context, role *Role) error {
	permissionsJSON, err := json.Marshal(role.Permissions)
	if err != nil {
		return fmt.Errorf("failed to marshal permissions: %w", err)
	}

	query := `
		INSERT INTO roles (id, name, description, is_system, permissions, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err = s.db.ExecContext(ctx, query,
		role.ID,
		role.Name,
		role.Description,
		role.IsSystem,
		string(permissionsJSON),
		role.CreatedAt,
		role.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return ErrDuplicateName
	}
	if err != nil {
		return fmt.Errorf("failed to create role: %w", err)
	}

	return nil
}

// InsertIfAbsent creates a role unless one with the same name exists
func (s *SQLStore) InsertIfAbsent(ctx context.Context, role *Role) (bool, error) {
	permissionsJSON, err := json.Marshal(role.Permissions)
	if err != nil {
		return false, fmt.Errorf("failed to marshal permissions: %w", err)
	}

	query := `
		INSERT INTO roles (id, name, description, is_system, permissions, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (name) DO NOTHING
	`

	res, err := s.db.ExecContext(ctx, query,
		role.ID,
		role.Name,
		role.Description,
		role.IsSystem,
		string(permissionsJSON),
		role.CreatedAt,
		role.UpdatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("failed to seed role %s: %w", role.Name, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to seed role %s: %w", role.Name, err)
	}
	return n > 0, nil
}

// Update persists a role's mutable fields
func (s *SQLStore) Update(ctx context.Context, role *Role) error {
	permissionsJSON, err := json.Marshal(role.Permissions)
	if err != nil {
		return fmt.Errorf("failed to marshal permissions: %w", err)
	}

	query := `
		UPDATE roles
		SET name = $1, description = $2, permissions = $3, updated_at = $4
		WHERE id = $5
	`

	res, err := s.db.ExecContext(ctx, query,
		role.Name,
		role.Description,
		string(permissionsJSON),
		role.UpdatedAt,
		role.ID,
	)
	if isUniqueViolation(err) {
		return ErrDuplicateName
	}
	if err != nil {
		return fmt.Errorf("failed to update role: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update role: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}

	return nil
}

// Delete removes a role
func (s *SQLStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM roles WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete role: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete role: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}

	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRole(row rowScanner) (*Role, error) {
	var (
		role            Role
		description     sql.NullString
		permissionsJSON []byte
	)

	err := row.Scan(
		&role.ID,
		&role.Name,
		&description,
		&role.IsSystem,
		&permissionsJSON,
		&role.CreatedAt,
		&role.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan role: %w", err)
	}

	if description.Valid {
		d := description.String
		role.Description = &d
	}

	if err := json.Unmarshal(permissionsJSON, &role.Permissions); err != nil {
		return nil, fmt.Errorf("failed to unmarshal permissions: %w", err)
	}

	role.CreatedAt = role.CreatedAt.UTC()
	role.UpdatedAt = role.UpdatedAt.UTC()
	return &role, nil
}

// isUniqueViolation reports whether err is a unique constraint violation from
// either supported driver
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}

	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}

	return false
}
