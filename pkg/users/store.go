package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrNotFound is returned when a user does not exist
var ErrNotFound = errors.New("user not found")

// User is the slice of an account record rolegate reads and writes.
// Role is a soft reference to roles.name.
type User struct {
	ID            string    `json:"id"`
	Email         string    `json:"email"`
	Name          string    `json:"name"`
	Role          string    `json:"role"`
	EmailVerified bool      `json:"emailVerified"`
	CreatedAt     time.Time `json:"createdAt"`
}

// ListOptions filters and pages List
type ListOptions struct {
	Role   string
	Limit  int
	Offset int
}

// Store is the SQL-backed user directory
type Store struct {
	db *sql.DB
}

// NewStore creates a new user directory
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Create inserts a user
func (s *Store) Create(ctx context.Context, u *User) error {
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC().Truncate(time.Microsecond)
	}
	query := `
		INSERT INTO users (id, email, name, role, email_verified, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := s.db.ExecContext(ctx, query, u.ID, u.Email, u.Name, u.Role, u.EmailVerified, u.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// Get retrieves a user by ID
func (s *Store) Get(ctx context.Context, id string) (*User, error) {
	query := `
		SELECT id, email, name, role, email_verified, created_at
		FROM users
		WHERE id = $1
	`
	u, err := scanUser(s.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return u, nil
}

// List returns users newest first, optionally restricted to one role
func (s *Store) List(ctx context.Context, opts ListOptions) ([]*User, error) {
	var (
		b    strings.Builder
		args []interface{}
	)
	b.WriteString(`SELECT id, email, name, role, email_verified, created_at FROM users`)
	if opts.Role != "" {
		args = append(args, opts.Role)
		fmt.Fprintf(&b, " WHERE role = $%d", len(args))
	}
	b.WriteString(" ORDER BY created_at DESC, id ASC")
	if opts.Limit > 0 {
		args = append(args, opts.Limit)
		fmt.Fprintf(&b, " LIMIT $%d", len(args))
		if opts.Offset > 0 {
			args = append(args, opts.Offset)
			fmt.Fprintf(&b, " OFFSET $%d", len(args))
		}
	}

	rows, err := s.db.QueryContext(ctx, b.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var result []*User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		result = append(result, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return result, nil
}

// ExistsWithRole reports whether any user is assigned the named role
func (s *Store) ExistsWithRole(ctx context.Context, role string) (bool, error) {
	var exists bool
	query := `SELECT EXISTS (SELECT 1 FROM users WHERE role = $1)`
	if err := s.db.QueryRowContext(ctx, query, role).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check role assignment: %w", err)
	}
	return exists, nil
}

// SetRole assigns a role name to a user
func (s *Store) SetRole(ctx context.Context, id, role string) (*User, error) {
	res, err := s.db.ExecContext(ctx, `UPDATE users SET role = $1 WHERE id = $2`, role, id)
	if err != nil {
		return nil, fmt.Errorf("failed to set user role: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to set user role: %w", err)
	}
	if n == 0 {
		return nil, ErrNotFound
	}
	return s.Get(ctx, id)
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanUser(row rowScanner) (*User, error) {
	var u User
	if err := row.Scan(&u.ID, &u.Email, &u.Name, &u.Role, &u.EmailVerified, &u.CreatedAt); err != nil {
		return nil, err
	}
	u.CreatedAt = u.CreatedAt.UTC()
	return &u, nil
}
