package rbac

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// ErrUnauthenticated means the request carries no valid session
	ErrUnauthenticated = errors.New("authentication required")
	// ErrForbidden means the caller is authenticated but not an administrator
	ErrForbidden = errors.New("administrator role required")
	// ErrValidationFailed matches any *ValidationError
	ErrValidationFailed = errors.New("validation failed")
	// ErrDuplicateName means another role already uses the name
	ErrDuplicateName = errors.New("role name already exists")
	// ErrNotFound means the role does not exist
	ErrNotFound = errors.New("role not found")
	// ErrUserNotFound means the user targeted by a role assignment does not exist
	ErrUserNotFound = errors.New("user not found")
	// ErrSystemRoleImmutable means the role is built in and cannot change
	ErrSystemRoleImmutable = errors.New("system roles are immutable")
	// ErrRoleInUse means users still hold the role
	ErrRoleInUse = errors.New("role is assigned to users")
	// ErrStorageFailure matches any *StorageError
	ErrStorageFailure = errors.New("storage failure")
)

// ValidationError carries messages keyed by field path, e.g. "permissions.0.resource"
type ValidationError struct {
	Fields map[string][]string
}

func (e *ValidationError) add(field, message string) {
	if e.Fields == nil {
		e.Fields = make(map[string][]string)
	}
	e.Fields[field] = append(e.Fields[field], message)
}

func (e *ValidationError) empty() bool {
	return len(e.Fields) == 0
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, strings.Join(e.Fields[k], "; ")))
	}
	return "validation failed: " + strings.Join(parts, ", ")
}

// Is makes errors.Is(err, ErrValidationFailed) true
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidationFailed
}

// StorageError wraps an unexpected persistence error
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("failed to %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// Is makes errors.Is(err, ErrStorageFailure) true
func (e *StorageError) Is(target error) bool {
	return target == ErrStorageFailure
}
