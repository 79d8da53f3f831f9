package rbac

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"github.com/platinummonkey/rolegate/pkg/audit"
	"github.com/platinummonkey/rolegate/pkg/observability"
	"github.com/platinummonkey/rolegate/pkg/users"
)

const (
	tracerName  = "github.com/platinummonkey/rolegate/pkg/rbac"
	seedTimeout = 30 * time.Second
)

// UserDirectory is the part of user management the service depends on
type UserDirectory interface {
	ExistsWithRole(ctx context.Context, role string) (bool, error)
	List(ctx context.Context, opts users.ListOptions) ([]*users.User, error)
	SetRole(ctx context.Context, id, role string) (*users.User, error)
}

// AuditHistory reads back recorded audit events
type AuditHistory interface {
	ListForResource(ctx context.Context, resourceType audit.ResourceType, resourceID string, limit int) ([]*audit.AuditEvent, error)
}

// Service performs validated role management on top of a RoleStore.
// Callers must pass the administrator gate before invoking any method.
type Service struct {
	store   RoleStore
	users   UserDirectory
	catalog *Catalog
	guard   *Guard

	audit   audit.Logger
	history AuditHistory
	metrics *observability.Metrics
	tracer  trace.Tracer
	now     func() time.Time
	newID   func() string

	seeded    atomic.Bool
	seedGroup singleflight.Group
}

// ServiceOption configures a Service
type ServiceOption func(*Service)

// WithAuditLogger records role and assignment mutations
func WithAuditLogger(l audit.Logger) ServiceOption {
	return func(s *Service) { s.audit = l }
}

// WithAuditHistory enables RoleHistory. Without it a role has no history.
func WithAuditHistory(h AuditHistory) ServiceOption {
	return func(s *Service) { s.history = h }
}

// WithMetrics records operation outcomes
func WithMetrics(m *observability.Metrics) ServiceOption {
	return func(s *Service) { s.metrics = m }
}

// WithClock overrides the time source
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) { s.now = now }
}

// WithIDGenerator overrides role ID generation
func WithIDGenerator(newID func() string) ServiceOption {
	return func(s *Service) { s.newID = newID }
}

// NewService creates a role management service
func NewService(store RoleStore, directory UserDirectory, catalog *Catalog, guard *Guard, opts ...ServiceOption) *Service {
	s := &Service{
		store:   store,
		users:   directory,
		catalog: catalog,
		guard:   guard,
		audit:   audit.NoOpLogger(),
		tracer:  otel.Tracer(tracerName),
		now:     time.Now,
		newID:   func() string { return uuid.New().String() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Catalog returns the permission catalog
func (s *Service) Catalog() *Catalog {
	return s.catalog
}

// timestamp returns the current time at the precision both databases keep
func (s *Service) timestamp() time.Time {
	return s.now().UTC().Truncate(time.Microsecond)
}

// ListRoles returns all roles sorted by name, seeding the built-in roles first
func (s *Service) ListRoles(ctx context.Context) (roles []*Role, err error) {
	ctx, span := s.tracer.Start(ctx, "rbac.ListRoles")
	defer func() { s.finish(span, "list", err) }()

	if err := s.ensureSeeded(ctx); err != nil {
		return nil, s.storageError(ctx, "fetch roles", err)
	}

	roles, err = s.store.FindAll(ctx)
	if err != nil {
		return nil, s.storageError(ctx, "fetch roles", err)
	}
	return roles, nil
}

// SeedDefaultRoles inserts any missing built-in role and returns how many were written.
// Repeated and concurrent calls leave exactly one row per built-in role.
func (s *Service) SeedDefaultRoles(ctx context.Context) (int, error) {
	ctx, span := s.tracer.Start(ctx, "rbac.SeedDefaultRoles")
	defer span.End()

	// The shared run outlives any single caller; each caller stops waiting on its own context
	ch := s.seedGroup.DoChan("seed", func() (interface{}, error) {
		seedCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), seedTimeout)
		defer cancel()
		return s.seed(seedCtx)
	})

	var err error
	select {
	case res := <-ch:
		if res.Err == nil {
			return res.Val.(int), nil
		}
		err = res.Err
	case <-ctx.Done():
		err = ctx.Err()
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return 0, err
}

func (s *Service) ensureSeeded(ctx context.Context) error {
	if s.seeded.Load() {
		return nil
	}
	_, err := s.SeedDefaultRoles(ctx)
	return err
}

func (s *Service) seed(ctx context.Context) (int, error) {
	inserted := 0
	for _, def := range DefaultRoles(s.catalog, s.guard.AdminRole()) {
		now := s.timestamp()
		description := def.Description
		role := &Role{
			ID:          s.newID(),
			Name:        def.Name,
			Description: &description,
			IsSystem:    true,
			Permissions: def.Permissions,
			CreatedAt:   now,
			UpdatedAt:   now,
		}

		ok, err := s.store.InsertIfAbsent(ctx, role)
		if err != nil {
			return inserted, err
		}
		if !ok {
			continue
		}

		inserted++
		s.guard.Invalidate(role.Name)
		event := audit.NewEvent(ctx, audit.EventTypeRoleSeed, audit.EventStatusSuccess)
		event.ResourceType = audit.ResourceTypeRole
		event.ResourceID = role.ID
		event.ResourceName = role.Name
		event.Message = "Seeded system role"
		s.logAudit(ctx, event)
	}

	s.seeded.Store(true)
	s.metrics.RecordSeeded(inserted)
	if inserted > 0 {
		observability.FromContext(ctx).WithField("count", inserted).Info("Seeded system roles")
	}
	return inserted, nil
}

// GetRole returns the role with id
func (s *Service) GetRole(ctx context.Context, id string) (role *Role, err error) {
	ctx, span := s.tracer.Start(ctx, "rbac.GetRole", trace.WithAttributes(attribute.String("role.id", id)))
	defer func() { s.finish(span, "get", err) }()

	role, err = s.store.FindByID(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, s.storageError(ctx, "fetch role", err)
	}
	return role, nil
}

// RoleHistory returns the audit events recorded for the role with id, newest first
func (s *Service) RoleHistory(ctx context.Context, id string, limit int) (events []*audit.AuditEvent, err error) {
	ctx, span := s.tracer.Start(ctx, "rbac.RoleHistory", trace.WithAttributes(attribute.String("role.id", id)))
	defer func() { s.finish(span, "history", err) }()

	if _, err := s.store.FindByID(ctx, id); errors.Is(err, ErrNotFound) {
		return nil, ErrNotFound
	} else if err != nil {
		return nil, s.storageError(ctx, "fetch role history", err)
	}

	if s.history != nil {
		events, err = s.history.ListForResource(ctx, audit.ResourceTypeRole, id, limit)
		if err != nil {
			return nil, s.storageError(ctx, "fetch role history", err)
		}
	}
	if events == nil {
		events = []*audit.AuditEvent{}
	}
	return events, nil
}

// CreateRole validates in and stores it as a new custom role
func (s *Service) CreateRole(ctx context.Context, in RoleInput) (role *Role, err error) {
	ctx, span := s.tracer.Start(ctx, "rbac.CreateRole")
	defer func() { s.finish(span, "create", err) }()

	in, err = s.catalog.Validate(in)
	if err != nil {
		return nil, err
	}

	if err := s.ensureSeeded(ctx); err != nil {
		return nil, s.storageError(ctx, "create role", err)
	}

	existing, err := s.store.FindByName(ctx, in.Name)
	switch {
	case err == nil && existing != nil:
		return nil, ErrDuplicateName
	case err != nil && !errors.Is(err, ErrNotFound):
		return nil, s.storageError(ctx, "create role", err)
	}

	now := s.timestamp()
	role = &Role{
		ID:          s.newID(),
		Name:        in.Name,
		Description: in.Description,
		IsSystem:    false,
		Permissions: in.Permissions,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.store.Insert(ctx, role); err != nil {
		if errors.Is(err, ErrDuplicateName) {
			return nil, ErrDuplicateName
		}
		return nil, s.storageError(ctx, "create role", err)
	}
	s.guard.Invalidate(role.Name)

	event := audit.NewEvent(ctx, audit.EventTypeRoleCreate, audit.EventStatusSuccess)
	event.ResourceType = audit.ResourceTypeRole
	event.ResourceID = role.ID
	event.ResourceName = role.Name
	event.Changes = &audit.ChangeDetails{After: role}
	s.logAudit(ctx, event)

	return role, nil
}

// UpdateRole replaces the name, description and permissions of a custom role
func (s *Service) UpdateRole(ctx context.Context, id string, in RoleInput) (role *Role, err error) {
	ctx, span := s.tracer.Start(ctx, "rbac.UpdateRole", trace.WithAttributes(attribute.String("role.id", id)))
	defer func() { s.finish(span, "update", err) }()

	if err := s.ensureSeeded(ctx); err != nil {
		return nil, s.storageError(ctx, "update role", err)
	}

	existing, err := s.store.FindByID(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, s.storageError(ctx, "update role", err)
	}
	if existing.IsSystem {
		return nil, ErrSystemRoleImmutable
	}

	in, err = s.catalog.Validate(in)
	if err != nil {
		return nil, err
	}

	other, err := s.store.FindByName(ctx, in.Name)
	switch {
	case err == nil && other != nil && other.ID != existing.ID:
		return nil, ErrDuplicateName
	case err != nil && !errors.Is(err, ErrNotFound):
		return nil, s.storageError(ctx, "update role", err)
	}

	updated := *existing
	updated.Name = in.Name
	updated.Description = in.Description
	updated.Permissions = in.Permissions
	updated.UpdatedAt = s.timestamp()

	if err := s.store.Update(ctx, &updated); err != nil {
		switch {
		case errors.Is(err, ErrDuplicateName):
			return nil, ErrDuplicateName
		case errors.Is(err, ErrNotFound):
			return nil, ErrNotFound
		}
		return nil, s.storageError(ctx, "update role", err)
	}
	s.guard.Invalidate(existing.Name, updated.Name)

	event := audit.NewEvent(ctx, audit.EventTypeRoleUpdate, audit.EventStatusSuccess)
	event.ResourceType = audit.ResourceTypeRole
	event.ResourceID = updated.ID
	event.ResourceName = updated.Name
	event.Changes = &audit.ChangeDetails{Before: existing, After: &updated}
	s.logAudit(ctx, event)

	return &updated, nil
}

// DeleteRole removes a custom role that no user holds
func (s *Service) DeleteRole(ctx context.Context, id string) (err error) {
	ctx, span := s.tracer.Start(ctx, "rbac.DeleteRole", trace.WithAttributes(attribute.String("role.id", id)))
	defer func() { s.finish(span, "delete", err) }()

	existing, err := s.store.FindByID(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return s.storageError(ctx, "delete role", err)
	}
	if existing.IsSystem {
		return ErrSystemRoleImmutable
	}

	inUse, err := s.users.ExistsWithRole(ctx, existing.Name)
	if err != nil {
		return s.storageError(ctx, "delete role", err)
	}
	if inUse {
		return ErrRoleInUse
	}

	if err := s.store.Delete(ctx, id); err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrNotFound
		}
		return s.storageError(ctx, "delete role", err)
	}
	s.guard.Invalidate(existing.Name)

	event := audit.NewEvent(ctx, audit.EventTypeRoleDelete, audit.EventStatusSuccess)
	event.ResourceType = audit.ResourceTypeRole
	event.ResourceID = existing.ID
	event.ResourceName = existing.Name
	event.Changes = &audit.ChangeDetails{Before: existing}
	s.logAudit(ctx, event)

	return nil
}

// Check answers whether a role may perform an action on a resource
func (s *Service) Check(ctx context.Context, req CheckRequest) (result CheckResult, err error) {
	ctx, span := s.tracer.Start(ctx, "rbac.Check")
	defer func() { s.finish(span, "check", err) }()

	verr := &ValidationError{}
	if strings.TrimSpace(req.Role) == "" {
		verr.add("role", "Role is required")
	}
	if strings.TrimSpace(string(req.Resource)) == "" {
		verr.add("resource", msgResourceRequired)
	}
	if strings.TrimSpace(string(req.Action)) == "" {
		verr.add("action", msgActionRequired)
	}
	if !verr.empty() {
		return CheckResult{}, verr
	}

	allowed, err := s.guard.IsAllowed(ctx, req.Role, req.Resource, req.Action)
	if err != nil {
		return CheckResult{}, s.storageError(ctx, "check permission", err)
	}
	return CheckResult{Allowed: allowed}, nil
}

// ListUsers returns users newest first, optionally filtered by role
func (s *Service) ListUsers(ctx context.Context, opts users.ListOptions) (list []*users.User, err error) {
	ctx, span := s.tracer.Start(ctx, "rbac.ListUsers")
	defer func() { s.finish(span, "list_users", err) }()

	list, err = s.users.List(ctx, opts)
	if err != nil {
		return nil, s.storageError(ctx, "fetch users", err)
	}
	return list, nil
}

// AssignUserRole sets a user's role to an existing role name
func (s *Service) AssignUserRole(ctx context.Context, userID, roleName string) (user *users.User, err error) {
	ctx, span := s.tracer.Start(ctx, "rbac.AssignUserRole", trace.WithAttributes(attribute.String("user.id", userID)))
	defer func() { s.finish(span, "assign", err) }()

	roleName = strings.TrimSpace(roleName)
	if roleName == "" {
		verr := &ValidationError{}
		verr.add("role", "Role is required")
		return nil, verr
	}

	if err := s.ensureSeeded(ctx); err != nil {
		return nil, s.storageError(ctx, "assign role", err)
	}

	if _, err := s.store.FindByName(ctx, roleName); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, s.storageError(ctx, "assign role", err)
	}

	user, err = s.users.SetRole(ctx, userID, roleName)
	if errors.Is(err, users.ErrNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, s.storageError(ctx, "assign role", err)
	}

	event := audit.NewEvent(ctx, audit.EventTypeUserRoleChange, audit.EventStatusSuccess)
	event.ResourceType = audit.ResourceTypeUser
	event.ResourceID = user.ID
	event.ResourceName = user.Email
	event.Changes = &audit.ChangeDetails{After: map[string]string{"role": roleName}}
	s.logAudit(ctx, event)

	return user, nil
}

// storageError logs an unexpected persistence failure and wraps it for the caller
func (s *Service) storageError(ctx context.Context, op string, err error) error {
	var serr *StorageError
	if errors.As(err, &serr) {
		return err
	}
	observability.FromContext(ctx).WithError(err).WithField("operation", op).Error("Role storage failure")
	return &StorageError{Op: op, Err: err}
}

func (s *Service) logAudit(ctx context.Context, event *audit.AuditEvent) {
	if err := s.audit.Log(ctx, event); err != nil {
		observability.FromContext(ctx).WithError(err).
			WithField("event_type", event.EventType).
			Warn("Failed to record audit event")
	}
}

// finish records the outcome of an operation on its span and in metrics
func (s *Service) finish(span trace.Span, op string, err error) {
	defer span.End()

	outcome := outcomeOf(err)
	s.metrics.RecordRoleOperation(op, outcome)
	span.SetAttributes(attribute.String("rbac.outcome", outcome))
	if errors.Is(err, ErrStorageFailure) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrValidationFailed):
		return "validation_failed"
	case errors.Is(err, ErrDuplicateName):
		return "duplicate_name"
	case errors.Is(err, ErrUserNotFound), errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrSystemRoleImmutable):
		return "system_role_immutable"
	case errors.Is(err, ErrRoleInUse):
		return "role_in_use"
	default:
		return "storage_failure"
	}
}
