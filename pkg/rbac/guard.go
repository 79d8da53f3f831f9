package rbac

import (
	"context"
	"errors"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/platinummonkey/rolegate/pkg/auth"
	"github.com/platinummonkey/rolegate/pkg/observability"
)

// RoleFinder looks up a stored role by name
type RoleFinder interface {
	FindByName(ctx context.Context, name string) (*Role, error)
}

// Guard decides access for a role. Built-in roles resolve to their fixed
// grants; custom roles resolve to their stored permissions.
type Guard struct {
	roles     RoleFinder
	adminRole string
	builtin   map[string]PermissionSet
	cache     *lru.LRU[string, PermissionSet]
	metrics   *observability.Metrics
}

// GuardOption configures a Guard
type GuardOption func(*guardOptions)

type guardOptions struct {
	adminRole   string
	adminExtras []Permission
	cacheSize   int
	cacheTTL    time.Duration
	metrics     *observability.Metrics
}

// WithAdminRole overrides the administrator role name
func WithAdminRole(name string) GuardOption {
	return func(o *guardOptions) { o.adminRole = name }
}

// WithAdminExtraGrants adds grants outside the catalog to the administrator
func WithAdminExtraGrants(perms []Permission) GuardOption {
	return func(o *guardOptions) { o.adminExtras = perms }
}

// WithRoleCache caches custom role grants. A size of zero disables caching.
func WithRoleCache(size int, ttl time.Duration) GuardOption {
	return func(o *guardOptions) {
		o.cacheSize = size
		o.cacheTTL = ttl
	}
}

// WithGuardMetrics records authorization decisions and cache hits
func WithGuardMetrics(m *observability.Metrics) GuardOption {
	return func(o *guardOptions) { o.metrics = m }
}

// DefaultAdminExtraGrants are administrator statements with no catalog entry
func DefaultAdminExtraGrants() []Permission {
	return []Permission{
		{Resource: ResourceUser, Actions: []Action{"list", "set-role", "set-password", "get"}},
		{Resource: ResourceSession, Actions: []Action{"list", "delete"}},
	}
}

// NewGuard creates a guard over catalog and roles
func NewGuard(catalog *Catalog, roles RoleFinder, opts ...GuardOption) *Guard {
	o := guardOptions{
		adminRole:   RoleAdmin,
		adminExtras: DefaultAdminExtraGrants(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	builtin := make(map[string]PermissionSet)
	for _, def := range DefaultRoles(catalog, o.adminRole) {
		builtin[def.Name] = NewPermissionSet(def.Permissions)
	}
	builtin[o.adminRole] = NewPermissionSet(catalog.FullGrant(), o.adminExtras)

	g := &Guard{
		roles:     roles,
		adminRole: o.adminRole,
		builtin:   builtin,
		metrics:   o.metrics,
	}
	if o.cacheSize > 0 {
		g.cache = lru.NewLRU[string, PermissionSet](o.cacheSize, nil, o.cacheTTL)
	}
	return g
}

// AdminRole returns the administrator role name
func (g *Guard) AdminRole() string {
	return g.adminRole
}

// IsBuiltin reports whether name is one of the built-in roles
func (g *Guard) IsBuiltin(name string) bool {
	_, ok := g.builtin[name]
	return ok
}

// RequireAdministrator admits only callers holding the administrator role
func (g *Guard) RequireAdministrator(caller *auth.Caller) error {
	if caller == nil {
		return ErrUnauthenticated
	}
	if caller.Role != g.adminRole {
		return ErrForbidden
	}
	return nil
}

// Grants resolves the permission set of a role. Unknown roles have no grants.
func (g *Guard) Grants(ctx context.Context, role string) (PermissionSet, error) {
	if set, ok := g.builtin[role]; ok {
		return set, nil
	}

	if g.cache != nil {
		if set, ok := g.cache.Get(role); ok {
			g.metrics.RecordRoleCache(true)
			return set, nil
		}
		g.metrics.RecordRoleCache(false)
	}

	stored, err := g.roles.FindByName(ctx, role)
	switch {
	case errors.Is(err, ErrNotFound):
		stored = nil
	case err != nil:
		return nil, err
	}

	set := PermissionSet{}
	if stored != nil {
		set = NewPermissionSet(stored.Permissions)
	}
	if g.cache != nil {
		g.cache.Add(role, set)
	}
	return set, nil
}

// IsAllowed reports whether role may perform action on resource
func (g *Guard) IsAllowed(ctx context.Context, role string, resource Resource, action Action) (bool, error) {
	set, err := g.Grants(ctx, role)
	if err != nil {
		return false, err
	}
	allowed := set.Allows(resource, action)
	g.metrics.RecordAuthorization(string(resource), allowed)
	return allowed, nil
}

// Invalidate drops cached grants for the named roles
func (g *Guard) Invalidate(names ...string) {
	if g.cache == nil {
		return
	}
	for _, name := range names {
		g.cache.Remove(name)
	}
}
