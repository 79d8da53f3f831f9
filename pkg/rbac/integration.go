package rbac

import (
	"context"
	"database/sql"
	"fmt"
	"sort"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/rolegate/pkg/audit"
	"github.com/platinummonkey/rolegate/pkg/config"
	"github.com/platinummonkey/rolegate/pkg/observability"
)

// Manager wires the RBAC components together from configuration
type Manager struct {
	db       *sql.DB
	driver   string
	logger   *logrus.Logger
	store    *SQLStore
	guard    *Guard
	service  *Service
	gate     *AdminGate
	handlers *Handlers
}

// ManagerDeps are the collaborators a Manager needs beyond the database
type ManagerDeps struct {
	Users   UserDirectory
	Audit   audit.Logger
	History AuditHistory
	Metrics *observability.Metrics
	Logger  *logrus.Logger
}

// NewManager creates a new RBAC manager
func NewManager(db *sql.DB, driver string, cfg config.RBACConfig, deps ManagerDeps) *Manager {
	if deps.Audit == nil {
		deps.Audit = audit.NoOpLogger()
	}
	if deps.Logger == nil {
		deps.Logger = logrus.StandardLogger()
	}

	catalog := DefaultCatalog()
	store := NewSQLStore(db)

	guardOpts := []GuardOption{
		WithRoleCache(cfg.RoleCacheSize, cfg.RoleCacheTTL),
		WithGuardMetrics(deps.Metrics),
	}
	if cfg.AdminRole != "" {
		guardOpts = append(guardOpts, WithAdminRole(cfg.AdminRole))
	}
	if cfg.AdminExtraGrants != nil {
		guardOpts = append(guardOpts, WithAdminExtraGrants(GrantsFromConfig(cfg.AdminExtraGrants)))
	}
	guard := NewGuard(catalog, store, guardOpts...)

	service := NewService(store, deps.Users, catalog, guard,
		WithAuditLogger(deps.Audit),
		WithAuditHistory(deps.History),
		WithMetrics(deps.Metrics),
	)
	gate := NewAdminGate(guard, deps.Audit, deps.Metrics)

	return &Manager{
		db:       db,
		driver:   driver,
		logger:   deps.Logger,
		store:    store,
		guard:    guard,
		service:  service,
		gate:     gate,
		handlers: NewHandlers(service, gate),
	}
}

// Initialize applies migrations and seeds the built-in roles
func (m *Manager) Initialize(ctx context.Context) error {
	if err := RunMigrations(ctx, m.db, m.driver, m.logger); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	if _, err := m.service.SeedDefaultRoles(ctx); err != nil {
		return fmt.Errorf("failed to seed built-in roles: %w", err)
	}

	return nil
}

// RegisterRoutes registers RBAC routes with a router
func (m *Manager) RegisterRoutes(router *mux.Router, mw ...mux.MiddlewareFunc) {
	m.handlers.RegisterRoutes(router, mw...)
}

// Service returns the role management service
func (m *Manager) Service() *Service {
	return m.service
}

// Guard returns the authorization guard
func (m *Manager) Guard() *Guard {
	return m.guard
}

// GrantsFromConfig converts a resource → actions map into permissions ordered by resource
func GrantsFromConfig(grants map[string][]string) []Permission {
	resources := make([]string, 0, len(grants))
	for r := range grants {
		resources = append(resources, r)
	}
	sort.Strings(resources)

	perms := make([]Permission, 0, len(resources))
	for _, r := range resources {
		actions := make([]Action, 0, len(grants[r]))
		for _, a := range grants[r] {
			actions = append(actions, Action(a))
		}
		perms = append(perms, Permission{Resource: Resource(r), Actions: actions})
	}
	return perms
}
