// Package rbac provides role-based access control for rolegate.
//
// # Overview
//
// A role is a named bundle of permissions. A permission grants a set of
// actions on one resource. Users hold exactly one role, referenced by name.
// The package covers the permission catalog, role persistence, the
// authorization guard, and the role management service with its HTTP
// surface.
//
// # Catalog
//
// The catalog is the fixed universe of resources and the actions valid for
// each of them:
//
//	user:     create, read, update, delete, ban, impersonate
//	session:  read, revoke
//	project:  create, read, update, delete, share
//	content:  create, read, update, delete, publish
//	settings: read, update
//	role:     create, read, update, delete
//
// Role input is validated against it. Unknown resources and actions are
// reported per field path, for example "permissions.0.actions.1".
//
// # System Roles
//
// Four roles are seeded with isSystem set and can never be changed or
// deleted:
//
//	admin      full catalog plus configured extra grants
//	user       create/read/update on projects and content, read settings
//	editor     manage and publish content, read projects and settings
//	moderator  ban users, moderate content, read settings
//
// Seeding runs on first use and relies on the unique index on roles.name,
// so concurrent or repeated seeding leaves exactly one row per role.
//
// # Authorization
//
// Guard.IsAllowed resolves a role to a PermissionSet and checks membership.
// Built-in roles resolve from their definitions, custom roles from storage
// through a small expiring cache. The administrator's set is the catalog's
// full grant, so no string special-casing happens at decision time.
//
//	guard := rbac.NewGuard(rbac.DefaultCatalog(), store)
//	ok, err := guard.IsAllowed(ctx, "editor", rbac.ResourceContent, rbac.ActionPublish)
//
// # HTTP API
//
// All routes live under /rbac and require an administrator session:
//
//	GET    /rbac/roles             list roles (seeds first)
//	POST   /rbac/roles             create a custom role
//	GET    /rbac/roles/{id}        fetch a role
//	PUT    /rbac/roles/{id}        update a custom role
//	DELETE /rbac/roles/{id}        delete an unused custom role
//	GET    /rbac/roles/{id}/audit  audit events for a role, newest first
//	GET    /rbac/permissions       the catalog
//	POST   /rbac/check             {"role","resource","action"} -> {"allowed"}
//	GET    /rbac/users             users newest first, ?role= filter
//	PUT    /rbac/users/{id}/role   {"role"} assign a role
//
// Missing sessions get 401 and non-administrators get 403 before any
// storage access.
package rbac
