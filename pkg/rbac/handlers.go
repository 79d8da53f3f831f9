package rbac

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/rolegate/pkg/httputil"
	"github.com/platinummonkey/rolegate/pkg/users"
)

// Error codes specific to role management
const (
	CodeDuplicateName       = "duplicate_name"
	CodeSystemRoleImmutable = "system_role_immutable"
	CodeRoleInUse           = "role_in_use"
)

const (
	msgAuthenticationRequired = "Authentication required"
	msgAdministratorRequired  = "Administrator role required"
	msgRoleNotFound           = "Role not found"
	msgUserNotFound           = "User not found"
	msgValidationFailed       = "Invalid role data"
	msgDuplicateOnCreate      = "A role with this name already exists"
	msgDuplicateOnUpdate      = "Another role with this name already exists"
	msgSystemRoleUpdate       = "System roles cannot be modified"
	msgSystemRoleDelete       = "System roles cannot be deleted"
	msgRoleInUse              = "Cannot delete a role that is assigned to users"
)

// Handlers exposes the role management service over HTTP
type Handlers struct {
	service *Service
	gate    *AdminGate
}

// NewHandlers creates new RBAC handlers
func NewHandlers(service *Service, gate *AdminGate) *Handlers {
	return &Handlers{service: service, gate: gate}
}

// RegisterRoutes mounts the /rbac routes on router. mw runs ahead of the
// administrator gate, so session resolution belongs there unless the parent
// router already does it.
func (h *Handlers) RegisterRoutes(router *mux.Router, mw ...mux.MiddlewareFunc) {
	sub := router.PathPrefix("/rbac").Subrouter()
	sub.Use(mw...)
	sub.Use(h.gate.Handler)

	// Role management
	sub.HandleFunc("/roles", h.ListRoles).Methods(http.MethodGet)
	sub.Handle("/roles", jsonBody(h.CreateRole)).Methods(http.MethodPost)
	sub.HandleFunc("/roles/{id}", h.GetRole).Methods(http.MethodGet)
	sub.Handle("/roles/{id}", jsonBody(h.UpdateRole)).Methods(http.MethodPut)
	sub.HandleFunc("/roles/{id}", h.DeleteRole).Methods(http.MethodDelete)
	sub.HandleFunc("/roles/{id}/audit", h.RoleHistory).Methods(http.MethodGet)

	// Catalog and checks
	sub.HandleFunc("/permissions", h.ListPermissions).Methods(http.MethodGet)
	sub.Handle("/check", jsonBody(h.CheckPermission)).Methods(http.MethodPost)

	// User assignments
	sub.HandleFunc("/users", h.ListUsers).Methods(http.MethodGet)
	sub.Handle("/users/{id}/role", jsonBody(h.AssignUserRole)).Methods(http.MethodPut)
}

func jsonBody(fn http.HandlerFunc) http.Handler {
	return httputil.ContentTypeMiddleware(fn)
}

// ListRoles returns all roles
func (h *Handlers) ListRoles(w http.ResponseWriter, r *http.Request) {
	roles, err := h.service.ListRoles(r.Context())
	if err != nil {
		writeServiceError(w, err, "Failed to fetch roles", "", "")
		return
	}
	httputil.WriteSuccess(w, roles)
}

// GetRole returns one role
func (h *Handlers) GetRole(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}

	role, err := h.service.GetRole(r.Context(), id)
	if err != nil {
		writeServiceError(w, err, "Failed to fetch role", "", "")
		return
	}
	httputil.WriteSuccess(w, role)
}

// RoleHistory returns the audit trail of one role
func (h *Handlers) RoleHistory(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}
	limit, err := parseNonNegative(r, "limit")
	if err != nil {
		httputil.WriteBadRequest(w, "limit must be a non-negative integer")
		return
	}

	events, err := h.service.RoleHistory(r.Context(), id, limit)
	if err != nil {
		writeServiceError(w, err, "Failed to fetch role history", "", "")
		return
	}
	httputil.WriteSuccess(w, events)
}

// CreateRole creates a new custom role
func (h *Handlers) CreateRole(w http.ResponseWriter, r *http.Request) {
	var req RoleInput
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	role, err := h.service.CreateRole(r.Context(), req)
	if err != nil {
		writeServiceError(w, err, "Failed to create role", msgDuplicateOnCreate, "")
		return
	}
	httputil.WriteCreated(w, role)
}

// UpdateRole updates a custom role
func (h *Handlers) UpdateRole(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}

	var req RoleInput
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	role, err := h.service.UpdateRole(r.Context(), id, req)
	if err != nil {
		writeServiceError(w, err, "Failed to update role", msgDuplicateOnUpdate, msgSystemRoleUpdate)
		return
	}
	httputil.WriteSuccess(w, role)
}

// DeleteRole deletes a custom role
func (h *Handlers) DeleteRole(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}

	if err := h.service.DeleteRole(r.Context(), id); err != nil {
		writeServiceError(w, err, "Failed to delete role", "", msgSystemRoleDelete)
		return
	}
	httputil.WriteNoContent(w)
}

type catalogResponse struct {
	Resources []CatalogEntry `json:"resources"`
}

// ListPermissions returns the permission catalog
func (h *Handlers) ListPermissions(w http.ResponseWriter, r *http.Request) {
	httputil.WriteSuccess(w, catalogResponse{Resources: h.service.Catalog().Entries()})
}

// CheckPermission answers whether a role may perform an action
func (h *Handlers) CheckPermission(w http.ResponseWriter, r *http.Request) {
	var req CheckRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	result, err := h.service.Check(r.Context(), req)
	if err != nil {
		writeServiceError(w, err, "Failed to check permission", "", "")
		return
	}
	httputil.WriteSuccess(w, result)
}

// ListUsers returns users newest first, filtered by ?role= when given
func (h *Handlers) ListUsers(w http.ResponseWriter, r *http.Request) {
	opts := users.ListOptions{Role: httputil.ParseQueryString(r, "role", "")}

	var err error
	if opts.Limit, err = parseNonNegative(r, "limit"); err != nil {
		httputil.WriteBadRequest(w, "limit must be a non-negative integer")
		return
	}
	if opts.Offset, err = parseNonNegative(r, "offset"); err != nil {
		httputil.WriteBadRequest(w, "offset must be a non-negative integer")
		return
	}

	list, err := h.service.ListUsers(r.Context(), opts)
	if err != nil {
		writeServiceError(w, err, "Failed to fetch users", "", "")
		return
	}
	if list == nil {
		list = []*users.User{}
	}
	httputil.WriteSuccess(w, list)
}

type assignRoleRequest struct {
	Role string `json:"role"`
}

// AssignUserRole changes the role a user holds
func (h *Handlers) AssignUserRole(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}

	var req assignRoleRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	user, err := h.service.AssignUserRole(r.Context(), id, req.Role)
	if err != nil {
		writeServiceError(w, err, "Failed to assign role", "", "")
		return
	}
	httputil.WriteSuccess(w, user)
}

func parseNonNegative(r *http.Request, key string) (int, error) {
	raw := httputil.ParseQueryString(r, key, "")
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, errors.New("invalid")
	}
	return n, nil
}

// writeServiceError maps a service error to its HTTP response. Storage
// failures carry only the generic message.
func writeServiceError(w http.ResponseWriter, err error, generic, duplicateMsg, systemMsg string) {
	var verr *ValidationError
	switch {
	case errors.As(err, &verr):
		httputil.WriteFieldErrors(w, msgValidationFailed, verr.Fields)
	case errors.Is(err, ErrDuplicateName):
		httputil.WriteConflict(w, CodeDuplicateName, duplicateMsg)
	case errors.Is(err, ErrUserNotFound):
		httputil.WriteNotFound(w, msgUserNotFound)
	case errors.Is(err, ErrNotFound):
		httputil.WriteNotFound(w, msgRoleNotFound)
	case errors.Is(err, ErrSystemRoleImmutable):
		httputil.WriteErrorResponse(w, http.StatusForbidden, CodeSystemRoleImmutable, systemMsg)
	case errors.Is(err, ErrRoleInUse):
		httputil.WriteErrorResponse(w, http.StatusForbidden, CodeRoleInUse, msgRoleInUse)
	case errors.Is(err, ErrUnauthenticated):
		httputil.WriteUnauthorized(w, msgAuthenticationRequired)
	case errors.Is(err, ErrForbidden):
		httputil.WriteForbidden(w, msgAdministratorRequired)
	default:
		httputil.WriteInternalError(w, generic)
	}
}
