package rbac

import (
	"time"
)

// Resource names a category of protected objects
type Resource string

const (
	ResourceUser     Resource = "user"
	ResourceSession  Resource = "session"
	ResourceProject  Resource = "project"
	ResourceContent  Resource = "content"
	ResourceSettings Resource = "settings"
	ResourceRole     Resource = "role"
)

// Action names an operation on a resource
type Action string

const (
	ActionCreate      Action = "create"
	ActionRead        Action = "read"
	ActionUpdate      Action = "update"
	ActionDelete      Action = "delete"
	ActionBan         Action = "ban"
	ActionImpersonate Action = "impersonate"
	ActionRevoke      Action = "revoke"
	ActionShare       Action = "share"
	ActionPublish     Action = "publish"
)

// Permission grants a set of actions on one resource
type Permission struct {
	Resource Resource `json:"resource"`
	Actions  []Action `json:"actions"`
}

// Role is a named bundle of permissions assignable to users
type Role struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	Description *string      `json:"description"`
	IsSystem    bool         `json:"isSystem"`
	Permissions []Permission `json:"permissions"`
	CreatedAt   time.Time    `json:"createdAt"`
	UpdatedAt   time.Time    `json:"updatedAt"`
}

// RoleInput is the caller-supplied part of a role for create and update
type RoleInput struct {
	Name        string       `json:"name"`
	Description *string      `json:"description,omitempty"`
	Permissions []Permission `json:"permissions"`
}

// PermissionSet is a resolved grant used for authorization decisions
type PermissionSet map[Resource]map[Action]struct{}

// NewPermissionSet builds a set from permission lists
func NewPermissionSet(lists ...[]Permission) PermissionSet {
	s := PermissionSet{}
	for _, perms := range lists {
		s.Add(perms...)
	}
	return s
}

// Add merges permissions into the set
func (s PermissionSet) Add(perms ...Permission) {
	for _, p := range perms {
		actions, ok := s[p.Resource]
		if !ok {
			actions = make(map[Action]struct{}, len(p.Actions))
			s[p.Resource] = actions
		}
		for _, a := range p.Actions {
			actions[a] = struct{}{}
		}
	}
}

// Allows reports whether the set grants action on resource
func (s PermissionSet) Allows(resource Resource, action Action) bool {
	_, ok := s[resource][action]
	return ok
}

// CheckRequest is the body of an authorization check
type CheckRequest struct {
	Role     string   `json:"role"`
	Resource Resource `json:"resource"`
	Action   Action   `json:"action"`
}

// CheckResult is the answer to a CheckRequest
type CheckResult struct {
	Allowed bool `json:"allowed"`
}
