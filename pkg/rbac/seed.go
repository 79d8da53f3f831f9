package rbac

// Built-in role names
const (
	RoleAdmin     = "admin"
	RoleUser      = "user"
	RoleEditor    = "editor"
	RoleModerator = "moderator"
)

// RoleDefinition describes a built-in role
type RoleDefinition struct {
	Name        string
	Description string
	Permissions []Permission
}

// DefaultRoles returns the system roles seeded into every deployment.
// The administrator is stored under adminRole (RoleAdmin when empty) and
// holds the catalog's full grant.
func DefaultRoles(catalog *Catalog, adminRole string) []RoleDefinition {
	if adminRole == "" {
		adminRole = RoleAdmin
	}
	defs := []RoleDefinition{
		{
			Name:        adminRole,
			Description: "Full access to all resources",
			Permissions: catalog.FullGrant(),
		},
		{
			Name:        RoleUser,
			Description: "Regular user with limited access",
			Permissions: []Permission{
				{Resource: ResourceProject, Actions: []Action{ActionCreate, ActionRead, ActionUpdate}},
				{Resource: ResourceContent, Actions: []Action{ActionCreate, ActionRead, ActionUpdate}},
				{Resource: ResourceSettings, Actions: []Action{ActionRead}},
			},
		},
		{
			Name:        RoleEditor,
			Description: "Can manage content but not users",
			Permissions: []Permission{
				{Resource: ResourceProject, Actions: []Action{ActionRead}},
				{Resource: ResourceContent, Actions: []Action{ActionCreate, ActionRead, ActionUpdate, ActionPublish}},
				{Resource: ResourceSettings, Actions: []Action{ActionRead}},
			},
		},
		{
			Name:        RoleModerator,
			Description: "Can moderate content and ban users",
			Permissions: []Permission{
				{Resource: ResourceUser, Actions: []Action{ActionBan}},
				{Resource: ResourceContent, Actions: []Action{ActionRead, ActionUpdate, ActionDelete}},
				{Resource: ResourceSettings, Actions: []Action{ActionRead}},
			},
		},
	}

	out := defs[:1]
	for _, def := range defs[1:] {
		if def.Name != adminRole {
			out = append(out, def)
		}
	}
	return out
}
