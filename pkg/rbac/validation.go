package rbac

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// Validation messages, keyed in ValidationError.Fields by field path
const (
	msgNameTooShort     = "Role name must be at least 2 characters"
	msgPermissionsEmpty = "At least one permission is required"
	msgResourceRequired = "Resource name is required"
	msgResourceUnknown  = "Unknown resource"
	msgActionsEmpty     = "At least one action is required"
	msgActionRequired   = "Action name is required"
	msgActionUnknown    = "Unknown action for resource"
	minRoleNameLength   = 2
)

// Validate checks in against the catalog and returns a normalized copy:
// names are trimmed, a blank description becomes nil, and repeated actions
// within one permission are collapsed.
func (c *Catalog) Validate(in RoleInput) (RoleInput, error) {
	verr := &ValidationError{}
	out := RoleInput{Name: strings.TrimSpace(in.Name)}

	if utf8.RuneCountInString(out.Name) < minRoleNameLength {
		verr.add("name", msgNameTooShort)
	}

	if in.Description != nil {
		if d := strings.TrimSpace(*in.Description); d != "" {
			out.Description = &d
		}
	}

	if len(in.Permissions) == 0 {
		verr.add("permissions", msgPermissionsEmpty)
	}

	out.Permissions = make([]Permission, 0, len(in.Permissions))
	for i, p := range in.Permissions {
		prefix := fmt.Sprintf("permissions.%d", i)
		resource := Resource(strings.TrimSpace(string(p.Resource)))

		resourceKnown := false
		switch {
		case resource == "":
			verr.add(prefix+".resource", msgResourceRequired)
		case !c.HasResource(resource):
			verr.add(prefix+".resource", msgResourceUnknown)
		default:
			resourceKnown = true
		}

		if len(p.Actions) == 0 {
			verr.add(prefix+".actions", msgActionsEmpty)
		}

		seen := make(map[Action]struct{}, len(p.Actions))
		actions := make([]Action, 0, len(p.Actions))
		for j, a := range p.Actions {
			action := Action(strings.TrimSpace(string(a)))
			field := fmt.Sprintf("%s.actions.%d", prefix, j)
			if action == "" {
				verr.add(field, msgActionRequired)
				continue
			}
			if resourceKnown && !c.Has(resource, action) {
				verr.add(field, msgActionUnknown)
				continue
			}
			if _, dup := seen[action]; dup {
				continue
			}
			seen[action] = struct{}{}
			actions = append(actions, action)
		}

		out.Permissions = append(out.Permissions, Permission{Resource: resource, Actions: actions})
	}

	if !verr.empty() {
		return RoleInput{}, verr
	}
	return out, nil
}
