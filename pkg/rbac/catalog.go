package rbac

// CatalogEntry lists the actions valid for a resource
type CatalogEntry struct {
	Resource Resource `json:"resource"`
	Actions  []Action `json:"actions"`
}

// Catalog is the fixed, ordered universe of resources and their actions
type Catalog struct {
	entries []CatalogEntry
	index   map[Resource]map[Action]struct{}
}

// NewCatalog builds a catalog. Entry order is preserved.
func NewCatalog(entries ...CatalogEntry) *Catalog {
	c := &Catalog{index: make(map[Resource]map[Action]struct{}, len(entries))}
	for _, e := range entries {
		actions := append([]Action(nil), e.Actions...)
		c.entries = append(c.entries, CatalogEntry{Resource: e.Resource, Actions: actions})
		set := make(map[Action]struct{}, len(actions))
		for _, a := range actions {
			set[a] = struct{}{}
		}
		c.index[e.Resource] = set
	}
	return c
}

// DefaultCatalog returns the resources and actions rolegate protects
func DefaultCatalog() *Catalog {
	return NewCatalog(
		CatalogEntry{ResourceUser, []Action{ActionCreate, ActionRead, ActionUpdate, ActionDelete, ActionBan, ActionImpersonate}},
		CatalogEntry{ResourceSession, []Action{ActionRead, ActionRevoke}},
		CatalogEntry{ResourceProject, []Action{ActionCreate, ActionRead, ActionUpdate, ActionDelete, ActionShare}},
		CatalogEntry{ResourceContent, []Action{ActionCreate, ActionRead, ActionUpdate, ActionDelete, ActionPublish}},
		CatalogEntry{ResourceSettings, []Action{ActionRead, ActionUpdate}},
		CatalogEntry{ResourceRole, []Action{ActionCreate, ActionRead, ActionUpdate, ActionDelete}},
	)
}

// Resources returns resource names in catalog order
func (c *Catalog) Resources() []Resource {
	out := make([]Resource, len(c.entries))
	for i, e := range c.entries {
		out[i] = e.Resource
	}
	return out
}

// Actions returns the actions valid for resource, false if it is unknown
func (c *Catalog) Actions(resource Resource) ([]Action, bool) {
	for _, e := range c.entries {
		if e.Resource == resource {
			return append([]Action(nil), e.Actions...), true
		}
	}
	return nil, false
}

// HasResource reports whether resource is in the catalog
func (c *Catalog) HasResource(resource Resource) bool {
	_, ok := c.index[resource]
	return ok
}

// Has reports whether action is valid for resource
func (c *Catalog) Has(resource Resource, action Action) bool {
	_, ok := c.index[resource][action]
	return ok
}

// Entries returns a copy of the whole catalog
func (c *Catalog) Entries() []CatalogEntry {
	out := make([]CatalogEntry, len(c.entries))
	for i, e := range c.entries {
		out[i] = CatalogEntry{Resource: e.Resource, Actions: append([]Action(nil), e.Actions...)}
	}
	return out
}

// FullGrant returns every action on every resource as a permission list
func (c *Catalog) FullGrant() []Permission {
	out := make([]Permission, len(c.entries))
	for i, e := range c.entries {
		out[i] = Permission{Resource: e.Resource, Actions: append([]Action(nil), e.Actions...)}
	}
	return out
}
