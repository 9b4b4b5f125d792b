package authz

import (
	"github.com/google/uuid"

	"github.com/solumhq/casedesk/pkg/scope"
)

// ScopeLevel says where a permission applies.
type ScopeLevel string

const (
	ScopeLevelGlobal       ScopeLevel = "global"
	ScopeLevelOrganization ScopeLevel = "organization"
)

// Permission is an atomic (resource, action) pair.
type Permission struct {
	ID          uuid.UUID
	Resource    string
	Action      string
	ScopeLevel  ScopeLevel
	RequiresMFA bool
}

// PermissionSet is an id-keyed set with cheap membership checks.
type PermissionSet map[uuid.UUID]Permission

func NewPermissionSet(perms ...Permission) PermissionSet {
	set := make(PermissionSet, len(perms))
	for _, p := range perms {
		set[p.ID] = p
	}
	return set
}

func (s PermissionSet) Has(id uuid.UUID) bool {
	_, ok := s[id]
	return ok
}

func (s PermissionSet) Add(p Permission) {
	s[p.ID] = p
}

func (s PermissionSet) IDs() []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	return ids
}

// Grant is what an actor is attempting to confer: a set of permissions bound
// to a scope. Role creation, role permission changes, and assignments all
// reduce to one or more Grants before any event is appended.
type Grant struct {
	PermissionIDs []uuid.UUID
	Scope         scope.Path
}

// ActorAuthority is the acting user's aggregated authority as of a point in
// time: everything they hold across roles, assignments, and access grants.
type ActorAuthority struct {
	UserID      uuid.UUID
	Permissions PermissionSet
	Scopes      []scope.Path
}

// HasGlobalScope reports whether the actor holds the unrestricted marker.
func (a *ActorAuthority) HasGlobalScope() bool {
	for _, s := range a.Scopes {
		if s.IsGlobal() {
			return true
		}
	}
	return false
}
