package authz

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solumhq/casedesk/pkg/scope"
)

func perm(resource, action string) Permission {
	return Permission{ID: uuid.New(), Resource: resource, Action: action, ScopeLevel: ScopeLevelOrganization}
}

func TestSubset(t *testing.T) {
	read := perm("cases", "read")
	write := perm("cases", "write")
	admin := perm("roles", "manage")

	available := NewPermissionSet(read, write)

	// empty required set always passes
	assert.True(t, Subset(nil, available))
	assert.True(t, Subset([]uuid.UUID{}, available))

	assert.True(t, Subset([]uuid.UUID{read.ID}, available))
	assert.True(t, Subset([]uuid.UUID{read.ID, write.ID}, available))

	// any absent element fails the whole check
	assert.False(t, Subset([]uuid.UUID{admin.ID}, available))
	assert.False(t, Subset([]uuid.UUID{read.ID, admin.ID}, available))
	assert.False(t, Subset([]uuid.UUID{read.ID}, NewPermissionSet()))
}

func TestCheckDelegation_SubsetViolation(t *testing.T) {
	held := perm("cases", "read")
	notHeld := perm("roles", "manage")

	actor := &ActorAuthority{
		UserID:      uuid.New(),
		Permissions: NewPermissionSet(held),
		Scopes:      []scope.Path{"root.acme"},
	}

	err := CheckDelegation(Grant{
		PermissionIDs: []uuid.UUID{held.ID, notHeld.ID},
		Scope:         "root.acme.west",
	}, actor)

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSubsetViolation)
}

func TestCheckDelegation_ScopeViolation(t *testing.T) {
	held := perm("cases", "read")
	actor := &ActorAuthority{
		UserID:      uuid.New(),
		Permissions: NewPermissionSet(held),
		Scopes:      []scope.Path{"root.acme.west"},
	}

	// broader than the actor's subtree
	err := CheckDelegation(Grant{
		PermissionIDs: []uuid.UUID{held.ID},
		Scope:         "root.acme",
	}, actor)

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrScopeViolation)
}

func TestCheckDelegation_Allowed(t *testing.T) {
	held := perm("cases", "read")
	actor := &ActorAuthority{
		UserID:      uuid.New(),
		Permissions: NewPermissionSet(held),
		Scopes:      []scope.Path{"root.acme"},
	}

	// equal scope
	require.NoError(t, CheckDelegation(Grant{PermissionIDs: []uuid.UUID{held.ID}, Scope: "root.acme"}, actor))
	// descendant scope
	require.NoError(t, CheckDelegation(Grant{PermissionIDs: []uuid.UUID{held.ID}, Scope: "root.acme.west.clinic1"}, actor))
	// empty scope skips the containment check (system-wide role path is nil)
	require.NoError(t, CheckDelegation(Grant{PermissionIDs: []uuid.UUID{held.ID}}, actor))
}

func TestCheckDelegation_GlobalActorScope(t *testing.T) {
	held := perm("cases", "read")
	actor := &ActorAuthority{
		UserID:      uuid.New(),
		Permissions: NewPermissionSet(held),
		Scopes:      []scope.Path{scope.Global},
	}

	require.True(t, actor.HasGlobalScope())
	require.NoError(t, CheckDelegation(Grant{PermissionIDs: []uuid.UUID{held.ID}, Scope: "root"}, actor))
}
