package authz

import (
	"github.com/google/uuid"

	"github.com/solumhq/casedesk/pkg/scope"
	"github.com/solumhq/casedesk/pkg/serrors"
)

// Subset-only delegation: an actor may only grant authority they themselves
// hold. Both checks run before any event is appended; a violation is a
// structured rejection, never a stored fact.

var (
	ErrSubsetViolation = serrors.NewError(
		"AUTHZ_SUBSET_ONLY_VIOLATION",
		"permission is not held by the granting actor",
		"Authorization.SubsetOnlyViolation",
	)
	ErrScopeViolation = serrors.NewError(
		"AUTHZ_SCOPE_VIOLATION",
		"target scope is not contained in the granting actor's scopes",
		"Authorization.ScopeViolation",
	)
)

// Subset reports whether every required permission id is present in the
// available set. An empty required set always passes.
func Subset(required []uuid.UUID, available PermissionSet) bool {
	for _, id := range required {
		if !available.Has(id) {
			return false
		}
	}
	return true
}

// CheckDelegation verifies both delegation invariants for a grant. On
// violation it returns a coded error identifying the offending permission or
// scope.
func CheckDelegation(grant Grant, actor *ActorAuthority) error {
	for _, id := range grant.PermissionIDs {
		if !actor.Permissions.Has(id) {
			return ErrSubsetViolation.WithTemplateData(map[string]string{
				"permission_id": id.String(),
				"actor_id":      actor.UserID.String(),
			})
		}
	}

	if grant.Scope != "" && !scope.Contains(grant.Scope, actor.Scopes) {
		return ErrScopeViolation.WithTemplateData(map[string]string{
			"scope":    grant.Scope.String(),
			"actor_id": actor.UserID.String(),
		})
	}

	return nil
}
