package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/solumhq/casedesk/pkg/scope"
)

const (
	StreamTypeAccessGrant   = "access_grant"
	StreamTypeImpersonation = "impersonation_session"
)

const (
	TypeGrantCreated = "access.grant.created"
	TypeGrantRevoked = "access.grant.revoked"

	TypeImpersonationStarted = "access.impersonation.started"
	TypeImpersonationEnded   = "access.impersonation.ended"
)

// GrantCreated confers visibility over an organization subtree for a
// validity window. Unlike a role assignment it carries no permissions.
type GrantCreated struct {
	ID         uuid.UUID  `json:"id"`
	UserID     uuid.UUID  `json:"user_id"`
	Scope      scope.Path `json:"scope"`
	ValidFrom  time.Time  `json:"valid_from"`
	ValidUntil *time.Time `json:"valid_until,omitempty"`
}

type GrantRevoked struct {
	Reason string `json:"reason,omitempty"`
}

type ImpersonationStarted struct {
	ID             uuid.UUID `json:"id"`
	ImpersonatorID uuid.UUID `json:"impersonator_id"`
	SubjectUserID  uuid.UUID `json:"subject_user_id"`
	Reason         string    `json:"reason"`
	ExpiresAt      time.Time `json:"expires_at"`
}

type ImpersonationEnded struct {
	Reason string `json:"reason,omitempty"`
}
