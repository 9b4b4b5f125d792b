package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/solumhq/casedesk/pkg/scope"
)

const StreamTypeInvitation = "invitation"

const (
	TypeInvitationCreated  = "invitation.created"
	TypeInvitationSent     = "invitation.sent"
	TypeInvitationAccepted = "invitation.accepted"
	TypeInvitationRevoked  = "invitation.revoked"
	TypeInvitationExpired  = "invitation.expired"
)

// InvitationCreated opens an invitation: on acceptance the invitee gets the
// named role within the named scope, so creating one is a delegation and is
// checked like any other grant.
type InvitationCreated struct {
	ID        uuid.UUID  `json:"id"`
	Email     string     `json:"email"`
	RoleID    uuid.UUID  `json:"role_id"`
	Scope     scope.Path `json:"scope"`
	ExpiresAt time.Time  `json:"expires_at"`
}

type InvitationAccepted struct {
	UserID uuid.UUID `json:"user_id"`
}

type InvitationRevoked struct {
	Reason string `json:"reason,omitempty"`
}
