package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/solumhq/casedesk/pkg/scope"
)

const (
	StreamTypeUser       = "user"
	StreamTypeRole       = "role"
	StreamTypeAssignment = "role_assignment"
)

const (
	TypeUserCreated     = "user.created"
	TypeUserUpdated     = "user.updated"
	TypeUserActivated   = "user.activated"
	TypeUserDeactivated = "user.deactivated"
	TypeUserDeleted     = "user.deleted"

	TypeRoleCreated           = "role.created"
	TypeRoleUpdated           = "role.updated"
	TypeRoleDeleted           = "role.deleted"
	TypeRolePermissionGranted = "role.permission.granted"
	TypeRolePermissionRevoked = "role.permission.revoked"

	TypeAssignmentCreated = "role.assignment.created"
	TypeAssignmentRevoked = "role.assignment.revoked"
)

type UserCreated struct {
	ID          uuid.UUID `json:"id"`
	Email       string    `json:"email"`
	DisplayName string    `json:"display_name"`
}

// UserUpdated carries changed fields only; nil keeps the current value.
type UserUpdated struct {
	Email       *string `json:"email,omitempty"`
	DisplayName *string `json:"display_name,omitempty"`
}

type UserDeactivated struct {
	Reason string `json:"reason,omitempty"`
}

type RoleCreated struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
}

type RoleUpdated struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
}

type RolePermissionGranted struct {
	PermissionID uuid.UUID `json:"permission_id"`
}

type RolePermissionRevoked struct {
	PermissionID uuid.UUID `json:"permission_id"`
}

// AssignmentCreated binds a role to a user within a scope for a validity
// window. A zero ValidUntil means open-ended.
type AssignmentCreated struct {
	ID         uuid.UUID  `json:"id"`
	UserID     uuid.UUID  `json:"user_id"`
	RoleID     uuid.UUID  `json:"role_id"`
	Scope      scope.Path `json:"scope"`
	ValidFrom  time.Time  `json:"valid_from"`
	ValidUntil *time.Time `json:"valid_until,omitempty"`
}

type AssignmentRevoked struct {
	Reason string `json:"reason,omitempty"`
}
