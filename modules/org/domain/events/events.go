package events

import (
	"github.com/google/uuid"

	"github.com/solumhq/casedesk/pkg/scope"
)

const (
	StreamTypeOrganization = "organization"
	StreamTypeUnit         = "organization_unit"
)

const (
	TypeOrganizationCreated     = "organization.created"
	TypeOrganizationUpdated     = "organization.updated"
	TypeOrganizationActivated   = "organization.activated"
	TypeOrganizationDeactivated = "organization.deactivated"
	TypeOrganizationDeleted     = "organization.deleted"

	TypeUnitCreated = "organization.unit.created"
	TypeUnitUpdated = "organization.unit.updated"
	TypeUnitDeleted = "organization.unit.deleted"
)

type OrganizationCreated struct {
	ID       uuid.UUID  `json:"id"`
	ParentID *uuid.UUID `json:"parent_id,omitempty"`
	Path     scope.Path `json:"path"`
	Name     string     `json:"name"`
	Slug     string     `json:"slug"`
}

// OrganizationUpdated carries only the changed fields; nil means "keep the
// current value". Replaying an older update therefore never regresses data
// written by a newer one.
type OrganizationUpdated struct {
	Name *string `json:"name,omitempty"`
}

type OrganizationDeactivated struct {
	Reason string `json:"reason,omitempty"`
}

type UnitCreated struct {
	ID             uuid.UUID `json:"id"`
	OrganizationID uuid.UUID `json:"organization_id"`
	Name           string    `json:"name"`
	Kind           string    `json:"kind,omitempty"`
}

type UnitUpdated struct {
	Name *string `json:"name,omitempty"`
	Kind *string `json:"kind,omitempty"`
}
