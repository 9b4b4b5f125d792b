package services

import (
	"context"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/solumhq/casedesk/modules/org/domain/events"
	"github.com/solumhq/casedesk/modules/org/infrastructure/persistence"
	"github.com/solumhq/casedesk/pkg/composables"
	"github.com/solumhq/casedesk/pkg/eventstore"
	"github.com/solumhq/casedesk/pkg/scope"
	"github.com/solumhq/casedesk/pkg/serrors"
)

var (
	ErrParentInactive = serrors.NewError(
		"ORG_PARENT_INACTIVE",
		"parent organization is inactive or deleted",
		"Organizations.Errors.ParentInactive",
	)
	ErrInvalidSlug = serrors.NewError(
		"ORG_INVALID_SLUG",
		"organization slug must be lowercase alphanumeric",
		"Organizations.Errors.InvalidSlug",
	)
)

type CreateOrganizationParams struct {
	ParentID *uuid.UUID
	Name     string
	Slug     string
	Reason   string
}

type UpdateOrganizationParams struct {
	Name   *string
	Reason string
}

type CreateUnitParams struct {
	OrganizationID uuid.UUID
	Name           string
	Kind           string
}

// OrgService is the write side of the organization tree. Every mutation is
// an event append; the projection handler rebuilds the read model in the
// same transaction.
type OrgService struct {
	store *eventstore.Store
	orgs  *persistence.OrgRepository
	log   *logrus.Logger
}

func NewOrgService(store *eventstore.Store, orgs *persistence.OrgRepository, log *logrus.Logger) *OrgService {
	return &OrgService{store: store, orgs: orgs, log: log}
}

// Create appends organization.created. The materialized path is the parent's
// path extended by the slug; a root organization's path is the slug alone.
// Parent liveness is checked here for a fast failure and re-checked by the
// projection handler inside the append transaction.
func (s *OrgService) Create(ctx context.Context, params CreateOrganizationParams) (uuid.UUID, *eventstore.AppendResult, error) {
	tenant, err := composables.UseTenant(ctx)
	if err != nil {
		return uuid.Nil, nil, err
	}

	if _, err := scope.Parse(params.Slug); err != nil {
		return uuid.Nil, nil, ErrInvalidSlug.WithTemplateData(map[string]string{"slug": params.Slug})
	}

	var path scope.Path
	if params.ParentID != nil {
		parent, err := s.orgs.GetByID(ctx, *params.ParentID)
		if err != nil {
			return uuid.Nil, nil, err
		}
		if !parent.Active() {
			return uuid.Nil, nil, ErrParentInactive.WithTemplateData(map[string]string{"parent_id": parent.ID.String()})
		}
		path = parent.Path.Child(params.Slug)
	} else {
		path = scope.Path(params.Slug)
	}

	id := uuid.New()
	res, err := s.append(ctx, tenant.ID, id, events.TypeOrganizationCreated, events.OrganizationCreated{
		ID:       id,
		ParentID: params.ParentID,
		Path:     path,
		Name:     params.Name,
		Slug:     params.Slug,
	}, params.Reason)
	if err != nil {
		return uuid.Nil, nil, err
	}
	return id, res, nil
}

func (s *OrgService) Update(ctx context.Context, id uuid.UUID, params UpdateOrganizationParams) (*eventstore.AppendResult, error) {
	tenant, err := composables.UseTenant(ctx)
	if err != nil {
		return nil, err
	}
	if _, err := s.orgs.GetByID(ctx, id); err != nil {
		return nil, err
	}
	return s.append(ctx, tenant.ID, id, events.TypeOrganizationUpdated, events.OrganizationUpdated{
		Name: params.Name,
	}, params.Reason)
}

func (s *OrgService) Activate(ctx context.Context, id uuid.UUID, reason string) (*eventstore.AppendResult, error) {
	tenant, err := composables.UseTenant(ctx)
	if err != nil {
		return nil, err
	}
	if _, err := s.orgs.GetByID(ctx, id); err != nil {
		return nil, err
	}
	return s.append(ctx, tenant.ID, id, events.TypeOrganizationActivated, nil, reason)
}

func (s *OrgService) Deactivate(ctx context.Context, id uuid.UUID, reason string) (*eventstore.AppendResult, error) {
	tenant, err := composables.UseTenant(ctx)
	if err != nil {
		return nil, err
	}
	if _, err := s.orgs.GetByID(ctx, id); err != nil {
		return nil, err
	}
	return s.append(ctx, tenant.ID, id, events.TypeOrganizationDeactivated, events.OrganizationDeactivated{
		Reason: reason,
	}, reason)
}

func (s *OrgService) Delete(ctx context.Context, id uuid.UUID, reason string) (*eventstore.AppendResult, error) {
	tenant, err := composables.UseTenant(ctx)
	if err != nil {
		return nil, err
	}
	if _, err := s.orgs.GetByID(ctx, id); err != nil {
		return nil, err
	}
	return s.append(ctx, tenant.ID, id, events.TypeOrganizationDeleted, nil, reason)
}

func (s *OrgService) CreateUnit(ctx context.Context, params CreateUnitParams) (uuid.UUID, *eventstore.AppendResult, error) {
	tenant, err := composables.UseTenant(ctx)
	if err != nil {
		return uuid.Nil, nil, err
	}
	org, err := s.orgs.GetByID(ctx, params.OrganizationID)
	if err != nil {
		return uuid.Nil, nil, err
	}
	if !org.Active() {
		return uuid.Nil, nil, ErrParentInactive.WithTemplateData(map[string]string{"parent_id": org.ID.String()})
	}

	id := uuid.New()
	res, err := s.appendToStream(ctx, tenant.ID, id, events.StreamTypeUnit, events.TypeUnitCreated, events.UnitCreated{
		ID:             id,
		OrganizationID: params.OrganizationID,
		Name:           params.Name,
		Kind:           params.Kind,
	}, "")
	if err != nil {
		return uuid.Nil, nil, err
	}
	return id, res, nil
}

func (s *OrgService) UpdateUnit(ctx context.Context, id uuid.UUID, name, kind *string) (*eventstore.AppendResult, error) {
	tenant, err := composables.UseTenant(ctx)
	if err != nil {
		return nil, err
	}
	return s.appendToStream(ctx, tenant.ID, id, events.StreamTypeUnit, events.TypeUnitUpdated, events.UnitUpdated{
		Name: name,
		Kind: kind,
	}, "")
}

func (s *OrgService) DeleteUnit(ctx context.Context, id uuid.UUID, reason string) (*eventstore.AppendResult, error) {
	tenant, err := composables.UseTenant(ctx)
	if err != nil {
		return nil, err
	}
	return s.appendToStream(ctx, tenant.ID, id, events.StreamTypeUnit, events.TypeUnitDeleted, nil, reason)
}

func (s *OrgService) append(ctx context.Context, tenantID, streamID uuid.UUID, eventType string, data any, reason string) (*eventstore.AppendResult, error) {
	return s.appendToStream(ctx, tenantID, streamID, events.StreamTypeOrganization, eventType, data, reason)
}

func (s *OrgService) appendToStream(ctx context.Context, tenantID, streamID uuid.UUID, streamType, eventType string, data any, reason string) (*eventstore.AppendResult, error) {
	meta := eventstore.Metadata{Reason: reason}
	if actor, err := composables.UseActor(ctx); err == nil {
		meta.ActorID = actor.ID
	}

	res, err := s.store.Append(ctx, eventstore.AppendParams{
		TenantID:   tenantID,
		StreamID:   streamID,
		StreamType: streamType,
		EventType:  eventType,
		Data:       data,
		Metadata:   meta,
	})
	if err != nil {
		return nil, err
	}
	if res.ProjectionPending {
		s.log.WithFields(logrus.Fields{
			"event_id":   res.EventID,
			"event_type": eventType,
			"stream_id":  streamID,
		}).Warn("event stored but projection failed")
	}
	return res, nil
}
