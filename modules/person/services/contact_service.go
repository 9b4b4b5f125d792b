package services

import (
	"context"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/solumhq/casedesk/modules/person/domain/events"
	"github.com/solumhq/casedesk/modules/person/infrastructure/persistence"
	"github.com/solumhq/casedesk/pkg/composables"
	"github.com/solumhq/casedesk/pkg/eventstore"
	"github.com/solumhq/casedesk/pkg/serrors"
)

var ErrInvalidContactKind = serrors.NewError(
	"PERSON_INVALID_KIND",
	"contact kind must be person or company",
	"Contacts.Errors.InvalidKind",
)

type CreateContactParams struct {
	Kind        string
	FirstName   string
	LastName    string
	CompanyName string
}

type UpdateContactParams struct {
	FirstName   *string
	LastName    *string
	CompanyName *string
}

type LinkParams struct {
	// Relation names the link event family, e.g. "contact.organization";
	// the appended event type is Relation + ".linked".
	Relation   string
	TargetType string
	TargetID   uuid.UUID
	Kind       string
}

type ContactService struct {
	store    *eventstore.Store
	contacts *persistence.ContactRepository
	log      *logrus.Logger
}

func NewContactService(store *eventstore.Store, contacts *persistence.ContactRepository, log *logrus.Logger) *ContactService {
	return &ContactService{store: store, contacts: contacts, log: log}
}

func (s *ContactService) Create(ctx context.Context, params CreateContactParams) (uuid.UUID, *eventstore.AppendResult, error) {
	tenant, err := composables.UseTenant(ctx)
	if err != nil {
		return uuid.Nil, nil, err
	}
	if params.Kind != events.ContactKindPerson && params.Kind != events.ContactKindCompany {
		return uuid.Nil, nil, ErrInvalidContactKind.WithTemplateData(map[string]string{"kind": params.Kind})
	}

	id := uuid.New()
	res, err := s.append(ctx, tenant.ID, id, events.TypeContactCreated, events.ContactCreated{
		ID:          id,
		Kind:        params.Kind,
		FirstName:   params.FirstName,
		LastName:    params.LastName,
		CompanyName: params.CompanyName,
	})
	if err != nil {
		return uuid.Nil, nil, err
	}
	return id, res, nil
}

func (s *ContactService) Update(ctx context.Context, id uuid.UUID, params UpdateContactParams) (*eventstore.AppendResult, error) {
	return s.appendExisting(ctx, id, events.TypeContactUpdated, events.ContactUpdated{
		FirstName:   params.FirstName,
		LastName:    params.LastName,
		CompanyName: params.CompanyName,
	})
}

func (s *ContactService) Delete(ctx context.Context, id uuid.UUID) (*eventstore.AppendResult, error) {
	return s.appendExisting(ctx, id, events.TypeContactDeleted, nil)
}

func (s *ContactService) AddAddress(ctx context.Context, contactID uuid.UUID, params events.AddressAdded) (*eventstore.AppendResult, error) {
	if params.AddressID == uuid.Nil {
		params.AddressID = uuid.New()
	}
	return s.appendExisting(ctx, contactID, events.TypeAddressAdded, params)
}

func (s *ContactService) UpdateAddress(ctx context.Context, contactID uuid.UUID, params events.AddressUpdated) (*eventstore.AppendResult, error) {
	return s.appendExisting(ctx, contactID, events.TypeAddressUpdated, params)
}

func (s *ContactService) RemoveAddress(ctx context.Context, contactID, addressID uuid.UUID) (*eventstore.AppendResult, error) {
	return s.appendExisting(ctx, contactID, events.TypeAddressRemoved, events.AddressRemoved{AddressID: addressID})
}

func (s *ContactService) AddPhone(ctx context.Context, contactID uuid.UUID, params events.PhoneAdded) (*eventstore.AppendResult, error) {
	if params.PhoneID == uuid.Nil {
		params.PhoneID = uuid.New()
	}
	return s.appendExisting(ctx, contactID, events.TypePhoneAdded, params)
}

func (s *ContactService) RemovePhone(ctx context.Context, contactID, phoneID uuid.UUID) (*eventstore.AppendResult, error) {
	return s.appendExisting(ctx, contactID, events.TypePhoneRemoved, events.PhoneRemoved{PhoneID: phoneID})
}

func (s *ContactService) AddEmail(ctx context.Context, contactID uuid.UUID, params events.EmailAdded) (*eventstore.AppendResult, error) {
	if params.EmailID == uuid.Nil {
		params.EmailID = uuid.New()
	}
	return s.appendExisting(ctx, contactID, events.TypeEmailAdded, params)
}

func (s *ContactService) RemoveEmail(ctx context.Context, contactID, emailID uuid.UUID) (*eventstore.AppendResult, error) {
	return s.appendExisting(ctx, contactID, events.TypeEmailRemoved, events.EmailRemoved{EmailID: emailID})
}

// Link appends a junction event on the contact's stream; the shared link
// handler materializes it.
func (s *ContactService) Link(ctx context.Context, contactID uuid.UUID, params LinkParams) (*eventstore.AppendResult, error) {
	return s.appendExisting(ctx, contactID, params.Relation+".linked", events.EntityLinked{
		TargetType: params.TargetType,
		TargetID:   params.TargetID,
		Kind:       params.Kind,
	})
}

func (s *ContactService) Unlink(ctx context.Context, contactID uuid.UUID, params LinkParams) (*eventstore.AppendResult, error) {
	return s.appendExisting(ctx, contactID, params.Relation+".unlinked", events.EntityUnlinked{
		TargetType: params.TargetType,
		TargetID:   params.TargetID,
		Kind:       params.Kind,
	})
}

func (s *ContactService) appendExisting(ctx context.Context, contactID uuid.UUID, eventType string, data any) (*eventstore.AppendResult, error) {
	tenant, err := composables.UseTenant(ctx)
	if err != nil {
		return nil, err
	}
	if _, err := s.contacts.GetByID(ctx, contactID); err != nil {
		return nil, err
	}
	return s.append(ctx, tenant.ID, contactID, eventType, data)
}

func (s *ContactService) append(ctx context.Context, tenantID, streamID uuid.UUID, eventType string, data any) (*eventstore.AppendResult, error) {
	meta := eventstore.Metadata{}
	if actor, err := composables.UseActor(ctx); err == nil {
		meta.ActorID = actor.ID
	}
	res, err := s.store.Append(ctx, eventstore.AppendParams{
		TenantID:   tenantID,
		StreamID:   streamID,
		StreamType: events.StreamTypeContact,
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
