package handlers

import (
	"context"
	"fmt"

	"github.com/solumhq/casedesk/modules/person/domain/events"
	"github.com/solumhq/casedesk/pkg/eventstore"
	"github.com/solumhq/casedesk/pkg/repo"
)

// ContactHandler maintains the contacts projection and its child tables.
// Child additions are keyed by ids carried in the payload so replays
// converge; removals are hard deletes.
type ContactHandler struct{}

func NewContactHandler() *ContactHandler {
	return &ContactHandler{}
}

func (h *ContactHandler) StreamType() string {
	return events.StreamTypeContact
}

func (h *ContactHandler) Apply(ctx context.Context, tx repo.Tx, evt *eventstore.Event) error {
	switch evt.EventType {
	case events.TypeContactCreated:
		return h.applyCreated(ctx, tx, evt)
	case events.TypeContactUpdated:
		return h.applyUpdated(ctx, tx, evt)
	case events.TypeContactDeleted:
		_, err := tx.Exec(ctx, `
UPDATE contacts SET deleted_at = COALESCE(deleted_at, $2), updated_at = $2
 WHERE id = $1`,
			evt.StreamID, evt.CreatedAt)
		return err

	case events.TypeAddressAdded:
		return h.applyAddressAdded(ctx, tx, evt)
	case events.TypeAddressUpdated:
		return h.applyAddressUpdated(ctx, tx, evt)
	case events.TypeAddressRemoved:
		var payload events.AddressRemoved
		if err := evt.Unmarshal(&payload); err != nil {
			return fmt.Errorf("contact.address.removed: decode: %w", err)
		}
		_, err := tx.Exec(ctx,
			`DELETE FROM contact_addresses WHERE id = $1 AND contact_id = $2`,
			payload.AddressID, evt.StreamID)
		return err

	case events.TypePhoneAdded:
		var payload events.PhoneAdded
		if err := evt.Unmarshal(&payload); err != nil {
			return fmt.Errorf("contact.phone.added: decode: %w", err)
		}
		_, err := tx.Exec(ctx, `
INSERT INTO contact_phones (id, contact_id, number, kind, is_primary, created_at)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (id) DO NOTHING`,
			payload.PhoneID, evt.StreamID, payload.Number, payload.Kind, payload.Primary, evt.CreatedAt)
		return err
	case events.TypePhoneRemoved:
		var payload events.PhoneRemoved
		if err := evt.Unmarshal(&payload); err != nil {
			return fmt.Errorf("contact.phone.removed: decode: %w", err)
		}
		_, err := tx.Exec(ctx,
			`DELETE FROM contact_phones WHERE id = $1 AND contact_id = $2`,
			payload.PhoneID, evt.StreamID)
		return err

	case events.TypeEmailAdded:
		var payload events.EmailAdded
		if err := evt.Unmarshal(&payload); err != nil {
			return fmt.Errorf("contact.email.added: decode: %w", err)
		}
		_, err := tx.Exec(ctx, `
INSERT INTO contact_emails (id, contact_id, address, kind, is_primary, created_at)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (id) DO NOTHING`,
			payload.EmailID, evt.StreamID, payload.Address, payload.Kind, payload.Primary, evt.CreatedAt)
		return err
	case events.TypeEmailRemoved:
		var payload events.EmailRemoved
		if err := evt.Unmarshal(&payload); err != nil {
			return fmt.Errorf("contact.email.removed: decode: %w", err)
		}
		_, err := tx.Exec(ctx,
			`DELETE FROM contact_emails WHERE id = $1 AND contact_id = $2`,
			payload.EmailID, evt.StreamID)
		return err

	default:
		return fmt.Errorf("contact handler: unknown event type %q", evt.EventType)
	}
}

func (h *ContactHandler) applyCreated(ctx context.Context, tx repo.Tx, evt *eventstore.Event) error {
	var payload events.ContactCreated
	if err := evt.Unmarshal(&payload); err != nil {
		return fmt.Errorf("contact.created: decode: %w", err)
	}
	_, err := tx.Exec(ctx, `
INSERT INTO contacts (id, tenant_id, kind, first_name, last_name, company_name, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
ON CONFLICT (id) DO NOTHING`,
		payload.ID, evt.TenantID, payload.Kind, payload.FirstName, payload.LastName, payload.CompanyName, evt.CreatedAt)
	return err
}

func (h *ContactHandler) applyUpdated(ctx context.Context, tx repo.Tx, evt *eventstore.Event) error {
	var payload events.ContactUpdated
	if err := evt.Unmarshal(&payload); err != nil {
		return fmt.Errorf("contact.updated: decode: %w", err)
	}
	_, err := tx.Exec(ctx, `
UPDATE contacts
   SET first_name = COALESCE($2, first_name),
       last_name = COALESCE($3, last_name),
       company_name = COALESCE($4, company_name),
       updated_at = $5
 WHERE id = $1 AND deleted_at IS NULL`,
		evt.StreamID, payload.FirstName, payload.LastName, payload.CompanyName, evt.CreatedAt)
	return err
}

func (h *ContactHandler) applyAddressAdded(ctx context.Context, tx repo.Tx, evt *eventstore.Event) error {
	var payload events.AddressAdded
	if err := evt.Unmarshal(&payload); err != nil {
		return fmt.Errorf("contact.address.added: decode: %w", err)
	}
	_, err := tx.Exec(ctx, `
INSERT INTO contact_addresses (id, contact_id, kind, line1, line2, city, region, postal_code, country, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $10)
ON CONFLICT (id) DO NOTHING`,
		payload.AddressID, evt.StreamID, payload.Kind, payload.Line1, payload.Line2,
		payload.City, payload.Region, payload.PostalCode, payload.Country, evt.CreatedAt)
	return err
}

func (h *ContactHandler) applyAddressUpdated(ctx context.Context, tx repo.Tx, evt *eventstore.Event) error {
	var payload events.AddressUpdated
	if err := evt.Unmarshal(&payload); err != nil {
		return fmt.Errorf("contact.address.updated: decode: %w", err)
	}
	_, err := tx.Exec(ctx, `
UPDATE contact_addresses
   SET kind = COALESCE($3, kind),
       line1 = COALESCE($4, line1),
       line2 = COALESCE($5, line2),
       city = COALESCE($6, city),
       region = COALESCE($7, region),
       postal_code = COALESCE($8, postal_code),
       country = COALESCE($9, country),
       updated_at = $10
 WHERE id = $1 AND contact_id = $2`,
		payload.AddressID, evt.StreamID, payload.Kind, payload.Line1, payload.Line2,
		payload.City, payload.Region, payload.PostalCode, payload.Country, evt.CreatedAt)
	return err
}
