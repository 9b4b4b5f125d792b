package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/solumhq/casedesk/pkg/composables"
	"github.com/solumhq/casedesk/pkg/serrors"
)

var ErrContactNotFound = serrors.NewError(
	"PERSON_CONTACT_NOT_FOUND",
	"contact not found",
	"Contacts.Errors.NotFound",
)

type Contact struct {
	ID          uuid.UUID
	TenantID    uuid.UUID
	Kind        string
	FirstName   string
	LastName    string
	CompanyName string
	CreatedAt   time.Time
	UpdatedAt   time.Time
	DeletedAt   *time.Time
}

// Link is one row of the shared junction, read back for display.
type Link struct {
	TenantID   uuid.UUID
	SourceType string
	SourceID   uuid.UUID
	TargetType string
	TargetID   uuid.UUID
	Kind       string
	CreatedAt  time.Time
}

type ContactRepository struct{}

func NewContactRepository() *ContactRepository {
	return &ContactRepository{}
}

func (r *ContactRepository) GetByID(ctx context.Context, id uuid.UUID) (*Contact, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	var c Contact
	err = tx.QueryRow(ctx, `
SELECT id, tenant_id, kind, first_name, last_name, company_name, created_at, updated_at, deleted_at
  FROM contacts WHERE id = $1 AND deleted_at IS NULL`, id).
		Scan(&c.ID, &c.TenantID, &c.Kind, &c.FirstName, &c.LastName, &c.CompanyName,
			&c.CreatedAt, &c.UpdatedAt, &c.DeletedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrContactNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// LinksFrom returns the junction rows whose source is the given entity.
func (r *ContactRepository) LinksFrom(ctx context.Context, sourceType string, sourceID uuid.UUID) ([]*Link, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := tx.Query(ctx, `
SELECT tenant_id, source_type, source_id, target_type, target_id, kind, created_at
  FROM entity_links WHERE source_type = $1 AND source_id = $2
 ORDER BY created_at`, sourceType, sourceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var links []*Link
	for rows.Next() {
		var l Link
		if err := rows.Scan(&l.TenantID, &l.SourceType, &l.SourceID,
			&l.TargetType, &l.TargetID, &l.Kind, &l.CreatedAt); err != nil {
			return nil, err
		}
		links = append(links, &l)
	}
	return links, rows.Err()
}
