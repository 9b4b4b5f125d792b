package events

import "github.com/google/uuid"

const StreamTypeContact = "contact"

const (
	TypeContactCreated = "contact.created"
	TypeContactUpdated = "contact.updated"
	TypeContactDeleted = "contact.deleted"

	TypeAddressAdded   = "contact.address.added"
	TypeAddressUpdated = "contact.address.updated"
	TypeAddressRemoved = "contact.address.removed"

	TypePhoneAdded   = "contact.phone.added"
	TypePhoneRemoved = "contact.phone.removed"

	TypeEmailAdded   = "contact.email.added"
	TypeEmailRemoved = "contact.email.removed"
)

const (
	ContactKindPerson  = "person"
	ContactKindCompany = "company"
)

type ContactCreated struct {
	ID          uuid.UUID `json:"id"`
	Kind        string    `json:"kind"`
	FirstName   string    `json:"first_name,omitempty"`
	LastName    string    `json:"last_name,omitempty"`
	CompanyName string    `json:"company_name,omitempty"`
}

type ContactUpdated struct {
	FirstName   *string `json:"first_name,omitempty"`
	LastName    *string `json:"last_name,omitempty"`
	CompanyName *string `json:"company_name,omitempty"`
}

type AddressAdded struct {
	AddressID  uuid.UUID `json:"address_id"`
	Kind       string    `json:"kind,omitempty"`
	Line1      string    `json:"line1"`
	Line2      string    `json:"line2,omitempty"`
	City       string    `json:"city,omitempty"`
	Region     string    `json:"region,omitempty"`
	PostalCode string    `json:"postal_code,omitempty"`
	Country    string    `json:"country,omitempty"`
}

type AddressUpdated struct {
	AddressID  uuid.UUID `json:"address_id"`
	Kind       *string   `json:"kind,omitempty"`
	Line1      *string   `json:"line1,omitempty"`
	Line2      *string   `json:"line2,omitempty"`
	City       *string   `json:"city,omitempty"`
	Region     *string   `json:"region,omitempty"`
	PostalCode *string   `json:"postal_code,omitempty"`
	Country    *string   `json:"country,omitempty"`
}

type AddressRemoved struct {
	AddressID uuid.UUID `json:"address_id"`
}

type PhoneAdded struct {
	PhoneID uuid.UUID `json:"phone_id"`
	Number  string    `json:"number"`
	Kind    string    `json:"kind,omitempty"`
	Primary bool      `json:"primary,omitempty"`
}

type PhoneRemoved struct {
	PhoneID uuid.UUID `json:"phone_id"`
}

type EmailAdded struct {
	EmailID uuid.UUID `json:"email_id"`
	Address string    `json:"address"`
	Kind    string    `json:"kind,omitempty"`
	Primary bool      `json:"primary,omitempty"`
}

type EmailRemoved struct {
	EmailID uuid.UUID `json:"email_id"`
}

// EntityLinked is the shared junction payload. The source side of the link
// is the event's own stream; the payload names the other side. The same
// shape serves every "<family>.<relation>.linked" event type.
type EntityLinked struct {
	TargetType string    `json:"target_type"`
	TargetID   uuid.UUID `json:"target_id"`
	Kind       string    `json:"kind,omitempty"`
}

type EntityUnlinked struct {
	TargetType string    `json:"target_type"`
	TargetID   uuid.UUID `json:"target_id"`
	Kind       string    `json:"kind,omitempty"`
}
