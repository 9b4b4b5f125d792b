package eventstore

import (
	"regexp"

	"github.com/go-playground/validator/v10"

	"github.com/solumhq/casedesk/pkg/serrors"
)

// Event types follow a dotted taxonomy: at least two lowercase segments,
// e.g. "organization.created" or "role.permission.granted". Malformed types
// are rejected before anything durable is created.
var eventTypeRe = regexp.MustCompile(`^[a-z][a-z0-9_]*(\.[a-z][a-z0-9_]*)+$`)

var ErrInvalidEventType = serrors.NewError("EVENTSTORE_INVALID_EVENT_TYPE", "event type does not match taxonomy", "")

func ValidEventType(eventType string) bool {
	return eventTypeRe.MatchString(eventType)
}

// newValidate builds the validator used on AppendParams, with the taxonomy
// rule registered under the "event_taxonomy" tag.
func newValidate() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("event_taxonomy", func(fl validator.FieldLevel) bool {
		return ValidEventType(fl.Field().String())
	})
	return v
}
