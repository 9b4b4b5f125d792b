package eventstore

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/solumhq/casedesk/pkg/serrors"
)

var (
	// ErrVersionConflict is returned when an explicit ExpectedVersion lost
	// the race, or when the bounded retry loop was exhausted.
	ErrVersionConflict = serrors.NewError("EVENTSTORE_VERSION_CONFLICT", "stream version already taken", "")

	// ErrEventNotFound is returned by admin operations on unknown event ids.
	ErrEventNotFound = serrors.NewError("EVENTSTORE_EVENT_NOT_FOUND", "event not found", "")

	// ErrInvalidAppend wraps structural validation failures; nothing durable
	// was created.
	ErrInvalidAppend = serrors.NewError("EVENTSTORE_INVALID_APPEND", "append request failed validation", "")
)

const uniqueViolationCode = "23505"

// isVersionCollision reports whether err is the uniqueness-constraint
// rejection on (stream_id, stream_type, stream_version).
func isVersionCollision(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == uniqueViolationCode && pgErr.ConstraintName == "domain_events_stream_version_key"
}
