package handlers

import (
	"context"
	"fmt"
	"strings"

	"github.com/solumhq/casedesk/modules/person/domain/events"
	"github.com/solumhq/casedesk/pkg/eventstore"
	"github.com/solumhq/casedesk/pkg/repo"
)

// LinkHandler maintains the shared entity_links junction for every
// "*.linked" / "*.unlinked" event across all stream families. The source
// side is the event's own stream; the payload names the target. Unlinking
// is a hard delete: the log already preserves the history.
type LinkHandler struct{}

func NewLinkHandler() *LinkHandler {
	return &LinkHandler{}
}

func (h *LinkHandler) StreamType() string {
	return "entity_link"
}

func (h *LinkHandler) Apply(ctx context.Context, tx repo.Tx, evt *eventstore.Event) error {
	switch {
	case strings.HasSuffix(evt.EventType, ".linked"):
		var payload events.EntityLinked
		if err := evt.Unmarshal(&payload); err != nil {
			return fmt.Errorf("%s: decode: %w", evt.EventType, err)
		}
		_, err := tx.Exec(ctx, `
INSERT INTO entity_links (tenant_id, source_type, source_id, target_type, target_id, kind, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT DO NOTHING`,
			evt.TenantID, evt.StreamType, evt.StreamID, payload.TargetType, payload.TargetID, payload.Kind, evt.CreatedAt)
		return err

	case strings.HasSuffix(evt.EventType, ".unlinked"):
		var payload events.EntityUnlinked
		if err := evt.Unmarshal(&payload); err != nil {
			return fmt.Errorf("%s: decode: %w", evt.EventType, err)
		}
		_, err := tx.Exec(ctx, `
DELETE FROM entity_links
 WHERE source_type = $1 AND source_id = $2 AND target_type = $3 AND target_id = $4 AND kind = $5`,
			evt.StreamType, evt.StreamID, payload.TargetType, payload.TargetID, payload.Kind)
		return err

	default:
		return fmt.Errorf("link handler: unexpected event type %q", evt.EventType)
	}
}
