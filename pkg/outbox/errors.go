package outbox

import (
	"fmt"

	"github.com/solumhq/casedesk/pkg/serrors"
)

var ErrInvalidConfig = serrors.NewError("OUTBOX_INVALID_CONFIG", "invalid relay configuration", "")

func invalidConfig(msg string, args ...any) error {
	return fmt.Errorf("%w: "+msg, append([]any{ErrInvalidConfig}, args...)...)
}
