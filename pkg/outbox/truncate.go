package outbox

import (
	"unicode/utf8"
)

// truncateError shortens a dispatch error before it lands in the queue
// entry's last_error column. Engine responses can be arbitrarily long;
// the stored text is for operators, not for parsing.
func truncateError(err error, maxBytes int) string {
	if err == nil {
		return ""
	}
	return truncateString(err.Error(), maxBytes)
}

// truncateString clips s to maxBytes without splitting a UTF-8 sequence.
func truncateString(s string, maxBytes int) string {
	if maxBytes <= 0 {
		return ""
	}
	if len(s) <= maxBytes {
		return s
	}
	b := []byte(s[:maxBytes])
	for len(b) > 0 && !utf8.Valid(b) {
		b = b[:len(b)-1]
	}
	if len(b) == 0 {
		return ""
	}
	return string(b)
}
