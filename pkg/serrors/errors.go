package serrors

import "fmt"

// BaseError is a coded error that can be matched with errors.Is and carries
// optional template data for message rendering at the presentation boundary.
type BaseError struct {
	Code         string
	Message      string
	LocaleKey    string
	TemplateData map[string]string
}

func NewError(code, message, localeKey string) *BaseError {
	return &BaseError{
		Code:      code,
		Message:   message,
		LocaleKey: localeKey,
	}
}

func (e *BaseError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// WithTemplateData returns a copy of the error carrying the given data, so
// the sentinel value itself stays immutable.
func (e *BaseError) WithTemplateData(data map[string]string) *BaseError {
	clone := *e
	clone.TemplateData = data
	return &clone
}

// Is matches any BaseError with the same code, so wrapped copies created by
// WithTemplateData still compare equal to their sentinel.
func (e *BaseError) Is(target error) bool {
	other, ok := target.(*BaseError)
	if !ok {
		return false
	}
	return other.Code == e.Code
}
