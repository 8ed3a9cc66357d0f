package booking

import "errors"

// ErrorKind classifies business-rule violations so the transport layer can
// map them to a status code without inspecting messages.
type ErrorKind string

const (
	KindValidation  ErrorKind = "validation"
	KindNotFound    ErrorKind = "notFound"
	KindConflict    ErrorKind = "conflict"
	KindForbidden   ErrorKind = "forbidden"
	KindUnavailable ErrorKind = "unavailable"
)

// Error is a classified business error. The booking document is guaranteed
// untouched whenever one of these is returned.
type Error struct {
	Kind    ErrorKind
	Message string
}

func (e *Error) Error() string {
	return string(e.Kind) + ": " + e.Message
}

func NewValidationError(msg string) error  { return &Error{Kind: KindValidation, Message: msg} }
func NewNotFoundError(msg string) error    { return &Error{Kind: KindNotFound, Message: msg} }
func NewConflictError(msg string) error    { return &Error{Kind: KindConflict, Message: msg} }
func NewForbiddenError(msg string) error   { return &Error{Kind: KindForbidden, Message: msg} }
func NewUnavailableError(msg string) error { return &Error{Kind: KindUnavailable, Message: msg} }

// KindOf extracts the classification of an error, or KindUnavailable for
// anything unclassified (store failures surface as generic unavailability).
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnavailable
}
