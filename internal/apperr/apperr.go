// Package apperr defines the closed set of failures that component operations
// return. The HTTP layer maps each Kind to a status code; nothing else needs to
// inspect driver or transport errors.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindRefused
	KindInvalidID
	KindNotFound
	KindUnavailable
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindRefused:
		return "refused"
	case KindInvalidID:
		return "invalid_id"
	case KindNotFound:
		return "not_found"
	case KindUnavailable:
		return "unavailable"
	default:
		return "internal"
	}
}

// Status returns the HTTP status class for the kind.
func (k Kind) Status() int {
	switch k {
	case KindValidation:
		return http.StatusUnprocessableEntity
	case KindRefused, KindInvalidID:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Machine-readable reasons.
const (
	ReasonInvalidPayload    = "invalid_payload"
	ReasonInsufficientStock = "insufficient_stock"
	ReasonReasonRequired    = "reason_required"
	ReasonProductReferenced = "product_referenced"
	ReasonDuplicateCode     = "duplicate_code"
	ReasonInvalidIdentifier = "invalid_identifier"
	ReasonNotFound          = "not_found"
	ReasonNoEntries         = "no_entries"
	ReasonNoFields          = "no_fields"
	ReasonStoreAuthFailed   = "store_auth_failed"
	ReasonStoreUnreachable  = "store_unreachable"
	ReasonUnauthorized      = "unauthorized"
	ReasonInternal          = "internal_error"
)

type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

type Error struct {
	Kind    Kind
	Reason  string
	Message string
	Fields  []FieldError
	Err     error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Message)
	for i, f := range e.Fields {
		if i == 0 {
			b.WriteString(": ")
		} else {
			b.WriteString("; ")
		}
		b.WriteString(f.Field + " " + f.Message)
	}
	if e.Err != nil {
		b.WriteString(": " + e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

func Validation(fields ...FieldError) *Error {
	return &Error{Kind: KindValidation, Reason: ReasonInvalidPayload, Message: "validation failed", Fields: fields}
}

func Field(field, format string, args ...any) FieldError {
	return FieldError{Field: field, Message: fmt.Sprintf(format, args...)}
}

func Refused(reason, message string) *Error {
	return &Error{Kind: KindRefused, Reason: reason, Message: message}
}

func InvalidID(what string) *Error {
	return &Error{Kind: KindInvalidID, Reason: ReasonInvalidIdentifier, Message: "invalid " + what}
}

func NotFound(message string) *Error {
	return &Error{Kind: KindNotFound, Reason: ReasonNotFound, Message: message}
}

func Unavailable(reason, message string, err error) *Error {
	return &Error{Kind: KindUnavailable, Reason: reason, Message: message, Err: err}
}

func Internal(message string, err error) *Error {
	return &Error{Kind: KindInternal, Reason: ReasonInternal, Message: message, Err: err}
}

// As extracts an *Error from err's chain.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// Is reports whether err carries the given kind and, when reason is non-empty,
// the given reason.
func Is(err error, kind Kind, reason string) bool {
	e, ok := As(err)
	if !ok {
		return false
	}
	return e.Kind == kind && (reason == "" || e.Reason == reason)
}

// Collector accumulates field errors while validating a payload.
type Collector struct {
	fields []FieldError
}

func (c *Collector) Add(field, format string, args ...any) {
	c.fields = append(c.fields, Field(field, format, args...))
}

func (c *Collector) Err() error {
	if len(c.fields) == 0 {
		return nil
	}
	return Validation(c.fields...)
}
