package core

import "github.com/pkg/errors"

// Kind classifies an error so the transport layer can map it to a response.
type Kind uint8

const (
	KindUnknown Kind = iota
	KindUnauthenticated
	KindForbidden
	KindNotFound
	KindConflict
	KindInvalidInput
	KindUpstreamUnavailable
	KindRateLimited
)

var kindNames = map[Kind]string{
	KindUnknown:             "unknown",
	KindUnauthenticated:     "unauthenticated",
	KindForbidden:           "forbidden",
	KindNotFound:            "not_found",
	KindConflict:            "conflict",
	KindInvalidInput:        "invalid_input",
	KindUpstreamUnavailable: "upstream_unavailable",
	KindRateLimited:         "rate_limited",
}

func (k Kind) String() string { return kindNames[k] }

// Error is a domain error of a known Kind. Packages declare them as sentinels.
type Error struct {
	Kind Kind
	Msg  string
}

func NewError(kind Kind, msg string) error {
	return &Error{Kind: kind, Msg: msg}
}

func (err *Error) Error() string { return err.Msg }

// KindOf returns the Kind of the first *Error found in err's chain.
func KindOf(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	var ve *ValidationError
	if errors.As(err, &ve) {
		return KindInvalidInput
	}
	return KindUnknown
}

// FieldError is used to indicate an error with a specific struct field.
type FieldError struct {
	Field string
	Error string
}

type ValidationError struct {
	Err    error
	Fields []FieldError
}

func NewValidationError(err error, flds ...FieldError) error {
	return &ValidationError{err, flds}
}

func (err ValidationError) Error() string {
	if err.Err == nil {
		return "validation failed"
	}
	return err.Err.Error()
}

func (err ValidationError) Unwrap() error { return err.Err }

type shutdown struct {
	message string
}

func NewShutdownError(msg string) error {
	return &shutdown{message: msg}
}

func (s shutdown) Error() string {
	return s.message
}

func IsShutdown(err error) bool {
	_, ok := errors.Cause(err).(*shutdown)
	return ok
}
