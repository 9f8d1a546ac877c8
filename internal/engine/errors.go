package engine

import (
	"errors"
	"fmt"
)

// Kind classifies every non-success outcome of an engine operation. The
// transport layer maps kinds to HTTP statuses in exactly one place.
type Kind int

const (
	KindInternal Kind = iota
	KindMalformedID
	KindNotFound
	KindUnauthorized
	KindValidation
	KindConflict
)

// Error is the typed outcome for every authorization and validation failure.
// These resolve inside the engine; only store and resolver failures pass
// through as KindInternal.
type Error struct {
	Kind    Kind
	Message string
	cause   error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.cause
}

// KindOf extracts the kind from any error returned by an engine operation.
// Errors from outside the engine classify as internal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

func malformed(what string) *Error {
	return &Error{Kind: KindMalformedID, Message: what + " ID malformed"}
}

func notFound(what string) *Error {
	return &Error{Kind: KindNotFound, Message: what + " not found"}
}

func unauthorized(msg string) *Error {
	return &Error{Kind: KindUnauthorized, Message: msg}
}

func validation(msg string) *Error {
	return &Error{Kind: KindValidation, Message: msg}
}

func conflict(msg string) *Error {
	return &Error{Kind: KindConflict, Message: msg}
}

func internal(err error) *Error {
	// The generic message keeps storage and oracle details off the wire.
	return &Error{Kind: KindInternal, Message: "internal error", cause: fmt.Errorf("engine: %w", err)}
}
