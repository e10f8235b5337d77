package types

import "errors"

// StoreUnavailableError wraps a transient counter-store failure. The whole
// entity-creation workflow is safe to retry; a fresh number will be minted.
type StoreUnavailableError struct {
	cause error
}

func (e *StoreUnavailableError) Error() string {
	return "traceability: counter store unavailable: " + e.cause.Error()
}

func (e *StoreUnavailableError) Unwrap() error { return e.cause }

func NewStoreUnavailable(cause error) error { return &StoreUnavailableError{cause: cause} }

func IsStoreUnavailable(err error) bool {
	_, ok := errors.AsType[*StoreUnavailableError](err)
	return ok
}

// InvalidKeyError marks a caller bug: an empty counter scope key.
type InvalidKeyError struct {
	msg string
}

func (e *InvalidKeyError) Error() string { return "traceability: " + e.msg }

func NewInvalidKey(msg string) error { return &InvalidKeyError{msg: msg} }

func IsInvalidKey(err error) bool {
	_, ok := errors.AsType[*InvalidKeyError](err)
	return ok
}

// InvalidSourceError marks a caller bug: an unrecognized finding source.
type InvalidSourceError struct {
	source string
}

func (e *InvalidSourceError) Error() string {
	return "traceability: unknown finding source " + e.source
}

func NewInvalidSource(source string) error { return &InvalidSourceError{source: source} }

func IsInvalidSource(err error) bool {
	_, ok := errors.AsType[*InvalidSourceError](err)
	return ok
}

// MissingParentError marks a caller bug: a child-number operation invoked
// without the parent identifier it scopes under.
type MissingParentError struct {
	msg string
}

func (e *MissingParentError) Error() string { return "traceability: " + e.msg }

func NewMissingParent(msg string) error { return &MissingParentError{msg: msg} }

func IsMissingParent(err error) bool {
	_, ok := errors.AsType[*MissingParentError](err)
	return ok
}
