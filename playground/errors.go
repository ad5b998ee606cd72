package playground

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a failed request.
type ErrorKind string

const (
	// KindMissingCredential: the provider key for the session's model is not
	// configured. Surfaced with a link to where it can be added.
	KindMissingCredential ErrorKind = "missing_credential"
	// KindUpstreamError: the provider answered with an explicit error payload.
	KindUpstreamError ErrorKind = "upstream_error"
	// KindTransportException: the call itself failed.
	KindTransportException ErrorKind = "transport_exception"
	// KindValidationNoop: the action was skipped. Logged, never surfaced.
	KindValidationNoop ErrorKind = "validation_noop"
)

var (
	ErrInvalidMessageIndex = errors.New("invalid message index")
	ErrInvalidChoiceIndex  = errors.New("invalid choice index")

	// Kind markers for errors.Is.
	ErrMissingCredential = &Error{Kind: KindMissingCredential}
	ErrUpstream          = &Error{Kind: KindUpstreamError}
	ErrTransport         = &Error{Kind: KindTransportException}
	ErrValidationNoop    = &Error{Kind: KindValidationNoop}
)

// Error is a failure attached to one session.
type Error struct {
	Kind    ErrorKind
	Message string
	// Link points at the settings entry that fixes a missing credential.
	Link string
	// APIKeyName is the credential the provider asked for.
	APIKeyName string
	Err        error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.Err == nil {
		return msg
	}
	return fmt.Sprintf("%s: %v", msg, e.Err)
}

// Unwrap exposes the underlying error for errors.Is / errors.As support.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches kind markers such as ErrMissingCredential.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Message == "" && t.Err == nil && t.Kind == e.Kind
}

// Surfaced reports whether the error should be shown to the user.
func (e *Error) Surfaced() bool {
	return e != nil && e.Kind != KindValidationNoop
}

func transportError(err error) *Error {
	return &Error{Kind: KindTransportException, Message: "request failed", Err: err}
}
