// Package errs defines the typed error kinds surfaced by the core engine
// (see spec.md §7). Errors built with Wrap (Transport failures) wrap the
// underlying cause with github.com/pkg/errors so callers get a stack
// trace, while every kind can still be matched with errors.As or Is.
package errs

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind identifies which row of the error table in spec.md §7 an error
// belongs to.
type Kind int

const (
	// KindTransport covers TCP/TLS failures. The session moves to CLOSED.
	KindTransport Kind = iota
	// KindNegotiation covers a host refusing a mandatory TN3270 option.
	KindNegotiation
	// KindProtocol covers a malformed command/order/structured field.
	KindProtocol
	// KindProtectedField is a local input-rule violation.
	KindProtectedField
	// KindNumericOnly is a local input-rule violation.
	KindNumericOnly
	// KindFieldFull is a local input-rule violation (insert mode overflow).
	KindFieldFull
	// KindKeyboardLocked means a SendAID was attempted while locked.
	KindKeyboardLocked
	// KindEncode means a character had no mapping in the active codepage.
	KindEncode
	// KindTimeout means a Wait deadline expired.
	KindTimeout
	// KindSessionClosed means an operation ran against a closed session.
	KindSessionClosed
)

func (k Kind) String() string {
	switch k {
	case KindTransport:
		return "TransportError"
	case KindNegotiation:
		return "NegotiationError"
	case KindProtocol:
		return "ProtocolError"
	case KindProtectedField:
		return "ProtectedField"
	case KindNumericOnly:
		return "NumericOnly"
	case KindFieldFull:
		return "FieldFull"
	case KindKeyboardLocked:
		return "KeyboardLocked"
	case KindEncode:
		return "EncodeError"
	case KindTimeout:
		return "Timeout"
	case KindSessionClosed:
		return "SessionClosed"
	default:
		return "Unknown"
	}
}

// Error is the concrete error type for every kind in the table. Context
// carries kind-specific detail (the phase of a NegotiationError, the order
// byte of a ProtocolError, the field name of a ProtectedField, ...).
type Error struct {
	Kind    Kind
	Context string
	cause   error
}

func (e *Error) Error() string {
	if e.Context == "" {
		return e.Kind.String()
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Context)
}

// Unwrap exposes the wrapped cause, if any, for errors.Is/errors.As chains.
func (e *Error) Unwrap() error { return e.cause }

// New builds an *Error with no wrapped cause.
func New(kind Kind, context string) *Error {
	return &Error{Kind: kind, Context: context}
}

// Wrap builds an *Error that wraps cause with github.com/pkg/errors so a
// stack trace is attached at the point of failure.
func Wrap(kind Kind, cause error, context string) *Error {
	if cause == nil {
		return New(kind, context)
	}
	return &Error{Kind: kind, Context: context, cause: errors.Wrap(cause, context)}
}

// Is reports whether err is an *Error of the given kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// Convenience constructors matching spec.md §7 rows.

func Transport(cause error, context string) error   { return Wrap(KindTransport, cause, context) }
func Negotiation(phase string) error                { return New(KindNegotiation, phase) }
func Protocol(phase string) error                    { return New(KindProtocol, phase) }
func ProtectedField(field string) error              { return New(KindProtectedField, field) }
func NumericOnly(field string) error                 { return New(KindNumericOnly, field) }
func FieldFull(field string) error                   { return New(KindFieldFull, field) }
func KeyboardLocked() error                          { return New(KindKeyboardLocked, "") }
func Encode(char rune, codepage string) error {
	return New(KindEncode, fmt.Sprintf("%q not representable in codepage %s", char, codepage))
}
func Timeout(what string) error       { return New(KindTimeout, what) }
func SessionClosed() error            { return New(KindSessionClosed, "") }
