package auth

import (
	"errors"
	"net/http"
)

// Kind classifies every failure the auth flows can report.
type Kind int

const (
	KindValidation Kind = iota + 1
	KindNotFound
	KindConflict
	KindUnauthenticated
	KindForbidden
	KindVerificationRequired
	KindVerificationFailed
	KindUnexpected
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindUnauthenticated:
		return "unauthenticated"
	case KindForbidden:
		return "forbidden"
	case KindVerificationRequired:
		return "verification_required"
	case KindVerificationFailed:
		return "verification_failed"
	default:
		return "unexpected"
	}
}

// StatusCode is the single place a Kind becomes an HTTP status.
func StatusCode(k Kind) int {
	switch k {
	case KindValidation, KindConflict:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindUnauthenticated:
		return http.StatusUnauthorized
	case KindForbidden, KindVerificationRequired, KindVerificationFailed:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// Error carries a client-facing message. Err holds the internal cause and is
// never written to a response.
type Error struct {
	Kind    Kind
	Message string
	Err     error
	// CaptchaRequired tells the client to show the human-verification widget.
	CaptchaRequired bool
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Kind.String() + ": " + e.Message + ": " + e.Err.Error()
	}
	return e.Kind.String() + ": " + e.Message
}

func (e *Error) Unwrap() error { return e.Err }

func newError(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

func unexpected(err error) *Error {
	return &Error{Kind: KindUnexpected, Message: "Server error", Err: err}
}

// AsError converts any error into an *Error, treating unknown errors as
// unexpected.
func AsError(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return unexpected(err)
}
