package neupass

import (
	"errors"
	"fmt"
)

// ============================================================================
// Error Codes
// ============================================================================

// ErrorCode classifies why an SSO hop or authenticated request failed. The set
// is closed: callers switch on it to decide between prompting for credentials
// and retrying silently.
type ErrorCode string

const (
	// ErrorCodeRequestFailed is a non-2xx response with no structured reason.
	ErrorCodeRequestFailed ErrorCode = "request_failed"
	// ErrorCodePasswordIncorrect means the SSO gateway rejected the credentials.
	ErrorCodePasswordIncorrect ErrorCode = "password_incorrect"
	// ErrorCodeTicketFailed means no ticket could be obtained.
	ErrorCodeTicketFailed ErrorCode = "ticket_failed"
	// ErrorCodeTicketExpired means a ticket was obtained but the service rejected it.
	ErrorCodeTicketExpired ErrorCode = "ticket_expired"
	// ErrorCodeSessionExpired means an established session stopped being accepted.
	ErrorCodeSessionExpired ErrorCode = "session_expired"
)

// ============================================================================
// Error
// ============================================================================

// Error is the typed failure returned by every protocol operation.
// Compare with errors.Is against the predefined values below; the match is on
// Code only, so an error carrying an operation name and status still matches.
type Error struct {
	// Code is the failure class.
	Code ErrorCode

	// Description is a human-readable description of the failure.
	Description string

	// Op names the protocol step that failed (e.g. "login service ticket").
	Op string

	// StatusCode is the HTTP status that triggered the failure, 0 if none.
	StatusCode int
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Description)
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.StatusCode != 0 {
		msg = fmt.Sprintf("%s (HTTP %d)", msg, e.StatusCode)
	}
	return msg
}

// Is reports whether target is an *Error of the same class. An expired ticket
// is a kind of ticket failure, so ticket_expired also matches ErrTicketFailed.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	if e.Code == t.Code {
		return true
	}
	return e.Code == ErrorCodeTicketExpired && t.Code == ErrorCodeTicketFailed
}

// ============================================================================
// Predefined Errors
// ============================================================================

var (
	// ErrRequestFailed is returned when a hop answers with a non-2xx status
	// and nothing more specific can be said.
	ErrRequestFailed = &Error{
		Code:        ErrorCodeRequestFailed,
		Description: "request failed",
	}

	// ErrPasswordIncorrect is returned when the SSO gateway issues no portal
	// ticket for the stored credentials, or there are none stored.
	ErrPasswordIncorrect = &Error{
		Code:        ErrorCodePasswordIncorrect,
		Description: "student id or password incorrect",
	}

	// ErrTicketFailed is returned when a ticket or session cannot be obtained,
	// or an authenticated call is attempted without one.
	ErrTicketFailed = &Error{
		Code:        ErrorCodeTicketFailed,
		Description: "failed to obtain ticket",
	}

	// ErrTicketExpired is returned when a service rejects a ticket during
	// login.
	ErrTicketExpired = &Error{
		Code:        ErrorCodeTicketExpired,
		Description: "ticket expired",
	}

	// ErrSessionExpired is returned when an authenticated request answers
	// with anything but 200. The session must be rebuilt from a fresh ticket.
	ErrSessionExpired = &Error{
		Code:        ErrorCodeSessionExpired,
		Description: "session expired",
	}
)

// ErrKeyNotFound is returned by LookupDataID when no entry carries the key.
// It is a lookup failure, no request was made.
var ErrKeyNotFound = errors.New("neupass: data key not found")

// ErrEmptyResponse is returned when a listed response carries no items.
var ErrEmptyResponse = errors.New("neupass: empty listed response")

// opError copies base and annotates it with the failing step and status.
func opError(base *Error, op string, statusCode int) *Error {
	e := *base
	e.Op = op
	e.StatusCode = statusCode
	return &e
}

// describe replaces the description of a copied error when desc is non-empty.
func (e *Error) describe(desc string) *Error {
	if desc != "" {
		e.Description = desc
	}
	return e
}
