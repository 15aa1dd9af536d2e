package service

import (
	"errors"
	"strings"
)

type Kind int

const (
	KindValidation Kind = iota + 1
	KindAuthentication
	KindAuthorization
	KindNotFound
	KindInternal
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindAuthentication:
		return "authentication"
	case KindAuthorization:
		return "authorization"
	case KindNotFound:
		return "not_found"
	default:
		return "internal"
	}
}

// Error is the only error type the HTTP layer translates into a status code.
// Message is always safe to show to the client; Err is not.
type Error struct {
	Kind    Kind
	Message string
	Fields  []string
	Err     error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.String())
	b.WriteString(": ")
	b.WriteString(e.Message)
	if len(e.Fields) > 0 {
		b.WriteString(" (")
		b.WriteString(strings.Join(e.Fields, "; "))
		b.WriteString(")")
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

var (
	ErrInvalidCredentials   = &Error{Kind: KindAuthentication, Message: "Invalid credentials"}
	ErrInvalidRefreshToken  = &Error{Kind: KindAuthentication, Message: "Invalid or expired refresh token"}
	ErrAccountInactive      = &Error{Kind: KindAuthorization, Message: "Account is inactive"}
	ErrForbidden            = &Error{Kind: KindAuthorization, Message: "Insufficient permissions"}
	ErrUserNotFound         = &Error{Kind: KindNotFound, Message: "User not found"}
	ErrEmailInUse           = &Error{Kind: KindValidation, Message: "Email is already in use"}
	ErrRefreshTokenRequired = &Error{Kind: KindValidation, Message: "Refresh token is required"}
)

func Validation(message string, fields ...string) *Error {
	return &Error{Kind: KindValidation, Message: message, Fields: fields}
}

func Internal(err error) *Error {
	return &Error{Kind: KindInternal, Message: "Internal server error", Err: err}
}

func KindOf(err error) Kind {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	return KindInternal
}
