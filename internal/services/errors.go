package services

import (
	"errors"
	"fmt"
)

// ErrorKind classifies failures so handlers can map them to responses.
type ErrorKind string

const (
	KindInvalidFormat      ErrorKind = "invalid_format"
	KindDuplicate          ErrorKind = "duplicate"
	KindNotFound           ErrorKind = "not_found"
	KindAlreadyVerified    ErrorKind = "already_verified"
	KindUnauthorized       ErrorKind = "unauthorized"
	KindUserCreationFailed ErrorKind = "user_creation_failed"
	KindRegistrationFailed ErrorKind = "registration_failed"
	KindStoreError         ErrorKind = "store_error"
)

// Error carries a kind plus a message meant for the person using the app.
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same kind, so errors.Is(err, ErrNotFound) works
// regardless of message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

var (
	ErrInvalidFormat      = &Error{Kind: KindInvalidFormat}
	ErrDuplicate          = &Error{Kind: KindDuplicate}
	ErrNotFound           = &Error{Kind: KindNotFound}
	ErrAlreadyVerified    = &Error{Kind: KindAlreadyVerified}
	ErrUnauthorized       = &Error{Kind: KindUnauthorized}
	ErrUserCreationFailed = &Error{Kind: KindUserCreationFailed}
	ErrRegistrationFailed = &Error{Kind: KindRegistrationFailed}
	ErrStore              = &Error{Kind: KindStoreError}
)

func newError(kind ErrorKind, msg string, err error) *Error {
	return &Error{Kind: kind, Message: msg, Err: err}
}

func invalidFormat(msg string) *Error { return newError(KindInvalidFormat, msg, nil) }
func notFound(msg string) *Error      { return newError(KindNotFound, msg, nil) }
func unauthorized(msg string) *Error  { return newError(KindUnauthorized, msg, nil) }

func storeError(err error) *Error {
	return newError(KindStoreError, "데이터 처리 중 오류가 발생했습니다.", err)
}

// KindOf returns the kind of the first *Error in err's chain, or store_error.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindStoreError
}

// MessageOf returns the user-facing message of err.
func MessageOf(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Message != "" {
		return e.Message
	}
	return "요청을 처리하지 못했습니다."
}
