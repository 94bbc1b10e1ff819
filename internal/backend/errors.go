package backend

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorKind classifies backend failures
type ErrorKind string

const (
	KindAuth    ErrorKind = "auth"
	KindAccess  ErrorKind = "access"
	KindNetwork ErrorKind = "network"
	KindInvalid ErrorKind = "invalid"
	KindUnknown ErrorKind = "unknown"
)

// Error codes shared by the backends
const (
	CodeInvalidCredentials = "invalid_credentials"
	CodeEmailNotConfirmed  = "email_not_confirmed"
	CodeUserExists         = "user_already_exists"
	CodeWeakPassword       = "weak_password"
	CodeSessionMissing     = "session_not_found"
	CodeRefreshInvalid     = "refresh_token_not_found"
	CodeRowLevelSecurity   = "42501"
	CodeNotFound           = "not_found"
)

var (
	// ErrNoSession is returned by operations that need a signed-in user
	ErrNoSession = &Error{Kind: KindAuth, Status: http.StatusUnauthorized, Code: CodeSessionMissing, Message: "Auth session missing!"}
)

// Error is a failure reported by the backend. Message is shown to users verbatim.
type Error struct {
	Kind    ErrorKind
	Status  int
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return fmt.Sprintf("backend error (%d)", e.Status)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches on Kind and Code so sentinel comparisons work across instances.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind && (t.Code == "" || e.Code == t.Code)
}

// NetworkError wraps a transport failure
func NetworkError(err error) *Error {
	return &Error{Kind: KindNetwork, Message: err.Error(), Err: err}
}

// AuthError builds an authentication failure
func AuthError(status int, code, msg string) *Error {
	return &Error{Kind: KindAuth, Status: status, Code: code, Message: msg}
}

// AccessError builds a row-level access rejection
func AccessError(msg string) *Error {
	return &Error{Kind: KindAccess, Status: http.StatusForbidden, Code: CodeRowLevelSecurity, Message: msg}
}

// InvalidError builds a request validation failure
func InvalidError(msg string) *Error {
	return &Error{Kind: KindInvalid, Status: http.StatusBadRequest, Message: msg}
}

// KindOf returns the kind of a backend error anywhere in err's chain.
func KindOf(err error) ErrorKind {
	var be *Error
	if errors.As(err, &be) {
		return be.Kind
	}
	return KindUnknown
}

// IsAuth reports whether err is an authentication failure
func IsAuth(err error) bool {
	return KindOf(err) == KindAuth
}
