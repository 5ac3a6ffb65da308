package auth

import "errors"

var (
	ErrUnauthorized       = errors.New("auth: unauthorized")
	ErrForbidden          = errors.New("auth: forbidden")
	ErrInvalidCredentials = errors.New("auth: invalid credentials")
	ErrIdentityNotFound   = errors.New("auth: identity not found")
	ErrInvalidRole        = errors.New("auth: invalid role")
)

// Token verification failures. Each of them also matches ErrInvalidToken.
var (
	ErrInvalidToken     = errors.New("invalid token")
	ErrTokenExpired     = &tokenError{msg: "token expired"}
	ErrInvalidSignature = &tokenError{msg: "signature mismatch"}
	ErrMalformedToken   = &tokenError{msg: "malformed token"}
)

type tokenError struct {
	msg string
}

func (e *tokenError) Error() string { return e.msg }

func (e *tokenError) Is(target error) bool { return target == ErrInvalidToken }

// UnauthorizedError carries the client-facing reason a request could not
// be authenticated.
type UnauthorizedError struct {
	Reason string
	Err    error
}

func (e *UnauthorizedError) Error() string { return e.Reason }

func (e *UnauthorizedError) Unwrap() error { return e.Err }

func (e *UnauthorizedError) Is(target error) bool { return target == ErrUnauthorized }

func unauthorized(reason string, cause error) error {
	return &UnauthorizedError{Reason: reason, Err: cause}
}
