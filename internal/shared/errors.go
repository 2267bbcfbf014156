package shared

import "errors"

var (
	// ErrNotFound indicates a referenced record does not exist.
	ErrNotFound = errors.New("not found")
	// ErrDuplicate indicates a name uniqueness violation on create/update.
	ErrDuplicate = errors.New("duplicate name")
	// ErrUnauthenticated indicates no valid caller identity.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrForbidden indicates the access gate denied the caller.
	ErrForbidden = errors.New("forbidden")
	// ErrInvalidInput indicates a malformed request payload.
	ErrInvalidInput = errors.New("invalid input")
	// ErrInvalidCredentials indicates login failure.
	ErrInvalidCredentials = errors.New("invalid credentials")
)
