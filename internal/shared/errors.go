package shared

import "errors"

var (
	// ErrNotFound indicates a resource is absent or not owned by the caller.
	ErrNotFound = errors.New("not found")
	// ErrValidation indicates malformed or missing input.
	ErrValidation = errors.New("validation failed")
	// ErrUnauthorized indicates a missing or invalid credential.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrInvalidCredentials indicates login failure.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrEmailTaken occurs when registering an email that already exists.
	ErrEmailTaken = errors.New("user already exists")
	// ErrBusy occurs when a session is locked by another writer for too long.
	ErrBusy = errors.New("session is being updated, retry")
)
