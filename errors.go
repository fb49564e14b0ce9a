package drivegate

import "errors"

var (
	// ErrNotFound is returned when a resource is not found
	ErrNotFound = errors.New("not found")
	// ErrInvalidInput is returned when input validation fails
	ErrInvalidInput = errors.New("invalid input")
	// ErrUnauthorized is returned when authentication fails
	ErrUnauthorized = errors.New("unauthorized")
	// ErrForbidden is returned when an authenticated caller is not allowed
	ErrForbidden = errors.New("forbidden")
	// ErrUpstream is returned when a storage provider call fails
	ErrUpstream = errors.New("upstream failure")
	// ErrCredential is returned when the delegated credential exchange fails
	ErrCredential = errors.New("credential exchange failed")
)
