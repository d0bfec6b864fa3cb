package models

import "errors"

// Sentinel errors shared by services and repositories. Handlers map them
// to HTTP statuses with errors.Is; raw driver errors never cross that
// boundary.
var (
	// ErrUnauthenticated means no signed-in user was supplied for an
	// operation that requires one.
	ErrUnauthenticated = errors.New("not authenticated")

	// ErrNotFound covers both "row does not exist" and "row belongs to
	// someone else" so existence of foreign rows is never leaked.
	ErrNotFound = errors.New("qr code not found or no permission")

	// ErrShortCodeTaken reports a short code uniqueness violation. The
	// service retries with a fresh draw before giving up.
	ErrShortCodeTaken = errors.New("short code already taken")
)
