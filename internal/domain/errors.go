package domain

import "errors"

// Sentinel errors for domain-level error discrimination.
// Repositories and services wrap these so callers can branch with errors.Is
// without leaking infrastructure details.
var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("conflict")
)
