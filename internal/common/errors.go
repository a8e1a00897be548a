// Package common defines shared constants and sentinel errors used across
// the worklog server layers. Callers should use errors.Is to match these
// values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrNotFound = errors.New("not found")

	// Service-level errors (generic/internal flow control).
	ErrInternal  = errors.New("internal error")
	ErrForbidden = errors.New("forbidden")

	// Validation errors for payloads that bypassed the boundary checks.
	ErrValidation = errors.New("validation error")

	// Blob storage errors (disk full, permission denied, backend unavailable).
	ErrStorageIO = errors.New("storage i/o error")

	// Auth errors (invalid or malformed token).
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
)
