package utils

import "time"

// Capability tokens
const (
	ScopeViewer        = "viewer"
	ActionVerify       = "verify"
	ShareTokenTTL      = 24 * time.Hour
	VerifyTokenTTL     = 72 * time.Hour
	MaxRecipients      = 20
	RequestBodyMaxSize = 64 * 1024
)

// Error kinds, used as the "error" slug of every error response.
const (
	KindValidation    = "validation_error"
	KindUnauthorized  = "unauthorized"
	KindForbidden     = "forbidden"
	KindNotFound      = "not_found"
	KindStateConflict = "state_conflict"
	KindDependency    = "dependency_error"
	KindRateLimited   = "rate_limited"
)

// Error Messages
const (
	ErrMissingLocation     = "lat and lng are required"
	ErrMissingRecipients   = "at least one recipient is required"
	ErrInvalidRecipients   = "recipients must be verified contacts"
	ErrInvalidToken        = "invalid or expired token"
	ErrTokenRevoked        = "alert access has been revoked"
	ErrAlertNotFound       = "alert not found"
	ErrContactNotFound     = "contact not found"
	ErrAlertNotActive      = "alert is not active"
	ErrNotAlertOwner       = "alert belongs to another sender"
	ErrReadOnlyToken       = "token cannot react"
	ErrInvalidPreset       = "preset must match ^[a-z0-9_-]{1,32}$"
	ErrInvalidExtension    = "extend_sec or extend_min is required"
	ErrInternalServer      = "internal error"
	ErrAuthenticationFails = "authentication required"
)
