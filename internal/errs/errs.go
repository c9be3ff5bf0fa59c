package errs

import "errors"

// Domain sentinel errors, mapped to HTTP / WebSocket responses in handlers.
var (
	ErrUnauthorized = errors.New("authorization required")
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")

	ErrDeviceNotFound  = errors.New("device not found")
	ErrGroupNotFound   = errors.New("group not found")
	ErrSessionNotFound = errors.New("pairing session not found")
	ErrSessionExpired  = errors.New("pairing session expired")

	ErrPublisherConflict = errors.New("room already has a publisher")
)
