package domain

import "errors"

var (
	ErrNoLocalSource         = errors.New("no active local capture source")
	ErrInvalidLinkState      = errors.New("operation invalid for link state")
	ErrDuplicateLink         = errors.New("link already exists for remote")
	ErrNegotiationFailed     = errors.New("negotiation failed")
	ErrCapabilityUnavailable = errors.New("capture capability unavailable")
	ErrUnknownParticipant    = errors.New("participant not found")
	ErrRoomNotFound          = errors.New("room not found")
	ErrPermissionDenied      = errors.New("permission denied")
)
