package tunnelserver

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Sentinel error kinds from SPEC_FULL.md §7. Each is returned wrapped
// with identifying context; callers compare with errors.Is.
var (
	ErrUnknownMessageType  = errors.New("tunnelserver: unknown message type")
	ErrUnknownUser         = errors.New("tunnelserver: unknown user")
	ErrConnectionDuplicate = errors.New("tunnelserver: user already online")
	ErrUnknownSessionID    = errors.New("tunnelserver: unknown session id")
)

func unknownMessageTypeError(tag byte) error {
	return fmt.Errorf("%w: 0x%02x", ErrUnknownMessageType, tag)
}

func unknownUserError(id uuid.UUID) error {
	return fmt.Errorf("%w: %s", ErrUnknownUser, id)
}

func connectionDuplicateError(id uuid.UUID) error {
	return fmt.Errorf("%w: %s", ErrConnectionDuplicate, id)
}

func unknownSessionIDError(id uuid.UUID) error {
	return fmt.Errorf("%w: %s", ErrUnknownSessionID, id)
}
