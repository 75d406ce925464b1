package tunnelclient

import "errors"

// Sentinel errors from SPEC_FULL.md §7's client-side row.
var (
	ErrMainConnectionClosed = errors.New("tunnelclient: main connection closed")
	ErrUnknownMessageType   = errors.New("tunnelclient: unknown message type")
)
