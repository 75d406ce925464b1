package models

import "github.com/google/uuid"

// TunnelUserStatus is the read-only view of one configured tunnel
// user exposed by the admin status API. It never carries anything
// that would let a caller mutate the user/port table.
type TunnelUserStatus struct {
	ID             uuid.UUID `json:"id"`
	Alias          string    `json:"alias"`
	Online         bool      `json:"online"`
	ActiveListener int       `json:"active_listeners"`
	ConfiguredPort int       `json:"configured_ports"`
}

type TunnelUserStatusList struct {
	Users []TunnelUserStatus `json:"users"`
	Count int                `json:"count"`
}

type SessionStatus struct {
	UserID          uuid.UUID `json:"user_id"`
	Alias           string    `json:"alias"`
	PendingSessions int       `json:"pending_sessions"`
}

type SessionStatusList struct {
	Users []SessionStatus `json:"users"`
	Total int             `json:"total_pending_sessions"`
}
