package models

import "github.com/google/uuid"

// PortPair is one (client-side, server-side) port authorised for a
// tunnel user. ClientPort is dialed by the client on 127.0.0.1;
// ServerPort is bound by the server on all interfaces.
type PortPair struct {
	ClientPort int `yaml:"client_port"`
	ServerPort int `yaml:"server_port"`
}

// TunnelUser is a statically configured tunnel owner: an opaque
// 128-bit identifier and the fixed list of port pairs it is
// authorised to expose. Built once at startup from a ConfigStore;
// never mutated afterwards.
type TunnelUser struct {
	ID    uuid.UUID
	Ports []PortPair

	// Alias is a human-friendly label loaded from the config store
	// alongside ID, used only by the admin status API.
	Alias string
}
