// Package tunnelclient is the private-side half of the rendezvous
// engine: it dials the server's control port, authenticates with a
// bare identifier, and for every NEW_TUNNEL notification dials back
// and splices the fresh connection onto a local service port.
//
// The original Rust client (original_source/src/client.rs) is an
// unimplemented stub; this control loop and dial-back routine are
// built directly from SPEC_FULL.md §4.7-4.8, in the same per-connection
// goroutine style the server package uses.
package tunnelclient

import (
	"context"
	"fmt"
	"log"
	"net"

	"github.com/google/uuid"

	"github.com/voidrelay/tunnelbroker/internal/splice"
	"github.com/voidrelay/tunnelbroker/internal/wire"
)

// Config carries the client's static identity: the server address to
// dial and the 128-bit identifier to present.
type Config struct {
	ServerAddr string
	Identifier uuid.UUID
}

// Client holds one control connection's worth of state.
type Client struct {
	cfg Config
}

// New builds a Client for the given configuration.
func New(cfg Config) *Client {
	return &Client{cfg: cfg}
}

// Run dials the server, authenticates, and serves NEW_TUNNEL
// notifications until the control connection closes or ctx is
// cancelled. It implements SPEC_FULL.md §4.7.
func (c *Client) Run(ctx context.Context) error {
	conn, err := (&net.Dialer{}).DialContext(ctx, "tcp", c.cfg.ServerAddr)
	if err != nil {
		return fmt.Errorf("tunnelclient: dial %s: %w", c.cfg.ServerAddr, err)
	}
	defer conn.Close()

	if err := wire.WriteFirstConnection(conn, c.cfg.Identifier); err != nil {
		return fmt.Errorf("tunnelclient: write FIRST_CONNECTION: %w", err)
	}

	log.Printf("[tunnelclient] connected to %s as %s", c.cfg.ServerAddr, c.cfg.Identifier)

	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	for {
		tag, ok, err := wire.ReadTag(conn)
		if err != nil {
			return fmt.Errorf("tunnelclient: control read: %w", err)
		}
		if !ok {
			return ErrMainConnectionClosed
		}

		switch tag {
		case wire.NewTunnel:
			clientPort, sessionID, err := wire.ReadNewTunnelBody(conn)
			if err != nil {
				return fmt.Errorf("tunnelclient: read NEW_TUNNEL body: %w", err)
			}
			go c.handleNewTunnel(clientPort, sessionID)

		case wire.ServerHeartbeat:
			// Reserved; ignored on receive.

		default:
			return fmt.Errorf("%w: 0x%02x", ErrUnknownMessageType, byte(tag))
		}
	}
}

// handleNewTunnel implements SPEC_FULL.md §4.8: a fresh dial-back to
// the server, presenting the session id, then a fresh dial to the
// local service, then splice. Any failure closes what was opened and
// logs; it never propagates back to the control loop.
func (c *Client) handleNewTunnel(clientPort int32, sessionID uuid.UUID) {
	dialBack, err := net.Dial("tcp", c.cfg.ServerAddr)
	if err != nil {
		log.Printf("[tunnelclient] dial-back for session %s: %v", sessionID, err)
		return
	}

	if err := wire.WriteTunnelConnection(dialBack, sessionID); err != nil {
		log.Printf("[tunnelclient] write TUNNEL_CONNECTION for session %s: %v", sessionID, err)
		dialBack.Close()
		return
	}

	localAddr := fmt.Sprintf("127.0.0.1:%d", clientPort)
	local, err := net.Dial("tcp", localAddr)
	if err != nil {
		log.Printf("[tunnelclient] dial local service %s for session %s: %v", localAddr, sessionID, err)
		dialBack.Close()
		return
	}

	defer dialBack.Close()
	defer local.Close()
	splice.Splice(dialBack, local)
}
