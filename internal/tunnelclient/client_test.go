package tunnelclient

import (
	"context"
	"io"
	"net"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/voidrelay/tunnelbroker/internal/wire"
)

// fakeServer is a minimal stand-in for internal/tunnelserver, exercising
// only the two handshakes the client speaks, so this package can be
// tested without importing its sibling.
func fakeServer(t *testing.T) (addr string, firstConns chan net.Conn, tunnelConns chan net.Conn) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	firstConns = make(chan net.Conn, 4)
	tunnelConns = make(chan net.Conn, 4)

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go func() {
				tag, ok, err := wire.ReadTag(conn)
				if err != nil || !ok {
					conn.Close()
					return
				}
				switch tag {
				case wire.FirstConnection:
					if _, err := wire.ReadUUID(conn); err != nil {
						conn.Close()
						return
					}
					firstConns <- conn
				case wire.TunnelConnection:
					if _, err := wire.ReadUUID(conn); err != nil {
						conn.Close()
						return
					}
					tunnelConns <- conn
				default:
					conn.Close()
				}
			}()
		}
	}()

	t.Cleanup(func() { ln.Close() })
	return ln.Addr().String(), firstConns, tunnelConns
}

func TestClientDialBackAndSplice(t *testing.T) {
	addr, firstConns, tunnelConns := fakeServer(t)

	localLn, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer localLn.Close()
	localPort := localLn.Addr().(*net.TCPAddr).Port

	localAccepted := make(chan net.Conn, 1)
	go func() {
		conn, err := localLn.Accept()
		if err == nil {
			localAccepted <- conn
		}
	}()

	identifier := uuid.New()
	cl := New(Config{ServerAddr: addr, Identifier: identifier})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errCh := make(chan error, 1)
	go func() { errCh <- cl.Run(ctx) }()

	var control net.Conn
	select {
	case control = <-firstConns:
	case <-time.After(2 * time.Second):
		t.Fatal("server never received FIRST_CONNECTION")
	}
	defer control.Close()

	sessionID := uuid.New()
	require.NoError(t, wire.WriteNewTunnel(control, int32(localPort), sessionID))

	var tunnelSide net.Conn
	select {
	case tunnelSide = <-tunnelConns:
	case <-time.After(2 * time.Second):
		t.Fatal("client never dialed back")
	}
	defer tunnelSide.Close()

	var localSide net.Conn
	select {
	case localSide = <-localAccepted:
	case <-time.After(2 * time.Second):
		t.Fatal("client never dialed local service")
	}
	defer localSide.Close()

	_, err = tunnelSide.Write([]byte("abcd"))
	require.NoError(t, err)

	buf := make([]byte, 4)
	localSide.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, err = io.ReadFull(localSide, buf)
	require.NoError(t, err)
	require.Equal(t, "abcd", string(buf))

	cancel()
	select {
	case <-errCh:
	case <-time.After(2 * time.Second):
		t.Fatal("control loop did not exit after cancellation")
	}
}

func TestClientExitsOnUnknownMessageType(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		if _, ok, _ := wire.ReadTag(conn); !ok {
			return
		}
		wire.ReadUUID(conn)
		conn.Write([]byte{0x42})
	}()

	cl := New(Config{ServerAddr: ln.Addr().String(), Identifier: uuid.New()})
	err = cl.Run(context.Background())
	require.Error(t, err)
}
