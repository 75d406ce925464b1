package tunnelserver

import (
	"context"
	"errors"
	"io"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/voidrelay/tunnelbroker/internal/models"
	"github.com/voidrelay/tunnelbroker/internal/splice"
	"github.com/voidrelay/tunnelbroker/internal/wire"
)

// freePort asks the OS for an unused TCP port on loopback.
func freePort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	return ln.Addr().(*net.TCPAddr).Port
}

func startServer(t *testing.T, users map[uuid.UUID]*models.TunnelUser) (*Server, int) {
	t.Helper()
	port := freePort(t)
	srv := New(port, users)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	ready := make(chan struct{})
	go func() {
		close(ready)
		_ = srv.Run(ctx)
	}()
	<-ready
	// give the listener a moment to bind
	time.Sleep(20 * time.Millisecond)
	return srv, port
}

func dialControl(t *testing.T, controlPort int, userID uuid.UUID) net.Conn {
	t.Helper()
	conn, err := net.Dial("tcp", net.JoinHostPort("127.0.0.1", itoa(controlPort)))
	require.NoError(t, err)
	require.NoError(t, wire.WriteFirstConnection(conn, userID))
	return conn
}

func itoa(p int) string {
	return strconv.Itoa(p)
}

func TestHappyPathEndToEnd(t *testing.T) {
	userID := uuid.New()
	serverPort := freePort(t)
	clientPort := freePort(t)

	users := map[uuid.UUID]*models.TunnelUser{
		userID: {ID: userID, Ports: []models.PortPair{{ClientPort: clientPort, ServerPort: serverPort}}},
	}
	srv, controlPort := startServer(t, users)
	_ = srv

	control := dialControl(t, controlPort, userID)
	defer control.Close()

	// local service the tunnel client would dial back to
	localLn, err := net.Listen("tcp", net.JoinHostPort("127.0.0.1", itoa(clientPort)))
	require.NoError(t, err)
	defer localLn.Close()

	time.Sleep(20 * time.Millisecond)

	extConn, err := net.Dial("tcp", net.JoinHostPort("127.0.0.1", itoa(serverPort)))
	require.NoError(t, err)
	defer extConn.Close()

	tag, ok, err := wire.ReadTag(control)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, wire.NewTunnel, tag)

	gotClientPort, sessionID, err := wire.ReadNewTunnelBody(control)
	require.NoError(t, err)
	require.Equal(t, int32(clientPort), gotClientPort)

	localAccepted := make(chan net.Conn, 1)
	go func() {
		conn, err := localLn.Accept()
		if err == nil {
			localAccepted <- conn
		}
	}()

	// play the client's part: dial back to the control port presenting
	// the session id, dial the local service, and splice the two
	dialBack, err := net.Dial("tcp", net.JoinHostPort("127.0.0.1", itoa(controlPort)))
	require.NoError(t, err)
	defer dialBack.Close()
	require.NoError(t, wire.WriteTunnelConnection(dialBack, sessionID))

	local, err := net.Dial("tcp", net.JoinHostPort("127.0.0.1", itoa(clientPort)))
	require.NoError(t, err)
	defer local.Close()

	var localSide net.Conn
	select {
	case localSide = <-localAccepted:
	case <-time.After(2 * time.Second):
		t.Fatal("local service never accepted dial-back")
	}
	defer localSide.Close()

	go splice.Splice(dialBack, local)

	_, err = extConn.Write([]byte("ping"))
	require.NoError(t, err)

	buf := make([]byte, 4)
	localSide.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, err = io.ReadFull(localSide, buf)
	require.NoError(t, err)
	require.Equal(t, "ping", string(buf))
}

func TestUnknownUserRejected(t *testing.T) {
	_, controlPort := startServer(t, map[uuid.UUID]*models.TunnelUser{})

	conn, err := net.Dial("tcp", net.JoinHostPort("127.0.0.1", itoa(controlPort)))
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, wire.WriteFirstConnection(conn, uuid.New()))

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, 1)
	n, err := conn.Read(buf)
	require.Equal(t, 0, n)
	require.True(t, err == io.EOF || errors.Is(err, io.EOF) || err != nil)
}

func TestDuplicateConnectionRejected(t *testing.T) {
	userID := uuid.New()
	users := map[uuid.UUID]*models.TunnelUser{
		userID: {ID: userID, Ports: []models.PortPair{{ClientPort: freePort(t), ServerPort: freePort(t)}}},
	}
	_, controlPort := startServer(t, users)

	first := dialControl(t, controlPort, userID)
	defer first.Close()
	time.Sleep(50 * time.Millisecond)

	second, err := net.Dial("tcp", net.JoinHostPort("127.0.0.1", itoa(controlPort)))
	require.NoError(t, err)
	defer second.Close()
	require.NoError(t, wire.WriteFirstConnection(second, userID))

	second.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, 1)
	n, _ := second.Read(buf)
	require.Equal(t, 0, n)
}

func TestUnknownSessionIDOnTunnelConnection(t *testing.T) {
	_, controlPort := startServer(t, map[uuid.UUID]*models.TunnelUser{})

	conn, err := net.Dial("tcp", net.JoinHostPort("127.0.0.1", itoa(controlPort)))
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, wire.WriteTunnelConnection(conn, uuid.New()))

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, 1)
	n, _ := conn.Read(buf)
	require.Equal(t, 0, n)
}

func TestClientDisconnectTearsDownListener(t *testing.T) {
	userID := uuid.New()
	serverPort := freePort(t)
	users := map[uuid.UUID]*models.TunnelUser{
		userID: {ID: userID, Ports: []models.PortPair{{ClientPort: freePort(t), ServerPort: serverPort}}},
	}
	srv, controlPort := startServer(t, users)

	control := dialControl(t, controlPort, userID)
	time.Sleep(50 * time.Millisecond)

	online, listeners := srv.Status(userID)
	require.True(t, online)
	require.Equal(t, 1, listeners)

	control.Close()
	time.Sleep(100 * time.Millisecond)

	online, _ = srv.Status(userID)
	require.False(t, online)

	// port should be free again: a new control connection is admitted
	// and its listener can rebind the same server port.
	control2 := dialControl(t, controlPort, userID)
	defer control2.Close()
	time.Sleep(50 * time.Millisecond)

	online, listeners = srv.Status(userID)
	require.True(t, online)
	require.Equal(t, 1, listeners)
}
