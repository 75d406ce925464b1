package splice

import (
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// tcpPair returns both ends (serverSide, clientSide) of one loopback
// TCP connection; each test calls it twice to build the two
// "connections" that Splice joins.
func tcpPair(t *testing.T) (net.Conn, net.Conn) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	acceptedCh := make(chan net.Conn, 1)
	go func() {
		conn, err := ln.Accept()
		if err == nil {
			acceptedCh <- conn
		}
	}()

	client, err := net.Dial("tcp", ln.Addr().String())
	require.NoError(t, err)

	server := <-acceptedCh
	return server, client
}

func TestSpliceDeliversBytesBothWays(t *testing.T) {
	extServer, ext := tcpPair(t)
	defer extServer.Close()
	defer ext.Close()

	localServer, local := tcpPair(t)
	defer localServer.Close()
	defer local.Close()

	done := make(chan struct{})
	go func() {
		Splice(extServer, localServer)
		close(done)
	}()

	_, err := ext.Write([]byte("HELLO\n"))
	require.NoError(t, err)

	buf := make([]byte, 6)
	local.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, err = io.ReadFull(local, buf)
	require.NoError(t, err)
	require.Equal(t, "HELLO\n", string(buf))

	_, err = local.Write([]byte("WORLD\n"))
	require.NoError(t, err)

	buf2 := make([]byte, 6)
	ext.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, err = io.ReadFull(ext, buf2)
	require.NoError(t, err)
	require.Equal(t, "WORLD\n", string(buf2))

	ext.Close()
	local.Close()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("splice did not complete after both ends closed")
	}
}

func TestSpliceHalfCloseLetsOtherDirectionContinue(t *testing.T) {
	extServer, ext := tcpPair(t)
	defer extServer.Close()
	defer ext.Close()

	localServer, local := tcpPair(t)
	defer localServer.Close()
	defer local.Close()

	done := make(chan struct{})
	go func() {
		Splice(extServer, localServer)
		close(done)
	}()

	// external peer closes its write side but keeps reading
	extTCP := ext.(*net.TCPConn)
	require.NoError(t, extTCP.CloseWrite())

	// local service can still send data back to the external peer
	_, err := local.Write([]byte("late\n"))
	require.NoError(t, err)

	buf := make([]byte, 5)
	ext.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, err = io.ReadFull(ext, buf)
	require.NoError(t, err)
	require.Equal(t, "late\n", string(buf))

	local.Close()
	ext.Close()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("splice did not complete")
	}
}
