// Package wire implements the framed binary protocol spoken over the
// control connection and the tunnel (dial-back) connection.
//
// All integers are big-endian. Every message starts with a single tag
// byte. The control connection carries FirstConnection once, followed
// by zero or more NewTunnel messages. A tunnel connection carries
// TunnelConnection once, after which both directions are raw bytes.
package wire

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/google/uuid"
)

// Tag identifies the kind of message on the wire.
type Tag byte

const (
	FirstConnection  Tag = 0x00
	TunnelConnection Tag = 0x01
	ClientHeartbeat  Tag = 0x03

	NewTunnel       Tag = 0x80
	ServerHeartbeat Tag = 0x81
)

func (t Tag) String() string {
	switch t {
	case FirstConnection:
		return "FIRST_CONNECTION"
	case TunnelConnection:
		return "TUNNEL_CONNECTION"
	case ClientHeartbeat:
		return "CLIENT_HEARTBEAT"
	case NewTunnel:
		return "NEW_TUNNEL"
	case ServerHeartbeat:
		return "SERVER_HEARTBEAT"
	default:
		return fmt.Sprintf("UNKNOWN(0x%02x)", byte(t))
	}
}

// ReadTag performs a single cancel-safe byte read and returns the tag.
// It must be used in place of io.ReadFull when the caller needs to
// select between this read and another event: a "read exactly N"
// primitive can leave partial state on a losing select branch, but a
// single-byte Read either consumes the byte or consumes nothing.
//
// ok is false on a clean EOF (zero bytes read), which the caller
// should treat as "peer closed", not as an error.
func ReadTag(r io.Reader) (tag Tag, ok bool, err error) {
	var buf [1]byte
	n, err := r.Read(buf[:])
	if n == 0 {
		if err == io.EOF {
			return 0, false, nil
		}
		return 0, false, err
	}
	return Tag(buf[0]), true, nil
}

// WriteFirstConnection writes the FIRST_CONNECTION handshake message.
func WriteFirstConnection(w io.Writer, userID uuid.UUID) error {
	buf := make([]byte, 1+16)
	buf[0] = byte(FirstConnection)
	copy(buf[1:], userID[:])
	_, err := w.Write(buf)
	return err
}

// ReadUUID reads exactly 16 bytes and decodes them as a uuid.UUID.
func ReadUUID(r io.Reader) (uuid.UUID, error) {
	var raw [16]byte
	if _, err := io.ReadFull(r, raw[:]); err != nil {
		return uuid.Nil, fmt.Errorf("wire: read uuid: %w", err)
	}
	var id uuid.UUID
	copy(id[:], raw[:])
	return id, nil
}

// WriteTunnelConnection writes the TUNNEL_CONNECTION handshake message.
func WriteTunnelConnection(w io.Writer, sessionID uuid.UUID) error {
	buf := make([]byte, 1+16)
	buf[0] = byte(TunnelConnection)
	copy(buf[1:], sessionID[:])
	_, err := w.Write(buf)
	return err
}

// WriteNewTunnel writes the NEW_TUNNEL notification: tag, signed
// big-endian client port, then the session id.
func WriteNewTunnel(w io.Writer, clientPort int32, sessionID uuid.UUID) error {
	buf := make([]byte, 1+4+16)
	buf[0] = byte(NewTunnel)
	binary.BigEndian.PutUint32(buf[1:5], uint32(clientPort))
	copy(buf[5:], sessionID[:])
	_, err := w.Write(buf)
	return err
}

// ReadNewTunnelBody reads the body of a NEW_TUNNEL message (the tag
// byte must already have been consumed by the caller): a signed
// big-endian client port followed by a 16-byte session id.
func ReadNewTunnelBody(r io.Reader) (clientPort int32, sessionID uuid.UUID, err error) {
	var portBuf [4]byte
	if _, err = io.ReadFull(r, portBuf[:]); err != nil {
		return 0, uuid.Nil, fmt.Errorf("wire: read client port: %w", err)
	}
	clientPort = int32(binary.BigEndian.Uint32(portBuf[:]))

	sessionID, err = ReadUUID(r)
	if err != nil {
		return 0, uuid.Nil, err
	}
	return clientPort, sessionID, nil
}
