// Package splice implements the bidirectional TCP splice with
// half-close propagation used by both the server (pairing an external
// connection with a client dial-back) and the client (pairing a
// dial-back with the local service connection).
package splice

import (
	"errors"
	"io"
	"log"
	"net"

	"golang.org/x/sync/errgroup"
)

// halfCloser is satisfied by *net.TCPConn and similar types that can
// shut down their write side without closing the read side.
type halfCloser interface {
	CloseWrite() error
}

// Splice runs two independent copies, a→b and b→a, and waits for both
// to finish. When one direction reaches EOF or errors, the destination
// of that direction has its write half shut down so its peer observes
// end-of-stream; the other direction is left running until it, too,
// finishes on its own. Errors in one direction are logged and do not
// abort the other. Splice returns once both directions have
// completed; it does not close a or b — the caller owns that.
func Splice(a, b net.Conn) {
	var g errgroup.Group

	g.Go(func() error {
		return copyHalf("a->b", a, b)
	})
	g.Go(func() error {
		return copyHalf("b->a", b, a)
	})

	if err := g.Wait(); err != nil {
		log.Printf("[splice] %v", err)
	}
}

func copyHalf(label string, src, dst net.Conn) error {
	_, err := io.Copy(dst, src)

	if hc, ok := dst.(halfCloser); ok {
		if cerr := hc.CloseWrite(); cerr != nil && !errors.Is(cerr, net.ErrClosed) {
			log.Printf("[splice] %s: close-write: %v", label, cerr)
		}
	}

	if err != nil && !errors.Is(err, net.ErrClosed) {
		return &copyError{label: label, err: err}
	}
	return nil
}

type copyError struct {
	label string
	err   error
}

func (e *copyError) Error() string {
	return e.label + ": " + e.err.Error()
}

func (e *copyError) Unwrap() error {
	return e.err
}
