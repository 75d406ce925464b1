// Package tunnelserver is the public-side half of the rendezvous
// engine: the control listener, the per-user fan-out of tunnel
// listeners, and the pending-session table that pairs external
// connections with client dial-backs.
//
// Grounded on the teacher's internal/tunnel.Server (accept loop
// pattern, per-connection goroutine dispatch, sync-guarded maps) and
// on the original Rust server.rs (the two-stage handshake and the
// mpsc/broadcast fan-out shape), adapted to the binary wire protocol
// and to explicit mutex-guarded maps per SPEC_FULL.md §5.
package tunnelserver

import (
	"context"
	"fmt"
	"log"
	"net"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/voidrelay/tunnelbroker/internal/models"
	"github.com/voidrelay/tunnelbroker/internal/splice"
	"github.com/voidrelay/tunnelbroker/internal/wire"
)

const newTunnelQueueCapacity = 16

// Server holds the immutable user table and the mutable online-set
// and pending-session state shared across all control connections.
type Server struct {
	controlPort int
	users       map[uuid.UUID]*models.TunnelUser // immutable after New

	onlineMu sync.Mutex
	online   map[uuid.UUID]*onlineUser

	pendingMu sync.Mutex
	pending   map[uuid.UUID]pendingSession
}

// onlineUser tracks the fan-out state for one currently-connected
// tunnel user: the one-shot shutdown broadcast and a live count of
// bound tunnel listeners, surfaced read-only by the admin status API.
type onlineUser struct {
	shutdown      chan struct{}
	listenerCount atomic.Int32
}

type pendingSession struct {
	conn   net.Conn
	userID uuid.UUID
}

type tunnelEvent struct {
	clientPort int32
	conn       net.Conn
	peerAddr   net.Addr
}

// New builds a Server over a fixed, already-loaded user table. The
// table is never mutated by the server afterwards.
func New(controlPort int, users map[uuid.UUID]*models.TunnelUser) *Server {
	return &Server{
		controlPort: controlPort,
		users:       users,
		online:      make(map[uuid.UUID]*onlineUser),
		pending:     make(map[uuid.UUID]pendingSession),
	}
}

// Run binds the control port and accepts connections until ctx is
// cancelled or a fatal accept error occurs. Per-connection errors are
// logged and never stop the accept loop.
func (s *Server) Run(ctx context.Context) error {
	addr := fmt.Sprintf("0.0.0.0:%d", s.controlPort)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("tunnelserver: listen control port %d: %w", s.controlPort, err)
	}
	defer ln.Close()

	log.Printf("[tunnelserver] control listener on :%d", s.controlPort)

	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
				return fmt.Errorf("tunnelserver: accept: %w", err)
			}
		}
		go s.handleConnection(ctx, conn)
	}
}

func (s *Server) handleConnection(ctx context.Context, conn net.Conn) {
	tag, ok, err := wire.ReadTag(conn)
	if err != nil {
		log.Printf("[tunnelserver] read tag from %s: %v", conn.RemoteAddr(), err)
		conn.Close()
		return
	}
	if !ok {
		conn.Close()
		return
	}

	switch tag {
	case wire.FirstConnection:
		if err := s.handleFirstConnection(ctx, conn); err != nil {
			log.Printf("[tunnelserver] first-connection from %s: %v", conn.RemoteAddr(), err)
		}
	case wire.TunnelConnection:
		if err := s.handleTunnelConnection(conn); err != nil {
			log.Printf("[tunnelserver] tunnel-connection from %s: %v", conn.RemoteAddr(), err)
		}
	default:
		log.Printf("[tunnelserver] %v from %s", unknownMessageTypeError(byte(tag)), conn.RemoteAddr())
		conn.Close()
	}
}

// handleFirstConnection implements SPEC_FULL.md §4.3.
func (s *Server) handleFirstConnection(ctx context.Context, conn net.Conn) error {
	defer conn.Close()

	userID, err := wire.ReadUUID(conn)
	if err != nil {
		return err
	}

	user, known := s.users[userID]
	if !known {
		return unknownUserError(userID)
	}

	ou := &onlineUser{shutdown: make(chan struct{})}
	if !s.admit(userID, ou) {
		return connectionDuplicateError(userID)
	}
	defer s.dismiss(userID)

	newTunnelCh := make(chan tunnelEvent, newTunnelQueueCapacity)

	var g errgroup.Group
	for _, pp := range user.Ports {
		pp := pp
		g.Go(func() error {
			return s.tunnelListener(ou, pp, newTunnelCh)
		})
	}
	// The control loop's own reference to the sender side is implicit
	// (newTunnelCh is only ever written to by the listeners spawned
	// above); once every listener exits after shutdown is broadcast,
	// no further sends occur and g.Wait() below returns.
	defer func() {
		close(ou.shutdown)
		if err := g.Wait(); err != nil {
			log.Printf("[tunnelserver] tunnel listener for %s: %v", userID, err)
		}
	}()

	readResult := make(chan readOutcome, 1)
	go readOneByte(conn, readResult)

	for {
		select {
		case ev := <-newTunnelCh:
			if err := s.publishNewTunnel(conn, userID, ev); err != nil {
				return err
			}

		case res := <-readResult:
			if res.err != nil {
				return fmt.Errorf("control read: %w", res.err)
			}
			if !res.ok {
				// Clean EOF: client closed the control connection.
				return nil
			}
			// Reserved tag (heartbeat or otherwise): ignored per
			// SPEC_FULL.md §9. Keep reading.
			go readOneByte(conn, readResult)
		}
	}
}

func (s *Server) publishNewTunnel(conn net.Conn, userID uuid.UUID, ev tunnelEvent) error {
	sessionID := uuid.New()

	s.pendingMu.Lock()
	s.pending[sessionID] = pendingSession{conn: ev.conn, userID: userID}
	s.pendingMu.Unlock()

	if err := wire.WriteNewTunnel(conn, ev.clientPort, sessionID); err != nil {
		s.removePending(sessionID)
		ev.conn.Close()
		return fmt.Errorf("write NEW_TUNNEL: %w", err)
	}
	return nil
}

// handleTunnelConnection implements SPEC_FULL.md §4.4.
func (s *Server) handleTunnelConnection(conn net.Conn) error {
	sessionID, err := wire.ReadUUID(conn)
	if err != nil {
		conn.Close()
		return err
	}

	pending, ok := s.removePending(sessionID)
	if !ok {
		conn.Close()
		return unknownSessionIDError(sessionID)
	}

	go func() {
		defer conn.Close()
		defer pending.conn.Close()
		splice.Splice(pending.conn, conn)
	}()
	return nil
}

func (s *Server) removePending(sessionID uuid.UUID) (pendingSession, bool) {
	s.pendingMu.Lock()
	defer s.pendingMu.Unlock()
	p, ok := s.pending[sessionID]
	if ok {
		delete(s.pending, sessionID)
	}
	return p, ok
}

func (s *Server) admit(userID uuid.UUID, ou *onlineUser) bool {
	s.onlineMu.Lock()
	defer s.onlineMu.Unlock()
	if _, already := s.online[userID]; already {
		return false
	}
	s.online[userID] = ou
	return true
}

func (s *Server) dismiss(userID uuid.UUID) {
	s.onlineMu.Lock()
	delete(s.online, userID)
	s.onlineMu.Unlock()

	s.sweepPending(userID)
}

// sweepPending closes and removes every pending session still held
// for userID. A client that never dials back before disconnecting
// would otherwise leak its held external connection until process
// exit; this bounds that leak to the control connection's own
// lifetime instead.
func (s *Server) sweepPending(userID uuid.UUID) {
	s.pendingMu.Lock()
	defer s.pendingMu.Unlock()
	for sessionID, p := range s.pending {
		if p.userID == userID {
			p.conn.Close()
			delete(s.pending, sessionID)
		}
	}
}

// tunnelListener implements SPEC_FULL.md §4.5: binds the public port,
// publishes accepted connections to newTunnelCh until shutdown fires,
// then closes the listener so the port is free before readmission.
func (s *Server) tunnelListener(ou *onlineUser, pp models.PortPair, newTunnelCh chan<- tunnelEvent) error {
	addr := fmt.Sprintf("0.0.0.0:%d", pp.ServerPort)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen server port %d: %w", pp.ServerPort, err)
	}
	ou.listenerCount.Add(1)
	defer ou.listenerCount.Add(-1)
	defer ln.Close()

	log.Printf("[tunnelserver] tunnel listener on :%d (client port %d)", pp.ServerPort, pp.ClientPort)

	go func() {
		<-ou.shutdown
		ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-ou.shutdown:
				return nil
			default:
				return fmt.Errorf("accept on port %d: %w", pp.ServerPort, err)
			}
		}

		select {
		case newTunnelCh <- tunnelEvent{clientPort: int32(pp.ClientPort), conn: conn, peerAddr: conn.RemoteAddr()}:
		case <-ou.shutdown:
			conn.Close()
			return nil
		}
	}
}

// Status returns the live state the admin API reports: whether the
// user is online, and how many of its tunnel listeners are bound.
func (s *Server) Status(userID uuid.UUID) (online bool, activeListeners int) {
	s.onlineMu.Lock()
	ou, ok := s.online[userID]
	s.onlineMu.Unlock()
	if !ok {
		return false, 0
	}
	return true, int(ou.listenerCount.Load())
}

// PendingCount returns the number of pending sessions currently held
// for userID.
func (s *Server) PendingCount(userID uuid.UUID) int {
	s.pendingMu.Lock()
	defer s.pendingMu.Unlock()
	count := 0
	for _, p := range s.pending {
		if p.userID == userID {
			count++
		}
	}
	return count
}

// Users returns the immutable configured user table.
func (s *Server) Users() map[uuid.UUID]*models.TunnelUser {
	return s.users
}

// OnlineCount returns the number of users currently online.
func (s *Server) OnlineCount() int {
	s.onlineMu.Lock()
	defer s.onlineMu.Unlock()
	return len(s.online)
}

// TotalActiveListeners sums bound tunnel listeners across every
// online user.
func (s *Server) TotalActiveListeners() int {
	s.onlineMu.Lock()
	defer s.onlineMu.Unlock()
	total := 0
	for _, ou := range s.online {
		total += int(ou.listenerCount.Load())
	}
	return total
}

// TotalPendingSessions returns the total number of pending sessions
// across all users.
func (s *Server) TotalPendingSessions() int {
	s.pendingMu.Lock()
	defer s.pendingMu.Unlock()
	return len(s.pending)
}

type readOutcome struct {
	ok  bool
	err error
}

// readOneByte performs a single cancel-safe byte read on conn and
// reports the outcome on ch. It is used instead of io.ReadFull so
// that losing the select race in the control loop never consumes a
// partial message: the byte is either fully read (ok=true) or not
// read at all (clean EOF, ok=false), with the goroutine itself
// holding any truly in-flight read across loop iterations.
func readOneByte(conn net.Conn, ch chan<- readOutcome) {
	tag, ok, err := wire.ReadTag(conn)
	_ = tag
	ch <- readOutcome{ok: ok, err: err}
}
