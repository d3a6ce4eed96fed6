package ftp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/encoding"
	"golang.org/x/text/transform"

	"github.com/gonzalop/miniftp/internal/ratelimit"
)

// State is the protocol state of a Session.
type State int

const (
	// StateDisconnected means no control connection is open. New sessions
	// and closed sessions are in this state.
	StateDisconnected State = iota
	// StateConnecting means the control connection is being dialed.
	StateConnecting
	// StateAwaitingGreeting means the connection is open and the 220
	// greeting has not arrived yet.
	StateAwaitingGreeting
	// StateAuthenticating means USER and PASS are being exchanged, or
	// that login failed and the session waits to be closed.
	StateAuthenticating
	// StateReady means the session is logged in and idle.
	StateReady
	// StateDataChannelPending means a passive port was announced and
	// the data connection is being set up.
	StateDataChannelPending
	// StateTransferring means bytes are moving on the data connection.
	StateTransferring
)

var stateNames = [...]string{
	StateDisconnected:       "disconnected",
	StateConnecting:         "connecting",
	StateAwaitingGreeting:   "awaiting-greeting",
	StateAuthenticating:     "authenticating",
	StateReady:              "ready",
	StateDataChannelPending: "data-channel-pending",
	StateTransferring:       "transferring",
}

func (st State) String() string {
	if st >= 0 && int(st) < len(stateNames) {
		return stateNames[st]
	}
	return "State(" + strconv.Itoa(int(st)) + ")"
}

// Session is a single FTP control connection plus the data connection of
// the transfer in progress.
//
// A Session carries exactly one command at a time. Methods that issue
// commands must not be called concurrently; a call made while another one
// is in flight fails with ErrConcurrentUse. Close may be called at any
// time from any goroutine.
type Session struct {
	// id identifies the session in logs and metrics
	id string

	logger      *slog.Logger
	dialer      Dialer
	timeout     time.Duration
	framing     ReplyFraming
	encoding    encoding.Encoding
	limiter     *ratelimit.Limiter
	progress    func(transferred, total int64)
	metrics     MetricsCollector
	maxDownload int64

	// busy enforces the single in-flight command contract
	busy atomic.Bool

	// mu protects the fields below
	mu       sync.Mutex
	state    State
	host     string
	conn     net.Conn
	replies  *replyReader
	dataConn net.Conn
}

// New creates a disconnected session.
//
// Example:
//
//	s, err := ftp.New(ftp.WithTimeout(10 * time.Second))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer s.Close()
//
//	if err := s.Connect("ftp.example.com", 21, "anonymous", "anonymous@"); err != nil {
//	    log.Fatal(err)
//	}
func New(options ...Option) (*Session, error) {
	s := &Session{
		id:      uuid.NewString(),
		dialer:  &net.Dialer{},
		framing: FramePerRead,
		logger:  slog.New(slog.DiscardHandler),
	}

	for _, opt := range options {
		if err := opt(s); err != nil {
			return nil, fmt.Errorf("failed to apply option: %w", err)
		}
	}

	s.logger = s.logger.With("session", s.id)
	return s, nil
}

// ID returns the identifier attached to the session's log records.
func (s *Session) ID() string {
	return s.id
}

// State returns the current protocol state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// acquire claims the session for one operation.
func (s *Session) acquire() (release func(), err error) {
	if !s.busy.CompareAndSwap(false, true) {
		return nil, ErrConcurrentUse
	}
	return func() { s.busy.Store(false) }, nil
}

// advance moves to the given state unless the session was closed meanwhile.
func (s *Session) advance(to State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateDisconnected {
		s.state = to
	}
}

func (s *Session) requireReady() error {
	switch st := s.State(); st {
	case StateReady:
		return nil
	case StateDisconnected:
		return ErrNotConnected
	default:
		return fmt.Errorf("%w: session is %s", ErrNotConnected, st)
	}
}

// Connect opens the control connection to host:port and logs in. A Close
// while dialing wins: the new connection is dropped and ErrConnectionClosed
// is returned.
//
// It waits for the 220 greeting, then sends USER (expecting 331) and PASS
// (expecting 230). If the server answers any step with another code, an
// *UnexpectedReplyError is returned and the control connection is left
// open; the caller must Close the session.
func (s *Session) Connect(host string, port int, user, password string) error {
	release, err := s.acquire()
	if err != nil {
		return err
	}
	defer release()

	s.mu.Lock()
	if s.state != StateDisconnected {
		s.mu.Unlock()
		return ErrAlreadyConnected
	}
	s.state = StateConnecting
	s.host = host
	s.mu.Unlock()

	addr := net.JoinHostPort(host, strconv.Itoa(port))
	s.logger.Debug("connecting to ftp server", "addr", addr, "framing", s.framing)

	conn, err := s.dial(addr)
	if err != nil {
		s.mu.Lock()
		s.state = StateDisconnected
		s.mu.Unlock()
		s.recordConnection(false, "dial_failed")
		return fmt.Errorf("failed to connect: %w", err)
	}

	replies := newReplyReader(s.framing, s.logger)

	s.mu.Lock()
	if s.state != StateConnecting {
		// Closed while dialing.
		s.mu.Unlock()
		conn.Close()
		s.recordConnection(false, "closed")
		return ErrConnectionClosed
	}
	s.conn = conn
	s.replies = replies
	s.state = StateAwaitingGreeting
	s.mu.Unlock()

	go replies.run(s.decode(conn))

	if _, err := s.awaitReply("CONNECT", 220); err != nil {
		s.recordConnection(false, "greeting_rejected")
		return err
	}

	s.advance(StateAuthenticating)

	if _, err := s.expect("USER", codes(331), user); err != nil {
		s.recordConnection(false, "login_rejected")
		return err
	}
	if _, err := s.expect("PASS", codes(230), password); err != nil {
		s.recordConnection(false, "login_rejected")
		return err
	}

	s.advance(StateReady)
	s.recordConnection(true, "connected")
	s.logger.Debug("logged in", "addr", addr, "user", user)

	return nil
}

// Quit sends QUIT and closes the session without waiting for a reply;
// servers commonly drop the connection right after QUIT.
func (s *Session) Quit() error {
	release, err := s.acquire()
	if err != nil {
		return err
	}
	defer release()

	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()

	if conn == nil {
		return nil
	}

	s.logger.Debug("ftp command", "cmd", "QUIT")
	sendErr := s.writeLine(conn, "QUIT")
	closeErr := s.Close()

	if sendErr != nil {
		return fmt.Errorf("failed to send command: %w", sendErr)
	}
	return closeErr
}

// Close closes the data connection if one is open, then the control
// connection. It is idempotent and safe to call in any state. An operation
// blocked on the control connection fails with ErrConnectionClosed.
func (s *Session) Close() error {
	s.mu.Lock()
	data, conn, replies := s.dataConn, s.conn, s.replies
	s.dataConn, s.conn, s.replies = nil, nil, nil
	s.state = StateDisconnected
	s.mu.Unlock()

	var errs []error
	if data != nil {
		if err := data.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close data connection: %w", err))
		}
	}
	if conn != nil {
		if err := conn.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close control connection: %w", err))
		}
		<-replies.done
		s.logger.Debug("session closed")
	}

	return errors.Join(errs...)
}

func (s *Session) dial(addr string) (net.Conn, error) {
	ctx := context.Background()
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	return s.dialer.DialContext(ctx, "tcp", addr)
}

// decode wraps the control connection with the configured decoder.
func (s *Session) decode(r io.Reader) io.Reader {
	if s.encoding == nil {
		return r
	}
	return transform.NewReader(r, s.encoding.NewDecoder())
}

func (s *Session) recordConnection(success bool, reason string) {
	if s.metrics != nil {
		s.metrics.RecordConnection(success, reason)
	}
}
