package ftp

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"time"

	"github.com/gonzalop/miniftp/internal/ratelimit"
)

// deadlineConn wraps a net.Conn and sets a read/write deadline before every operation.
type deadlineConn struct {
	net.Conn
	timeout time.Duration
}

func (c *deadlineConn) Read(b []byte) (n int, err error) {
	if err := c.Conn.SetReadDeadline(time.Now().Add(c.timeout)); err != nil {
		return 0, err
	}
	return c.Conn.Read(b)
}

func (c *deadlineConn) Write(b []byte) (n int, err error) {
	if err := c.Conn.SetWriteDeadline(time.Now().Add(c.timeout)); err != nil {
		return 0, err
	}
	return c.Conn.Write(b)
}

// OpenDataConn connects to the given port on the control connection's
// host, as announced by a 229 reply. Only one data connection may be open
// at a time.
func (s *Session) OpenDataConn(port int) error {
	release, err := s.acquire()
	if err != nil {
		return err
	}
	defer release()

	return s.openDataConn(port)
}

// ReadData reads exactly n bytes from the data connection and closes it.
func (s *Session) ReadData(n int64) ([]byte, error) {
	release, err := s.acquire()
	if err != nil {
		return nil, err
	}
	defer release()

	return s.readAndClose(n)
}

// WriteData writes data to the data connection and closes it. It returns
// len(data) on success and zero with any error.
func (s *Session) WriteData(data []byte) (int, error) {
	release, err := s.acquire()
	if err != nil {
		return 0, err
	}
	defer release()

	return s.writeAndClose(data)
}

func (s *Session) openDataConn(port int) error {
	s.mu.Lock()
	host, connected, open := s.host, s.conn != nil, s.dataConn != nil
	s.mu.Unlock()

	if !connected {
		return ErrNotConnected
	}
	if open {
		return ErrAlreadyTransferring
	}
	if port <= 0 || port > 65535 {
		return fmt.Errorf("invalid data port: %d", port)
	}

	addr := net.JoinHostPort(host, strconv.Itoa(port))
	s.logger.Debug("opening data connection", "addr", addr)

	conn, err := s.dial(addr)
	if err != nil {
		return fmt.Errorf("failed to connect to data port: %w", err)
	}
	if s.timeout > 0 {
		conn = &deadlineConn{Conn: conn, timeout: s.timeout}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case s.conn == nil:
		conn.Close()
		return ErrNotConnected
	case s.dataConn != nil:
		conn.Close()
		return ErrAlreadyTransferring
	}
	s.dataConn = conn
	return nil
}

// closeDataConn closes the data connection if one is open.
func (s *Session) closeDataConn() error {
	s.mu.Lock()
	conn := s.dataConn
	s.dataConn = nil
	s.mu.Unlock()

	if conn == nil {
		return nil
	}
	s.logger.Debug("closing data connection")
	return conn.Close()
}

func (s *Session) currentDataConn() (net.Conn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dataConn == nil {
		return nil, fmt.Errorf("%w: no data connection", ErrNotConnected)
	}
	return s.dataConn, nil
}

// maxPrealloc caps the buffer reserved up front for a download. The
// announced length comes from the server and is not trusted beyond that.
const maxPrealloc = 1 << 20

// readAndClose reads exactly n bytes, then closes the data connection.
// No bytes are returned unless all n arrived.
func (s *Session) readAndClose(n int64) ([]byte, error) {
	conn, err := s.currentDataConn()
	if err != nil {
		return nil, err
	}
	if n < 0 || int64(int(n)) != n {
		_ = s.closeDataConn()
		return nil, fmt.Errorf("%w: %d bytes", ErrDownloadTooLarge, n)
	}

	var r io.Reader = ratelimit.NewReader(conn, s.limiter)
	if s.progress != nil {
		r = &ProgressReader{Reader: r, Callback: s.progressCallback(n)}
	}

	var buf bytes.Buffer
	buf.Grow(int(min(n, maxPrealloc)))
	_, readErr := io.CopyN(&buf, r, n)
	closeErr := s.closeDataConn()

	if errors.Is(readErr, io.EOF) {
		readErr = io.ErrUnexpectedEOF
	}
	if readErr != nil {
		return nil, fmt.Errorf("failed to read data: %w", readErr)
	}
	if closeErr != nil {
		return nil, fmt.Errorf("failed to close data connection: %w", closeErr)
	}
	return buf.Bytes(), nil
}

// writeAndClose writes all of data, then closes the data connection. The
// count is zero whenever an error is returned.
func (s *Session) writeAndClose(data []byte) (int, error) {
	conn, err := s.currentDataConn()
	if err != nil {
		return 0, err
	}

	var w io.Writer = conn
	if s.progress != nil {
		w = &ProgressWriter{Writer: w, Callback: s.progressCallback(int64(len(data)))}
	}
	w = ratelimit.NewWriter(w, s.limiter)

	n, writeErr := w.Write(data)
	closeErr := s.closeDataConn()

	if writeErr != nil {
		return 0, fmt.Errorf("failed to write data: %w", writeErr)
	}
	if closeErr != nil {
		return 0, fmt.Errorf("failed to close data connection: %w", closeErr)
	}
	return n, nil
}

func (s *Session) progressCallback(total int64) func(int64) {
	return func(transferred int64) {
		s.progress(transferred, total)
	}
}
