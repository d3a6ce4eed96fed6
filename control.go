package ftp

import (
	"fmt"
	"net"
	"slices"
	"strings"
	"time"
)

func codes(c ...int) []int { return c }

// Verify checks that reply carries one of the expected codes.
// It returns nil on success and an *UnexpectedReplyError otherwise; a reply
// without a code never matches.
func Verify(command string, reply *Reply, expected ...int) error {
	if reply != nil && reply.HasCode() && slices.Contains(expected, reply.Code) {
		return nil
	}
	return &UnexpectedReplyError{
		Command:  command,
		Expected: slices.Clone(expected),
		Reply:    reply,
	}
}

// Command sends one command line and returns the reply batch delivered for
// it. The reply code is not checked; use Verify for that.
//
// Example:
//
//	reply, err := s.Command("TYPE", "I")
//	if err != nil {
//	    return err
//	}
//	if err := ftp.Verify("TYPE", reply, 200); err != nil {
//	    return err
//	}
func (s *Session) Command(command string, args ...string) (*Reply, error) {
	release, err := s.acquire()
	if err != nil {
		return nil, err
	}
	defer release()

	return s.sendCommand(command, args...)
}

// ReadReply waits for the next reply batch without sending anything, as
// needed for the greeting and for the completion reply of a transfer.
func (s *Session) ReadReply() (*Reply, error) {
	release, err := s.acquire()
	if err != nil {
		return nil, err
	}
	defer release()

	return s.readReply()
}

// User sends USER <name>.
func (s *Session) User(name string) (*Reply, error) {
	return s.Command("USER", name)
}

// Pass sends PASS <password>.
func (s *Session) Pass(password string) (*Reply, error) {
	return s.Command("PASS", password)
}

// Type sends TYPE <transferType> (e.g., "I" for binary).
func (s *Session) Type(transferType string) (*Reply, error) {
	return s.Command("TYPE", transferType)
}

// Epsv sends EPSV. A 229 reply carries the data port (see Reply.DataPort).
func (s *Session) Epsv() (*Reply, error) {
	return s.Command("EPSV")
}

// Size sends SIZE <path>. A 213 reply carries the length (see Reply.FileLength).
func (s *Session) Size(path string) (*Reply, error) {
	return s.Command("SIZE", path)
}

// Retr sends RETR <path> and returns the preliminary reply. The data
// connection must already be open.
func (s *Session) Retr(path string) (*Reply, error) {
	return s.Command("RETR", path)
}

// Stor sends STOR <path> and returns the preliminary reply. The data
// connection must already be open.
func (s *Session) Stor(path string) (*Reply, error) {
	return s.Command("STOR", path)
}

// sendCommand writes a command and claims the reply delivered for it.
func (s *Session) sendCommand(command string, args ...string) (*Reply, error) {
	s.mu.Lock()
	conn, replies := s.conn, s.replies
	s.mu.Unlock()

	if conn == nil {
		return nil, ErrNotConnected
	}

	line := command
	if len(args) > 0 {
		line = command + " " + strings.Join(args, " ")
	}

	if strings.EqualFold(command, "PASS") {
		s.logger.Debug("ftp command", "cmd", "PASS ****")
	} else {
		s.logger.Debug("ftp command", "cmd", line)
	}

	start := time.Now()

	// No reply claimed yet for this command.
	replies.reset()

	if err := s.writeLine(conn, line); err != nil {
		s.recordCommand(command, 0, false, start)
		return nil, fmt.Errorf("failed to send command: %w", err)
	}

	reply, err := s.claim(replies)
	if err != nil {
		s.recordCommand(command, 0, false, start)
		return nil, err
	}

	s.recordCommand(command, reply.Code, !reply.Is4xx() && !reply.Is5xx(), start)
	return reply, nil
}

// expect sends a command and verifies the reply code is one of expected.
func (s *Session) expect(command string, expected []int, args ...string) (*Reply, error) {
	reply, err := s.sendCommand(command, args...)
	if err != nil {
		return nil, err
	}
	if err := Verify(command, reply, expected...); err != nil {
		return reply, err
	}
	return reply, nil
}

// awaitReply claims the next reply and verifies its code.
func (s *Session) awaitReply(label string, expected ...int) (*Reply, error) {
	reply, err := s.readReply()
	if err != nil {
		return nil, err
	}
	if err := Verify(label, reply, expected...); err != nil {
		return reply, err
	}
	return reply, nil
}

func (s *Session) readReply() (*Reply, error) {
	s.mu.Lock()
	replies := s.replies
	s.mu.Unlock()

	if replies == nil {
		return nil, ErrNotConnected
	}
	return s.claim(replies)
}

func (s *Session) claim(replies *replyReader) (*Reply, error) {
	lines, err := replies.await(s.timeout)
	if err != nil {
		return nil, fmt.Errorf("failed to read reply: %w", err)
	}

	reply, err := ParseReply(lines)
	if err != nil {
		return nil, fmt.Errorf("failed to read reply: %w", err)
	}

	s.logger.Debug("ftp reply", "code", reply.Code, "message", reply.String())
	return reply, nil
}

// writeLine sends line terminated by CRLF on the control connection.
func (s *Session) writeLine(conn net.Conn, line string) error {
	if s.encoding != nil {
		encoded, err := s.encoding.NewEncoder().String(line)
		if err != nil {
			return fmt.Errorf("failed to encode command: %w", err)
		}
		line = encoded
	}

	if s.timeout > 0 {
		if err := conn.SetWriteDeadline(time.Now().Add(s.timeout)); err != nil {
			return fmt.Errorf("failed to set write deadline: %w", err)
		}
	}

	_, err := conn.Write([]byte(line + "\r\n"))
	return err
}

func (s *Session) recordCommand(command string, code int, success bool, start time.Time) {
	if s.metrics != nil {
		s.metrics.RecordCommand(strings.ToUpper(command), code, success, time.Since(start))
	}
}
