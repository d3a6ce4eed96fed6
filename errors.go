package ftp

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	// ErrAlreadyConnected is returned by Connect when the session already
	// holds a control connection.
	ErrAlreadyConnected = errors.New("ftp: control connection already started")

	// ErrNotConnected is returned when a command or transfer is issued on a
	// session that is not connected (or not logged in, for transfers).
	ErrNotConnected = errors.New("ftp: not connected")

	// ErrAlreadyTransferring is returned when a data connection is requested
	// while another one is still open.
	ErrAlreadyTransferring = errors.New("ftp: data connection already started")

	// ErrInvalidInput is returned by ParseReply when it is given no lines.
	ErrInvalidInput = errors.New("ftp: no reply lines to parse")

	// ErrConcurrentUse is returned when a second command is issued while
	// another one is still in flight on the same session.
	ErrConcurrentUse = errors.New("ftp: session is busy with another command")

	// ErrConnectionClosed is returned when the control connection closes
	// while a reply is awaited.
	ErrConnectionClosed = errors.New("ftp: control connection closed")

	// ErrReplyTimeout is returned when no reply arrives within the
	// configured timeout.
	ErrReplyTimeout = errors.New("ftp: timed out waiting for reply")

	// ErrMissingDataPort is returned when a 229 reply carries no usable port.
	ErrMissingDataPort = errors.New("ftp: EPSV reply carries no data port")

	// ErrMissingFileLength is returned when a 213 reply carries no usable size.
	ErrMissingFileLength = errors.New("ftp: SIZE reply carries no file length")

	// ErrDownloadTooLarge is returned when the announced file length exceeds
	// the limit set with WithMaxDownloadSize.
	ErrDownloadTooLarge = errors.New("ftp: file exceeds maximum download size")
)

// UnexpectedReplyError is returned when the server answers a command with a
// reply code outside the set the protocol step accepts.
type UnexpectedReplyError struct {
	// Command is the command that was sent (e.g., "USER"), or "CONNECT" for
	// the greeting and "DATA_TRANSFER" for the completion reply.
	Command string

	// Expected lists the acceptable reply codes.
	Expected []int

	// Reply is the reply that was received.
	Reply *Reply
}

// Error implements the error interface.
func (e *UnexpectedReplyError) Error() string {
	return fmt.Sprintf("ftp: %s: expected reply code was %s, however the server replied: %s",
		e.Command, joinCodes(e.Expected), e.Response())
}

// Code returns the received reply code, or 0 if the reply had none.
func (e *UnexpectedReplyError) Code() int {
	if e.Reply == nil {
		return 0
	}
	return e.Reply.Code
}

// Response returns the full raw text of the received reply.
func (e *UnexpectedReplyError) Response() string {
	if e.Reply == nil {
		return ""
	}
	return e.Reply.String()
}

// IsTemporary returns true if the server reported a temporary failure (4xx).
// This can be used to implement retry logic.
func (e *UnexpectedReplyError) IsTemporary() bool {
	return e.Reply != nil && e.Reply.Is4xx()
}

// IsPermanent returns true if the server reported a permanent failure (5xx).
func (e *UnexpectedReplyError) IsPermanent() bool {
	return e.Reply != nil && e.Reply.Is5xx()
}

func joinCodes(codes []int) string {
	parts := make([]string, len(codes))
	for i, code := range codes {
		parts[i] = strconv.Itoa(code)
	}
	return strings.Join(parts, " or ")
}
