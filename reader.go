package ftp

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// readChunkSize bounds a single read from the control connection.
const readChunkSize = 1000

// ReplyFraming selects how lines received on the control connection are
// grouped into replies.
type ReplyFraming int

const (
	// FramePerRead delivers everything completed by one read call as one
	// reply batch and signals once per read. It assumes each command is
	// answered by exactly one reply arriving in one read. A reply split by
	// the network across reads is delivered as two batches, and two replies
	// arriving in one read are merged (the last code wins).
	FramePerRead ReplyFraming = iota

	// FramePerReply groups lines into logical replies using the multi-line
	// convention ("220-..." continuation lines closed by "220 ...") and
	// queues every complete reply separately, independent of how the bytes
	// were split by the network.
	FramePerReply
)

// String returns the framing name.
func (f ReplyFraming) String() string {
	switch f {
	case FramePerRead:
		return "per-read"
	case FramePerReply:
		return "per-reply"
	default:
		return fmt.Sprintf("ReplyFraming(%d)", int(f))
	}
}

// lineAssembler splits a byte stream into CRLF-terminated lines, carrying
// any unterminated fragment over to the next chunk.
type lineAssembler struct {
	carry string
}

// feed returns the lines completed by chunk.
func (a *lineAssembler) feed(chunk string) []string {
	text := a.carry + chunk

	var lines []string
	for {
		idx := strings.Index(text, "\r\n")
		if idx < 0 {
			break
		}
		lines = append(lines, text[:idx])
		text = text[idx+2:]
	}

	a.carry = text
	return lines
}

// replyFramer collects lines until they form one complete reply.
//
// Single-line format: "220 Welcome"
// Multi-line format:
//
//	"220-Welcome to FTP"
//	"220-This is line 2"
//	"220 Ready"
type replyFramer struct {
	lines []string

	// open is the code of the multi-line reply being collected, if any.
	open string
}

// push adds a line and returns the reply it completes, or nil.
func (f *replyFramer) push(line string) []string {
	f.lines = append(f.lines, line)

	if f.open != "" {
		if len(line) >= 4 && line[:3] == f.open && line[3] == ' ' {
			return f.flush()
		}
		return nil
	}

	if _, ok := parseCode(line); !ok {
		return nil
	}
	if len(line) > 3 && line[3] == '-' {
		f.open = line[:3]
		return nil
	}
	return f.flush()
}

func (f *replyFramer) flush() []string {
	batch := f.lines
	f.lines = nil
	f.open = ""
	return batch
}

// replyReader is the background side of the control connection. One
// goroutine runs run() for the lifetime of the connection; the command
// issuer claims batches with await().
type replyReader struct {
	framing ReplyFraming
	logger  *slog.Logger

	// ready is the single-slot "reply available" signal.
	ready chan struct{}

	// done is closed when run returns.
	done chan struct{}

	// asm and framer are only touched by the run goroutine.
	asm    lineAssembler
	framer replyFramer

	mu      sync.Mutex
	pending []string
	queue   [][]string
	err     error
}

func newReplyReader(framing ReplyFraming, logger *slog.Logger) *replyReader {
	return &replyReader{
		framing: framing,
		logger:  logger,
		ready:   make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
}

// run reads r until it is closed or a read returns no bytes.
func (rr *replyReader) run(r io.Reader) {
	defer close(rr.done)

	buf := make([]byte, readChunkSize)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			rr.deliver(string(buf[:n]))
		}
		if err != nil {
			rr.stop(err)
			return
		}
		if n == 0 {
			rr.stop(io.EOF)
			return
		}
	}
}

func (rr *replyReader) deliver(chunk string) {
	lines := rr.asm.feed(chunk)

	rr.mu.Lock()
	var notify bool
	switch rr.framing {
	case FramePerReply:
		for _, line := range lines {
			if batch := rr.framer.push(line); batch != nil {
				rr.queue = append(rr.queue, batch)
			}
		}
		notify = len(rr.queue) > 0
	default:
		rr.pending = append(rr.pending, lines...)
		notify = true
	}
	rr.mu.Unlock()

	if notify {
		rr.signal()
	}
}

func (rr *replyReader) stop(err error) {
	rr.mu.Lock()
	rr.err = err
	rr.mu.Unlock()

	rr.logger.Debug("control connection reader stopped", "error", err)
}

func (rr *replyReader) signal() {
	select {
	case rr.ready <- struct{}{}:
	default:
	}
}

// reset marks that no reply has been claimed for the next command.
// Queued replies are kept when framing per reply.
func (rr *replyReader) reset() {
	if rr.framing == FramePerReply {
		return
	}
	select {
	case <-rr.ready:
	default:
	}
}

// await blocks until a reply batch is available and claims it.
// A timeout of zero waits indefinitely.
func (rr *replyReader) await(timeout time.Duration) ([]string, error) {
	var expired <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		expired = timer.C
	}

	select {
	case <-rr.ready:
	case <-rr.done:
		// A final delivery may have raced with the shutdown.
		select {
		case <-rr.ready:
		default:
			return nil, rr.closedErr()
		}
	case <-expired:
		return nil, ErrReplyTimeout
	}

	return rr.take(), nil
}

func (rr *replyReader) take() []string {
	rr.mu.Lock()
	defer rr.mu.Unlock()

	if rr.framing == FramePerReply {
		if len(rr.queue) == 0 {
			return nil
		}
		batch := rr.queue[0]
		rr.queue = rr.queue[1:]
		if len(rr.queue) > 0 {
			rr.signal()
		}
		return batch
	}

	lines := rr.pending
	rr.pending = nil
	return lines
}

func (rr *replyReader) closedErr() error {
	rr.mu.Lock()
	err := rr.err
	rr.mu.Unlock()

	if err == nil || errors.Is(err, io.EOF) {
		return ErrConnectionClosed
	}
	return fmt.Errorf("%w: %w", ErrConnectionClosed, err)
}
