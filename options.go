package ftp

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"time"

	"golang.org/x/text/encoding"

	"github.com/gonzalop/miniftp/internal/ratelimit"
)

// Option is a functional option for configuring a Session.
type Option func(*Session) error

// Dialer establishes the control and data connections.
// *net.Dialer satisfies it; tests and proxies can supply their own.
type Dialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

// WithTimeout bounds dialing, every wait for a reply, and every read or
// write on the data connection. Zero, the default, disables the limit.
func WithTimeout(timeout time.Duration) Option {
	return func(s *Session) error {
		if timeout < 0 {
			return fmt.Errorf("negative timeout: %v", timeout)
		}
		s.timeout = timeout
		return nil
	}
}

// WithLogger enables debug logging using the provided logger.
// All FTP commands and replies will be logged at debug level; PASS
// arguments are masked.
//
// Example:
//
//	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
//	    Level: slog.LevelDebug,
//	}))
//	s, _ := ftp.New(ftp.WithLogger(logger))
func WithLogger(logger *slog.Logger) Option {
	return func(s *Session) error {
		if logger == nil {
			return fmt.Errorf("nil logger")
		}
		s.logger = logger
		return nil
	}
}

// WithDialer sets the dialer used for both the control and the data
// connection.
func WithDialer(dialer Dialer) Option {
	return func(s *Session) error {
		if dialer == nil {
			return fmt.Errorf("nil dialer")
		}
		s.dialer = dialer
		return nil
	}
}

// WithReplyFraming selects how received lines are grouped into replies.
// The default is FramePerRead.
func WithReplyFraming(framing ReplyFraming) Option {
	return func(s *Session) error {
		switch framing {
		case FramePerRead, FramePerReply:
			s.framing = framing
			return nil
		default:
			return fmt.Errorf("unknown reply framing: %v", framing)
		}
	}
}

// WithEncoding sets the character encoding of the control connection.
// Commands are encoded and replies decoded with it. By default bytes are
// passed through unchanged.
//
// Example:
//
//	s, _ := ftp.New(ftp.WithEncoding(charmap.Windows1252))
func WithEncoding(enc encoding.Encoding) Option {
	return func(s *Session) error {
		s.encoding = enc
		return nil
	}
}

// WithBandwidthLimit limits the data connection to the given number of
// bytes per second. Zero or a negative value means unlimited.
func WithBandwidthLimit(bytesPerSecond int64) Option {
	return func(s *Session) error {
		s.limiter = ratelimit.New(bytesPerSecond)
		return nil
	}
}

// WithProgress registers a callback invoked as bytes move over the data
// connection. total is the full transfer size.
func WithProgress(fn func(transferred, total int64)) Option {
	return func(s *Session) error {
		s.progress = fn
		return nil
	}
}

// WithMetrics registers a collector for command, transfer and connection
// metrics.
func WithMetrics(collector MetricsCollector) Option {
	return func(s *Session) error {
		s.metrics = collector
		return nil
	}
}

// WithMaxDownloadSize rejects downloads whose announced size exceeds n
// bytes before anything is allocated. Zero means no limit.
func WithMaxDownloadSize(n int64) Option {
	return func(s *Session) error {
		if n < 0 {
			return fmt.Errorf("negative maximum download size: %d", n)
		}
		s.maxDownload = n
		return nil
	}
}
