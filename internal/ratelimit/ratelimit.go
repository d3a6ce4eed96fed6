// Package ratelimit throttles data connection transfers with a token
// bucket from golang.org/x/time/rate.
package ratelimit

import (
	"context"
	"io"

	"golang.org/x/time/rate"
)

// maxBurst caps the bucket so a single read or write never moves more than
// this many bytes without waiting.
const maxBurst = 8 * 1024

// Limiter limits the rate of data transfer to a number of bytes per second.
// A nil *Limiter means unlimited.
type Limiter struct {
	lim *rate.Limiter
}

// New creates a limiter for the given bytes per second. It returns nil
// (unlimited) for zero or negative rates.
func New(bytesPerSecond int64) *Limiter {
	if bytesPerSecond <= 0 {
		return nil
	}

	burst := maxBurst
	if bytesPerSecond < int64(burst) {
		burst = int(bytesPerSecond)
	}
	return &Limiter{lim: rate.NewLimiter(rate.Limit(bytesPerSecond), burst)}
}

// Rate returns the configured bytes per second, or 0 for a nil limiter.
func (l *Limiter) Rate() int64 {
	if l == nil {
		return 0
	}
	return int64(l.lim.Limit())
}

// chunk returns how many bytes may be moved in one step.
func (l *Limiter) chunk(n int) int {
	if burst := l.lim.Burst(); n > burst {
		return burst
	}
	return n
}

// wait blocks until n tokens are available.
func (l *Limiter) wait(n int) error {
	return l.lim.WaitN(context.Background(), n)
}

type reader struct {
	r       io.Reader
	limiter *Limiter
}

// NewReader creates a rate-limited reader.
// If limiter is nil, returns the original reader unchanged.
func NewReader(r io.Reader, limiter *Limiter) io.Reader {
	if limiter == nil {
		return r
	}
	return &reader{r: r, limiter: limiter}
}

// Read implements io.Reader with rate limiting.
func (r *reader) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}

	size := r.limiter.chunk(len(p))
	if err := r.limiter.wait(size); err != nil {
		return 0, err
	}
	return r.r.Read(p[:size])
}

type writer struct {
	w       io.Writer
	limiter *Limiter
}

// NewWriter creates a rate-limited writer.
// If limiter is nil, returns the original writer unchanged.
func NewWriter(w io.Writer, limiter *Limiter) io.Writer {
	if limiter == nil {
		return w
	}
	return &writer{w: w, limiter: limiter}
}

// Write implements io.Writer with rate limiting. Tokens are taken before
// each chunk is written.
func (w *writer) Write(p []byte) (int, error) {
	total := 0
	for total < len(p) {
		size := w.limiter.chunk(len(p) - total)
		if err := w.limiter.wait(size); err != nil {
			return total, err
		}

		n, err := w.w.Write(p[total : total+size])
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}
