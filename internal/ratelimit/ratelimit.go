// Package ratelimit throttles data-channel writes with a token bucket.
//
// The server wraps every data channel in a Writer when a bandwidth cap is
// configured, so listings and file bodies leave the process at no more than
// the configured number of bytes per second.
package ratelimit

import (
	"context"
	"io"
	"sync"
	"time"
)

// chunkSize is the largest slice handed to the underlying writer at once.
// Slower limiters use smaller chunks, see Limiter.chunk.
const chunkSize = 32 * 1024

// Limiter is a token bucket that refills at rate bytes per second and holds
// at most one second worth of tokens.
type Limiter struct {
	mu     sync.Mutex
	rate   float64
	tokens float64
	last   time.Time
	now    func() time.Time
}

// New returns a limiter for bytesPerSecond. A non-positive rate means
// "unlimited" and yields a nil limiter, which every function in this package
// accepts.
func New(bytesPerSecond int64) *Limiter {
	if bytesPerSecond <= 0 {
		return nil
	}
	return &Limiter{
		rate:   float64(bytesPerSecond),
		tokens: float64(bytesPerSecond),
		last:   time.Now(),
		now:    time.Now,
	}
}

// Rate reports the configured bytes per second, or 0 for a nil limiter.
func (l *Limiter) Rate() int64 {
	if l == nil {
		return 0
	}
	return int64(l.rate)
}

// reserve refills the bucket, takes n tokens and returns how long the caller
// must wait before the tokens are really available. The bucket may go into
// debt; the debt is repaid by later refills, never forgiven.
func (l *Limiter) reserve(n int) time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.tokens += now.Sub(l.last).Seconds() * l.rate
	if l.tokens > l.rate {
		l.tokens = l.rate
	}
	l.last = now

	l.tokens -= float64(n)
	if l.tokens >= 0 {
		return 0
	}

	return time.Duration(-l.tokens / l.rate * float64(time.Second))
}

// chunk returns the largest write that fits in one second of tokens, so a
// single reservation never waits much longer than a second.
func (l *Limiter) chunk() int {
	return max(1, min(chunkSize, int(l.rate)))
}

// Wait blocks until n bytes may be sent or ctx is done.
func (l *Limiter) Wait(ctx context.Context, n int) error {
	if l == nil || n <= 0 {
		return nil
	}
	wait := l.reserve(n)
	if wait <= 0 {
		return ctx.Err()
	}

	t := time.NewTimer(wait)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// writer applies a Limiter to an io.Writer.
type writer struct {
	ctx     context.Context
	w       io.Writer
	limiter *Limiter
}

// NewWriter wraps w so that writes honour limiter. A nil limiter returns w
// unchanged. ctx aborts a pending wait; the write then fails with ctx.Err().
func NewWriter(ctx context.Context, w io.Writer, limiter *Limiter) io.Writer {
	if limiter == nil {
		return w
	}
	return &writer{ctx: ctx, w: w, limiter: limiter}
}

// Write splits p into chunks and waits for tokens before each one.
func (w *writer) Write(p []byte) (int, error) {
	size := w.limiter.chunk()
	written := 0
	for written < len(p) {
		end := written + size
		if end > len(p) {
			end = len(p)
		}
		if err := w.limiter.Wait(w.ctx, end-written); err != nil {
			return written, err
		}
		n, err := w.w.Write(p[written:end])
		written += n
		if err != nil {
			return written, err
		}
	}
	return written, nil
}
