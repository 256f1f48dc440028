// Package ratelimit paces FTP commands and throttles listing reads.
//
// Both limiters are token buckets from golang.org/x/time/rate. A nil
// limiter means unlimited, so callers never need to check whether a limit
// was configured.
package ratelimit

import (
	"context"
	"io"

	"golang.org/x/time/rate"
)

// maxChunkSize caps a single throttled read.
const maxChunkSize = 8 * 1024

// Pacer spaces out commands sent on a control connection.
type Pacer struct {
	limiter *rate.Limiter
}

// NewPacer returns a Pacer allowing perSecond commands per second, with no
// bursts. It returns nil, which never blocks, when perSecond <= 0.
func NewPacer(perSecond float64) *Pacer {
	if perSecond <= 0 {
		return nil
	}
	return &Pacer{limiter: rate.NewLimiter(rate.Limit(perSecond), 1)}
}

// Wait blocks until the next command may be sent.
func (p *Pacer) Wait() {
	if p == nil {
		return
	}
	_ = p.limiter.Wait(context.Background())
}

type reader struct {
	r       io.Reader
	limiter *rate.Limiter
	chunk   int
}

// NewReader returns a reader that delivers at most bytesPerSecond bytes per
// second from r, bursting up to one second worth of data.
// If bytesPerSecond <= 0, r is returned unchanged.
func NewReader(r io.Reader, bytesPerSecond int64) io.Reader {
	if bytesPerSecond <= 0 {
		return r
	}

	burst := int(min(bytesPerSecond, int64(maxChunkSize)))
	return &reader{
		r:       r,
		limiter: rate.NewLimiter(rate.Limit(bytesPerSecond), int(min(bytesPerSecond, 1<<30))),
		chunk:   burst,
	}
}

// Read implements io.Reader. Tokens for the whole chunk are taken before
// reading, so a short read still pays for the chunk.
func (r *reader) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}

	n := min(len(p), r.chunk)
	if err := r.limiter.WaitN(context.Background(), n); err != nil {
		return 0, err
	}
	return r.r.Read(p[:n])
}
