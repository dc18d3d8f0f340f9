package storagenode

import (
	"context"
	"io"
	"strconv"

	"golang.org/x/time/rate"
)

// rateLimitedReader throttles reads against a shared rate.Limiter, so one
// node's total inbound upload bandwidth stays under UploadRateLimitBytesPerSec
// regardless of how many uploads run concurrently.
type rateLimitedReader struct {
	ctx     context.Context
	r       io.Reader
	limiter *rate.Limiter
}

func newRateLimitedReader(ctx context.Context, r io.Reader, limiter *rate.Limiter) io.Reader {
	return &rateLimitedReader{ctx: ctx, r: r, limiter: limiter}
}

func (rl *rateLimitedReader) Read(p []byte) (int, error) {
	n, err := rl.r.Read(p)
	if n > 0 {
		if werr := rl.limiter.WaitN(rl.ctx, n); werr != nil {
			return n, werr
		}
	}
	return n, err
}

func parseIndex(s string) (int, bool) {
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}
