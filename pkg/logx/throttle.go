package logx

import (
	"sync/atomic"

	"golang.org/x/time/rate"
)

// Throttle bounds how often a hot-path call site logs. Calls over the limit are
// counted and the count is handed to the next call that is allowed through.
type Throttle struct {
	lim        *rate.Limiter
	suppressed atomic.Uint64
}

// NewThrottle allows perSec events on average with the given burst.
func NewThrottle(perSec float64, burst int) *Throttle {
	if burst < 1 {
		burst = 1
	}
	return &Throttle{lim: rate.NewLimiter(rate.Limit(perSec), burst)}
}

// Allow reports whether the caller may log now. When it may, suppressed is the
// number of calls dropped since the last allowed one.
func (t *Throttle) Allow() (ok bool, suppressed uint64) {
	if t == nil {
		return true, 0
	}
	if !t.lim.Allow() {
		t.suppressed.Add(1)
		return false, 0
	}
	return true, t.suppressed.Swap(0)
}
