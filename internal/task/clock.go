package task

import (
	"sync/atomic"
	"time"
)

// Clock is the monotonic time source injected into leaves and decisions.
type Clock interface {
	Now() time.Time
}

// Period reports how much time is left before a deadline, e.g. the end of the
// autonomous period.
type Period interface {
	Remaining() time.Duration
}

// SystemClock reads the process clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// MatchPeriod is a Period that counts down from Start. It may be restarted from
// one goroutine and read from another.
type MatchPeriod struct {
	clock    Clock
	deadline atomic.Int64 // unix nanos; 0 = not started
}

// NewMatchPeriod returns a period driven by clock. Before Start it reports no
// time remaining.
func NewMatchPeriod(clock Clock) *MatchPeriod {
	if clock == nil {
		clock = SystemClock{}
	}
	return &MatchPeriod{clock: clock}
}

// Start begins a period of the given length now.
func (p *MatchPeriod) Start(length time.Duration) {
	p.deadline.Store(p.clock.Now().Add(length).UnixNano())
}

// Stop ends the period immediately.
func (p *MatchPeriod) Stop() { p.deadline.Store(0) }

func (p *MatchPeriod) Remaining() time.Duration {
	dl := p.deadline.Load()
	if dl == 0 {
		return 0
	}
	left := time.Duration(dl - p.clock.Now().UnixNano())
	if left < 0 {
		return 0
	}
	return left
}
