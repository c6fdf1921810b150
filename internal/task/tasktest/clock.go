package tasktest

import (
	"sync"
	"time"
)

// Epoch is the default start time of a FakeClock.
var Epoch = time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

// FakeClock is a manually advanced task.Clock.
type FakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func NewFakeClock() *FakeClock { return &FakeClock{now: Epoch} }

func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// FakePeriod reports a fixed remaining time until changed.
type FakePeriod struct {
	mu   sync.Mutex
	left time.Duration
}

func NewFakePeriod(left time.Duration) *FakePeriod { return &FakePeriod{left: left} }

func (p *FakePeriod) Remaining() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.left
}

func (p *FakePeriod) Set(left time.Duration) {
	p.mu.Lock()
	p.left = left
	p.mu.Unlock()
}
