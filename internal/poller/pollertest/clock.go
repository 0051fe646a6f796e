// Package pollertest provides a hand-driven clock for poller tests.
package pollertest

import (
	"sync"
	"time"

	"ppe-dashboard/internal/poller"
)

type Clock struct {
	mu      sync.Mutex
	now     time.Time
	tickers []*Ticker
}

func NewClock(now time.Time) *Clock {
	return &Clock{now: now}
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *Clock) Ticker(d time.Duration) poller.Ticker {
	c.mu.Lock()
	t := &Ticker{interval: d, ch: make(chan time.Time, 1)}
	c.tickers = append(c.tickers, t)
	c.mu.Unlock()
	return t
}

// WaitActive blocks until at least n live tickers run with interval d or
// the timeout passes.
func (c *Clock) WaitActive(d time.Duration, n int, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if c.Active(d) >= n {
			return true
		}
		time.Sleep(time.Millisecond)
	}
	return c.Active(d) >= n
}

// Active reports how many live tickers run with the given interval; zero
// matches any interval.
func (c *Clock) Active(d time.Duration) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, t := range c.tickers {
		if !t.stopped() && (d == 0 || t.interval == d) {
			n++
		}
	}
	return n
}

// Advance moves the clock forward and fires every live ticker whose interval
// matches d. A zero d fires all of them.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	now := c.now
	tickers := append([]*Ticker(nil), c.tickers...)
	c.mu.Unlock()

	for _, t := range tickers {
		if d != 0 && t.interval != d {
			continue
		}
		t.fire(now)
	}
}

type Ticker struct {
	interval time.Duration
	ch       chan time.Time

	mu   sync.Mutex
	done bool
}

func (t *Ticker) Chan() <-chan time.Time {
	return t.ch
}

func (t *Ticker) Stop() {
	t.mu.Lock()
	t.done = true
	t.mu.Unlock()
}

func (t *Ticker) stopped() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.done
}

func (t *Ticker) fire(now time.Time) {
	if t.stopped() {
		return
	}
	select {
	case t.ch <- now:
	default:
	}
}
