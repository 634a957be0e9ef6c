// Package timer provides the countdown primitive used by break and scenario
// stages. It knows nothing about rounds: callers re-arm it and decide whether
// a completion means "next round" or "done".
package timer

import (
	"sync"
	"time"
)

// Countdown is a running (or finished) countdown. Stop may be called at any
// point; once it returns, no further callbacks fire.
type Countdown struct {
	mu      sync.Mutex
	stopped bool
	ticker  *time.Ticker
	quit    chan struct{}
}

// Start arms a countdown of seconds with one tick per second. onTick receives
// the remaining seconds, counting down to 0, after which onComplete fires
// exactly once. A non-positive duration completes synchronously with no tick,
// that is the defined behavior for untimed stages.
func Start(seconds int, onTick func(remaining int), onComplete func()) *Countdown {
	return StartEvery(time.Second, seconds, onTick, onComplete)
}

// StartEvery is Start with a custom tick interval. The countdown still runs
// for seconds ticks; shorter intervals are used by callers that compress time.
func StartEvery(interval time.Duration, seconds int, onTick func(remaining int), onComplete func()) *Countdown {
	c := &Countdown{quit: make(chan struct{})}

	if seconds <= 0 {
		c.stopped = true
		if onComplete != nil {
			onComplete()
		}
		return c
	}

	c.ticker = time.NewTicker(interval)
	go c.run(seconds, onTick, onComplete)
	return c
}

func (c *Countdown) run(seconds int, onTick func(remaining int), onComplete func()) {
	defer c.ticker.Stop()

	remaining := seconds
	for {
		select {
		case <-c.quit:
			return
		case <-c.ticker.C:
			remaining--
			if !c.fire(func() {
				if onTick != nil {
					onTick(remaining)
				}
			}) {
				return
			}
			if remaining <= 0 {
				c.complete(onComplete)
				return
			}
		}
	}
}

// fire invokes f under the lock unless the countdown was stopped. Holding the
// lock while calling back is what makes Stop a hard barrier: after Stop
// returns no callback can be in flight.
func (c *Countdown) fire(f func()) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopped {
		return false
	}
	f()
	return true
}

func (c *Countdown) complete(onComplete func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopped {
		return
	}
	c.stopped = true
	if onComplete != nil {
		onComplete()
	}
}

// Stop cancels the countdown. Safe to call multiple times and after
// completion.
func (c *Countdown) Stop() {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return
	}
	c.stopped = true
	c.mu.Unlock()
	close(c.quit)
}
