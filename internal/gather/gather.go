// Package gather implements the per-need quote-gathering window: a
// three-state timer machine that decides when the requester stops
// waiting for supplier quotes and allocates.
package gather

import (
	"sync"
	"time"
)

type State int

const (
	// Idle: need broadcast, no accepting quote seen yet.
	Idle State = iota
	// Collecting: first accepting quote arrived, wake-up scheduled.
	Collecting
	// Closed: window fired or was stopped; late quotes are dropped.
	Closed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Collecting:
		return "collecting"
	default:
		return "closed"
	}
}

const (
	DefaultShortWait = 3 * time.Second
	DefaultMaxWait   = 9 * time.Second
)

// Controller owns the gather window for exactly one need. The first
// accepting quote schedules a single wake-up at
// min(first+shortWait, first+maxWait); later quotes never reset or
// extend the deadline, and at most one timer exists at any time.
// All methods are safe for concurrent use.
type Controller struct {
	shortWait time.Duration
	maxWait   time.Duration
	onClose   func()

	mu        sync.Mutex
	state     State
	firstSeen time.Time
	quotes    int
	timer     *time.Timer
}

// New creates a controller that calls onClose from the timer goroutine
// when the window fires with at least one accepting quote collected.
func New(shortWait, maxWait time.Duration, onClose func()) *Controller {
	if shortWait <= 0 {
		shortWait = DefaultShortWait
	}
	if maxWait <= 0 {
		maxWait = DefaultMaxWait
	}
	return &Controller{
		shortWait: shortWait,
		maxWait:   maxWait,
		onClose:   onClose,
		state:     Idle,
	}
}

// QuoteArrived records an accepting quote. It reports false when the
// window is already closed, in which case the quote is late and must
// not be considered for allocation.
func (c *Controller) QuoteArrived() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.state {
	case Closed:
		return false
	case Idle:
		c.state = Collecting
		c.firstSeen = time.Now()
		delay := c.shortWait
		if c.maxWait < delay {
			delay = c.maxWait
		}
		c.timer = time.AfterFunc(delay, c.fire)
	}
	c.quotes++
	return true
}

func (c *Controller) fire() {
	c.mu.Lock()
	if c.state == Closed {
		c.mu.Unlock()
		return
	}
	c.state = Closed
	collected := c.quotes
	c.mu.Unlock()

	if collected > 0 && c.onClose != nil {
		c.onClose()
	}
}

// Stop closes the window without triggering allocation. Used on
// shutdown or when the owning need is abandoned.
func (c *Controller) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = Closed
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// FirstQuoteAt returns when the first accepting quote arrived; zero if
// none has.
func (c *Controller) FirstQuoteAt() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.firstSeen
}
