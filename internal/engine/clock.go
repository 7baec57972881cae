package engine

import (
	"sync"
	"sync/atomic"
	"time"
)

// DefaultPulsePeriod is how often the progress pulse changes phase.
const DefaultPulsePeriod = 2 * time.Second

// Clock flips a phase flag on a fixed period. It drives the pulse of an
// unfinished progress bar and does no data work.
type Clock struct {
	period  time.Duration
	out     chan<- bool
	done    chan struct{}
	stopped chan struct{}
	phase   atomic.Bool
	started atomic.Bool

	startOnce sync.Once
	stopOnce  sync.Once
}

// NewClock creates a stopped clock. Each phase change is offered to out
// without blocking; out may be nil.
func NewClock(period time.Duration, out chan<- bool) *Clock {
	if period <= 0 {
		period = DefaultPulsePeriod
	}
	return &Clock{
		period:  period,
		out:     out,
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
}

// Start begins ticking in a background goroutine. Calling it again, or
// after Stop, does nothing.
func (c *Clock) Start() {
	c.startOnce.Do(func() {
		select {
		case <-c.done:
			return
		default:
		}
		c.started.Store(true)
		go c.run()
	})
}

// Stop halts the clock and waits for its goroutine to exit.
// Safe to call multiple times.
func (c *Clock) Stop() {
	c.stopOnce.Do(func() {
		close(c.done)
		if c.started.Load() {
			<-c.stopped
		}
	})
}

// Phase returns the current pulse phase
func (c *Clock) Phase() bool {
	return c.phase.Load()
}

func (c *Clock) run() {
	defer close(c.stopped)

	ticker := time.NewTicker(c.period)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			phase := !c.phase.Load()
			c.phase.Store(phase)
			if c.out == nil {
				continue
			}
			select {
			case c.out <- phase:
			default: // Non-blocking if nobody is listening
			}
		}
	}
}
