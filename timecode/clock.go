package timecode

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Source is anything that can drive the show clock.
type Source interface {
	Kind() Kind
	// Start begins delivering timecodes to emit, stopping any run already
	// in progress first. emit is called from the source's own goroutine.
	Start(ctx context.Context, emit func(Timecode)) error
	// Stop ends the current run. Stopping a stopped source does nothing.
	Stop()
}

// Clock is a self-advancing synthetic time source, ticking once per frame.
type Clock struct {
	l *slog.Logger

	mu      sync.Mutex
	current Timecode
	cancel  context.CancelFunc
	done    chan struct{}
}

var _ Source = (*Clock)(nil)

func NewClock(start Timecode, l *slog.Logger) *Clock {
	start.Source = Synthetic
	return &Clock{current: start, l: l}
}

func (c *Clock) Kind() Kind {
	return Synthetic
}

// Current returns the last value the clock produced.
func (c *Clock) Current() Timecode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// Tick advances one frame and returns the new value.
func (c *Clock) Tick() Timecode {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = c.current.Next()
	return c.current
}

func (c *Clock) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cancel != nil
}

func (c *Clock) Start(ctx context.Context, emit func(Timecode)) error {
	c.Stop()

	c.mu.Lock()
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	c.cancel = cancel
	c.done = done
	start := c.current
	c.mu.Unlock()

	interval := start.FrameRate.Interval()
	c.l.Info("starting synthetic clock", "from", start.String(), "fps", start.FrameRate.String(), "interval", interval)
	emit(start)

	go func() {
		defer close(done)
		defer c.release(done, cancel)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				emit(c.Tick())
			}
		}
	}()

	return nil
}

// release clears the run state when the run ends on its own, e.g. when the
// parent context is cancelled, unless Stop or a restart already replaced it.
func (c *Clock) release(done chan struct{}, cancel context.CancelFunc) {
	cancel()
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.done == done {
		c.cancel, c.done = nil, nil
	}
}

func (c *Clock) Stop() {
	c.mu.Lock()
	cancel, done := c.cancel, c.done
	c.cancel, c.done = nil, nil
	c.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	c.l.Info("stopped synthetic clock")
}
