package pipeline

import (
	"context"
	"sync"
	"time"
)

// watchdog aborts a run whose progress feed has gone quiet for too long.
// Individual stages carry no timeout of their own (external latency is
// bounded by the rate interval); the watchdog is the wall-clock backstop.
type watchdog struct {
	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	last     time.Time
	tripped  bool
	stopOnce sync.Once
	done     chan struct{}
}

func newWatchdog(parent context.Context, stall time.Duration) *watchdog {
	ctx, cancel := context.WithCancel(parent)
	w := &watchdog{
		ctx:    ctx,
		cancel: cancel,
		last:   time.Now(),
		done:   make(chan struct{}),
	}
	go w.watch(stall)
	return w
}

func (w *watchdog) watch(stall time.Duration) {
	tick := time.NewTicker(stall / 4)
	defer tick.Stop()
	for {
		select {
		case <-w.done:
			return
		case <-w.ctx.Done():
			return
		case <-tick.C:
			w.mu.Lock()
			quiet := time.Since(w.last)
			if quiet >= stall {
				w.tripped = true
				w.mu.Unlock()
				w.cancel()
				return
			}
			w.mu.Unlock()
		}
	}
}

// progress records that the run emitted something.
func (w *watchdog) progress() {
	w.mu.Lock()
	w.last = time.Now()
	w.mu.Unlock()
}

func (w *watchdog) stalled() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.tripped
}

func (w *watchdog) stop() {
	w.stopOnce.Do(func() { close(w.done) })
}
