package events

import (
	"sync"

	"prepx/internal/domain"
)

// subscriberBuffer bounds how far a live observer may lag before it is
// disconnected. Observers must never block the pipeline.
const subscriberBuffer = 64

type subscriber struct {
	ch     chan domain.ProgressEvent
	closed bool
}

// Broadcaster fans pipeline events out to live observers. A subscriber
// sees only events published after it subscribed, in publish order;
// history is served separately via Log.Snapshot.
type Broadcaster struct {
	mu   sync.Mutex
	subs map[string][]*subscriber
}

// NewBroadcaster returns an empty broadcaster.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{subs: make(map[string][]*subscriber)}
}

// Subscribe registers a live observer for a run. The returned cancel
// func detaches it; the channel is closed when the run finishes or the
// observer falls too far behind.
func (b *Broadcaster) Subscribe(runID string) (<-chan domain.ProgressEvent, func()) {
	s := &subscriber{ch: make(chan domain.ProgressEvent, subscriberBuffer)}
	b.mu.Lock()
	b.subs[runID] = append(b.subs[runID], s)
	b.mu.Unlock()

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		b.detach(runID, s)
	}
	return s.ch, cancel
}

// Publish delivers an event to every observer of the run. A full buffer
// means the observer stopped reading; it is disconnected rather than
// allowed to stall the publisher.
func (b *Broadcaster) Publish(runID string, ev domain.ProgressEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, s := range b.subs[runID] {
		if s.closed {
			continue
		}
		select {
		case s.ch <- ev:
		default:
			b.detach(runID, s)
		}
	}
}

// CloseRun closes every observer channel for a finished run. The
// terminal event must have been published first.
func (b *Broadcaster) CloseRun(runID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, s := range b.subs[runID] {
		if !s.closed {
			s.closed = true
			close(s.ch)
		}
	}
	delete(b.subs, runID)
}

// detach is called with b.mu held.
func (b *Broadcaster) detach(runID string, target *subscriber) {
	subs := b.subs[runID]
	for i, s := range subs {
		if s == target {
			if !s.closed {
				s.closed = true
				close(s.ch)
			}
			b.subs[runID] = append(subs[:i], subs[i+1:]...)
			return
		}
	}
}
