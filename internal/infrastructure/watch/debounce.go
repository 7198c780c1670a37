// Package watch follows the feedback directory and reports new records.
package watch

import (
	"sort"
	"sync"
	"time"
)

// Batcher collects change events and delivers them in one call once the
// window passes without further events. Repeated events for a path keep
// only the latest.
type Batcher struct {
	window  time.Duration
	deliver func([]ChangeEvent)

	mu      sync.Mutex
	timer   *time.Timer
	pending map[string]ChangeEvent
	stopped bool
}

// NewBatcher creates a batcher with the given quiet window.
func NewBatcher(window time.Duration, deliver func([]ChangeEvent)) *Batcher {
	return &Batcher{
		window:  window,
		deliver: deliver,
		pending: make(map[string]ChangeEvent),
	}
}

// Add queues ev and restarts the window.
func (b *Batcher) Add(ev ChangeEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.stopped {
		return
	}

	b.pending[ev.Path] = ev
	if b.timer != nil {
		b.timer.Stop()
	}
	b.timer = time.AfterFunc(b.window, b.flush)
}

func (b *Batcher) flush() {
	b.mu.Lock()
	if b.stopped || len(b.pending) == 0 {
		b.mu.Unlock()
		return
	}
	batch := make([]ChangeEvent, 0, len(b.pending))
	for _, ev := range b.pending {
		batch = append(batch, ev)
	}
	b.pending = make(map[string]ChangeEvent)
	b.mu.Unlock()

	sort.Slice(batch, func(i, j int) bool { return batch[i].Path < batch[j].Path })
	b.deliver(batch)
}

// Stop drops anything pending. Add after Stop is a no-op.
func (b *Batcher) Stop() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.stopped = true
	if b.timer != nil {
		b.timer.Stop()
	}
	b.pending = nil
}
