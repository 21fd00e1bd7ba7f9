package watcher

import (
	"context"
	"sync"
	"time"
)

// Debouncer groups rapid file changes together. A batch is emitted once no
// event has arrived for the configured delay. Within a batch every path
// appears once, in the order it was first seen.
type Debouncer struct {
	delay   time.Duration
	output  chan []ChangeEvent
	wake    chan struct{}
	mutex   sync.Mutex
	pending []ChangeEvent
	index   map[string]int
	last    time.Time
}

// NewDebouncer creates a debouncer with the given quiet period.
func NewDebouncer(delay time.Duration) *Debouncer {
	return &Debouncer{
		delay:  delay,
		output: make(chan []ChangeEvent),
		wake:   make(chan struct{}, 1),
		index:  make(map[string]int),
	}
}

// Output delivers the debounced batches.
func (d *Debouncer) Output() <-chan []ChangeEvent {
	return d.output
}

// Add records an event.
func (d *Debouncer) Add(ctx context.Context, event ChangeEvent) {
	d.mutex.Lock()
	if i, ok := d.index[event.Path]; ok {
		d.pending[i] = merge(d.pending[i], event)
	} else {
		d.index[event.Path] = len(d.pending)
		d.pending = append(d.pending, event)
	}
	d.last = time.Now()
	d.mutex.Unlock()

	select {
	case d.wake <- struct{}{}:
	default:
	}
}

// merge folds a later event for the same path into an earlier one.
func merge(prev, next ChangeEvent) ChangeEvent {
	switch {
	case prev.Type == EventTypeAdd && next.Type == EventTypeChange:
		next.Type = EventTypeAdd
	case prev.Type == EventTypeUnlink && next.Type == EventTypeAdd:
		next.Type = EventTypeChange
	}
	return next
}

// Run emits batches until ctx is cancelled.
func (d *Debouncer) Run(ctx context.Context) {
	timer := time.NewTimer(d.delay)
	timer.Stop()

	for {
		select {
		case <-ctx.Done():
			timer.Stop()
			return

		case <-d.wake:
			// Reset drops a pending expiry, so no drain is needed
			timer.Reset(d.delay)

		case <-timer.C:
			d.mutex.Lock()
			if wait := d.delay - time.Since(d.last); wait > 0 && len(d.pending) > 0 {
				d.mutex.Unlock()
				timer.Reset(wait)
				continue
			}
			batch := d.pending
			d.pending = nil
			d.index = make(map[string]int)
			d.mutex.Unlock()

			if len(batch) == 0 {
				continue
			}
			select {
			case d.output <- batch:
			case <-ctx.Done():
				return
			}
		}
	}
}
