package watcher

import (
	"sync"
	"time"
)

// DefaultDebounce is the quiet period after which a burst is delivered.
const DefaultDebounce = 500 * time.Millisecond

// Debouncer wraps a Watcher and coalesces every event arriving within the
// quiet period into one Batch, regardless of path. Each new event resets
// the timer.
type Debouncer struct {
	inner Watcher
	delay time.Duration

	mu       sync.Mutex
	pending  map[string]Event
	order    []string
	timer    *time.Timer
	batches  chan Batch
	errors   chan error
	closed   bool
	closeCh  chan struct{}
	closedWg sync.WaitGroup
}

// NewDebouncer creates a debouncer over inner. A non-positive delay means
// DefaultDebounce.
func NewDebouncer(inner Watcher, delay time.Duration) *Debouncer {
	if delay <= 0 {
		delay = DefaultDebounce
	}

	d := &Debouncer{
		inner:   inner,
		delay:   delay,
		pending: make(map[string]Event),
		batches: make(chan Batch, 1),
		errors:  make(chan error, 100),
		closeCh: make(chan struct{}),
	}

	d.closedWg.Add(1)
	go d.processLoop()

	return d
}

// Batches returns the channel of coalesced bursts.
func (d *Debouncer) Batches() <-chan Batch {
	return d.batches
}

// Errors returns the error channel.
func (d *Debouncer) Errors() <-chan error {
	return d.errors
}

// Delay returns the quiet period.
func (d *Debouncer) Delay() time.Duration {
	return d.delay
}

// Close stops the debouncer, drops any pending burst and closes the inner
// watcher.
func (d *Debouncer) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	close(d.closeCh)
	if d.timer != nil {
		d.timer.Stop()
	}
	d.pending = make(map[string]Event)
	d.order = nil
	d.mu.Unlock()

	err := d.inner.Close()
	d.closedWg.Wait()

	d.mu.Lock()
	close(d.batches)
	close(d.errors)
	d.mu.Unlock()
	return err
}

// PendingCount returns the number of distinct paths in the current burst.
func (d *Debouncer) PendingCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.pending)
}

func (d *Debouncer) processLoop() {
	defer d.closedWg.Done()

	events := d.inner.Events()
	errs := d.inner.Errors()
	for events != nil || errs != nil {
		select {
		case <-d.closeCh:
			return

		case event, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			d.handleEvent(event)

		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			d.forwardError(err)
		}
	}
}

func (d *Debouncer) handleEvent(event Event) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return
	}

	if p, exists := d.pending[event.Path]; exists {
		p.Op |= event.Op
		p.Timestamp = event.Timestamp
		d.pending[event.Path] = p
	} else {
		d.pending[event.Path] = event
		d.order = append(d.order, event.Path)
	}

	if d.timer == nil {
		d.timer = time.AfterFunc(d.delay, d.fire)
		return
	}
	d.timer.Reset(d.delay)
}

// fire delivers the pending burst. If a previous batch has not been
// consumed yet the two are merged.
func (d *Debouncer) fire() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed || len(d.pending) == 0 {
		return
	}
	batch := d.takeLocked()

	select {
	case prev := <-d.batches:
		batch = merge(prev, batch)
	default:
	}
	d.batches <- batch
}

// Flush delivers the pending burst immediately.
func (d *Debouncer) Flush() {
	d.mu.Lock()
	if d.timer != nil {
		d.timer.Stop()
	}
	d.mu.Unlock()
	d.fire()
}

func (d *Debouncer) takeLocked() Batch {
	batch := Batch{Events: make([]Event, 0, len(d.order))}
	for _, p := range d.order {
		batch.Events = append(batch.Events, d.pending[p])
	}
	d.pending = make(map[string]Event)
	d.order = nil
	return batch
}

func (d *Debouncer) forwardError(err error) {
	select {
	case d.errors <- err:
	case <-d.closeCh:
	default:
		// Channel full, drop error
	}
}

func merge(a, b Batch) Batch {
	index := make(map[string]int, len(a.Events))
	out := Batch{Events: append([]Event(nil), a.Events...)}
	for i, e := range out.Events {
		index[e.Path] = i
	}
	for _, e := range b.Events {
		if i, ok := index[e.Path]; ok {
			out.Events[i].Op |= e.Op
			out.Events[i].Timestamp = e.Timestamp
			continue
		}
		index[e.Path] = len(out.Events)
		out.Events = append(out.Events, e)
	}
	return out
}
