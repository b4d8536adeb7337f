// Package notify delivers task list change notifications.
//
// A single Notifier is built by the composition root and handed to the task
// repository, which publishes a Change every time its derived view moves.
// Presenters (status line, browser, watch output) subscribe to redraw.
package notify

import (
	"sort"
	"sync"
)

// ChangeType identifies what moved in the task list.
type ChangeType int

const (
	// ChangeRefresh indicates the raw task set was replaced by a scan.
	ChangeRefresh ChangeType = iota

	// ChangeFilter indicates the filter text changed.
	ChangeFilter

	// ChangeGroup indicates the grouping mode changed.
	ChangeGroup

	// ChangeDone indicates a task's done flag was toggled.
	ChangeDone
)

// String returns the change type name.
func (c ChangeType) String() string {
	switch c {
	case ChangeRefresh:
		return "refresh"
	case ChangeFilter:
		return "filter"
	case ChangeGroup:
		return "group"
	case ChangeDone:
		return "done"
	default:
		return "unknown"
	}
}

// Change is a task list change event.
type Change struct {
	Type ChangeType

	// Count is the size of the filtered view after the change.
	Count int

	// Total is the size of the raw set after the change.
	Total int
}

// Observer is called when a change is published.
type Observer func(change Change)

// Subscription is an active observer registration.
type Subscription struct {
	id       uint64
	notifier *Notifier
}

// Unsubscribe removes the observer. Safe to call more than once.
func (s *Subscription) Unsubscribe() {
	if s != nil && s.notifier != nil {
		s.notifier.unsubscribe(s.id)
	}
}

type registration struct {
	observer Observer
	types    map[ChangeType]bool // nil means all types
}

// Notifier fans changes out to observers synchronously, in subscription order.
type Notifier struct {
	mu     sync.RWMutex
	subs   map[uint64]registration
	nextID uint64
	closed bool
}

// New creates a Notifier.
func New() *Notifier {
	return &Notifier{
		subs: make(map[uint64]registration),
	}
}

// Subscribe registers an observer for every change.
func (n *Notifier) Subscribe(observer Observer) *Subscription {
	return n.add(registration{observer: observer})
}

// SubscribeTypes registers an observer for the listed change types only.
func (n *Notifier) SubscribeTypes(observer Observer, types ...ChangeType) *Subscription {
	set := make(map[ChangeType]bool, len(types))
	for _, t := range types {
		set[t] = true
	}
	return n.add(registration{observer: observer, types: set})
}

func (n *Notifier) add(reg registration) *Subscription {
	n.mu.Lock()
	defer n.mu.Unlock()

	id := n.nextID
	n.nextID++
	n.subs[id] = reg

	return &Subscription{id: id, notifier: n}
}

// Notify delivers a change to every matching observer.
// Observers run outside the lock and may call back into the publisher.
func (n *Notifier) Notify(change Change) {
	n.mu.RLock()
	if n.closed {
		n.mu.RUnlock()
		return
	}

	ids := make([]uint64, 0, len(n.subs))
	for id, reg := range n.subs {
		if reg.types == nil || reg.types[change.Type] {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	observers := make([]Observer, len(ids))
	for i, id := range ids {
		observers[i] = n.subs[id].observer
	}
	n.mu.RUnlock()

	for _, obs := range observers {
		obs(change)
	}
}

// Len returns the number of active subscriptions.
func (n *Notifier) Len() int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return len(n.subs)
}

// Close drops every subscription; later Notify calls are no-ops.
func (n *Notifier) Close() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.closed = true
	n.subs = make(map[uint64]registration)
}

func (n *Notifier) unsubscribe(id uint64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	delete(n.subs, id)
}
