package session

import "sync"

// Listener receives state snapshots. Delivery is synchronous and ordered:
// a listener sees every snapshot in the order it was produced, and sees
// the current snapshot immediately on subscribe. Listeners run while the
// controller holds its state lock and must not call back into it; hand
// the snapshot to another goroutine if processing is slow.
type Listener func(ControllerState)

// observers is the listener registry.
type observers struct {
	mu      sync.Mutex
	nextID  int
	entries map[int]Listener
}

func newObservers() *observers {
	return &observers{entries: make(map[int]Listener)}
}

// add registers the listener and returns its unsubscribe function. The
// unsubscribe function is idempotent.
func (o *observers) add(fn Listener) func() {
	o.mu.Lock()
	id := o.nextID
	o.nextID++
	o.entries[id] = fn
	o.mu.Unlock()

	return func() {
		o.mu.Lock()
		delete(o.entries, id)
		o.mu.Unlock()
	}
}

// notify delivers the snapshot to every registered listener, holding the
// mutex for the whole pass so concurrent notifies cannot interleave.
func (o *observers) notify(state ControllerState) {
	o.mu.Lock()
	defer o.mu.Unlock()
	for _, fn := range o.entries {
		fn(state)
	}
}
