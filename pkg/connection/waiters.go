package connection

import (
	"slices"
	"sync"

	"github.com/kecontact/kecontact-go/pkg/wire"
)

// waitKey correlates an awaited reply with the request that triggered it.
// The host is empty only for the discovery key, where any answering host is
// relevant.
type waitKey struct {
	kind wire.Kind
	host string
}

// discoveryKey collects firmware banners from the whole segment.
var discoveryKey = waitKey{kind: wire.KindDiscoveryReply}

// waiter is a single-fire signal with a result slot. The discovery waiter
// never fires; it accumulates answering hosts until the collection window
// closes and the caller drains it.
type waiter struct {
	done    chan struct{}
	once    sync.Once
	payload string
	hosts   []string
}

// waiterTable is the correlation registry: at most one waiter per key. The
// lock is held only for map and slot mutation, never across a wait.
type waiterTable struct {
	mu      sync.Mutex
	waiters map[waitKey]*waiter
}

func newWaiterTable() *waiterTable {
	return &waiterTable{waiters: make(map[waitKey]*waiter)}
}

// register installs a waiter for the key. A second registration while the
// first is outstanding fails with ErrAwaitPending.
func (t *waiterTable) register(key waitKey) (*waiter, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, exists := t.waiters[key]; exists {
		return nil, ErrAwaitPending
	}
	w := &waiter{done: make(chan struct{})}
	t.waiters[key] = w
	return w, nil
}

// deregister removes a waiter. Called by the awaiting side on every exit
// path so a timed-out registration never blocks future correlation.
func (t *waiterTable) deregister(key waitKey) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.waiters, key)
}

// collectHosts drains the hosts accumulated by the waiter for the key.
func (t *waiterTable) collectHosts(key waitKey) []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	w, ok := t.waiters[key]
	if !ok {
		return nil
	}
	hosts := w.hosts
	w.hosts = nil
	return hosts
}

// satisfy hands an inbound payload to the waiter for the key, if one is
// registered. Discovery accumulates the answering host; any other key
// stores the payload and fires exactly once. Reports whether the datagram
// was consumed.
func (t *waiterTable) satisfy(key waitKey, payload, host string) bool {
	t.mu.Lock()
	w, ok := t.waiters[key]
	if !ok {
		t.mu.Unlock()
		return false
	}

	if key == discoveryKey {
		if !slices.Contains(w.hosts, host) {
			w.hosts = append(w.hosts, host)
		}
		t.mu.Unlock()
		return true
	}

	t.mu.Unlock()
	// The payload is written before the channel closes, so the awaiting
	// side reads it race-free; a duplicate datagram changes nothing.
	w.once.Do(func() {
		w.payload = payload
		close(w.done)
	})
	return true
}
