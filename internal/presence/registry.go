// Package presence implements the Presence Registry: the in-memory
// directory of online usernames, guarded by a single mutex, plus the
// best-effort pub/sub side-channel that announces joins and leaves.
package presence

import (
	"sort"
	"sync"
)

// Handle is whatever the Connection Broker hands the registry for a given
// socket. It is deliberately small — the registry never needs to know
// anything about framing or protocol, only how to write a pre-formatted
// payload to the socket and how to tear it down.
type Handle interface {
	Write(p []byte) error
	Close() error
}

// Registry is the online-user directory. byName and byHandle are kept in
// lockstep under a single mutex. It is a plain struct member of the
// broker, not a package-level global.
type Registry struct {
	mu       sync.Mutex
	byName   map[string]Handle
	byHandle map[Handle]string

	bus Bus
}

// NewRegistry builds an empty registry. bus may be a NoopBus if no pub/sub
// backend is configured — presence operations still succeed locally.
func NewRegistry(bus Bus) *Registry {
	if bus == nil {
		bus = NoopBus{}
	}
	return &Registry{
		byName:   make(map[string]Handle),
		byHandle: make(map[Handle]string),
		bus:      bus,
	}
}

// Bind associates username with handle. If username is already bound, the
// existing connection is evicted — closed — before the new one takes its
// place, guaranteeing at most one connection per username.
func (r *Registry) Bind(username string, handle Handle) {
	r.mu.Lock()
	if existing, ok := r.byName[username]; ok && existing != handle {
		delete(r.byHandle, existing)
		existing.Close()
	}
	r.byName[username] = handle
	r.byHandle[handle] = username
	r.mu.Unlock()

	r.bus.Publish(username, "joined")
}

// Unbind removes handle from both maps if present. It is idempotent: a
// handle already evicted by a later Bind (or a prior Unbind) is simply not
// found, and the call is a no-op.
func (r *Registry) Unbind(handle Handle) {
	r.mu.Lock()
	username, ok := r.byHandle[handle]
	if ok {
		delete(r.byHandle, handle)
		if r.byName[username] == handle {
			delete(r.byName, username)
		}
	}
	r.mu.Unlock()

	if ok {
		r.bus.Publish(username, "left")
	}
}

// Lookup returns the handle bound to username, if any.
func (r *Registry) Lookup(username string) (Handle, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	h, ok := r.byName[username]
	return h, ok
}

// Deliver looks up recipient and, if online, writes payload to its socket —
// all under the registry mutex, so that a concurrent Bind/Unbind cannot
// interleave between the lookup and the write. It reports whether the
// recipient was online and the write succeeded.
func (r *Registry) Deliver(recipient string, payload []byte) bool {
	r.mu.Lock()
	handle, ok := r.byName[recipient]
	var writeErr error
	if ok {
		writeErr = handle.Write(payload)
	}
	r.mu.Unlock()

	return ok && writeErr == nil
}

// Snapshot returns every currently bound username, sorted ascending.
func (r *Registry) Snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	names := make([]string, 0, len(r.byName))
	for name := range r.byName {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Count returns the number of currently bound connections.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byName)
}

// CloseAll closes every currently bound handle's socket without touching
// the maps themselves — each reader observes the close as a read error and
// unwinds through its own Unbind call. Used on server shutdown to
// interrupt every reader's blocking read at once.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	handles := make([]Handle, 0, len(r.byName))
	for h := range r.byHandle {
		handles = append(handles, h)
	}
	r.mu.Unlock()

	for _, h := range handles {
		h.Close()
	}
}
