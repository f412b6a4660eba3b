package presence

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeHandle is an in-memory recorder standing in for a broker connection.
type fakeHandle struct {
	mu     sync.Mutex
	writes [][]byte
	closed bool
}

func (f *fakeHandle) Write(p []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writes = append(f.writes, append([]byte(nil), p...))
	return nil
}

func (f *fakeHandle) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

// recordingBus captures every publish so tests can assert on presence
// events without a live Redis instance.
type recordingBus struct {
	mu     sync.Mutex
	events []string
}

func (b *recordingBus) Publish(username, event string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, username+":"+event)
}

func (b *recordingBus) Close() error { return nil }

func TestRegistry_BindLookupUnbind(t *testing.T) {
	bus := &recordingBus{}
	reg := NewRegistry(bus)

	alice := &fakeHandle{}
	reg.Bind("alice", alice)

	h, ok := reg.Lookup("alice")
	require.True(t, ok)
	assert.Same(t, alice, h)
	assert.Equal(t, []string{"alice:joined"}, bus.events)

	reg.Unbind(alice)
	_, ok = reg.Lookup("alice")
	assert.False(t, ok)
	assert.Equal(t, []string{"alice:joined", "alice:left"}, bus.events)
	// Unbind leaves the socket alone; closing it is the reader's job on
	// its way out.
	assert.False(t, alice.closed)
}

// TestRegistry_DuplicateUsernameEvictsPrevious: a second socket completing
// the handshake as an already-bound username evicts the first.
func TestRegistry_DuplicateUsernameEvictsPrevious(t *testing.T) {
	bus := &recordingBus{}
	reg := NewRegistry(bus)

	first := &fakeHandle{}
	second := &fakeHandle{}

	reg.Bind("alice", first)
	reg.Bind("alice", second)

	assert.True(t, first.closed)
	assert.False(t, second.closed)

	h, ok := reg.Lookup("alice")
	require.True(t, ok)
	assert.Same(t, second, h)
	assert.Equal(t, 1, reg.Count())

	// The registry invariant holds regardless of which connection
	// Unbind observes first: the replaced handle is already gone, so an
	// Unbind on it is a no-op.
	reg.Unbind(first)
	h, ok = reg.Lookup("alice")
	require.True(t, ok)
	assert.Same(t, second, h)
}

func TestRegistry_DeliverOnlineRecipient(t *testing.T) {
	reg := NewRegistry(nil)
	bob := &fakeHandle{}
	reg.Bind("bob", bob)

	ok := reg.Deliver("bob", []byte("alice: hi\n"))
	assert.True(t, ok)
	require.Len(t, bob.writes, 1)
	assert.Equal(t, "alice: hi\n", string(bob.writes[0]))
}

func TestRegistry_DeliverOfflineRecipient(t *testing.T) {
	reg := NewRegistry(nil)
	ok := reg.Deliver("nobody", []byte("alice: hi\n"))
	assert.False(t, ok)
}

func TestRegistry_SnapshotSorted(t *testing.T) {
	reg := NewRegistry(nil)
	reg.Bind("carol", &fakeHandle{})
	reg.Bind("alice", &fakeHandle{})
	reg.Bind("bob", &fakeHandle{})

	assert.Equal(t, []string{"alice", "bob", "carol"}, reg.Snapshot())
	assert.Equal(t, 3, reg.Count())
}

func TestRegistry_UnbindUnknownHandleIsNoop(t *testing.T) {
	reg := NewRegistry(nil)
	reg.Unbind(&fakeHandle{})
	assert.Equal(t, 0, reg.Count())
}
