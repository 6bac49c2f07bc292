package core

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"

	"github.com/Flamichka/sync/internal/domain"
)

var errClosed = errors.New("closed")

type fakeSignal struct {
	addr    string
	mu      sync.Mutex
	frames  []Frame
	sendErr error
	closed  bool

	panicOnSend  bool
	panicOnClose bool
}

func (f *fakeSignal) TrySend(fr Frame) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.panicOnSend {
		panic("transport write on torn buffer")
	}
	if f.sendErr != nil {
		return f.sendErr
	}
	if f.closed {
		return errClosed
	}
	f.frames = append(f.frames, append(Frame(nil), fr...))
	return nil
}

func (f *fakeSignal) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	if f.panicOnClose {
		panic("transport close on torn buffer")
	}
}

func (f *fakeSignal) RemoteAddr() string { return f.addr }

func (f *fakeSignal) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func (f *fakeSignal) failWith(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sendErr = err
}

func (f *fakeSignal) reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.frames = nil
}

// decoded returns every received frame of the given type, oldest first.
func (f *fakeSignal) decoded(t *testing.T, typ string) []map[string]any {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []map[string]any
	for _, fr := range f.frames {
		var m map[string]any
		require.NoError(t, json.Unmarshal(fr, &m))
		if m["type"] == typ {
			out = append(out, m)
		}
	}
	return out
}

func (f *fakeSignal) last(t *testing.T, typ string) map[string]any {
	t.Helper()
	all := f.decoded(t, typ)
	require.NotEmpty(t, all, "no %s frame received", typ)
	return all[len(all)-1]
}

var epoch = time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

func newTestRoom() (*Room, *clockwork.FakeClock) {
	clock := clockwork.NewFakeClockAt(epoch)
	return NewRoom("lobby", clock), clock
}

func joinRoom(r *Room, clock clockwork.Clock, name string) (*Connection, *fakeSignal) {
	sig := &fakeSignal{addr: "10.0.0.1"}
	c := NewConnection(NewConnectionID(), sig, name, NewTokenBucket(clock, 10, 5))
	r.Join(c)
	return c, sig
}

func memberIDs(infos []domain.MemberInfo) []domain.ConnectionID {
	out := make([]domain.ConnectionID, 0, len(infos))
	for _, m := range infos {
		out = append(out, m.ID)
	}
	return out
}

// within fails the test if fn does not return in time, which means a room
// lock was left held.
func within(t *testing.T, fn func()) {
	t.Helper()
	done := make(chan struct{})
	go func() {
		defer close(done)
		fn()
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("room call blocked")
	}
}

func f64(v float64) *float64 { return &v }
func str(v string) *string   { return &v }
