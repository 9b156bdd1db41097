package autosave

import (
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var epoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

var armed = Flags{IsDirty: true, IsAutosaveable: true}

type counter struct {
	mu sync.Mutex
	n  int
}

func (c *counter) inc() {
	c.mu.Lock()
	c.n++
	c.mu.Unlock()
}

func (c *counter) get() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.n
}

// waitForCalls waits for the counter to reach want. Fake clock callbacks run
// on their own goroutine once Advance expires the timer.
func waitForCalls(t *testing.T, c *counter, want int) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for c.get() < want {
		if time.Now().After(deadline) {
			t.Fatalf("autosave calls = %d, want %d", c.get(), want)
		}
		time.Sleep(time.Millisecond)
	}
	if got := c.get(); got != want {
		t.Fatalf("autosave calls = %d, want %d", got, want)
	}
}

func newFakeMonitor(initial Flags) (*Monitor, *clockwork.FakeClock, *counter) {
	clk := clockwork.NewFakeClockAt(epoch)
	calls := &counter{}
	return NewMonitor(clk, 10*time.Second, calls.inc, initial, nil), clk, calls
}

func TestMonitor_NothingArmedAtConstruction(t *testing.T) {
	m, clk, calls := newFakeMonitor(armed)
	if m.Pending() {
		t.Fatal("monitor armed at construction")
	}
	clk.Advance(time.Minute)
	if calls.get() != 0 {
		t.Fatalf("autosave ran without a flag change: %d", calls.get())
	}
}

func TestMonitor_ArmsAndFiresOnce(t *testing.T) {
	m, clk, calls := newFakeMonitor(Flags{})

	m.OnInputsChanged(armed)
	if !m.Pending() {
		t.Fatal("expected pending timer after dirty+autosaveable update")
	}
	clk.Advance(9 * time.Second)
	if calls.get() != 0 {
		t.Fatal("autosave fired before the interval elapsed")
	}
	clk.Advance(time.Second)
	waitForCalls(t, calls, 1)
	if m.Pending() {
		t.Error("fired timer should be consumed")
	}
	clk.Advance(time.Minute)
	if calls.get() != 1 {
		t.Errorf("autosave fired again without a flag change: %d", calls.get())
	}
}

func TestMonitor_AutosavingDisarms(t *testing.T) {
	m, clk, calls := newFakeMonitor(Flags{})

	m.OnInputsChanged(armed)
	m.OnInputsChanged(Flags{IsDirty: true, IsAutosaveable: true, IsAutosaving: true})
	if m.Pending() {
		t.Fatal("timer still pending while autosaving")
	}
	clk.Advance(time.Minute)
	if calls.get() != 0 {
		t.Fatalf("autosave fired after disarm: %d", calls.get())
	}
}

func TestMonitor_UnchangedFlagsDoNotResetTimer(t *testing.T) {
	m, clk, calls := newFakeMonitor(Flags{})

	m.OnInputsChanged(armed)
	clk.Advance(6 * time.Second)
	m.OnInputsChanged(armed)
	clk.Advance(4 * time.Second)

	waitForCalls(t, calls, 1)
}

func TestMonitor_FlagChangeRestartsInterval(t *testing.T) {
	m, clk, calls := newFakeMonitor(Flags{})

	m.OnInputsChanged(armed)
	clk.Advance(6 * time.Second)
	m.OnInputsChanged(Flags{IsDirty: true})
	m.OnInputsChanged(armed)
	clk.Advance(6 * time.Second)
	if calls.get() != 0 {
		t.Fatal("superseded timer fired")
	}
	clk.Advance(4 * time.Second)
	waitForCalls(t, calls, 1)
	if m.Pending() {
		t.Error("fired timer should be consumed")
	}
}

func TestMonitor_DisposeCancelsPendingTimer(t *testing.T) {
	m, clk, calls := newFakeMonitor(Flags{})

	m.OnInputsChanged(armed)
	m.Dispose()
	clk.Advance(time.Minute)
	if calls.get() != 0 {
		t.Fatalf("autosave fired after Dispose: %d", calls.get())
	}

	m.OnInputsChanged(Flags{})
	m.OnInputsChanged(armed)
	if m.Pending() {
		t.Error("disposed monitor re-armed")
	}
	m.Dispose()
}

type fakeSource struct {
	mu        sync.Mutex
	flags     Flags
	listeners map[int]func()
	next      int
}

func (s *fakeSource) AutosaveFlags() Flags {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flags
}

func (s *fakeSource) Subscribe(fn func()) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listeners == nil {
		s.listeners = map[int]func(){}
	}
	id := s.next
	s.next++
	s.listeners[id] = fn
	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

func (s *fakeSource) set(f Flags) {
	s.mu.Lock()
	s.flags = f
	fns := make([]func(), 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	s.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

func TestBind_FollowsSourceAndUnsubscribesOnDispose(t *testing.T) {
	src := &fakeSource{}
	m, clk, calls := newFakeMonitor(src.AutosaveFlags())
	Bind(src, m)

	src.set(armed)
	clk.Advance(10 * time.Second)
	waitForCalls(t, calls, 1)

	m.Dispose()
	src.mu.Lock()
	defer src.mu.Unlock()
	if len(src.listeners) != 0 {
		t.Errorf("listener still registered after Dispose")
	}
}

func TestMonitor_RealClock(t *testing.T) {
	done := make(chan struct{})
	m := NewMonitor(clockwork.NewRealClock(), 10*time.Millisecond, func() { close(done) }, Flags{}, nil)
	defer m.Dispose()

	m.OnInputsChanged(armed)
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("autosave did not fire on the real clock")
	}
}
