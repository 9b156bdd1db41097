// Package autosave schedules autosaves for an editing session.
package autosave

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

// DefaultInterval is used when a monitor is created without a positive interval.
const DefaultInterval = 10 * time.Second

// Flags is the editor state the monitor reacts to.
type Flags struct {
	IsDirty        bool
	IsAutosaveable bool
	IsAutosaving   bool
}

// ShouldArm reports whether an autosave should be pending for these flags.
func (f Flags) ShouldArm() bool {
	return f.IsDirty && f.IsAutosaveable && !f.IsAutosaving
}

// Source is an observable editor state that can drive a Monitor.
type Source interface {
	AutosaveFlags() Flags
	Subscribe(fn func()) (unsubscribe func())
}

// Monitor owns at most one pending autosave timer. The timer is re-evaluated
// only when one of the three flags changes: it is cleared, then re-armed for
// the interval if the session is dirty, autosaveable and not autosaving.
// A fired timer calls the action once and is consumed.
type Monitor struct {
	mu          sync.Mutex
	clock       clockwork.Clock
	interval    time.Duration
	action      func()
	log         *zap.Logger
	flags       Flags
	timer       clockwork.Timer
	generation  uint64
	disposed    bool
	unsubscribe func()
}

// NewMonitor creates a Monitor holding initial as the last seen flags.
// Nothing is armed until the flags change.
func NewMonitor(clk clockwork.Clock, interval time.Duration, action func(), initial Flags, log *zap.Logger) *Monitor {
	if log == nil {
		log = zap.NewNop()
	}
	if interval <= 0 {
		interval = DefaultInterval
	}
	if clk == nil {
		clk = clockwork.NewRealClock()
	}
	return &Monitor{
		clock:    clk,
		interval: interval,
		action:   action,
		log:      log,
		flags:    initial,
	}
}

// Bind subscribes m to src and returns m. Dispose also unsubscribes.
func Bind(src Source, m *Monitor) *Monitor {
	unsubscribe := src.Subscribe(func() {
		m.OnInputsChanged(src.AutosaveFlags())
	})
	m.mu.Lock()
	if m.disposed {
		m.mu.Unlock()
		unsubscribe()
		return m
	}
	m.unsubscribe = unsubscribe
	m.mu.Unlock()
	return m
}

// OnInputsChanged feeds the latest flags to the monitor.
func (m *Monitor) OnInputsChanged(f Flags) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.disposed || f == m.flags {
		return
	}
	m.flags = f
	m.toggleLocked(f.ShouldArm())
}

// Pending reports whether an autosave timer is armed.
func (m *Monitor) Pending() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.timer != nil
}

// Dispose cancels any pending timer and detaches the monitor. It is safe to
// call more than once.
func (m *Monitor) Dispose() {
	m.mu.Lock()
	if m.disposed {
		m.mu.Unlock()
		return
	}
	m.disposed = true
	m.toggleLocked(false)
	unsubscribe := m.unsubscribe
	m.unsubscribe = nil
	m.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
}

// toggleLocked clears the current timer and, if arm is set, starts a new one.
// The generation counter voids callbacks of superseded timers that were
// already running when Stop was called.
func (m *Monitor) toggleLocked(arm bool) {
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
		m.log.Debug("autosave disarmed")
	}
	m.generation++
	if !arm {
		return
	}
	gen := m.generation
	m.timer = m.clock.AfterFunc(m.interval, func() { m.fire(gen) })
	m.log.Debug("autosave armed", zap.Duration("interval", m.interval))
}

func (m *Monitor) fire(gen uint64) {
	m.mu.Lock()
	if m.disposed || gen != m.generation || m.timer == nil {
		m.mu.Unlock()
		return
	}
	m.timer = nil
	m.mu.Unlock()

	m.log.Debug("autosave fired")
	m.action()
}
