package service

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// Event names emitted by the services.
const (
	EventPostSaved        = "post:saved"
	EventPostAutosaved    = "post:autosaved"
	EventPostDeleted      = "post:deleted"
	EventTemplateReloaded = "template:reloaded"
)

// ─────────────────────────────────────────────────────────────
// EventEmitter: decouples services from their observers
// ─────────────────────────────────────────────────────────────

// EventEmitter is an interface for publishing service events.
// Services receive this interface instead of a concrete sink,
// which makes them independently testable with a mock emitter.
type EventEmitter interface {
	Emit(ctx context.Context, event string, data any)
}

// LogEmitter writes every event to a zap logger at debug level.
type LogEmitter struct {
	Log *zap.Logger
}

func (e LogEmitter) Emit(_ context.Context, event string, data any) {
	if e.Log == nil {
		return
	}
	e.Log.Debug("event", zap.String("event", event), zap.Any("data", data))
}

// MockEmitter is a test-friendly EventEmitter that records all calls.
type MockEmitter struct {
	mu     sync.Mutex
	Events []EmittedEvent
}

// EmittedEvent holds a single recorded emission for test assertions.
type EmittedEvent struct {
	Event string
	Data  any
}

func (m *MockEmitter) Emit(_ context.Context, event string, data any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Events = append(m.Events, EmittedEvent{Event: event, Data: data})
}

// Names returns the recorded event names in emission order.
func (m *MockEmitter) Names() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	names := make([]string, len(m.Events))
	for i, e := range m.Events {
		names[i] = e.Event
	}
	return names
}
