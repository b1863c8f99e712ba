package logship

import (
	"context"
	"sync"
)

// EventKind identifies a pipeline lifecycle event.
type EventKind uint8

const (
	// EventDelivered fires after a batch is acknowledged by the backend.
	EventDelivered EventKind = iota
	// EventRequeued fires when a failed batch is re-admitted to the buffer
	// for a later cycle.
	EventRequeued
	// EventDropped fires when records are discarded without delivery. This is
	// the asynchronous data-loss signal.
	EventDropped
	// EventBreakerOpened fires when the circuit breaker trips open.
	EventBreakerOpened
	// EventSuppression fires when a live-tail stream reports server-side
	// record suppression.
	EventSuppression

	eventKindCount
)

// IsValid reports whether the kind is a recognised event kind.
func (k EventKind) IsValid() bool {
	return k < eventKindCount
}

// Event describes a pipeline lifecycle occurrence passed to hooks.
type Event struct {
	// Kind is the event kind.
	Kind EventKind
	// Records is the number of records involved, when applicable.
	Records int
	// Err is the error that caused the event, if any.
	Err error
}

// HookFunc is a hook executed when a pipeline event fires. Hooks run on the
// pipeline's background goroutine and should return quickly.
type HookFunc func(ctx context.Context, event *Event)

// hooks maintains a registry of hook functions for each event kind.
//
//nolint:gochecknoglobals
var hooks = struct {
	sync.RWMutex

	funcs map[EventKind][]HookFunc
}{
	funcs: make(map[EventKind][]HookFunc),
}

// RegisterHook adds a hook function for the specified event kind. All hooks
// registered for a kind execute in registration order when that event fires.
//
// If the kind is invalid, the hook is registered for all kinds.
func RegisterHook(kind EventKind, hookFunc HookFunc) {
	if hookFunc == nil {
		return
	}

	hooks.Lock()
	defer hooks.Unlock()

	if !kind.IsValid() {
		for k := EventKind(0); k < eventKindCount; k++ {
			hooks.funcs[k] = append(hooks.funcs[k], hookFunc)
		}

		return
	}

	hooks.funcs[kind] = append(hooks.funcs[kind], hookFunc)
}

// ClearHooks removes all registered hooks.
func ClearHooks() {
	hooks.Lock()
	defer hooks.Unlock()

	hooks.funcs = make(map[EventKind][]HookFunc)
}

// FireHooks invokes all hooks registered for the event's kind.
func FireHooks(ctx context.Context, event *Event) {
	if event == nil {
		return
	}

	hooks.RLock()
	registered := make([]HookFunc, len(hooks.funcs[event.Kind]))
	copy(registered, hooks.funcs[event.Kind])
	hooks.RUnlock()

	for _, hookFunc := range registered {
		hookFunc(ctx, event)
	}
}
