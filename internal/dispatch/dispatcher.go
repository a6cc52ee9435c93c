// Package dispatch routes decoded events to the handler registered for their kind.
package dispatch

import (
	"sync"

	"github.com/leandrodaf/midiserial/sdk/contracts"
)

// Dispatcher holds at most one handler per event kind.
type Dispatcher struct {
	mu       sync.RWMutex
	handlers map[contracts.EventKind]contracts.Handler
}

// New returns a dispatcher with no handlers registered.
func New() *Dispatcher {
	return &Dispatcher{handlers: make(map[contracts.EventKind]contracts.Handler)}
}

// Register sets the handler for kind, replacing any previous one.
// A nil handler removes the registration. Unknown cannot be registered.
func (d *Dispatcher) Register(kind contracts.EventKind, h contracts.Handler) {
	if kind == contracts.Unknown {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if h == nil {
		delete(d.handlers, kind)
		return
	}
	d.handlers[kind] = h
}

// Registered reports whether a handler is set for kind.
func (d *Dispatcher) Registered(kind contracts.EventKind) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.handlers[kind]
	return ok
}

// Dispatch invokes the handler for ev.Kind synchronously and reports whether one ran.
// The lock is released before the handler is called so handlers may re-register.
func (d *Dispatcher) Dispatch(ev contracts.Event) bool {
	d.mu.RLock()
	h := d.handlers[ev.Kind]
	d.mu.RUnlock()
	if h == nil {
		return false
	}
	h(ev.Channel, ev.Data1, ev.Data2)
	return true
}
