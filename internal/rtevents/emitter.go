// Package rtevents implements the runtime's named-event emitter:
// On/Once/AddListener/RemoveListener/RemoveAllListeners/Emit/
// ListenerCount, with one-shot listeners and deprecated-event forwarding.
package rtevents

import "sync"

// Listener receives an emitted event's arguments.
type Listener func(args ...interface{})

type registration struct {
	id     uint64
	fn     Listener
	once   bool
}

// Emitter is a process-wide (or scoped, callers choose) event bus.
// Safe for concurrent use.
type Emitter struct {
	mu          sync.Mutex
	listeners   map[string][]*registration
	deprecated  map[string]string // old event name -> canonical name
	warned      map[string]bool
	nextID      uint64
}

// New creates an empty Emitter.
func New() *Emitter {
	return &Emitter{
		listeners:  make(map[string][]*registration),
		deprecated: make(map[string]string),
		warned:     make(map[string]bool),
	}
}

// DeprecateEvent registers oldName as a deprecated alias for newName:
// the first registration against oldName emits a one-time warning
// (returned to the caller so it can be logged by whatever owns the
// Emitter) and both On and Emit transparently operate on newName.
func (e *Emitter) DeprecateEvent(oldName, newName string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.deprecated[oldName] = newName
}

func (e *Emitter) canonical(name string) (canon string, warnedNow bool) {
	target, ok := e.deprecated[name]
	if !ok {
		return name, false
	}
	warnedNow = !e.warned[name]
	e.warned[name] = true
	return target, warnedNow
}

// On registers a persistent listener for name. Returns an id usable
// with RemoveListener. If name is deprecated, warn reports whether this
// call produced the one-shot deprecation warning (the caller logs it).
func (e *Emitter) On(name string, fn Listener) (id uint64, warn bool) {
	return e.add(name, fn, false)
}

// Once registers a listener that is consumed atomically at the next
// Emit of name (or its canonical target, if name is deprecated).
func (e *Emitter) Once(name string, fn Listener) (id uint64, warn bool) {
	return e.add(name, fn, true)
}

// AddListener is an alias for On.
func (e *Emitter) AddListener(name string, fn Listener) (id uint64, warn bool) {
	return e.On(name, fn)
}

func (e *Emitter) add(name string, fn Listener, once bool) (uint64, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	canon, warn := e.canonical(name)
	e.nextID++
	reg := &registration{id: e.nextID, fn: fn, once: once}
	e.listeners[canon] = append(e.listeners[canon], reg)
	return reg.id, warn
}

// RemoveListener removes the listener registered under id for name (or
// its canonical target).
func (e *Emitter) RemoveListener(name string, id uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	canon, _ := e.canonical(name)
	regs := e.listeners[canon]
	for i, r := range regs {
		if r.id == id {
			e.listeners[canon] = append(regs[:i], regs[i+1:]...)
			return
		}
	}
}

// RemoveAllListeners drops every listener for name. If name is empty,
// every event's listeners are dropped.
func (e *Emitter) RemoveAllListeners(name string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if name == "" {
		e.listeners = make(map[string][]*registration)
		return
	}
	canon, _ := e.canonical(name)
	delete(e.listeners, canon)
}

// ListenerCount returns the number of listeners currently registered
// for name.
func (e *Emitter) ListenerCount(name string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	canon, _ := e.canonical(name)
	return len(e.listeners[canon])
}

// Emit calls every listener registered for name (or its canonical
// target) with args, in registration order, consuming Once listeners
// atomically before invoking anyone (so a listener added during Emit
// never sees this round, and a Once listener firing twice concurrently
// is impossible). Returns whether any listener was present.
func (e *Emitter) Emit(name string, args ...interface{}) bool {
	e.mu.Lock()
	canon, _ := e.canonical(name)
	regs := e.listeners[canon]
	if len(regs) == 0 {
		e.mu.Unlock()
		return false
	}
	snapshot := make([]*registration, len(regs))
	copy(snapshot, regs)

	remaining := regs[:0:0]
	for _, r := range regs {
		if !r.once {
			remaining = append(remaining, r)
		}
	}
	e.listeners[canon] = remaining
	e.mu.Unlock()

	for _, r := range snapshot {
		r.fn(args...)
	}
	return true
}
