// Package hooks implements ordered, labelled, halt-able extension
// points. Hooks are registered against one of a
// fixed set of hook ids, optionally qualified with ".label" for later
// targeted removal, and fire serially in registration order.
package hooks

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// ID names one of the fixed extension points a hook can attach to.
type ID string

const (
	OnSend        ID = "onSend"
	PreRoute      ID = "preRoute"
	PreDeliver    ID = "preDeliver"
	PostDeliver   ID = "postDeliver"
	OnReceive     ID = "onReceive"
	PostReceive   ID = "postReceive"
	OnComplete    ID = "onComplete"
	PreInstall    ID = "preInstall"
	PostInstall   ID = "postInstall"
	PreUninstall  ID = "preUninstall"
	PostUninstall ID = "postUninstall"
)

var validIDs = map[ID]bool{
	OnSend: true, PreRoute: true, PreDeliver: true, PostDeliver: true,
	OnReceive: true, PostReceive: true, OnComplete: true,
	PreInstall: true, PostInstall: true, PreUninstall: true, PostUninstall: true,
}

// Event is the payload passed through a hook chain. Payload is
// replaceable: a hook function may return a new one that downstream
// hooks (and the caller, after Fire returns) will see in its place.
type Event struct {
	HookID  ID
	Payload interface{}
}

// Func is a single hook. It returns the (possibly replaced) payload,
// whether the chain should halt here, and an error if the hook itself
// failed. A halt or error stops every hook after it from running.
type Func func(ctx context.Context, evt *Event) (payload interface{}, halt bool, err error)

type entry struct {
	id    ID
	label string
	fn    Func
}

// Chains holds every registered hook, grouped by ID, fired in
// registration order. Safe for concurrent use; registration is
// expected to happen at module-install time while firing happens on
// the message-delivery hot path, so Fire takes a read snapshot rather
// than holding the lock across user code.
type Chains struct {
	mu      sync.Mutex
	byID    map[ID][]*entry
	onHalt  func(id ID)
}

// New creates an empty Chains.
func New() *Chains {
	return &Chains{byID: make(map[ID][]*entry)}
}

// SetHaltObserver installs a callback invoked once per Fire call that
// halts (a handler returning halt=true or an error, or the context
// being cancelled). nil disables
// observation. Used by internal/rtmetrics to count hook halts without
// this package needing to import a metrics dependency itself.
func (c *Chains) SetHaltObserver(fn func(id ID)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onHalt = fn
}

// Add registers fn against id (optionally "id.label", e.g.
// "onSend.audit"). Returns an error if id is not one of the fixed
// extension points.
func (c *Chains) Add(idWithLabel string, fn Func) error {
	id, label := splitLabel(idWithLabel)
	if !validIDs[id] {
		return fmt.Errorf("hooks: unknown hook id %q", id)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.byID[id] = append(c.byID[id], &entry{id: id, label: label, fn: fn})
	return nil
}

// Remove removes every hook registered under idWithLabel. If the
// label is omitted, every hook under that bare id is removed. The id
// "*" matches every hook id, so "*.audit" removes every hook labelled
// "audit" regardless of which extension point it is attached to.
func (c *Chains) Remove(idWithLabel string) {
	id, label := splitLabel(idWithLabel)
	c.mu.Lock()
	defer c.mu.Unlock()
	ids := []ID{id}
	if id == "*" {
		ids = ids[:0]
		for registered := range c.byID {
			ids = append(ids, registered)
		}
	}
	for _, target := range ids {
		if label == "" {
			delete(c.byID, target)
			continue
		}
		kept := c.byID[target][:0:0]
		for _, e := range c.byID[target] {
			if e.label != label {
				kept = append(kept, e)
			}
		}
		c.byID[target] = kept
	}
}

func splitLabel(idWithLabel string) (ID, string) {
	if i := strings.IndexByte(idWithLabel, '.'); i >= 0 {
		return ID(idWithLabel[:i]), idWithLabel[i+1:]
	}
	return ID(idWithLabel), ""
}

// Fire runs every hook registered for id in order, passing payload
// through the chain. It returns the final (possibly replaced) payload,
// whether some hook halted the chain, and the first error encountered.
// Hooks registered or removed concurrently with a running Fire never
// affect that Fire's snapshot (safe removal during traversal).
func (c *Chains) Fire(ctx context.Context, id ID, payload interface{}) (interface{}, bool, error) {
	c.mu.Lock()
	snapshot := make([]*entry, len(c.byID[id]))
	copy(snapshot, c.byID[id])
	onHalt := c.onHalt
	c.mu.Unlock()

	evt := &Event{HookID: id, Payload: payload}
	for _, e := range snapshot {
		select {
		case <-ctx.Done():
			if onHalt != nil {
				onHalt(id)
			}
			return evt.Payload, true, ctx.Err()
		default:
		}
		newPayload, halt, err := e.fn(ctx, evt)
		if newPayload != nil {
			evt.Payload = newPayload
		}
		if err != nil {
			if onHalt != nil {
				onHalt(id)
			}
			return evt.Payload, true, err
		}
		if halt {
			if onHalt != nil {
				onHalt(id)
			}
			return evt.Payload, true, nil
		}
	}
	return evt.Payload, false, nil
}
