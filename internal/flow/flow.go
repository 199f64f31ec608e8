// Package flow implements the per-tab Flow: it
// owns a flow's node instances, starts/stops them, and routes the
// scope-filtered catch/status/complete side channels.
package flow

import (
	"context"
	"fmt"
	"sync"

	"github.com/rauldose/node-red-new-sub000/internal/node"
	"github.com/rauldose/node-red-new-sub000/internal/rtlog"
	"github.com/rauldose/node-red-new-sub000/pkg/model"
)

// Closer is anything Flow can Start/Stop: every catalog node
// implements this by embedding *node.Node and overriding as needed.
type Closer interface {
	ID() string
	Close(removed bool) error
}

// Initializer is implemented by nodes needing a post-wiring hook, run
// once every node in the flow has been constructed and wired (the
// lifecycle is construct, wire, then Initialize).
type Initializer interface {
	Initialize(ctx context.Context) error
}

// ScopedReceiver is a catch/status/complete node: it has an optional
// scope id-set and an uncaught flag (meaningful only for catch nodes).
type ScopedReceiver interface {
	Closer
	Scope() []string    // empty/nil = matches every source in this flow
	Uncaught() bool      // catch-only: forward errors from other catch nodes
	ReceiveSideChannel(ctx context.Context, msg *model.Message)
}

// Flow owns one tab's node instances and the scope-indexed catch/
// status/complete receivers within it. A subflow instance's internal
// Flow sets parent to the enclosing Flow so unmatched events bubble up.
type Flow struct {
	ID     string
	Label  string

	parent *Flow
	log    *rtlog.Logger

	mu           sync.RWMutex
	nodes        map[string]Closer
	catchNodes   []ScopedReceiver
	statusNodes  []ScopedReceiver
	completeNodes []ScopedReceiver
}

// New creates an empty Flow. parent may be nil for a root flow.
func New(id, label string, parent *Flow, log *rtlog.Logger) *Flow {
	return &Flow{
		ID:     id,
		Label:  label,
		parent: parent,
		log:    log,
		nodes:  make(map[string]Closer),
	}
}

// AddNode registers a constructed, wired node instance as a member of
// this flow, replacing any previous instance under the same id (an
// incremental redeploy swaps a changed node in place). If it
// implements ScopedReceiver it is additionally indexed as a
// catch/status/complete target by its role.
func (f *Flow) AddNode(n Closer, role Role) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, replacing := f.nodes[n.ID()]; replacing {
		f.removeFromIndexesLocked(n.ID())
	}
	f.nodes[n.ID()] = n
	sr, ok := n.(ScopedReceiver)
	if !ok {
		return
	}
	switch role {
	case RoleCatch:
		f.catchNodes = append(f.catchNodes, sr)
	case RoleStatus:
		f.statusNodes = append(f.statusNodes, sr)
	case RoleComplete:
		f.completeNodes = append(f.completeNodes, sr)
	}
}

// Role discriminates which side-channel index a ScopedReceiver joins.
type Role int

const (
	RoleNone Role = iota
	RoleCatch
	RoleStatus
	RoleComplete
)

// GetNode returns the active instance for id, or nil if absent.
func (f *Flow) GetNode(id string) Closer {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.nodes[id]
}

// Start runs Initialize on every Initializer-implementing node. The
// caller (FlowManager) is responsible for having constructed and wired
// every node first, so Initialize never races a sibling's construction.
func (f *Flow) Start(ctx context.Context) error {
	f.mu.RLock()
	targets := make([]Closer, 0, len(f.nodes))
	for _, n := range f.nodes {
		targets = append(targets, n)
	}
	f.mu.RUnlock()

	var firstErr error
	for _, n := range targets {
		init, ok := n.(Initializer)
		if !ok {
			continue
		}
		if err := init.Initialize(ctx); err != nil {
			if f.log != nil {
				f.log.Error(fmt.Sprintf("node %s failed to initialize: %v", n.ID(), err), rtlog.WithID(n.ID()))
			}
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// Stop awaits Close(removed) concurrently for every node id in
// stopList (nil = every node currently owned). Ids also present in
// removedList are evicted from the active-node index once closed.
func (f *Flow) Stop(ctx context.Context, stopList []string, removedList []string) {
	f.mu.RLock()
	if stopList == nil {
		stopList = make([]string, 0, len(f.nodes))
		for id := range f.nodes {
			stopList = append(stopList, id)
		}
	}
	removed := make(map[string]bool, len(removedList))
	for _, id := range removedList {
		removed[id] = true
	}
	targets := make(map[string]Closer, len(stopList))
	for _, id := range stopList {
		if n, ok := f.nodes[id]; ok {
			targets[id] = n
		}
	}
	f.mu.RUnlock()

	var wg sync.WaitGroup
	for id, n := range targets {
		wg.Add(1)
		go func(id string, n Closer) {
			defer wg.Done()
			if err := n.Close(removed[id]); err != nil && f.log != nil {
				f.log.Error(fmt.Sprintf("node %s failed to stop: %v", id, err), rtlog.WithID(id))
			}
		}(id, n)
	}
	wg.Wait()

	f.mu.Lock()
	defer f.mu.Unlock()
	for id := range removed {
		if _, ok := targets[id]; ok {
			delete(f.nodes, id)
			f.removeFromIndexesLocked(id)
		}
	}
}

func (f *Flow) removeFromIndexesLocked(id string) {
	f.catchNodes = removeByID(f.catchNodes, id)
	f.statusNodes = removeByID(f.statusNodes, id)
	f.completeNodes = removeByID(f.completeNodes, id)
}

func removeByID(list []ScopedReceiver, id string) []ScopedReceiver {
	out := list[:0:0]
	for _, sr := range list {
		if sr.ID() != id {
			out = append(out, sr)
		}
	}
	return out
}

func matchesScope(scope []string, sourceID string) bool {
	if len(scope) == 0 {
		return true
	}
	for _, id := range scope {
		if id == sourceID {
			return true
		}
	}
	return false
}

// HandleError implements node.Publisher: it resolves scope-filtered
// catch nodes in this flow, bubbling to the parent if none match. A
// catch node only receives errors originating from another catch node
// when it has Uncaught()==true, preventing error loops.
func (f *Flow) HandleError(source node.Info, msg *model.Message, errMsg string, reportable bool) {
	if reportable && f.log != nil {
		f.log.Error(errMsg, rtlog.WithType(source.Type), rtlog.WithName(source.Name), rtlog.WithID(source.ID))
	}

	f.mu.RLock()
	catches := make([]ScopedReceiver, len(f.catchNodes))
	copy(catches, f.catchNodes)
	f.mu.RUnlock()

	sourceIsCatch := false
	for _, c := range catches {
		if c.ID() == source.ID {
			sourceIsCatch = true
			break
		}
	}

	matched := false
	for _, c := range catches {
		if sourceIsCatch && !c.Uncaught() {
			continue
		}
		if !matchesScope(c.Scope(), source.ID) {
			continue
		}
		matched = true
		out := msg
		if out == nil {
			out = model.New(nil)
		} else {
			out = out.Clone()
		}
		out.Props["error"] = map[string]interface{}{
			"message": errMsg,
			"source":  map[string]interface{}{"id": source.ID, "type": source.Type, "name": source.Name},
		}
		c.ReceiveSideChannel(context.Background(), out)
	}

	if !matched {
		if f.parent != nil {
			f.parent.HandleError(source, msg, errMsg, false)
		}
		// at the root, an unmatched error was already logged above.
	}
}

// HandleStatus resolves scope-filtered status nodes the same way
// HandleError resolves catch nodes, with no loop-prevention rule
// (status nodes never themselves emit status events).
func (f *Flow) HandleStatus(source node.Info, status node.Status) {
	f.mu.RLock()
	statusNodes := make([]ScopedReceiver, len(f.statusNodes))
	copy(statusNodes, f.statusNodes)
	f.mu.RUnlock()

	matched := false
	for _, s := range statusNodes {
		if !matchesScope(s.Scope(), source.ID) {
			continue
		}
		matched = true
		out := model.New(nil)
		out.Props["status"] = map[string]interface{}{
			"fill":  status.Fill,
			"shape": status.Shape,
			"text":  status.Text,
			"source": map[string]interface{}{"id": source.ID, "type": source.Type, "name": source.Name},
		}
		s.ReceiveSideChannel(context.Background(), out)
	}
	if !matched && f.parent != nil {
		f.parent.HandleStatus(source, status)
	}
}

// HandleComplete resolves scope-filtered complete nodes, re-emitting
// the original message unchanged.
func (f *Flow) HandleComplete(source node.Info, msg *model.Message, completionErr error) {
	if msg == nil {
		return
	}
	f.mu.RLock()
	completeNodes := make([]ScopedReceiver, len(f.completeNodes))
	copy(completeNodes, f.completeNodes)
	f.mu.RUnlock()

	matched := false
	for _, c := range completeNodes {
		if !matchesScope(c.Scope(), source.ID) {
			continue
		}
		matched = true
		c.ReceiveSideChannel(context.Background(), msg)
	}
	if !matched && f.parent != nil {
		f.parent.HandleComplete(source, msg, completionErr)
	}
}
