package catalog

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rauldose/node-red-new-sub000/internal/node"
	"github.com/rauldose/node-red-new-sub000/internal/registry"
	"github.com/rauldose/node-red-new-sub000/internal/rtutil"
	"github.com/rauldose/node-red-new-sub000/pkg/model"
)

// Linker resolves a node id to a live receiver across the whole
// deployment, not just the current flow — link in/out/call targets are
// addressed by id regardless of which tab they live on.
type Linker interface {
	GetNode(id string) (node.Receiver, bool)
}

// LinkCallRegistry correlates an in-flight link-call with the link-out
// (mode "return") that eventually answers it. Only a single level of
// call/return is supported:
// a nested call started from inside a called flow is rejected rather
// than pushed onto a stack.
type LinkCallRegistry struct {
	mu      sync.Mutex
	pending map[string]chan *model.Message
}

// NewLinkCallRegistry constructs an empty registry. One instance is
// shared by every link-call/link-out node in a deployment, passed
// through Deps.
func NewLinkCallRegistry() *LinkCallRegistry {
	return &LinkCallRegistry{pending: make(map[string]chan *model.Message)}
}

func (r *LinkCallRegistry) register(corrID string) chan *model.Message {
	ch := make(chan *model.Message, 1)
	r.mu.Lock()
	r.pending[corrID] = ch
	r.mu.Unlock()
	return ch
}

func (r *LinkCallRegistry) forget(corrID string) {
	r.mu.Lock()
	delete(r.pending, corrID)
	r.mu.Unlock()
}

// resolve delivers msg to the waiting call, if any, and reports
// whether one was found.
func (r *LinkCallRegistry) resolve(corrID string, msg *model.Message) bool {
	r.mu.Lock()
	ch, ok := r.pending[corrID]
	if ok {
		delete(r.pending, corrID)
	}
	r.mu.Unlock()
	if !ok {
		return false
	}
	ch <- msg
	return true
}

// LinkIn is a named entry point
// other link-out nodes route to by id. It has no behavior of its own
// beyond passing the message straight to its wires.
type LinkIn struct {
	*node.Node
}

// LinkOut is the link-in's sending side. In "link" mode it
// forwards the message directly to each configured target link-in id;
// in "return" mode it answers the link-call currently waiting on the
// message's correlation id, dropping the message if none is waiting
// (it was sent outside of a call, or the call already timed out).
type LinkOut struct {
	*node.Node

	mode    string // link | return
	targets []string
	linker  Linker
	calls   *LinkCallRegistry
}

// LinkCall sends to a target
// link-in and blocks (with a timeout) for the matching link-out
// "return" to answer, keyed by a fresh correlation id per call.
type LinkCall struct {
	*node.Node

	target  string
	timeout time.Duration
	linker  Linker
	calls   *LinkCallRegistry
}

func registerLink(reg *registry.Registry, deps Deps) {
	reg.RegisterNodeConstructor(moduleName+"/"+linkSetName, "link in", func(raw map[string]interface{}) (interface{}, error) {
		info, flowID, disabled, wires := baseFields(raw)
		li := &LinkIn{Node: node.New(info, flowID, disabled, wires, deps.Hooks, deps.Log, nil)}
		li.OnInput(func(ctx context.Context, msg *model.Message) error {
			li.Send(ctx, msg)
			return nil
		})
		return li, nil
	}, registry.ConstructorOpts{Icon: "link.svg"})

	reg.RegisterNodeConstructor(moduleName+"/"+linkSetName, "link out", func(raw map[string]interface{}) (interface{}, error) {
		info, flowID, disabled, wires := baseFields(raw)
		var targets []string
		if rawLinks, ok := raw["links"].([]interface{}); ok {
			for _, l := range rawLinks {
				if id, ok := l.(string); ok {
					targets = append(targets, id)
				}
			}
		}
		lo := &LinkOut{
			Node:    node.New(info, flowID, disabled, wires, deps.Hooks, deps.Log, nil),
			mode:    stringField(raw, "mode", "link"),
			targets: targets,
			linker:  deps.Linker,
			calls:   deps.LinkCalls,
		}
		lo.OnInput(lo.handle)
		return lo, nil
	}, registry.ConstructorOpts{Icon: "link.svg"})

	reg.RegisterNodeConstructor(moduleName+"/"+linkSetName, "link call", func(raw map[string]interface{}) (interface{}, error) {
		info, flowID, disabled, wires := baseFields(raw)
		var target string
		if rawLinks, ok := raw["links"].([]interface{}); ok && len(rawLinks) > 0 {
			target, _ = rawLinks[0].(string)
		}
		lc := &LinkCall{
			Node:    node.New(info, flowID, disabled, wires, deps.Hooks, deps.Log, nil),
			target:  target,
			timeout: time.Duration(numField(raw, "timeout", 30) * float64(time.Second)),
			linker:  deps.Linker,
			calls:   deps.LinkCalls,
		}
		lc.OnInput(lc.handle)
		return lc, nil
	}, registry.ConstructorOpts{Icon: "link.svg"})
}

func (lo *LinkOut) handle(ctx context.Context, msg *model.Message) error {
	if lo.mode == "return" {
		src, _ := msg.Get("_linkSource")
		srcMap, _ := src.(map[string]interface{})
		callID, _ := srcMap["callId"].(string)
		if callID == "" || !lo.calls.resolve(callID, msg) {
			lo.Warn("link out: no call waiting to return to")
		}
		return nil
	}
	for _, target := range lo.targets {
		recv, ok := lo.linker.GetNode(target)
		if !ok {
			lo.Error(fmt.Sprintf("link out: target %q not found", target), msg)
			continue
		}
		recv.Receive(ctx, msg.Clone())
	}
	return nil
}

func (lc *LinkCall) handle(ctx context.Context, msg *model.Message) error {
	if v, _ := msg.Get("_linkSource"); v != nil {
		err := fmt.Errorf("catalog: nested link-call is not supported")
		lc.Error(err.Error(), msg)
		return err
	}

	recv, ok := lc.linker.GetNode(lc.target)
	if !ok {
		err := fmt.Errorf("catalog: link-call target %q not found", lc.target)
		lc.Error(err.Error(), msg)
		return err
	}

	corrID := rtutil.NewResourceID()
	out := msg.Clone()
	source := map[string]interface{}{"id": lc.ID(), "callId": corrID}
	if err := out.Set("_linkSource", source, true); err != nil {
		return err
	}
	waitCh := lc.calls.register(corrID)

	recv.Receive(ctx, out)

	select {
	case reply := <-waitCh:
		_ = reply.Delete("_linkSource")
		lc.Send(ctx, reply)
		return nil
	case <-time.After(lc.timeout):
		lc.calls.forget(corrID)
		err := fmt.Errorf("catalog: link-call to %q timed out", lc.target)
		lc.Error(err.Error(), msg)
		return err
	case <-ctx.Done():
		lc.calls.forget(corrID)
		return ctx.Err()
	}
}
