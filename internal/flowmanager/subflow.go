package flowmanager

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/rauldose/node-red-new-sub000/internal/flow"
	"github.com/rauldose/node-red-new-sub000/internal/node"
	"github.com/rauldose/node-red-new-sub000/internal/rtlog"
	"github.com/rauldose/node-red-new-sub000/internal/rtutil"
	"github.com/rauldose/node-red-new-sub000/pkg/model"
)

// subflowInstance is the synthetic node materialised for a
// "subflow:<templateId>" element: a child Flow holding
// freshly-id'd copies of the template's internal nodes. Messages
// received on the instance fan out to the entry points the template's
// `in` ports declare; internal nodes feeding a template `out` port are
// wired to a proxy that forwards onto the instance's external wires.
type subflowInstance struct {
	id    string
	child *flow.Flow

	entries []node.Receiver
	outputs [][]node.Receiver

	closing int32
}

func (s *subflowInstance) ID() string { return s.id }

// SetOutputs satisfies Wireable: the enclosing flow resolves the
// instance element's own wires table and installs it here, where the
// out-port proxies read it.
func (s *subflowInstance) SetOutputs(outputs [][]node.Receiver) { s.outputs = outputs }

// Receive forwards the message to every entry point of the template's
// input port, cloning for all but the last (same fan-out rule as a
// regular node's output port).
func (s *subflowInstance) Receive(ctx context.Context, msg *model.Message) {
	if atomic.LoadInt32(&s.closing) != 0 {
		return
	}
	last := len(s.entries) - 1
	for i, entry := range s.entries {
		out := msg
		if i != last {
			out = msg.Clone()
		}
		entry.Receive(ctx, out)
	}
}

// Initialize starts the child Flow, running Initialize on every
// internal node. By this point the enclosing flow has wired the
// instance, so internal traffic can already reach the outside.
func (s *subflowInstance) Initialize(ctx context.Context) error {
	return s.child.Start(ctx)
}

// Close stops every internal node and drops further receives.
func (s *subflowInstance) Close(removed bool) error {
	atomic.StoreInt32(&s.closing, 1)
	s.child.Stop(context.Background(), nil, nil)
	return nil
}

// subflowOutput is the internal receiver standing in for one of the
// template's out ports: anything an internal node sends to it is
// forwarded to the instance's external destinations for that port.
type subflowOutput struct {
	inst *subflowInstance
	port int
}

func (o *subflowOutput) ID() string { return o.inst.id + ":out" + strconv.Itoa(o.port) }

func (o *subflowOutput) Receive(ctx context.Context, msg *model.Message) {
	if o.port >= len(o.inst.outputs) {
		return
	}
	dests := o.inst.outputs[o.port]
	last := len(dests) - 1
	for i, dest := range dests {
		out := msg
		if i != last {
			out = msg.Clone()
		}
		dest.Receive(ctx, out)
	}
}

// portRef is one {id, port?} entry of a template in/out wires list.
type portRef struct {
	id   string
	port int
}

func portRefs(portDef interface{}) []portRef {
	m, ok := portDef.(map[string]interface{})
	if !ok {
		return nil
	}
	wires, ok := m["wires"].([]interface{})
	if !ok {
		return nil
	}
	refs := make([]portRef, 0, len(wires))
	for _, w := range wires {
		wm, ok := w.(map[string]interface{})
		if !ok {
			continue
		}
		id, _ := wm["id"].(string)
		if id == "" {
			continue
		}
		port := 0
		if p, ok := wm["port"].(float64); ok {
			port = int(p)
		}
		refs = append(refs, portRef{id: id, port: port})
	}
	return refs
}

// buildSubflowInstance expands a "subflow:<id>" element into a live
// instance, cloning the template's interior under fresh ids. parent is the
// enclosing Flow, so unmatched side-channel events from internal nodes
// bubble out of the subflow.
func (m *Manager) buildSubflowInstance(el model.Element, config []model.Element, parent *flow.Flow) (*subflowInstance, error) {
	templateID := strings.TrimPrefix(el.Type(), "subflow:")
	idx := indexByID(config)
	tmpl, ok := idx[templateID]
	if !ok || tmpl.Type() != "subflow" {
		return nil, fmt.Errorf("flowmanager: subflow template %q not found", templateID)
	}

	name, _ := tmpl["name"].(string)
	inst := &subflowInstance{id: el.ID()}
	inst.child = flow.New(el.ID(), name, parent, m.log)

	m.applySubflowEnv(el, tmpl)

	var internals []model.Element
	remap := map[string]string{}
	for _, e := range config {
		if e.Z() == templateID {
			internals = append(internals, e)
			remap[e.ID()] = rtutil.NewMessageID()
		}
	}

	// construct every internal node under its fresh id, owned by the
	// instance's child flow. built/instances stay keyed by the original
	// template-local ids, which is what the template's wires reference.
	built := make(map[string]node.Receiver)
	instances := make(map[string]flow.Closer)
	for _, e := range internals {
		cloned := e.Clone()
		cloned["id"] = remap[e.ID()]
		cloned["z"] = el.ID()

		var raw interface{}
		var err error
		if strings.HasPrefix(e.Type(), "subflow:") {
			raw, err = m.buildSubflowInstance(cloned, config, inst.child)
		} else {
			ctor := m.registry.GetNodeConstructor(e.Type())
			if ctor == nil {
				continue
			}
			raw, err = ctor(cloned)
		}
		if err != nil {
			if m.log != nil {
				m.log.Error(fmt.Sprintf("subflow node %s failed to construct: %v", e.ID(), err), rtlog.WithID(e.ID()))
			}
			continue
		}
		closer, ok := raw.(flow.Closer)
		if !ok {
			continue
		}
		instances[e.ID()] = closer
		if recv, ok := raw.(node.Receiver); ok {
			built[e.ID()] = recv
		}
		if pubable, ok := raw.(Publishable); ok {
			pubable.SetPublisher(inst.child)
		}
	}

	// one proxy per template out port, appended to the declared internal
	// source's output port.
	extraPorts := map[string]map[int][]node.Receiver{}
	if outs, ok := tmpl["out"].([]interface{}); ok {
		for j, portDef := range outs {
			proxy := &subflowOutput{inst: inst, port: j}
			for _, ref := range portRefs(portDef) {
				if _, ok := built[ref.id]; !ok {
					continue
				}
				if extraPorts[ref.id] == nil {
					extraPorts[ref.id] = map[int][]node.Receiver{}
				}
				extraPorts[ref.id][ref.port] = append(extraPorts[ref.id][ref.port], proxy)
			}
		}
	}

	for _, e := range internals {
		instc, ok := instances[e.ID()]
		if !ok {
			continue
		}
		if wireable, ok := instc.(Wireable); ok {
			ports := e.Wires()
			width := len(ports)
			for p := range extraPorts[e.ID()] {
				if p+1 > width {
					width = p + 1
				}
			}
			outputs := make([][]node.Receiver, width)
			for i, destIDs := range ports {
				for _, destID := range destIDs {
					if recv, ok := built[destID]; ok {
						outputs[i] = append(outputs[i], recv)
					}
				}
			}
			for p, proxies := range extraPorts[e.ID()] {
				outputs[p] = append(outputs[p], proxies...)
			}
			wireable.SetOutputs(outputs)
		}
		inst.child.AddNode(instc, m.roleOf(e))
	}

	// the instance's single input port fans out to the template's
	// declared entry points.
	if ins, ok := tmpl["in"].([]interface{}); ok && len(ins) > 0 {
		for _, ref := range portRefs(ins[0]) {
			if recv, ok := built[ref.id]; ok {
				inst.entries = append(inst.entries, recv)
			}
		}
	}

	return inst, nil
}

// applySubflowEnv materialises the template's env declarations (and
// any per-instance overrides) into the flow-context namespace of the
// instance's child flow, where internal nodes reach them through the
// "flow" value type. Requires SetEnvStore to have been wired; a nil
// store skips env materialisation.
func (m *Manager) applySubflowEnv(el, tmpl model.Element) {
	if m.envStore == nil {
		return
	}
	set := func(src model.Element) {
		envs, ok := src["env"].([]interface{})
		if !ok {
			return
		}
		for _, entry := range envs {
			em, ok := entry.(map[string]interface{})
			if !ok {
				continue
			}
			name, _ := em["name"].(string)
			if name == "" {
				continue
			}
			typ, _ := em["type"].(string)
			m.envStore(el.ID(), name, resolveEnvValue(em["value"], typ))
		}
	}
	set(tmpl)
	set(el) // instance overrides win
}

// resolveEnvValue handles the subset of value types an env declaration
// carries. Unknown types pass the raw value through.
func resolveEnvValue(value interface{}, typ string) interface{} {
	switch typ {
	case "", "str":
		if s, ok := value.(string); ok {
			return s
		}
		return fmt.Sprintf("%v", value)
	case "num":
		switch v := value.(type) {
		case float64:
			return v
		case string:
			if f, err := strconv.ParseFloat(v, 64); err == nil {
				return f
			}
		}
		return value
	case "bool":
		switch v := value.(type) {
		case bool:
			return v
		case string:
			if b, err := strconv.ParseBool(v); err == nil {
				return b
			}
		}
		return value
	case "json":
		if s, ok := value.(string); ok {
			var out interface{}
			if err := json.Unmarshal([]byte(s), &out); err == nil {
				return out
			}
		}
		return value
	default:
		return value
	}
}
