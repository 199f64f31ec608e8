// Package flowmanager owns deployments: config diffing, ordered
// stop/start across flows, the active-node index, and single-deploy-
// at-a-time deployment.
package flowmanager

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rauldose/node-red-new-sub000/internal/flow"
	"github.com/rauldose/node-red-new-sub000/internal/hooks"
	"github.com/rauldose/node-red-new-sub000/internal/node"
	"github.com/rauldose/node-red-new-sub000/internal/registry"
	"github.com/rauldose/node-red-new-sub000/internal/rtevents"
	"github.com/rauldose/node-red-new-sub000/internal/rtlog"
	"github.com/rauldose/node-red-new-sub000/internal/rtmetrics"
	"github.com/rauldose/node-red-new-sub000/pkg/model"
)

// Storage is the flow-persistence collaborator.
type Storage interface {
	GetFlows() ([]model.Element, error)
	SaveFlows([]model.Element) error
}

// Wireable is implemented by node instances whose output ports need
// resolving to concrete Receivers after every node in the flow has
// been constructed.
type Wireable interface {
	SetOutputs(outputs [][]node.Receiver)
}

// Publishable is implemented by every node instance that needs its
// owning Flow as a node.Publisher. registry.Constructor has no way to
// hand a node its Flow directly (a node type's constructor is
// registered once, globally, independent of any particular flow), so
// the manager injects it after construction instead.
type Publishable interface {
	SetPublisher(pub node.Publisher)
}

// RoleOf classifies an Element's runtime Role (catch/status/complete/
// none) from its declared type, used to index it in its owning Flow.
type RoleOf func(elem model.Element) flow.Role

// Manager owns activeConfig and the active-node index and drives
// deploys.
type Manager struct {
	registry *registry.Registry
	storage  Storage
	events   *rtevents.Emitter
	log      *rtlog.Logger
	hooks    *hooks.Chains
	roleOf   RoleOf
	metrics  *rtmetrics.Metrics
	envStore func(flowID, name string, value interface{})

	deployMu sync.Mutex // single-deploy-at-a-time; a second SetFlows blocks here until the first resolves

	mu                sync.RWMutex
	activeConfig      []model.Element
	activeNodesToFlow map[string]string
	flows             map[string]*flow.Flow
	started           bool
}

// New creates a Manager. roleOf lets the catalog layer tell the
// manager which elements are catch/status/complete nodes without the
// manager importing the catalog package.
func New(reg *registry.Registry, storage Storage, events *rtevents.Emitter, log *rtlog.Logger, hk *hooks.Chains, roleOf RoleOf) *Manager {
	if roleOf == nil {
		roleOf = func(model.Element) flow.Role { return flow.RoleNone }
	}
	return &Manager{
		registry:          reg,
		storage:           storage,
		events:            events,
		log:               log,
		hooks:             hk,
		roleOf:            roleOf,
		activeNodesToFlow: make(map[string]string),
		flows:             make(map[string]*flow.Flow),
	}
}

// SetMetrics installs the optional rtmetrics sink used to time
// deploys. Calling this is not required; a nil sink is a silent no-op
// (see rtmetrics.Metrics' nil-receiver methods).
func (m *Manager) SetMetrics(metrics *rtmetrics.Metrics) { m.metrics = metrics }

// SetEnvStore installs the flow-context writer subflow env
// declarations are materialised through (typically flowctx.Store.
// SetFlow). Unset, subflow env declarations are skipped.
func (m *Manager) SetEnvStore(store func(flowID, name string, value interface{})) {
	m.envStore = store
}

// GetFlows returns the current canonical config snapshot.
func (m *Manager) GetFlows() []model.Element {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]model.Element, len(m.activeConfig))
	copy(out, m.activeConfig)
	return out
}

// GetActiveFlows returns the live Flow objects, keyed by tab id.
func (m *Manager) GetActiveFlows() map[string]*flow.Flow {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]*flow.Flow, len(m.flows))
	for k, v := range m.flows {
		out[k] = v
	}
	return out
}

// GetNode returns the live instance for id, or nil.
func (m *Manager) GetNode(id string) flow.Closer {
	m.mu.RLock()
	flowID, ok := m.activeNodesToFlow[id]
	fl := m.flows[flowID]
	m.mu.RUnlock()
	if !ok || fl == nil {
		return nil
	}
	return fl.GetNode(id)
}

// SetFlows runs the deploy pipeline: clone, diff, stop, persist,
// start, notify. Only one deploy runs at a time; a concurrent caller
// blocks on deployMu until this one resolves.
func (m *Manager) SetFlows(ctx context.Context, config []model.Element, deploymentType DeploymentType, forceStart bool) error {
	m.deployMu.Lock()
	defer m.deployMu.Unlock()

	start := time.Now()
	defer func() { m.metrics.ObserveDeploy(time.Since(start)) }()

	cloned := make([]model.Element, len(config))
	for i, e := range config {
		cloned[i] = e.Clone()
	}

	m.mu.RLock()
	oldConfig := m.activeConfig
	m.mu.RUnlock()

	d := computeDiff(oldConfig, cloned, deploymentType)
	d = expandSubflowInteriors(d, oldConfig, cloned)

	m.stopIDs(ctx, append(append([]string{}, d.Changed...), d.Removed...), d.Removed)

	m.mu.Lock()
	m.activeConfig = cloned
	m.mu.Unlock()

	if err := m.storage.SaveFlows(cloned); err != nil {
		// storage unavailability is the one fail-fast path: roll back
		// to the previous snapshot.
		m.mu.Lock()
		m.activeConfig = oldConfig
		m.mu.Unlock()
		return fmt.Errorf("flowmanager: save flows: %w", err)
	}

	shouldStart := forceStart || m.started
	var startErr error
	if shouldStart {
		buildIDs := append(append([]string{}, d.Added...), d.Changed...)
		relinkIDs := append(append([]string{}, d.Rewired...), d.Linked...)
		startErr = m.startIDs(ctx, buildIDs, relinkIDs, cloned)
		m.started = true
	}

	if m.events != nil {
		m.events.Emit("flows:deploy")
	}

	if startErr != nil && m.log != nil {
		m.log.Error(fmt.Sprintf("partial deploy: %v", startErr))
	}
	return nil
}

func (m *Manager) stopIDs(ctx context.Context, ids []string, removedIDs []string) {
	removedSet := make(map[string]bool, len(removedIDs))
	for _, id := range removedIDs {
		removedSet[id] = true
	}
	m.mu.RLock()
	byFlow := map[string][]string{}
	for _, id := range ids {
		flowID, ok := m.activeNodesToFlow[id]
		if !ok {
			continue
		}
		byFlow[flowID] = append(byFlow[flowID], id)
	}
	flows := make(map[string]*flow.Flow, len(byFlow))
	for flowID := range byFlow {
		flows[flowID] = m.flows[flowID]
	}
	m.mu.RUnlock()

	var wg sync.WaitGroup
	for flowID, nodeIDs := range byFlow {
		fl := flows[flowID]
		if fl == nil {
			continue
		}
		removedHere := make([]string, 0, len(nodeIDs))
		for _, id := range nodeIDs {
			if removedSet[id] {
				removedHere = append(removedHere, id)
			}
		}
		wg.Add(1)
		go func(fl *flow.Flow, stopList, removedList []string) {
			defer wg.Done()
			fl.Stop(ctx, stopList, removedList)
		}(fl, nodeIDs, removedHere)
	}
	wg.Wait()

	m.mu.Lock()
	for _, id := range ids {
		if removedSet[id] {
			delete(m.activeNodesToFlow, id)
		}
	}
	m.mu.Unlock()
}

// startIDs builds or updates the flows owning the given node ids from
// the current activeConfig. buildIDs are constructed (and Initialized)
// anew; relinkIDs only need their owning flow's wiring re-resolved
// (rewired nodes and unchanged neighbors of a touched node). Build
// failures are logged and do not prevent the remaining flows from
// starting (partial deploy).
func (m *Manager) startIDs(ctx context.Context, buildIDs, relinkIDs []string, config []model.Element) error {
	idx := indexByID(config)
	// Config nodes (typed, z=="") are built as a singleton flow keyed by
	// their own id. They are built in a separate, earlier pass than
	// regular tab flows so that a shared resource (e.g. an mqtt-broker)
	// is already constructed by the time a dependent user node's
	// constructor tries to resolve it by id. Tabs map to their member
	// flow; subflow templates and groups have no runtime of their own —
	// a template's interior only runs inside an instance, so a changed
	// interior node instead restarts the instances of its template.
	configFlowIDs := map[string]bool{}
	tabFlowIDs := map[string]bool{}
	flowOf := func(id string) (string, bool) {
		el, ok := idx[id]
		if !ok {
			return "", false
		}
		switch el.Type() {
		case "tab":
			return el.ID(), true
		case "subflow", "group":
			return "", false
		}
		z := el.Z()
		if z == "" {
			configFlowIDs[id] = true
			return id, true
		}
		if owner, ok := idx[z]; ok && owner.Type() == "subflow" {
			// interior of a template: expandSubflowInteriors already
			// folded it into its instances, nothing to build here.
			return "", false
		}
		tabFlowIDs[z] = true
		return z, true
	}

	rebuildByFlow := map[string]map[string]bool{}
	for _, id := range buildIDs {
		flowID, ok := flowOf(id)
		if !ok {
			continue
		}
		if rebuildByFlow[flowID] == nil {
			rebuildByFlow[flowID] = map[string]bool{}
		}
		rebuildByFlow[flowID][id] = true
	}
	for _, id := range relinkIDs {
		// visiting the flow is enough: every member's wiring is
		// re-resolved, the node itself is not reconstructed.
		flowOf(id)
	}

	var firstErr error
	build := func(flowID string) {
		if err := m.buildAndStartFlow(ctx, flowID, config, rebuildByFlow[flowID]); err != nil {
			if m.log != nil {
				m.log.Error(fmt.Sprintf("flow %s failed to start: %v", flowID, err), rtlog.WithID(flowID))
			}
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	for flowID := range configFlowIDs {
		build(flowID)
	}
	for flowID := range tabFlowIDs {
		if configFlowIDs[flowID] {
			continue
		}
		build(flowID)
	}
	return firstErr
}

// constructMember builds one flow member: a subflow instance for
// "subflow:<id>" elements, otherwise whatever the registry's
// constructor for the element's type produces. Returns ok=false (with
// the failure already logged) when the member has no buildable
// runtime — unknown/disabled types stay out of the active set.
func (m *Manager) constructMember(el model.Element, config []model.Element, fl *flow.Flow) (flow.Closer, node.Receiver, bool) {
	if strings.HasPrefix(el.Type(), "subflow:") {
		sub, err := m.buildSubflowInstance(el, config, fl)
		if err != nil {
			if m.log != nil {
				m.log.Error(fmt.Sprintf("subflow instance %s failed to build: %v", el.ID(), err), rtlog.WithID(el.ID()))
			}
			return nil, nil, false
		}
		return sub, sub, true
	}
	ctor := m.registry.GetNodeConstructor(el.Type())
	if ctor == nil {
		return nil, nil, false
	}
	raw, err := ctor(el)
	if err != nil {
		if m.log != nil {
			m.log.Error(fmt.Sprintf("node %s failed to construct: %v", el.ID(), err), rtlog.WithID(el.ID()))
		}
		return nil, nil, false
	}
	closer, ok := raw.(flow.Closer)
	if !ok {
		return nil, nil, false
	}
	if pubable, ok := raw.(Publishable); ok {
		pubable.SetPublisher(fl)
	}
	recv, _ := raw.(node.Receiver)
	return closer, recv, true
}

// buildAndStartFlow builds flowID from scratch when it has no live
// Flow yet, or incrementally updates the existing Flow: only the
// members in rebuild are constructed and Initialized, while every
// member's wiring is re-resolved so unchanged neighbors pick up the
// new instances. Unchanged nodes are never stopped, reconstructed, or
// re-Initialized on an incremental deploy.
func (m *Manager) buildAndStartFlow(ctx context.Context, flowID string, config []model.Element, rebuild map[string]bool) error {
	var label string
	var members []model.Element
	for _, el := range config {
		if el.ID() == flowID {
			label, _ = el["label"].(string)
			if el.Z() == "" {
				// A config node is its own singleton flow: z=="" so it
				// never matches el.Z()==flowID below, but it must still
				// be a member of the synthetic flow built for it.
				members = append(members, el)
			}
		}
		if el.Z() == flowID {
			members = append(members, el)
		}
	}

	m.mu.RLock()
	existing := m.flows[flowID]
	m.mu.RUnlock()
	if existing != nil {
		return m.updateFlow(ctx, existing, members, config, rebuild)
	}

	fl := flow.New(flowID, label, nil, m.log)

	built := make(map[string]node.Receiver)
	instances := make(map[string]flow.Closer)
	for _, el := range members {
		closer, recv, ok := m.constructMember(el, config, fl)
		if !ok {
			continue
		}
		instances[el.ID()] = closer
		if recv != nil {
			built[el.ID()] = recv
		}
	}

	for _, el := range members {
		inst, ok := instances[el.ID()]
		if !ok {
			continue
		}
		if wireable, ok := inst.(Wireable); ok {
			ports := el.Wires()
			outputs := make([][]node.Receiver, len(ports))
			for i, destIDs := range ports {
				for _, destID := range destIDs {
					if recv, ok := built[destID]; ok {
						outputs[i] = append(outputs[i], recv)
					}
				}
			}
			wireable.SetOutputs(outputs)
		}
		fl.AddNode(inst, m.roleOf(el))
	}

	if err := fl.Start(ctx); err != nil {
		// partial: still install the flow with whatever started.
		m.installFlow(flowID, fl, instances)
		return err
	}
	m.installFlow(flowID, fl, instances)
	return nil
}

// updateFlow applies an incremental deploy to a live Flow: construct
// the rebuild members, re-resolve every member's output wiring against
// the union of surviving and fresh instances, then Initialize only the
// fresh ones. The changed members were already Closed by stopIDs;
// AddNode replaces them in the flow's node table and role indexes.
func (m *Manager) updateFlow(ctx context.Context, fl *flow.Flow, members []model.Element, config []model.Element, rebuild map[string]bool) error {
	built := make(map[string]node.Receiver)
	instances := make(map[string]flow.Closer)
	for _, el := range members {
		if !rebuild[el.ID()] {
			continue
		}
		closer, recv, ok := m.constructMember(el, config, fl)
		if !ok {
			continue
		}
		instances[el.ID()] = closer
		if recv != nil {
			built[el.ID()] = recv
		}
	}

	resolve := func(id string) (node.Receiver, bool) {
		if r, ok := built[id]; ok {
			return r, true
		}
		if n := fl.GetNode(id); n != nil {
			if r, ok := n.(node.Receiver); ok && !rebuild[id] {
				return r, true
			}
		}
		return nil, false
	}

	for _, el := range members {
		var inst interface{}
		if c, ok := instances[el.ID()]; ok {
			inst = c
		} else if rebuild[el.ID()] {
			continue // failed to construct; leave the closed instance out
		} else if n := fl.GetNode(el.ID()); n != nil {
			inst = n
		} else {
			continue
		}
		if wireable, ok := inst.(Wireable); ok {
			ports := el.Wires()
			outputs := make([][]node.Receiver, len(ports))
			for i, destIDs := range ports {
				for _, destID := range destIDs {
					if recv, ok := resolve(destID); ok {
						outputs[i] = append(outputs[i], recv)
					}
				}
			}
			wireable.SetOutputs(outputs)
		}
		if c, ok := instances[el.ID()]; ok {
			fl.AddNode(c, m.roleOf(el))
		}
	}

	var firstErr error
	for _, el := range members {
		inst, ok := instances[el.ID()]
		if !ok {
			continue
		}
		init, ok := inst.(flow.Initializer)
		if !ok {
			continue
		}
		if err := init.Initialize(ctx); err != nil {
			if m.log != nil {
				m.log.Error(fmt.Sprintf("node %s failed to initialize: %v", el.ID(), err), rtlog.WithID(el.ID()))
			}
			if firstErr == nil {
				firstErr = err
			}
		}
	}

	m.mu.Lock()
	for id := range instances {
		m.activeNodesToFlow[id] = fl.ID
	}
	m.mu.Unlock()
	return firstErr
}

func (m *Manager) installFlow(flowID string, fl *flow.Flow, instances map[string]flow.Closer) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.flows[flowID] = fl
	for id := range instances {
		m.activeNodesToFlow[id] = flowID
	}
}
