// Package catalog implements the built-in node behaviors: inject,
// delay, trigger, switch, change, split/join, catch/status/complete,
// link in/out/call, file, and mqtt. Every node type embeds *node.Node
// for the base contract and registers its constructor with a
// *registry.Registry via Register.
package catalog

import (
	"github.com/rauldose/node-red-new-sub000/internal/flow"
	"github.com/rauldose/node-red-new-sub000/internal/flowctx"
	"github.com/rauldose/node-red-new-sub000/internal/flowmanager"
	"github.com/rauldose/node-red-new-sub000/internal/hooks"
	"github.com/rauldose/node-red-new-sub000/internal/mqttconfig"
	"github.com/rauldose/node-red-new-sub000/internal/registry"
	"github.com/rauldose/node-red-new-sub000/internal/rtevents"
	"github.com/rauldose/node-red-new-sub000/internal/rtlog"
	"github.com/rauldose/node-red-new-sub000/pkg/model"
)

// Every catalog type registers under a "<module>/<set>" id built from
// these: one module ("flowrt"), grouped into sets that mirror
// their editor palette groupings.
const (
	moduleName  = "flowrt"
	coreSet     = "core"
	flowSet     = "flow-control"
	fileSet     = "file"
	mqttSet     = "mqtt"
	linkSetName = "link"
)

// Deps bundles the cross-cutting collaborators every catalog node
// needs. Passed explicitly, never a package-level global, from
// cmd/server/main.go through catalog.Register.
type Deps struct {
	Hooks     *hooks.Chains
	Log       *rtlog.Logger
	Events    *rtevents.Emitter
	FlowCtx   *flowctx.Store
	MQTT      *mqttconfig.Registry
	Linker    Linker
	LinkCalls *LinkCallRegistry
}

// Register binds every catalog node type's constructor into reg under
// the "flowrt" module, across the sets listed above.
func Register(reg *registry.Registry, deps Deps) {
	reg.AddModule(&registry.Module{
		Name:    moduleName,
		Version: "1.0.0",
		Nodes: map[string]*registry.NodeSet{
			coreSet:     {Name: coreSet, ModuleName: moduleName, Enabled: true},
			flowSet:     {Name: flowSet, ModuleName: moduleName, Enabled: true},
			fileSet:     {Name: fileSet, ModuleName: moduleName, Enabled: true},
			mqttSet:     {Name: mqttSet, ModuleName: moduleName, Enabled: true},
			linkSetName: {Name: linkSetName, ModuleName: moduleName, Enabled: true},
		},
	})

	registerInject(reg, deps)
	registerDelay(reg, deps)
	registerTrigger(reg, deps)
	registerSwitch(reg, deps)
	registerChange(reg, deps)
	registerSplitJoin(reg, deps)
	registerSideChannels(reg, deps)
	registerLink(reg, deps)
	registerFile(reg, deps)
	registerMQTT(reg, deps)
}

// RoleOf implements flowmanager.RoleOf for the catalog's own
// catch/status/complete types, so the Flow indexes them as
// side-channel targets on construction.
func RoleOf(elem model.Element) flow.Role {
	switch elem.Type() {
	case "catch":
		return flow.RoleCatch
	case "status":
		return flow.RoleStatus
	case "complete":
		return flow.RoleComplete
	default:
		return flow.RoleNone
	}
}

var _ flowmanager.RoleOf = RoleOf
