// Package registry implements the module/node-type registry: module
// and node-set bookkeeping, constructor lookup,
// icon resolution, and the cached per-language node-config export.
package registry

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/rauldose/node-red-new-sub000/internal/rtevents"
)

// Error is this package's typed error.
type Error struct {
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("registry: %s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("registry: %s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Constructor builds a node instance from its raw wire-format config.
// The return type is left as interface{} so this package never needs
// to import internal/node (which would create an import cycle, since
// the node package's Flow-facing interfaces are consumed by flow and
// flowmanager, both of which depend on registry).
type Constructor func(rawConfig map[string]interface{}) (interface{}, error)

// ConstructorOpts carries the optional metadata RegisterNodeConstructor
// accepts alongside a constructor.
type ConstructorOpts struct {
	Icon  string // icon filename within the owning module's icon dirs
	Color string
}

type nodeTypeEntry struct {
	setID       string
	ctor        Constructor
	opts        ConstructorOpts
}

// NodeSet lists the node types one logical "set" file registers. A
// set with zero types is considered malformed.
type NodeSet struct {
	Name           string
	ModuleName     string
	Types          []string
	Enabled        bool
	Err            error
	ConfigTemplate string
	Help           map[string]string // lang -> localized help HTML
}

// ID returns the "<module>/<set>" identifier a node type maps to.
func (s *NodeSet) ID() string { return s.ModuleName + "/" + s.Name }

// Module is a registry module: a named, versioned bundle of node sets.
type Module struct {
	Name           string
	Version        string
	PendingVersion string
	User           bool
	Local          bool
	Nodes          map[string]*NodeSet // set name -> NodeSet
	Plugins        []string
	IconDirs       []string
	Examples       []string
	Resources      []string
}

const builtinModuleName = "node-red"

// Registry is the process-wide module/node-type registry. Safe for
// concurrent use.
type Registry struct {
	mu       sync.Mutex
	modules  map[string]*Module
	typeToID map[string]string // node type -> "<module>/<set>"
	ctors    map[string]*nodeTypeEntry

	configCache map[string]string // lang -> cached GetAllNodeConfigs output
	prevPending map[string]string // module name -> pending version snapshot at last SaveNodeList

	events *rtevents.Emitter
}

// New creates an empty Registry. events, if non-nil, receives a
// "restart-required" emission from SaveNodeList.
func New(events *rtevents.Emitter) *Registry {
	return &Registry{
		modules:     make(map[string]*Module),
		typeToID:    make(map[string]string),
		ctors:       make(map[string]*nodeTypeEntry),
		configCache: make(map[string]string),
		prevPending: make(map[string]string),
		events:      events,
	}
}

// AddModule registers or replaces a module definition and invalidates
// the config cache.
func (r *Registry) AddModule(m *Module) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if m.Nodes == nil {
		m.Nodes = make(map[string]*NodeSet)
	}
	r.modules[m.Name] = m
	for _, set := range m.Nodes {
		if len(set.Types) == 0 {
			set.Err = &Error{Code: "set_has_no_types", Message: set.Name}
		}
	}
	r.configCache = make(map[string]string)
}

// GetModule returns the named module, or nil if unknown.
func (r *Registry) GetModule(name string) *Module {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.modules[name]
}

// GetModuleList returns every registered module.
func (r *Registry) GetModuleList() []*Module {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Module, 0, len(r.modules))
	for _, m := range r.modules {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// GetModuleInfo is an alias over GetModule; module definitions double
// as their own info projection in this implementation.
func (r *Registry) GetModuleInfo(name string) *Module { return r.GetModule(name) }

// NodeInfo is the GetNodeList/GetNodeInfo projection: a node set
// annotated with the types it owns and its owning module's name.
type NodeInfo struct {
	Set        *NodeSet
	ModuleName string
}

// GetNodeList returns every node set matching filter (nil = all).
func (r *Registry) GetNodeList(filter func(*NodeInfo) bool) []*NodeInfo {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*NodeInfo
	for _, m := range r.modules {
		for _, set := range m.Nodes {
			info := &NodeInfo{Set: set, ModuleName: m.Name}
			if filter == nil || filter(info) {
				out = append(out, info)
			}
		}
	}
	return out
}

// GetNodeInfo resolves either a bare type name or a "<module>/<set>" id.
func (r *Registry) GetNodeInfo(typeOrID string) *NodeInfo {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.nodeInfoLocked(typeOrID)
}

func (r *Registry) nodeInfoLocked(typeOrID string) *NodeInfo {
	id, ok := r.typeToID[typeOrID]
	if !ok {
		id = typeOrID
	}
	parts := strings.SplitN(id, "/", 2)
	if len(parts) != 2 {
		return nil
	}
	m, ok := r.modules[parts[0]]
	if !ok {
		return nil
	}
	set, ok := m.Nodes[parts[1]]
	if !ok {
		return nil
	}
	return &NodeInfo{Set: set, ModuleName: m.Name}
}

// RegisterNodeConstructor binds a type's constructor to the node set
// identified by setID ("<module>/<set>"), creating the module and set
// if they have not been declared yet. Re-registering an
// already-registered type raises type_already_registered naming the
// conflicting module.
func (r *Registry) RegisterNodeConstructor(setID, nodeType string, ctor Constructor, opts ConstructorOpts) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.typeToID[nodeType]; ok {
		return &Error{
			Code:    "type_already_registered",
			Message: fmt.Sprintf("type %q already registered by %q (conflict: %q)", nodeType, existing, setID),
		}
	}
	parts := strings.SplitN(setID, "/", 2)
	if len(parts) != 2 {
		return &Error{Code: "invalid_expr", Message: fmt.Sprintf("set id %q is not <module>/<set>", setID)}
	}
	r.typeToID[nodeType] = setID
	r.ctors[nodeType] = &nodeTypeEntry{setID: setID, ctor: ctor, opts: opts}

	m, ok := r.modules[parts[0]]
	if !ok {
		m = &Module{Name: parts[0], Nodes: make(map[string]*NodeSet)}
		r.modules[parts[0]] = m
	}
	set, ok := m.Nodes[parts[1]]
	if !ok {
		set = &NodeSet{Name: parts[1], ModuleName: parts[0]}
		m.Nodes[parts[1]] = set
	}
	set.Enabled = true
	found := false
	for _, t := range set.Types {
		if t == nodeType {
			found = true
			break
		}
	}
	if !found {
		set.Types = append(set.Types, nodeType)
	}
	// the set is no longer empty, so the zero-types flag stamped by
	// AddModule no longer applies.
	if setErr, ok := set.Err.(*Error); ok && setErr.Code == "set_has_no_types" {
		set.Err = nil
	}
	r.configCache = make(map[string]string)
	return nil
}

// GetNodeConstructor returns nodeType's constructor, or nil if the
// type is unknown, its owning set is disabled, or the set has a load
// error.
func (r *Registry) GetNodeConstructor(nodeType string) Constructor {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.ctors[nodeType]
	if !ok {
		return nil
	}
	info := r.nodeInfoLocked(nodeType)
	if info == nil || !info.Set.Enabled || info.Set.Err != nil {
		return nil
	}
	return entry.ctor
}

// GetTypeId returns the "<module>/<set>" id owning nodeType.
func (r *Registry) GetTypeId(nodeType string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.typeToID[nodeType]
	return id, ok
}

// GetAllNodeConfigs returns a cached per-language string: for every
// loaded (enabled, error-free) type, a delimiter comment, the owning
// set's raw config template, and its localized help for lang. The
// cache is invalidated by AddModule and Clear.
func (r *Registry) GetAllNodeConfigs(lang string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cached, ok := r.configCache[lang]; ok {
		return cached
	}

	var moduleNames []string
	for name := range r.modules {
		moduleNames = append(moduleNames, name)
	}
	sort.Strings(moduleNames)

	var b strings.Builder
	for _, mname := range moduleNames {
		m := r.modules[mname]
		var setNames []string
		for name := range m.Nodes {
			setNames = append(setNames, name)
		}
		sort.Strings(setNames)
		for _, sname := range setNames {
			set := m.Nodes[sname]
			if !set.Enabled || set.Err != nil {
				continue
			}
			fmt.Fprintf(&b, "<!-- --- [%s] %s --- -->\n", mname, sname)
			b.WriteString(set.ConfigTemplate)
			b.WriteString("\n")
			if help, ok := set.Help[lang]; ok {
				b.WriteString(help)
				b.WriteString("\n")
			}
		}
	}
	out := b.String()
	r.configCache[lang] = out
	return out
}

// GetNodeIconPath resolves an icon by name within the module owning
// nodeType, falling back to the built-in module on miss. Rejects any
// name containing ".." to prevent path traversal out of the icon dirs.
func (r *Registry) GetNodeIconPath(nodeType, icon string) (string, error) {
	if strings.Contains(icon, "..") {
		return "", &Error{Code: "invalid_expr", Message: "icon path must not contain .."}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.typeToID[nodeType]
	if !ok {
		return r.resolveIconLocked(builtinModuleName, icon)
	}
	parts := strings.SplitN(id, "/", 2)
	modName := parts[0]
	path, err := r.resolveIconLocked(modName, icon)
	if err == nil {
		return path, nil
	}
	if modName == builtinModuleName {
		return "", err
	}
	return r.resolveIconLocked(builtinModuleName, icon)
}

func (r *Registry) resolveIconLocked(moduleName, icon string) (string, error) {
	m, ok := r.modules[moduleName]
	if !ok {
		return "", &Error{Code: "not-available", Message: "unknown module " + moduleName}
	}
	for _, dir := range m.IconDirs {
		candidate := strings.TrimRight(dir, "/") + "/" + icon
		return candidate, nil // existence is a filesystem concern left to the caller/loader
	}
	return "", &Error{Code: "not-available", Message: "icon not found: " + icon}
}

// GetNodeIcons returns the distinct icon names referenced by every
// constructor registered under moduleName.
func (r *Registry) GetNodeIcons(moduleName string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	seen := map[string]bool{}
	var out []string
	for typ, entry := range r.ctors {
		id, ok := r.typeToID[typ]
		if !ok || !strings.HasPrefix(id, moduleName+"/") {
			continue
		}
		if entry.opts.Icon == "" || seen[entry.opts.Icon] {
			continue
		}
		seen[entry.opts.Icon] = true
		out = append(out, entry.opts.Icon)
	}
	sort.Strings(out)
	return out
}

// GetModuleResource resolves a resource file path declared by module.
func (r *Registry) GetModuleResource(moduleName, resource string) (string, error) {
	if strings.Contains(resource, "..") {
		return "", &Error{Code: "invalid_expr", Message: "resource path must not contain .."}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.modules[moduleName]
	if !ok {
		return "", &Error{Code: "not-available", Message: "unknown module " + moduleName}
	}
	for _, res := range m.Resources {
		if strings.HasSuffix(res, resource) {
			return res, nil
		}
	}
	return "", &Error{Code: "not-available", Message: "resource not found: " + resource}
}

// SaveNodeList snapshots every module's PendingVersion and emits
// "restart-required" on r.events iff any module's pending-resolved
// state flipped since the previous SaveNodeList call.
func (r *Registry) SaveNodeList() {
	r.mu.Lock()
	changed := false
	next := make(map[string]string, len(r.modules))
	for name, m := range r.modules {
		next[name] = m.PendingVersion
		prevHadPending := r.prevPending[name] != ""
		nowHasPending := m.PendingVersion != ""
		if prevHadPending != nowHasPending {
			changed = true
		}
	}
	r.prevPending = next
	events := r.events
	r.mu.Unlock()

	if changed && events != nil {
		events.Emit("restart-required")
	}
}

// Clear removes every module, type, and cache entry.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.modules = make(map[string]*Module)
	r.typeToID = make(map[string]string)
	r.ctors = make(map[string]*nodeTypeEntry)
	r.configCache = make(map[string]string)
	r.prevPending = make(map[string]string)
}
