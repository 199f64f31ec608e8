// Package i18n implements namespaced message catalogs: per-language
// string tables with a fallback chain and placeholder interpolation,
// consumed by internal/registry's GetAllNodeConfigs and the node-help
// loader to localize a node set's help text.
package i18n

import (
	"strings"
	"sync"
)

// Catalog holds one namespace's translated strings, keyed by
// "<lang>.<key>", e.g. "en-US.label.topic".
type Catalog struct {
	mu      sync.RWMutex
	strings map[string]map[string]string // lang -> key -> value
	// fallback is the ordered chain of languages tried after the
	// requested one misses, e.g. ["en-US"] so a missing "de" key still
	// resolves to English rather than the bare key.
	fallback []string
}

// New creates an empty Catalog. fallback is consulted, in order, when
// a requested language is missing a key.
func New(fallback ...string) *Catalog {
	return &Catalog{
		strings:  make(map[string]map[string]string),
		fallback: fallback,
	}
}

// Load merges table into lang's namespace, overwriting any existing
// keys (a later Load for the same lang wins, matching the registry's
// "last module registered wins" semantics for re-deploys).
func (c *Catalog) Load(lang string, table map[string]string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	dst, ok := c.strings[lang]
	if !ok {
		dst = make(map[string]string, len(table))
		c.strings[lang] = dst
	}
	for k, v := range table {
		dst[k] = v
	}
}

// Get resolves key in lang, falling back through c.fallback, and
// finally returning key itself (and ok=false) if nothing matches —
// the catalog never errors on a miss, same tolerant-default contract
// as property-path Get returning the null-equivalent on a missing
// segment.
func (c *Catalog) Get(lang, key string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if v, ok := c.lookup(lang, key); ok {
		return v, true
	}
	for _, fb := range c.fallback {
		if v, ok := c.lookup(fb, key); ok {
			return v, true
		}
	}
	return key, false
}

func (c *Catalog) lookup(lang, key string) (string, bool) {
	table, ok := c.strings[lang]
	if !ok {
		return "", false
	}
	v, ok := table[key]
	return v, ok
}

// Interpolate substitutes "%{name}" placeholders in template using
// vars, leaving unmatched placeholders untouched (a missing var is
// treated as "no translation available for this token" rather than an
// error, consistent with Get's own miss-tolerant contract).
func Interpolate(template string, vars map[string]string) string {
	if len(vars) == 0 {
		return template
	}
	var b strings.Builder
	b.Grow(len(template))
	for i := 0; i < len(template); {
		if template[i] == '%' && i+1 < len(template) && template[i+1] == '{' {
			end := strings.IndexByte(template[i+2:], '}')
			if end >= 0 {
				name := template[i+2 : i+2+end]
				if v, ok := vars[name]; ok {
					b.WriteString(v)
					i += 2 + end + 1
					continue
				}
			}
		}
		b.WriteByte(template[i])
		i++
	}
	return b.String()
}

// Localized resolves key in lang (falling back per Get) then
// interpolates vars into the result in one call — the shape
// registry.GetAllNodeConfigs/GetNodeHelp actually needs per message.
func (c *Catalog) Localized(lang, key string, vars map[string]string) string {
	v, _ := c.Get(lang, key)
	return Interpolate(v, vars)
}

// NodeLoader adapts a Catalog into the node-help loader collaborator
// (GetNodeHelp(set, lang)), keying help text by
// "help.<setID>" so one Catalog can back every registered node set.
type NodeLoader struct {
	Catalog *Catalog
}

// GetNodeHelp returns setID's localized help in lang, or "", false if
// no catalog entry exists.
func (l *NodeLoader) GetNodeHelp(setID, lang string) (string, bool) {
	if l == nil || l.Catalog == nil {
		return "", false
	}
	return l.Catalog.Get(lang, "help."+setID)
}
