// Package alias implements the Alias Resolver: a table mapping symbolic
// selector strings ("fastest", "cheapest", "balanced", ...) to
// priority-ordered lists of (provider, model) candidates, restricted to
// currently registered providers.
//
// Grounded on the teacher's gateway.go resolveAlias/resolveModelAlias
// (simple map-based substitution), generalized to ranked lists, plus
// internal/strategies/single.go for the explicit "provider:model" path and
// internal/strategies/conditional.go's model_prefix matching for the
// bare-model-ID scan.
package alias

import (
	"sort"
	"strings"
	"sync"
)

// Entry is one (provider, model) candidate within an alias's ordered list.
type Entry struct {
	Provider       string
	ModelID        string
	Priority       int
	registrationSeq int // tie-break by registration order, ascending
}

// RequiredAliases is the set of alias names the implementation must
// recognize per spec.md §6, even when config doesn't define them.
var RequiredAliases = []string{"fastest", "cheapest", "best", "balanced", "fast", "powerful"}

// Config is the static alias table as read from the gateway configuration:
// alias name -> ordered entries.
type Config map[string][]Entry

// IsRegistered reports whether a provider is currently registered with the
// gateway. Rebuild calls it to filter out alias entries whose provider is
// not registered, and Resolve calls it to check the provider of an explicit
// "provider:model" selector.
type IsRegistered func(provider string) bool

// Resolver holds the alias table and re-derives it from static config on
// every provider registration/unregistration, per spec.md §4.5.
type Resolver struct {
	mu       sync.RWMutex
	static   Config
	table    Config // static filtered by currently-registered providers
	isReg    IsRegistered
	allModel func() []Entry // every (provider, model_id) pair across all adapters, for rule 3
}

// New creates a Resolver from the static alias configuration. isReg reports
// whether a provider is currently registered; allModels enumerates every
// (provider, model_id) pair across all registered adapters, used for rule 3
// scans. Missing required aliases are seeded with empty lists, resolved
// later once providers register (an empty list is a valid, if useless,
// table entry until config supplies one).
func New(static Config, isReg IsRegistered, allModels func() []Entry) *Resolver {
	if static == nil {
		static = Config{}
	}
	for _, name := range RequiredAliases {
		if _, ok := static[name]; !ok {
			static[name] = nil
		}
	}
	r := &Resolver{static: static, isReg: isReg, allModel: allModels}
	r.Rebuild()
	return r
}

// Rebuild re-derives the live table from the static configuration, keeping
// only entries whose provider is currently registered. Call this on every
// provider registration/unregistration per spec.md §4.5.
func (r *Resolver) Rebuild() {
	r.mu.Lock()
	defer r.mu.Unlock()

	table := make(Config, len(r.static))
	for name, entries := range r.static {
		var filtered []Entry
		for _, e := range entries {
			if r.isReg == nil || r.isReg(e.Provider) {
				filtered = append(filtered, e)
			}
		}
		sort.SliceStable(filtered, func(i, j int) bool {
			if filtered[i].Priority != filtered[j].Priority {
				return filtered[i].Priority < filtered[j].Priority
			}
			return filtered[i].registrationSeq < filtered[j].registrationSeq
		})
		table[name] = filtered
	}
	r.table = table
}

// Resolve implements the selector-resolution algorithm of spec.md §4.5.
func (r *Resolver) Resolve(selector string) []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	// Rule 1: a known alias.
	if entries, ok := r.table[selector]; ok && len(entries) > 0 {
		return entries
	}

	// Rule 2: explicit "provider:model" single-candidate selector.
	if idx := strings.Index(selector, ":"); idx > 0 {
		provider, model := selector[:idx], selector[idx+1:]
		if r.isReg == nil || r.isReg(provider) {
			return []Entry{{Provider: provider, ModelID: model, Priority: 0}}
		}
		return nil
	}

	// Rule 3: scan every registered adapter for a matching model_id.
	if r.allModel != nil {
		var matches []Entry
		for _, e := range r.allModel() {
			if e.ModelID == selector {
				matches = append(matches, Entry{Provider: e.Provider, ModelID: e.ModelID, Priority: 0})
			}
		}
		if len(matches) > 0 {
			return matches
		}
	}

	// Rule 4: fall back to "balanced", unless the selector already was
	// "balanced" (avoids infinite recursion when balanced itself is empty).
	if selector != "balanced" {
		if entries, ok := r.table["balanced"]; ok {
			return entries
		}
	}
	return nil
}

// Set replaces the static alias list for name and rebuilds the live table.
// Used when the gateway reloads configuration.
func (r *Resolver) Set(name string, entries []Entry) {
	r.mu.Lock()
	for i := range entries {
		entries[i].registrationSeq = i
	}
	if r.static == nil {
		r.static = Config{}
	}
	r.static[name] = entries
	r.mu.Unlock()
	r.Rebuild()
}

// DefaultEntries returns sane seed entries for the required aliases when
// config supplies none, built from the given candidate pool in registration
// order. This matches the teacher's "defaults applied when zero/absent"
// convention (circuitbreaker.New, the now-removed ratelimit.New).
func DefaultEntries(pool []Entry) Config {
	cfg := make(Config, len(RequiredAliases))
	for i := range pool {
		pool[i].registrationSeq = i
	}
	for _, name := range RequiredAliases {
		cp := make([]Entry, len(pool))
		copy(cp, pool)
		cfg[name] = cp
	}
	return cfg
}
