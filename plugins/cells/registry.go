// ABOUTME: Cell registry: keyed entry lookup plus ordered match dispatch.
// ABOUTME: Instances are constructed per app or test; there is no global registry.

package cells

import (
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"
)

// matcher retains the entry captured at registration time. Re-registering a
// type overwrites the keyed entry but leaves earlier matchers in place, so
// match dispatch keeps first-registration priority.
type matcher struct {
	entry Entry
}

// Registry maps cell types to entries and dispatches column metadata to the
// first matching entry in registration order. Lookups never fail loudly:
// unknown types return zero values and false, and callers must check.
type Registry struct {
	mu       sync.RWMutex
	entries  map[Type]Entry
	matchers []matcher
	plugins  map[string]Plugin
	logger   *zap.Logger
}

// NewRegistry returns an empty registry. A nil logger disables logging.
func NewRegistry(logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		entries: make(map[Type]Entry),
		plugins: make(map[string]Plugin),
		logger:  logger,
	}
}

// Register inserts or overwrites the entry for entry.Type; the last
// registration for a type wins and duplicates are not an error. Entries with
// a Match predicate also join the matcher list in registration order.
func (r *Registry) Register(entry Entry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.register(entry)
}

// RegisterBatch registers entries in order; later entries with the same type win.
func (r *Registry) RegisterBatch(entries []Entry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range entries {
		r.register(e)
	}
}

func (r *Registry) register(entry Entry) {
	r.entries[entry.Type] = entry
	if entry.Match != nil {
		r.matchers = append(r.matchers, matcher{entry: entry})
	}
}

// Get returns the entry registered for t.
func (r *Registry) Get(t Type) (Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[t]
	return e, ok
}

// Has reports whether an entry is registered for t.
func (r *Registry) Has(t Type) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.entries[t]
	return ok
}

// Component returns the view component for t, or nil for unknown types.
func (r *Registry) Component(t Type) Component {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[t]
	if !ok {
		return nil
	}
	return e.Component
}

// EditComponent returns the edit component for t, falling back to the view
// component when no dedicated edit component is registered.
func (r *Registry) EditComponent(t Type) Component {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[t]
	if !ok {
		return nil
	}
	if e.EditComponent != nil {
		return e.EditComponent
	}
	return e.Component
}

// FindByMatch returns the first entry whose Match predicate accepts meta,
// scanning in registration order. Matcher order is load-bearing: conflicting
// predicates resolve to whichever registered first.
func (r *Registry) FindByMatch(meta ColumnMetadata) (Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, m := range r.matchers {
		if m.entry.Match(meta) {
			return m.entry, true
		}
	}
	return Entry{}, false
}

// ComponentWithMatch resolves a component by match predicate first when
// metadata is supplied, falling back to a direct type lookup. Match priority
// means a matcher can answer for a type key whose entry it no longer owns.
func (r *Registry) ComponentWithMatch(t Type, meta *ColumnMetadata) Component {
	if meta != nil {
		if e, ok := r.FindByMatch(*meta); ok {
			return e.Component
		}
	}
	return r.Component(t)
}

// InstallPlugin registers all of p's cells and then runs its Install hook.
// Installing an already-installed name is a logged no-op. A failing Install
// hook rolls the registry back to its prior state and the plugin is not
// recorded, so install is atomic.
func (r *Registry) InstallPlugin(p Plugin) (InstallResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, installed := r.plugins[p.Name]; installed {
		r.logger.Warn("cell plugin already installed", zap.String("plugin", p.Name))
		return InstallDuplicate, nil
	}

	// Snapshot what this plugin displaces so a failed hook can restore it.
	displaced := make(map[Type]*Entry, len(p.Cells))
	matcherLen := len(r.matchers)
	for _, e := range p.Cells {
		if _, seen := displaced[e.Type]; !seen {
			if prev, ok := r.entries[e.Type]; ok {
				prevCopy := prev
				displaced[e.Type] = &prevCopy
			} else {
				displaced[e.Type] = nil
			}
		}
		r.register(e)
	}

	if p.Install != nil {
		if err := p.Install(); err != nil {
			for t, prev := range displaced {
				if prev == nil {
					delete(r.entries, t)
				} else {
					r.entries[t] = *prev
				}
			}
			r.matchers = r.matchers[:matcherLen]
			return InstallFailed, fmt.Errorf("install plugin %q: %w", p.Name, err)
		}
	}

	r.plugins[p.Name] = p
	return InstallOK, nil
}

// UninstallPlugin removes the cell types listed in the named plugin's Cells
// and runs its Uninstall hook. The entry under each of those types is removed
// even if a later registration replaced it. Unknown names are a logged no-op.
// A failing Uninstall hook is logged; removal still stands.
func (r *Registry) UninstallPlugin(name string) UninstallResult {
	r.mu.Lock()
	p, installed := r.plugins[name]
	if !installed {
		r.mu.Unlock()
		r.logger.Warn("cell plugin not installed", zap.String("plugin", name))
		return UninstallMissing
	}

	removed := make(map[Type]bool, len(p.Cells))
	for _, e := range p.Cells {
		removed[e.Type] = true
		delete(r.entries, e.Type)
	}
	kept := make([]matcher, 0, len(r.matchers))
	for _, m := range r.matchers {
		if !removed[m.entry.Type] {
			kept = append(kept, m)
		}
	}
	r.matchers = kept
	delete(r.plugins, name)
	hook := p.Uninstall
	r.mu.Unlock()

	if hook != nil {
		if err := hook(); err != nil {
			r.logger.Warn("cell plugin uninstall hook failed",
				zap.String("plugin", name), zap.Error(err))
		}
	}
	return UninstallOK
}

// InstalledPlugins returns the installed plugins sorted by name.
func (r *Registry) InstalledPlugins() []Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Plugin, 0, len(r.plugins))
	for _, p := range r.plugins {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Clear wipes all entries, matchers, and plugins. Used for test isolation.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = make(map[Type]Entry)
	r.matchers = nil
	r.plugins = make(map[string]Plugin)
}

// ByCategory returns entries whose Meta.Category equals cat, sorted by type.
func (r *Registry) ByCategory(cat string) []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Entry
	for _, e := range r.entries {
		if e.Meta.Category == cat {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Type < out[j].Type })
	return out
}

// Types returns all registered cell types sorted alphabetically.
func (r *Registry) Types() []Type {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Type, 0, len(r.entries))
	for t := range r.entries {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
