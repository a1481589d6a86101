package hooks

import (
	"fmt"
	"sort"
	"sync"

	"github.com/loomrun/loom/internal/executor"
	"github.com/loomrun/loom/internal/script"
)

// BeforeRunObserver fires once before the root script's graph starts.
type BeforeRunObserver interface {
	BeforeRun(root script.Reference)
}

// AfterRunObserver fires once after the root script's graph finishes,
// successfully or not.
type AfterRunObserver interface {
	AfterRun(root script.Reference, failed bool)
}

// Plugin pairs a manifest-declared plugin ID with the in-process
// implementation that backs it. loom has no dynamic code loading, so a
// plugin is whatever Observer sub-interfaces a caller registers under that
// ID — the manifest only gates which hooks actually fire.
type Plugin struct {
	ID   string
	Impl any
}

type entry struct {
	id    string
	impl  any
	hooks map[string]struct{}
}

// Engine dispatches BeforeRun/AfterRun/BeforeNode/AfterNode to every
// registered plugin whose manifest declares that hook, in plugin-ID order,
// isolating each plugin's panics so one broken observer cannot take down a
// run. It implements executor.Observer and can be passed directly as
// executor.Config.Observer.
type Engine struct {
	log     Logger
	mu      sync.Mutex
	errs    []error
	entries []entry
}

var _ executor.Observer = (*Engine)(nil)

// NewEngine builds an Engine from a discovered Registry and the plugins
// registered in-process. A manifest whose plugin ID has no matching
// in-process registration is not fatal to construction: it is recorded in
// Errors() as an ErrUnregisteredObserver warning and logged, and its hooks
// simply never fire. This keeps a stray or not-yet-wired
// .loom/plugins/*/manifest.json from hard-failing every run.
func NewEngine(reg Registry, plugins []Plugin, log Logger) (*Engine, error) {
	log = loggerOrNop(log)
	byID := map[string]Plugin{}
	for _, p := range plugins {
		byID[p.ID] = p
	}

	e := &Engine{log: log}
	for _, m := range reg.Manifests {
		p, ok := byID[m.PluginID]
		if !ok {
			e.recordError(m.PluginID, "register", fmt.Errorf("%w: no in-process plugin registered for this manifest", ErrUnregisteredObserver))
			continue
		}
		hookSet := make(map[string]struct{}, len(m.Hooks))
		for _, h := range m.Hooks {
			hookSet[h] = struct{}{}
		}
		e.entries = append(e.entries, entry{id: m.PluginID, impl: p.Impl, hooks: hookSet})
	}
	sort.Slice(e.entries, func(i, j int) bool { return e.entries[i].id < e.entries[j].id })
	return e, nil
}

// Errors returns every error recorded so far: the ErrUnregisteredObserver
// warnings from NewEngine, and from hook dispatch, panics and plugins that
// declare a hook in their manifest without implementing the corresponding
// interface.
func (e *Engine) Errors() []error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]error(nil), e.errs...)
}

func (e *Engine) recordError(pluginID, hook string, err error) {
	e.mu.Lock()
	e.errs = append(e.errs, fmt.Errorf("hooks: plugin %s %s: %w", pluginID, hook, err))
	e.mu.Unlock()
	e.log.Printf("hooks: plugin %s %s failed: %v", pluginID, hook, err)
}

func (e *Engine) declares(en entry, hook string) bool {
	_, ok := en.hooks[hook]
	return ok
}

func run(fn func()) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	fn()
	return nil
}

// BeforeRun fires BeforeRunObserver.BeforeRun on every plugin declaring the
// BeforeRun hook, in deterministic order.
func (e *Engine) BeforeRun(root script.Reference) {
	for _, en := range e.entries {
		if !e.declares(en, "BeforeRun") {
			continue
		}
		obs, ok := en.impl.(BeforeRunObserver)
		if !ok {
			e.recordError(en.id, "BeforeRun", fmt.Errorf("plugin does not implement BeforeRunObserver"))
			continue
		}
		if err := run(func() { obs.BeforeRun(root) }); err != nil {
			e.recordError(en.id, "BeforeRun", err)
		}
	}
}

// AfterRun fires AfterRunObserver.AfterRun on every plugin declaring the
// AfterRun hook, in deterministic order.
func (e *Engine) AfterRun(root script.Reference, failed bool) {
	for _, en := range e.entries {
		if !e.declares(en, "AfterRun") {
			continue
		}
		obs, ok := en.impl.(AfterRunObserver)
		if !ok {
			e.recordError(en.id, "AfterRun", fmt.Errorf("plugin does not implement AfterRunObserver"))
			continue
		}
		if err := run(func() { obs.AfterRun(root, failed) }); err != nil {
			e.recordError(en.id, "AfterRun", err)
		}
	}
}

// BeforeNode implements executor.Observer.
func (e *Engine) BeforeNode(ref script.Reference) {
	for _, en := range e.entries {
		if !e.declares(en, "BeforeNode") {
			continue
		}
		obs, ok := en.impl.(interface{ BeforeNode(script.Reference) })
		if !ok {
			e.recordError(en.id, "BeforeNode", fmt.Errorf("plugin does not implement BeforeNode"))
			continue
		}
		if err := run(func() { obs.BeforeNode(ref) }); err != nil {
			e.recordError(en.id, "BeforeNode", err)
		}
	}
}

// AfterNode implements executor.Observer.
func (e *Engine) AfterNode(ref script.Reference, result *executor.Result) {
	for _, en := range e.entries {
		if !e.declares(en, "AfterNode") {
			continue
		}
		obs, ok := en.impl.(interface {
			AfterNode(script.Reference, *executor.Result)
		})
		if !ok {
			e.recordError(en.id, "AfterNode", fmt.Errorf("plugin does not implement AfterNode"))
			continue
		}
		if err := run(func() { obs.AfterNode(ref, result) }); err != nil {
			e.recordError(en.id, "AfterNode", err)
		}
	}
}
