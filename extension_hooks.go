package corpauth

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// ScopePack is a named set of ESI scopes a dashboard module needs, e.g.
// the finance screens asking for wallet scopes. Packs are merged into
// the SSO default scope list before the service is built.
type ScopePack struct {
	Name   string
	Scopes []string
}

type CommandQueryBundleFactory func(facade *Facade) (any, error)

// ExtensionHooks lets embedding applications contribute scope packs and
// command/query bundles without patching this module.
type ExtensionHooks struct {
	mu sync.RWMutex

	scopePacks map[string]ScopePack
	bundles    map[string]CommandQueryBundleFactory
}

func NewExtensionHooks() *ExtensionHooks {
	return &ExtensionHooks{
		scopePacks: map[string]ScopePack{},
		bundles:    map[string]CommandQueryBundleFactory{},
	}
}

func (h *ExtensionHooks) RegisterScopePack(pack ScopePack) error {
	if h == nil {
		return fmt.Errorf("corpauth: extension hooks are nil")
	}
	name := strings.TrimSpace(pack.Name)
	if name == "" {
		return fmt.Errorf("corpauth: scope pack name is required")
	}
	scopes := make([]string, 0, len(pack.Scopes))
	for _, scope := range pack.Scopes {
		// ESI scope names are case sensitive; trim only.
		scope = strings.TrimSpace(scope)
		if scope == "" {
			continue
		}
		scopes = append(scopes, scope)
	}
	if len(scopes) == 0 {
		return fmt.Errorf("corpauth: scope pack %q has no scopes", name)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if _, exists := h.scopePacks[name]; exists {
		return fmt.Errorf("corpauth: scope pack %q already registered", name)
	}
	h.scopePacks[name] = ScopePack{Name: name, Scopes: scopes}
	return nil
}

func (h *ExtensionHooks) RegisterCommandQueryBundle(
	name string,
	factory CommandQueryBundleFactory,
) error {
	if h == nil {
		return fmt.Errorf("corpauth: extension hooks are nil")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("corpauth: command/query bundle name is required")
	}
	if factory == nil {
		return fmt.Errorf("corpauth: command/query bundle %q factory is required", name)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if _, exists := h.bundles[name]; exists {
		return fmt.Errorf("corpauth: command/query bundle %q already registered", name)
	}
	h.bundles[name] = factory
	return nil
}

// ApplyScopePacks merges every registered pack into the config's SSO
// default scopes, deduplicating while preserving first-seen order.
func (h *ExtensionHooks) ApplyScopePacks(cfg Config) Config {
	if h == nil {
		return cfg
	}

	merged := make([]string, 0, len(cfg.SSO.DefaultScopes))
	seen := map[string]bool{}
	appendScope := func(scope string) {
		scope = strings.TrimSpace(scope)
		if scope == "" || seen[scope] {
			return
		}
		seen[scope] = true
		merged = append(merged, scope)
	}
	for _, scope := range cfg.SSO.DefaultScopes {
		appendScope(scope)
	}
	for _, pack := range h.ScopePacks() {
		for _, scope := range pack.Scopes {
			appendScope(scope)
		}
	}

	cfg.SSO.DefaultScopes = merged
	return cfg
}

func (h *ExtensionHooks) BuildCommandQueryBundles(facade *Facade) (map[string]any, error) {
	if h == nil {
		return map[string]any{}, nil
	}
	if facade == nil {
		return nil, fmt.Errorf("corpauth: facade is required")
	}

	h.mu.RLock()
	names := make([]string, 0, len(h.bundles))
	for name := range h.bundles {
		names = append(names, name)
	}
	sort.Strings(names)
	factories := make(map[string]CommandQueryBundleFactory, len(h.bundles))
	for name, factory := range h.bundles {
		factories[name] = factory
	}
	h.mu.RUnlock()

	result := make(map[string]any, len(names))
	for _, name := range names {
		bundle, err := factories[name](facade)
		if err != nil {
			return nil, err
		}
		result[name] = bundle
	}
	return result, nil
}

func (h *ExtensionHooks) ScopePacks() []ScopePack {
	if h == nil {
		return nil
	}
	h.mu.RLock()
	defer h.mu.RUnlock()

	names := make([]string, 0, len(h.scopePacks))
	for name := range h.scopePacks {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]ScopePack, 0, len(names))
	for _, name := range names {
		pack := h.scopePacks[name]
		out = append(out, ScopePack{
			Name:   pack.Name,
			Scopes: append([]string(nil), pack.Scopes...),
		})
	}
	return out
}

func (h *ExtensionHooks) BundleNames() []string {
	if h == nil {
		return nil
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	names := make([]string, 0, len(h.bundles))
	for name := range h.bundles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
