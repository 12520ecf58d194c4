package relay

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/goliatone/go-relay/core"
)

// NotifierPack groups feed notifiers that are installed together, for
// example a broker publisher plus an audit sink.
type NotifierPack struct {
	Name      string
	Notifiers []core.FeedNotifier
}

type CommandQueryBundleFactory func(service CommandQueryService) (any, error)

type ExtensionHooks struct {
	mu sync.RWMutex

	notifierPacks map[string]NotifierPack
	bundles       map[string]CommandQueryBundleFactory
}

func NewExtensionHooks() *ExtensionHooks {
	return &ExtensionHooks{
		notifierPacks: map[string]NotifierPack{},
		bundles:       map[string]CommandQueryBundleFactory{},
	}
}

func (h *ExtensionHooks) RegisterNotifierPack(pack NotifierPack) error {
	if h == nil {
		return fmt.Errorf("relay: extension hooks are nil")
	}
	name := strings.TrimSpace(pack.Name)
	if name == "" {
		return fmt.Errorf("relay: notifier pack name is required")
	}
	if len(pack.Notifiers) == 0 {
		return fmt.Errorf("relay: notifier pack %q has no notifiers", name)
	}
	for _, notifier := range pack.Notifiers {
		if notifier == nil {
			return fmt.Errorf("relay: notifier pack %q contains nil notifier", name)
		}
	}

	normalized := NotifierPack{
		Name:      name,
		Notifiers: append([]core.FeedNotifier(nil), pack.Notifiers...),
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if _, exists := h.notifierPacks[name]; exists {
		return fmt.Errorf("relay: notifier pack %q already registered", name)
	}
	h.notifierPacks[name] = normalized
	return nil
}

func (h *ExtensionHooks) RegisterCommandQueryBundle(
	name string,
	factory CommandQueryBundleFactory,
) error {
	if h == nil {
		return fmt.Errorf("relay: extension hooks are nil")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("relay: command/query bundle name is required")
	}
	if factory == nil {
		return fmt.Errorf("relay: command/query bundle %q factory is required", name)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if _, exists := h.bundles[name]; exists {
		return fmt.Errorf("relay: command/query bundle %q already registered", name)
	}
	h.bundles[name] = factory
	return nil
}

// Options turns every registered notifier into a service option, in pack
// name order.
func (h *ExtensionHooks) Options() []Option {
	if h == nil {
		return nil
	}
	out := []Option{}
	for _, pack := range h.NotifierPacks() {
		for _, notifier := range pack.Notifiers {
			out = append(out, core.WithFeedNotifier(notifier))
		}
	}
	return out
}

func (h *ExtensionHooks) BuildCommandQueryBundles(
	service CommandQueryService,
) (map[string]any, error) {
	if h == nil {
		return map[string]any{}, nil
	}
	if service == nil {
		return nil, fmt.Errorf("relay: command/query service is required")
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
		bundle, err := factories[name](service)
		if err != nil {
			return nil, err
		}
		result[name] = bundle
	}
	return result, nil
}

func (h *ExtensionHooks) NotifierPacks() []NotifierPack {
	if h == nil {
		return nil
	}
	h.mu.RLock()
	defer h.mu.RUnlock()

	names := make([]string, 0, len(h.notifierPacks))
	for name := range h.notifierPacks {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]NotifierPack, 0, len(names))
	for _, name := range names {
		pack := h.notifierPacks[name]
		out = append(out, NotifierPack{
			Name:      pack.Name,
			Notifiers: append([]core.FeedNotifier(nil), pack.Notifiers...),
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
