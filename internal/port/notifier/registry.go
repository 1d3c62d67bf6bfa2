package notifier

import (
	"fmt"
	"slices"
	"sync"
)

// Factory builds a Notifier from its provider config, e.g.
// {"webhook_url": "..."} for the slack adapter.
type Factory func(config map[string]string) (Notifier, error)

var (
	regMu     sync.RWMutex
	providers = map[string]Factory{}
)

// Register makes a factory available under the given provider name.
// Adapters call it from init(); registering a name twice is a programming
// error and panics.
func Register(name string, f Factory) {
	regMu.Lock()
	defer regMu.Unlock()

	if _, dup := providers[name]; dup {
		panic(fmt.Sprintf("notifier: %q registered twice", name))
	}
	providers[name] = f
}

// New builds the named notifier from its config.
func New(name string, config map[string]string) (Notifier, error) {
	regMu.RLock()
	f, ok := providers[name]
	regMu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("notifier: unknown provider %q", name)
	}
	return f(config)
}

// Available returns the registered provider names, sorted.
func Available() []string {
	regMu.RLock()
	defer regMu.RUnlock()

	names := make([]string, 0, len(providers))
	for name := range providers {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
