package notifier

import (
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"
)

// Factory builds a Notifier from provider settings such as "from",
// "api_key" or "host".
type Factory func(config map[string]string) (Notifier, error)

// providers maps a lowercase provider name to its factory. Email adapters
// fill it from init(); cmd/studio blank-imports them.
var providers = struct {
	sync.RWMutex
	byName map[string]Factory
}{byName: map[string]Factory{}}

func providerKey(name string) string { return strings.ToLower(strings.TrimSpace(name)) }

// Register makes an email provider available by name. Registering a name
// twice is a programming error and panics.
func Register(name string, factory Factory) {
	key := providerKey(name)

	providers.Lock()
	defer providers.Unlock()
	if _, dup := providers.byName[key]; dup {
		panic(fmt.Sprintf("notifier: provider %q registered twice", key))
	}
	providers.byName[key] = factory
}

// New builds the provider registered under name, ignoring case. An empty
// name selects "log".
func New(name string, config map[string]string) (Notifier, error) {
	key := providerKey(name)
	if key == "" {
		key = "log"
	}

	providers.RLock()
	factory := providers.byName[key]
	providers.RUnlock()

	if factory == nil {
		return nil, fmt.Errorf("notifier: unknown provider %q (available: %s)", key, strings.Join(Available(), ", "))
	}
	return factory(config)
}

// Available returns the registered provider names in order.
func Available() []string {
	providers.RLock()
	defer providers.RUnlock()
	return slices.Sorted(maps.Keys(providers.byName))
}
