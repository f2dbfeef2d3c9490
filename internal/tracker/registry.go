package tracker

import (
	"fmt"
	"sort"
)

// Config supplies adapter construction with typed git configuration access.
// Required lookups fail with the exact missing section.key before any
// network call happens.
type Config interface {
	Required(section, key string) (string, error)
	Optional(section, key string) string
	OptionalBool(section, key string) bool
	GetAssociation(branch string) (itemKey string, ok bool)
	RemoteURL() string
}

// Factory builds an adapter from configuration.
type Factory func(cfg Config) (Adapter, error)

var registry = map[string]Factory{}

// Register makes a tracker adapter available under the given kind. Adapters
// register themselves from init.
func Register(kind string, factory Factory) {
	if _, dup := registry[kind]; dup {
		panic(fmt.Sprintf("tracker: duplicate registration for %q", kind))
	}
	registry[kind] = factory
}

// New constructs the adapter for the configured tracker kind.
func New(kind string, cfg Config) (Adapter, error) {
	factory, ok := registry[kind]
	if !ok {
		return nil, fmt.Errorf("unsupported tracker %q (expected one of %v)", kind, Kinds())
	}
	return factory(cfg)
}

// Kinds lists the registered tracker identifiers, sorted.
func Kinds() []string {
	kinds := make([]string, 0, len(registry))
	for kind := range registry {
		kinds = append(kinds, kind)
	}
	sort.Strings(kinds)
	return kinds
}
