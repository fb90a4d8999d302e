package target

import (
	"fmt"
	"sort"
)

var registry = map[string]func() Machine{}

// RegisterTarget makes a target constructor available to ByName.
// Target subpackages call it from init.
func RegisterTarget(name string, ctor func() Machine) {
	if _, dup := registry[name]; dup {
		panic("target: duplicate registration of " + name)
	}
	registry[name] = ctor
}

// ByName instantiates the named target.
func ByName(name string) (Machine, error) {
	ctor, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("unknown target %q (have %v)", name, Names())
	}
	return ctor(), nil
}

// Names lists the registered target names.
func Names() []string {
	names := make([]string, 0, len(registry))
	for n := range registry {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
