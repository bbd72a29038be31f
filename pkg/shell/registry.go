package shell

import (
	"errors"
	"fmt"
	"slices"
	"sort"
)

var (
	ErrAlreadyRegistered = errors.New("builtin already registered")
	ErrNotRegistered     = errors.New("builtin not registered")
)

// Factory builds one named builtin from an argument vector.
type Factory struct {
	Name string
	New  func(argv []string) Builtin
}

// Registry maps builtin names to their factories. A registry is owned by a
// single shell and is only written while modules are loaded.
type Registry struct {
	factories map[string]Factory
}

func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register adds f under f.Name. Names are never overwritten.
func (r *Registry) Register(f Factory) error {
	if f.Name == "" || f.New == nil {
		return fmt.Errorf("invalid factory %q", f.Name)
	}
	if _, ok := r.factories[f.Name]; ok {
		return fmt.Errorf("%w: %s", ErrAlreadyRegistered, f.Name)
	}
	r.factories[f.Name] = f
	return nil
}

func (r *Registry) IsRegistered(name string) bool {
	_, ok := r.factories[name]
	return ok
}

// Build constructs the builtin named by argv[0]. The builtin receives its own
// copy of argv.
func (r *Registry) Build(argv []string) (Builtin, error) {
	if len(argv) == 0 {
		return nil, fmt.Errorf("%w: empty argv", ErrNotRegistered)
	}
	f, ok := r.factories[argv[0]]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotRegistered, argv[0])
	}
	return f.New(slices.Clone(argv)), nil
}

// Names returns the registered names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
