package cli

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/kolah/veritas"
)

// Factory builds a service from the loaded service config and logger.
type Factory func(cfg veritas.Config, logger *log.Logger) (*veritas.Service, error)

// Registry names the services the commands can serve and document.
type Registry struct {
	factories map[string]Factory
	names     []string
}

func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

func (r *Registry) Register(name string, f Factory) error {
	if name == "" {
		return errors.New("register service: empty name")
	}
	if f == nil {
		return fmt.Errorf("register service %q: nil factory", name)
	}
	if _, ok := r.factories[name]; ok {
		return fmt.Errorf("register service %q: already registered", name)
	}
	r.factories[name] = f
	r.names = append(r.names, name)
	return nil
}

// MustRegister is like Register but panics on error.
func (r *Registry) MustRegister(name string, f Factory) {
	if err := r.Register(name, f); err != nil {
		panic(err)
	}
}

// Names returns the registered names in sorted order.
func (r *Registry) Names() []string {
	names := slices.Clone(r.names)
	slices.Sort(names)
	return names
}

// Build resolves name and builds its service. An empty name selects the only
// registered service.
func (r *Registry) Build(name string, cfg veritas.Config, logger *log.Logger) (*veritas.Service, error) {
	if name == "" {
		if len(r.names) != 1 {
			return nil, usageError("--input is required (registered services: %s)", r.list())
		}
		name = r.names[0]
	}

	f, ok := r.factories[name]
	if !ok {
		return nil, usageError("unknown service %q (registered services: %s)", name, r.list())
	}
	svc, err := f(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("building service %q: %w", name, err)
	}
	if svc == nil {
		return nil, fmt.Errorf("building service %q: factory returned no service", name)
	}
	return svc, nil
}

func (r *Registry) list() string {
	if len(r.names) == 0 {
		return "none"
	}
	return strings.Join(r.Names(), ", ")
}
