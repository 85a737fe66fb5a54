// Package providers maps provider names to environment provider constructors.
package providers

import (
	"io"
	"slices"
	"sync"

	"go.trai.ch/matrix/internal/adapters/daggerengine"
	"go.trai.ch/matrix/internal/adapters/docker"
	"go.trai.ch/matrix/internal/adapters/shell"
	"go.trai.ch/matrix/internal/core/domain"
	"go.trai.ch/matrix/internal/core/ports"
	"go.trai.ch/zerr"
)

// Settings are the per-run inputs a provider may need.
type Settings struct {
	// StateDir is the .matrix directory of the source tree.
	StateDir string
	// TTY runs local commands under a pseudo-terminal.
	TTY bool
	// LogOutput receives engine logs. Nil discards them.
	LogOutput io.Writer
	Logger    ports.Logger
}

// Constructor creates a provider for one run.
type Constructor func(Settings) ports.EnvironmentProvider

// Registry holds the known providers by name.
type Registry struct {
	mu    sync.RWMutex
	ctors map[string]Constructor
}

// NewRegistry returns a Registry with the dagger, docker and local providers.
func NewRegistry() *Registry {
	r := &Registry{ctors: make(map[string]Constructor)}
	r.Register(domain.ProviderDagger, func(s Settings) ports.EnvironmentProvider {
		return daggerengine.NewProvider(s.LogOutput)
	})
	r.Register(domain.ProviderDocker, func(Settings) ports.EnvironmentProvider {
		return docker.NewProvider()
	})
	r.Register(domain.ProviderLocal, func(s Settings) ports.EnvironmentProvider {
		return shell.NewProvider(s.StateDir, shell.WithTTY(s.TTY), shell.WithLogger(s.Logger))
	})
	return r
}

// Register adds or replaces the constructor for name.
func (r *Registry) Register(name string, ctor Constructor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ctors[name] = ctor
}

// Names returns the registered provider names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.ctors))
	for name := range r.ctors {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// New creates the provider registered as name.
func (r *Registry) New(name string, s Settings) (ports.EnvironmentProvider, error) {
	r.mu.RLock()
	ctor, ok := r.ctors[name]
	r.mu.RUnlock()

	if !ok {
		return nil, zerr.With(zerr.With(zerr.Wrap(domain.ErrUnknownProvider, ""), "provider", name), "known", r.Names())
	}
	return ctor(s), nil
}
