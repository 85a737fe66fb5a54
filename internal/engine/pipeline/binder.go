package pipeline

import (
	"context"

	"go.trai.ch/matrix/internal/core/domain"
	"go.trai.ch/matrix/internal/core/ports"
	"go.trai.ch/zerr"
)

// Binder attaches version-keyed cache volumes to one environment.
// It is not safe for concurrent use; each entry owns its binder.
type Binder struct {
	env       ports.Environment
	namespace string
	version   string

	bindings  []domain.CacheBinding
	byPurpose map[string]int
	byPath    map[string]string
}

// NewBinder returns a Binder for the environment of version.
func NewBinder(env ports.Environment, namespace, version string) *Binder {
	if namespace == "" {
		namespace = domain.DefaultCacheNamespace
	}
	return &Binder{
		env:       env,
		namespace: namespace,
		version:   version,
		byPurpose: make(map[string]int),
		byPath:    make(map[string]string),
	}
}

// Bind mounts each cache in order and returns the resulting bindings.
// A purpose that is already bound returns its existing binding without mounting again.
// A new purpose at a mount path that is already in use fails with *domain.CacheMountError.
func (b *Binder) Bind(ctx context.Context, specs ...domain.CacheSpec) ([]domain.CacheBinding, error) {
	out := make([]domain.CacheBinding, 0, len(specs))
	for _, spec := range specs {
		if err := spec.Validate(); err != nil {
			return out, err
		}

		if i, ok := b.byPurpose[spec.Purpose]; ok {
			out = append(out, b.bindings[i])
			continue
		}

		if owner, ok := b.byPath[spec.MountPath]; ok {
			return out, &domain.CacheMountError{
				Version:   b.version,
				MountPath: spec.MountPath,
				Existing:  owner,
				Requested: spec.Purpose,
			}
		}

		binding := spec.Bind(b.namespace, b.version)
		if err := b.env.MountCache(ctx, binding); err != nil {
			return out, zerr.With(zerr.Wrap(err, "failed to mount cache volume"), "cache_key", binding.CacheKey)
		}

		b.byPurpose[spec.Purpose] = len(b.bindings)
		b.byPath[spec.MountPath] = spec.Purpose
		b.bindings = append(b.bindings, binding)
		out = append(out, binding)
	}
	return out, nil
}

// Bindings returns every binding made so far, in mount order.
func (b *Binder) Bindings() []domain.CacheBinding {
	out := make([]domain.CacheBinding, len(b.bindings))
	copy(out, b.bindings)
	return out
}
