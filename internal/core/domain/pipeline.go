package domain

import (
	"slices"

	"go.trai.ch/zerr"
)

// DefaultSourcePath is where the source tree is placed inside an environment.
const DefaultSourcePath = "/src"

// OpKind identifies a pipeline configuration operation.
type OpKind int

const (
	// OpFrom sets the base image template.
	OpFrom OpKind = iota
	// OpWorkdir sets the directory the source is placed in and commands run from.
	OpWorkdir
	// OpCache attaches a cache volume.
	OpCache
	// OpEnv sets an environment variable.
	OpEnv
	// OpExec appends a command step.
	OpExec
	// OpArtifact declares a directory exported after a successful run.
	OpArtifact
)

// EnvVar is a name/value pair applied verbatim to an environment.
type EnvVar struct {
	Name  string
	Value string
}

// ArtifactSpec is a directory in the environment exported to the host after the pipeline succeeds.
// Include filters the exported files with doublestar globs; empty means every file.
type ArtifactSpec struct {
	Path    string
	Include []string
}

// Op is one ordered configuration operation of a Pipeline.
type Op struct {
	Kind     OpKind
	Value    string
	Cache    CacheSpec
	Env      EnvVar
	Step     CommandStep
	Artifact ArtifactSpec
}

// Pipeline is an immutable, ordered description of how to build one matrix entry.
// Every With method returns a new Pipeline and leaves the receiver unchanged.
type Pipeline struct {
	ops []Op
}

// From starts a pipeline from a base image template such as "node:${version}".
func From(template string) Pipeline {
	return Pipeline{}.From(template)
}

// From sets the base image template.
func (p Pipeline) From(template string) Pipeline {
	return p.with(Op{Kind: OpFrom, Value: template})
}

// WithWorkdir sets the source and working directory inside the environment.
func (p Pipeline) WithWorkdir(dir string) Pipeline {
	return p.with(Op{Kind: OpWorkdir, Value: dir})
}

// WithCache attaches the cache volume for purpose at path.
func (p Pipeline) WithCache(purpose, path string) Pipeline {
	return p.with(Op{Kind: OpCache, Cache: CacheSpec{Purpose: purpose, MountPath: path}})
}

// WithEnv sets name to value.
func (p Pipeline) WithEnv(name, value string) Pipeline {
	return p.with(Op{Kind: OpEnv, Env: EnvVar{Name: name, Value: value}})
}

// WithExec appends a command step.
func (p Pipeline) WithExec(step CommandStep) Pipeline {
	step.Argv = slices.Clone(step.Argv)
	return p.with(Op{Kind: OpExec, Step: step})
}

// WithArtifact declares an exported directory.
func (p Pipeline) WithArtifact(path string, include ...string) Pipeline {
	return p.with(Op{Kind: OpArtifact, Artifact: ArtifactSpec{Path: path, Include: slices.Clone(include)}})
}

// WithoutOptionalSteps returns a copy with optional steps removed.
func (p Pipeline) WithoutOptionalSteps() Pipeline {
	ops := make([]Op, 0, len(p.ops))
	for _, op := range p.ops {
		if op.Kind == OpExec && op.Step.Optional {
			continue
		}
		ops = append(ops, op)
	}
	return Pipeline{ops: ops}
}

func (p Pipeline) with(op Op) Pipeline {
	ops := make([]Op, len(p.ops), len(p.ops)+1)
	copy(ops, p.ops)
	return Pipeline{ops: append(ops, op)}
}

// Ops returns a copy of the configuration operations in order.
func (p Pipeline) Ops() []Op {
	return slices.Clone(p.ops)
}

// Image returns the last base image template set.
func (p Pipeline) Image() string {
	var image string
	for _, op := range p.ops {
		if op.Kind == OpFrom {
			image = op.Value
		}
	}
	return image
}

// Workdir returns the last working directory set, or DefaultSourcePath.
func (p Pipeline) Workdir() string {
	dir := DefaultSourcePath
	for _, op := range p.ops {
		if op.Kind == OpWorkdir {
			dir = op.Value
		}
	}
	return dir
}

// Caches returns the cache declarations in order.
func (p Pipeline) Caches() []CacheSpec {
	var out []CacheSpec
	for _, op := range p.ops {
		if op.Kind == OpCache {
			out = append(out, op.Cache)
		}
	}
	return out
}

// Env returns the environment variables in order.
func (p Pipeline) Env() []EnvVar {
	var out []EnvVar
	for _, op := range p.ops {
		if op.Kind == OpEnv {
			out = append(out, op.Env)
		}
	}
	return out
}

// Steps returns the command steps in order.
func (p Pipeline) Steps() []CommandStep {
	var out []CommandStep
	for _, op := range p.ops {
		if op.Kind == OpExec {
			step := op.Step
			step.Argv = slices.Clone(step.Argv)
			out = append(out, step)
		}
	}
	return out
}

// Artifacts returns the artifact declarations in order.
func (p Pipeline) Artifacts() []ArtifactSpec {
	var out []ArtifactSpec
	for _, op := range p.ops {
		if op.Kind == OpArtifact {
			out = append(out, op.Artifact)
		}
	}
	return out
}

// Validate checks every operation of the pipeline. Caches must be attached
// before the first command step, since a running container cannot gain mounts.
func (p Pipeline) Validate() error {
	if p.Image() == "" {
		return zerr.Wrap(ErrInvalidImageTemplate, "pipeline has no base image")
	}
	execs := 0
	for _, op := range p.ops {
		switch op.Kind {
		case OpExec:
			execs++
		case OpCache:
			if execs > 0 {
				return zerr.With(zerr.Wrap(ErrCacheAfterExec, ""), "purpose", op.Cache.Purpose)
			}
		}
	}
	for _, c := range p.Caches() {
		if err := c.Validate(); err != nil {
			return err
		}
	}
	for _, e := range p.Env() {
		if e.Name == "" {
			return zerr.New("environment variable name is empty")
		}
	}
	for _, s := range p.Steps() {
		if err := s.Validate(); err != nil {
			return err
		}
	}
	return nil
}
