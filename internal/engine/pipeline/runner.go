package pipeline

import (
	"context"
	"fmt"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"go.trai.ch/matrix/internal/core/domain"
	"go.trai.ch/matrix/internal/core/ports"
	"go.trai.ch/zerr"
)

// Config holds the per-run settings shared by every entry.
type Config struct {
	// SourceDir is the host source tree copied into each environment.
	SourceDir string
	// RunDir receives one output directory per version.
	RunDir string
	// Namespace prefixes cache keys.
	Namespace string
}

// Runner drives one matrix entry from Pending to a terminal state.
type Runner struct {
	provider  ports.EnvironmentProvider
	collector ports.ArtifactCollector
	tracer    ports.Tracer
	logger    ports.Logger
	executor  *Executor
	cfg       Config
}

// NewRunner creates a Runner.
func NewRunner(
	provider ports.EnvironmentProvider,
	collector ports.ArtifactCollector,
	tracer ports.Tracer,
	logger ports.Logger,
	cfg Config,
) *Runner {
	return &Runner{
		provider:  provider,
		collector: collector,
		tracer:    tracer,
		logger:    logger,
		executor:  NewExecutor(tracer),
		cfg:       cfg,
	}
}

// entry tracks the result of one run while it moves through its states.
type entry struct {
	res   domain.BuildResult
	span  ports.Span
	start time.Time
}

func (e *entry) advance(next domain.EntryState) {
	if state, err := e.res.State.Transition(next); err == nil {
		e.res.State = state
	}
}

func (e *entry) fail(err error) domain.BuildResult {
	e.advance(domain.StateFailed)
	e.res.Err = err
	if e.res.ExitCode == 0 {
		e.res.ExitCode = -1
	}
	e.span.RecordError(err)
	e.res.Duration = time.Since(e.start)
	return e.res
}

// Run builds version with p and always returns a result in a terminal state.
func (r *Runner) Run(ctx context.Context, version string, p domain.Pipeline) domain.BuildResult {
	ctx, span := r.tracer.Start(ctx, domain.EntryLabel(version), ports.WithAttribute(ports.AttrVersion, version))
	defer span.End()

	e := &entry{
		res: domain.BuildResult{
			Target:     domain.BuildTarget{RuntimeVersion: version},
			State:      domain.StatePending,
			FailedStep: -1,
		},
		span:  span,
		start: time.Now(),
	}

	if err := ctx.Err(); err != nil {
		return e.fail(cancelled(err))
	}

	e.advance(domain.StateProvisioning)
	env, target, err := Provision(ctx, r.provider, p.Image(), version, r.cfg.SourceDir, p.Workdir())
	e.res.Target = target
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = fmt.Errorf("%w: %w", cancelled(ctxErr), err)
		}
		return e.fail(err)
	}
	span.SetAttribute(ports.AttrImage, target.BaseImage)
	defer func() {
		if err := env.Close(context.WithoutCancel(ctx)); err != nil {
			r.logger.Warn(fmt.Sprintf("failed to clean up environment for %s: %v", version, err))
		}
	}()

	e.advance(domain.StateCacheBinding)
	binder := NewBinder(env, r.cfg.Namespace, version)
	outputDir := domain.EntryDir(r.cfg.RunDir, version)
	steps := r.executor.Begin(outputDir)

	// Operations apply in declaration order, so a variable set after a step
	// is not visible to it.
	var opErr error
	for _, op := range p.Ops() {
		switch op.Kind {
		case domain.OpCache:
			_, opErr = binder.Bind(ctx, op.Cache)
		case domain.OpEnv:
			if err := env.SetEnv(ctx, op.Env.Name, op.Env.Value); err != nil {
				opErr = zerr.With(zerr.Wrap(err, "failed to set environment variable"), "name", op.Env.Name)
			}
		case domain.OpExec:
			e.advance(domain.StateExecuting)
			steps.Step(ctx, env, op.Step)
		}
		if opErr != nil || steps.Failed() {
			break
		}
	}
	if opErr == nil {
		e.advance(domain.StateExecuting)
	}

	pr := steps.Result()
	e.res.Steps = pr.Steps
	e.res.Stdout = pr.Stdout
	e.res.Stderr = pr.Stderr
	e.res.ExitCode = pr.ExitCode
	e.res.FailedStep = pr.FailedStep
	e.res.ArtifactPaths = append(e.res.ArtifactPaths, pr.Files...)
	if opErr != nil {
		return e.fail(opErr)
	}
	if pr.State == domain.StateFailed {
		return e.fail(pr.Err)
	}

	for _, spec := range p.Artifacts() {
		files, err := r.export(ctx, env, spec, outputDir)
		if err != nil {
			return e.fail(err)
		}
		e.res.ArtifactPaths = append(e.res.ArtifactPaths, files...)
	}

	slices.Sort(e.res.ArtifactPaths)
	e.res.ArtifactPaths = slices.Compact(e.res.ArtifactPaths)
	e.advance(domain.StateSucceeded)
	e.res.Duration = time.Since(e.start)
	return e.res
}

func (r *Runner) export(ctx context.Context, env ports.Environment, spec domain.ArtifactSpec, outputDir string) ([]string, error) {
	rel, err := artifactDir(spec.Path)
	if err != nil {
		return nil, err
	}
	dest := filepath.Join(outputDir, domain.ArtifactsDirName, rel)

	if err := env.Export(ctx, spec.Path, dest); err != nil {
		return nil, zerr.With(fmt.Errorf("%w: %w", domain.ErrArtifactExportFailed, err), "path", spec.Path)
	}

	files, err := r.collector.Collect(dest, spec.Include)
	if err != nil {
		return nil, zerr.With(fmt.Errorf("%w: %w", domain.ErrArtifactExportFailed, err), "path", spec.Path)
	}
	return files, nil
}

// artifactDir maps an environment path to a relative directory under the entry's artifacts dir.
func artifactDir(p string) (string, error) {
	clean := strings.TrimPrefix(filepath.ToSlash(filepath.Clean(p)), "/")
	if clean == "" || clean == "." || clean == ".." || strings.HasPrefix(clean, "../") {
		return "", zerr.With(zerr.New("artifact path must name a directory inside the environment"), "path", p)
	}
	return filepath.FromSlash(clean), nil
}
