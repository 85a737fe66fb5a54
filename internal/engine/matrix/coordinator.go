// Package matrix fans a pipeline out over runtime versions and collects one result per version.
package matrix

import (
	"context"
	"fmt"
	"runtime"
	"sync"

	"go.trai.ch/matrix/internal/core/domain"
	"go.trai.ch/matrix/internal/core/ports"
	"go.trai.ch/zerr"
	"golang.org/x/sync/errgroup"
)

// EntryRunner runs a single matrix entry to a terminal state.
type EntryRunner interface {
	Run(ctx context.Context, version string, p domain.Pipeline) domain.BuildResult
}

// PipelineFactory returns the pipeline for a version.
type PipelineFactory func(version string) domain.Pipeline

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithPolicy sets the failure policy. The default is fail-at-end.
func WithPolicy(policy domain.FailurePolicy) Option {
	return func(c *Coordinator) {
		if policy != "" {
			c.policy = policy
		}
	}
}

// WithParallelism bounds the number of entries running at once.
// Values below 1 select runtime.NumCPU().
func WithParallelism(n int) Option {
	return func(c *Coordinator) {
		c.parallelism = n
	}
}

// Coordinator runs matrix entries concurrently.
type Coordinator struct {
	runner      EntryRunner
	tracer      ports.Tracer
	policy      domain.FailurePolicy
	parallelism int

	mu     sync.RWMutex
	states map[string]domain.EntryState
}

// NewCoordinator creates a Coordinator.
func NewCoordinator(runner EntryRunner, tracer ports.Tracer, opts ...Option) *Coordinator {
	c := &Coordinator{
		runner: runner,
		tracer: tracer,
		policy: domain.FailAtEnd,
		states: make(map[string]domain.EntryState),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.parallelism < 1 {
		c.parallelism = runtime.NumCPU()
	}
	return c
}

// State returns the last known state of version in the current or most recent run.
func (c *Coordinator) State(version string) (domain.EntryState, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.states[version]
	return s, ok
}

func (c *Coordinator) setState(version string, state domain.EntryState) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.states[version] = state
}

// Run builds every version and returns the results in input order.
// Under fail-at-end a failing entry never affects its siblings.
// Under fail-fast the first failure cancels every entry that has not finished.
func (c *Coordinator) Run(ctx context.Context, versions []string, factory PipelineFactory) domain.MatrixReport {
	results := make([]domain.BuildResult, len(versions))
	if len(versions) == 0 {
		return domain.MatrixReport{Results: results}
	}

	c.mu.Lock()
	c.states = make(map[string]domain.EntryState, len(versions))
	for _, v := range versions {
		c.states[v] = domain.StatePending
	}
	c.mu.Unlock()

	plan := make([]string, len(versions))
	for i, v := range versions {
		plan[i] = domain.EntryLabel(v)
	}
	c.tracer.EmitPlan(ctx, plan)

	runCtx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	var g errgroup.Group
	g.SetLimit(c.parallelism)

	for i, version := range versions {
		p := factory(version)
		g.Go(func() error {
			if runCtx.Err() != nil {
				results[i] = cancelledResult(runCtx, version, p)
				c.setState(version, results[i].State)
				return nil
			}

			c.setState(version, domain.StateProvisioning)
			res := c.runner.Run(runCtx, version, p)
			results[i] = res
			c.setState(version, res.State)

			if !res.Succeeded() && c.policy == domain.FailFast {
				cancel(zerr.With(zerr.New("cancelled after a sibling entry failed"), "failed_version", version))
			}
			return nil
		})
	}

	_ = g.Wait()
	return domain.MatrixReport{Results: results}
}

func cancelledResult(ctx context.Context, version string, p domain.Pipeline) domain.BuildResult {
	target, err := domain.NewBuildTarget(p.Image(), version)
	if err != nil {
		target = domain.BuildTarget{RuntimeVersion: version}
	}
	return domain.BuildResult{
		Target:     target,
		State:      domain.StateFailed,
		ExitCode:   -1,
		FailedStep: -1,
		Err:        fmt.Errorf("%w: %w", domain.ErrEntryCancelled, context.Cause(ctx)),
	}
}
