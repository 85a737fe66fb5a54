// Package daggerengine provides build environments as containers on a Dagger engine.
package daggerengine

import (
	"context"
	"io"
	"sync"

	"dagger.io/dagger"
	"go.trai.ch/matrix/internal/core/domain"
	"go.trai.ch/matrix/internal/core/ports"
	"go.trai.ch/zerr"
)

// sourceExcludes are not uploaded to the engine.
var sourceExcludes = []string{".git", domain.StateDirName}

// Provider implements ports.EnvironmentProvider on one shared engine session.
// The session is opened on the first Provision.
type Provider struct {
	logOutput io.Writer

	mu     sync.Mutex
	client *dagger.Client
}

// NewProvider creates a Provider. Engine logs go to logOutput, or nowhere when it is nil.
func NewProvider(logOutput io.Writer) *Provider {
	if logOutput == nil {
		logOutput = io.Discard
	}
	return &Provider{logOutput: logOutput}
}

// Name returns "dagger".
func (p *Provider) Name() string { return domain.ProviderDagger }

func (p *Provider) connect(ctx context.Context) (*dagger.Client, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.client != nil {
		return p.client, nil
	}
	client, err := dagger.Connect(ctx, dagger.WithLogOutput(p.logOutput))
	if err != nil {
		return nil, zerr.Wrap(err, "failed to connect to dagger engine")
	}
	p.client = client
	return client, nil
}

// Provision pulls the base image and places the source tree at the workdir.
func (p *Provider) Provision(ctx context.Context, req ports.ProvisionRequest) (ports.Environment, error) {
	client, err := p.connect(ctx)
	if err != nil {
		return nil, err
	}

	ctr, err := client.Container().From(req.Target.BaseImage).Sync(ctx)
	if err != nil {
		return nil, zerr.With(zerr.Wrap(err, "failed to pull base image"), "image", req.Target.BaseImage)
	}

	workdir := req.Workdir
	if workdir == "" {
		workdir = domain.DefaultSourcePath
	}
	src := client.Host().Directory(req.SourceDir, dagger.HostDirectoryOpts{Exclude: sourceExcludes})

	return &Environment{
		client: client,
		ctr:    ctr.WithDirectory(workdir, src).WithWorkdir(workdir),
	}, nil
}

// Close ends the engine session.
func (p *Provider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.client == nil {
		return nil
	}
	err := p.client.Close()
	p.client = nil
	return err
}

// Environment is an immutable container chain. Each configuration call
// replaces the head of the chain.
type Environment struct {
	client *dagger.Client

	mu  sync.Mutex
	ctr *dagger.Container
}

func (e *Environment) head() *dagger.Container {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ctr
}

func (e *Environment) advance(ctr *dagger.Container) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.ctr = ctr
}

// MountCache mounts the engine cache volume named by the binding's key.
func (e *Environment) MountCache(_ context.Context, b domain.CacheBinding) error {
	e.advance(e.head().WithMountedCache(b.MountPath, e.client.CacheVolume(b.CacheKey)))
	return nil
}

// SetEnv sets a variable verbatim.
func (e *Environment) SetEnv(_ context.Context, name, value string) error {
	e.advance(e.head().WithEnvVariable(name, value))
	return nil
}

// Exec evaluates argv on the engine. Output is delivered once the command
// finished, since the engine only returns it then. The chain only advances
// when the command exits 0.
func (e *Environment) Exec(ctx context.Context, argv []string, stdout, stderr io.Writer) (int, error) {
	next := e.head().WithExec(argv, dagger.ContainerWithExecOpts{Expect: dagger.ReturnTypeAny})

	code, err := next.ExitCode(ctx)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return -1, ctxErr
		}
		return -1, zerr.Wrap(err, "failed to run command")
	}

	out, err := next.Stdout(ctx)
	if err != nil {
		return -1, zerr.Wrap(err, "failed to read stdout")
	}
	errOut, err := next.Stderr(ctx)
	if err != nil {
		return -1, zerr.Wrap(err, "failed to read stderr")
	}
	_, _ = io.WriteString(stdout, out)
	_, _ = io.WriteString(stderr, errOut)

	if code == 0 {
		e.advance(next)
	}
	return code, nil
}

// Export writes the directory at path to dest on the host.
func (e *Environment) Export(ctx context.Context, path, dest string) error {
	if _, err := e.head().Directory(path).Export(ctx, dest); err != nil {
		return zerr.With(zerr.Wrap(err, "failed to export directory"), "path", path)
	}
	return nil
}

// Close is a no-op; containers are released with the session.
func (e *Environment) Close(context.Context) error { return nil }
