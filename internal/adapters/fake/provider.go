// Package fake provides a scripted, in-memory environment provider.
// It records every call so engine behavior can be asserted without a container engine.
package fake

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.trai.ch/matrix/internal/core/domain"
	"go.trai.ch/matrix/internal/core/ports"
	"go.trai.ch/zerr"
)

// Outcome is the scripted result of one command.
type Outcome struct {
	ExitCode int
	Stdout   string
	Stderr   string
	Err      error
	// Delay blocks the command until it elapses or the context is cancelled.
	Delay time.Duration
}

// Script describes how the environments of one version behave.
type Script struct {
	ProvisionErr error
	MountErr     error
	// Commands maps the space-joined argv to its outcome. Unlisted commands succeed silently.
	Commands map[string]Outcome
	// Files maps environment paths to content served by Export.
	Files map[string]string
}

// Call is one recorded environment operation.
type Call struct {
	Version string
	Op      string
	Args    []string
}

// Provider is a ports.EnvironmentProvider whose environments follow per-version scripts.
type Provider struct {
	mu      sync.Mutex
	scripts map[string]Script
	calls   []Call
	volumes map[string]string
	closed  bool
}

// NewProvider creates a Provider. Versions without a script succeed.
func NewProvider(scripts map[string]Script) *Provider {
	if scripts == nil {
		scripts = make(map[string]Script)
	}
	return &Provider{scripts: scripts, volumes: make(map[string]string)}
}

// Name returns "fake".
func (p *Provider) Name() string { return "fake" }

// Provision returns a new scripted environment.
func (p *Provider) Provision(ctx context.Context, req ports.ProvisionRequest) (ports.Environment, error) {
	version := req.Target.RuntimeVersion
	p.record(version, "provision", req.Target.BaseImage)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p.mu.Lock()
	script := p.scripts[version]
	p.mu.Unlock()

	if script.ProvisionErr != nil {
		return nil, script.ProvisionErr
	}
	return &Environment{provider: p, version: version, script: script, env: make(map[string]string)}, nil
}

// Close marks the provider closed.
func (p *Provider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

// Closed reports whether Close was called.
func (p *Provider) Closed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

// Calls returns the recorded calls of version, or all calls when version is empty.
func (p *Provider) Calls(version string) []Call {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []Call
	for _, c := range p.calls {
		if version == "" || c.Version == version {
			out = append(out, c)
		}
	}
	return out
}

// Execs returns the argv of every command run for version, in order.
func (p *Provider) Execs(version string) []string {
	var out []string
	for _, c := range p.Calls(version) {
		if c.Op == "exec" {
			out = append(out, strings.Join(c.Args, " "))
		}
	}
	return out
}

// Volumes returns the mount path of every cache key mounted so far.
func (p *Provider) Volumes() map[string]string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make(map[string]string, len(p.volumes))
	for k, v := range p.volumes {
		out[k] = v
	}
	return out
}

func (p *Provider) record(version, op string, args ...string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, Call{Version: version, Op: op, Args: args})
}

// Environment is a scripted ports.Environment.
type Environment struct {
	provider *Provider
	version  string
	script   Script

	mu  sync.Mutex
	env map[string]string
}

// MountCache records the binding.
func (e *Environment) MountCache(_ context.Context, b domain.CacheBinding) error {
	e.provider.record(e.version, "mount", b.CacheKey, b.MountPath)
	if e.script.MountErr != nil {
		return e.script.MountErr
	}
	e.provider.mu.Lock()
	e.provider.volumes[b.CacheKey] = b.MountPath
	e.provider.mu.Unlock()
	return nil
}

// SetEnv records the variable.
func (e *Environment) SetEnv(_ context.Context, name, value string) error {
	e.provider.record(e.version, "env", name, value)
	e.mu.Lock()
	e.env[name] = value
	e.mu.Unlock()
	return nil
}

// Env returns the variables set so far.
func (e *Environment) Env() map[string]string {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make(map[string]string, len(e.env))
	for k, v := range e.env {
		out[k] = v
	}
	return out
}

// Exec plays back the scripted outcome of argv.
func (e *Environment) Exec(ctx context.Context, argv []string, stdout, stderr io.Writer) (int, error) {
	e.provider.record(e.version, "exec", argv...)

	out, ok := e.script.Commands[strings.Join(argv, " ")]
	if !ok {
		return 0, nil
	}

	if out.Delay > 0 {
		timer := time.NewTimer(out.Delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return -1, ctx.Err()
		case <-timer.C:
		}
	}

	_, _ = io.WriteString(stdout, out.Stdout)
	_, _ = io.WriteString(stderr, out.Stderr)
	return out.ExitCode, out.Err
}

// Export writes the scripted files under path to dest.
func (e *Environment) Export(_ context.Context, path, dest string) error {
	e.provider.record(e.version, "export", path, dest)

	prefix := strings.TrimSuffix(path, "/") + "/"
	found := false
	for name, content := range e.script.Files {
		if !strings.HasPrefix(name, prefix) {
			continue
		}
		found = true
		target := filepath.Join(dest, filepath.FromSlash(strings.TrimPrefix(name, prefix)))
		if err := os.MkdirAll(filepath.Dir(target), domain.DirPerm); err != nil {
			return err
		}
		if err := os.WriteFile(target, []byte(content), domain.FilePerm); err != nil {
			return err
		}
	}
	if !found {
		return zerr.With(zerr.New("no such directory"), "path", path)
	}
	return nil
}

// Close records the teardown.
func (e *Environment) Close(context.Context) error {
	e.provider.record(e.version, "close")
	return nil
}
