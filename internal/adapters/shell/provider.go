// Package shell implements the local environment provider. Every entry runs on
// the host inside its own sandbox directory, using the toolchain found on PATH.
package shell

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/creack/pty"
	"go.trai.ch/matrix/internal/core/domain"
	"go.trai.ch/matrix/internal/core/ports"
	"go.trai.ch/zerr"
)

// Option configures a Provider.
type Option func(*Provider)

// WithTTY runs commands under a pseudo-terminal. Stdout and stderr are merged.
func WithTTY(enabled bool) Option {
	return func(p *Provider) { p.tty = enabled }
}

// WithLogger sets the logger used for provider notices.
func WithLogger(l ports.Logger) Option {
	return func(p *Provider) { p.logger = l }
}

// Provider creates sandboxes under <stateDir>/sandboxes and keeps cache
// volumes as directories under <stateDir>/cache.
type Provider struct {
	stateDir string
	tty      bool
	logger   ports.Logger
	notice   sync.Once
}

// NewProvider creates a Provider rooted at stateDir.
func NewProvider(stateDir string, opts ...Option) *Provider {
	p := &Provider{stateDir: stateDir}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Name returns "local".
func (p *Provider) Name() string { return domain.ProviderLocal }

// Close is a no-op.
func (p *Provider) Close() error { return nil }

// Provision copies the source tree into a new sandbox.
func (p *Provider) Provision(ctx context.Context, req ports.ProvisionRequest) (ports.Environment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if info, err := os.Stat(req.SourceDir); err != nil || !info.IsDir() {
		return nil, zerr.With(zerr.Wrap(domain.ErrSourceNotFound, ""), "path", req.SourceDir)
	}

	stateDir, err := filepath.Abs(p.stateDir)
	if err != nil {
		return nil, zerr.Wrap(err, "failed to resolve state directory")
	}

	sandboxes := filepath.Join(stateDir, domain.SandboxDirName)
	if err := os.MkdirAll(sandboxes, domain.DirPerm); err != nil {
		return nil, zerr.With(zerr.Wrap(err, "failed to create sandbox directory"), "path", sandboxes)
	}
	root, err := os.MkdirTemp(sandboxes, req.Target.RuntimeVersion+"-")
	if err != nil {
		return nil, zerr.With(zerr.Wrap(err, "failed to create sandbox"), "path", sandboxes)
	}

	workdir := req.Workdir
	if workdir == "" {
		workdir = domain.DefaultSourcePath
	}

	env := &Environment{
		root:      root,
		cacheRoot: filepath.Join(stateDir, domain.CacheDirName),
		tty:       p.tty,
		vars:      make(map[string]string),
	}
	env.workdir = env.hostPath(workdir)
	env.vars["HOME"] = env.hostPath("/root")

	if err := os.MkdirAll(env.vars["HOME"], domain.DirPerm); err != nil {
		_ = os.RemoveAll(root)
		return nil, zerr.Wrap(err, "failed to create sandbox home")
	}
	if err := copyTree(req.SourceDir, env.workdir, sourceExcludes); err != nil {
		_ = os.RemoveAll(root)
		return nil, zerr.With(zerr.Wrap(err, "failed to copy source into sandbox"), "source", req.SourceDir)
	}

	if p.logger != nil {
		p.notice.Do(func() {
			p.logger.Warn(fmt.Sprintf("local provider runs with the host toolchain, base images such as %s are not pulled",
				req.Target.BaseImage))
		})
	}
	return env, nil
}

// PruneCaches removes the cache directories of namespace.
func (p *Provider) PruneCaches(_ context.Context, namespace string) ([]string, error) {
	cacheRoot := filepath.Join(p.stateDir, domain.CacheDirName)
	entries, err := os.ReadDir(cacheRoot)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, zerr.With(zerr.Wrap(err, "failed to list cache directories"), "path", cacheRoot)
	}

	var removed []string
	for _, e := range entries {
		_, key, ok := strings.Cut(e.Name(), "-")
		if !ok {
			continue
		}
		ns, _, _, ok := domain.ParseCacheKey(key)
		if !ok || ns != namespace {
			continue
		}
		if err := os.RemoveAll(filepath.Join(cacheRoot, e.Name())); err != nil {
			return removed, zerr.With(zerr.Wrap(err, "failed to remove cache directory"), "cache_key", key)
		}
		removed = append(removed, key)
	}
	return removed, nil
}

// volumeName is the directory name of a cache key. The hash keeps keys that
// differ only in case apart on case-insensitive filesystems.
func volumeName(key string) string {
	return fmt.Sprintf("%016x-%s", xxhash.Sum64String(key), key)
}

// Environment is a sandbox directory on the host. Paths inside the
// environment are resolved relative to the sandbox root.
type Environment struct {
	root      string
	workdir   string
	cacheRoot string
	tty       bool

	mu   sync.Mutex
	vars map[string]string
}

func (e *Environment) hostPath(p string) string {
	return filepath.Join(e.root, filepath.FromSlash(filepath.Clean("/"+p)))
}

// MountCache links the cache directory of the binding into the sandbox,
// shadowing whatever the source copy put at the mount path.
func (e *Environment) MountCache(_ context.Context, b domain.CacheBinding) error {
	dir := filepath.Join(e.cacheRoot, volumeName(b.CacheKey))
	if err := os.MkdirAll(dir, domain.DirPerm); err != nil {
		return zerr.With(zerr.Wrap(err, "failed to create cache directory"), "path", dir)
	}

	target := e.hostPath(b.MountPath)
	if err := os.RemoveAll(target); err != nil {
		return zerr.With(zerr.Wrap(err, "failed to clear mount path"), "path", b.MountPath)
	}
	if err := os.MkdirAll(filepath.Dir(target), domain.DirPerm); err != nil {
		return zerr.With(zerr.Wrap(err, "failed to create mount parent"), "path", b.MountPath)
	}
	if err := os.Symlink(dir, target); err != nil {
		return zerr.With(zerr.Wrap(err, "failed to link cache directory"), "path", b.MountPath)
	}
	return nil
}

// SetEnv records a variable for later commands.
func (e *Environment) SetEnv(_ context.Context, name, value string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.vars[name] = value
	return nil
}

// Exec runs argv in the sandbox workdir.
func (e *Environment) Exec(ctx context.Context, argv []string, stdout, stderr io.Writer) (int, error) {
	if len(argv) == 0 {
		return -1, domain.ErrEmptyCommand
	}

	e.mu.Lock()
	env := resolveEnvironment(os.Environ(), e.vars)
	e.mu.Unlock()

	name := argv[0]
	if strings.ContainsRune(name, filepath.Separator) && !filepath.IsAbs(name) {
		name = filepath.Join(e.workdir, name)
	}
	executable, err := lookPath(name, env)
	if err != nil {
		return -1, zerr.With(zerr.Wrap(err, "executable not found"), "command", argv[0])
	}

	cmd := exec.CommandContext(ctx, executable, argv[1:]...) //nolint:gosec // pipeline commands are user configured
	cmd.Args[0] = argv[0]
	cmd.Dir = e.workdir
	cmd.Env = env

	if e.tty {
		err = runPTY(cmd, stdout)
	} else {
		cmd.Stdout = stdout
		cmd.Stderr = stderr
		err = cmd.Run()
	}
	return exitStatus(ctx, err)
}

func runPTY(cmd *exec.Cmd, w io.Writer) error {
	ptmx, err := pty.StartWithSize(cmd, &pty.Winsize{Rows: 40, Cols: 120})
	if err != nil {
		return zerr.Wrap(err, "failed to start pty")
	}
	defer func() { _ = ptmx.Close() }()

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = io.Copy(w, ptmx)
	}()

	err = cmd.Wait()
	<-done
	return err
}

func exitStatus(ctx context.Context, err error) (int, error) {
	if err == nil {
		return 0, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return -1, ctxErr
	}
	if exitErr, ok := err.(*exec.ExitError); ok {
		return exitErr.ExitCode(), nil
	}
	return -1, zerr.Wrap(err, "failed to run command")
}

// Export copies the directory at path out of the sandbox.
func (e *Environment) Export(_ context.Context, path, dest string) error {
	src := e.hostPath(path)
	if !filepath.IsAbs(path) {
		src = filepath.Join(e.workdir, filepath.FromSlash(path))
	}
	if info, err := os.Stat(src); err != nil || !info.IsDir() {
		return zerr.With(zerr.New("no such directory in environment"), "path", path)
	}
	return copyTree(src, dest, nil)
}

// Close removes the sandbox. Cache directories are only linked, so they survive.
func (e *Environment) Close(context.Context) error {
	if err := os.RemoveAll(e.root); err != nil {
		return zerr.With(zerr.Wrap(err, "failed to remove sandbox"), "path", e.root)
	}
	return nil
}
