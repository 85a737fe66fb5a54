// Package docker provides build environments as containers on a local Docker daemon.
package docker

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/volume"
	"github.com/docker/docker/pkg/stdcopy"
	"github.com/moby/go-archive"
	"github.com/testcontainers/testcontainers-go"
	"go.trai.ch/matrix/internal/core/domain"
	"go.trai.ch/matrix/internal/core/ports"
	"go.trai.ch/zerr"
)

const (
	// VersionLabel is set on every entry container.
	VersionLabel = "ch.trai.matrix.version"

	// CacheLabel is set on cache volumes created by the provider.
	CacheLabel = "ch.trai.matrix.cache"
)

// sourceExcludes are not uploaded into containers.
var sourceExcludes = []string{".git", domain.StateDirName}

// idle keeps an entry container alive between execs.
var idle = []string{"tail", "-f", "/dev/null"}

// Provider implements ports.EnvironmentProvider and ports.CachePruner on one
// daemon connection, opened on first use.
type Provider struct {
	mu     sync.Mutex
	client *testcontainers.DockerClient
}

// NewProvider creates a Provider.
func NewProvider() *Provider {
	return &Provider{}
}

// Name returns "docker".
func (p *Provider) Name() string { return domain.ProviderDocker }

func (p *Provider) dockerClient(ctx context.Context) (*testcontainers.DockerClient, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.client != nil {
		return p.client, nil
	}
	cli, err := testcontainers.NewDockerClientWithOpts(ctx)
	if err != nil {
		return nil, zerr.Wrap(err, "failed to connect to docker daemon")
	}
	p.client = cli
	return cli, nil
}

// Provision makes sure the base image is present. The container itself is
// started by the first Exec, once every cache mount is known.
func (p *Provider) Provision(ctx context.Context, req ports.ProvisionRequest) (ports.Environment, error) {
	if info, err := os.Stat(req.SourceDir); err != nil || !info.IsDir() {
		return nil, zerr.With(zerr.Wrap(domain.ErrSourceNotFound, ""), "path", req.SourceDir)
	}

	cli, err := p.dockerClient(ctx)
	if err != nil {
		return nil, err
	}
	if err := pullImage(ctx, cli, req.Target.BaseImage); err != nil {
		return nil, err
	}

	workdir := req.Workdir
	if workdir == "" {
		workdir = domain.DefaultSourcePath
	}
	return &Environment{
		client:  cli,
		target:  req.Target,
		source:  req.SourceDir,
		workdir: workdir,
		vars:    make(map[string]string),
	}, nil
}

func pullImage(ctx context.Context, cli *testcontainers.DockerClient, ref string) error {
	if _, err := cli.ImageInspect(ctx, ref); err == nil {
		return nil
	}
	rc, err := cli.ImagePull(ctx, ref, image.PullOptions{})
	if err != nil {
		return zerr.With(zerr.Wrap(err, "failed to pull base image"), "image", ref)
	}
	defer func() { _ = rc.Close() }()

	// The pull only completes once its progress stream is drained.
	if _, err := io.Copy(io.Discard, rc); err != nil {
		return zerr.With(zerr.Wrap(err, "failed to pull base image"), "image", ref)
	}
	return nil
}

// PruneCaches removes the cache volumes of namespace.
func (p *Provider) PruneCaches(ctx context.Context, namespace string) ([]string, error) {
	cli, err := p.dockerClient(ctx)
	if err != nil {
		return nil, err
	}

	list, err := cli.VolumeList(ctx, volume.ListOptions{
		Filters: filters.NewArgs(filters.Arg("label", CacheLabel)),
	})
	if err != nil {
		return nil, zerr.Wrap(err, "failed to list volumes")
	}

	var removed []string
	for _, v := range list.Volumes {
		ns, _, _, ok := domain.ParseCacheKey(v.Name)
		if !ok || ns != namespace {
			continue
		}
		if err := cli.VolumeRemove(ctx, v.Name, false); err != nil {
			return removed, zerr.With(zerr.Wrap(err, "failed to remove volume"), "volume", v.Name)
		}
		removed = append(removed, v.Name)
	}
	slices.Sort(removed)
	return removed, nil
}

// Close closes the daemon connection.
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

// Environment is one container. Mounts recorded before the first Exec are
// applied when the container is created.
type Environment struct {
	client  *testcontainers.DockerClient
	target  domain.BuildTarget
	source  string
	workdir string

	mu     sync.Mutex
	mounts []domain.CacheBinding
	vars   map[string]string
	ctr    *testcontainers.DockerContainer
}

// MountCache records a named volume for the binding's key.
func (e *Environment) MountCache(_ context.Context, b domain.CacheBinding) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.ctr != nil {
		return zerr.With(zerr.New("cannot mount a cache into a running container"), "key", b.CacheKey)
	}
	e.mounts = append(e.mounts, b)
	return nil
}

// SetEnv sets a variable verbatim for later execs.
func (e *Environment) SetEnv(_ context.Context, name, value string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.vars[name] = value
	return nil
}

func (e *Environment) start(ctx context.Context) (*testcontainers.DockerContainer, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.ctr != nil {
		return e.ctr, nil
	}

	mounts := make([]testcontainers.ContainerMount, 0, len(e.mounts))
	for _, b := range e.mounts {
		// Created here without session labels so the reaper leaves them alone.
		_, err := e.client.VolumeCreate(ctx, volume.CreateOptions{
			Name:   b.CacheKey,
			Labels: map[string]string{CacheLabel: b.Purpose},
		})
		if err != nil {
			return nil, zerr.With(zerr.Wrap(err, "failed to create cache volume"), "key", b.CacheKey)
		}
		mounts = append(mounts, testcontainers.VolumeMount(b.CacheKey, testcontainers.ContainerMountTarget(b.MountPath)))
	}

	ctr, err := testcontainers.Run(ctx, e.target.BaseImage,
		testcontainers.WithEntrypoint(idle...),
		testcontainers.WithCmd(),
		testcontainers.WithMounts(mounts...),
		testcontainers.WithLabels(map[string]string{VersionLabel: e.target.RuntimeVersion}),
	)
	if err != nil {
		return nil, zerr.With(zerr.Wrap(err, "failed to start container"), "image", e.target.BaseImage)
	}

	if err := e.upload(ctx, ctr.GetContainerID()); err != nil {
		_ = ctr.Terminate(context.WithoutCancel(ctx))
		return nil, err
	}
	e.ctr = ctr
	return ctr, nil
}

func (e *Environment) upload(ctx context.Context, id string) error {
	code, err := e.exec(ctx, id, "/", []string{"mkdir", "-p", e.workdir}, nil, io.Discard, io.Discard)
	if err != nil {
		return zerr.Wrap(err, "failed to create workdir")
	}
	if code != 0 {
		return zerr.With(zerr.New("failed to create workdir"), "exit_code", code)
	}

	// start holds e.mu.
	excludes := uploadExcludes(e.workdir, e.mounts)

	rc, err := archive.TarWithOptions(e.source, &archive.TarOptions{ExcludePatterns: excludes})
	if err != nil {
		return zerr.With(zerr.Wrap(err, "failed to archive source"), "source", e.source)
	}
	defer func() { _ = rc.Close() }()

	if err := e.client.CopyToContainer(ctx, id, e.workdir, rc, container.CopyToContainerOptions{}); err != nil {
		return zerr.With(zerr.Wrap(err, "failed to upload source"), "workdir", e.workdir)
	}
	return nil
}

// uploadExcludes returns the source paths left out of the upload. Cache mounts
// inside the workdir are excluded so host files never land in a cache volume.
func uploadExcludes(workdir string, mounts []domain.CacheBinding) []string {
	prefix := strings.TrimSuffix(path.Clean(workdir), "/") + "/"
	excludes := slices.Clone(sourceExcludes)
	for _, b := range mounts {
		rel, ok := strings.CutPrefix(path.Clean(b.MountPath), prefix)
		if !ok || rel == "" {
			continue
		}
		excludes = append(excludes, rel)
	}
	return excludes
}

func (e *Environment) env() []string {
	e.mu.Lock()
	defer e.mu.Unlock()

	env := make([]string, 0, len(e.vars))
	for name, value := range e.vars {
		env = append(env, name+"="+value)
	}
	slices.Sort(env)
	return env
}

// Exec runs argv in the workdir, starting the container on first use.
func (e *Environment) Exec(ctx context.Context, argv []string, stdout, stderr io.Writer) (int, error) {
	ctr, err := e.start(ctx)
	if err != nil {
		return -1, err
	}
	return e.exec(ctx, ctr.GetContainerID(), e.workdir, argv, e.env(), stdout, stderr)
}

func (e *Environment) exec(
	ctx context.Context, id, workdir string, argv, env []string, stdout, stderr io.Writer,
) (int, error) {
	created, err := e.client.ContainerExecCreate(ctx, id, container.ExecOptions{
		Cmd:          argv,
		Env:          env,
		WorkingDir:   workdir,
		AttachStdout: true,
		AttachStderr: true,
	})
	if err != nil {
		return -1, zerr.Wrap(err, "failed to create exec")
	}

	resp, err := e.client.ContainerExecAttach(ctx, created.ID, container.ExecAttachOptions{})
	if err != nil {
		return -1, zerr.Wrap(err, "failed to attach to exec")
	}
	defer resp.Close()

	stop := context.AfterFunc(ctx, resp.Close)
	defer stop()

	if _, err := stdcopy.StdCopy(stdout, stderr, resp.Reader); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return -1, ctxErr
		}
		return -1, zerr.Wrap(err, "failed to read exec output")
	}

	info, err := e.client.ContainerExecInspect(ctx, created.ID)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return -1, ctxErr
		}
		return -1, zerr.Wrap(err, "failed to inspect exec")
	}
	if info.Running {
		return -1, fmt.Errorf("exec %s still running after its output closed", created.ID)
	}
	return info.ExitCode, nil
}

// Export copies the directory at path out of the container to dest.
func (e *Environment) Export(ctx context.Context, p, dest string) error {
	ctr, err := e.start(ctx)
	if err != nil {
		return err
	}
	if !path.IsAbs(p) {
		p = path.Join(e.workdir, p)
	}

	rc, _, err := e.client.CopyFromContainer(ctx, ctr.GetContainerID(), p)
	if err != nil {
		return zerr.With(zerr.Wrap(err, "failed to copy from container"), "path", p)
	}
	defer func() { _ = rc.Close() }()

	parent := filepath.Dir(dest)
	if err := os.MkdirAll(parent, domain.DirPerm); err != nil {
		return zerr.With(zerr.Wrap(err, "failed to create export directory"), "path", parent)
	}
	tmp, err := os.MkdirTemp(parent, ".export-")
	if err != nil {
		return zerr.With(zerr.Wrap(err, "failed to create export directory"), "path", parent)
	}
	defer func() { _ = os.RemoveAll(tmp) }()

	// The archive holds a single top-level entry named after the source path.
	if err := archive.Untar(rc, tmp, &archive.TarOptions{NoLchown: true}); err != nil {
		return zerr.With(zerr.Wrap(err, "failed to unpack export"), "path", p)
	}
	if err := os.Rename(filepath.Join(tmp, path.Base(p)), dest); err != nil {
		return zerr.With(zerr.Wrap(err, "failed to place export"), "dest", dest)
	}
	return nil
}

// Close removes the container. Cache volumes are named and survive it.
func (e *Environment) Close(ctx context.Context) error {
	e.mu.Lock()
	ctr := e.ctr
	e.ctr = nil
	e.mu.Unlock()

	if ctr == nil {
		return nil
	}
	if err := ctr.Terminate(context.WithoutCancel(ctx)); err != nil {
		return zerr.Wrap(err, "failed to remove container")
	}
	return nil
}
