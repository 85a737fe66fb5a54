// Package ports defines the core interfaces for the application.
package ports

import (
	"context"
	"io"

	"go.trai.ch/matrix/internal/core/domain"
)

// ProvisionRequest describes the environment wanted for one matrix entry.
type ProvisionRequest struct {
	// Target is the resolved version and base image.
	Target domain.BuildTarget
	// SourceDir is the host directory copied into the environment.
	SourceDir string
	// Workdir is where the source is placed inside the environment and where commands run.
	Workdir string
}

// EnvironmentProvider creates isolated build environments.
//
// Implementations wrap a container engine or the host. Environments created by
// one provider never share filesystem state except through cache volumes.
//
//go:generate mockgen -source=environment.go -destination=mocks/mock_environment.go -package=mocks
type EnvironmentProvider interface {
	// Name returns the provider name used on the command line.
	Name() string

	// Provision creates a fresh environment from the request's base image with the
	// source tree placed at the request's workdir.
	Provision(ctx context.Context, req ProvisionRequest) (Environment, error)

	// Close releases engine connections held by the provider.
	Close() error
}

// Environment is one isolated build environment.
//
// Configuration calls (MountCache, SetEnv) apply to every later Exec.
type Environment interface {
	// MountCache attaches the persistent volume named by the binding's key at its mount path.
	// The volume is created on first use.
	MountCache(ctx context.Context, binding domain.CacheBinding) error

	// SetEnv sets a variable verbatim for subsequent commands.
	SetEnv(ctx context.Context, name, value string) error

	// Exec runs argv in the workdir and streams its output.
	// A non-zero exit is reported through the exit code, not the error;
	// the error is reserved for failures to run the command at all.
	Exec(ctx context.Context, argv []string, stdout, stderr io.Writer) (int, error)

	// Export copies the directory at path (relative to the workdir or absolute) to dest on the host.
	Export(ctx context.Context, path, dest string) error

	// Close destroys the environment. Cache volumes are kept.
	Close(ctx context.Context) error
}

// CachePruner is implemented by providers that can delete their cache volumes.
type CachePruner interface {
	// PruneCaches removes every cache volume in namespace and returns the removed names.
	PruneCaches(ctx context.Context, namespace string) ([]string, error)
}
