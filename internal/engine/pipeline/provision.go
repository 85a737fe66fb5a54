// Package pipeline runs the build pipeline of a single matrix entry:
// provisioning, cache binding, command execution and artifact export.
package pipeline

import (
	"context"

	"go.trai.ch/matrix/internal/core/domain"
	"go.trai.ch/matrix/internal/core/ports"
)

// Provision resolves the base image for version and asks provider for a fresh environment.
// Every failure is returned as a *domain.ProvisionError.
func Provision(
	ctx context.Context,
	provider ports.EnvironmentProvider,
	template, version, sourceDir, workdir string,
) (ports.Environment, domain.BuildTarget, error) {
	target, err := domain.NewBuildTarget(template, version)
	if err != nil {
		return nil, domain.BuildTarget{RuntimeVersion: version}, err
	}

	env, err := provider.Provision(ctx, ports.ProvisionRequest{
		Target:    target,
		SourceDir: sourceDir,
		Workdir:   workdir,
	})
	if err != nil {
		return nil, target, &domain.ProvisionError{
			Version: version,
			Image:   target.BaseImage,
			Cause:   err,
		}
	}

	return env, target, nil
}
