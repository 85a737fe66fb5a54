package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"go.trai.ch/matrix/internal/adapters/providers"
	"go.trai.ch/matrix/internal/core/domain"
	"go.trai.ch/matrix/internal/core/ports"
	"go.trai.ch/zerr"
)

// CleanOptions configuration for the Clean method.
type CleanOptions struct {
	SourceDir  string
	ConfigPath string
	// Provider overrides the configured provider whose caches are removed.
	Provider string
	// Cache removes the cache volumes of the configured namespace.
	Cache bool
	// Runs removes run reports, sandboxes and the run history.
	Runs bool
}

// Clean removes cache volumes and run state based on the provided options.
func (a *App) Clean(ctx context.Context, options CleanOptions) error {
	s, err := a.open(options.SourceDir, options.ConfigPath)
	if err != nil {
		return err
	}

	var errs error
	if options.Cache {
		errs = errors.Join(errs, a.pruneCaches(ctx, s, options.Provider))
	}

	if options.Runs {
		remove := func(path string, name string) {
			a.logger.Info(fmt.Sprintf("removing %s...", name))
			if err := os.RemoveAll(path); err != nil {
				errs = errors.Join(errs, zerr.Wrap(err, fmt.Sprintf("failed to remove %s", name)))
				return
			}
			a.logger.Info(fmt.Sprintf("removed %s", name))
		}
		remove(filepath.Join(s.stateDir, domain.RunsDirName), "run reports")
		remove(filepath.Join(s.stateDir, domain.SandboxDirName), "sandboxes")
		errs = errors.Join(errs, a.clearHistory(ctx, s))
	}

	return errs
}

func (a *App) pruneCaches(ctx context.Context, s session, name string) error {
	if name == "" {
		name = s.def.Provider
	}
	provider, err := a.providers.New(name, providers.Settings{StateDir: s.stateDir, Logger: a.logger})
	if err != nil {
		return err
	}
	defer func() {
		_ = provider.Close()
	}()

	pruner, ok := provider.(ports.CachePruner)
	if !ok {
		a.logger.Warn(fmt.Sprintf("provider %s manages its own caches, nothing to remove", name))
		return nil
	}

	removed, err := pruner.PruneCaches(ctx, s.def.Namespace)
	for _, key := range removed {
		a.logger.Info("removed cache " + key)
	}
	if err != nil {
		return err
	}
	if len(removed) == 0 {
		a.logger.Info(fmt.Sprintf("no caches found for namespace %s", s.def.Namespace))
	}
	return nil
}

func (a *App) clearHistory(ctx context.Context, s session) error {
	store, err := a.openHistory(ctx, s.def.History, s.stateDir)
	if err != nil {
		return err
	}
	defer func() {
		_ = store.Close()
	}()

	a.logger.Info("clearing run history...")
	if err := store.Clear(ctx); err != nil {
		return err
	}
	a.logger.Info("cleared run history")
	return nil
}
