package main

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.trai.ch/matrix/internal/adapters/fake"
	"go.trai.ch/matrix/internal/adapters/fs"
	"go.trai.ch/matrix/internal/adapters/history"
	"go.trai.ch/matrix/internal/adapters/objectstore"
	"go.trai.ch/matrix/internal/adapters/providers"
	"go.trai.ch/matrix/internal/app"
	"go.trai.ch/matrix/internal/core/domain"
	"go.trai.ch/matrix/internal/core/ports"
	"go.trai.ch/matrix/internal/core/ports/mocks"
	"go.uber.org/mock/gomock"
)

func newComponents(
	t *testing.T, registry *providers.Registry,
) (*app.Components, *mocks.MockConfigLoader, *mocks.MockLogger) {
	t.Helper()
	t.Setenv("NO_COLOR", "1")
	ctrl := gomock.NewController(t)
	mockLoader := mocks.NewMockConfigLoader(ctrl)
	mockLogger := mocks.NewMockLogger(ctrl)

	application := app.New(
		mockLoader,
		mockLogger,
		registry,
		fs.NewCollector(fs.NewWalker()),
		history.Open,
		objectstore.Factory(nil),
	).WithOutput(new(bytes.Buffer), new(bytes.Buffer))

	return app.NewComponents(application, mockLogger), mockLoader, mockLogger
}

func providerFor(c *app.Components) ComponentProvider {
	return func(_ context.Context) (*app.Components, func(), error) {
		return c, func() {}, nil
	}
}

// TestRun_Success verifies that the run function returns 0 when the command succeeds.
func TestRun_Success(t *testing.T) {
	components, _, _ := newComponents(t, providers.NewRegistry())

	stderr := new(bytes.Buffer)
	exitCode := run(context.Background(), []string{"version"}, stderr, providerFor(components))
	assert.Equal(t, 0, exitCode)
}

// TestRun_InitializationError verifies that run returns 1 when component initialization fails.
func TestRun_InitializationError(t *testing.T) {
	provider := func(_ context.Context) (*app.Components, func(), error) {
		return nil, nil, errors.New("init failed")
	}

	stderr := new(bytes.Buffer)
	exitCode := run(context.Background(), []string{"version"}, stderr, provider)

	assert.Equal(t, 1, exitCode)
	assert.Contains(t, stderr.String(), "Error: init failed")
}

// TestRun_ExecutionError verifies that command errors are logged and exit with 1.
func TestRun_ExecutionError(t *testing.T) {
	components, mockLoader, mockLogger := newComponents(t, providers.NewRegistry())
	source := t.TempDir()

	mockLoader.EXPECT().Load(source).Return(domain.Definition{}, domain.ErrConfigParseFailed)
	mockLogger.EXPECT().Error(gomock.Any()).Do(func(err error) {
		assert.ErrorIs(t, err, domain.ErrConfigParseFailed)
	})

	exitCode := run(context.Background(), []string{"run", "-s", source}, new(bytes.Buffer), providerFor(components))
	assert.Equal(t, 1, exitCode)
}

// TestRun_MatrixFailed verifies that a failed matrix exits with 1 without logging an error.
func TestRun_MatrixFailed(t *testing.T) {
	registry := providers.NewRegistry()
	fp := fake.NewProvider(map[string]fake.Script{
		"18": {Commands: map[string]fake.Outcome{"make": {ExitCode: 2}}},
	})
	registry.Register("fake", func(providers.Settings) ports.EnvironmentProvider { return fp })

	components, mockLoader, mockLogger := newComponents(t, registry)
	source := t.TempDir()

	mockLoader.EXPECT().Load(source).Return(domain.Definition{
		Versions:  []string{"18"},
		Namespace: domain.DefaultCacheNamespace,
		Pipeline:  domain.From("alpine:${version}").WithExec(domain.NewCommandStep("make", "make")),
		Policy:    domain.FailAtEnd,
		Provider:  "fake",
	}, nil)
	mockLogger.EXPECT().Info(gomock.Any()).AnyTimes()
	mockLogger.EXPECT().Warn(gomock.Any()).AnyTimes()
	mockLogger.EXPECT().Error(gomock.Any()).Times(0)

	exitCode := run(context.Background(), []string{"run", "-s", source}, new(bytes.Buffer), providerFor(components))
	assert.Equal(t, 1, exitCode)
	assert.Equal(t, []string{"make"}, fp.Execs("18"))
}

// TestRun_Options verifies that options are applied to the app before execution.
func TestRun_Options(t *testing.T) {
	components, _, _ := newComponents(t, providers.NewRegistry())

	applied := false
	exitCode := run(context.Background(), []string{"version"}, new(bytes.Buffer), providerFor(components),
		func(a *app.App) {
			applied = a == components.App
		})
	assert.Equal(t, 0, exitCode)
	assert.True(t, applied)
}
