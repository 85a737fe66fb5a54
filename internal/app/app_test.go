package app_test

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"testing/synctest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/matrix/internal/adapters/fake"
	"go.trai.ch/matrix/internal/adapters/fs"
	"go.trai.ch/matrix/internal/adapters/history"
	"go.trai.ch/matrix/internal/adapters/providers"
	"go.trai.ch/matrix/internal/app"
	"go.trai.ch/matrix/internal/core/domain"
	"go.trai.ch/matrix/internal/core/ports"
	"go.trai.ch/matrix/internal/core/ports/mocks"
	"go.uber.org/mock/gomock"
)

const runID = "0195f7c2-9a41-7d3e-b0c4-2f8e61d5a903"

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type harness struct {
	app       *app.App
	loader    *mocks.MockConfigLoader
	publisher *mocks.MockArtifactPublisher
	provider  *fake.Provider
	registry  *providers.Registry
	stdout    *bytes.Buffer
	stderr    *bytes.Buffer
	source    string
}

func newHarness(t *testing.T, scripts map[string]fake.Script) *harness {
	t.Helper()
	t.Setenv("NO_COLOR", "1")

	ctrl := gomock.NewController(t)
	mockLogger := mocks.NewMockLogger(ctrl)
	mockLogger.EXPECT().Info(gomock.Any()).AnyTimes()
	mockLogger.EXPECT().Warn(gomock.Any()).AnyTimes()
	mockLogger.EXPECT().Error(gomock.Any()).AnyTimes()

	h := &harness{
		loader:    mocks.NewMockConfigLoader(ctrl),
		publisher: mocks.NewMockArtifactPublisher(ctrl),
		provider:  fake.NewProvider(scripts),
		registry:  providers.NewRegistry(),
		stdout:    &bytes.Buffer{},
		stderr:    &bytes.Buffer{},
		source:    t.TempDir(),
	}
	h.registry.Register("fake", func(providers.Settings) ports.EnvironmentProvider { return h.provider })

	clock := t0
	h.app = app.New(
		h.loader,
		mockLogger,
		h.registry,
		fs.NewCollector(fs.NewWalker()),
		history.Open,
		func(cfg domain.PublishConfig) (ports.ArtifactPublisher, error) {
			if cfg.Bucket == "" {
				return nil, domain.ErrPublishFailed
			}
			return h.publisher, nil
		},
	).
		WithOutput(h.stdout, h.stderr).
		WithClock(func() time.Time {
			clock = clock.Add(time.Minute)
			return clock
		}, func() string { return runID })
	return h
}

func (h *harness) runDir() string {
	return filepath.Join(h.source, domain.StateDirName, domain.RunsDirName, runID)
}

func (h *harness) records(t *testing.T) []domain.RunRecord {
	t.Helper()
	store := history.NewFileStore(filepath.Join(h.source, domain.StateDirName, domain.HistoryDirName))
	recs, err := store.List(context.Background(), 0)
	require.NoError(t, err)
	return recs
}

func definition(versions ...string) domain.Definition {
	lint := domain.NewCommandStep("lint", "npm", "run", "lint")
	lint.Optional = true
	p := domain.From("node:${version}").
		WithWorkdir("/src").
		WithCache("npm", "/root/.npm").
		WithEnv("CI", "true").
		WithExec(domain.NewCommandStep("install", "npm", "ci")).
		WithExec(domain.NewCommandStep("build", "npm", "run", "build")).
		WithExec(lint).
		WithArtifact("dist")
	return domain.Definition{
		Versions:  versions,
		Namespace: domain.DefaultCacheNamespace,
		Pipeline:  p,
		Policy:    domain.FailAtEnd,
		Provider:  "fake",
	}
}

func dist(content string) map[string]string {
	return map[string]string{"dist/index.js": content}
}

func TestApp_Run_AllSucceeded(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		h := newHarness(t, map[string]fake.Script{
			"18": {Files: dist("v18"), Commands: map[string]fake.Outcome{"npm run build": {Stdout: "built 18\n"}}},
			"20": {Files: dist("v20"), Commands: map[string]fake.Outcome{"npm run build": {Stdout: "built 20\n"}}},
		})
		h.loader.EXPECT().Load(h.source).Return(definition("18", "20"), nil)

		err := h.app.Run(context.Background(), app.RunOptions{SourceDir: h.source})
		require.NoError(t, err)

		assert.Contains(t, h.stdout.String(), "build matrix: 2 entries, 2 succeeded, 0 failed")
		assert.Contains(t, h.stdout.String(), "built 18\n")
		assert.Contains(t, h.stderr.String(), "build 18")
		assert.True(t, h.provider.Closed())

		assert.FileExists(t, filepath.Join(h.runDir(), domain.SummaryFileName))
		assert.FileExists(t, filepath.Join(h.runDir(), "20", domain.ResultFileName))
		assert.FileExists(t, filepath.Join(h.runDir(), "20", domain.ArtifactsDirName, "dist", "index.js"))

		recs := h.records(t)
		require.Len(t, recs, 1)
		assert.Equal(t, runID, recs[0].ID)
		assert.Equal(t, "fake", recs[0].Provider)
		assert.True(t, recs[0].Succeeded)
		assert.Equal(t, t0.Add(time.Minute), recs[0].StartedAt)
		require.Len(t, recs[0].Entries, 2)
		assert.Equal(t, "18", recs[0].Entries[0].Version)
		assert.Equal(t, "node:20", recs[0].Entries[1].Image)
	})
}

func TestApp_Run_OneFailed(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		h := newHarness(t, map[string]fake.Script{
			"18": {Commands: map[string]fake.Outcome{"npm ci": {ExitCode: 1, Stderr: "npm ERR! code E401\n"}}},
			"20": {Files: dist("v20")},
		})
		h.loader.EXPECT().Load(h.source).Return(definition("18", "20"), nil)

		err := h.app.Run(context.Background(), app.RunOptions{SourceDir: h.source})
		require.ErrorIs(t, err, domain.ErrMatrixFailed)

		assert.Contains(t, h.stdout.String(), "1 succeeded, 1 failed")
		assert.Contains(t, h.stdout.String(), "npm ERR! code E401")
		assert.Equal(t, []string{"npm ci"}, h.provider.Execs("18"))
		assert.Len(t, h.provider.Execs("20"), 3)

		recs := h.records(t)
		require.Len(t, recs, 1)
		assert.False(t, recs[0].Succeeded)
		assert.Equal(t, domain.StateFailed, recs[0].Entries[0].State)
		assert.Equal(t, domain.StateSucceeded, recs[0].Entries[1].State)
	})
}

func TestApp_Run_MalformedVersionFailsOnlyItsEntry(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		h := newHarness(t, map[string]fake.Script{
			"18": {Files: dist("v18")},
			"20": {Files: dist("v20")},
		})
		h.loader.EXPECT().Load(h.source).Return(definition("18"), nil)

		err := h.app.Run(context.Background(), app.RunOptions{
			SourceDir: h.source,
			Versions:  []string{"18", "bad/ver", "20"},
		})
		require.ErrorIs(t, err, domain.ErrMatrixFailed)

		assert.Contains(t, h.stdout.String(), "build matrix: 3 entries, 2 succeeded, 1 failed")
		assert.Contains(t, h.stdout.String(), "=== bad/ver: FAILED")
		assert.Len(t, h.provider.Execs("18"), 3)
		assert.Len(t, h.provider.Execs("20"), 3)
		assert.Empty(t, h.provider.Calls("bad/ver"))
		assert.FileExists(t, filepath.Join(domain.EntryDir(h.runDir(), "bad/ver"), domain.ResultFileName))

		recs := h.records(t)
		require.Len(t, recs, 1)
		require.Len(t, recs[0].Entries, 3)
		assert.Equal(t, domain.StateSucceeded, recs[0].Entries[0].State)
		assert.Equal(t, "bad/ver", recs[0].Entries[1].Version)
		assert.Equal(t, domain.StateFailed, recs[0].Entries[1].State)
		assert.Contains(t, recs[0].Entries[1].Error, domain.ErrInvalidVersion.Error())
		assert.Equal(t, domain.StateSucceeded, recs[0].Entries[2].State)
	})
}

func TestApp_Run_Overrides(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		h := newHarness(t, map[string]fake.Script{
			"22": {Files: dist("v22")},
		})
		def := definition("18", "20")
		def.Provider = domain.ProviderDagger
		h.loader.EXPECT().Load(h.source).Return(def, nil)

		err := h.app.Run(context.Background(), app.RunOptions{
			SourceDir:   h.source,
			Versions:    []string{"22"},
			Provider:    "fake",
			Parallelism: 1,
			NoLint:      true,
			FailFast:    true,
		})
		require.NoError(t, err)

		assert.Empty(t, h.provider.Calls("18"))
		assert.Equal(t, []string{"npm ci", "npm run build"}, h.provider.Execs("22"))
		assert.Equal(t, "/root/.npm", h.provider.Volumes()["cache-22-npm"])

		recs := h.records(t)
		require.Len(t, recs, 1)
		assert.Equal(t, domain.FailFast, recs[0].Policy)
	})
}

func TestApp_Run_OutputDir(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		h := newHarness(t, map[string]fake.Script{"18": {Files: dist("v18")}})
		h.loader.EXPECT().Load(h.source).Return(definition("18"), nil)
		out := filepath.Join(t.TempDir(), "report")

		require.NoError(t, h.app.Run(context.Background(), app.RunOptions{SourceDir: h.source, OutputDir: out}))

		assert.FileExists(t, filepath.Join(out, domain.SummaryFileName))
		assert.FileExists(t, filepath.Join(out, "18", domain.StdoutLogName))
		assert.NoFileExists(t, filepath.Join(h.runDir(), domain.SummaryFileName))
	})
}

func TestApp_Run_ConfigPath(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		h := newHarness(t, nil)
		configPath := filepath.Join(t.TempDir(), "ci.yaml")
		def := definition()
		h.loader.EXPECT().LoadFile(configPath).Return(def, nil)

		require.NoError(t, h.app.Run(context.Background(), app.RunOptions{SourceDir: h.source, ConfigPath: configPath}))
		assert.Contains(t, h.stdout.String(), "build matrix: 0 entries")
	})
}

func TestApp_Run_Publish(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		h := newHarness(t, map[string]fake.Script{"18": {Files: dist("v18")}})
		def := definition("18")
		def.Publish = domain.PublishConfig{Enabled: true, Endpoint: "localhost:9000", Bucket: "builds"}
		h.loader.EXPECT().Load(h.source).Return(def, nil)

		artifact := filepath.Join(h.runDir(), "18", domain.ArtifactsDirName, "dist", "index.js")
		h.publisher.EXPECT().
			Publish(gomock.Any(), runID, h.runDir(), []string{artifact}).
			Return([]string{runID + "/18/artifacts/dist/index.js"}, nil)

		require.NoError(t, h.app.Run(context.Background(), app.RunOptions{SourceDir: h.source}))

		recs := h.records(t)
		require.Len(t, recs, 1)
		assert.Equal(t, []string{runID + "/18/artifacts/dist/index.js"}, recs[0].Artifacts)
	})
}

func TestApp_Run_PublishFailureKeepsResult(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		h := newHarness(t, map[string]fake.Script{"18": {Files: dist("v18")}})
		def := definition("18")
		def.Publish = domain.PublishConfig{Enabled: true, Endpoint: "localhost:9000", Bucket: "builds"}
		h.loader.EXPECT().Load(h.source).Return(def, nil)
		h.publisher.EXPECT().Publish(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
			Return(nil, errors.New("connection refused"))

		require.NoError(t, h.app.Run(context.Background(), app.RunOptions{SourceDir: h.source}))

		recs := h.records(t)
		require.Len(t, recs, 1)
		assert.Empty(t, recs[0].Artifacts)
	})
}

func TestApp_Run_PublishFlagWithoutSettings(t *testing.T) {
	h := newHarness(t, nil)
	h.loader.EXPECT().Load(h.source).Return(definition("18"), nil)

	err := h.app.Run(context.Background(), app.RunOptions{SourceDir: h.source, Publish: true})
	require.ErrorIs(t, err, domain.ErrPublishFailed)
	assert.Empty(t, h.provider.Calls(""))
}

func TestApp_Run_Errors(t *testing.T) {
	tests := []struct {
		name   string
		opts   func(h *harness) app.RunOptions
		setup  func(h *harness)
		wantIs error
	}{
		{
			name: "missing source",
			opts: func(h *harness) app.RunOptions {
				return app.RunOptions{SourceDir: filepath.Join(h.source, "missing")}
			},
			wantIs: domain.ErrSourceNotFound,
		},
		{
			name: "config error",
			opts: func(h *harness) app.RunOptions { return app.RunOptions{SourceDir: h.source} },
			setup: func(h *harness) {
				h.loader.EXPECT().Load(h.source).Return(domain.Definition{}, domain.ErrConfigParseFailed)
			},
			wantIs: domain.ErrConfigParseFailed,
		},
		{
			name: "unknown provider",
			opts: func(h *harness) app.RunOptions { return app.RunOptions{SourceDir: h.source, Provider: "podman"} },
			setup: func(h *harness) {
				h.loader.EXPECT().Load(h.source).Return(definition("18"), nil)
			},
			wantIs: domain.ErrUnknownProvider,
		},
		{
			name: "empty version argument",
			opts: func(h *harness) app.RunOptions {
				return app.RunOptions{SourceDir: h.source, Versions: []string{"18", ""}}
			},
			setup: func(h *harness) {
				h.loader.EXPECT().Load(h.source).Return(definition("18"), nil)
			},
			wantIs: domain.ErrInvalidVersion,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, nil)
			if tt.setup != nil {
				tt.setup(h)
			}

			err := h.app.Run(context.Background(), tt.opts(h))
			require.ErrorIs(t, err, tt.wantIs)
			assert.Empty(t, h.stdout.String())
		})
	}
}

func TestApp_Run_Cancelled(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		h := newHarness(t, map[string]fake.Script{
			"18": {Commands: map[string]fake.Outcome{"npm ci": {Delay: time.Hour}}},
		})
		h.loader.EXPECT().Load(h.source).Return(definition("18"), nil)

		ctx, cancel := context.WithCancel(context.Background())
		go func() {
			time.Sleep(time.Second)
			cancel()
		}()

		err := h.app.Run(ctx, app.RunOptions{SourceDir: h.source})
		require.ErrorIs(t, err, domain.ErrMatrixFailed)

		// The run is still recorded after cancellation.
		recs := h.records(t)
		require.Len(t, recs, 1)
		assert.Equal(t, domain.StateFailed, recs[0].Entries[0].State)
	})
}

func TestApp_Run_DefaultSourceIsWorkingDirectory(t *testing.T) {
	h := newHarness(t, nil)
	t.Chdir(h.source)
	cwd, err := os.Getwd()
	require.NoError(t, err)
	h.loader.EXPECT().Load(cwd).Return(definition(), nil)

	require.NoError(t, h.app.Run(context.Background(), app.RunOptions{}))
}
