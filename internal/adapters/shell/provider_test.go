package shell_test

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/matrix/internal/adapters/shell"
	"go.trai.ch/matrix/internal/core/domain"
	"go.trai.ch/matrix/internal/core/ports"
	"go.trai.ch/matrix/internal/core/ports/mocks"
	"go.uber.org/mock/gomock"
)

var (
	_ ports.EnvironmentProvider = (*shell.Provider)(nil)
	_ ports.CachePruner         = (*shell.Provider)(nil)
)

func setupSource(t *testing.T) string {
	t.Helper()
	src := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(src, "package.json"), []byte(`{"name":"app"}`), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(src, ".git"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(src, ".git", "HEAD"), []byte("ref"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(src, ".matrix", "runs"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(src, "node_modules", "left-pad"), 0o755))
	return src
}

func provision(t *testing.T, p *shell.Provider, src, version string) ports.Environment {
	t.Helper()
	env, err := p.Provision(context.Background(), ports.ProvisionRequest{
		Target:    domain.BuildTarget{RuntimeVersion: version, BaseImage: "node:" + version},
		SourceDir: src,
		Workdir:   "/src",
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = env.Close(context.Background()) })
	return env
}

func run(t *testing.T, env ports.Environment, argv ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code, err := env.Exec(context.Background(), argv, &stdout, &stderr)
	require.NoError(t, err)
	return code, stdout.String(), stderr.String()
}

func TestProvider_ExecInSandbox(t *testing.T) {
	src := setupSource(t)
	ctrl := gomock.NewController(t)
	logger := mocks.NewMockLogger(ctrl)
	logger.EXPECT().Warn(gomock.Any()).Times(1)

	p := shell.NewProvider(filepath.Join(src, ".matrix"), shell.WithLogger(logger))
	assert.Equal(t, "local", p.Name())

	env := provision(t, p, src, "18")
	_ = provision(t, p, src, "20")
	require.NoError(t, env.SetEnv(context.Background(), "MEDPLUM_BASE_URL", "__MEDPLUM_BASE_URL__"))

	code, stdout, _ := run(t, env, "sh", "-c", `cat package.json; echo; echo "$MEDPLUM_BASE_URL"; ls -a`)
	assert.Equal(t, 0, code)
	assert.Contains(t, stdout, `{"name":"app"}`)
	assert.Contains(t, stdout, "__MEDPLUM_BASE_URL__")
	assert.NotContains(t, stdout, ".git")
	assert.NotContains(t, stdout, ".matrix")

	code, _, stderr := run(t, env, "sh", "-c", "echo broken >&2; exit 3")
	assert.Equal(t, 3, code)
	assert.Equal(t, "broken\n", stderr)
}

func TestProvider_MissingExecutable(t *testing.T) {
	src := setupSource(t)
	env := provision(t, shell.NewProvider(filepath.Join(src, ".matrix")), src, "18")

	code, err := env.Exec(context.Background(), []string{"definitely-not-a-command"}, &bytes.Buffer{}, &bytes.Buffer{})
	assert.Equal(t, -1, code)
	require.Error(t, err)
}

func TestProvider_MissingSource(t *testing.T) {
	p := shell.NewProvider(t.TempDir())
	_, err := p.Provision(context.Background(), ports.ProvisionRequest{
		Target:    domain.BuildTarget{RuntimeVersion: "18"},
		SourceDir: filepath.Join(t.TempDir(), "missing"),
	})
	require.ErrorIs(t, err, domain.ErrSourceNotFound)
}

func TestProvider_CachesPersistAndStayIsolated(t *testing.T) {
	src := setupSource(t)
	p := shell.NewProvider(filepath.Join(src, ".matrix"))
	ctx := context.Background()

	bind := func(env ports.Environment, version string) {
		spec := domain.CacheSpec{Purpose: "node_modules", MountPath: "/src/node_modules"}
		require.NoError(t, env.MountCache(ctx, spec.Bind("cache", version)))
	}

	first := provision(t, p, src, "18")
	bind(first, "18")
	code, stdout, _ := run(t, first, "sh", "-c", "ls node_modules; echo v18 > node_modules/marker")
	require.Equal(t, 0, code)
	assert.NotContains(t, stdout, "left-pad")
	require.NoError(t, first.Close(ctx))

	second := provision(t, p, src, "18")
	bind(second, "18")
	_, stdout, _ = run(t, second, "cat", "node_modules/marker")
	assert.Equal(t, "v18\n", stdout)

	other := provision(t, p, src, "20")
	bind(other, "20")
	code, _, _ = run(t, other, "cat", "node_modules/marker")
	assert.NotEqual(t, 0, code)

	removed, err := p.PruneCaches(ctx, "cache")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"cache-18-node_modules", "cache-20-node_modules"}, removed)

	removed, err = p.PruneCaches(ctx, "other")
	require.NoError(t, err)
	assert.Empty(t, removed)
}

func TestProvider_ExportAndClose(t *testing.T) {
	src := setupSource(t)
	p := shell.NewProvider(filepath.Join(src, ".matrix"))
	env := provision(t, p, src, "20")

	code, _, _ := run(t, env, "sh", "-c", "mkdir -p dist/assets && echo ok > dist/index.js && echo css > dist/assets/app.css")
	require.Equal(t, 0, code)

	dest := filepath.Join(t.TempDir(), "artifacts")
	require.NoError(t, env.Export(context.Background(), "/src/dist", dest))
	assert.FileExists(t, filepath.Join(dest, "index.js"))
	assert.FileExists(t, filepath.Join(dest, "assets", "app.css"))

	require.Error(t, env.Export(context.Background(), "missing", dest))

	require.NoError(t, env.Close(context.Background()))
	entries, err := os.ReadDir(filepath.Join(src, ".matrix", "sandboxes"))
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestProvider_TTY(t *testing.T) {
	src := setupSource(t)
	env := provision(t, shell.NewProvider(filepath.Join(src, ".matrix"), shell.WithTTY(true)), src, "18")

	code, stdout, stderr := run(t, env, "sh", "-c", "echo out; echo err >&2")
	assert.Equal(t, 0, code)
	assert.Contains(t, stdout, "out")
	assert.Contains(t, stdout, "err")
	assert.Empty(t, stderr)
}

func TestProvider_Cancellation(t *testing.T) {
	src := setupSource(t)
	env := provision(t, shell.NewProvider(filepath.Join(src, ".matrix")), src, "18")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	code, err := env.Exec(ctx, []string{"sleep", "5"}, &bytes.Buffer{}, &bytes.Buffer{})
	assert.Equal(t, -1, code)
	require.ErrorIs(t, err, context.Canceled)
}
