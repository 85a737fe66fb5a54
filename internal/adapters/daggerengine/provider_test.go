package daggerengine_test

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/matrix/internal/adapters/daggerengine"
	"go.trai.ch/matrix/internal/core/domain"
	"go.trai.ch/matrix/internal/core/ports"
)

var _ ports.EnvironmentProvider = (*daggerengine.Provider)(nil)

func TestProvider_Name(t *testing.T) {
	p := daggerengine.NewProvider(nil)
	assert.Equal(t, "dagger", p.Name())
	require.NoError(t, p.Close())
}

// TestProvider_Engine needs a reachable Dagger engine.
func TestProvider_Engine(t *testing.T) {
	if os.Getenv("MATRIX_ENGINE_TESTS") == "" {
		t.Skip("set MATRIX_ENGINE_TESTS=1 to run against a Dagger engine")
	}

	ctx := context.Background()
	src := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(src, "hello.txt"), []byte("hi"), 0o644))

	p := daggerengine.NewProvider(nil)
	t.Cleanup(func() { _ = p.Close() })

	env, err := p.Provision(ctx, ports.ProvisionRequest{
		Target:    domain.BuildTarget{RuntimeVersion: "3.20", BaseImage: "alpine:3.20"},
		SourceDir: src,
		Workdir:   "/src",
	})
	require.NoError(t, err)

	spec := domain.CacheSpec{Purpose: "scratch", MountPath: "/cache"}
	require.NoError(t, env.MountCache(ctx, spec.Bind("matrixtest", "3.20")))
	require.NoError(t, env.SetEnv(ctx, "GREETING", "__GREETING__"))

	var stdout, stderr bytes.Buffer
	code, err := env.Exec(ctx, []string{"sh", "-c", "cat hello.txt; echo $GREETING; mkdir -p out && echo x > out/a"}, &stdout, &stderr)
	require.NoError(t, err)
	assert.Equal(t, 0, code)
	assert.Equal(t, "hi__GREETING__\n", stdout.String())

	code, err = env.Exec(ctx, []string{"sh", "-c", "echo nope >&2; exit 4"}, &stdout, &stderr)
	require.NoError(t, err)
	assert.Equal(t, 4, code)
	assert.Equal(t, "nope\n", stderr.String())

	dest := t.TempDir()
	require.NoError(t, env.Export(ctx, "/src/out", dest))
	assert.FileExists(t, filepath.Join(dest, "a"))
}
