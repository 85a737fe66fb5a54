package shell

import (
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveEnvironment(t *testing.T) {
	sys := []string{"PATH=/usr/bin", "HOME=/home/ci", "AWS_SECRET_ACCESS_KEY=x", "TERM=xterm", "broken"}
	got := resolveEnvironment(sys, map[string]string{
		"HOME":             "/sandbox/root",
		"MEDPLUM_BASE_URL": "__MEDPLUM_BASE_URL__",
	})

	assert.Equal(t, []string{
		"HOME=/sandbox/root",
		"MEDPLUM_BASE_URL=__MEDPLUM_BASE_URL__",
		"PATH=/usr/bin",
		"TERM=xterm",
	}, got)
}

func TestLookPath(t *testing.T) {
	dir := t.TempDir()
	bin := filepath.Join(dir, "node")
	require.NoError(t, os.WriteFile(bin, []byte("#!/bin/sh\n"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "data"), []byte("x"), 0o644))

	got, err := lookPath("node", []string{"PATH=/nonexistent" + string(os.PathListSeparator) + dir})
	require.NoError(t, err)
	assert.Equal(t, bin, got)

	_, err = lookPath("data", []string{"PATH=" + dir})
	require.ErrorIs(t, err, exec.ErrNotFound)

	_, err = lookPath("node", nil)
	require.ErrorIs(t, err, exec.ErrNotFound)

	got, err = lookPath(bin, nil)
	require.NoError(t, err)
	assert.Equal(t, bin, got)
}

func TestVolumeName(t *testing.T) {
	a := volumeName("cache-18-A-npm")
	b := volumeName("cache-18-a-npm")
	assert.NotEqual(t, a[:16], b[:16])
	assert.Equal(t, "cache-18-a-npm", b[17:])
}
