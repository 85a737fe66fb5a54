package fs_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/matrix/internal/adapters/fs"
)

func TestCollector_Collect(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, "index.js", "assets/app.js", "assets/app.css", "assets/img/logo.svg")

	tests := []struct {
		name    string
		include []string
		want    []string
	}{
		{
			name: "empty include selects everything",
			want: []string{"assets/app.css", "assets/app.js", "assets/img/logo.svg", "index.js"},
		},
		{
			name:    "single star stays in one directory",
			include: []string{"*.js"},
			want:    []string{"index.js"},
		},
		{
			name:    "double star crosses directories",
			include: []string{"**/*.js"},
			want:    []string{"assets/app.js", "index.js"},
		},
		{
			name:    "several patterns are merged",
			include: []string{"assets/*.css", "**/*.svg"},
			want:    []string{"assets/app.css", "assets/img/logo.svg"},
		},
		{
			name:    "no match",
			include: []string{"**/*.map"},
		},
	}

	c := fs.NewCollector(fs.NewWalker())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := c.Collect(root, tt.include)
			require.NoError(t, err)

			var want []string
			for _, w := range tt.want {
				want = append(want, filepath.Join(root, filepath.FromSlash(w)))
			}
			assert.Equal(t, want, got)
		})
	}
}

func TestCollector_Collect_RelativeRoot(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, "dist/a.js")
	t.Chdir(root)

	got, err := fs.NewCollector(fs.NewWalker()).Collect("dist", nil)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.True(t, filepath.IsAbs(got[0]))
	assert.Equal(t, "a.js", filepath.Base(got[0]))
}

func TestCollector_Collect_InvalidPattern(t *testing.T) {
	_, err := fs.NewCollector(fs.NewWalker()).Collect(t.TempDir(), []string{"[a-"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid artifact pattern")
}

func TestCollector_Collect_MissingRoot(t *testing.T) {
	_, err := fs.NewCollector(fs.NewWalker()).Collect(filepath.Join(t.TempDir(), "missing"), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "artifact root is not a directory")
}
