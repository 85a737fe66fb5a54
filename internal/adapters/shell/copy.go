package shell

import (
	"os"

	"github.com/moby/go-archive"
	"go.trai.ch/matrix/internal/core/domain"
)

// sourceExcludes are never copied into a sandbox.
var sourceExcludes = []string{".git", domain.StateDirName}

// copyTree streams src into dst through an in-memory tar pipe.
func copyTree(src, dst string, exclude []string) error {
	if err := os.MkdirAll(dst, domain.DirPerm); err != nil {
		return err
	}

	rc, err := archive.TarWithOptions(src, &archive.TarOptions{ExcludePatterns: exclude})
	if err != nil {
		return err
	}
	defer func() { _ = rc.Close() }()

	return archive.Untar(rc, dst, &archive.TarOptions{NoLchown: true})
}
