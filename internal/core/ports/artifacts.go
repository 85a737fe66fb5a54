package ports

import "context"

// ArtifactCollector lists exported artifact files on the host.
//
//go:generate mockgen -source=artifacts.go -destination=mocks/mock_artifacts.go -package=mocks
type ArtifactCollector interface {
	// Collect returns the regular files under root matching any of the include
	// globs (all files when include is empty), as sorted absolute paths.
	Collect(root string, include []string) ([]string, error)
}

// ArtifactPublisher uploads artifact files to remote storage.
type ArtifactPublisher interface {
	// Publish uploads files (absolute host paths under root) beneath prefix and
	// returns the remote object names.
	Publish(ctx context.Context, prefix, root string, files []string) ([]string, error)
}
