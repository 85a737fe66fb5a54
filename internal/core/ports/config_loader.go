package ports

import "go.trai.ch/matrix/internal/core/domain"

// ConfigLoader defines the interface for loading the matrix definition.
//
//go:generate mockgen -source=config_loader.go -destination=mocks/mock_config_loader.go -package=mocks
type ConfigLoader interface {
	// Load finds the configuration file by walking up from cwd and returns the definition.
	// When no file exists it returns the built-in default definition.
	Load(cwd string) (domain.Definition, error)

	// LoadFile reads the definition from an explicit configuration file.
	LoadFile(path string) (domain.Definition, error)
}
