// Package wiring registers all Graft nodes for the application.
package wiring

import (
	// Register adapter nodes.
	_ "go.trai.ch/matrix/internal/adapters/config"
	_ "go.trai.ch/matrix/internal/adapters/fs"
	_ "go.trai.ch/matrix/internal/adapters/history"
	_ "go.trai.ch/matrix/internal/adapters/logger"
	_ "go.trai.ch/matrix/internal/adapters/objectstore"
	_ "go.trai.ch/matrix/internal/adapters/providers"
	// Register app nodes.
	_ "go.trai.ch/matrix/internal/app"
)
