package app

import (
	"context"

	"github.com/grindlemire/graft"
	"go.trai.ch/matrix/internal/adapters/config"      //nolint:depguard // Wired in app layer
	"go.trai.ch/matrix/internal/adapters/fs"          //nolint:depguard // Wired in app layer
	"go.trai.ch/matrix/internal/adapters/history"     //nolint:depguard // Wired in app layer
	"go.trai.ch/matrix/internal/adapters/logger"      //nolint:depguard // Wired in app layer
	"go.trai.ch/matrix/internal/adapters/objectstore" //nolint:depguard // Wired in app layer
	"go.trai.ch/matrix/internal/adapters/providers"   //nolint:depguard // Wired in app layer
	"go.trai.ch/matrix/internal/core/ports"
)

const (
	// AppNodeID is the unique identifier for the main App Graft node.
	AppNodeID graft.ID = "app.main"
	// ComponentsNodeID is the unique identifier for the App components Graft node.
	ComponentsNodeID graft.ID = "app.components"
)

func init() {
	// App Node
	graft.Register(graft.Node[*App]{
		ID:        AppNodeID,
		Cacheable: true,
		DependsOn: []graft.ID{
			config.NodeID,
			logger.NodeID,
			providers.NodeID,
			fs.CollectorNodeID,
			history.NodeID,
			objectstore.NodeID,
		},
		Run: runAppNode,
	})

	// Components Node
	graft.Register(graft.Node[*Components]{
		ID:        ComponentsNodeID,
		Cacheable: true,
		DependsOn: []graft.ID{
			AppNodeID,
			logger.NodeID,
		},
		Run: runComponentsNode,
	})
}

func runAppNode(ctx context.Context) (*App, error) {
	loader, err := graft.Dep[ports.ConfigLoader](ctx)
	if err != nil {
		return nil, err
	}

	log, err := graft.Dep[ports.Logger](ctx)
	if err != nil {
		return nil, err
	}

	registry, err := graft.Dep[*providers.Registry](ctx)
	if err != nil {
		return nil, err
	}

	collector, err := graft.Dep[ports.ArtifactCollector](ctx)
	if err != nil {
		return nil, err
	}

	openHistory, err := graft.Dep[history.Opener](ctx)
	if err != nil {
		return nil, err
	}

	newPublisher, err := graft.Dep[objectstore.Factory](ctx)
	if err != nil {
		return nil, err
	}

	return New(loader, log, registry, collector, openHistory, newPublisher), nil
}

func runComponentsNode(ctx context.Context) (*Components, error) {
	app, err := graft.Dep[*App](ctx)
	if err != nil {
		return nil, err
	}

	log, err := graft.Dep[ports.Logger](ctx)
	if err != nil {
		return nil, err
	}

	return NewComponents(app, log), nil
}
