package objectstore

import (
	"context"

	"github.com/grindlemire/graft"
	"go.trai.ch/matrix/internal/core/domain"
	"go.trai.ch/matrix/internal/core/ports"
)

// NodeID is the graft node of the publisher factory.
const NodeID graft.ID = "adapter.objectstore"

// Factory creates a publisher once the publish settings are known.
type Factory func(cfg domain.PublishConfig) (ports.ArtifactPublisher, error)

func init() {
	graft.Register(graft.Node[Factory]{
		ID:        NodeID,
		Cacheable: true,
		Run: func(_ context.Context) (Factory, error) {
			return func(cfg domain.PublishConfig) (ports.ArtifactPublisher, error) {
				return NewPublisher(cfg)
			}, nil
		},
	})
}
