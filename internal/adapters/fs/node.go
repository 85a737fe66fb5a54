package fs

import (
	"context"

	"github.com/grindlemire/graft"
	"go.trai.ch/matrix/internal/core/ports"
)

const (
	WalkerNodeID    graft.ID = "adapter.fs.walker"
	CollectorNodeID graft.ID = "adapter.fs.collector"
)

func init() {
	graft.Register(graft.Node[*Walker]{
		ID:        WalkerNodeID,
		Cacheable: true,
		Run: func(ctx context.Context) (*Walker, error) {
			return NewWalker(), nil
		},
	})

	graft.Register(graft.Node[ports.ArtifactCollector]{
		ID:        CollectorNodeID,
		Cacheable: true,
		DependsOn: []graft.ID{WalkerNodeID},
		Run: func(ctx context.Context) (ports.ArtifactCollector, error) {
			walker, err := graft.Dep[*Walker](ctx)
			if err != nil {
				return nil, err
			}
			return NewCollector(walker), nil
		},
	})
}
