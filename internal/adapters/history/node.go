package history

import (
	"context"

	"github.com/grindlemire/graft"
)

// NodeID is the graft node of the run store opener.
const NodeID graft.ID = "adapter.history"

func init() {
	graft.Register(graft.Node[Opener]{
		ID:        NodeID,
		Cacheable: true,
		Run: func(_ context.Context) (Opener, error) {
			return Open, nil
		},
	})
}
