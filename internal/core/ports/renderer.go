package ports

import (
	"context"
	"time"
)

// Renderer is the abstraction for progress output.
// It decouples telemetry collection from presentation logic.
//
//go:generate mockgen -source=renderer.go -destination=mocks/mock_renderer.go -package=mocks
type Renderer interface {
	// Start initializes the renderer and begins its lifecycle.
	Start(ctx context.Context) error

	// Stop signals the renderer to stop accepting new events and flush buffered output.
	Stop() error

	// Wait blocks until the renderer has fully terminated.
	Wait() error

	// OnPlanEmit is called once with the matrix entries about to run, in order.
	OnPlanEmit(entries []string)

	// OnTaskStart is called when a span begins.
	// spanID: unique identifier for this span
	// parentID: spanID of the parent span (empty if root)
	OnTaskStart(spanID, parentID, name string, startTime time.Time)

	// OnTaskLog is called when a span emits output.
	// data may contain partial lines or ANSI sequences.
	OnTaskLog(spanID string, data []byte)

	// OnTaskComplete is called when a span ends. err is nil on success.
	OnTaskComplete(spanID string, endTime time.Time, err error)
}
