package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.trai.ch/matrix/internal/core/ports"
)

// SpanError is the error a Bridge reports for a span that ended with an error status.
type SpanError struct {
	// Version is the runtime version of the entry span, empty for step spans.
	Version string
	// ExitCode is the exit code of a step that exited non-zero, or -1.
	ExitCode int
	// Description is the status description of the span.
	Description string
}

// Error prefers the exit code of a failed step over the span description.
func (e *SpanError) Error() string {
	switch {
	case e.ExitCode >= 0:
		return fmt.Sprintf("exit code %d", e.ExitCode)
	case e.Description != "":
		return e.Description
	default:
		return "failed"
	}
}

// Bridge implements sdktrace.SpanProcessor. It forwards entry and step spans to a Renderer.
type Bridge struct {
	renderer ports.Renderer
}

// NewBridge returns a Bridge reporting to renderer. A nil renderer drops every span.
func NewBridge(renderer ports.Renderer) *Bridge {
	return &Bridge{renderer: renderer}
}

// OnStart reports the span with the ID of its parent. Entry spans have no parent.
func (b *Bridge) OnStart(parent context.Context, s sdktrace.ReadWriteSpan) {
	if b.renderer == nil || !s.SpanContext().IsValid() {
		return
	}

	var parentID string
	if p := trace.SpanContextFromContext(parent); p.IsValid() {
		parentID = p.SpanID().String()
	}
	b.renderer.OnTaskStart(s.SpanContext().SpanID().String(), parentID, s.Name(), s.StartTime())
}

// OnEnd reports completion. A failed span is reported as a *SpanError built
// from its status and the engine's span attributes.
func (b *Bridge) OnEnd(s sdktrace.ReadOnlySpan) {
	if b.renderer == nil || !s.SpanContext().IsValid() {
		return
	}

	var err error
	if s.Status().Code == codes.Error {
		err = newSpanError(s.Status().Description, s.Attributes())
	}
	b.renderer.OnTaskComplete(s.SpanContext().SpanID().String(), s.EndTime(), err)
}

func newSpanError(desc string, attrs []attribute.KeyValue) *SpanError {
	e := &SpanError{ExitCode: -1, Description: desc}
	for _, kv := range attrs {
		switch string(kv.Key) {
		case ports.AttrExitCode:
			e.ExitCode = int(kv.Value.AsInt64())
		case ports.AttrVersion:
			e.Version = kv.Value.AsString()
		}
	}
	return e
}

// ForceFlush is a no-op; spans are reported synchronously.
func (b *Bridge) ForceFlush(context.Context) error { return nil }

// Shutdown is a no-op.
func (b *Bridge) Shutdown(context.Context) error { return nil }
