// Package telemetry provides adapters for collecting and processing telemetry data.
package telemetry

import (
	"sync"
	"time"

	"go.trai.ch/zerr"
)

const (
	// DefaultSizeLimit is the default buffer size (4KB) if not specified.
	DefaultSizeLimit = 4096
	// DefaultTimeLimit is the default flush delay (50ms) if not specified.
	DefaultTimeLimit = 50 * time.Millisecond
)

// ErrBatcherClosed is returned by Write after Close.
var ErrBatcherClosed = zerr.New("batch processor is closed")

// BatchProcessor coalesces small writes and hands them to a callback once the
// buffer reaches sizeLimit or timeLimit has passed since the first unflushed write.
// Idle processors hold no timer. It is safe for concurrent use.
type BatchProcessor struct {
	sizeLimit int
	timeLimit time.Duration
	onFlush   func([]byte)

	mu     sync.Mutex
	buf    []byte
	timer  *time.Timer
	closed bool
}

// NewBatchProcessor returns a new BatchProcessor. Non-positive limits select the defaults.
// Call Close to flush what remains.
func NewBatchProcessor(sizeLimit int, timeLimit time.Duration, onFlush func([]byte)) *BatchProcessor {
	if sizeLimit <= 0 {
		sizeLimit = DefaultSizeLimit
	}
	if timeLimit <= 0 {
		timeLimit = DefaultTimeLimit
	}
	return &BatchProcessor{
		sizeLimit: sizeLimit,
		timeLimit: timeLimit,
		onFlush:   onFlush,
	}
}

// Write appends p to the buffer.
func (bp *BatchProcessor) Write(p []byte) (int, error) {
	bp.mu.Lock()
	defer bp.mu.Unlock()

	if bp.closed {
		return 0, ErrBatcherClosed
	}

	bp.buf = append(bp.buf, p...)

	switch {
	case len(bp.buf) >= bp.sizeLimit:
		bp.flushLocked()
	case bp.timer == nil:
		bp.timer = time.AfterFunc(bp.timeLimit, bp.Flush)
	}
	return len(p), nil
}

// Flush hands any buffered data to the callback.
func (bp *BatchProcessor) Flush() {
	bp.mu.Lock()
	defer bp.mu.Unlock()
	if bp.closed {
		return
	}
	bp.flushLocked()
}

// Close performs a final flush. Later writes fail with ErrBatcherClosed.
func (bp *BatchProcessor) Close() error {
	bp.mu.Lock()
	defer bp.mu.Unlock()

	if bp.closed {
		return nil
	}
	bp.flushLocked()
	bp.closed = true
	return nil
}

// flushLocked must be called with mu held.
// The callback runs under the lock so flushes are delivered in write order.
func (bp *BatchProcessor) flushLocked() {
	if bp.timer != nil {
		bp.timer.Stop()
		bp.timer = nil
	}
	if len(bp.buf) == 0 {
		return
	}

	data := bp.buf
	bp.buf = nil

	if bp.onFlush != nil {
		bp.onFlush(data)
	}
}
