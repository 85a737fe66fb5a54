// Package linear renders matrix progress as prefixed, chronological lines.
package linear

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/muesli/termenv"
	"go.trai.ch/matrix/internal/core/domain"
	"go.trai.ch/matrix/internal/ui/output"
	"go.trai.ch/matrix/internal/ui/style"
)

// Renderer implements ports.Renderer. Entry spans get start and completion
// lines, step spans get a one-line summary, and step output is printed with
// the entry label as prefix.
type Renderer struct {
	out *termenv.Output

	mu    sync.Mutex
	spans map[string]*span
}

type span struct {
	name    string
	label   string // label of the enclosing entry
	isEntry bool
	start   time.Time
	partial bytes.Buffer
}

// NewRenderer creates a Renderer writing to w, or stderr when w is nil.
func NewRenderer(w io.Writer) *Renderer {
	if w == nil {
		w = os.Stderr
	}
	return &Renderer{
		out:   output.New(w),
		spans: make(map[string]*span),
	}
}

// Start is a no-op; rendering is synchronous.
func (r *Renderer) Start(context.Context) error { return nil }

// Wait is a no-op; rendering is synchronous.
func (r *Renderer) Wait() error { return nil }

// Stop prints any partial lines still buffered.
func (r *Renderer) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.spans {
		r.flushLocked(s)
	}
	return nil
}

// OnPlanEmit prints the entries about to run.
func (r *Renderer) OnPlanEmit(entries []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.printf("Running %d %s: %s\n", len(entries), plural(len(entries)), strings.Join(entries, ", "))
}

// OnTaskStart registers a span. Spans without a known parent are matrix entries.
func (r *Renderer) OnTaskStart(spanID, parentID, name string, startTime time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := &span{name: name, label: name, isEntry: true, start: startTime}
	if parent, ok := r.spans[parentID]; ok {
		s.label = parent.label
		s.isEntry = false
	}
	r.spans[spanID] = s

	if s.isEntry {
		r.printf("%s Starting...\n", r.prefix(s.label))
	}
}

// OnTaskLog prints every complete line of data with the entry prefix.
func (r *Renderer) OnTaskLog(spanID string, data []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.spans[spanID]
	if !ok {
		return
	}

	s.partial.Write(data)
	for {
		idx := bytes.IndexByte(s.partial.Bytes(), '\n')
		if idx < 0 {
			return
		}
		line := s.partial.Next(idx + 1)
		r.lineLocked(s, line)
	}
}

// OnTaskComplete prints the outcome of a span.
func (r *Renderer) OnTaskComplete(spanID string, endTime time.Time, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.spans[spanID]
	if !ok {
		return
	}
	r.flushLocked(s)
	delete(r.spans, spanID)

	d := endTime.Sub(s.start).Round(time.Millisecond)
	state := domain.StateSucceeded
	if err != nil {
		state = domain.StateFailed
	}
	icon := r.icon(state)

	switch {
	case s.isEntry && err != nil:
		r.printf("%s %s Failed after %v: %v\n", r.prefix(s.label), icon, d, err)
	case s.isEntry:
		r.printf("%s %s Completed in %v\n", r.prefix(s.label), icon, d)
	case err != nil:
		r.printf("%s %s %s (%v): %v\n", r.prefix(s.label), icon, s.name, d, err)
	default:
		r.printf("%s %s %s (%v)\n", r.prefix(s.label), icon, s.name, d)
	}
}

func (r *Renderer) flushLocked(s *span) {
	if s.partial.Len() == 0 {
		return
	}
	r.lineLocked(s, s.partial.Bytes())
	s.partial.Reset()
}

func (r *Renderer) lineLocked(s *span, line []byte) {
	line = bytes.TrimRight(line, "\r\n")
	if len(line) == 0 {
		return
	}
	r.printf("%s %s\n", r.prefix(s.label), line)
}

func (r *Renderer) prefix(label string) string {
	return r.out.String("[" + label + "]").Faint().String()
}

func (r *Renderer) icon(state domain.EntryState) string {
	icon, color := style.StateIcon(state)
	return r.out.String(icon).Foreground(termenv.RGBColor(string(color))).String()
}

func (r *Renderer) printf(format string, args ...any) {
	_, _ = fmt.Fprintf(r.out, format, args...)
}

func plural(n int) string {
	if n == 1 {
		return "entry"
	}
	return "entries"
}
