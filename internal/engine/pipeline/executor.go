package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"go.trai.ch/matrix/internal/core/domain"
	"go.trai.ch/matrix/internal/core/ports"
	"go.trai.ch/zerr"
)

// Result is the outcome of running the command steps of one entry.
type Result struct {
	State      domain.EntryState
	Steps      []domain.StepResult
	FailedStep int
	ExitCode   int
	Stdout     string
	Stderr     string
	// Files are the host paths written by file sinks.
	Files []string
	Err   error
}

// Executor runs command steps strictly in order and stops at the first non-zero exit.
type Executor struct {
	tracer ports.Tracer
}

// NewExecutor creates an Executor that opens one span per step.
func NewExecutor(tracer ports.Tracer) *Executor {
	return &Executor{tracer: tracer}
}

// Run executes steps in env. File sinks are created under outputDir.
// Steps after the first failing one never start. There are no retries.
func (e *Executor) Run(ctx context.Context, env ports.Environment, steps []domain.CommandStep, outputDir string) Result {
	s := e.Begin(outputDir)
	for _, step := range steps {
		if !s.Step(ctx, env, step) {
			break
		}
	}
	return s.Result()
}

// Session runs the steps of one entry one at a time, so other configuration
// can be applied between them. Step indices continue across calls.
type Session struct {
	executor  *Executor
	outputDir string

	res    Result
	next   int
	stdout strings.Builder
	stderr strings.Builder
	files  map[string]struct{}
}

// Begin starts a Session whose file sinks are created under outputDir.
func (e *Executor) Begin(outputDir string) *Session {
	return &Session{
		executor:  e,
		outputDir: outputDir,
		res:       Result{State: domain.StateSucceeded, FailedStep: -1},
		files:     make(map[string]struct{}),
	}
}

// Failed reports whether a step of the session has failed.
func (s *Session) Failed() bool {
	return s.res.State == domain.StateFailed
}

// Step runs step in env. It returns false, without running anything, once the
// session has failed, and false when step itself fails.
func (s *Session) Step(ctx context.Context, env ports.Environment, step domain.CommandStep) bool {
	if s.Failed() {
		return false
	}
	if err := ctx.Err(); err != nil {
		s.res.State = domain.StateFailed
		s.res.ExitCode = -1
		s.res.Err = cancelled(err)
		return false
	}

	i := s.next
	s.next++
	sr, err := s.executor.runStep(ctx, env, i, step, s.outputDir, s.files)
	s.res.Steps = append(s.res.Steps, sr)
	s.stdout.WriteString(sr.Stdout)
	s.stderr.WriteString(sr.Stderr)

	if err == nil && sr.ExitCode == 0 {
		return true
	}

	failure := &domain.CommandFailure{
		Step:     i,
		Name:     step.DisplayName(),
		ExitCode: sr.ExitCode,
		Stdout:   sr.Stdout,
		Stderr:   sr.Stderr,
		Cause:    err,
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		failure.Cause = cancelled(ctxErr)
	}

	s.res.State = domain.StateFailed
	s.res.FailedStep = i
	s.res.ExitCode = sr.ExitCode
	s.res.Err = failure
	return false
}

// Result returns the outcome of the steps run so far.
func (s *Session) Result() Result {
	res := s.res
	res.Steps = slices.Clone(s.res.Steps)
	res.Stdout = s.stdout.String()
	res.Stderr = s.stderr.String()
	res.Files = make([]string, 0, len(s.files))
	for f := range s.files {
		res.Files = append(res.Files, f)
	}
	slices.Sort(res.Files)
	return res
}

func (e *Executor) runStep(
	ctx context.Context,
	env ports.Environment,
	index int,
	step domain.CommandStep,
	outputDir string,
	files map[string]struct{},
) (domain.StepResult, error) {
	ctx, span := e.tracer.Start(ctx, step.DisplayName(), ports.WithAttribute(ports.AttrStep, index))
	defer span.End()

	sr := domain.StepResult{
		Index: index,
		Name:  step.DisplayName(),
		Argv:  append([]string(nil), step.Argv...),
	}

	if err := step.Validate(); err != nil {
		sr.ExitCode = -1
		span.RecordError(err)
		return sr, err
	}

	sr.StdoutFile = sinkPath(outputDir, step.Stdout)
	sr.StderrFile = sinkPath(outputDir, step.Stderr)

	sinks := newSinkSet(outputDir)
	defer func() { _ = sinks.Close() }()

	var outBuf, errBuf bytes.Buffer
	stdout, err := sinks.open(step.Stdout, &outBuf)
	if err != nil {
		sr.ExitCode = -1
		span.RecordError(err)
		return sr, err
	}
	stderr, err := sinks.open(step.Stderr, &errBuf)
	if err != nil {
		sr.ExitCode = -1
		span.RecordError(err)
		return sr, err
	}

	start := time.Now()
	code, err := env.Exec(ctx, step.Argv, io.MultiWriter(stdout, span), io.MultiWriter(stderr, span))
	sr.Duration = time.Since(start)
	sr.ExitCode = code
	sr.Stdout = outBuf.String()
	sr.Stderr = errBuf.String()

	for _, f := range sinks.paths() {
		files[f] = struct{}{}
	}

	switch {
	case err != nil:
		if sr.ExitCode == 0 {
			sr.ExitCode = -1
		}
		span.RecordError(err)
		return sr, zerr.Wrap(err, "failed to execute command")
	case code != 0:
		span.SetAttribute(ports.AttrExitCode, code)
		span.RecordError(fmt.Errorf("exit code %d", code))
	}
	return sr, nil
}

// sinkSet opens the writers of one step. Both streams of a step may target the same file.
type sinkSet struct {
	dir   string
	files map[string]*os.File
}

func newSinkSet(dir string) *sinkSet {
	return &sinkSet{dir: dir, files: make(map[string]*os.File)}
}

func (s *sinkSet) open(sink domain.Sink, buf *bytes.Buffer) (io.Writer, error) {
	if sink.Kind != domain.SinkFile {
		return buf, nil
	}

	path := sinkPath(s.dir, sink)
	if f, ok := s.files[path]; ok {
		return f, nil
	}

	if err := os.MkdirAll(filepath.Dir(path), domain.DirPerm); err != nil {
		return nil, zerr.With(zerr.Wrap(err, "failed to create sink directory"), "path", path)
	}
	//nolint:gosec // path is validated to stay inside the entry output directory
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, domain.FilePerm)
	if err != nil {
		return nil, zerr.With(zerr.Wrap(err, "failed to open sink file"), "path", path)
	}
	s.files[path] = f
	return f, nil
}

// sinkPath returns the host file of a file sink, or "" for a buffer.
func sinkPath(dir string, sink domain.Sink) string {
	if sink.Kind != domain.SinkFile {
		return ""
	}
	return filepath.Join(dir, filepath.Clean(sink.Path))
}

func (s *sinkSet) paths() []string {
	out := make([]string, 0, len(s.files))
	for p := range s.files {
		out = append(out, p)
	}
	return out
}

func (s *sinkSet) Close() error {
	var first error
	for _, f := range s.files {
		if err := f.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func cancelled(cause error) error {
	return fmt.Errorf("%w: %w", domain.ErrEntryCancelled, cause)
}
