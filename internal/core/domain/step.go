package domain

import (
	"path/filepath"
	"strings"
	"time"

	"go.trai.ch/zerr"
)

// SinkKind selects where a command stream is captured.
type SinkKind int

const (
	// SinkBuffer keeps the stream in memory and includes it in the build result.
	SinkBuffer SinkKind = iota
	// SinkFile writes the stream to a file under the entry output directory.
	SinkFile
)

// Sink is the destination of one command stream.
type Sink struct {
	Kind SinkKind
	Path string
}

// BufferSink captures a stream in memory.
func BufferSink() Sink {
	return Sink{Kind: SinkBuffer}
}

// FileSink writes a stream to path, relative to the entry output directory.
func FileSink(path string) Sink {
	return Sink{Kind: SinkFile, Path: path}
}

// Validate rejects file sinks that are absolute or escape the output directory.
func (s Sink) Validate() error {
	if s.Kind != SinkFile {
		return nil
	}
	p := filepath.Clean(s.Path)
	if s.Path == "" || filepath.IsAbs(p) || p == "." || p == ".." || strings.HasPrefix(p, ".."+string(filepath.Separator)) {
		return zerr.With(zerr.Wrap(ErrInvalidSink, ""), "path", s.Path)
	}
	return nil
}

func (s Sink) String() string {
	if s.Kind == SinkFile {
		return "file:" + s.Path
	}
	return "buffer"
}

// CommandStep is one command of a pipeline.
type CommandStep struct {
	Name     string
	Argv     []string
	Stdout   Sink
	Stderr   Sink
	Optional bool
}

// NewCommandStep creates a step whose streams are both buffered.
func NewCommandStep(name string, argv ...string) CommandStep {
	return CommandStep{
		Name:   name,
		Argv:   argv,
		Stdout: BufferSink(),
		Stderr: BufferSink(),
	}
}

// DisplayName returns the step name, falling back to the joined argv.
func (s CommandStep) DisplayName() string {
	if s.Name != "" {
		return s.Name
	}
	return strings.Join(s.Argv, " ")
}

// Validate checks that the step can be executed.
func (s CommandStep) Validate() error {
	if len(s.Argv) == 0 || s.Argv[0] == "" {
		return zerr.With(zerr.Wrap(ErrEmptyCommand, ""), "step", s.Name)
	}
	if err := s.Stdout.Validate(); err != nil {
		return zerr.With(err, "step", s.DisplayName())
	}
	if err := s.Stderr.Validate(); err != nil {
		return zerr.With(err, "step", s.DisplayName())
	}
	return nil
}

// StepResult is the outcome of a single executed step.
type StepResult struct {
	Index    int           `json:"index"              yaml:"index"`
	Name     string        `json:"name"               yaml:"name"`
	Argv     []string      `json:"argv"               yaml:"argv"`
	ExitCode int           `json:"exitCode"           yaml:"exitCode"`
	Stdout   string        `json:"stdout,omitempty"   yaml:"-"`
	Stderr   string        `json:"stderr,omitempty"   yaml:"-"`
	Duration time.Duration `json:"duration"           yaml:"duration"`

	// StdoutFile and StderrFile are the host paths of file-sinked streams.
	StdoutFile string `json:"stdoutFile,omitempty" yaml:"stdoutFile,omitempty"`
	StderrFile string `json:"stderrFile,omitempty" yaml:"stderrFile,omitempty"`
}
