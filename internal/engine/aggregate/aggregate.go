// Package aggregate validates matrix results and renders them as a combined report.
package aggregate

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"go.trai.ch/matrix/internal/core/domain"
)

// Counts summarizes a report.
type Counts struct {
	Total     int `yaml:"total"`
	Succeeded int `yaml:"succeeded"`
	Failed    int `yaml:"failed"`
}

// Report is a validated, ordered set of build results.
type Report struct {
	results []domain.BuildResult
}

// Aggregate validates results and returns them as a Report. It has no side effects.
func Aggregate(results []domain.BuildResult) (Report, error) {
	for i, r := range results {
		if reason := malformed(r); reason != "" {
			return Report{}, &domain.AggregationError{Index: i, Version: r.Version(), Reason: reason}
		}
	}
	out := make([]domain.BuildResult, len(results))
	copy(out, results)
	return Report{results: out}, nil
}

func malformed(r domain.BuildResult) string {
	switch {
	case r.Version() == "":
		return "empty version"
	case !r.State.Terminal():
		return fmt.Sprintf("non-terminal state %s", r.State)
	case r.State == domain.StateSucceeded && r.ExitCode != 0:
		return fmt.Sprintf("succeeded with exit code %d", r.ExitCode)
	case r.State == domain.StateSucceeded && r.Err != nil:
		return "succeeded with an error"
	case r.State == domain.StateSucceeded && r.FailedStep != -1:
		return "succeeded with a failed step"
	case r.State == domain.StateFailed && r.Err == nil:
		return "failed without a cause"
	case r.FailedStep < -1 || r.FailedStep >= len(r.Steps):
		return fmt.Sprintf("failed step %d out of range", r.FailedStep)
	}
	return ""
}

// Results returns the results in input order.
func (r Report) Results() []domain.BuildResult {
	out := make([]domain.BuildResult, len(r.results))
	copy(out, r.results)
	return out
}

// Succeeded reports whether every entry succeeded.
func (r Report) Succeeded() bool {
	return domain.MatrixReport{Results: r.results}.Succeeded()
}

// Counts returns the number of entries per outcome.
func (r Report) Counts() Counts {
	c := Counts{Total: len(r.results)}
	for _, res := range r.results {
		if res.Succeeded() {
			c.Succeeded++
		} else {
			c.Failed++
		}
	}
	return c
}

// Stdout concatenates the stdout of every entry in order.
func (r Report) Stdout() string {
	var b strings.Builder
	for _, res := range r.results {
		b.WriteString(res.Stdout)
	}
	return b.String()
}

// Text renders the combined human-readable report.
func (r Report) Text() string {
	var b strings.Builder
	c := r.Counts()
	fmt.Fprintf(&b, "build matrix: %d %s, %d succeeded, %d failed\n",
		c.Total, plural(c.Total, "entry", "entries"), c.Succeeded, c.Failed)

	for _, res := range r.results {
		b.WriteString("\n")
		writeEntry(&b, res)
	}
	return b.String()
}

func writeEntry(b *strings.Builder, res domain.BuildResult) {
	outcome := "SUCCEEDED"
	if !res.Succeeded() {
		outcome = "FAILED"
	}
	fmt.Fprintf(b, "=== %s: %s (%s)\n", res.Target, outcome, formatDuration(res.Duration))

	if res.Err != nil {
		b.WriteString(FailureLine(res.Err))
		b.WriteString("\n")
		if res.FailedStep >= 0 && res.FailedStep < len(res.Steps) {
			step := res.Steps[res.FailedStep]
			if step.StdoutFile != "" {
				fmt.Fprintf(b, "stdout: %s\n", step.StdoutFile)
			}
			if step.StderrFile != "" {
				fmt.Fprintf(b, "stderr: %s\n", step.StderrFile)
			}
		}
	}

	section(b, "stdout", res.Stdout)
	section(b, "stderr", res.Stderr)

	if len(res.ArtifactPaths) > 0 {
		b.WriteString("--- artifacts ---\n")
		for _, p := range res.ArtifactPaths {
			b.WriteString(p)
			b.WriteString("\n")
		}
	}
}

// FailureLine describes why an entry failed in one line.
func FailureLine(err error) string {
	var failure *domain.CommandFailure
	if errors.As(err, &failure) {
		if domain.IsCancellation(failure.Cause) {
			return failure.Message() + " (cancelled)"
		}
		return failure.Message()
	}
	return "error: " + err.Error()
}

func section(b *strings.Builder, name, body string) {
	if body == "" {
		return
	}
	fmt.Fprintf(b, "--- %s ---\n", name)
	b.WriteString(body)
	if !strings.HasSuffix(body, "\n") {
		b.WriteString("\n")
	}
}

func formatDuration(d time.Duration) string {
	if d < time.Millisecond {
		return d.String()
	}
	return d.Round(time.Millisecond).String()
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
