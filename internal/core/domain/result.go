package domain

import "time"

// BuildResult is the terminal outcome of one matrix entry.
type BuildResult struct {
	Target        BuildTarget
	State         EntryState
	ExitCode      int
	Stdout        string
	Stderr        string
	ArtifactPaths []string
	Steps         []StepResult
	// FailedStep is the index of the step that exited non-zero, or -1.
	FailedStep int
	Err        error
	Duration   time.Duration
}

// Succeeded reports whether the entry finished with every step exiting 0.
func (r BuildResult) Succeeded() bool {
	return r.State == StateSucceeded
}

// Version returns the runtime version of the entry.
func (r BuildResult) Version() string {
	return r.Target.RuntimeVersion
}

// MatrixReport holds one result per requested version, in request order.
type MatrixReport struct {
	Results []BuildResult
}

// Succeeded reports whether every entry succeeded. An empty report succeeds.
func (m MatrixReport) Succeeded() bool {
	for _, r := range m.Results {
		if !r.Succeeded() {
			return false
		}
	}
	return true
}

// Failed returns the results that did not succeed, in order.
func (m MatrixReport) Failed() []BuildResult {
	var failed []BuildResult
	for _, r := range m.Results {
		if !r.Succeeded() {
			failed = append(failed, r)
		}
	}
	return failed
}

// EntryLabel names the span and progress line of the entry building version.
func EntryLabel(version string) string {
	return "build " + version
}
