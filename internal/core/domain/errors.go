package domain

import (
	"context"
	"errors"
	"fmt"

	"go.trai.ch/zerr"
)

var (
	// ErrProvisionFailed is returned when an isolated environment cannot be created for a matrix entry.
	ErrProvisionFailed = zerr.New("failed to provision environment")

	// ErrCacheMountConflict is returned when two different cache purposes target the same mount path.
	ErrCacheMountConflict = zerr.New("cache mount path already bound")

	// ErrCommandFailed is returned when a pipeline step exits with a non-zero code.
	ErrCommandFailed = zerr.New("command failed")

	// ErrMalformedResult is returned when a build result is structurally invalid.
	ErrMalformedResult = zerr.New("malformed build result")

	// ErrMatrixFailed is returned when at least one matrix entry failed.
	ErrMatrixFailed = zerr.New("build matrix failed")

	// ErrEntryCancelled is returned for entries that were cancelled before reaching a terminal state.
	ErrEntryCancelled = zerr.New("matrix entry cancelled")

	// ErrInvalidVersion is returned when a runtime version selector is empty or contains invalid characters.
	ErrInvalidVersion = zerr.New("invalid runtime version")

	// ErrInvalidImageTemplate is returned when the base image template cannot be expanded.
	ErrInvalidImageTemplate = zerr.New("invalid base image template")

	// ErrInvalidCachePurpose is returned when a cache purpose contains invalid characters.
	ErrInvalidCachePurpose = zerr.New("cache purpose can only contain lowercase letters, digits and underscores")

	// ErrInvalidMountPath is returned when a cache mount path is not an absolute clean path.
	ErrInvalidMountPath = zerr.New("cache mount path must be absolute")

	// ErrCacheAfterExec is returned when a pipeline attaches a cache after its first command step.
	ErrCacheAfterExec = zerr.New("caches must be attached before the first command")

	// ErrInvalidNamespace is returned when the cache namespace contains invalid characters.
	ErrInvalidNamespace = zerr.New("cache namespace can only contain lowercase letters, digits and underscores")

	// ErrEmptyCommand is returned when a step has no argv.
	ErrEmptyCommand = zerr.New("step command is empty")

	// ErrInvalidSink is returned when a file sink path escapes the entry output directory.
	ErrInvalidSink = zerr.New("invalid output sink")

	// ErrInvalidTransition is returned when an entry state change is not allowed.
	ErrInvalidTransition = zerr.New("invalid entry state transition")

	// ErrInvalidPolicy is returned when a failure policy name is unknown.
	ErrInvalidPolicy = zerr.New("invalid failure policy, expected 'fail-at-end' or 'fail-fast'")

	// ErrUnknownProvider is returned when the requested environment provider is not registered.
	ErrUnknownProvider = zerr.New("unknown environment provider")

	// ErrDuplicateVersion is returned when the version list contains the same selector twice.
	ErrDuplicateVersion = zerr.New("duplicate runtime version")

	// ErrSourceNotFound is returned when the source directory does not exist.
	ErrSourceNotFound = zerr.New("source directory not found")

	// ErrConfigReadFailed is returned when the config file cannot be read.
	ErrConfigReadFailed = zerr.New("failed to read config file")

	// ErrConfigParseFailed is returned when the config file cannot be parsed.
	ErrConfigParseFailed = zerr.New("failed to parse config file")

	// ErrArtifactExportFailed is returned when an artifact cannot be exported from an environment.
	ErrArtifactExportFailed = zerr.New("failed to export artifact")

	// ErrPublishFailed is returned when artifacts cannot be uploaded to the object store.
	ErrPublishFailed = zerr.New("failed to publish artifacts")

	// ErrHistoryReadFailed is returned when run records cannot be read.
	ErrHistoryReadFailed = zerr.New("failed to read run history")

	// ErrHistoryWriteFailed is returned when a run record cannot be written.
	ErrHistoryWriteFailed = zerr.New("failed to write run history")

	// ErrReportWriteFailed is returned when the report tree cannot be written.
	ErrReportWriteFailed = zerr.New("failed to write report")
)

// ProvisionError reports that the environment for a version could not be created.
type ProvisionError struct {
	Version string
	Image   string
	Cause   error
}

func (e *ProvisionError) Error() string {
	msg := fmt.Sprintf("%s for version %q", ErrProvisionFailed.Error(), e.Version)
	if e.Image != "" {
		msg += fmt.Sprintf(" (image %s)", e.Image)
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Message returns the error text without its cause.
func (e *ProvisionError) Message() string {
	if e.Image != "" {
		return fmt.Sprintf("%s for version %q (image %s)", ErrProvisionFailed.Error(), e.Version, e.Image)
	}
	return fmt.Sprintf("%s for version %q", ErrProvisionFailed.Error(), e.Version)
}

func (e *ProvisionError) Unwrap() error { return e.Cause }

// Is matches ErrProvisionFailed.
func (e *ProvisionError) Is(target error) bool { return target == ErrProvisionFailed }

// CacheMountError reports a collision between two cache purposes at one mount path.
type CacheMountError struct {
	Version   string
	MountPath string
	Existing  string
	Requested string
}

func (e *CacheMountError) Error() string {
	return e.Message()
}

// Message returns the error text.
func (e *CacheMountError) Message() string {
	return fmt.Sprintf("%s: %s is used by %q, cannot bind %q for version %q",
		ErrCacheMountConflict.Error(), e.MountPath, e.Existing, e.Requested, e.Version)
}

// Is matches ErrCacheMountConflict.
func (e *CacheMountError) Is(target error) bool { return target == ErrCacheMountConflict }

// CommandFailure records the first step of a pipeline that exited non-zero.
type CommandFailure struct {
	Step     int
	Name     string
	ExitCode int
	Stdout   string
	Stderr   string
	Cause    error
}

func (e *CommandFailure) Error() string {
	msg := e.Message()
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Message returns the error text without its cause.
func (e *CommandFailure) Message() string {
	if e.Cause != nil && e.ExitCode < 0 {
		return fmt.Sprintf("step %d %q could not be executed", e.Step+1, e.Name)
	}
	return fmt.Sprintf("step %d %q exited with code %d", e.Step+1, e.Name, e.ExitCode)
}

func (e *CommandFailure) Unwrap() error { return e.Cause }

// Is matches ErrCommandFailed.
func (e *CommandFailure) Is(target error) bool { return target == ErrCommandFailed }

// AggregationError reports a build result that cannot be part of a report.
type AggregationError struct {
	Index   int
	Version string
	Reason  string
}

func (e *AggregationError) Error() string {
	return e.Message()
}

// Message returns the error text.
func (e *AggregationError) Message() string {
	return fmt.Sprintf("%s at index %d (version %q): %s", ErrMalformedResult.Error(), e.Index, e.Version, e.Reason)
}

// Is matches ErrMalformedResult.
func (e *AggregationError) Is(target error) bool { return target == ErrMalformedResult }

// IsCancellation reports whether err stems from a cancelled entry or context.
func IsCancellation(err error) bool {
	return errors.Is(err, ErrEntryCancelled) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}
