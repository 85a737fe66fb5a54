package aggregate_test

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/matrix/internal/core/domain"
	"go.trai.ch/matrix/internal/engine/aggregate"
	"gopkg.in/yaml.v3"
)

func target(version, image string) domain.BuildTarget {
	return domain.BuildTarget{RuntimeVersion: version, BaseImage: image}
}

func succeeded(version, stdout string, d time.Duration) domain.BuildResult {
	return domain.BuildResult{
		Target:     target(version, "node:"+version),
		State:      domain.StateSucceeded,
		FailedStep: -1,
		Stdout:     stdout,
		Duration:   d,
	}
}

func installFailure() domain.BuildResult {
	return domain.BuildResult{
		Target:     target("18", "node:18"),
		State:      domain.StateFailed,
		ExitCode:   1,
		FailedStep: 2,
		Steps: []domain.StepResult{
			{Index: 0, Name: "node version", Argv: []string{"sh", "-c", "echo node version: $(node --version)"}},
			{Index: 1, Name: "npm version", Argv: []string{"sh", "-c", "echo npm version: $(npm --version)"}},
			{Index: 2, Name: "install", Argv: []string{"npm", "ci", "--maxsockets", "1"}, ExitCode: 1},
		},
		Stdout:   "node version: v18.20.4\nnpm version: 10.7.0\n",
		Stderr:   "npm ERR! code E401\n",
		Err:      &domain.CommandFailure{Step: 2, Name: "install", ExitCode: 1, Stderr: "npm ERR! code E401\n"},
		Duration: 42*time.Second + 300*time.Millisecond,
	}
}

func TestReport_Text(t *testing.T) {
	fileSinked := installFailure()
	fileSinked.Steps[2].StderrFile = "/runs/18/logs/install.log"
	fileSinked.Stderr = ""
	fileSinked.Err = &domain.CommandFailure{Step: 2, Name: "install", ExitCode: 1}

	withArtifacts := succeeded("20", "build ok", time.Minute+3*time.Second)
	withArtifacts.ArtifactPaths = []string{"/runs/20/artifacts/src/dist/index.js"}

	silent := succeeded("22", "", 10*time.Millisecond)
	silent.Target.BaseImage = "node:22-alpine"

	tests := []struct {
		name       string
		results    []domain.BuildResult
		goldenName string
	}{
		{
			name: "all succeeded",
			results: []domain.BuildResult{
				succeeded("18", "node version: v18.20.4\n", 1500*time.Millisecond),
				succeeded("20", "node version: v20.11.1\n", 2*time.Second),
			},
			goldenName: "all_succeeded",
		},
		{
			name:       "one failed",
			results:    []domain.BuildResult{installFailure(), withArtifacts},
			goldenName: "one_failed",
		},
		{
			name: "provision failed and cancelled",
			results: []domain.BuildResult{
				{
					Target:     target("99", "node:99"),
					State:      domain.StateFailed,
					ExitCode:   -1,
					FailedStep: -1,
					Err: &domain.ProvisionError{
						Version: "99", Image: "node:99", Cause: errors.New("manifest unknown"),
					},
					Duration: 800 * time.Millisecond,
				},
				{
					Target:     target("20", "node:20"),
					State:      domain.StateFailed,
					ExitCode:   -1,
					FailedStep: -1,
					Err:        fmt.Errorf("%w: %w", domain.ErrEntryCancelled, errors.New("cancelled after a sibling entry failed")),
				},
			},
			goldenName: "provision_failed",
		},
		{
			name:       "stderr in a file sink",
			results:    []domain.BuildResult{fileSinked},
			goldenName: "file_sink_failure",
		},
		{
			name:       "single entry",
			results:    []domain.BuildResult{silent},
			goldenName: "single_entry",
		},
		{
			name:       "empty",
			goldenName: "empty",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			report, err := aggregate.Aggregate(tt.results)
			require.NoError(t, err)

			g := goldie.New(t)
			g.Assert(t, tt.goldenName, []byte(report.Text()))
		})
	}
}

func TestReport_CountsAndStdout(t *testing.T) {
	report, err := aggregate.Aggregate([]domain.BuildResult{
		installFailure(),
		succeeded("20", "node version: v20.11.1\n", time.Second),
	})
	require.NoError(t, err)

	assert.False(t, report.Succeeded())
	assert.Equal(t, aggregate.Counts{Total: 2, Succeeded: 1, Failed: 1}, report.Counts())
	assert.Equal(t, "node version: v18.20.4\nnpm version: 10.7.0\nnode version: v20.11.1\n", report.Stdout())
	assert.Len(t, report.Results(), 2)
}

func TestAggregate_EmptySucceeds(t *testing.T) {
	report, err := aggregate.Aggregate(nil)
	require.NoError(t, err)
	assert.True(t, report.Succeeded())
	assert.Equal(t, aggregate.Counts{}, report.Counts())
}

func TestAggregate_RejectsMalformed(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*domain.BuildResult)
		reason string
	}{
		{
			name:   "empty version",
			mutate: func(r *domain.BuildResult) { r.Target.RuntimeVersion = "" },
			reason: "empty version",
		},
		{
			name:   "non-terminal state",
			mutate: func(r *domain.BuildResult) { r.State = domain.StateExecuting },
			reason: "non-terminal state executing",
		},
		{
			name:   "succeeded with non-zero exit",
			mutate: func(r *domain.BuildResult) { r.ExitCode = 2 },
			reason: "succeeded with exit code 2",
		},
		{
			name:   "succeeded with error",
			mutate: func(r *domain.BuildResult) { r.Err = errors.New("boom") },
			reason: "succeeded with an error",
		},
		{
			name: "failed without cause",
			mutate: func(r *domain.BuildResult) {
				r.State = domain.StateFailed
				r.ExitCode = 1
			},
			reason: "failed without a cause",
		},
		{
			name: "failed step out of range",
			mutate: func(r *domain.BuildResult) {
				r.State = domain.StateFailed
				r.Err = errors.New("boom")
				r.FailedStep = 4
			},
			reason: "failed step 4 out of range",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bad := succeeded("20", "", time.Second)
			tt.mutate(&bad)

			_, err := aggregate.Aggregate([]domain.BuildResult{succeeded("18", "", time.Second), bad})
			require.ErrorIs(t, err, domain.ErrMalformedResult)

			var aerr *domain.AggregationError
			require.ErrorAs(t, err, &aerr)
			assert.Equal(t, 1, aerr.Index)
			assert.Equal(t, tt.reason, aerr.Reason)
		})
	}
}

func TestFailureLine(t *testing.T) {
	cancelled := &domain.CommandFailure{
		Step: 3, Name: "build", ExitCode: -1,
		Cause: fmt.Errorf("%w: %w", domain.ErrEntryCancelled, errors.New("stop")),
	}
	assert.Equal(t, `step 4 "build" could not be executed (cancelled)`, aggregate.FailureLine(cancelled))
	assert.Equal(t, "error: boom", aggregate.FailureLine(errors.New("boom")))
}

func TestWriteTree(t *testing.T) {
	report, err := aggregate.Aggregate([]domain.BuildResult{
		installFailure(),
		succeeded("20", "node version: v20.11.1\n", 2*time.Second),
	})
	require.NoError(t, err)

	dir := t.TempDir()
	require.NoError(t, aggregate.WriteTree(report, dir))

	stderr, err := os.ReadFile(filepath.Join(dir, "18", "stderr.log"))
	require.NoError(t, err)
	assert.Equal(t, "npm ERR! code E401\n", string(stderr))

	stdout, err := os.ReadFile(filepath.Join(dir, "20", "stdout.log"))
	require.NoError(t, err)
	assert.Equal(t, "node version: v20.11.1\n", string(stdout))

	var result struct {
		Version    string `yaml:"version"`
		Image      string `yaml:"image"`
		State      string `yaml:"state"`
		ExitCode   int    `yaml:"exitCode"`
		FailedStep int    `yaml:"failedStep"`
		Error      string `yaml:"error"`
		Duration   string `yaml:"duration"`
		Steps      []struct {
			Name string   `yaml:"name"`
			Argv []string `yaml:"argv"`
		} `yaml:"steps"`
	}
	data, err := os.ReadFile(filepath.Join(dir, "18", "result.yaml"))
	require.NoError(t, err)
	require.NoError(t, yaml.Unmarshal(data, &result))
	assert.Equal(t, "18", result.Version)
	assert.Equal(t, "node:18", result.Image)
	assert.Equal(t, "failed", result.State)
	assert.Equal(t, 1, result.ExitCode)
	assert.Equal(t, 2, result.FailedStep)
	assert.Equal(t, `step 3 "install" exited with code 1`, result.Error)
	assert.Equal(t, "42.3s", result.Duration)
	require.Len(t, result.Steps, 3)
	assert.Equal(t, []string{"npm", "ci", "--maxsockets", "1"}, result.Steps[2].Argv)

	var summary struct {
		Succeeded bool             `yaml:"succeeded"`
		Counts    aggregate.Counts `yaml:"counts"`
		Entries   []struct {
			Version string `yaml:"version"`
			State   string `yaml:"state"`
		} `yaml:"entries"`
	}
	data, err = os.ReadFile(filepath.Join(dir, "summary.yaml"))
	require.NoError(t, err)
	require.NoError(t, yaml.Unmarshal(data, &summary))
	assert.False(t, summary.Succeeded)
	assert.Equal(t, aggregate.Counts{Total: 2, Succeeded: 1, Failed: 1}, summary.Counts)
	require.Len(t, summary.Entries, 2)
	assert.Equal(t, "20", summary.Entries[1].Version)
	assert.Equal(t, "succeeded", summary.Entries[1].State)
}
