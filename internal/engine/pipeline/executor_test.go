package pipeline_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/matrix/internal/adapters/fake"
	"go.trai.ch/matrix/internal/adapters/telemetry"
	"go.trai.ch/matrix/internal/core/domain"
	"go.trai.ch/matrix/internal/core/ports"
	"go.trai.ch/matrix/internal/engine/pipeline"
)

func provision(t *testing.T, p *fake.Provider, version string) ports.Environment {
	t.Helper()
	env, err := p.Provision(context.Background(), ports.ProvisionRequest{
		Target: domain.BuildTarget{RuntimeVersion: version, BaseImage: "node:" + version},
	})
	require.NoError(t, err)
	return env
}

func TestExecutor_RunsStepsInOrder(t *testing.T) {
	p := fake.NewProvider(map[string]fake.Script{
		"18": {Commands: map[string]fake.Outcome{
			"echo one": {Stdout: "one\n"},
			"echo two": {Stdout: "two\n", Stderr: "warn\n"},
		}},
	})
	env := provision(t, p, "18")

	steps := []domain.CommandStep{
		domain.NewCommandStep("first", "echo", "one"),
		domain.NewCommandStep("second", "echo", "two"),
	}
	res := pipeline.NewExecutor(telemetry.NewNoOpTracer()).Run(context.Background(), env, steps, t.TempDir())

	require.NoError(t, res.Err)
	assert.Equal(t, domain.StateSucceeded, res.State)
	assert.Equal(t, -1, res.FailedStep)
	assert.Equal(t, "one\ntwo\n", res.Stdout)
	assert.Equal(t, "warn\n", res.Stderr)
	require.Len(t, res.Steps, 2)
	assert.Equal(t, "second", res.Steps[1].Name)
	assert.Equal(t, []string{"echo one", "echo two"}, p.Execs("18"))
}

func TestExecutor_StopsAtFirstFailure(t *testing.T) {
	p := fake.NewProvider(map[string]fake.Script{
		"18": {Commands: map[string]fake.Outcome{
			"npm ci": {ExitCode: 1, Stdout: "installing\n", Stderr: "npm ERR! network\n"},
		}},
	})
	env := provision(t, p, "18")

	steps := []domain.CommandStep{
		domain.NewCommandStep("version", "node", "--version"),
		domain.NewCommandStep("install", "npm", "ci"),
		domain.NewCommandStep("build", "npm", "run", "build"),
	}
	res := pipeline.NewExecutor(telemetry.NewNoOpTracer()).Run(context.Background(), env, steps, t.TempDir())

	assert.Equal(t, domain.StateFailed, res.State)
	assert.Equal(t, 1, res.FailedStep)
	assert.Equal(t, 1, res.ExitCode)
	assert.Len(t, res.Steps, 2)
	assert.Equal(t, []string{"node --version", "npm ci"}, p.Execs("18"))

	var failure *domain.CommandFailure
	require.ErrorAs(t, res.Err, &failure)
	require.ErrorIs(t, res.Err, domain.ErrCommandFailed)
	assert.Equal(t, "install", failure.Name)
	assert.Equal(t, "npm ERR! network\n", failure.Stderr)
	assert.Equal(t, 1, failure.ExitCode)
}

func TestExecutor_ExecError(t *testing.T) {
	cause := errors.New("exec: \"npm\": executable file not found")
	p := fake.NewProvider(map[string]fake.Script{
		"18": {Commands: map[string]fake.Outcome{"npm ci": {ExitCode: -1, Err: cause}}},
	})
	env := provision(t, p, "18")

	res := pipeline.NewExecutor(telemetry.NewNoOpTracer()).Run(
		context.Background(), env, []domain.CommandStep{domain.NewCommandStep("install", "npm", "ci")}, t.TempDir())

	assert.Equal(t, domain.StateFailed, res.State)
	assert.Equal(t, 0, res.FailedStep)
	require.ErrorIs(t, res.Err, cause)
	require.ErrorIs(t, res.Err, domain.ErrCommandFailed)
}

func TestExecutor_FileSinks(t *testing.T) {
	p := fake.NewProvider(map[string]fake.Script{
		"18": {Commands: map[string]fake.Outcome{
			"npm run build": {Stdout: "built\n", Stderr: "warning\n"},
			"npm run lint":  {Stdout: "clean\n"},
		}},
	})
	env := provision(t, p, "18")

	build := domain.NewCommandStep("build", "npm", "run", "build")
	build.Stdout = domain.FileSink("logs/build.log")
	build.Stderr = domain.FileSink("logs/build.log")
	lint := domain.NewCommandStep("lint", "npm", "run", "lint")
	lint.Stdout = domain.FileSink("logs/build.log")

	dir := t.TempDir()
	res := pipeline.NewExecutor(telemetry.NewNoOpTracer()).Run(context.Background(), env, []domain.CommandStep{build, lint}, dir)

	require.NoError(t, res.Err)
	assert.Empty(t, res.Stdout)
	assert.Empty(t, res.Stderr)

	logPath := filepath.Join(dir, "logs", "build.log")
	assert.Equal(t, []string{logPath}, res.Files)
	assert.Equal(t, logPath, res.Steps[0].StdoutFile)
	assert.Equal(t, logPath, res.Steps[0].StderrFile)
	assert.Equal(t, logPath, res.Steps[1].StdoutFile)
	assert.Empty(t, res.Steps[1].StderrFile)

	data, err := os.ReadFile(logPath)
	require.NoError(t, err)
	assert.Equal(t, "built\nwarning\nclean\n", string(data))
}

func TestExecutor_CancelledBeforeStep(t *testing.T) {
	p := fake.NewProvider(nil)
	env := provision(t, p, "18")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := pipeline.NewExecutor(telemetry.NewNoOpTracer()).Run(ctx, env,
		[]domain.CommandStep{domain.NewCommandStep("build", "npm", "run", "build")}, t.TempDir())

	assert.Equal(t, domain.StateFailed, res.State)
	assert.True(t, domain.IsCancellation(res.Err))
	assert.Empty(t, p.Execs("18"))
}

func TestExecutor_EmptyCommand(t *testing.T) {
	p := fake.NewProvider(nil)
	env := provision(t, p, "18")

	res := pipeline.NewExecutor(telemetry.NewNoOpTracer()).Run(context.Background(), env,
		[]domain.CommandStep{{Name: "nothing"}}, t.TempDir())

	assert.Equal(t, domain.StateFailed, res.State)
	require.ErrorIs(t, res.Err, domain.ErrEmptyCommand)
	assert.Empty(t, p.Execs("18"))
}
