// Package app implements the application layer for matrix.
package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.trai.ch/matrix/internal/adapters/history"
	"go.trai.ch/matrix/internal/adapters/linear"
	"go.trai.ch/matrix/internal/adapters/objectstore"
	"go.trai.ch/matrix/internal/adapters/providers"
	"go.trai.ch/matrix/internal/adapters/telemetry"
	"go.trai.ch/matrix/internal/core/domain"
	"go.trai.ch/matrix/internal/core/ports"
	"go.trai.ch/matrix/internal/engine/aggregate"
	"go.trai.ch/matrix/internal/engine/matrix"
	"go.trai.ch/matrix/internal/engine/pipeline"
	"go.trai.ch/zerr"
	"golang.org/x/sync/errgroup"
)

// App represents the main application logic.
type App struct {
	configLoader ports.ConfigLoader
	logger       ports.Logger
	providers    *providers.Registry
	collector    ports.ArtifactCollector
	openHistory  history.Opener
	newPublisher objectstore.Factory

	stdout io.Writer
	stderr io.Writer
	now    func() time.Time
	newID  func() string
}

// New creates a new App instance.
func New(
	loader ports.ConfigLoader,
	log ports.Logger,
	registry *providers.Registry,
	collector ports.ArtifactCollector,
	openHistory history.Opener,
	newPublisher objectstore.Factory,
) *App {
	return &App{
		configLoader: loader,
		logger:       log,
		providers:    registry,
		collector:    collector,
		openHistory:  openHistory,
		newPublisher: newPublisher,
		stdout:       os.Stdout,
		stderr:       os.Stderr,
		now:          time.Now,
		newID:        uuid.NewString,
	}
}

// WithOutput sets where reports (stdout) and progress (stderr) are written.
func (a *App) WithOutput(stdout, stderr io.Writer) *App {
	a.stdout = stdout
	a.stderr = stderr
	return a
}

// WithClock replaces the clock and run ID source.
// This is primarily used for testing.
func (a *App) WithClock(now func() time.Time, newID func() string) *App {
	a.now = now
	a.newID = newID
	return a
}

// RunOptions configuration for the Run method.
type RunOptions struct {
	// SourceDir is the project copied into every environment. Defaults to ".".
	SourceDir string
	// ConfigPath skips discovery and loads this file.
	ConfigPath string
	// Versions replace the configured versions when set.
	Versions    []string
	Provider    string
	FailFast    bool
	Parallelism int
	// OutputDir receives the report tree instead of .matrix/runs/<id>.
	OutputDir string
	NoLint    bool
	Publish   bool
	JSONLogs  bool
	TTY       bool
}

// session is the state shared by the commands of one invocation.
type session struct {
	source   string
	stateDir string
	def      domain.Definition
}

func (a *App) open(source, configPath string) (session, error) {
	if source == "" {
		source = "."
	}
	abs, err := filepath.Abs(source)
	if err != nil {
		return session{}, zerr.With(zerr.Wrap(err, "failed to resolve source directory"), "source", source)
	}
	if info, err := os.Stat(abs); err != nil || !info.IsDir() {
		return session{}, zerr.With(zerr.Wrap(domain.ErrSourceNotFound, ""), "source", abs)
	}

	var def domain.Definition
	if configPath != "" {
		def, err = a.configLoader.LoadFile(configPath)
	} else {
		def, err = a.configLoader.Load(abs)
	}
	if err != nil {
		return session{}, zerr.Wrap(err, "failed to load configuration")
	}

	return session{
		source:   abs,
		stateDir: filepath.Join(abs, domain.StateDirName),
		def:      def,
	}, nil
}

// applyRunOptions layers the command line over the loaded definition.
func applyRunOptions(def domain.Definition, opts RunOptions) (domain.Definition, error) {
	if len(opts.Versions) > 0 {
		def.Versions = opts.Versions
	}
	if opts.Provider != "" {
		def.Provider = opts.Provider
	}
	if opts.FailFast {
		def.Policy = domain.FailFast
	}
	if opts.Parallelism < 0 {
		return def, zerr.With(zerr.New("parallelism must not be negative"), "parallelism", opts.Parallelism)
	}
	if opts.Parallelism > 0 {
		def.Parallelism = opts.Parallelism
	}
	if opts.NoLint {
		def.Pipeline = def.Pipeline.WithoutOptionalSteps()
	}
	if opts.Publish {
		def.Publish.Enabled = true
	}
	return def, def.Validate()
}

// Run builds every version of the matrix and reports the results.
// It returns domain.ErrMatrixFailed when at least one entry failed.
//
//nolint:cyclop,funlen // orchestration function
func (a *App) Run(ctx context.Context, opts RunOptions) error {
	if opts.JSONLogs {
		a.setJSONLogs()
	}

	// 1. Load the definition
	s, err := a.open(opts.SourceDir, opts.ConfigPath)
	if err != nil {
		return err
	}
	def, err := applyRunOptions(s.def, opts)
	if err != nil {
		return err
	}

	var publisher ports.ArtifactPublisher
	if def.Publish.Enabled {
		if publisher, err = a.newPublisher(def.Publish); err != nil {
			return err
		}
	}

	// 2. Create the provider
	provider, err := a.providers.New(def.Provider, providers.Settings{
		StateDir: s.stateDir,
		TTY:      opts.TTY,
		Logger:   a.logger,
	})
	if err != nil {
		return err
	}
	defer func() {
		if err := provider.Close(); err != nil {
			a.logger.Warn(fmt.Sprintf("failed to close provider %s: %v", provider.Name(), err))
		}
	}()

	runID := a.newID()
	runDir := filepath.Join(s.stateDir, domain.RunsDirName, runID)
	outputDir := opts.OutputDir
	if outputDir == "" {
		outputDir = runDir
	}

	// 3. Initialize renderer and telemetry
	renderer := linear.NewRenderer(a.stderr)
	tp := telemetry.NewRendererProvider(renderer)
	defer func() {
		_ = tp.Shutdown(context.WithoutCancel(ctx))
	}()
	tracer := telemetry.NewOTelTracerWithProvider("matrix", tp).WithRenderer(renderer)
	defer func() {
		_ = tracer.Shutdown(ctx)
	}()

	// 4. Run renderer and matrix concurrently
	runner := pipeline.NewRunner(provider, a.collector, tracer, a.logger, pipeline.Config{
		SourceDir: s.source,
		RunDir:    runDir,
		Namespace: def.Namespace,
	})
	coordinator := matrix.NewCoordinator(runner, tracer,
		matrix.WithPolicy(def.Policy),
		matrix.WithParallelism(def.Parallelism),
	)

	started := a.now()
	var report domain.MatrixReport
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := renderer.Start(gctx); err != nil {
			return err
		}
		return renderer.Wait()
	})

	g.Go(func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = zerr.With(zerr.New("matrix run panicked"), "panic", fmt.Sprint(r))
			}
			_ = renderer.Stop()
		}()
		report = coordinator.Run(gctx, def.Versions, def.PipelineFor)
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	finished := a.now()

	// 5. Aggregate and report
	result, err := aggregate.Aggregate(report.Results)
	if err != nil {
		return err
	}
	if _, err := io.WriteString(a.stdout, result.Text()); err != nil {
		return zerr.Wrap(err, "failed to print report")
	}
	if err := aggregate.WriteTree(result, outputDir); err != nil {
		return err
	}
	a.logger.Info("report written to " + outputDir)

	// 6. Publish and record
	record := domain.NewRunRecord(runID, started, finished, provider.Name(), def.Policy, report)
	if publisher != nil {
		objects, err := publish(ctx, publisher, runID, runDir, result)
		if err != nil {
			a.logger.Error(err)
		} else {
			record.Artifacts = objects
			a.logger.Info(fmt.Sprintf("published %d artifacts to %s", len(objects), def.Publish.Bucket))
		}
	}
	a.record(context.WithoutCancel(ctx), def.History, s.stateDir, record)

	if !result.Succeeded() {
		counts := result.Counts()
		return zerr.With(zerr.With(zerr.Wrap(domain.ErrMatrixFailed, ""), "failed", counts.Failed), "total", counts.Total)
	}
	return nil
}

func publish(
	ctx context.Context, publisher ports.ArtifactPublisher, runID, runDir string, result aggregate.Report,
) ([]string, error) {
	var files []string
	for _, res := range result.Results() {
		files = append(files, res.ArtifactPaths...)
	}
	if len(files) == 0 {
		return nil, nil
	}
	return publisher.Publish(ctx, runID, runDir, files)
}

// record stores the run in the history. A failure is reported but does not fail the run.
func (a *App) record(ctx context.Context, cfg domain.HistoryConfig, stateDir string, rec domain.RunRecord) {
	store, err := a.openHistory(ctx, cfg, stateDir)
	if err != nil {
		a.logger.Warn("run not recorded: " + err.Error())
		return
	}
	defer func() {
		_ = store.Close()
	}()

	if err := store.Put(ctx, rec); err != nil {
		a.logger.Warn("run not recorded: " + err.Error())
	}
}

func (a *App) setJSONLogs() {
	if l, ok := a.logger.(interface{ SetJSON(bool) }); ok {
		l.SetJSON(true)
	}
}
