// Package config provides the configuration loader for matrix.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"

	"go.trai.ch/matrix/internal/core/domain"
	"go.trai.ch/matrix/internal/core/ports"
	"go.trai.ch/zerr"
	"gopkg.in/yaml.v3"
	"mvdan.cc/sh/v3/shell"
)

const (
	// AccessKeyEnv and SecretKeyEnv hold the object store credentials.
	AccessKeyEnv = "MATRIX_PUBLISH_ACCESS_KEY"
	SecretKeyEnv = "MATRIX_PUBLISH_SECRET_KEY"

	bufferSink = "buffer"
)

var _ ports.ConfigLoader = (*Loader)(nil)

// Loader implements ports.ConfigLoader using a YAML file.
type Loader struct {
	Logger ports.Logger
	// Getenv resolves credentials. It defaults to os.Getenv.
	Getenv func(string) string
}

// NewLoader creates a new Loader with the given logger.
func NewLoader(logger ports.Logger) *Loader {
	return &Loader{Logger: logger, Getenv: os.Getenv}
}

// Load finds matrix.yaml by walking up from cwd and returns the definition it
// describes. Without a file the built-in default definition is returned.
func (l *Loader) Load(cwd string) (domain.Definition, error) {
	configPath, found, err := FindConfiguration(cwd)
	if err != nil {
		return domain.Definition{}, err
	}
	if !found {
		return domain.DefaultDefinition(), nil
	}
	return l.LoadFile(configPath)
}

// FindConfiguration returns the nearest matrix.yaml at or above cwd.
func FindConfiguration(cwd string) (string, bool, error) {
	currentDir, err := filepath.Abs(cwd)
	if err != nil {
		return "", false, zerr.With(zerr.Wrap(err, "failed to resolve directory"), "cwd", cwd)
	}

	for {
		candidate := filepath.Join(currentDir, domain.ConfigFileName)
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, true, nil
		}

		parentDir := filepath.Dir(currentDir)
		if parentDir == currentDir {
			// Reached root
			return "", false, nil
		}
		currentDir = parentDir
	}
}

// LoadFile reads the configuration at path.
func (l *Loader) LoadFile(path string) (domain.Definition, error) {
	var file Matrixfile
	if err := readAndUnmarshalYAML(path, &file); err != nil {
		return domain.Definition{}, err
	}

	def, err := l.build(file)
	if err != nil {
		return domain.Definition{}, zerr.With(err, "config", path)
	}
	if err := def.Validate(); err != nil {
		return domain.Definition{}, zerr.With(err, "config", path)
	}
	return def, nil
}

func readAndUnmarshalYAML(path string, v any) error {
	data, err := os.ReadFile(path) //nolint:gosec // path is discovered from the source tree
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return zerr.With(zerr.Wrap(domain.ErrConfigReadFailed, "config file not found"), "path", path)
		}
		return zerr.With(fmt.Errorf("%w: %w", domain.ErrConfigReadFailed, err), "path", path)
	}

	if err := yaml.Unmarshal(data, v); err != nil {
		return zerr.With(fmt.Errorf("%w: %w", domain.ErrConfigParseFailed, err), "path", path)
	}
	return nil
}

func (l *Loader) build(file Matrixfile) (domain.Definition, error) {
	def := domain.DefaultDefinition()

	if file.Versions != nil {
		def.Versions = slices.Clone(file.Versions)
	}
	if file.Namespace != "" {
		def.Namespace = file.Namespace
	}
	if file.Provider != "" {
		def.Provider = file.Provider
	}
	policy, err := domain.ParsePolicy(file.Policy)
	if err != nil {
		return domain.Definition{}, err
	}
	def.Policy = policy
	if file.Parallelism < 0 {
		return domain.Definition{}, zerr.With(zerr.New("parallelism must not be negative"), "parallelism", file.Parallelism)
	}
	def.Parallelism = file.Parallelism

	pipeline, err := l.buildPipeline(file)
	if err != nil {
		return domain.Definition{}, err
	}
	def.Pipeline = pipeline

	if file.Publish != nil {
		def.Publish = domain.PublishConfig{
			Enabled:   true,
			Endpoint:  file.Publish.Endpoint,
			Bucket:    file.Publish.Bucket,
			Prefix:    file.Publish.Prefix,
			Region:    file.Publish.Region,
			UseSSL:    file.Publish.UseSSL,
			AccessKey: l.getenv(AccessKeyEnv),
			SecretKey: l.getenv(SecretKeyEnv),
		}
	}
	def.History = domain.HistoryConfig{DSN: file.History.DSN}

	return def, nil
}

func (l *Loader) getenv(name string) string {
	if l.Getenv == nil {
		return os.Getenv(name)
	}
	return l.Getenv(name)
}

func (l *Loader) buildPipeline(file Matrixfile) (domain.Pipeline, error) {
	image := file.Image
	if image == "" {
		image = domain.DefaultImageTemplate
	}
	workdir := file.Workdir
	if workdir == "" {
		workdir = domain.DefaultSourcePath
	}
	p := domain.From(image).WithWorkdir(workdir)

	if file.Caches == nil {
		for _, c := range domain.DefaultCaches(workdir) {
			p = p.WithCache(c.Purpose, c.MountPath)
		}
	} else {
		for _, purpose := range sortedKeys(file.Caches) {
			p = p.WithCache(purpose, file.Caches[purpose])
		}
	}

	env := make(map[string]string)
	if file.Env == nil {
		for _, name := range domain.DefaultPassthroughEnv {
			env[name] = domain.Placeholder(name)
		}
	} else {
		env = file.Env
	}
	for _, name := range sortedKeys(env) {
		p = p.WithEnv(name, env[name])
	}

	steps, err := l.buildSteps(file, env)
	if err != nil {
		return domain.Pipeline{}, err
	}
	for _, s := range steps {
		p = p.WithExec(s)
	}

	for _, a := range file.Artifacts {
		if a.Path == "" {
			return domain.Pipeline{}, zerr.New("artifact path is empty")
		}
		p = p.WithArtifact(a.Path, a.Include...)
	}

	if file.Lint != nil && !*file.Lint {
		p = p.WithoutOptionalSteps()
	}
	return p, nil
}

func (l *Loader) buildSteps(file Matrixfile, env map[string]string) ([]domain.CommandStep, error) {
	if file.Steps == nil {
		return domain.DefaultSteps(file.MaxSockets), nil
	}
	if file.MaxSockets != 0 && l.Logger != nil {
		l.Logger.Warn(fmt.Sprintf("'maxSockets' in %s has no effect when steps are defined", domain.ConfigFileName))
	}

	steps := make([]domain.CommandStep, 0, len(file.Steps))
	for i, dto := range file.Steps {
		argv, err := commandArgv(dto.Cmd, env)
		if err != nil {
			return nil, zerr.With(err, "step", i+1)
		}
		step := domain.NewCommandStep(dto.Name, argv...)
		step.Stdout = parseSink(dto.Stdout)
		step.Stderr = parseSink(dto.Stderr)
		step.Optional = dto.Optional
		steps = append(steps, step)
	}
	return steps, nil
}

// commandArgv splits a one-line command with shell quoting rules. Only
// variables declared under env are expanded; command substitution is rejected.
func commandArgv(cmd CommandDTO, env map[string]string) ([]string, error) {
	if cmd.Line == "" {
		return slices.Clone(cmd.Argv), nil
	}
	argv, err := shell.Fields(cmd.Line, func(name string) string { return env[name] })
	if err != nil {
		return nil, zerr.With(zerr.Wrap(err, "failed to parse step command"), "cmd", cmd.Line)
	}
	return argv, nil
}

func parseSink(s string) domain.Sink {
	if s == "" || s == bufferSink {
		return domain.BufferSink()
	}
	return domain.FileSink(s)
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
