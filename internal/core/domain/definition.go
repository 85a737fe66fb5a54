package domain

import (
	"path"
	"strconv"

	"go.trai.ch/zerr"
)

// Provider names.
const (
	ProviderDagger = "dagger"
	ProviderDocker = "docker"
	ProviderLocal  = "local"
)

// PublishConfig configures uploading artifacts to an S3-compatible object store.
type PublishConfig struct {
	Enabled   bool
	Endpoint  string
	Bucket    string
	Prefix    string
	Region    string
	UseSSL    bool
	AccessKey string
	SecretKey string
}

// HistoryConfig selects where run records are kept. An empty DSN uses the local state directory.
type HistoryConfig struct {
	DSN string
}

// Definition is a complete build matrix: which versions to run and how to build each one.
type Definition struct {
	Versions    []string
	Namespace   string
	Pipeline    Pipeline
	Policy      FailurePolicy
	Parallelism int
	Provider    string
	Publish     PublishConfig
	History     HistoryConfig
}

// PipelineFor returns the pipeline used for version.
func (d Definition) PipelineFor(string) Pipeline {
	return d.Pipeline
}

// Validate checks the versions, namespace and pipeline of the definition.
// A malformed version is left to fail its own entry; only an empty or
// repeated selector, which cannot name a distinct entry, is rejected here.
func (d Definition) Validate() error {
	seen := make(map[string]struct{}, len(d.Versions))
	for _, v := range d.Versions {
		if v == "" {
			return zerr.Wrap(ErrInvalidVersion, "empty version selector")
		}
		if _, ok := seen[v]; ok {
			return zerr.With(zerr.Wrap(ErrDuplicateVersion, ""), "version", v)
		}
		seen[v] = struct{}{}
	}
	if err := ValidateNamespace(d.Namespace); err != nil {
		return err
	}
	if _, err := ParsePolicy(string(d.Policy)); err != nil {
		return err
	}
	return d.Pipeline.Validate()
}

// DefaultVersions are the runtime versions built when none are configured.
var DefaultVersions = []string{"18", "20"}

// DefaultImageTemplate is the base image used when none is configured.
const DefaultImageTemplate = "node:${version}"

// DefaultMaxSockets limits npm's concurrent connections during install.
const DefaultMaxSockets = 1

// DefaultCaches returns the cache volumes of the default pipeline for a
// project placed at workdir.
func DefaultCaches(workdir string) []CacheSpec {
	if workdir == "" {
		workdir = DefaultSourcePath
	}
	return []CacheSpec{
		{Purpose: "npm", MountPath: "/root/.npm"},
		{Purpose: "node_modules", MountPath: path.Join(workdir, "node_modules")},
		{Purpose: "turbo", MountPath: path.Join(workdir, ".turbo", "cache")},
	}
}

// DefaultPassthroughEnv are the variables injected with placeholder values.
// The placeholders are substituted after the build, so they must reach the
// environment verbatim.
var DefaultPassthroughEnv = []string{
	"MEDPLUM_BASE_URL",
	"MEDPLUM_CLIENT_ID",
	"MEDPLUM_REGISTER_ENABLED",
	"GOOGLE_CLIENT_ID",
	"RECAPTCHA_SITE_KEY",
}

// Placeholder returns the verbatim placeholder for a pass-through variable.
func Placeholder(name string) string {
	return "__" + name + "__"
}

// DefaultSteps returns the install, build and lint steps of the default pipeline.
func DefaultSteps(maxSockets int) []CommandStep {
	if maxSockets <= 0 {
		maxSockets = DefaultMaxSockets
	}
	lint := NewCommandStep("lint", "npm", "run", "lint")
	lint.Optional = true
	return []CommandStep{
		NewCommandStep("node version", "sh", "-c", "echo node version: $(node --version)"),
		NewCommandStep("npm version", "sh", "-c", "echo npm version: $(npm --version)"),
		NewCommandStep("install", "npm", "ci", "--maxsockets", strconv.Itoa(maxSockets)),
		NewCommandStep("build", "npm", "run", "build"),
		lint,
	}
}

// DefaultPipeline returns the Node.js install/build/lint pipeline.
func DefaultPipeline() Pipeline {
	p := From(DefaultImageTemplate).WithWorkdir(DefaultSourcePath)
	for _, c := range DefaultCaches(DefaultSourcePath) {
		p = p.WithCache(c.Purpose, c.MountPath)
	}
	for _, name := range DefaultPassthroughEnv {
		p = p.WithEnv(name, Placeholder(name))
	}
	for _, s := range DefaultSteps(DefaultMaxSockets) {
		p = p.WithExec(s)
	}
	return p
}

// DefaultDefinition returns the built-in matrix used when no config file exists.
func DefaultDefinition() Definition {
	versions := make([]string, len(DefaultVersions))
	copy(versions, DefaultVersions)
	return Definition{
		Versions:  versions,
		Namespace: DefaultCacheNamespace,
		Pipeline:  DefaultPipeline(),
		Policy:    FailAtEnd,
		Provider:  ProviderDagger,
	}
}
