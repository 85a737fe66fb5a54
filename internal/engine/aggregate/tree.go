package aggregate

import (
	"fmt"
	"os"
	"path/filepath"

	"go.trai.ch/matrix/internal/core/domain"
	"go.trai.ch/zerr"
	"gopkg.in/yaml.v3"
)

type stepDoc struct {
	Name     string   `yaml:"name"`
	Argv     []string `yaml:"argv,flow"`
	ExitCode int      `yaml:"exitCode"`
	Duration string   `yaml:"duration"`
}

type resultDoc struct {
	Version    string            `yaml:"version"`
	Image      string            `yaml:"image"`
	State      domain.EntryState `yaml:"state"`
	ExitCode   int               `yaml:"exitCode"`
	FailedStep int               `yaml:"failedStep"`
	Error      string            `yaml:"error,omitempty"`
	Duration   string            `yaml:"duration"`
	Steps      []stepDoc         `yaml:"steps,omitempty"`
	Artifacts  []string          `yaml:"artifacts,omitempty"`
}

type summaryEntry struct {
	Version  string            `yaml:"version"`
	State    domain.EntryState `yaml:"state"`
	ExitCode int               `yaml:"exitCode"`
}

type summaryDoc struct {
	Succeeded bool           `yaml:"succeeded"`
	Counts    Counts         `yaml:"counts"`
	Entries   []summaryEntry `yaml:"entries"`
}

func newResultDoc(res domain.BuildResult) resultDoc {
	doc := resultDoc{
		Version:    res.Version(),
		Image:      res.Target.BaseImage,
		State:      res.State,
		ExitCode:   res.ExitCode,
		FailedStep: res.FailedStep,
		Duration:   formatDuration(res.Duration),
		Artifacts:  res.ArtifactPaths,
	}
	if res.Err != nil {
		doc.Error = res.Err.Error()
	}
	for _, s := range res.Steps {
		doc.Steps = append(doc.Steps, stepDoc{
			Name:     s.Name,
			Argv:     s.Argv,
			ExitCode: s.ExitCode,
			Duration: formatDuration(s.Duration),
		})
	}
	return doc
}

// WriteTree writes <dir>/<version>/{stdout.log,stderr.log,result.yaml} for
// every entry and <dir>/summary.yaml for the whole report.
func WriteTree(r Report, dir string) error {
	summary := summaryDoc{Succeeded: r.Succeeded(), Counts: r.Counts()}

	for _, res := range r.results {
		entryDir := domain.EntryDir(dir, res.Version())
		if err := os.MkdirAll(entryDir, domain.DirPerm); err != nil {
			return writeError(err, entryDir)
		}

		if err := writeFile(filepath.Join(entryDir, domain.StdoutLogName), []byte(res.Stdout)); err != nil {
			return err
		}
		if err := writeFile(filepath.Join(entryDir, domain.StderrLogName), []byte(res.Stderr)); err != nil {
			return err
		}
		if err := writeYAML(filepath.Join(entryDir, domain.ResultFileName), newResultDoc(res)); err != nil {
			return err
		}

		summary.Entries = append(summary.Entries, summaryEntry{
			Version:  res.Version(),
			State:    res.State,
			ExitCode: res.ExitCode,
		})
	}

	if err := os.MkdirAll(dir, domain.DirPerm); err != nil {
		return writeError(err, dir)
	}
	return writeYAML(filepath.Join(dir, domain.SummaryFileName), summary)
}

func writeYAML(path string, v any) error {
	data, err := yaml.Marshal(v)
	if err != nil {
		return writeError(err, path)
	}
	return writeFile(path, data)
}

func writeFile(path string, data []byte) error {
	if err := os.WriteFile(path, data, domain.FilePerm); err != nil {
		return writeError(err, path)
	}
	return nil
}

func writeError(err error, path string) error {
	return zerr.With(fmt.Errorf("%w: %w", domain.ErrReportWriteFailed, err), "path", path)
}
