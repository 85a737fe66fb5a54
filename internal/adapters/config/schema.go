package config

import (
	"gopkg.in/yaml.v3"
)

// Matrixfile represents the structure of the matrix.yaml configuration file.
type Matrixfile struct {
	Versions    []string          `yaml:"versions"`
	Image       string            `yaml:"image"`
	Workdir     string            `yaml:"workdir"`
	Namespace   string            `yaml:"namespace"`
	Policy      string            `yaml:"policy"`
	Parallelism int               `yaml:"parallelism"`
	Provider    string            `yaml:"provider"`
	MaxSockets  int               `yaml:"maxSockets"`
	Lint        *bool             `yaml:"lint"`
	Caches      map[string]string `yaml:"caches"`
	Env         map[string]string `yaml:"env"`
	Steps       []StepDTO         `yaml:"steps"`
	Artifacts   []ArtifactDTO     `yaml:"artifacts"`
	Publish     *PublishDTO       `yaml:"publish"`
	History     HistoryDTO        `yaml:"history"`
}

// StepDTO represents a pipeline step in the configuration.
type StepDTO struct {
	Name     string     `yaml:"name"`
	Cmd      CommandDTO `yaml:"cmd"`
	Stdout   string     `yaml:"stdout"`
	Stderr   string     `yaml:"stderr"`
	Optional bool       `yaml:"optional"`
}

// CommandDTO holds a step command written either as a list or as one shell-quoted line.
type CommandDTO struct {
	Argv []string
	Line string
}

// UnmarshalYAML accepts a scalar line or a sequence of arguments.
func (c *CommandDTO) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		c.Line = node.Value
		return nil
	}
	return node.Decode(&c.Argv)
}

// ArtifactDTO represents an exported directory in the configuration.
type ArtifactDTO struct {
	Path    string   `yaml:"path"`
	Include []string `yaml:"include"`
}

// PublishDTO represents the object store settings in the configuration.
type PublishDTO struct {
	Endpoint string `yaml:"endpoint"`
	Bucket   string `yaml:"bucket"`
	Prefix   string `yaml:"prefix"`
	Region   string `yaml:"region"`
	UseSSL   bool   `yaml:"useSSL"`
}

// HistoryDTO represents the run history settings in the configuration.
type HistoryDTO struct {
	DSN string `yaml:"dsn"`
}
