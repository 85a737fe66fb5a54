package domain

import (
	"encoding/hex"
	"path/filepath"
)

const (
	// StateDirName is the name of the internal state directory under the source root.
	StateDirName = ".matrix"

	// RunsDirName holds one directory per run.
	RunsDirName = "runs"

	// CacheDirName holds the cache volumes of the local provider.
	CacheDirName = "cache"

	// SandboxDirName holds the isolated source copies of the local provider.
	SandboxDirName = "sandboxes"

	// HistoryDirName holds the file-backed run history.
	HistoryDirName = "history"

	// ArtifactsDirName is the per-entry directory exported artifacts are placed in.
	ArtifactsDirName = "artifacts"

	// ConfigFileName is the name of the matrix configuration file.
	ConfigFileName = "matrix.yaml"

	// StdoutLogName and StderrLogName are the per-entry stream logs of a report tree.
	StdoutLogName = "stdout.log"
	StderrLogName = "stderr.log"

	// ResultFileName is the per-entry result document of a report tree.
	ResultFileName = "result.yaml"

	// SummaryFileName is the top-level summary of a report tree.
	SummaryFileName = "summary.yaml"

	// DirPerm is the default permission for directories (rwxr-x---).
	DirPerm = 0o750

	// FilePerm is the default permission for files (rw-r--r--).
	FilePerm = 0o644
)

// DefaultStatePath returns the state directory relative to the source root.
func DefaultStatePath() string {
	return StateDirName
}

// DefaultRunsPath joins .matrix and runs.
func DefaultRunsPath() string {
	return filepath.Join(StateDirName, RunsDirName)
}

// DefaultCachePath joins .matrix and cache.
func DefaultCachePath() string {
	return filepath.Join(StateDirName, CacheDirName)
}

// DefaultSandboxPath joins .matrix and sandboxes.
func DefaultSandboxPath() string {
	return filepath.Join(StateDirName, SandboxDirName)
}

// DefaultHistoryPath joins .matrix and history.
func DefaultHistoryPath() string {
	return filepath.Join(StateDirName, HistoryDirName)
}

// EntryDir returns the output directory of version inside a run directory.
// A malformed selector is hex encoded behind a leading underscore, which no
// valid selector starts with, so it can neither escape runDir nor collide.
func EntryDir(runDir, version string) string {
	if ValidateVersion(version) != nil {
		return filepath.Join(runDir, "_"+hex.EncodeToString([]byte(version)))
	}
	return filepath.Join(runDir, version)
}
