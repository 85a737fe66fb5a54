package domain

import "time"

// EntryRecord is the persisted summary of one matrix entry.
type EntryRecord struct {
	Version    string        `json:"version"`
	Image      string        `json:"image"`
	State      EntryState    `json:"state"`
	FailedStep int           `json:"failedStep"`
	ExitCode   int           `json:"exitCode"`
	Error      string        `json:"error,omitempty"`
	Duration   time.Duration `json:"duration"`
}

// RunRecord is the persisted summary of one matrix run.
type RunRecord struct {
	ID         string        `json:"id"`
	StartedAt  time.Time     `json:"startedAt"`
	FinishedAt time.Time     `json:"finishedAt"`
	Provider   string        `json:"provider"`
	Policy     FailurePolicy `json:"policy"`
	Succeeded  bool          `json:"succeeded"`
	Entries    []EntryRecord `json:"entries"`
	Artifacts  []string      `json:"artifacts,omitempty"`
}

// NewRunRecord summarizes report as a run record.
func NewRunRecord(id string, started, finished time.Time, provider string, policy FailurePolicy, report MatrixReport) RunRecord {
	rec := RunRecord{
		ID:         id,
		StartedAt:  started,
		FinishedAt: finished,
		Provider:   provider,
		Policy:     policy,
		Succeeded:  report.Succeeded(),
		Entries:    make([]EntryRecord, 0, len(report.Results)),
	}
	for _, r := range report.Results {
		entry := EntryRecord{
			Version:    r.Target.RuntimeVersion,
			Image:      r.Target.BaseImage,
			State:      r.State,
			FailedStep: r.FailedStep,
			ExitCode:   r.ExitCode,
			Duration:   r.Duration,
		}
		if r.Err != nil {
			entry.Error = r.Err.Error()
		}
		rec.Entries = append(rec.Entries, entry)
	}
	return rec
}
