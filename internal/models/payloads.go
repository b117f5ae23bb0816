package models

import "time"

// These structs define the JSON run report written at the end of a batch.

// UnitResult is the outcome of processing one document unit.
type UnitResult struct {
	Index      int            `json:"index"`
	UnitID     string         `json:"unitId"`
	OutputPath string         `json:"outputPath"`
	State      UnitState      `json:"state"`
	Pages      int            `json:"pages,omitempty"`
	Normalized map[string]int `json:"normalized,omitempty"`
	SHA256     string         `json:"sha256,omitempty"`
	Diagnostic string         `json:"diagnostic,omitempty"`
	Duration   time.Duration  `json:"durationNs,omitempty"`
}

// BatchReport summarises a whole batch run.
type BatchReport struct {
	RunID        string       `json:"runId"`
	TargetFolder string       `json:"targetFolder"`
	Volumes      []string     `json:"volumes"`
	StartedAt    time.Time    `json:"startedAt"`
	FinishedAt   time.Time    `json:"finishedAt"`
	Units        []UnitResult `json:"units"`
	Errors       []string     `json:"errors,omitempty"`
	Aborted      bool         `json:"aborted"`
}

// Count returns how many units ended in state s.
func (r *BatchReport) Count(s UnitState) int {
	n := 0
	for _, u := range r.Units {
		if u.State == s {
			n++
		}
	}
	return n
}
