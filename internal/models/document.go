package models

// UnitState is the lifecycle state of one document unit within a batch run.
type UnitState string

const (
	StatePending     UnitState = "pending"
	StateSkipped     UnitState = "skipped"
	StateBuilt       UnitState = "built"
	StateQuarantined UnitState = "quarantined"
	StatePublished   UnitState = "published"
	StateFailed      UnitState = "failed"
)

// IsTerminal reports whether no further transition is allowed from s.
func (s UnitState) IsTerminal() bool {
	switch s {
	case StateSkipped, StateQuarantined, StatePublished, StateFailed:
		return true
	}
	return false
}

// DocumentUnit represents one patent page directory that maps to exactly one
// output PDF. Issued is inherited from the volume the unit was found in.
type DocumentUnit struct {
	UnitID string    `json:"unitId"`
	Dir    string    `json:"dir"`
	Issued bool      `json:"issued"`
	Pages  []string  `json:"pages,omitempty"`
	State  UnitState `json:"state"`
}

// Volume is one requested source directory (a CD image) holding many units.
type Volume struct {
	Name     string `json:"name"`
	Issued   bool   `json:"issued"`
	Sequence int    `json:"sequence"`
}

// BatchJob is created once per invocation. Errors is appended in processing
// order by the unit currently being processed and reported at job end.
type BatchJob struct {
	Volumes       []string `json:"volumes"`
	TargetFolder  string   `json:"targetFolder"`
	ResumeOnError bool     `json:"resumeOnError"`
	Errors        []string `json:"errors,omitempty"`
}
