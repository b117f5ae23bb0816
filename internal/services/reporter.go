package services

import (
	"fmt"
	"io"

	"github.com/Lllllllleong/tipopdf/internal/models"
)

// Reporter receives user-facing progress from a batch run.
type Reporter interface {
	UnitDone(res models.UnitResult)
	UnitSkipped(index int, unitID string)
	Summary(errors []string)
}

// TextReporter prints one progress line per unit and the error list at the
// end of the run.
type TextReporter struct {
	w io.Writer
}

func NewTextReporter(w io.Writer) *TextReporter {
	return &TextReporter{w: w}
}

func (r *TextReporter) UnitDone(res models.UnitResult) {
	var outcome string
	switch res.State {
	case models.StatePublished:
		outcome = "ok"
	case models.StateSkipped:
		outcome = "exists, skipping!"
	default:
		outcome = string(res.State)
	}
	fmt.Fprintf(r.w, "[%04d] %s %s\n", res.Index, res.OutputPath, outcome)
}

func (r *TextReporter) UnitSkipped(index int, unitID string) {
	fmt.Fprintf(r.w, "[%04d] %s skipped\n", index, unitID)
}

func (r *TextReporter) Summary(errors []string) {
	if len(errors) == 0 {
		return
	}
	fmt.Fprintf(r.w, "Error List (%d):\n", len(errors))
	for _, e := range errors {
		fmt.Fprintln(r.w, e)
	}
}

// NopReporter discards all progress.
type NopReporter struct{}

func (NopReporter) UnitDone(models.UnitResult) {}
func (NopReporter) UnitSkipped(int, string)    {}
func (NopReporter) Summary([]string)           {}
