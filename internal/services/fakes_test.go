package services

import (
	"context"
	"errors"
	"os"

	"github.com/Lllllllleong/tipopdf/internal/imaging"
	"github.com/Lllllllleong/tipopdf/internal/models"
	"github.com/Lllllllleong/tipopdf/internal/pdf"
)

// fakeBuilder writes content to the output path, then returns err.
type fakeBuilder struct {
	content   string
	skipWrite bool
	err       error
	calls     []string
	metas     []pdf.Metadata
	onBuild   func(outPath string)
}

func (b *fakeBuilder) Build(_ context.Context, pageDir, outPath string, meta pdf.Metadata) (pdf.BuildStats, error) {
	b.calls = append(b.calls, pageDir)
	b.metas = append(b.metas, meta)
	if b.onBuild != nil {
		b.onBuild(outPath)
	}
	if !b.skipWrite {
		if err := os.WriteFile(outPath, []byte(b.content), 0o644); err != nil {
			return pdf.BuildStats{}, err
		}
	}
	if b.err != nil {
		return pdf.BuildStats{}, b.err
	}
	return pdf.BuildStats{
		Pages:   2,
		Files:   []string{pageDir + "/a.tif", pageDir + "/b.tif"},
		Actions: map[imaging.Action]int{imaging.ActionUnchanged: 2},
	}, nil
}

// fakeStamper copies in to out with a suffix.
type fakeStamper struct {
	err error
}

func (s *fakeStamper) Stamp(in, out string) error {
	if s.err != nil {
		return s.err
	}
	b, err := os.ReadFile(in)
	if err != nil {
		return err
	}
	return os.WriteFile(out, append(b, []byte("+stamp")...), 0o644)
}

// scriptedProcessor returns canned outcomes per unit id.
type scriptedProcessor struct {
	outcomes map[string]models.UnitState
	seen     []string
}

var errDiskFull = errors.New("disk full")

func (p *scriptedProcessor) Process(_ context.Context, unit *models.DocumentUnit, dstDir string) (models.UnitResult, error) {
	p.seen = append(p.seen, unit.UnitID)
	paths := PathsFor(dstDir, unit.UnitID)
	state, ok := p.outcomes[unit.UnitID]
	if !ok {
		state = models.StatePublished
	}
	unit.State = state
	res := models.UnitResult{UnitID: unit.UnitID, OutputPath: paths.Final, State: state}
	switch state {
	case models.StatePublished:
		res.Pages = 3
		res.Normalized = map[string]int{"unchanged": 3}
	case models.StateQuarantined:
		res.Diagnostic = paths.Quarantine + "\n\tbad page"
	case models.StateFailed:
		res.Diagnostic = paths.Final + "\n\t" + errDiskFull.Error()
		return res, errDiskFull
	}
	return res, nil
}

type recordingReporter struct {
	done    []models.UnitResult
	skipped []int
	summary []string
}

func (r *recordingReporter) UnitDone(res models.UnitResult)  { r.done = append(r.done, res) }
func (r *recordingReporter) UnitSkipped(index int, _ string) { r.skipped = append(r.skipped, index) }
func (r *recordingReporter) Summary(errors []string)         { r.summary = errors }
