package services

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	lpdf "github.com/ledongthuc/pdf"
	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Lllllllleong/tipopdf/internal/config"
	"github.com/Lllllllleong/tipopdf/internal/failure"
	"github.com/Lllllllleong/tipopdf/internal/fax"
	"github.com/Lllllllleong/tipopdf/internal/metrics"
	"github.com/Lllllllleong/tipopdf/internal/models"
)

// layout creates <src>/<volume>/<unit> directories.
func layout(t *testing.T, volumes map[string][]string) (string, string) {
	t.Helper()
	src := filepath.Join(t.TempDir(), "tiff")
	dst := filepath.Join(t.TempDir(), "pdf")
	for vol, units := range volumes {
		for _, u := range units {
			require.NoError(t, os.MkdirAll(filepath.Join(src, vol, u), 0o755))
		}
		require.NoError(t, os.MkdirAll(filepath.Join(src, vol), 0o755))
	}
	return src, dst
}

func options(src, dst string, volumes ...string) config.Options {
	o := config.Defaults()
	o.SrcPrefix = src
	o.DstPrefix = dst
	o.Volumes = volumes
	o.TargetFolder = "201307"
	return o
}

func unitIDs(results []models.UnitResult) []string {
	var ids []string
	for _, r := range results {
		ids = append(ids, r.UnitID)
	}
	return ids
}

func TestRun_ValidationFailureTouchesNothing(t *testing.T) {
	src, dst := layout(t, map[string][]string{"PP1024020": {"I100"}})
	opts := options(src, dst, "PP1024020")
	opts.TargetFolder = "201301"
	proc := &scriptedProcessor{}

	report, err := NewBatchRunner(opts, proc, nil, nil, nil).Run(context.Background())
	require.ErrorIs(t, err, failure.ErrValidation)
	assert.True(t, report.Aborted)
	assert.Empty(t, proc.seen)
	assert.NoDirExists(t, dst)
}

func TestRun_ValidatesAllVolumesUpFront(t *testing.T) {
	src, dst := layout(t, map[string][]string{"PP1024020": {"I100"}, "PP1024030": {"I200"}})
	proc := &scriptedProcessor{}

	_, err := NewBatchRunner(options(src, dst, "PP1024020", "PP1024030"), proc, nil, nil, nil).Run(context.Background())
	require.ErrorIs(t, err, failure.ErrValidation)
	assert.Empty(t, proc.seen)
}

func TestRun_ProcessesUnitsInOrder(t *testing.T) {
	src, dst := layout(t, map[string][]string{
		"PP1024020": {"I102", "I100", "I101Corrections", "I101"},
		"PP1024021": {"I201", "I200"},
	})
	require.NoError(t, os.WriteFile(filepath.Join(src, "PP1024020", "index.txt"), nil, 0o644))
	opts := options(src, dst, "PP1024020", "PP1024021")
	opts.Skip = 1
	proc := &scriptedProcessor{}
	rep := &recordingReporter{}

	report, err := NewBatchRunner(opts, proc, rep, nil, nil).Run(context.Background())
	require.NoError(t, err)

	// The skip count applies to each volume.
	assert.Equal(t, []string{"I101", "I102", "I201"}, proc.seen)
	assert.Equal(t, []int{1, 1}, rep.skipped)
	assert.Equal(t, []string{"I100", "I101", "I102", "I200", "I201"}, unitIDs(report.Units))

	var indexes []int
	for _, u := range report.Units {
		indexes = append(indexes, u.Index)
	}
	assert.Equal(t, []int{1, 2, 3, 1, 2}, indexes)
	assert.Equal(t, models.StateSkipped, report.Units[0].State)
	assert.Equal(t, models.StateSkipped, report.Units[3].State)
	assert.Equal(t, 3, report.Count(models.StatePublished))
	assert.DirExists(t, filepath.Join(dst, "201307"))
	assert.False(t, report.Aborted)
	assert.NotEmpty(t, report.RunID)
}

func TestRun_QuarantineNeverAborts(t *testing.T) {
	src, dst := layout(t, map[string][]string{"PP1024020": {"I100", "I101", "I102"}})
	proc := &scriptedProcessor{outcomes: map[string]models.UnitState{
		"I100": models.StateQuarantined,
		"I102": models.StateQuarantined,
	}}
	rep := &recordingReporter{}

	report, err := NewBatchRunner(options(src, dst, "PP1024020"), proc, rep, nil, nil).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"I100", "I101", "I102"}, proc.seen)

	out := filepath.Join(dst, "201307")
	want := []string{
		filepath.Join(out, "TWI100.pdf.err") + "\n\tbad page",
		filepath.Join(out, "TWI102.pdf.err") + "\n\tbad page",
	}
	assert.Equal(t, want, report.Errors)
	assert.Equal(t, want, rep.summary)
}

func TestRun_InfrastructureFailureAborts(t *testing.T) {
	src, dst := layout(t, map[string][]string{"PP1024020": {"I100", "I101", "I102"}})
	proc := &scriptedProcessor{outcomes: map[string]models.UnitState{"I101": models.StateFailed}}
	rep := &recordingReporter{}

	report, err := NewBatchRunner(options(src, dst, "PP1024020"), proc, rep, nil, nil).Run(context.Background())
	require.ErrorIs(t, err, errDiskFull)
	assert.True(t, report.Aborted)
	assert.Equal(t, []string{"I100", "I101"}, proc.seen)
	assert.Len(t, report.Errors, 1)
	assert.Len(t, rep.summary, 1, "the error list is reported even when aborting")
}

func TestRun_ResumeOnError(t *testing.T) {
	src, dst := layout(t, map[string][]string{"PP1024020": {"I100", "I101", "I102"}})
	opts := options(src, dst, "PP1024020", "PP1024021")
	opts.ResumeOnError = true
	proc := &scriptedProcessor{outcomes: map[string]models.UnitState{"I101": models.StateFailed}}

	report, err := NewBatchRunner(opts, proc, nil, nil, nil).Run(context.Background())
	require.NoError(t, err)
	assert.False(t, report.Aborted)
	assert.Equal(t, []string{"I100", "I101", "I102"}, proc.seen)
	// Two diagnostics: the failed unit, then the missing PP1024021 volume.
	require.Len(t, report.Errors, 2)
	assert.Contains(t, report.Errors[0], "disk full")
	assert.Contains(t, report.Errors[1], "PP1024021")
}

func TestRun_MissingVolumeAbortsWithoutResume(t *testing.T) {
	src, dst := layout(t, map[string][]string{})
	_, err := NewBatchRunner(options(src, dst, "PP1024020"), &scriptedProcessor{}, nil, nil, nil).Run(context.Background())
	require.Error(t, err)
	assert.False(t, failure.IsValidation(err))
}

func TestRun_CancelledBetweenUnits(t *testing.T) {
	src, dst := layout(t, map[string][]string{"PP1024020": {"I100", "I101"}})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	proc := &scriptedProcessor{}

	report, err := NewBatchRunner(options(src, dst, "PP1024020"), proc, nil, nil, nil).Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.True(t, report.Aborted)
	assert.Empty(t, proc.seen)
}

func TestRun_WritesReportAndMetrics(t *testing.T) {
	src, dst := layout(t, map[string][]string{"PP1024020": {"I100", "I101"}})
	opts := options(src, dst, "PP1024020")
	opts.ReportFile = filepath.Join(t.TempDir(), "report.json")
	opts.MetricsFile = filepath.Join(t.TempDir(), "tipopdf.prom")
	proc := &scriptedProcessor{outcomes: map[string]models.UnitState{"I101": models.StateQuarantined}}
	recorder := metrics.NewPrometheusRecorder(prom.NewRegistry())

	_, err := NewBatchRunner(opts, proc, nil, recorder, nil).Run(context.Background())
	require.NoError(t, err)

	raw, err := os.ReadFile(opts.ReportFile)
	require.NoError(t, err)
	var report models.BatchReport
	require.NoError(t, json.Unmarshal(raw, &report))
	assert.Equal(t, "201307", report.TargetFolder)
	assert.Equal(t, []string{"I100", "I101"}, unitIDs(report.Units))
	assert.Len(t, report.Errors, 1)

	text, err := os.ReadFile(opts.MetricsFile)
	require.NoError(t, err)
	assert.Contains(t, string(text), `tipopdf_unit_outcomes_total{state="published"} 1`)
	assert.Contains(t, string(text), `tipopdf_unit_outcomes_total{state="quarantined"} 1`)
	assert.Contains(t, string(text), `tipopdf_pages_assembled_total 3`)
	assert.Contains(t, string(text), `tipopdf_batch_errors_total 1`)
}

func writePage(t *testing.T, dir, name string) {
	t.Helper()
	bm := fax.NewBitmap(100, 140)
	for y := 10; y < 130; y += 4 {
		for x := 10; x < 90; x++ {
			bm.Set(x, y, true)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, fax.Encode(&buf, bm, nil))
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), buf.Bytes(), 0o644))
}

func TestRun_EndToEnd(t *testing.T) {
	src, dst := layout(t, map[string][]string{"PP1024020": {"I100", "I101"}})
	good := filepath.Join(src, "PP1024020", "I100")
	writePage(t, good, "PN-0101-001.tif")
	writePage(t, good, "PN-0102-001.tif")
	writePage(t, good, "PN-0101-001-20130701.tif")
	bad := filepath.Join(src, "PP1024020", "I101")
	writePage(t, bad, "PN-0101-001.tif")
	require.NoError(t, os.WriteFile(filepath.Join(bad, "PN-0101-002.jpg"), []byte("garbage"), 0o644))

	opts := options(src, dst, "PP1024020")
	var out bytes.Buffer
	report, err := NewBatchRunner(opts, NewProcessor(opts, nil), NewTextReporter(&out), nil, nil).Run(context.Background())
	require.NoError(t, err)

	outDir := filepath.Join(dst, "201307")
	published := filepath.Join(outDir, "TWI100.pdf")
	f, r, err := lpdf.Open(published)
	require.NoError(t, err)
	defer f.Close()
	assert.Equal(t, 3, r.NumPage())

	assert.FileExists(t, filepath.Join(outDir, "TWI101.pdf.err"))
	assert.NoFileExists(t, filepath.Join(outDir, "TWI101.pdf"))
	assert.Equal(t, 1, report.Count(models.StatePublished))
	assert.Equal(t, 1, report.Count(models.StateQuarantined))
	assert.Contains(t, out.String(), "[0001] "+published+" ok")

	// A second run skips the published unit and retries the quarantined one.
	report, err = NewBatchRunner(opts, NewProcessor(opts, nil), nil, nil, nil).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, models.StateSkipped, report.Units[0].State)
	assert.Equal(t, models.StateQuarantined, report.Units[1].State)
}
