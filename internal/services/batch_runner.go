package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/Lllllllleong/tipopdf/internal/config"
	"github.com/Lllllllleong/tipopdf/internal/failure"
	"github.com/Lllllllleong/tipopdf/internal/fsutil"
	"github.com/Lllllllleong/tipopdf/internal/imaging"
	"github.com/Lllllllleong/tipopdf/internal/metrics"
	"github.com/Lllllllleong/tipopdf/internal/models"
	"github.com/Lllllllleong/tipopdf/internal/pdf"
)

// Processor handles one document unit.
type Processor interface {
	Process(ctx context.Context, unit *models.DocumentUnit, dstDir string) (models.UnitResult, error)
}

type textfileWriter interface {
	WriteTextfile(path string) error
}

// BatchRunner processes every unit of the requested volumes, one at a time
// and in name order.
type BatchRunner struct {
	opts      config.Options
	processor Processor
	reporter  Reporter
	recorder  metrics.Recorder
	logger    *slog.Logger
}

func NewBatchRunner(opts config.Options, processor Processor, reporter Reporter, recorder metrics.Recorder, logger *slog.Logger) *BatchRunner {
	if reporter == nil {
		reporter = NopReporter{}
	}
	if recorder == nil {
		recorder = metrics.NoopRecorder{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &BatchRunner{
		opts:      opts,
		processor: processor,
		reporter:  reporter,
		recorder:  recorder,
		logger:    logger,
	}
}

// NewProcessor wires the normalizer, assembler and stamper configured by
// opts into a UnitProcessor.
func NewProcessor(opts config.Options, logger *slog.Logger) *UnitProcessor {
	normalizer := imaging.NewNormalizer(opts.SizeDiffThreshold, logger)
	assembler := pdf.NewAssembler(normalizer, opts.IgnoreExtensions, opts.PageSize, logger)
	stamper := pdf.NewStamper(opts.WatermarkText, logger)
	return NewUnitProcessor(assembler, stamper, opts.SkipIfExists, logger)
}

// Run validates every requested volume against the target folder, then
// processes their units. Validation failures abort before any file is
// touched. An infrastructure failure aborts the run unless ResumeOnError is
// set. The returned report is never nil.
func (r *BatchRunner) Run(ctx context.Context) (*models.BatchReport, error) {
	report := &models.BatchReport{
		RunID:        uuid.NewString(),
		TargetFolder: r.opts.TargetFolder,
		Volumes:      r.opts.Volumes,
		StartedAt:    time.Now(),
	}
	job := &models.BatchJob{
		Volumes:       r.opts.Volumes,
		TargetFolder:  r.opts.TargetFolder,
		ResumeOnError: r.opts.ResumeOnError,
	}
	logCtx := r.logger.With("runId", report.RunID, "targetFolder", r.opts.TargetFolder)
	logCtx.Info("Starting batch.", "volumes", r.opts.Volumes, "skip", r.opts.Skip)

	err := r.run(ctx, logCtx, report, job)
	if err != nil {
		report.Aborted = true
		if failure.IsValidation(err) {
			logCtx.Error("Volumes do not belong in the target folder, nothing processed.", "error", err)
		} else {
			logCtx.Error("Batch aborted.", "error", err)
		}
	}
	report.Errors = job.Errors
	report.FinishedAt = time.Now()
	r.reporter.Summary(job.Errors)

	if ferr := r.writeOutputs(report); ferr != nil {
		logCtx.Error("Failed to write run outputs.", "error", ferr)
		err = errors.Join(err, ferr)
	}
	logCtx.Info("Batch finished.",
		"published", report.Count(models.StatePublished),
		"skipped", report.Count(models.StateSkipped),
		"quarantined", report.Count(models.StateQuarantined),
		"failed", report.Count(models.StateFailed),
		"aborted", report.Aborted)
	return report, err
}

func (r *BatchRunner) run(ctx context.Context, logCtx *slog.Logger, report *models.BatchReport, job *models.BatchJob) error {
	volumes, err := ValidateVolumes(r.opts.Volumes, r.opts.TargetFolder)
	if err != nil {
		return err
	}

	dstDir := filepath.Join(r.opts.DstPrefix, r.opts.TargetFolder)
	if err := os.MkdirAll(dstDir, 0o755); err != nil {
		return fmt.Errorf("failed to create target folder: %w", err)
	}

	for _, v := range volumes {
		volCtx := logCtx.With("volume", v.Name)
		units, err := listUnits(filepath.Join(r.opts.SrcPrefix, v.Name), v)
		if err != nil {
			if !r.opts.ResumeOnError {
				return err
			}
			r.appendError(job, fmt.Sprintf("%s\n\t%v", v.Name, err))
			volCtx.Error("Failed to list volume, continuing.", "error", err)
			continue
		}
		volCtx.Info("Processing volume.", "units", len(units))

		// The progress index and the skip count restart with every volume.
		index := 0
		for i := range units {
			if err := ctx.Err(); err != nil {
				return err
			}
			unit := &units[i]
			index++
			if index <= r.opts.Skip {
				unit.State = models.StateSkipped
				report.Units = append(report.Units, models.UnitResult{
					Index:      index,
					UnitID:     unit.UnitID,
					OutputPath: PathsFor(dstDir, unit.UnitID).Final,
					State:      models.StateSkipped,
				})
				r.recorder.IncUnitOutcome(string(models.StateSkipped))
				r.reporter.UnitSkipped(index, unit.UnitID)
				continue
			}

			start := time.Now()
			res, err := r.processor.Process(ctx, unit, dstDir)
			res.Index = index
			res.Duration = time.Since(start)
			report.Units = append(report.Units, res)
			r.record(res)
			if res.Diagnostic != "" {
				r.appendError(job, res.Diagnostic)
			}
			r.reporter.UnitDone(res)

			if err != nil && !r.opts.ResumeOnError {
				return fmt.Errorf("unit %s: %w", unit.UnitID, err)
			}
		}
	}
	return nil
}

func (r *BatchRunner) appendError(job *models.BatchJob, diagnostic string) {
	job.Errors = append(job.Errors, diagnostic)
	r.recorder.IncBatchErrors()
}

func (r *BatchRunner) record(res models.UnitResult) {
	r.recorder.IncUnitOutcome(string(res.State))
	r.recorder.ObserveUnitDuration(string(res.State), res.Duration)
	if res.State == models.StatePublished {
		r.recorder.AddPages(res.Pages)
	}
	for action, n := range res.Normalized {
		r.recorder.IncNormalization(action, n)
	}
}

// listUnits returns the unit directories of a volume in name order.
// Correction directories are not units.
func listUnits(volumeDir string, v models.Volume) ([]models.DocumentUnit, error) {
	entries, err := os.ReadDir(volumeDir)
	if err != nil {
		return nil, fmt.Errorf("failed to list volume %s: %w", volumeDir, err)
	}
	var units []models.DocumentUnit
	for _, e := range entries {
		if !e.IsDir() || strings.HasSuffix(strings.ToLower(e.Name()), "corrections") {
			continue
		}
		units = append(units, models.DocumentUnit{
			UnitID: e.Name(),
			Dir:    filepath.Join(volumeDir, e.Name()),
			Issued: v.Issued,
			State:  models.StatePending,
		})
	}
	return units, nil
}

// writeOutputs writes the run report and the metrics textfile side by side.
func (r *BatchRunner) writeOutputs(report *models.BatchReport) error {
	var eg errgroup.Group
	if r.opts.ReportFile != "" {
		eg.Go(func() error {
			content, err := json.MarshalIndent(report, "", "  ")
			if err != nil {
				return fmt.Errorf("failed to marshal run report: %w", err)
			}
			return fsutil.WriteFileAtomically(r.opts.ReportFile, content)
		})
	}
	if w, ok := r.recorder.(textfileWriter); ok && r.opts.MetricsFile != "" {
		eg.Go(func() error {
			return w.WriteTextfile(r.opts.MetricsFile)
		})
	}
	return eg.Wait()
}
