package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/Lllllllleong/tipopdf/internal/failure"
	"github.com/Lllllllleong/tipopdf/internal/fsutil"
	"github.com/Lllllllleong/tipopdf/internal/models"
	"github.com/Lllllllleong/tipopdf/internal/pdf"
)

// ErrUnitFinished is returned when a unit that already reached a terminal
// state is processed again.
var ErrUnitFinished = errors.New("unit already finished")

// DocumentBuilder assembles the pages of a unit into one document.
type DocumentBuilder interface {
	Build(ctx context.Context, pageDir, outPath string, meta pdf.Metadata) (pdf.BuildStats, error)
}

// DocumentStamper writes a stamped copy of a document.
type DocumentStamper interface {
	Stamp(in, out string) error
}

// UnitPaths are the artifacts of one unit in the target folder.
type UnitPaths struct {
	Final      string
	Temp       string
	Stamped    string
	Quarantine string
}

func PathsFor(dstDir, unitID string) UnitPaths {
	final := filepath.Join(dstDir, "TW"+unitID+".pdf")
	return UnitPaths{
		Final:      final,
		Temp:       final + ".tmp",
		Stamped:    final + ".wm",
		Quarantine: final + ".err",
	}
}

// UnitProcessor runs one unit through build, stamp and publish. The final
// path is only ever written by renaming a fully stamped document onto it.
type UnitProcessor struct {
	builder      DocumentBuilder
	stamper      DocumentStamper
	skipIfExists bool
	logger       *slog.Logger
}

func NewUnitProcessor(builder DocumentBuilder, stamper DocumentStamper, skipIfExists bool, logger *slog.Logger) *UnitProcessor {
	if logger == nil {
		logger = slog.Default()
	}
	return &UnitProcessor{
		builder:      builder,
		stamper:      stamper,
		skipIfExists: skipIfExists,
		logger:       logger,
	}
}

// Process builds the unit into dstDir. Content failures quarantine the
// build and are reported through the result only; any other failure leaves
// the unit Failed and is returned.
func (p *UnitProcessor) Process(ctx context.Context, unit *models.DocumentUnit, dstDir string) (models.UnitResult, error) {
	paths := PathsFor(dstDir, unit.UnitID)
	logCtx := p.logger.With("unitId", unit.UnitID, "output", paths.Final)
	res := models.UnitResult{UnitID: unit.UnitID, OutputPath: paths.Final, State: unit.State}
	if unit.State.IsTerminal() {
		return res, fmt.Errorf("%w: %s is %s", ErrUnitFinished, unit.UnitID, unit.State)
	}

	if p.skipIfExists {
		exists, err := fsutil.Exists(paths.Final)
		if err != nil {
			return p.handleError(logCtx, unit, &res, paths, "failed to check for existing output", err)
		}
		if exists {
			p.transition(logCtx, unit, &res, models.StateSkipped)
			return res, nil
		}
	}

	for _, stale := range []string{paths.Temp, paths.Quarantine, paths.Stamped} {
		if err := fsutil.RemoveIfExists(stale); err != nil {
			return p.handleError(logCtx, unit, &res, paths, "failed to remove stale artifact", err)
		}
	}

	stats, err := p.builder.Build(ctx, unit.Dir, paths.Temp, pdf.MetadataFor(paths.Final))
	res.Pages = stats.Pages
	if len(stats.Actions) > 0 {
		res.Normalized = make(map[string]int, len(stats.Actions))
		for action, n := range stats.Actions {
			res.Normalized[string(action)] = n
		}
	}
	if err != nil {
		if failure.IsContent(err) {
			return p.quarantine(logCtx, unit, &res, paths, err)
		}
		return p.handleError(logCtx, unit, &res, paths, "failed to build document", err)
	}
	unit.Pages = stats.Files
	p.transition(logCtx, unit, &res, models.StateBuilt)

	if err := p.stamper.Stamp(paths.Temp, paths.Stamped); err != nil {
		return p.handleError(logCtx, unit, &res, paths, "failed to stamp document", err)
	}

	if err := fsutil.RemoveIfExists(paths.Temp); err != nil {
		return p.handleError(logCtx, unit, &res, paths, "failed to remove build artifact", err)
	}
	if err := fsutil.Publish(paths.Stamped, paths.Final); err != nil {
		return p.handleError(logCtx, unit, &res, paths, "failed to publish document", err)
	}

	fileHash, err := fsutil.FileHash(paths.Final)
	if err != nil {
		logCtx.Warn("Failed to calculate file hash.", "error", err)
	}
	res.SHA256 = fileHash
	p.transition(logCtx, unit, &res, models.StatePublished)
	return res, nil
}

// transition moves the unit to state to. A terminal state is never left.
func (p *UnitProcessor) transition(logCtx *slog.Logger, unit *models.DocumentUnit, res *models.UnitResult, to models.UnitState) {
	if unit.State.IsTerminal() {
		logCtx.Error("Refusing to change the state of a finished unit.", "from", unit.State, "to", to)
		res.State = unit.State
		return
	}
	logCtx.Info("Unit state changed.", "from", unit.State, "to", to)
	unit.State = to
	res.State = to
}

// quarantine moves the failed build aside under the .err suffix. A build
// that failed before writing anything gets the diagnostic as its .err file.
func (p *UnitProcessor) quarantine(logCtx *slog.Logger, unit *models.DocumentUnit, res *models.UnitResult, paths UnitPaths, cause error) (models.UnitResult, error) {
	exists, err := fsutil.Exists(paths.Temp)
	if err != nil {
		return p.handleError(logCtx, unit, res, paths, "failed to inspect build artifact", err)
	}
	if exists {
		err = fsutil.Publish(paths.Temp, paths.Quarantine)
	} else {
		err = fsutil.WriteFileAtomically(paths.Quarantine, []byte(cause.Error()+"\n"))
	}
	if err != nil {
		return p.handleError(logCtx, unit, res, paths, "failed to quarantine build", err)
	}

	res.Diagnostic = fmt.Sprintf("%s\n\t%v", paths.Quarantine, cause)
	logCtx.Warn("Build quarantined.", "quarantine", paths.Quarantine, "error", cause)
	p.transition(logCtx, unit, res, models.StateQuarantined)
	return *res, nil
}

// handleError marks the unit Failed. Temporary artifacts stay in place for
// inspection.
func (p *UnitProcessor) handleError(logCtx *slog.Logger, unit *models.DocumentUnit, res *models.UnitResult, paths UnitPaths, message string, originalErr error) (models.UnitResult, error) {
	logCtx.Error(message, "error", originalErr)
	res.Diagnostic = fmt.Sprintf("%s\n\t%s: %v", paths.Final, message, originalErr)
	p.transition(logCtx, unit, res, models.StateFailed)
	return *res, fmt.Errorf("%s: %w", message, originalErr)
}
