package pdf

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// watermarkDescription places fully transparent Helvetica text at the
// bottom-left corner of every page.
const watermarkDescription = "fontname:Helvetica, points:12, position:bl, offset:0 0, rotation:0, scalefactor:1 abs, opacity:0"

var ErrPageCountMismatch = errors.New("stamped document page count differs from input")

// Stamper overlays an invisible text stamp on finished documents.
type Stamper struct {
	text   string
	conf   *model.Configuration
	logger *slog.Logger
}

func NewStamper(text string, logger *slog.Logger) *Stamper {
	if logger == nil {
		logger = slog.Default()
	}
	return &Stamper{text: text, conf: newConfiguration(), logger: logger}
}

// Stamp writes a copy of in with the stamp on every page to out.
func (s *Stamper) Stamp(in, out string) error {
	before, err := api.PageCountFile(in)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", in, err)
	}
	if err := api.AddTextWatermarksFile(in, out, nil, true, s.text, watermarkDescription, s.conf); err != nil {
		return fmt.Errorf("failed to stamp %s: %w", in, err)
	}
	after, err := api.PageCountFile(out)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", out, err)
	}
	if before != after {
		return fmt.Errorf("%w: %d != %d", ErrPageCountMismatch, after, before)
	}
	s.logger.Debug("Document stamped.", "input", in, "output", out, "pages", after)
	return nil
}
