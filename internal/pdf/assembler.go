package pdf

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"

	"github.com/Lllllllleong/tipopdf/internal/failure"
	"github.com/Lllllllleong/tipopdf/internal/imaging"
	"github.com/Lllllllleong/tipopdf/internal/pagekey"
)

const (
	DefaultPageSize = "A4"

	Author  = "InnoVue Corp."
	Creator = "Webpat Pdf Builder 2022"
)

// PageDim returns the dimensions in points of a named paper size.
func PageDim(name string) (*types.Dim, error) {
	dim, ok := types.PaperSize[name]
	if !ok {
		return nil, fmt.Errorf("unknown page size %q", name)
	}
	return dim, nil
}

// Formats the document writer can embed.
var embeddable = map[string]bool{"jpeg": true, "png": true, "tiff": true, "webp": true}

// Metadata is written to the document information dictionary.
type Metadata struct {
	Title    string
	Subject  string
	Keywords string
	Author   string
	Creator  string
}

// MetadataFor derives the metadata of an artifact from its file name.
func MetadataFor(artifactPath string) Metadata {
	name := strings.TrimSuffix(filepath.Base(artifactPath), filepath.Ext(artifactPath))
	return Metadata{Title: name, Subject: name, Keywords: name, Author: Author, Creator: Creator}
}

// BuildStats describes a finished build.
type BuildStats struct {
	Pages   int
	Files   []string
	Actions map[imaging.Action]int
}

// PageNormalizer is the part of imaging.Normalizer the assembler uses.
type PageNormalizer interface {
	Normalize(path string) (imaging.Result, error)
}

type Assembler struct {
	normalizer PageNormalizer
	ignore     []string
	pageSize   string
	logger     *slog.Logger
}

func NewAssembler(normalizer PageNormalizer, ignore []string, pageSize string, logger *slog.Logger) *Assembler {
	if pageSize == "" {
		pageSize = DefaultPageSize
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Assembler{
		normalizer: normalizer,
		ignore:     ignore,
		pageSize:   pageSize,
		logger:     logger,
	}
}

func newConfiguration() *model.Configuration {
	cfg := model.NewDefaultConfiguration()
	cfg.ValidationMode = model.ValidationRelaxed
	return cfg
}

// Build assembles the page images in pageDir into a document at outPath.
// The output file is created before anything else, so a failed build always
// leaves a file behind. Pages are normalized and embedded one at a time, and
// the first bad page stops the build before later pages are touched. Bad
// page data is reported as a content failure naming the page.
func (a *Assembler) Build(_ context.Context, pageDir, outPath string, meta Metadata) (BuildStats, error) {
	logCtx := a.logger.With("pageDir", pageDir, "output", outPath)
	stats := BuildStats{Actions: map[imaging.Action]int{}}

	dim, err := PageDim(a.pageSize)
	if err != nil {
		return stats, err
	}

	out, err := os.Create(outPath)
	if err != nil {
		return stats, fmt.Errorf("failed to create %s: %w", outPath, err)
	}
	defer out.Close()

	files, err := listPages(pageDir)
	if err != nil {
		return stats, err
	}
	ordered, err := pagekey.OrderFiles(files, a.ignore)
	if err != nil {
		return stats, err
	}
	if len(ordered) == 0 {
		return stats, failure.Page(failure.ErrPageAssembly, pageDir, errors.New("no page images"))
	}

	doc, err := newDocument(dim)
	if err != nil {
		return stats, err
	}

	seen := make(map[string]bool, len(ordered))
	for _, p := range ordered {
		res, err := a.normalizer.Normalize(p)
		if err != nil {
			return stats, err
		}
		stats.Actions[res.Action]++
		// A page and a conversion left behind by an interrupted run resolve
		// to the same file.
		if seen[res.Path] {
			logCtx.Warn("Page resolves to an already embedded file, skipping.", "file", p, "resolved", res.Path)
			continue
		}
		seen[res.Path] = true

		if err := verifyPage(res.Path); err != nil {
			return stats, err
		}
		if err := doc.addPage(res.Path); err != nil {
			return stats, err
		}
		stats.Files = append(stats.Files, res.Path)
	}

	if err := setInfo(doc.ctx, meta); err != nil {
		return stats, fmt.Errorf("failed to set document info: %w", err)
	}
	if err := api.WriteContext(doc.ctx, out); err != nil {
		return stats, fmt.Errorf("failed to write document: %w", err)
	}
	if err := out.Close(); err != nil {
		return stats, fmt.Errorf("failed to close %s: %w", outPath, err)
	}

	stats.Pages = len(stats.Files)
	logCtx.Info("Document assembled.", "pages", stats.Pages)
	return stats, nil
}

// listPages returns the regular files of dir in name order.
func listPages(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", dir, err)
	}
	var files []string
	for _, e := range entries {
		if e.Type().IsRegular() {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	return files, nil
}

func verifyPage(path string) error {
	_, format, err := imaging.Decode(path)
	switch {
	case errors.Is(err, imaging.ErrUndecodable):
		return failure.Page(failure.ErrPageAssembly, path, err)
	case err != nil:
		return fmt.Errorf("failed to read page %s: %w", path, err)
	case !embeddable[format]:
		return failure.Page(failure.ErrPageAssembly, path, fmt.Errorf("unsupported image format %q", format))
	}
	return nil
}

// document is a pdfcpu context that pages are appended to one by one.
type document struct {
	ctx       *model.Context
	dim       *types.Dim
	pages     *types.IndirectRef
	pagesDict types.Dict
}

func newDocument(dim *types.Dim) (*document, error) {
	conf := newConfiguration()
	conf.Cmd = model.IMPORTIMAGES
	ctx, err := pdfcpu.CreateContextWithXRefTable(conf, dim)
	if err != nil {
		return nil, fmt.Errorf("failed to create document: %w", err)
	}
	pages, err := ctx.Pages()
	if err != nil {
		return nil, fmt.Errorf("failed to create document: %w", err)
	}
	pagesDict, err := ctx.DereferenceDict(*pages)
	if err != nil {
		return nil, fmt.Errorf("failed to create document: %w", err)
	}
	return &document{ctx: ctx, dim: dim, pages: pages, pagesDict: pagesDict}, nil
}

// fillPage draws the image over the whole page, ignoring its aspect ratio.
func fillPage(dim *types.Dim) []byte {
	return fmt.Appendf(nil, "q %.2f 0 0 %.2f 0 0 cm /Im0 Do Q", dim.Width, dim.Height)
}

// addPage embeds the image at path as a new page.
func (d *document) addPage(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to read page %s: %w", path, err)
	}
	defer f.Close()

	img, _, _, err := model.CreateImageResource(d.ctx.XRefTable, f)
	if err != nil {
		return failure.Page(failure.ErrPageAssembly, path, err)
	}
	if err := d.appendPage(img); err != nil {
		return fmt.Errorf("failed to add page %s: %w", path, err)
	}
	return nil
}

// appendPage adds a page of the document size showing the image XObject img.
func (d *document) appendPage(img *types.IndirectRef) error {
	xRefTable := d.ctx.XRefTable
	resources, err := xRefTable.IndRefForNewObject(types.Dict(map[string]types.Object{
		"ProcSet": types.NewNameArray("PDF", "Text", "ImageB", "ImageC", "ImageI"),
		"XObject": types.Dict(map[string]types.Object{"Im0": *img}),
	}))
	if err != nil {
		return err
	}

	sd, err := xRefTable.NewStreamDictForBuf(fillPage(d.dim))
	if err != nil {
		return err
	}
	if err := sd.Encode(); err != nil {
		return err
	}
	contents, err := xRefTable.IndRefForNewObject(*sd)
	if err != nil {
		return err
	}

	page, err := xRefTable.IndRefForNewObject(types.Dict(map[string]types.Object{
		"Type":      types.Name("Page"),
		"Parent":    *d.pages,
		"MediaBox":  types.RectForDim(d.dim.Width, d.dim.Height).Array(),
		"Resources": *resources,
		"Contents":  *contents,
	}))
	if err != nil {
		return err
	}
	if err := d.ctx.SetValid(*page); err != nil {
		return err
	}
	if err := model.AppendPageTree(page, 1, d.pagesDict); err != nil {
		return err
	}
	d.ctx.PageCount++
	return nil
}

func setInfo(ctx *model.Context, meta Metadata) error {
	if ctx.Info == nil {
		ir, err := ctx.IndRefForNewObject(types.NewDict())
		if err != nil {
			return err
		}
		ctx.Info = ir
	}
	d, err := ctx.DereferenceDict(*ctx.Info)
	if err != nil {
		return err
	}
	if d == nil {
		return errors.New("missing info dictionary")
	}
	for k, v := range map[string]string{
		"Title":    meta.Title,
		"Subject":  meta.Subject,
		"Keywords": meta.Keywords,
		"Author":   meta.Author,
		"Creator":  meta.Creator,
	} {
		if v != "" {
			d[k] = types.StringLiteral(v)
		}
	}
	return nil
}
