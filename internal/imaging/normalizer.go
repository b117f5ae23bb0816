package imaging

import (
	"bytes"
	"errors"
	"fmt"
	"image/png"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/Lllllllleong/tipopdf/internal/failure"
	"github.com/Lllllllleong/tipopdf/internal/fax"
	"github.com/Lllllllleong/tipopdf/internal/fsutil"
)

// BackupDir is the sibling directory holding originals replaced by the
// normalizer.
const BackupDir = "orig"

// DefaultSizeDiffThreshold is the number of bytes a PNG conversion must
// save before it replaces the original.
const DefaultSizeDiffThreshold = 20000

// Action describes what Normalize did to a page.
type Action string

const (
	ActionUnchanged    Action = "unchanged"
	ActionPassthrough  Action = "passthrough"
	ActionFaxReencoded Action = "fax-reencoded"
	ActionPNGConverted Action = "png-converted"
	ActionKeptOriginal Action = "kept-original"
)

// Result is the path to embed for a page and how it was obtained.
type Result struct {
	Path   string
	Action Action
}

// Normalizer brings page images into an assembly-ready encoding: bi-level
// pages become Group 4 TIFFs, grey and color pages become PNGs when that
// saves enough space.
type Normalizer struct {
	SizeDiffThreshold int64
	logger            *slog.Logger
}

func NewNormalizer(sizeDiffThreshold int64, logger *slog.Logger) *Normalizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Normalizer{SizeDiffThreshold: sizeDiffThreshold, logger: logger}
}

// Normalize inspects the page at path and returns the file to embed.
// Codec problems are reported as failure.ErrNormalization; filesystem
// errors are returned unclassified.
func (n *Normalizer) Normalize(path string) (Result, error) {
	if !IsTIFF(path) {
		return Result{Path: path, Action: ActionPassthrough}, nil
	}
	logCtx := n.logger.With("file", path)

	info, err := ProbeTIFF(path)
	if errors.Is(err, ErrBadTIFF) {
		logCtx.Info("Unreadable tiff structure, re-encoding as fax.", "error", err)
		return n.reencodeFax(path, fax.DefaultResolution, fax.DefaultResolution)
	}
	if err != nil {
		return Result{}, fmt.Errorf("failed to probe %s: %w", path, err)
	}

	if info.BiLevel() {
		if info.Compression == CompressionG4 {
			return Result{Path: path, Action: ActionUnchanged}, nil
		}
		logCtx.Info("Re-encoding bi-level page as fax.", "compression", info.Compression)
		return n.reencodeFax(path, uint32(info.XResolution), uint32(info.YResolution))
	}
	return n.convertPNG(path, logCtx)
}

// BackupPath returns where the original of path is kept.
func BackupPath(path string) string {
	return filepath.Join(filepath.Dir(path), BackupDir, filepath.Base(path))
}

// source returns the file holding the true original of path: the backup
// when an earlier run already made one.
func source(path string) (string, error) {
	backup := BackupPath(path)
	exists, err := fsutil.Exists(backup)
	if err != nil {
		return "", err
	}
	if exists {
		return backup, nil
	}
	return path, nil
}

// backup moves path into the backup directory. An existing backup is never
// overwritten; the stale file at path is removed instead.
func backup(path string) error {
	dst := BackupPath(path)
	exists, err := fsutil.Exists(dst)
	if err != nil {
		return err
	}
	if exists {
		return fsutil.RemoveIfExists(path)
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("failed to create backup directory: %w", err)
	}
	if err := os.Rename(path, dst); err != nil {
		return fmt.Errorf("failed to back up %s: %w", path, err)
	}
	return nil
}

func classify(path string, err error) error {
	if errors.Is(err, ErrUndecodable) {
		return failure.Page(failure.ErrNormalization, path, err)
	}
	return fmt.Errorf("failed to read %s: %w", path, err)
}

func (n *Normalizer) reencodeFax(path string, xres, yres uint32) (Result, error) {
	src, err := source(path)
	if err != nil {
		return Result{}, err
	}
	img, _, err := Decode(src)
	if err != nil {
		return Result{}, classify(path, err)
	}

	var buf bytes.Buffer
	opts := &fax.Options{Compression: fax.Group4, XResolution: xres, YResolution: yres}
	if err := fax.Encode(&buf, fax.FromImage(img), opts); err != nil {
		return Result{}, failure.Page(failure.ErrNormalization, path, err)
	}

	if err := backup(path); err != nil {
		return Result{}, err
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return Result{}, fmt.Errorf("failed to write %s: %w", path, err)
	}
	return Result{Path: path, Action: ActionFaxReencoded}, nil
}

func (n *Normalizer) convertPNG(path string, logCtx *slog.Logger) (Result, error) {
	stat, err := os.Stat(path)
	if err != nil {
		return Result{}, fmt.Errorf("failed to stat %s: %w", path, err)
	}
	img, _, err := Decode(path)
	if err != nil {
		return Result{}, classify(path, err)
	}

	var buf bytes.Buffer
	enc := png.Encoder{CompressionLevel: png.BestCompression}
	if err := enc.Encode(&buf, img); err != nil {
		return Result{}, failure.Page(failure.ErrNormalization, path, err)
	}

	saved := stat.Size() - int64(buf.Len())
	if saved <= n.SizeDiffThreshold {
		logCtx.Debug("PNG conversion not worth it, keeping original.", "saved", saved)
		return Result{Path: path, Action: ActionKeptOriginal}, nil
	}

	pngPath := strings.TrimSuffix(path, filepath.Ext(path)) + ".png"
	if err := os.WriteFile(pngPath, buf.Bytes(), 0o644); err != nil {
		return Result{}, fmt.Errorf("failed to write %s: %w", pngPath, err)
	}
	if err := backup(path); err != nil {
		return Result{}, err
	}
	logCtx.Info("Converted page to PNG.", "png", pngPath, "saved", saved)
	return Result{Path: pngPath, Action: ActionPNGConverted}, nil
}
