// Package pagekey parses page image file names into sort keys and produces
// the final page order of a document unit.
package pagekey

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/Lllllllleong/tipopdf/internal/failure"
	"github.com/Lllllllleong/tipopdf/internal/models"
)

const delimiter = "-"

// DefaultIgnoreExtensions lists sidecar files found next to page scans.
var DefaultIgnoreExtensions = []string{".txt", ".db", ".nrg"}

// Parse decodes a page file name such as PN-0101-005-20130701.tif.
// The second token combines version and type as version*100 + type.
func Parse(path string) (models.PageRecord, error) {
	base := filepath.Base(path)
	name := strings.TrimSuffix(base, filepath.Ext(base))

	parts := strings.Split(name, delimiter)
	if len(parts) < 3 {
		return models.PageRecord{}, failure.Page(failure.ErrMalformedPageName, path,
			fmt.Errorf("want at least 3 %q separated tokens, got %d", delimiter, len(parts)))
	}

	combined, err := strconv.Atoi(parts[1])
	if err != nil {
		return models.PageRecord{}, failure.Page(failure.ErrMalformedPageName, path, fmt.Errorf("type token %q: %w", parts[1], err))
	}
	page, err := strconv.Atoi(parts[2])
	if err != nil {
		return models.PageRecord{}, failure.Page(failure.ErrMalformedPageName, path, fmt.Errorf("page token %q: %w", parts[2], err))
	}

	rec := models.PageRecord{
		SourcePath: path,
		PageType:   combined % 100,
		Version:    combined / 100,
		PageNumber: page,
	}
	if len(parts) > 3 {
		rec.Date = parts[3]
	}
	return rec, nil
}

// Ignored reports whether path has one of the extensions in exts.
// The comparison is case-insensitive.
func Ignored(path string, exts []string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range exts {
		if ext == strings.ToLower(e) {
			return true
		}
	}
	return false
}
