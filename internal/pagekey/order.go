package pagekey

import (
	"cmp"
	"path/filepath"
	"slices"

	"github.com/Lllllllleong/tipopdf/internal/models"
)

// showOrderOverrides moves three categories directly behind type 2, giving the
// display order 1, 2, 4, 12, 8, 3, 5, 6, 7, 9, 10, 11. Every other type sorts
// at pageType*10.
var showOrderOverrides = map[int]int{
	4:  21,
	12: 22,
	8:  23,
}

// ShowOrder returns the display precedence of a page type.
func ShowOrder(pageType int) int {
	if v, ok := showOrderOverrides[pageType]; ok {
		return v
	}
	return pageType * 10
}

type dupKey struct {
	pageType, pageNumber int
}

func compareKeys(a, b models.PageRecord) int {
	if c := cmp.Compare(ShowOrder(a.PageType), ShowOrder(b.PageType)); c != 0 {
		return c
	}
	if c := cmp.Compare(a.PageNumber, b.PageNumber); c != 0 {
		return c
	}
	if c := cmp.Compare(a.Version, b.Version); c != 0 {
		return c
	}
	if c := cmp.Compare(a.Date, b.Date); c != 0 {
		return c
	}
	return cmp.Compare(filepath.Base(a.SourcePath), filepath.Base(b.SourcePath))
}

// Order returns a new slice holding records in final assembly order with
// DuplicateRank assigned. The first record of each (type, page) pair in key
// order keeps rank 0; later ones get rank 1 and are placed after every rank 0
// record. No record is dropped.
func Order(records []models.PageRecord) []models.PageRecord {
	out := slices.Clone(records)
	slices.SortStableFunc(out, compareKeys)

	seen := make(map[dupKey]struct{}, len(out))
	for i := range out {
		k := dupKey{out[i].PageType, out[i].PageNumber}
		if _, dup := seen[k]; dup {
			out[i].DuplicateRank = 1
			continue
		}
		seen[k] = struct{}{}
		out[i].DuplicateRank = 0
	}

	slices.SortStableFunc(out, func(a, b models.PageRecord) int {
		if c := cmp.Compare(a.DuplicateRank, b.DuplicateRank); c != 0 {
			return c
		}
		return compareKeys(a, b)
	})
	return out
}

// OrderFiles filters ignored extensions, parses every remaining file name and
// returns the source paths in assembly order. A malformed name fails the whole
// set.
func OrderFiles(paths []string, ignore []string) ([]string, error) {
	records := make([]models.PageRecord, 0, len(paths))
	for _, p := range paths {
		if Ignored(p, ignore) {
			continue
		}
		rec, err := Parse(p)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}

	ordered := Order(records)
	files := make([]string, len(ordered))
	for i, r := range ordered {
		files[i] = r.SourcePath
	}
	return files, nil
}
