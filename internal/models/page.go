package models

// PageRecord is one source page image, keyed by the tokens encoded in its
// file name. DuplicateRank is assigned while ordering and is never persisted.
type PageRecord struct {
	SourcePath    string
	PageType      int
	Version       int
	PageNumber    int
	Date          string
	DuplicateRank int
}
