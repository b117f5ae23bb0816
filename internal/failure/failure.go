// Package failure defines the error taxonomy shared by the assembly pipeline.
//
// Content failures (bad page data) are quarantined per unit and never abort a
// batch. Validation failures abort the batch before any file is touched.
// Every error that matches none of the sentinels below is an infrastructure
// failure.
package failure

import (
	"errors"
	"fmt"
)

var (
	ErrValidation        = errors.New("unit naming incompatible with target folder")
	ErrMalformedPageName = errors.New("malformed page name")
	ErrNormalization     = errors.New("page normalization failed")
	ErrPageAssembly      = errors.New("page assembly failed")
)

// PageError identifies the page file a content failure originated from.
type PageError struct {
	Path string
	Kind error
	Err  error
}

func (e *PageError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Kind, e.Path)
	}
	return fmt.Sprintf("%s: %s: %v", e.Kind, e.Path, e.Err)
}

// Unwrap exposes both the kind sentinel and the underlying cause to errors.Is.
func (e *PageError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// Page builds a PageError of the given kind.
func Page(kind error, path string, err error) error {
	return &PageError{Path: path, Kind: kind, Err: err}
}

// IsContent reports whether err was caused by malformed page data.
func IsContent(err error) bool {
	return errors.Is(err, ErrMalformedPageName) ||
		errors.Is(err, ErrNormalization) ||
		errors.Is(err, ErrPageAssembly)
}

// IsValidation reports whether err is a batch-level naming validation failure.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}
