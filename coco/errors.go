package coco

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// Error kinds reported by the loader and the renderer. Match them with errors.Is.
var (
	ErrConfiguration = errors.New("configuration error")
	ErrLookup        = errors.New("lookup error")
	ErrResource      = errors.New("resource error")
	ErrFormat        = errors.New("format error")
)

// FieldError is a single shape problem found in the dataset JSON.
type FieldError struct {
	Field  string
	Reason string
}

func (e FieldError) String() string {
	return e.Field + ": " + e.Reason
}

// FormatError collects every shape mismatch found while loading a dataset.
type FormatError struct {
	Problems []FieldError
}

func (e *FormatError) add(field, format string, args ...interface{}) {
	e.Problems = append(e.Problems, FieldError{Field: field, Reason: fmt.Sprintf(format, args...)})
}

func (e *FormatError) Error() string {
	parts := make([]string, 0, len(e.Problems))
	for _, p := range e.Problems {
		parts = append(parts, p.String())
	}

	return fmt.Sprintf("%v: %d problem(s): %s", ErrFormat, len(e.Problems), strings.Join(parts, "; "))
}

func (e *FormatError) Unwrap() error {
	return ErrFormat
}

// ResourceError reports a file or directory that could not be read or written.
type ResourceError struct {
	Path string
	Err  error
}

func (e *ResourceError) Error() string {
	return fmt.Sprintf("%v: %s: %v", ErrResource, e.Path, e.Err)
}

func (e *ResourceError) Unwrap() error {
	return e.Err
}

// Is makes every ResourceError match ErrResource while still unwrapping to the
// underlying OS error.
func (e *ResourceError) Is(target error) bool {
	return target == ErrResource
}

// NewResourceError wraps err with the path it concerns.
func NewResourceError(path string, err error) error {
	return &ResourceError{Path: path, Err: err}
}
