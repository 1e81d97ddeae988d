package styleconfig

import (
	"errors"
	"fmt"
)

var (
	// ErrSyntax reports a document that cannot be decoded at all.
	ErrSyntax = errors.New("malformed document")
	// ErrSchema reports unknown keys, wrong value types or invalid values.
	ErrSchema = errors.New("schema violation")
	// ErrUnresolvedPlugin reports a plugin name with no known plugin.
	ErrUnresolvedPlugin = errors.New("unresolved plugin")
	// ErrUnsupportedFormat reports a file extension Parse cannot read.
	ErrUnsupportedFormat = errors.New("unsupported document format")
)

// ValidationError ties a problem to its location in the document.
type ValidationError struct {
	Path string
	Err  error
}

func (e *ValidationError) Error() string {
	if e.Path == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s: %v", e.Path, e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }
