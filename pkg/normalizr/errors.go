package normalizr

import (
	"errors"
	"fmt"
)

// ErrSchemaMismatch is matched by every *SchemaMismatchError.
var ErrSchemaMismatch = errors.New("schema mismatch")

// SchemaMismatchError reports a payload that does not conform to the schema
// it was normalized or denormalized against. It is never recovered from
// inside this package.
type SchemaMismatchError struct {
	// Path is a JSONPath-like location of the offending value, e.g. "$[2].account".
	Path string

	// Reason describes the mismatch.
	Reason string
}

func (e *SchemaMismatchError) Error() string {
	return fmt.Sprintf("schema mismatch at %s: %s", e.Path, e.Reason)
}

// Is reports whether target is ErrSchemaMismatch.
func (e *SchemaMismatchError) Is(target error) bool {
	return target == ErrSchemaMismatch
}

func mismatch(path, format string, args ...any) error {
	return &SchemaMismatchError{Path: path, Reason: fmt.Sprintf(format, args...)}
}
