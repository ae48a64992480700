package verify

import (
	"errors"
	"fmt"
)

// ErrInvalidInput rejects malformed requests before any dependency call.
var ErrInvalidInput = errors.New("invalid input")

// ErrNoRecord is returned by RecordStore lookups that find nothing.
// It is not a failure; the matcher falls through to fuzzy matching.
var ErrNoRecord = errors.New("no matching record")

// DependencyError wraps a hard failure of an external collaborator.
// The pipeline retries transient ones once, then surfaces this to the
// caller instead of fabricating a result.
type DependencyError struct {
	Dep string
	Err error
}

func (e *DependencyError) Error() string {
	return fmt.Sprintf("dependency %s unavailable: %v", e.Dep, e.Err)
}

func (e *DependencyError) Unwrap() error { return e.Err }

func depErr(dep string, err error) error {
	return &DependencyError{Dep: dep, Err: err}
}
