package matching

import (
	"errors"
	"fmt"
)

var (
	// ErrPostNotFound indicates the referenced post does not exist.
	ErrPostNotFound = errors.New("post not found")

	// ErrDataCorruption indicates a post marked Ready has no stored embedding.
	// This violates the pipeline invariant and is never silently recovered.
	ErrDataCorruption = errors.New("post marked ready but embedding is missing")
)

// ValidationError reports a malformed filter or pagination input.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}
