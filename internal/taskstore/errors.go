package taskstore

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when an operation names a task id that is not in
// the collection.
var ErrNotFound = errors.New("task not found")

// ValidationError reports rejected input. The store state is unchanged when
// it is returned.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// IsValidationError reports whether err (or any error in its chain) is a
// ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
