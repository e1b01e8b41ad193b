package pipeline

import (
	"errors"
	"fmt"
)

// ErrSourceNotFound matches every *SourceNotFoundError.
var ErrSourceNotFound = errors.New("source not found")

// SourceNotFoundError is returned when the raw source is absent and no
// usable cache exists.
type SourceNotFoundError struct {
	Path string
}

func (e *SourceNotFoundError) Error() string {
	return fmt.Sprintf("source not found: %s (and no usable cache)", e.Path)
}

func (e *SourceNotFoundError) Is(target error) bool {
	return target == ErrSourceNotFound
}
