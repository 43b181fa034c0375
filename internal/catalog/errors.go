package catalog

import (
	"errors"
	"fmt"

	"shortreel/internal/services"
)

// ErrCatalogMissing reports that no catalog has been persisted yet.
var ErrCatalogMissing = errors.New("catalog file missing")

// EmptyInputError means fewer than three distinct clips were supplied.
type EmptyInputError struct {
	Distinct int
}

func (e *EmptyInputError) Error() string {
	return fmt.Sprintf("need at least 3 distinct clips to build a catalog, found %d", e.Distinct)
}

// Is lets callers match the validation marker.
func (e *EmptyInputError) Is(target error) bool {
	return target == services.ErrValidation
}

// CorruptCatalogError means the persisted catalog could not be trusted.
type CorruptCatalogError struct {
	Path   string
	Reason string
	Err    error
}

func (e *CorruptCatalogError) Error() string {
	msg := fmt.Sprintf("catalog %s is corrupt: %s", e.Path, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *CorruptCatalogError) Unwrap() error { return e.Err }
