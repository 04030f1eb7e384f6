/*
errors.go - Error types for template editing

PURPOSE:
  Template editing fails in only a few ways: a column that is not in the
  template or not in the catalog. Validation failures are not errors;
  they are per-column messages from Validator.

USAGE:
  if err := t.RemoveColumn(name); template.IsNotFound(err) {
      // 404
  }

SEE ALSO:
  - template.go: AddColumn, RemoveColumn
  - api/handlers.go: Maps these to HTTP status codes
*/
package template

import (
	"errors"
	"fmt"

	"github.com/warp/requisition-engine/catalog"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrColumnNotFound is returned when an operation names a column the
	// template does not contain.
	ErrColumnNotFound = errors.New("template: column not found")

	// ErrUnknownColumn is returned when a name is not in the column catalog.
	ErrUnknownColumn = errors.New("template: unknown catalog column")

	// ErrDuplicateColumn is returned when adding a column the template
	// already contains.
	ErrDuplicateColumn = errors.New("template: column already present")
)

// =============================================================================
// STRUCTURED ERRORS
// =============================================================================

// ColumnNotFoundError names the missing column.
type ColumnNotFoundError struct {
	TemplateID string
	Column     catalog.Name
}

func (e *ColumnNotFoundError) Error() string {
	return fmt.Sprintf("template %s: column %q not found", e.TemplateID, e.Column)
}

func (e *ColumnNotFoundError) Unwrap() error {
	return ErrColumnNotFound
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsNotFound returns true if the error indicates a missing column.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrColumnNotFound)
}

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrUnknownColumn) ||
		errors.Is(err, ErrDuplicateColumn)
}
