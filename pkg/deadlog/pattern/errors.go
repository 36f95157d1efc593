package pattern

import "fmt"

// ValidationError represents a schema-level validation error: the pattern
// file as a whole violates a structural requirement (missing fields, bad
// version number, too many patterns).
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s: %s", e.Field, e.Message)
}

// PatternError represents an error specific to an individual pattern, such as
// an invalid regex, a duplicate ID, or a missing field.
type PatternError struct {
	Index   int    // 0-based index of the pattern in the file
	ID      string // Pattern ID (may be empty if ID field is missing)
	Field   string
	Message string
	Cause   error // Underlying error (e.g., regex compile error)
}

func (e *PatternError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("pattern %q: %s: %s", e.ID, e.Field, e.Message)
	}
	return fmt.Sprintf("pattern[%d]: %s: %s", e.Index, e.Field, e.Message)
}

// Unwrap returns the underlying cause of the error.
func (e *PatternError) Unwrap() error {
	return e.Cause
}
