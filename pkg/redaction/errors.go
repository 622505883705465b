package redaction

import "fmt"

// ValidationError reports a missing required field on an exposed operation.
type ValidationError struct {
	Field string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("Missing %s", e.Field)
}
