package planning

import (
	"errors"
	"fmt"
)

// ErrNoRepositories is returned when a plan is requested for an empty
// repository set.
var ErrNoRepositories = errors.New("at least one repository must be specified")

// ValidationError reports a request that cannot be planned at all.
type ValidationError struct {
	Field string
	Err   error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %v", e.Field, e.Err)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// IsValidation reports whether err is a request validation failure.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
