package corpus

import (
	"errors"
	"fmt"
)

// InvalidNameError reports a corpus name that cannot be resolved: it is
// empty, or it sanitises to an empty identifier. It is not retryable.
type InvalidNameError struct {
	// Name is the rejected input.
	Name string

	// Reason explains why the name was rejected.
	Reason string
}

func (e *InvalidNameError) Error() string {
	if e.Name == "" {
		return fmt.Sprintf("corpus: invalid name: %s", e.Reason)
	}
	return fmt.Sprintf("corpus: invalid name %q: %s", e.Name, e.Reason)
}

// IsInvalidName reports whether err is an *InvalidNameError.
func IsInvalidName(err error) bool {
	var ie *InvalidNameError
	return errors.As(err, &ie)
}
