package rag

import (
	"errors"
	"fmt"
	"net/http"
)

// RemoteUnavailableError reports a failed call to the remote service, either
// a transport failure (StatusCode == 0) or a non-2xx response.
type RemoteUnavailableError struct {
	// Op is the logical operation that failed (e.g. "list corpora").
	Op string

	// StatusCode is the HTTP status returned by the service, or 0.
	StatusCode int

	// Message is the error message reported by the service, if any.
	Message string

	// Err is the underlying transport error, if any.
	Err error
}

// Error renders the failure in a form that keeps the service's own wording,
// which retrieval.Suggest inspects for hints such as "not found".
func (e *RemoteUnavailableError) Error() string {
	switch {
	case e.Err != nil:
		return fmt.Sprintf("rag: %s: %v", e.Op, e.Err)
	case e.Message != "":
		return fmt.Sprintf("rag: %s: %s (HTTP %d)", e.Op, e.Message, e.StatusCode)
	default:
		return fmt.Sprintf("rag: %s: %s (HTTP %d)", e.Op, http.StatusText(e.StatusCode), e.StatusCode)
	}
}

// Unwrap returns the underlying transport error.
func (e *RemoteUnavailableError) Unwrap() error { return e.Err }

// IsNotFound reports whether err is a remote 404.
func IsNotFound(err error) bool {
	var re *RemoteUnavailableError
	return errors.As(err, &re) && re.StatusCode == http.StatusNotFound
}
