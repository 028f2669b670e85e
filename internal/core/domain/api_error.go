package domain

import "fmt"

// APIError is a failure response from the remote enhancement API. It carries
// the HTTP status and the optional domain code from the response body so the
// classifier can map it without re-parsing.
type APIError struct {
	StatusCode int
	DomainCode string
	Message    string
}

func (e *APIError) Error() string {
	if e.DomainCode != "" {
		return fmt.Sprintf("api error %d (%s): %s", e.StatusCode, e.DomainCode, e.Message)
	}
	return fmt.Sprintf("api error %d: %s", e.StatusCode, e.Message)
}
