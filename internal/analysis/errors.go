package analysis

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/sydialogue/dashboard/pkg/circuitbreaker"
)

// TransportError is a call to the analysis service that produced no usable
// response: a connection failure, a non-2xx status or an open breaker.
type TransportError struct {
	Endpoint string
	// StatusCode is zero when no response was received.
	StatusCode int
	// Body holds the start of a non-2xx response body, for logs only.
	Body string
	Err  error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("analysis service %s returned %d", e.Endpoint, e.StatusCode)
	}
	return fmt.Sprintf("analysis service %s unreachable: %v", e.Endpoint, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Temporary reports whether the failure says something about the service's
// health, as opposed to a request it rejected.
func (e *TransportError) Temporary() bool {
	return e.StatusCode == 0 || e.StatusCode >= http.StatusInternalServerError || e.StatusCode == http.StatusTooManyRequests
}

// countsAgainstBreaker keeps rejected requests and caller cancellations from
// opening the breaker.
func countsAgainstBreaker(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	var te *TransportError
	if errors.As(err, &te) {
		return te.Temporary()
	}
	return !errors.Is(err, circuitbreaker.ErrCircuitOpen)
}
