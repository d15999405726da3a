package fetch

import (
	"errors"
	"fmt"
)

// ErrBodyTooLarge is wrapped by a DecodeError when a success response is
// larger than the fetcher's body limit.
var ErrBodyTooLarge = errors.New("response body exceeds size limit")

// TransportError is returned when the HTTP exchange could not be completed:
// connection refused, DNS failure, timeout, context cancellation or a body
// that could not be read.
type TransportError struct {
	// URI is the requested URI.
	URI string

	// Err is the underlying transport error.
	Err error
}

// Error implements the error interface.
func (e *TransportError) Error() string {
	return fmt.Sprintf("could not fetch %s: %v", e.URI, e.Err)
}

// Unwrap returns the underlying transport error.
func (e *TransportError) Unwrap() error {
	return e.Err
}

// RemoteFetchError is returned when the remote answered with a status code
// other than 200 OK.
type RemoteFetchError struct {
	// StatusCode is the HTTP status the remote responded with.
	StatusCode int

	// URI is the requested URI.
	URI string
}

// Error implements the error interface.
func (e *RemoteFetchError) Error() string {
	return fmt.Sprintf("request to %s returned status %d, expected 200", e.URI, e.StatusCode)
}

// DecodeError is returned when a 200 OK response body does not parse as the
// expected document.
type DecodeError struct {
	// URI is the requested URI.
	URI string

	// Err is the underlying parse error.
	Err error
}

// Error implements the error interface.
func (e *DecodeError) Error() string {
	return fmt.Sprintf("could not decode response from %s: %v", e.URI, e.Err)
}

// Unwrap returns the underlying parse error.
func (e *DecodeError) Unwrap() error {
	return e.Err
}
