package fetch

import (
	"fmt"
	"net/http"
	"time"
)

// DefaultTimeout is the timeout of the HTTP client used when none is given.
const DefaultTimeout = 30 * time.Second

// Option is how options for the Fetcher are set up.
type Option func(*Fetcher) error

// WithHTTPClient sets a custom HTTP client for the Fetcher.
// If not specified, a default client with 30s timeout is used.
func WithHTTPClient(c *http.Client) Option {
	return func(f *Fetcher) error {
		if c == nil {
			return fmt.Errorf("HTTP client cannot be nil")
		}
		f.client = c
		return nil
	}
}

// WithMaxBodySize limits how many bytes of a response body are read.
// Responses larger than the limit fail with a DecodeError wrapping
// ErrBodyTooLarge.
func WithMaxBodySize(n int64) Option {
	return func(f *Fetcher) error {
		if n <= 0 {
			return fmt.Errorf("max body size must be positive")
		}
		f.maxBodySize = n
		return nil
	}
}

// WithUserAgent sets the User-Agent header sent with every request.
func WithUserAgent(ua string) Option {
	return func(f *Fetcher) error {
		f.userAgent = ua
		return nil
	}
}
