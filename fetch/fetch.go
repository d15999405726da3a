package fetch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/lestrrat-go/jwx/v3/jwk"
)

// DefaultMaxBodySize limits how much of a response is read.
// 1MB is generous for discovery documents and JWKS (typically <10KB).
const DefaultMaxBodySize int64 = 1 * 1024 * 1024

// Getter issues a GET request for uri and returns the HTTP status and body.
// A non-nil error means the exchange could not be completed; status is 0
// unless the response headers were received before the failure.
type Getter interface {
	Get(ctx context.Context, uri string) (status int, body []byte, err error)
}

// GetterFunc adapts an ordinary function to the Getter interface.
type GetterFunc func(ctx context.Context, uri string) (int, []byte, error)

// Get calls f(ctx, uri).
func (f GetterFunc) Get(ctx context.Context, uri string) (int, []byte, error) {
	return f(ctx, uri)
}

// Decoder parses a response body into T.
type Decoder[T any] func(body []byte) (T, error)

// JSON returns a Decoder that unmarshals the body into T with encoding/json.
func JSON[T any]() Decoder[T] {
	return func(body []byte) (T, error) {
		var v T
		if err := json.Unmarshal(body, &v); err != nil {
			return v, err
		}
		return v, nil
	}
}

// KeySet parses a JSON Web Key Set.
func KeySet(body []byte) (jwk.Set, error) {
	return jwk.Parse(body)
}

// Fetcher is the default Getter, backed by an *http.Client.
type Fetcher struct {
	client      *http.Client
	maxBodySize int64
	userAgent   string
}

// New builds a Fetcher.
//
// Optional options:
//   - WithHTTPClient: custom HTTP client (default: 30s timeout)
//   - WithMaxBodySize: response size limit (default: 1MB)
//   - WithUserAgent: User-Agent header sent with each request
func New(opts ...Option) (*Fetcher, error) {
	f := &Fetcher{
		client:      &http.Client{Timeout: DefaultTimeout},
		maxBodySize: DefaultMaxBodySize,
	}

	for _, opt := range opts {
		if err := opt(f); err != nil {
			return nil, fmt.Errorf("invalid option: %w", err)
		}
	}

	return f, nil
}

// Get implements Getter.
func (f *Fetcher) Get(ctx context.Context, uri string) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	// Read one byte past the limit so an oversized body can be told apart
	// from one that is exactly at the limit.
	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBodySize+1))
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("failed to read response body: %w", err)
	}
	if int64(len(body)) > f.maxBodySize {
		return resp.StatusCode, nil, ErrBodyTooLarge
	}

	return resp.StatusCode, body, nil
}

// FetchJSON GETs uri through g and decodes a 200 OK body with decode.
//
// Errors are classified as:
//   - *RemoteFetchError: the remote responded with a status other than 200
//   - *TransportError: the exchange could not be completed
//   - *DecodeError: the body did not parse, or exceeded the size limit
//
// FetchJSON never retries.
func FetchJSON[T any](ctx context.Context, g Getter, uri string, decode Decoder[T]) (T, error) {
	var zero T

	status, body, err := g.Get(ctx, uri)
	if status != 0 && status != http.StatusOK {
		return zero, &RemoteFetchError{StatusCode: status, URI: uri}
	}
	if err != nil {
		if errors.Is(err, ErrBodyTooLarge) {
			return zero, &DecodeError{URI: uri, Err: err}
		}
		var transportErr *TransportError
		if errors.As(err, &transportErr) {
			return zero, transportErr
		}
		return zero, &TransportError{URI: uri, Err: err}
	}
	if status == 0 {
		return zero, &TransportError{URI: uri, Err: errors.New("no response status")}
	}

	v, err := decode(body)
	if err != nil {
		return zero, &DecodeError{URI: uri, Err: err}
	}

	return v, nil
}
