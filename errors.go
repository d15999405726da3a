package oidcmetadata

import "errors"

var (
	// ErrNoURI is returned when a call passes no URI and the Service has no
	// default URI (see WithDefaultURI and WithIssuer).
	ErrNoURI = errors.New("no metadata URI given and no default configured")

	// ErrMissingJWKSURI is returned by GetKeys when the discovery document
	// does not advertise a jwks_uri.
	ErrMissingJWKSURI = errors.New("discovery document has no jwks_uri")
)

// Option errors.
var (
	ErrDefaultURIEmpty = errors.New("default URI cannot be empty")
	ErrIssuerURLNil    = errors.New("issuer URL cannot be nil")
	ErrNegativeTTL     = errors.New("TTL cannot be negative")
	ErrNegativeSweep   = errors.New("sweep interval cannot be negative")
	ErrHTTPClientNil   = errors.New("HTTP client cannot be nil")
	ErrGetterNil       = errors.New("getter cannot be nil")
	ErrStoreNil        = errors.New("cache store cannot be nil")
	ErrClockNil        = errors.New("clock cannot be nil")
	ErrLoggerNil       = errors.New("logger cannot be nil")
	ErrMetricsNil      = errors.New("metrics cannot be nil")
	ErrTracerNil       = errors.New("tracer cannot be nil")
)

// ErrStorePrefixOverlap is returned by New when the discovery and key set
// stores use key prefixes where one is a prefix of the other, which would
// make them share or list each other's keys.
var ErrStorePrefixOverlap = errors.New("discovery and key set stores use overlapping key prefixes")
