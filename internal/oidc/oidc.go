package oidc

import (
	"errors"
	"fmt"
	"net/url"
	"path"
)

// WellKnownPath is the discovery document path relative to the issuer.
const WellKnownPath = ".well-known/openid-configuration"

// ErrRelativeDiscoveryURI is returned when a relative jwks_uri cannot be
// resolved because the discovery URI itself is not absolute.
var ErrRelativeDiscoveryURI = errors.New("discovery URI must be absolute to resolve a relative jwks_uri")

// WellKnownURL returns the discovery document URL for the passed in issuer
// url.
func WellKnownURL(issuerURL url.URL) string {
	issuerURL.Path = path.Join("/", issuerURL.Path, WellKnownPath)
	issuerURL.RawPath = ""
	issuerURL.RawQuery = ""
	issuerURL.Fragment = ""
	return issuerURL.String()
}

// ResolveJWKSURI returns the absolute key set URL advertised by a discovery
// document fetched from discoveryURI. Relative values are resolved against
// discoveryURI.
func ResolveJWKSURI(discoveryURI, jwksURI string) (string, error) {
	ref, err := url.Parse(jwksURI)
	if err != nil {
		return "", fmt.Errorf("could not parse jwks_uri %q: %w", jwksURI, err)
	}
	if ref.IsAbs() {
		return ref.String(), nil
	}

	base, err := url.Parse(discoveryURI)
	if err != nil {
		return "", fmt.Errorf("could not parse discovery URI %q: %w", discoveryURI, err)
	}
	if !base.IsAbs() {
		return "", ErrRelativeDiscoveryURI
	}

	return base.ResolveReference(ref).String(), nil
}
