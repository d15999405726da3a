/*
Package oidc holds the URL rules of OpenID Connect Discovery 1.0.

OIDC providers expose a discovery document at a well-known URL below the
issuer:

	https://issuer.example.com/.well-known/openid-configuration

The document's jwks_uri names the key set. Providers should publish it as
an absolute URL; relative values are resolved against the discovery URL.

	issuerURL, _ := url.Parse("https://auth.example.com/")
	discoveryURI := oidc.WellKnownURL(*issuerURL)

	jwksURI, err := oidc.ResolveJWKSURI(discoveryURI, doc.JWKSURI)

Specification:
https://openid.net/specs/openid-connect-discovery-1_0.html
*/
package oidc
