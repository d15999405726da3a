package oidcmetadata

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// DiscoveryDocument is an OpenID Connect discovery document
// (.well-known/openid-configuration).
//
// Only JWKSURI has meaning to the Service. Members without a field here are
// kept in Extra and written back by MarshalJSON, so a document can be
// re-served unchanged.
type DiscoveryDocument struct {
	Issuer                            string   `json:"issuer,omitempty"`
	AuthorizationEndpoint             string   `json:"authorization_endpoint,omitempty"`
	TokenEndpoint                     string   `json:"token_endpoint,omitempty"`
	UserinfoEndpoint                  string   `json:"userinfo_endpoint,omitempty"`
	JWKSURI                           string   `json:"jwks_uri,omitempty"`
	RegistrationEndpoint              string   `json:"registration_endpoint,omitempty"`
	EndSessionEndpoint                string   `json:"end_session_endpoint,omitempty"`
	RevocationEndpoint                string   `json:"revocation_endpoint,omitempty"`
	IntrospectionEndpoint             string   `json:"introspection_endpoint,omitempty"`
	DeviceAuthorizationEndpoint       string   `json:"device_authorization_endpoint,omitempty"`
	ScopesSupported                   []string `json:"scopes_supported,omitempty"`
	ResponseTypesSupported            []string `json:"response_types_supported,omitempty"`
	GrantTypesSupported               []string `json:"grant_types_supported,omitempty"`
	SubjectTypesSupported             []string `json:"subject_types_supported,omitempty"`
	IDTokenSigningAlgValuesSupported  []string `json:"id_token_signing_alg_values_supported,omitempty"`
	TokenEndpointAuthMethodsSupported []string `json:"token_endpoint_auth_methods_supported,omitempty"`
	ClaimsSupported                   []string `json:"claims_supported,omitempty"`
	CodeChallengeMethodsSupported     []string `json:"code_challenge_methods_supported,omitempty"`

	// Extra holds members of the document not mapped to a field above.
	Extra map[string]json.RawMessage `json:"-"`
}

// discoveryFields is DiscoveryDocument without its methods.
type discoveryFields DiscoveryDocument

// UnmarshalJSON implements json.Unmarshaler.
func (d *DiscoveryDocument) UnmarshalJSON(data []byte) error {
	var fields discoveryFields
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}

	var members map[string]json.RawMessage
	if err := json.Unmarshal(data, &members); err != nil {
		return err
	}

	for name := range knownMembers {
		delete(members, name)
	}
	if len(members) > 0 {
		fields.Extra = members
	} else {
		fields.Extra = nil
	}

	*d = DiscoveryDocument(fields)
	return nil
}

// MarshalJSON implements json.Marshaler.
func (d DiscoveryDocument) MarshalJSON() ([]byte, error) {
	data, err := json.Marshal(discoveryFields(d))
	if err != nil || len(d.Extra) == 0 {
		return data, err
	}

	var members map[string]json.RawMessage
	if err := json.Unmarshal(data, &members); err != nil {
		return nil, err
	}
	for name, value := range d.Extra {
		if _, exists := members[name]; !exists {
			members[name] = value
		}
	}
	return json.Marshal(members)
}

// knownMembers are the JSON member names mapped to DiscoveryDocument fields.
var knownMembers = map[string]struct{}{
	"issuer":                                {},
	"authorization_endpoint":                {},
	"token_endpoint":                        {},
	"userinfo_endpoint":                     {},
	"jwks_uri":                              {},
	"registration_endpoint":                 {},
	"end_session_endpoint":                  {},
	"revocation_endpoint":                   {},
	"introspection_endpoint":                {},
	"device_authorization_endpoint":         {},
	"scopes_supported":                      {},
	"response_types_supported":              {},
	"grant_types_supported":                 {},
	"subject_types_supported":               {},
	"id_token_signing_alg_values_supported": {},
	"token_endpoint_auth_methods_supported": {},
	"claims_supported":                      {},
	"code_challenge_methods_supported":      {},
}

var errNullDocument = errors.New("discovery document is null")

// decodeDiscovery is the fetch.Decoder for discovery documents.
func decodeDiscovery(body []byte) (*DiscoveryDocument, error) {
	if bytes.Equal(bytes.TrimSpace(body), []byte("null")) {
		return nil, errNullDocument
	}

	var doc DiscoveryDocument
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("invalid discovery document: %w", err)
	}
	return &doc, nil
}
