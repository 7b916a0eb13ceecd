package model

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Store groups. The names double as the top-level fields of the snapshot file.
const (
	GroupAuthenticationCredentials = "authenticationCredentials"
	GroupSessionTokens             = "atcTokens"
)

// CredentialKey identifies a credential or session token: one team on one
// backend. An empty Team scopes a session token to the whole backend.
type CredentialKey struct {
	BackendURL string `json:"url"`
	Team       string `json:"team"`
}

// NewCredentialKey builds a key with the backend URL normalized, so that
// "http://ci/" and "http://ci" address the same record.
func NewCredentialKey(backendURL, team string) CredentialKey {
	return CredentialKey{BackendURL: NormalizeBackendURL(backendURL), Team: team}
}

// NormalizeBackendURL strips a single trailing slash.
func NormalizeBackendURL(backendURL string) string {
	return strings.TrimSuffix(backendURL, "/")
}

// ID returns the store record id, a JSON object of url and team.
func (k CredentialKey) ID() string {
	// Marshaling a struct of two strings cannot fail.
	b, _ := json.Marshal(k)
	return string(b)
}

// ParseCredentialKey decodes a record id produced by ID.
func ParseCredentialKey(id string) (CredentialKey, error) {
	var k CredentialKey
	if err := json.Unmarshal([]byte(id), &k); err != nil {
		return CredentialKey{}, fmt.Errorf("parse credential key %q: %w", id, err)
	}
	return k, nil
}
