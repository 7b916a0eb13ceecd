package model

import "net/http"

// UpstreamResponse is a fully read backend response.
type UpstreamResponse struct {
	StatusCode int
	Status     string
	Header     http.Header
	Body       []byte
}

// ParsedResponse is an upstream response with the CSRF and session tokens
// harvested from its headers. Empty strings mean "not present".
type ParsedResponse struct {
	Response     *UpstreamResponse
	CSRFToken    string
	SessionToken string
}
