package model

import "net/http"

// ParsedRequest is an inbound proxy request with its routing inputs extracted.
// Empty strings mean "not present".
type ParsedRequest struct {
	Request             *http.Request
	BackendURL          string
	Team                string
	AuthorizationHeader string
	IfModifiedSince     string
}

// IsCredentialBootstrap reports whether the caller is submitting credentials
// for a specific team that the proxy should capture.
func (r ParsedRequest) IsCredentialBootstrap() bool {
	return r.BackendURL != "" && r.Team != "" && r.AuthorizationHeader != ""
}

// RequestURI returns the path and query to replay against the backend.
func (r ParsedRequest) RequestURI() string {
	if r.Request == nil || r.Request.URL == nil {
		return "/"
	}
	return r.Request.URL.RequestURI()
}

// Path returns the request path without its query.
func (r ParsedRequest) Path() string {
	if r.Request == nil || r.Request.URL == nil {
		return "/"
	}
	return r.Request.URL.Path
}
