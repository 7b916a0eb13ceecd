package application

import (
	"net/http"
	"net/url"
	"regexp"

	"github.com/ericfisherdev/concourse-proxy/internal/domain/model"
)

// Request headers read by the classifier.
const (
	HeaderBackendURL      = "X-Concourse-Url"
	HeaderAuthorization   = "Authorization"
	HeaderIfModifiedSince = "If-Modified-Since"
)

var teamPathPattern = regexp.MustCompile(`/api/v1/teams/([^/]*)/.*`)

// RequestClassifier extracts routing inputs from inbound requests.
type RequestClassifier struct {
	backendOverride string
}

// NewRequestClassifier creates a classifier. A non-empty backendOverride is
// used as the backend URL for every request, ignoring the request header.
func NewRequestClassifier(backendOverride string) *RequestClassifier {
	return &RequestClassifier{backendOverride: backendOverride}
}

// Parse classifies r. It performs no I/O.
func (c *RequestClassifier) Parse(r *http.Request) model.ParsedRequest {
	return model.ParsedRequest{
		Request:             r,
		BackendURL:          c.ResolveBackendURL(model.FirstHeaderValue(r.Header, HeaderBackendURL)),
		Team:                teamOf(r),
		AuthorizationHeader: model.FirstHeaderValue(r.Header, HeaderAuthorization),
		IfModifiedSince:     model.FirstHeaderValue(r.Header, HeaderIfModifiedSince),
	}
}

// ResolveBackendURL returns the configured override when there is one,
// otherwise candidate.
func (c *RequestClassifier) ResolveBackendURL(candidate string) string {
	if c.backendOverride != "" {
		return c.backendOverride
	}
	return candidate
}

// teamOf takes the decoded team from a /teams/{team}/ path segment, falling
// back to a team query parameter.
func teamOf(r *http.Request) string {
	if r.URL == nil {
		return ""
	}
	if m := teamPathPattern.FindStringSubmatch(r.URL.EscapedPath()); m != nil && m[1] != "" {
		if team, err := url.PathUnescape(m[1]); err == nil {
			return team
		}
	}
	return r.URL.Query().Get("team")
}
