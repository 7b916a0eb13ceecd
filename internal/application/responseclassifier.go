package application

import (
	"strings"

	"github.com/ericfisherdev/concourse-proxy/internal/domain/model"
)

// Response headers and cookies read by the classifier.
const (
	HeaderCSRFToken   = "X-Csrf-Token"
	HeaderSetCookie   = "Set-Cookie"
	SessionCookieName = "ATC-Authorization"
)

// ClassifyResponse extracts the CSRF token and the session token from resp.
// It performs no I/O.
func ClassifyResponse(resp *model.UpstreamResponse) model.ParsedResponse {
	parsed := model.ParsedResponse{Response: resp}
	if resp == nil || resp.Header == nil {
		return parsed
	}

	parsed.CSRFToken = model.FirstHeaderValue(resp.Header, HeaderCSRFToken)
	parsed.SessionToken = sessionTokenOf(resp.Header.Values(HeaderSetCookie))
	return parsed
}

// sessionTokenOf returns the quoted payload of the last session cookie in
// cookies. A matching cookie without a quoted payload clears the result.
func sessionTokenOf(cookies []string) string {
	token := ""
	for _, cookie := range cookies {
		name, value, ok := strings.Cut(cookie, "=")
		if !ok || name != SessionCookieName {
			continue
		}
		token = quotedPayload(value)
	}
	return token
}

// quotedPayload returns the text between the first two double quotes of v.
func quotedPayload(v string) string {
	_, rest, ok := strings.Cut(v, `"`)
	if !ok {
		return ""
	}
	payload, _, _ := strings.Cut(rest, `"`)
	return payload
}
