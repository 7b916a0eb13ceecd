package application_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ericfisherdev/concourse-proxy/internal/application"
)

func TestRequestClassifier_BackendURLFromHeader(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/api/v1/user", nil)
	r.Header.Add("X-Concourse-Url", "")
	r.Header.Add("X-Concourse-Url", backendURL)

	parsed := application.NewRequestClassifier("").Parse(r)

	assert.Equal(t, backendURL, parsed.BackendURL)
}

func TestRequestClassifier_MissingBackendURL(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/api/v1/user", nil)

	assert.Equal(t, "", application.NewRequestClassifier("").Parse(r).BackendURL)
}

func TestRequestClassifier_OverrideWins(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/api/v1/user", nil)
	r.Header.Set("X-Concourse-Url", "http://unexpected.example.com")

	parsed := application.NewRequestClassifier("http://expected.example.com").Parse(r)

	assert.Equal(t, "http://expected.example.com", parsed.BackendURL)
}

func TestRequestClassifier_Team(t *testing.T) {
	tests := []struct {
		target string
		want   string
	}{
		{"/api/v1/teams/team-expected/something", "team-expected"},
		{"/api/v1/teams/team-expected/pipelines", "team-expected"},
		{"/api/v1/teams/team-expected/some/lower", "team-expected"},
		{"/api/v1/user", ""},
		{"/api/v1/teams/main", ""},
		{"/api/v1/pipelines?team=query-team", "query-team"},
		{"/api/v1/teams//pipelines?team=fallback", "fallback"},
	}
	c := application.NewRequestClassifier("")

	for _, tt := range tests {
		t.Run(tt.target, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, tt.target, nil)
			assert.Equal(t, tt.want, c.Parse(r).Team)
		})
	}
}

func TestRequestClassifier_HeadersAndBootstrapFlag(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/api/v1/teams/main/auth/token", nil)
	r.Header.Set("X-Concourse-Url", backendURL)
	r.Header.Set("Authorization", credentials)
	r.Header.Set("If-Modified-Since", "Wed, 21 Oct 2015 07:28:00 GMT")

	parsed := application.NewRequestClassifier("").Parse(r)

	assert.Equal(t, credentials, parsed.AuthorizationHeader)
	assert.Equal(t, "Wed, 21 Oct 2015 07:28:00 GMT", parsed.IfModifiedSince)
	assert.True(t, parsed.IsCredentialBootstrap())
}

func TestRequestClassifier_NotBootstrapWithoutTeamOrAuth(t *testing.T) {
	c := application.NewRequestClassifier("")

	noTeam := httptest.NewRequest(http.MethodGet, "/api/v1/user", nil)
	noTeam.Header.Set("X-Concourse-Url", backendURL)
	noTeam.Header.Set("Authorization", credentials)
	assert.False(t, c.Parse(noTeam).IsCredentialBootstrap())

	noAuth := httptest.NewRequest(http.MethodGet, "/api/v1/teams/main/pipelines", nil)
	noAuth.Header.Set("X-Concourse-Url", backendURL)
	assert.False(t, c.Parse(noAuth).IsCredentialBootstrap())
}

func TestRequestClassifier_ResolveBackendURL(t *testing.T) {
	assert.Equal(t, backendURL, application.NewRequestClassifier("").ResolveBackendURL(backendURL))
	assert.Equal(t, "http://fixed", application.NewRequestClassifier("http://fixed").ResolveBackendURL(backendURL))
}

func TestRequestClassifier_TeamIsDecoded(t *testing.T) {
	c := application.NewRequestClassifier("")

	tests := []struct {
		target string
		want   string
	}{
		{"/api/v1/teams/my%20team/jobs", "my team"},
		{"/api/v1/teams/a%2Fb/pipelines", "a/b"},
		{"/api/v1/pipelines?team=my%20team", "my team"},
	}
	for _, tt := range tests {
		t.Run(tt.target, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, tt.target, nil)
			assert.Equal(t, tt.want, c.Parse(r).Team)
		})
	}
}
