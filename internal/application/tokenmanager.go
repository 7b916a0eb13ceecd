package application

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/ericfisherdev/concourse-proxy/internal/domain/model"
	"github.com/ericfisherdev/concourse-proxy/internal/domain/port/driven"
	"github.com/ericfisherdev/concourse-proxy/internal/metrics"
)

// TokenManager hands out currently valid session tokens, refreshing them from
// stored credentials when needed.
//
// There is no cross-request locking: two requests that both find a team's
// token expired will both refresh, and the last save wins.
type TokenManager struct {
	creds  *CredentialService
	client driven.BackendClient
	logger *slog.Logger
	now    func() time.Time
}

// NewTokenManager creates a TokenManager.
func NewTokenManager(creds *CredentialService, client driven.BackendClient, logger *slog.Logger) *TokenManager {
	return &TokenManager{
		creds:  creds,
		client: client,
		logger: logger,
		now:    time.Now,
	}
}

// Token returns a valid session token for (backendURL, team), or "" when none
// can be had. Store failures count as "no token".
func (m *TokenManager) Token(ctx context.Context, backendURL, team string) string {
	stored, err := m.creds.LoadSessionToken(ctx, backendURL, team)
	if err != nil {
		m.logger.Warn("session token lookup failed", "backend", backendURL, "team", team, "error", err)
		stored = ""
	}
	return m.AssertValidToken(ctx, backendURL, team, stored)
}

// AssertValidToken returns candidate unchanged if it decodes and has not
// expired. Otherwise it refreshes from the stored credentials for team.
func (m *TokenManager) AssertValidToken(ctx context.Context, backendURL, team, candidate string) string {
	if model.ParseSessionToken(candidate).Valid(m.now()) {
		return candidate
	}
	if team == "" {
		return ""
	}

	credentials, err := m.creds.LoadAuthenticationCredentials(ctx, backendURL, team)
	if err != nil {
		m.logger.Warn("credential lookup failed", "backend", backendURL, "team", team, "error", err)
		return ""
	}
	if credentials == "" {
		return ""
	}
	return m.RefreshToken(ctx, backendURL, team, credentials)
}

// RefreshToken asks the backend for a new session token using credentials as
// the Authorization header. A token found in the reply is saved; a failed
// save still returns the token. Any failure yields "".
func (m *TokenManager) RefreshToken(ctx context.Context, backendURL, team, credentials string) string {
	if credentials == "" || team == "" {
		return ""
	}

	header := http.Header{}
	header.Set(HeaderAuthorization, credentials)

	resp, err := m.client.Get(ctx, tokenEndpoint(backendURL, team), header)
	if err != nil {
		metrics.RecordTokenRefresh(metrics.RefreshFailed)
		m.logger.Warn("token refresh failed", "backend", backendURL, "team", team, "error", err)
		return ""
	}

	token := ClassifyResponse(resp).SessionToken
	if token == "" {
		metrics.RecordTokenRefresh(metrics.RefreshNoToken)
		m.logger.Info("backend returned no session token", "backend", backendURL, "team", team, "status", resp.StatusCode)
		return ""
	}
	metrics.RecordTokenRefresh(metrics.RefreshObtained)

	if err := m.creds.SaveSessionToken(ctx, backendURL, team, token); err != nil {
		m.logger.Error("failed to save refreshed session token", "backend", backendURL, "team", team, "error", err)
	}
	return token
}

func tokenEndpoint(backendURL, team string) string {
	return model.NormalizeBackendURL(backendURL) + "/api/v1/teams/" + url.PathEscape(team) + "/auth/token"
}
