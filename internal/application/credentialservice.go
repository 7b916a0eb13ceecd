package application

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"sort"

	"github.com/ericfisherdev/concourse-proxy/internal/domain/model"
	"github.com/ericfisherdev/concourse-proxy/internal/domain/port/driven"
)

// CredentialService stores long-lived credentials and session tokens per
// (backend, team).
type CredentialService struct {
	store  driven.CredentialStore
	logger *slog.Logger
}

// NewCredentialService creates a CredentialService over store.
func NewCredentialService(store driven.CredentialStore, logger *slog.Logger) *CredentialService {
	return &CredentialService{store: store, logger: logger}
}

// SaveAuthenticationCredentials stores the authorization header value used to
// obtain session tokens for team.
func (s *CredentialService) SaveAuthenticationCredentials(ctx context.Context, backendURL, team, credentials string) error {
	if err := ValidateRecord(backendURL, team, credentials, "credentials value"); err != nil {
		return err
	}
	return s.store.Set(ctx, model.GroupAuthenticationCredentials, model.NewCredentialKey(backendURL, team).ID(), credentials)
}

// LoadAuthenticationCredentials returns the stored credentials for team, or ""
// when none are stored or the stored record cannot be decrypted.
func (s *CredentialService) LoadAuthenticationCredentials(ctx context.Context, backendURL, team string) (string, error) {
	if err := validateKey(backendURL, team); err != nil {
		return "", err
	}
	return absentOnMiss(s.store.Get(ctx, model.GroupAuthenticationCredentials, model.NewCredentialKey(backendURL, team).ID()))
}

// SaveSessionToken stores a session token supplied for team.
func (s *CredentialService) SaveSessionToken(ctx context.Context, backendURL, team, token string) error {
	if err := ValidateRecord(backendURL, team, token, "token value"); err != nil {
		return err
	}
	return s.store.Set(ctx, model.GroupSessionTokens, model.NewCredentialKey(backendURL, team).ID(), token)
}

// SaveObservedToken stores a session token the backend handed out on a
// proxied request. team may be empty, which scopes the token to the backend.
func (s *CredentialService) SaveObservedToken(ctx context.Context, backendURL, team, token string) error {
	if err := validateURL(backendURL); err != nil {
		return err
	}
	if token == "" {
		return fmt.Errorf("%w: empty token value", ErrValidation)
	}
	return s.store.Set(ctx, model.GroupSessionTokens, model.NewCredentialKey(backendURL, team).ID(), token)
}

// LoadSessionToken returns the stored token for team as-is, without checking
// validity. team may be empty. Returns "" when nothing usable is stored.
func (s *CredentialService) LoadSessionToken(ctx context.Context, backendURL, team string) (string, error) {
	if err := validateURL(backendURL); err != nil {
		return "", err
	}
	return absentOnMiss(s.store.Get(ctx, model.GroupSessionTokens, model.NewCredentialKey(backendURL, team).ID()))
}

// Teams returns every named team known for backendURL in either group,
// sorted and without duplicates.
func (s *CredentialService) Teams(ctx context.Context, backendURL string) ([]string, error) {
	want := model.NormalizeBackendURL(backendURL)
	seen := make(map[string]struct{})

	for _, group := range []string{model.GroupSessionTokens, model.GroupAuthenticationCredentials} {
		ids, err := s.store.Keys(ctx, group)
		if err != nil {
			return nil, fmt.Errorf("list %s: %w", group, err)
		}
		for _, id := range ids {
			key, err := model.ParseCredentialKey(id)
			if err != nil {
				s.logger.Warn("skipping unparseable store key", "group", group, "error", err)
				continue
			}
			if model.NormalizeBackendURL(key.BackendURL) != want || key.Team == "" {
				continue
			}
			seen[key.Team] = struct{}{}
		}
	}

	teams := make([]string, 0, len(seen))
	for team := range seen {
		teams = append(teams, team)
	}
	sort.Strings(teams)
	return teams, nil
}

// ValidateRecord checks the inputs of a save operation. description names the
// secret in the error message.
func ValidateRecord(backendURL, team, secret, description string) error {
	if err := validateKey(backendURL, team); err != nil {
		return err
	}
	if secret == "" {
		return fmt.Errorf("%w: empty %s", ErrValidation, description)
	}
	return nil
}

func validateKey(backendURL, team string) error {
	if err := validateURL(backendURL); err != nil {
		return err
	}
	if team == "" {
		return fmt.Errorf("%w: empty team name", ErrValidation)
	}
	return nil
}

func validateURL(backendURL string) error {
	if backendURL == "" {
		return fmt.Errorf("%w: empty url", ErrValidation)
	}
	u, err := url.Parse(backendURL)
	if err != nil {
		return fmt.Errorf("%w: invalid url (%v): %s", ErrValidation, err, backendURL)
	}
	if u.Hostname() == "" {
		return fmt.Errorf("%w: no hostname in url: %s", ErrValidation, backendURL)
	}
	return nil
}
