package application_test

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/ericfisherdev/concourse-proxy/internal/application"
	"github.com/ericfisherdev/concourse-proxy/internal/crypto"
	"github.com/ericfisherdev/concourse-proxy/internal/domain/model"
	"github.com/ericfisherdev/concourse-proxy/internal/domain/port/driven"
)

const (
	backendURL  = "http://concourse.example.com"
	credentials = "Basic dXNlcjpwYXNzd29yZA=="
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// bearer returns a signed "Bearer <jwt>" value. A zero exp omits the claim.
func bearer(t *testing.T, sub string, exp time.Time) string {
	t.Helper()
	claims := jwt.MapClaims{"sub": sub}
	if !exp.IsZero() {
		claims["exp"] = exp.Unix()
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("backend-key"))
	require.NoError(t, err)
	return "Bearer " + signed
}

// --- Mock implementations ---

type mockCredentialStore struct {
	mu        sync.Mutex
	values    map[string]map[string]string
	getErr    error
	setErr    error
	keysErr   error
	undecrypt map[string]bool
	sets      int
}

func newMockCredentialStore() *mockCredentialStore {
	return &mockCredentialStore{values: map[string]map[string]string{}, undecrypt: map[string]bool{}}
}

func (m *mockCredentialStore) Get(_ context.Context, group, id string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return "", m.getErr
	}
	if m.undecrypt[id] {
		return "", crypto.ErrDecryption
	}
	v, ok := m.values[group][id]
	if !ok {
		return "", driven.ErrNotFound
	}
	return v, nil
}

func (m *mockCredentialStore) Set(_ context.Context, group, id, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sets++
	if m.values[group] == nil {
		m.values[group] = map[string]string{}
	}
	// The in-memory write lands even when durable persistence fails.
	m.values[group][id] = value
	return m.setErr
}

func (m *mockCredentialStore) Keys(_ context.Context, group string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.keysErr != nil {
		return nil, m.keysErr
	}
	keys := []string{}
	for k := range m.values[group] {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

func (m *mockCredentialStore) put(group, url, team, value string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.values[group] == nil {
		m.values[group] = map[string]string{}
	}
	m.values[group][model.NewCredentialKey(url, team).ID()] = value
}

func (m *mockCredentialStore) value(group, url, team string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.values[group][model.NewCredentialKey(url, team).ID()]
}

type backendCall struct {
	URL    string
	Header http.Header
}

type mockBackend struct {
	mu      sync.Mutex
	calls   []backendCall
	respond func(url string, header http.Header) (*model.UpstreamResponse, error)
}

func (m *mockBackend) Get(_ context.Context, url string, header http.Header) (*model.UpstreamResponse, error) {
	m.mu.Lock()
	m.calls = append(m.calls, backendCall{URL: url, Header: header.Clone()})
	m.mu.Unlock()
	if m.respond == nil {
		return jsonResponse(http.StatusOK, "[]", nil), nil
	}
	return m.respond(url, header)
}

func (m *mockBackend) recorded() []backendCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]backendCall(nil), m.calls...)
}

func jsonResponse(status int, body string, header http.Header) *model.UpstreamResponse {
	if header == nil {
		header = http.Header{}
	}
	header.Set("Content-Type", "application/json")
	return &model.UpstreamResponse{
		StatusCode: status,
		Status:     http.StatusText(status),
		Header:     header,
		Body:       []byte(body),
	}
}

func sessionCookie(token string) http.Header {
	h := http.Header{}
	h.Add("Set-Cookie", `ATC-Authorization="`+token+`"; Path=/; HttpOnly`)
	return h
}

type fixture struct {
	store   *mockCredentialStore
	backend *mockBackend
	creds   *application.CredentialService
	tokens  *application.TokenManager
	proxy   *application.ProxyService
}

func newFixture() *fixture {
	store := newMockCredentialStore()
	backend := &mockBackend{}
	logger := discardLogger()
	creds := application.NewCredentialService(store, logger)
	tokens := application.NewTokenManager(creds, backend, logger)
	return &fixture{
		store:   store,
		backend: backend,
		creds:   creds,
		tokens:  tokens,
		proxy:   application.NewProxyService(creds, tokens, backend, logger),
	}
}
