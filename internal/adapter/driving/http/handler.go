package httphandler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/ericfisherdev/concourse-proxy/internal/application"
	"github.com/ericfisherdev/concourse-proxy/internal/domain/model"
	"github.com/ericfisherdev/concourse-proxy/internal/metrics"
)

// Response headers copied from the backend when present.
var forwardedHeaders = []string{"Content-Type", "Date", "Last-Modified"}

const missingBackendMessage = "X-Concourse-Url HTTP header is required"

// Handler is the HTTP driving adapter in front of the proxy services.
type Handler struct {
	classifier *application.RequestClassifier
	proxy      *application.ProxyService
	creds      *application.CredentialService
	tokens     *application.TokenManager
	logger     *slog.Logger
}

// NewHandler creates a Handler with all required dependencies.
func NewHandler(
	classifier *application.RequestClassifier,
	proxy *application.ProxyService,
	creds *application.CredentialService,
	tokens *application.TokenManager,
	logger *slog.Logger,
) *Handler {
	return &Handler{
		classifier: classifier,
		proxy:      proxy,
		creds:      creds,
		tokens:     tokens,
		logger:     logger,
	}
}

// NewServeMux creates an http.Handler with all routes registered and wrapped
// with request id, logging, metrics and recovery middleware.
func NewServeMux(h *Handler, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", h.Health)
	mux.Handle("GET /metrics", metrics.Handler())
	mux.HandleFunc("POST /token", h.SaveToken)
	mux.HandleFunc("POST /basic", h.SaveBasicCredentials)
	mux.HandleFunc("GET /", h.Proxy)

	// Recovery innermost so panics are caught before logging.
	wrapped := recoveryMiddleware(logger, mux)
	wrapped = metrics.InstrumentHandler(wrapped)
	wrapped = loggingMiddleware(logger, wrapped)
	wrapped = requestIDMiddleware(wrapped)

	return wrapped
}

// Proxy forwards any GET to the backend named by the request.
func (h *Handler) Proxy(w http.ResponseWriter, r *http.Request) {
	req := h.classifier.Parse(r)
	if req.BackendURL == "" {
		writeText(w, http.StatusBadRequest, missingBackendMessage)
		return
	}

	if req.IsCredentialBootstrap() {
		if err := h.creds.SaveAuthenticationCredentials(r.Context(), req.BackendURL, req.Team, req.AuthorizationHeader); err != nil {
			h.logger.Error("failed to save authentication credentials",
				"backend", req.BackendURL,
				"team", req.Team,
				"error", err,
			)
		}
	}

	resp, err := h.proxy.Proxy(r.Context(), req)
	if err != nil {
		h.logger.Error("proxy request failed", "backend", req.BackendURL, "path", req.Path(), "error", err)
		writeText(w, http.StatusInternalServerError, err.Error())
		return
	}

	forwardResponse(w, resp)
}

// SaveToken stores a session token supplied by the caller.
func (h *Handler) SaveToken(w http.ResponseWriter, r *http.Request) {
	var req SaveTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeText(w, http.StatusBadRequest, "invalid request body")
		return
	}

	backendURL := h.classifier.ResolveBackendURL(req.URL())
	if err := h.creds.SaveSessionToken(r.Context(), backendURL, req.Team, req.Token); err != nil {
		h.writeSaveError(w, err, backendURL, req.Team)
		return
	}

	writeText(w, http.StatusOK, http.StatusText(http.StatusOK))
}

// SaveBasicCredentials exchanges the supplied credentials for a session token
// and stores the credentials only if the exchange succeeds.
func (h *Handler) SaveBasicCredentials(w http.ResponseWriter, r *http.Request) {
	var req SaveCredentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeText(w, http.StatusBadRequest, "invalid request body")
		return
	}

	backendURL := h.classifier.ResolveBackendURL(req.URL())
	if err := application.ValidateRecord(backendURL, req.Team, req.Credentials, "credentials value"); err != nil {
		writeText(w, http.StatusBadRequest, err.Error())
		return
	}

	if token := h.tokens.RefreshToken(r.Context(), backendURL, req.Team, req.Credentials); token == "" {
		writeText(w, http.StatusForbidden, http.StatusText(http.StatusForbidden))
		return
	}

	if err := h.creds.SaveAuthenticationCredentials(r.Context(), backendURL, req.Team, req.Credentials); err != nil {
		h.writeSaveError(w, err, backendURL, req.Team)
		return
	}

	writeText(w, http.StatusOK, http.StatusText(http.StatusOK))
}

// Health reports liveness.
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	writeText(w, http.StatusOK, "OK\n")
}

func (h *Handler) writeSaveError(w http.ResponseWriter, err error, backendURL, team string) {
	if errors.Is(err, application.ErrValidation) {
		writeText(w, http.StatusBadRequest, err.Error())
		return
	}
	h.logger.Error("failed to save credential", "backend", backendURL, "team", team, "error", err)
	writeText(w, http.StatusInternalServerError, "internal server error")
}

// forwardResponse writes the backend response: selected headers, the CSRF
// token, the status code and the raw body.
func forwardResponse(w http.ResponseWriter, resp *model.ParsedResponse) {
	upstream := resp.Response
	for _, name := range forwardedHeaders {
		if v := upstream.Header.Get(name); v != "" {
			w.Header().Set(name, v)
		}
	}
	// Suppress content sniffing when the backend sent no type.
	if upstream.Header.Get("Content-Type") == "" {
		w.Header()["Content-Type"] = nil
	}
	if resp.CSRFToken != "" {
		w.Header().Set(application.HeaderCSRFToken, resp.CSRFToken)
	}

	w.WriteHeader(upstream.StatusCode)
	_, _ = w.Write(upstream.Body)
}
