package httphandler

import "net/http"

// writeText writes a plain-text response with the given status code.
func writeText(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}

// SaveTokenRequest is the JSON body for the session token endpoint.
type SaveTokenRequest struct {
	BackendURL   string `json:"backendUrl"`
	ConcourseURL string `json:"concourseUrl"`
	Team         string `json:"team"`
	Token        string `json:"token"`
}

// URL returns the backend URL, accepting the legacy field name.
func (r SaveTokenRequest) URL() string {
	return firstNonEmpty(r.BackendURL, r.ConcourseURL)
}

// SaveCredentialsRequest is the JSON body for the basic credentials endpoint.
type SaveCredentialsRequest struct {
	BackendURL   string `json:"backendUrl"`
	ConcourseURL string `json:"concourseUrl"`
	Team         string `json:"team"`
	Credentials  string `json:"credentials"`
}

// URL returns the backend URL, accepting the legacy field name.
func (r SaveCredentialsRequest) URL() string {
	return firstNonEmpty(r.BackendURL, r.ConcourseURL)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
