package driven

import (
	"context"
	"net/http"

	"github.com/ericfisherdev/concourse-proxy/internal/domain/model"
)

// BackendClient issues GET requests against a CI backend. Only transport
// failures are errors; any HTTP status is a response.
type BackendClient interface {
	Get(ctx context.Context, url string, header http.Header) (*model.UpstreamResponse, error)
}
