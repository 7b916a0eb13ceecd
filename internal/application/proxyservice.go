package application

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"

	"golang.org/x/sync/errgroup"

	"github.com/ericfisherdev/concourse-proxy/internal/domain/model"
	"github.com/ericfisherdev/concourse-proxy/internal/domain/port/driven"
	"github.com/ericfisherdev/concourse-proxy/internal/metrics"
)

// Paths answered by merging the lists of every known team.
var multiTeamPaths = map[string]struct{}{
	"/api/v1/pipelines": {},
	"/api/v1/jobs":      {},
	"/api/v1/resources": {},
}

var pipelineConfigPattern = regexp.MustCompile(`^/api/v1/teams/[^/]+/pipelines/[^/]+/config$`)

type route int

const (
	routeForward route = iota
	routeFanOut
	routeForbidden
)

// proxyState names the steps a request moves through. Merged is skipped for
// single-team forwards.
type proxyState int

const (
	stateClassified proxyState = iota
	stateRouteSelected
	stateTokenAcquired
	stateDispatched
	stateResponseClassified
	stateTokenPersisted
	stateMerged
	stateDone
)

func (s proxyState) String() string {
	return [...]string{
		"classified", "route_selected", "token_acquired", "dispatched",
		"response_classified", "token_persisted", "merged", "done",
	}[s]
}

// outboundCall is one GET in a forward or fan-out. An empty team with
// anonymous set is the credential-less baseline of a fan-out.
type outboundCall struct {
	team      string
	anonymous bool
	token     string
	response  *model.UpstreamResponse
	parsed    model.ParsedResponse
}

// proxyRun carries one request through the state machine.
type proxyRun struct {
	req    model.ParsedRequest
	route  route
	calls  []*outboundCall
	result *model.ParsedResponse
}

// ProxyService routes classified requests to a backend, injecting session
// tokens and merging multi-team list responses.
type ProxyService struct {
	creds  *CredentialService
	tokens *TokenManager
	client driven.BackendClient
	logger *slog.Logger
}

// NewProxyService creates a ProxyService.
func NewProxyService(creds *CredentialService, tokens *TokenManager, client driven.BackendClient, logger *slog.Logger) *ProxyService {
	return &ProxyService{
		creds:  creds,
		tokens: tokens,
		client: client,
		logger: logger,
	}
}

// Proxy forwards req and returns the classified response. The returned error
// is always a transport failure talking to the backend.
func (s *ProxyService) Proxy(ctx context.Context, req model.ParsedRequest) (*model.ParsedResponse, error) {
	run := &proxyRun{req: req}
	state := stateClassified

	for state != stateDone {
		next, err := s.step(ctx, run, state)
		if err != nil {
			return nil, err
		}
		s.logger.Debug("proxy state", "from", state, "to", next, "path", req.Path())
		state = next
	}
	return run.result, nil
}

func (s *ProxyService) step(ctx context.Context, run *proxyRun, state proxyState) (proxyState, error) {
	switch state {
	case stateClassified:
		return s.selectRoute(ctx, run), nil
	case stateRouteSelected:
		s.acquireTokens(ctx, run)
		return stateTokenAcquired, nil
	case stateTokenAcquired:
		if err := s.dispatch(ctx, run); err != nil {
			return state, err
		}
		return stateDispatched, nil
	case stateDispatched:
		for _, call := range run.calls {
			call.parsed = ClassifyResponse(call.response)
		}
		return stateResponseClassified, nil
	case stateResponseClassified:
		s.persistObservedTokens(ctx, run)
		return stateTokenPersisted, nil
	case stateTokenPersisted:
		if run.route != routeFanOut {
			result := run.calls[0].parsed
			run.result = &result
			return stateDone, nil
		}
		run.result = mergeCalls(run.calls)
		return stateMerged, nil
	case stateMerged:
		return stateDone, nil
	}
	return stateDone, fmt.Errorf("unknown proxy state %d", state)
}

// selectRoute decides between forbidden, fan-out, and single-team forward and
// lays out the outbound calls.
func (s *ProxyService) selectRoute(ctx context.Context, run *proxyRun) proxyState {
	path := run.req.Path()

	if pipelineConfigPattern.MatchString(path) {
		run.route = routeForbidden
		run.result = forbiddenResponse()
		return stateDone
	}

	if _, ok := multiTeamPaths[path]; !ok {
		run.route = routeForward
		run.calls = []*outboundCall{{team: run.req.Team}}
		return stateRouteSelected
	}

	run.route = routeFanOut
	for _, team := range s.fanOutTeams(ctx, run.req) {
		run.calls = append(run.calls, &outboundCall{team: team})
	}
	run.calls = append(run.calls, &outboundCall{anonymous: true})
	metrics.RecordFanOut(len(run.calls))
	return stateRouteSelected
}

// fanOutTeams is the referrer's team filter when present, otherwise every
// team known for the backend.
func (s *ProxyService) fanOutTeams(ctx context.Context, req model.ParsedRequest) []string {
	if team := referrerTeam(req.Request); team != "" {
		return []string{team}
	}

	teams, err := s.creds.Teams(ctx, req.BackendURL)
	if err != nil {
		s.logger.Warn("team lookup failed, fanning out anonymously only", "backend", req.BackendURL, "error", err)
		return nil
	}
	return teams
}

func referrerTeam(r *http.Request) string {
	if r == nil || r.Referer() == "" {
		return ""
	}
	ref, err := url.Parse(r.Referer())
	if err != nil {
		return ""
	}
	return ref.Query().Get("team")
}

func (s *ProxyService) acquireTokens(ctx context.Context, run *proxyRun) {
	var g errgroup.Group
	for _, call := range run.calls {
		if call.anonymous {
			continue
		}
		g.Go(func() error {
			call.token = s.tokens.Token(ctx, run.req.BackendURL, call.team)
			return nil
		})
	}
	_ = g.Wait()
}

// dispatch issues every call concurrently and waits for all of them. The
// first transport failure is returned.
func (s *ProxyService) dispatch(ctx context.Context, run *proxyRun) error {
	target := model.NormalizeBackendURL(run.req.BackendURL) + run.req.RequestURI()

	g, gctx := errgroup.WithContext(ctx)
	for _, call := range run.calls {
		header := s.outboundHeader(run, call)
		g.Go(func() error {
			resp, err := s.client.Get(gctx, target, header)
			if err != nil {
				return err
			}
			call.response = resp
			return nil
		})
	}
	return g.Wait()
}

func (s *ProxyService) outboundHeader(run *proxyRun, call *outboundCall) http.Header {
	header := http.Header{}
	if call.anonymous {
		return header
	}
	if run.route == routeForward && run.req.IsCredentialBootstrap() {
		header.Set(HeaderAuthorization, run.req.AuthorizationHeader)
	}
	if call.token != "" {
		header.Set("Cookie", fmt.Sprintf(`%s="%s"`, SessionCookieName, call.token))
	}
	if run.route == routeForward && run.req.IfModifiedSince != "" {
		header.Set(HeaderIfModifiedSince, run.req.IfModifiedSince)
	}
	return header
}

// persistObservedTokens saves any session token the backend handed out.
// Save failures are logged; the response is returned regardless.
func (s *ProxyService) persistObservedTokens(ctx context.Context, run *proxyRun) {
	for _, call := range run.calls {
		if call.anonymous || call.parsed.SessionToken == "" || call.parsed.SessionToken == call.token {
			continue
		}
		if err := s.creds.SaveObservedToken(ctx, run.req.BackendURL, call.team, call.parsed.SessionToken); err != nil {
			s.logger.Warn("failed to save observed session token", "backend", run.req.BackendURL, "team", call.team, "error", err)
		}
	}
}

// mergeCalls combines fan-out responses in call order. Status and headers
// come from the first call. A single response is returned untouched.
func mergeCalls(calls []*outboundCall) *model.ParsedResponse {
	if len(calls) == 1 {
		result := calls[0].parsed
		return &result
	}

	bodies := make([][]byte, len(calls))
	for i, call := range calls {
		bodies[i] = call.response.Body
	}

	first := calls[0].response
	merged := &model.UpstreamResponse{
		StatusCode: first.StatusCode,
		Status:     first.Status,
		Header:     first.Header.Clone(),
		Body:       MergeAllByID(bodies),
	}
	result := ClassifyResponse(merged)
	return &result
}

func forbiddenResponse() *model.ParsedResponse {
	header := http.Header{}
	header.Set("Content-Type", "text/plain; charset=utf-8")
	return &model.ParsedResponse{
		Response: &model.UpstreamResponse{
			StatusCode: http.StatusForbidden,
			Status:     "403 Forbidden",
			Header:     header,
			Body:       []byte("Forbidden"),
		},
	}
}
